package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/railops/bus"
	"github.com/jonwraymond/railops/cache"
	"github.com/jonwraymond/railops/correlation"
	"github.com/jonwraymond/railops/upstream"
)

const forecast = `{
  "latitude": 47.5,
  "longitude": 19.08,
  "hourly": {
    "time": ["2024-10-10T09:00", "2024-10-10T10:00", "2024-10-10T11:00"],
    "temperature_2m": [8.1, 9.4, 10.2],
    "relative_humidity_2m": [80, 75, 70],
    "snow_depth": [0, 0, 0],
    "snowfall": [0, 0, 0.4],
    "precipitation": [0.1, 0.2, 0.3],
    "showers": [0, 0, 0],
    "rain": [0.1, 0.2, 0.3],
    "visibility": [24000, 22000, null],
    "wind_speed_10m": [5, 6, 7],
    "wind_speed_80m": [15, 16, 17],
    "cloud_cover": [10, 40, 90]
  }
}`

func b(v bool) *bool { return &v }

func decodeForecast(t *testing.T) forecastResponse {
	t.Helper()
	var r forecastResponse
	if err := json.Unmarshal([]byte(forecast), &r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestForecastResponse_Info(t *testing.T) {
	r := decodeForecast(t)
	req := WeatherRequest{Station: "Szob", Latitude: 47.5, Longitude: 19.08}

	tests := []struct {
		name string
		hour int
		want WeatherInfo
	}{
		{
			name: "accumulated values come from the following hour",
			hour: 10,
			want: WeatherInfo{
				Address: "Szob", Latitude: f64(47.5), Longitude: f64(19.08),
				Temperature: f64(9.4), RelativeHumidity: f64(75), SnowDepth: f64(0),
				Visibility: f64(22000), WindSpeedAt10m: f64(6), WindSpeedAt80m: f64(16),
				CloudCoverPercent: f64(40),
				SnowFall: f64(0.4), Precipitation: f64(0.3), Rain: f64(0.3), Showers: f64(0),
				IsSnowing: b(true), IsRaining: b(true),
			},
		},
		{
			name: "last hour uses its own values",
			hour: 11,
			want: WeatherInfo{
				Address: "Szob", Latitude: f64(47.5), Longitude: f64(19.08),
				Temperature: f64(10.2), RelativeHumidity: f64(70), SnowDepth: f64(0),
				WindSpeedAt10m: f64(7), WindSpeedAt80m: f64(17), CloudCoverPercent: f64(90),
				SnowFall: f64(0.4), Precipitation: f64(0.3), Rain: f64(0.3), Showers: f64(0),
				IsSnowing: b(true), IsRaining: b(true),
			},
		},
		{
			name: "hour not in forecast",
			hour: 15,
			want: WeatherInfo{Address: "Szob", Latitude: f64(47.5), Longitude: f64(19.08)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			when := time.Date(2024, 10, 10, tt.hour, 0, 0, 0, time.UTC)
			req.Time = when
			tt.want.Time = when
			if diff := cmp.Diff(tt.want, r.info(req, when)); diff != "" {
				t.Errorf("info() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestForecastResponse_Info_NoPrecipitation(t *testing.T) {
	var r forecastResponse
	r.Hourly.Time = []string{"2024-10-10T09:00"}
	r.Hourly.Temperature = []*float64{f64(3)}

	when := time.Date(2024, 10, 10, 9, 0, 0, 0, time.UTC)
	w := r.info(WeatherRequest{Station: "Szob", Time: when}, when)
	if w.IsRaining != nil || w.IsSnowing != nil {
		t.Errorf("IsRaining = %v, IsSnowing = %v, want nil", w.IsRaining, w.IsSnowing)
	}
	if !w.Useful() {
		t.Error("located measurement should be useful")
	}
}

func newForecaster(t *testing.T, p *provider) *WeatherFetcher {
	t.Helper()
	f, err := NewWeatherFetcher(WeatherFetcherConfig{
		Client:  upstream.New(upstream.Config{BaseURL: p.srv.URL}),
		Gateway: testGateway(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestWeatherFetcher_Fetch(t *testing.T) {
	p := newProvider(t, http.StatusOK, forecast)
	when := time.Date(2024, 10, 10, 10, 20, 0, 0, time.UTC)

	w, err := newForecaster(t, p).Fetch(context.Background(), WeatherRequest{
		Station: "Szob", Latitude: 47.5, Longitude: 19.08, Time: when,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if w.Temperature == nil || *w.Temperature != 9.4 {
		t.Errorf("Temperature = %v, want 9.4", w.Temperature)
	}

	for name, want := range map[string]string{
		"latitude":   "47.5",
		"longitude":  "19.08",
		"start_date": "2024-10-10",
		"end_date":   "2024-10-10",
		"timezone":   "UTC",
	} {
		if got := p.Query(name); got != want {
			t.Errorf("query %s = %q, want %q", name, got, want)
		}
	}
}

func TestNewWeatherFetcher_BadTimezone(t *testing.T) {
	if _, err := NewWeatherFetcher(WeatherFetcherConfig{Timezone: "Mars/Olympus"}); err == nil {
		t.Fatal("expected an error for an unknown timezone")
	}
}

func TestWeatherService_Validation(t *testing.T) {
	p := newProvider(t, http.StatusOK, forecast)
	svc, err := NewWeatherService(WeatherServiceConfig{Fetcher: newForecaster(t, p)})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  WeatherRequest
		want error
	}{
		{name: "blank station", req: WeatherRequest{Station: " ", Time: time.Now()}, want: ErrEmptyStation},
		{name: "no time", req: WeatherRequest{Station: "Szob"}, want: ErrMissingTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Weather(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Weather() error = %v, want %v", err, tt.want)
			}
		})
	}
	if p.hits.Load() != 0 {
		t.Errorf("upstream hits = %d, want 0", p.hits.Load())
	}
}

func newWeatherStore(t *testing.T) *cache.Store[WeatherInfo] {
	t.Helper()
	s, err := cache.NewStore[WeatherInfo](cache.NewMemoryCache(), cache.StoreConfig{
		Namespace: "weather",
		Policy:    cache.DefaultPolicy(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestWeatherService_DirectCaches(t *testing.T) {
	p := newProvider(t, http.StatusOK, forecast)
	store := newWeatherStore(t)
	svc, _ := NewWeatherService(WeatherServiceConfig{Store: store, Fetcher: newForecaster(t, p)})
	ctx := context.Background()
	req := WeatherRequest{Station: "Szob", Latitude: 47.5, Longitude: 19.08, Time: time.Date(2024, 10, 10, 10, 5, 0, 0, time.UTC)}

	for i := 0; i < 2; i++ {
		if _, err := svc.Weather(ctx, req); err != nil {
			t.Fatal(err)
		}
	}
	if p.hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", p.hits.Load())
	}

	// Same hour, different minute.
	req.Time = req.Time.Add(30 * time.Minute)
	if _, err := svc.Weather(ctx, req); err != nil {
		t.Fatal(err)
	}
	if p.hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", p.hits.Load())
	}
}

func TestWeatherService_Bus(t *testing.T) {
	p := newProvider(t, http.StatusOK, forecast)
	tr := bus.NewMemoryTransport(0)
	defer tr.Close()

	reg := correlation.New(correlation.Config[WeatherInfo]{Name: "weather", Timeout: 2 * time.Second})
	defer reg.Close()

	r := bus.NewRouter(tr, bus.RouterConfig{Workers: 2})
	r.Handle(ChannelWeatherRequests, bus.NewResponder(tr, ChannelWeatherResponses, newForecaster(t, p).Respond, nil))
	r.Handle(ChannelWeatherResponses, bus.NewResponseHandler(reg, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}

	store := newWeatherStore(t)
	svc, err := NewWeatherService(WeatherServiceConfig{
		Store:    store,
		Registry: reg,
		Sender:   bus.NewSender(tr, ChannelWeatherRequests, nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	when := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	w, err := svc.Weather(ctx, WeatherRequest{Station: "Szob", Latitude: 47.5, Longitude: 19.08, Time: when})
	if err != nil {
		t.Fatalf("Weather() error = %v", err)
	}
	if !w.Useful() || w.Address != "Szob" || !w.Time.Equal(when) {
		t.Errorf("Weather() = %+v", w)
	}
	if reg.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", reg.Pending())
	}
	if _, ok := store.Get(ctx, WeatherKey("Szob", when)); !ok {
		t.Error("weather was not cached")
	}
}

func TestWeatherKey(t *testing.T) {
	budapest := time.FixedZone("CEST", 2*60*60)
	got := WeatherKey("Szob", time.Date(2024, 10, 10, 12, 45, 0, 0, budapest))
	if want := "Szob:2024-10-10T10:00:00Z"; got != want {
		t.Errorf("WeatherKey() = %q, want %q", got, want)
	}
}
