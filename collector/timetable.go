package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/railops/cache"
	"github.com/jonwraymond/railops/gateway"
	"github.com/jonwraymond/railops/observe"
	"github.com/jonwraymond/railops/upstream"
)

// Place is a located station used as a journey endpoint.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (p Place) planner() string {
	return fmt.Sprintf("%s::%g,%g", p.Name, p.Latitude, p.Longitude)
}

// TimetableQuery selects the journeys between two stations on one day.
type TimetableQuery struct {
	From Place
	To   Place
	Date time.Time
}

// Key returns the cache key of q.
func (q TimetableQuery) Key() string {
	return q.From.Name + ":" + q.To.Name + ":" + q.Date.Format(time.DateOnly)
}

// Timetable lists the itineraries found for a query.
type Timetable struct {
	Itineraries []Itinerary `json:"itineraries"`
}

// Itinerary is one journey made of legs. Times are Unix milliseconds.
type Itinerary struct {
	StartTime         int64 `json:"startTime"`
	EndTime           int64 `json:"endTime"`
	Duration          int64 `json:"duration"`
	NumberOfTransfers int   `json:"numberOfTransfers"`
	WaitingTime       int64 `json:"waitingTime"`
	WalkTime          int64 `json:"walkTime"`
	Legs              []Leg `json:"legs"`
}

// Leg is one vehicle or walking segment of an itinerary.
type Leg struct {
	Mode           string   `json:"mode"`
	StartTime      int64    `json:"startTime"`
	EndTime        int64    `json:"endTime"`
	DepartureDelay int      `json:"departureDelay"`
	ArrivalDelay   int      `json:"arrivalDelay"`
	Distance       float64  `json:"distance"`
	Headsign       string   `json:"headsign"`
	ServiceDate    string   `json:"serviceDate"`
	TransitLeg     bool     `json:"transitLeg"`
	From           LegPlace `json:"from"`
	To             LegPlace `json:"to"`
	Route          struct {
		LongName string `json:"longName"`
	} `json:"route"`
	Trip struct {
		ShortName string `json:"tripShortName"`
		Headsign  string `json:"tripHeadsign"`
	} `json:"trip"`
}

// LegPlace is where a leg starts or ends.
type LegPlace struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Empty reports whether no itinerary was found.
func (t Timetable) Empty() bool { return len(t.Itineraries) == 0 }

// Train returns the transit legs operated as trainNumber.
func (t Timetable) Train(trainNumber string) []Leg {
	var out []Leg
	for _, it := range t.Itineraries {
		for _, leg := range it.Legs {
			if leg.TransitLeg && strings.EqualFold(leg.Trip.ShortName, trainNumber) {
				out = append(out, leg)
			}
		}
	}
	return out
}

const planQuery = `query plan($from: String!, $to: String!, $date: String!) {
  plan(fromPlace: $from, toPlace: $to, date: $date, numItineraries: 50,
       transportModes: [{mode: RAIL}, {mode: WALK}]) {
    itineraries {
      startTime endTime duration numberOfTransfers waitingTime walkTime
      legs {
        mode startTime endTime departureDelay arrivalDelay distance
        headsign serviceDate transitLeg
        from { name lat lon }
        to { name lat lon }
        route { longName }
        trip { tripShortName tripHeadsign }
      }
    }
  }
}`

type planResponse struct {
	Plan Timetable `json:"plan"`
}

// TimetableServiceConfig configures a TimetableService.
type TimetableServiceConfig struct {
	// Client reaches the journey planner.
	Client *upstream.Client

	// Gateway supplies the getTimetable policy.
	Gateway *gateway.Gateway

	// Path is the GraphQL endpoint path.
	// Default: "/graphql"
	Path string

	// Store caches non-empty timetables. Optional.
	Store *cache.Store[Timetable]

	// Logger
	// Default: no-op
	Logger observe.Logger
}

// TimetableService fetches timetables from the GraphQL journey planner.
// It has no bus path.
type TimetableService struct {
	config TimetableServiceConfig
	logger observe.Logger
}

// NewTimetableService creates a TimetableService.
func NewTimetableService(config TimetableServiceConfig) *TimetableService {
	if config.Path == "" {
		config.Path = "/graphql"
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &TimetableService{
		config: config,
		logger: config.Logger.With(observe.Meta{Component: "collector", Name: "timetable"}),
	}
}

// Timetable returns the journeys matching q. Empty timetables are returned
// but not cached.
func (s *TimetableService) Timetable(ctx context.Context, q TimetableQuery) (Timetable, error) {
	if strings.TrimSpace(q.From.Name) == "" || strings.TrimSpace(q.To.Name) == "" {
		return Timetable{}, ErrMissingEndpoint
	}
	key := q.Key()

	if s.config.Store != nil {
		if t, ok := s.config.Store.Get(ctx, key); ok {
			s.logger.Info(ctx, "timetable already cached", observe.F("key", key))
			return t, nil
		}
	}

	vars := map[string]any{
		"from": q.From.planner(),
		"to":   q.To.planner(),
		"date": q.Date.Format(time.DateOnly),
	}
	t, err := gateway.Call(ctx, s.config.Gateway, PolicyTimetable, func(ctx context.Context) (Timetable, error) {
		var resp planResponse
		if err := s.config.Client.PostGraphQL(ctx, s.config.Path, planQuery, vars, &resp); err != nil {
			return Timetable{}, err
		}
		return resp.Plan, nil
	})
	if err != nil {
		return Timetable{}, err
	}

	if t.Empty() {
		s.logger.Warn(ctx, "empty timetable", observe.F("key", key))
		return t, nil
	}
	if s.config.Store != nil {
		if err := s.config.Store.Cache(ctx, key, t); err != nil {
			s.logger.Warn(ctx, "cache write failed", observe.F("key", key), observe.F("error", err))
		}
	}
	return t, nil
}
