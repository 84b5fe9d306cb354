package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	perrors "github.com/jmgilman/go/errors"

	"github.com/jonwraymond/railops/observe"
)

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func TestClient_GetJSON(t *testing.T) {
	var gotQuery url.Values
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUA = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, `{"lat":47.5,"lng":19.08}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", UserAgent: "railops-test"})

	var loc location
	err := c.GetJSON(context.Background(), "/geocode", url.Values{"address": {"Budapest-Keleti"}}, &loc)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if loc.Lat != 47.5 || loc.Lng != 19.08 {
		t.Errorf("decoded %+v", loc)
	}
	if gotQuery.Get("address") != "Budapest-Keleti" {
		t.Errorf("address = %q", gotQuery.Get("address"))
	}
	if gotUA != "railops-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCode  perrors.ErrorCode
		retryable bool
		check     func(t *testing.T, err error)
	}{
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "unknown station", http.StatusBadRequest)
			},
			wantCode: perrors.CodeInvalidInput,
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) {
					t.Fatalf("expected *StatusError, got %T", err)
				}
				if se.StatusCode() != 400 || !strings.Contains(se.Body, "unknown station") {
					t.Errorf("StatusError = %+v", se)
				}
			},
		},
		{
			name: "service unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantCode:  perrors.CodeUnavailable,
			retryable: true,
		},
		{
			name: "too many requests",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantCode:  perrors.CodeRateLimit,
			retryable: true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"lat":`)
			},
			wantCode: perrors.CodeSchemaFailed,
			check: func(t *testing.T, err error) {
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("expected *DecodeError, got %T", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			var loc location
			err := New(Config{BaseURL: srv.URL}).GetJSON(context.Background(), "/", nil, &loc)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := perrors.GetCode(err); got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
			if got := perrors.IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	err := New(Config{BaseURL: base}).GetJSON(context.Background(), "/", nil, nil)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if perrors.GetCode(err) != perrors.CodeNetwork {
		t.Errorf("code = %s", perrors.GetCode(err))
	}
	if !perrors.IsRetryable(err) {
		t.Error("transport failures should be retryable")
	}
}

func TestClient_Deadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := New(Config{BaseURL: srv.URL}).GetJSON(ctx, "/", nil, nil)
	if perrors.GetCode(err) != perrors.CodeTimeout {
		t.Fatalf("code = %s, err = %v", perrors.GetCode(err), err)
	}
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Api-Key") != "k" {
			t.Errorf("X-Api-Key = %q", r.Header.Get("X-Api-Key"))
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["station"]})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Headers: map[string]string{"X-Api-Key": "k"}})
	var out map[string]string
	if err := c.PostJSON(context.Background(), "/echo", map[string]string{"station": "BPK"}, &out); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if out["echo"] != "BPK" {
		t.Errorf("echo = %q", out["echo"])
	}
}

func TestClient_PostGraphQL(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantErr  bool
		wantName string
	}{
		{name: "data", body: `{"data":{"stop":{"name":"Budapest-Keleti"}}}`, wantName: "Budapest-Keleti"},
		{name: "graphql errors", body: `{"errors":[{"message":"no such stop"}]}`, wantErr: true},
		{name: "null data", body: `{"data":null}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req graphQLRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.Variables["id"] != "BPK" {
					t.Errorf("variables = %v", req.Variables)
				}
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			var out struct {
				Stop struct {
					Name string `json:"name"`
				} `json:"stop"`
			}
			err := New(Config{BaseURL: srv.URL}).PostGraphQL(context.Background(), "/graphql",
				`query($id: String!) { stop(id: $id) { name } }`, map[string]any{"id": "BPK"}, &out)

			if tt.wantErr {
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("expected *DecodeError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PostGraphQL() error = %v", err)
			}
			if out.Stop.Name != tt.wantName {
				t.Errorf("name = %q", out.Stop.Name)
			}
		})
	}
}

func TestClient_LogsRedactKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := New(Config{BaseURL: srv.URL, Logger: observe.NewLoggerWithWriter("debug", &buf)})
	if err := c.GetJSON(context.Background(), "/geocode", url.Values{"key": {"s3cr3t"}}, nil); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "s3cr3t") {
		t.Errorf("api key leaked into logs: %s", buf.String())
	}
}
