package apierr

import (
	"errors"
	"net/http"
	"testing"
	"time"

	perrors "github.com/jmgilman/go/errors"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "external",
			err:  External(404, "https://api.example.org/stations"),
			want: "https://api.example.org/stations responded with status code 404",
		},
		{
			name: "external without url",
			err:  External(500, ""),
			want: "unknown external host responded with status code 500",
		},
		{
			name: "format mismatch",
			err:  FormatMismatch("missing field lat", nil, "https://geo.example.org"),
			want: "could not parse response from https://geo.example.org: missing field lat",
		},
		{
			name: "internal",
			err:  Internal(MessageRateLimitExceeded, "https://api.example.org", nil),
			want: "couldn't send request to https://api.example.org: rate limit exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Codes(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		wantCode  perrors.ErrorCode
		retryable bool
	}{
		{"404", External(404, ""), perrors.CodeNotFound, false},
		{"400", External(400, ""), perrors.CodeInvalidInput, false},
		{"429", External(429, ""), perrors.CodeRateLimit, true},
		{"503", External(503, ""), perrors.CodeUnavailable, true},
		{"format", FormatMismatch("bad", nil, ""), perrors.CodeSchemaFailed, false},
		{"internal", Internal("boom", "", nil), perrors.CodeInternal, false},
		{"internal timeout", Internal(MessageTimeout, "", nil).WithCode(perrors.CodeTimeout), perrors.CodeTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Code(); got != tt.wantCode {
				t.Errorf("Code() = %s, want %s", got, tt.wantCode)
			}
			if got := tt.err.Retryable(); got != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestError_WithCodeCopies(t *testing.T) {
	orig := Internal(MessageCircuitOpen, "", nil)
	cp := orig.WithCode(perrors.CodeUnavailable)

	if orig.Code() != perrors.CodeInternal {
		t.Errorf("original code changed to %s", orig.Code())
	}
	if cp.Code() != perrors.CodeUnavailable {
		t.Errorf("copy code = %s", cp.Code())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("dial failed", "", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"external 404", External(404, ""), http.StatusNotFound},
		{"external 502", External(502, ""), http.StatusBadGateway},
		{"external 500", External(500, ""), http.StatusBadGateway},
		{"format", FormatMismatch("x", nil, ""), http.StatusBadGateway},
		{"rate limit", Internal(MessageRateLimitExceeded, "", nil).WithCode(perrors.CodeRateLimit), http.StatusTooManyRequests},
		{"circuit", Internal(MessageCircuitOpen, "", nil).WithCode(perrors.CodeUnavailable), http.StatusServiceUnavailable},
		{"timeout", Internal(MessageTimeout, "", nil).WithCode(perrors.CodeTimeout), http.StatusGatewayTimeout},
		{"internal", Internal("boom", "", nil), http.StatusInternalServerError},
		{"correlation timeout", &CorrelationTimeoutError{Registry: "coordinates", Key: "BPK", Timeout: time.Second}, http.StatusGatewayTimeout},
		{"service response", NewServiceResponseError("no coordinates", External(404, "")), http.StatusTooEarly},
		{"plain", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResponse(t *testing.T) {
	t.Run("external carries context", func(t *testing.T) {
		resp := Response(External(404, "https://api.example.org"))
		if resp.Code != string(perrors.CodeNotFound) {
			t.Errorf("Code = %s", resp.Code)
		}
		if resp.Context["url"] != "https://api.example.org" {
			t.Errorf("Context[url] = %v", resp.Context["url"])
		}
		if resp.Context["status"] != 404 {
			t.Errorf("Context[status] = %v", resp.Context["status"])
		}
	})

	t.Run("correlation timeout", func(t *testing.T) {
		resp := Response(&CorrelationTimeoutError{Registry: "weather", Key: "BPK:1200", Timeout: time.Second})
		if resp.Code != string(perrors.CodeTimeout) {
			t.Errorf("Code = %s", resp.Code)
		}
		if resp.Context["key"] != "BPK:1200" {
			t.Errorf("Context[key] = %v", resp.Context["key"])
		}
	})

	t.Run("service response hides cause", func(t *testing.T) {
		resp := Response(NewServiceResponseError("no weather", errors.New("secret detail")))
		if resp.Message != "no weather" {
			t.Errorf("Message = %q", resp.Message)
		}
	})

	t.Run("unknown error", func(t *testing.T) {
		resp := Response(errors.New("database password is hunter2"))
		if resp.Message != "internal error" {
			t.Errorf("Message = %q", resp.Message)
		}
	})

	t.Run("nil", func(t *testing.T) {
		if Response(nil) != nil {
			t.Error("Response(nil) != nil")
		}
	})
}

func TestCorrelationTimeoutError(t *testing.T) {
	err := &CorrelationTimeoutError{Registry: "coordinates", Key: "BPK", Timeout: 30 * time.Second}
	want := `coordinates: no response for "BPK" within 30s`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
