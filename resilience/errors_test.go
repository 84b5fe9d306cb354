package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestRejectedError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantStage Stage
		wantOK    bool
		wantIs    error
		wantMsg   string
	}{
		{
			name:      "named chain",
			err:       &RejectedError{Chain: "getWeatherInfo", Stage: StageBreaker, Err: ErrCircuitOpen},
			wantStage: StageBreaker,
			wantOK:    true,
			wantIs:    ErrCircuitOpen,
			wantMsg:   "getWeatherInfo breaker: resilience: circuit breaker is open",
		},
		{
			name:      "wrapped further",
			err:       fmt.Errorf("geocode: %w", &RejectedError{Stage: StageRateLimit, Err: ErrRateLimitExceeded}),
			wantStage: StageRateLimit,
			wantOK:    true,
			wantIs:    ErrRateLimitExceeded,
			wantMsg:   "geocode: rate_limit: resilience: rate limit exceeded",
		},
		{
			name:    "plain failure",
			err:     errTransient,
			wantIs:  errTransient,
			wantMsg: errTransient.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage, ok := RejectedBy(tt.err)
			if stage != tt.wantStage || ok != tt.wantOK {
				t.Errorf("RejectedBy() = (%q, %v), want (%q, %v)", stage, ok, tt.wantStage, tt.wantOK)
			}
			if !errors.Is(tt.err, tt.wantIs) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.wantIs)
			}
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}
