package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.local")
	t.Setenv("REDIS_PORT", "6379")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "localhost:6379", want: "localhost:6379"},
		{name: "braced", in: "${REDIS_HOST}:${REDIS_PORT}", want: "cache.local:6379"},
		{name: "bare", in: "$REDIS_HOST", want: "cache.local"},
		{name: "escaped dollar", in: "$$${REDIS_PORT}", want: "$6379"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if err != nil {
				t.Fatalf("ExpandEnvStrict() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandEnvStrict() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnvStrict_MissingVarErrors(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := ExpandEnvStrict("a=${PRESENT} b=${MISSING_B} c=${MISSING_A} d=${MISSING_B}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if !strings.HasSuffix(err.Error(), "MISSING_A, MISSING_B") {
		t.Errorf("error = %q, want sorted unique names", err)
	}
}
