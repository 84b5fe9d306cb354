package server

import (
	"encoding/json"
	"errors"
	"net/http"

	perrors "github.com/jmgilman/go/errors"

	"github.com/jonwraymond/railops/apierr"
	"github.com/jonwraymond/railops/auth"
	"github.com/jonwraymond/railops/cache"
	"github.com/jonwraymond/railops/collector"
	"github.com/jonwraymond/railops/observe"
)

var (
	// ErrMissingCoordinates is returned by New without a coordinates source.
	ErrMissingCoordinates = errors.New("server: coordinates source is required")

	// ErrStationNotFound is reported when the geocoder cannot locate a station.
	ErrStationNotFound = errors.New("server: station not found")

	// ErrBadRequest marks malformed query parameters.
	ErrBadRequest = errors.New("server: bad request")
)

// classify returns the status and public body for err.
func classify(err error) (int, *perrors.ErrorResponse) {
	switch {
	case errors.Is(err, ErrStationNotFound):
		return http.StatusNotFound, perrors.ToJSON(perrors.New(perrors.CodeNotFound, err.Error()))
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, collector.ErrEmptyStation),
		errors.Is(err, collector.ErrMissingTime),
		errors.Is(err, collector.ErrMissingEndpoint),
		errors.Is(err, cache.ErrUnknownTarget):
		return http.StatusBadRequest, perrors.ToJSON(perrors.New(perrors.CodeInvalidInput, err.Error()))
	}

	switch code := auth.StatusCode(err); code {
	case http.StatusUnauthorized:
		return code, perrors.ToJSON(perrors.New(perrors.CodeUnauthorized, "authentication required"))
	case http.StatusForbidden:
		return code, perrors.ToJSON(perrors.New(perrors.CodeForbidden, "access denied"))
	}

	return apierr.HTTPStatus(err), apierr.Response(err)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			observe.F("method", r.Method), observe.F("path", r.URL.Path),
			observe.F("status", status), observe.F("error", err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
