package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/railops/collector"
)

func (s *Server) coordinates(w http.ResponseWriter, r *http.Request) error {
	c, err := s.locate(r.Context(), r.PathValue("station"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

// locate resolves station and treats an unlocated answer as not found.
func (s *Server) locate(ctx context.Context, station string) (collector.Coordinates, error) {
	c, err := s.config.Coordinates.Coordinates(ctx, station)
	if err != nil {
		return c, err
	}
	if !c.Useful() {
		return c, fmt.Errorf("%w: %q", ErrStationNotFound, strings.TrimSpace(station))
	}
	return c, nil
}

func (s *Server) weather(w http.ResponseWriter, r *http.Request) error {
	station := strings.TrimSpace(r.PathValue("station"))

	at := s.config.Now()
	if raw := r.URL.Query().Get("time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("%w: time must be RFC 3339: %q", ErrBadRequest, raw)
		}
		at = t
	}

	c, err := s.locate(r.Context(), station)
	if err != nil {
		return err
	}

	info, err := s.config.Weather.Weather(r.Context(), collector.WeatherRequest{
		Station:   station,
		Latitude:  *c.Latitude,
		Longitude: *c.Longitude,
		Time:      at,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, info)
	return nil
}

func (s *Server) timetable(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" || to == "" {
		return fmt.Errorf("%w: from and to are required", ErrBadRequest)
	}

	date := s.config.Now()
	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD: %q", ErrBadRequest, raw)
		}
		date = d
	}

	var places [2]collector.Place
	g, ctx := errgroup.WithContext(r.Context())
	for i, name := range []string{from, to} {
		g.Go(func() error {
			c, err := s.locate(ctx, name)
			if err != nil {
				return err
			}
			places[i] = collector.Place{Name: name, Latitude: *c.Latitude, Longitude: *c.Longitude}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tt, err := s.config.Timetable.Timetable(r.Context(), collector.TimetableQuery{
		From: places[0],
		To:   places[1],
		Date: date,
	})
	if err != nil {
		return err
	}

	if train := q.Get("train"); train != "" {
		writeJSON(w, http.StatusOK, map[string]any{"train": train, "legs": tt.Train(train)})
		return nil
	}
	writeJSON(w, http.StatusOK, tt)
	return nil
}

type evictResponse struct {
	Evicted []string `json:"evicted"`
}

func (s *Server) evict(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	if name := r.URL.Query().Get("cache"); name != "" {
		if err := s.config.Caches.Evict(ctx, name); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, evictResponse{Evicted: []string{name}})
		return nil
	}

	if err := s.config.Caches.EvictNow(ctx); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, evictResponse{Evicted: s.config.Caches.Names()})
	return nil
}
