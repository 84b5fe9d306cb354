// Package health reports whether the service can answer requests.
//
// Checkers cover the pieces railops depends on: the gateway's circuit
// breakers, Redis, and the correlation registries' backlogs. An open
// breaker or a long backlog degrades the service; an unreachable Redis makes
// it unhealthy.
//
//	agg := health.NewAggregator(health.AggregatorConfig{Logger: logger})
//	agg.Register(health.NewGatewayChecker(gw))
//	agg.Register(health.NewRedisChecker("redis", rdb))
//	agg.Register(health.NewBacklogChecker(coordinates, health.BacklogConfig{}))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//
// /healthz is a liveness probe, /readyz fails only when a check is unhealthy,
// /health and /health/{name} return the results as JSON.
package health
