// Package gateway wraps outbound upstream calls with admission control,
// failure isolation and bounded retry.
//
// Each logical operation ("getTimetable", "getWeatherInfo", ...) is bound to
// a Policy. Policies are created on first use from the gateway
// configuration and shared by every caller, so one operation always sees
// the same rate limiter and circuit breaker.
//
// A call is composed, outermost first, as
//
//	rate limiter -> bulkhead -> circuit breaker -> retry -> attempt timeout -> raw
//
// so the breaker records one outcome per retried call. Whatever the raw
// call returns, Call hands back either a value or an *apierr.Error.
//
// # Usage
//
//	gw := gateway.New(gateway.Config{
//	    Policies: map[string]gateway.PolicyConfig{
//	        "getTimetable": {Rate: 5, MaxAttempts: 3},
//	    },
//	})
//	tt, err := gateway.Call(ctx, gw, "getTimetable", func(ctx context.Context) (Timetable, error) {
//	    var out Timetable
//	    return out, client.GetJSON(ctx, "/timetable", q, &out)
//	})
package gateway
