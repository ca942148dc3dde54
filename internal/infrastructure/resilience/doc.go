/*
Package resilience provides a circuit breaker for calls the tracer makes on
the host's behalf, such as explain plans against the application database.

A Breaker starts closed. Once Trip approves the failure counts it opens and
rejects calls with ErrCircuitOpen for Cooldown, then lets Probes calls
through half-open before closing again.

	Closed --[Trip]-> Open --[Cooldown]-> Half-Open --[Probes succeed]-> Closed
	                                          |
	                                       [failure]
	                                          v
	                                         Open

Do never lets a panic escape; it is reported as ErrPanicked and counted as
a failure.

	breaker := resilience.New("explain", resilience.Settings{
		Cooldown: 30 * time.Second,
		Trip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	plan, err := resilience.Call(ctx, breaker, stmt.Explain)
*/
package resilience
