/*
Package httpclient instruments outbound HTTP calls.

Transport wraps any http.RoundTripper: every request whose context carries a
transaction is timed as an external request segment, gets CAT request
headers and has its response checked for CAT app data.

Client is a resty client built on that transport with rate limiting and a
circuit breaker. NewRetryable returns a go-retryablehttp client on the same
transport, so each attempt is its own segment.

	client := httpclient.NewClient(httpclient.DefaultConfig())
	resp, err := client.Do(tracing.NewContext(ctx, txn), http.MethodGet, "https://api.example.com/items")
*/
package httpclient
