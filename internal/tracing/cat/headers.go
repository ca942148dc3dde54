package cat

// Header names used by cross-application tracing.
const (
	// HeaderID carries the caller's obfuscated cross process id.
	HeaderID = "X-NewRelic-ID"

	// HeaderTransaction carries the caller's obfuscated JSON array
	// [guid, recordTransactionTrace, tripID, pathHash].
	HeaderTransaction = "X-NewRelic-Transaction"

	// HeaderAppData is set on responses by a traced callee. Its obfuscated JSON
	// array is [crossProcessID, transactionName, queueTime, responseTime,
	// contentLength, guid, recordTransactionTrace].
	HeaderAppData = "X-NewRelic-App-Data"

	// HeaderSynthetics is forwarded untouched on every outbound request.
	HeaderSynthetics = "X-NewRelic-Synthetics"
)
