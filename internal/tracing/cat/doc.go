/*
Package cat implements the cross-application tracing header protocol.

A traced caller attaches two headers to outbound requests: its cross process
id, and a transaction header with its GUID, trip id and path hash. A traced
callee that trusts the caller answers with an app-data header describing the
callee transaction. Both sides share an encoding key.

# Wire format

Every header value is obfuscated the same way:

	obfuscate(plain, key) = base64.StdEncoding(plain[i] XOR key[i % len(key)])

The cross process id header carries the id itself; the other two carry JSON
arrays:

	X-NewRelic-Transaction  ["0123456789abcdef", false, "0123456789abcdef", "1a2b3c4d"]
	X-NewRelic-App-Data     ["1#2", "WebTransaction/Go/users", 0.0, 0.25, 512, "fedcba9876543210", false]

Values longer than 4KB are rejected before decoding. Decoding is total: any
input yields either a value or an error wrapping ErrMalformed, never a panic.

# Path hash

The path hash identifies the chain of applications a trip passed through:

	pathHash = rotl32(referringPathHash, 1) XOR uint32(md5(appName)[12:16])

rendered as eight lowercase hex digits, with a zero seed for the first hop.

The Codec is immutable after construction and safe for concurrent use.
*/
package cat
