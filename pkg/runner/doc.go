// Package runner is the HTTP client for the remote code-execution endpoint.
//
// A run is a single POST of an [api.ExecutionRequest] as JSON. The endpoint
// answers with an envelope whose body is JSON-encoded text; [Client.Run]
// unwraps it into an [api.ExecutionResult]. Errors reported by the remote
// side (syntax errors, unsupported language, oversized payloads) are not Go
// errors: they arrive in the result's Error field. Go errors are reserved
// for failures to obtain a result at all, classified by the sentinels
// [ErrTransport], [ErrEnvelope] and [ErrStatus].
//
// The client never retries and never caches: identical requests are always
// re-sent.
package runner
