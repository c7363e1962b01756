// Package api defines the core types shared by the Glimpse front-end: the
// execution request sent to the remote runner, the result it returns, the
// envelope that wraps that result on the wire, canned language samples and
// structured API errors.
//
// The package has no external dependencies and performs no I/O.
//
// Core types:
//   - [ExecutionRequest]: source code, language and optional stdin for one run
//   - [ExecutionResult]: output and error text returned by the remote runner
//   - [Envelope]: the outer {statusCode, body} object wrapping a result
//   - [APIError]: structured error with type, param and message
//
// Wire format:
//
// The remote runner answers with an envelope whose body field is itself
// JSON-encoded text:
//
//	{"statusCode": 200, "body": "{\"output\":\"hi\\n\",\"error\":null}"}
//
// [Envelope.Result] unwraps it. A body that is already a JSON object is
// accepted as well, which is how the public documentation shows it.
package api
