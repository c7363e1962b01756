// Package web serves the glimpse front-end over HTTP.
//
// It renders the playground page at "/" and the API reference at "/docs",
// and exposes the same playground state as a small JSON API with a
// server-sent event stream for live updates. Each visitor gets their own
// playground controller through the session store; code runs are
// forwarded to the remote runner by the controller.
//
// HTTP-level middleware assigns request IDs, logs every request, recovers
// from handler panics and records Prometheus metrics.
package web
