// Package auth guards the programmatic surfaces of the front-end (the JSON
// run API and the MCP endpoint) with bearer credentials.
//
// Authentication uses a chain of authenticators with three-outcome voting:
// each returns Yes (identity found), No (credentials invalid) or Abstain
// (cannot handle the credentials). A request on which every authenticator
// abstains is rejected.
//
// The browser playground stays anonymous and is only rate limited.
package auth
