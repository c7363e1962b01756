// Package session keeps one playground controller per visitor.
//
// Visitors are identified by a random UUID stored in a cookie. Controllers
// live in memory only: the store evicts the least recently used entry when
// it is full and drops entries that have been idle for longer than the
// configured TTL. Nothing survives a restart.
package session
