// Package state keeps per-user conversation sessions for Telegram bots.
// It is domain-agnostic: the session payload is a type parameter, so the same
// stores serve any dialogue. Sessions are transient and may be lost on restart
// when the in-memory store is used.
package state
