// Package session implements the server-side session lifecycle behind the
// rotating refresh-token model.
//
// Every live refresh token is bound to exactly one auth_sessions row through
// its jti claim. Refresh rotation replaces the row's jti in place under a row
// lock, so a stale refresh token no longer matches any row and fails closed.
// Revocation is terminal; expired rows are physically deleted by the Pruner.
//
// Access and refresh tokens are HS256 JWTs with fixed per-kind audiences.
// HTTP transport is intentionally out of scope here.
package session
