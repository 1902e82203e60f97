// Package identity is the user-credential persistence boundary.
//
// Users carry two identifiers: an internal id used for foreign keys and never
// exposed over HTTP, and a stable public id that appears as the token subject.
// Users are soft-deactivated (is_active=false), never hard-deleted; session
// cleanup on deactivation is the session layer's job.
package identity
