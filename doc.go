// Package session provides the credential and session lifecycle primitives
// for multi-tenant backends: JWT access-token issuance and verification with
// dual-secret rotation, single-use tokens (email verification, password
// reset, invitations), and refresh-token session management with rotation,
// revocation, and cleanup.
//
// Access tokens:
//   - TokenCodec signs short-lived HS256 tokens carrying a strict claims
//     schema (uid, email, role, status, token version). Verification tries
//     the current secret first and falls back to the previous secret when one
//     is configured, so keys rotate without invalidating live sessions.
//
// Single-use tokens:
//   - SingleUseToken rows move through pending, used, and deprecated states;
//     expiry is derived at validation time. Issuing a token for a
//     (user, type) pair deprecates any prior pending token in the same
//     transaction, and consumption is transactional with the mutation it
//     authorizes so a crash cannot be replayed.
//
// Refresh tokens:
//   - RefreshTokenManager persists only a SHA-256 digest of the raw token.
//     Every exchange rotates: the presented token is atomically revoked and a
//     fresh pair is issued, so two racing exchanges cannot both succeed.
//
// Request gating:
//   - middleware/gateware builds go-router middleware from a status predicate
//     and a role predicate, with an optional per-request token-version check
//     against the user store for instantaneous global logout.
package session
