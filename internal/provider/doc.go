// Package provider defines the capability contract shared by every task and
// calendar provider, the account identity that keys credentials, and the
// error taxonomy that separates "needs interactive auth" from transient and
// fatal failures.
//
// Three distinguishable outcomes flow uniformly from every provider
// operation:
//
//   - success, possibly with an AuthRedirect value when the account needs
//     the user to walk through an interactive authorization flow
//   - TransientError for network, rate-limit, and 5xx-class failures, which
//     are left for a later retry and never touch the needs_reauth flag
//   - FatalAuthError for rejected refresh tokens and invalid credentials,
//     which flags the account for reauthorization
//
// DataError covers malformed payloads on individual items; a bad item is
// skipped, not fatal to its fetch.
package provider
