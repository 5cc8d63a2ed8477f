// Package refresh runs the background token refresh scheduler.
//
// The scheduler wakes on a fixed interval and refreshes tokens for every
// account whose last sync is older than the staleness cutoff, skipping
// accounts that are flagged for reauthorization or have no refresh token.
// A rejected refresh flags the account; transient failures are left for the
// next cycle.
package refresh
