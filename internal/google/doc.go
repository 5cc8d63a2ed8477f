// Package google builds OAuth2 configs and token sources for Google
// provider accounts from stored credentials. Refreshed tokens are persisted
// through the same account upsert used by interactive authorization, so the
// request path and the background refresher share one write path.
package google
