// Package store persists provider account credentials and reconciled task
// records in a relational database (SQLite via gorm).
//
// Accounts are keyed by the composite identity (user, provider, account
// email); the first account created for a user becomes the primary one.
// Credential writes are upserts with partial-update semantics, shared by the
// interactive authorization path and the background token refresher so the
// two can never diverge.
//
// Tasks carry a dense zero-based position within their (user, list_type)
// partition. Multi-row position shifts for a move or reorder run inside one
// transaction; operations on different partitions or different accounts do
// not block each other.
package store
