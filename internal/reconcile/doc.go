// Package reconcile diffs fetched provider tasks against the local store.
//
// The Engine processes one (user, provider) pair: unknown tasks are created
// at the end of the unprioritized list, changed tasks are detected through a
// content hash with a cheap status-only fast path, and tasks absent from the
// fetch are deleted strictly after all creates and updates. The Orchestrator
// runs the engine across all of a user's accounts and reports one outcome per
// account, tolerating partial failure.
package reconcile
