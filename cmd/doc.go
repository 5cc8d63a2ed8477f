// Package cmd implements the command-line interface for dayplan.
//
// This package provides the following commands:
//   - serve: Start the HTTP API server with background token refresh
//   - sync: Sync all accounts of a user once and print the outcomes
//   - schedule: Generate a daily schedule for a user
//   - version: Display version information
package cmd
