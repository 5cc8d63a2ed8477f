// Package calendar aggregates meetings across calendar providers.
//
// The Aggregator routes each operation to the provider named in the account
// identity; GoogleSource and O365Source implement the provider contract over
// the Google Calendar API and Microsoft Graph. Every provider-native event is
// normalized into the common Meeting shape, including the response status,
// the real-meeting flag (more than one attendee) and the synced-busy flag
// (marker string present in the event body). Meetings are fetched per request
// and never persisted.
package calendar
