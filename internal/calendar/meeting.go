package calendar

import "time"

// SyncedBusyMarker tags events that were created by cross-calendar busy
// syncing. Its presence in an event body classifies the event as a synced
// placeholder rather than a real commitment.
const SyncedBusyMarker = "[SYNCED-BUSY]"

// Normalized response status values.
const (
	ResponseAccepted    = "accepted"
	ResponseDeclined    = "declined"
	ResponseTentative   = "tentative"
	ResponseNeedsAction = "needsAction"
)

// Meeting is the provider-independent event shape. Meetings are fetched per
// request and never persisted.
type Meeting struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Location       string    `json:"location,omitempty"`
	ResponseStatus string    `json:"response_status"`
	IsOrganizer    bool      `json:"is_organizer"`

	// IsRealMeeting is true when the event has more than one attendee.
	IsRealMeeting bool `json:"is_real_meeting"`

	// IsSyncedBusy is true when the event body carries SyncedBusyMarker.
	IsSyncedBusy bool `json:"is_synced_busy"`

	AttendeeCount int `json:"attendee_count,omitempty"`
}

// NewMeeting carries the fields for creating a calendar event.
type NewMeeting struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// BusyBlock describes a placeholder event mirroring a meeting from another
// calendar. The original event id is stored on the created event so repeat
// syncs can find blocks they already created.
type BusyBlock struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	OriginalEventID string    `json:"original_event_id"`
}

// relevant reports whether an event matters for scheduling: either a real
// meeting or a synced busy placeholder. Solo events like reminders are
// dropped during normalization.
func relevant(m Meeting) bool {
	return m.IsRealMeeting || m.IsSyncedBusy
}
