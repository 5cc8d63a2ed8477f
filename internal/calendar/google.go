package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/dayplan/internal/google"
	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

// GoogleAuthorizeURL is the application route that starts the Google
// authorization flow.
const GoogleAuthorizeURL = "/auth/google/authorize"

// meetingLookahead bounds how far ahead meeting fetches look.
const meetingLookahead = 7 * 24 * time.Hour

// GoogleSource serves calendar operations through the Google Calendar API.
type GoogleSource struct {
	accounts *store.AccountStore
	logger   *slog.Logger
}

// NewGoogleSource creates a Google calendar source.
func NewGoogleSource(accounts *store.AccountStore, logger *slog.Logger) *GoogleSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleSource{
		accounts: accounts,
		logger:   logging.WithProvider(logger, provider.Google),
	}
}

// Name returns the provider name.
func (s *GoogleSource) Name() string { return provider.Google }

// Authenticate checks stored credentials, silently refreshing an expired
// access token when a refresh token is available.
func (s *GoogleSource) Authenticate(ctx context.Context, id provider.Identity) (*provider.AuthRedirect, error) {
	account, err := s.accounts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &provider.AuthRedirect{Provider: provider.Google, URL: GoogleAuthorizeURL}, nil
	}
	if err != nil {
		return nil, err
	}

	if account.AccessToken == "" || account.NeedsReauth {
		return &provider.AuthRedirect{Provider: provider.Google, URL: GoogleAuthorizeURL}, nil
	}

	if account.ExpiresAt != nil && account.ExpiresAt.Before(time.Now()) {
		if !account.HasRefreshToken() {
			return &provider.AuthRedirect{Provider: provider.Google, URL: GoogleAuthorizeURL}, nil
		}
		if err := google.Refresh(ctx, s.accounts, id); err != nil {
			if provider.IsFatalAuth(err) {
				if markErr := s.accounts.SetNeedsReauth(ctx, id, true); markErr != nil {
					s.logger.Error("flagging account for reauth failed", logging.Err(markErr))
				}
				return &provider.AuthRedirect{Provider: provider.Google, URL: GoogleAuthorizeURL}, nil
			}
			return nil, err
		}
	}

	return nil, nil
}

// RefreshToken renews the stored access token using the refresh token.
func (s *GoogleSource) RefreshToken(ctx context.Context, id provider.Identity) error {
	return google.Refresh(ctx, s.accounts, id)
}

// GetMeetings fetches upcoming events from the primary calendar and
// normalizes them. Events that are neither real meetings nor synced busy
// blocks are dropped.
func (s *GoogleSource) GetMeetings(ctx context.Context, id provider.Identity) ([]Meeting, error) {
	svc, err := s.service(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	events, err := svc.Events.List("primary").
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.Add(meetingLookahead).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, classifyGoogle("list_events", err)
	}

	var meetings []Meeting
	for _, event := range events.Items {
		meeting, err := googleToMeeting(event, id.Email)
		if err != nil {
			s.logger.Warn("skipping malformed event",
				slog.String("event_id", event.Id), logging.Err(err))
			continue
		}
		if relevant(meeting) {
			meetings = append(meetings, meeting)
		}
	}
	return meetings, nil
}

// CreateMeeting inserts an event into the primary calendar.
func (s *GoogleSource) CreateMeeting(ctx context.Context, id provider.Identity, meeting NewMeeting) (*Meeting, error) {
	svc, err := s.service(ctx, id)
	if err != nil {
		return nil, err
	}

	event := &gcal.Event{
		Summary:     meeting.Title,
		Description: meeting.Description,
		Location:    meeting.Location,
		Start:       &gcal.EventDateTime{DateTime: meeting.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: meeting.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
	for _, email := range meeting.Attendees {
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return nil, classifyGoogle("insert_event", err)
	}

	normalized, err := googleToMeeting(created, id.Email)
	if err != nil {
		return nil, err
	}
	return &normalized, nil
}

// CreateBusyBlock inserts a private placeholder event carrying the synced
// busy marker and the id of the mirrored event.
func (s *GoogleSource) CreateBusyBlock(ctx context.Context, id provider.Identity, block BusyBlock) (string, error) {
	svc, err := s.service(ctx, id)
	if err != nil {
		return "", err
	}

	event := &gcal.Event{
		Summary:      "Busy",
		Description:  SyncedBusyMarker + " This event was synced from another calendar.",
		Start:        &gcal.EventDateTime{DateTime: block.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:          &gcal.EventDateTime{DateTime: block.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Transparency: "opaque",
		Visibility:   "private",
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{"original_event_id": block.OriginalEventID},
		},
	}

	created, err := svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return "", classifyGoogle("insert_busy_block", err)
	}
	return created.Id, nil
}

func (s *GoogleSource) service(ctx context.Context, id provider.Identity) (*gcal.Service, error) {
	client, err := google.HTTPClient(ctx, s.accounts, id)
	if err != nil {
		return nil, err
	}
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return svc, nil
}

// classifyGoogle maps Google API errors onto the provider taxonomy.
func classifyGoogle(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return provider.ClassifyHTTPStatus(op, apiErr.Code, apiErr.Message)
	}
	return provider.ClassifyTransportError(op, err)
}

// googleToMeeting normalizes a Google Calendar event. The response status
// comes from the attendee entry matching the account; Google already uses the
// normalized status vocabulary.
func googleToMeeting(event *gcal.Event, selfEmail string) (Meeting, error) {
	meeting := Meeting{
		ID:             event.Id,
		Title:          event.Summary,
		Location:       event.Location,
		ResponseStatus: ResponseNeedsAction,
		AttendeeCount:  len(event.Attendees),
		IsRealMeeting:  len(event.Attendees) > 1,
		IsSyncedBusy:   strings.Contains(event.Description, SyncedBusyMarker),
	}

	start, err := parseGoogleTime(event.Start)
	if err != nil {
		return Meeting{}, &provider.DataError{Op: "parse_start", Err: err}
	}
	end, err := parseGoogleTime(event.End)
	if err != nil {
		return Meeting{}, &provider.DataError{Op: "parse_end", Err: err}
	}
	meeting.Start, meeting.End = start, end

	if event.Organizer != nil {
		meeting.IsOrganizer = event.Organizer.Self ||
			strings.EqualFold(event.Organizer.Email, selfEmail)
	}
	for _, att := range event.Attendees {
		if att.Self || strings.EqualFold(att.Email, selfEmail) {
			if att.ResponseStatus != "" {
				meeting.ResponseStatus = att.ResponseStatus
			}
			break
		}
	}
	// Organizers without an attendee entry count as accepted
	if meeting.IsOrganizer && meeting.ResponseStatus == ResponseNeedsAction {
		meeting.ResponseStatus = ResponseAccepted
	}

	return meeting, nil
}

// parseGoogleTime reads an event boundary, handling both timed and all-day
// events.
func parseGoogleTime(edt *gcal.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, errors.New("missing event time")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	if edt.Date != "" {
		return time.Parse("2006-01-02", edt.Date)
	}
	return time.Time{}, errors.New("event time has neither dateTime nor date")
}
