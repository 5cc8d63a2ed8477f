package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/teemow/dayplan/internal/google"
	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

// O365AuthorizeURL is the application route that starts the Microsoft
// authorization flow.
const O365AuthorizeURL = "/auth/o365/authorize"

// graphTimeLayout is the timestamp format Microsoft Graph uses in
// dateTimeTimeZone values.
const graphTimeLayout = "2006-01-02T15:04:05.0000000"

// O365Source serves calendar operations through the Microsoft Graph API.
type O365Source struct {
	accounts   *store.AccountStore
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewO365Source creates an Office 365 calendar source.
func NewO365Source(accounts *store.AccountStore, logger *slog.Logger) *O365Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &O365Source{
		accounts:   accounts,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://graph.microsoft.com/v1.0",
		logger:     logging.WithProvider(logger, provider.O365),
	}
}

// Name returns the provider name.
func (s *O365Source) Name() string { return provider.O365 }

// Authenticate checks stored credentials, refreshing silently when possible.
func (s *O365Source) Authenticate(ctx context.Context, id provider.Identity) (*provider.AuthRedirect, error) {
	account, err := s.accounts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &provider.AuthRedirect{Provider: provider.O365, URL: O365AuthorizeURL}, nil
	}
	if err != nil {
		return nil, err
	}

	if account.AccessToken == "" || account.NeedsReauth {
		return &provider.AuthRedirect{Provider: provider.O365, URL: O365AuthorizeURL}, nil
	}

	if account.ExpiresAt != nil && account.ExpiresAt.Before(time.Now()) {
		if !account.HasRefreshToken() {
			return &provider.AuthRedirect{Provider: provider.O365, URL: O365AuthorizeURL}, nil
		}
		if err := s.RefreshToken(ctx, id); err != nil {
			if provider.IsFatalAuth(err) {
				if markErr := s.accounts.SetNeedsReauth(ctx, id, true); markErr != nil {
					s.logger.Error("flagging account for reauth failed", logging.Err(markErr))
				}
				return &provider.AuthRedirect{Provider: provider.O365, URL: O365AuthorizeURL}, nil
			}
			return nil, err
		}
	}

	return nil, nil
}

// GetMeetings fetches the account's calendar view for the coming days and
// normalizes it. Events that are neither real meetings nor synced busy blocks
// are dropped.
func (s *O365Source) GetMeetings(ctx context.Context, id provider.Identity) ([]Meeting, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := url.Values{}
	query.Set("startDateTime", now.Format(time.RFC3339))
	query.Set("endDateTime", now.Add(meetingLookahead).Format(time.RFC3339))
	query.Set("$select", "id,subject,start,end,attendees,organizer,body,location")
	query.Set("$top", "100")

	var view eventCollection
	if err := s.doJSON(ctx, account, http.MethodGet, "/me/calendarView?"+query.Encode(), nil, &view); err != nil {
		return nil, err
	}

	var meetings []Meeting
	for _, event := range view.Value {
		meeting, err := graphToMeeting(event, id.Email)
		if err != nil {
			s.logger.Warn("skipping malformed event",
				slog.String("event_id", event.ID), logging.Err(err))
			continue
		}
		if relevant(meeting) {
			meetings = append(meetings, meeting)
		}
	}
	return meetings, nil
}

// CreateMeeting creates an event in the account's default calendar.
func (s *O365Source) CreateMeeting(ctx context.Context, id provider.Identity, meeting NewMeeting) (*Meeting, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	event := graphEvent{
		Subject:  meeting.Title,
		Body:     &graphItemBody{ContentType: "text", Content: meeting.Description},
		Start:    graphTime(meeting.Start),
		End:      graphTime(meeting.End),
		Location: &graphLocation{DisplayName: meeting.Location},
	}
	for _, email := range meeting.Attendees {
		event.Attendees = append(event.Attendees, graphAttendee{
			EmailAddress: graphEmailAddress{Address: email},
			Type:         "required",
		})
	}

	var created graphEvent
	if err := s.doJSON(ctx, account, http.MethodPost, "/me/events", event, &created); err != nil {
		return nil, err
	}

	normalized, err := graphToMeeting(created, id.Email)
	if err != nil {
		return nil, err
	}
	return &normalized, nil
}

// CreateBusyBlock creates a private placeholder event marked as busy,
// carrying the synced busy marker and the mirrored event's id in an extended
// property.
func (s *O365Source) CreateBusyBlock(ctx context.Context, id provider.Identity, block BusyBlock) (string, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return "", err
	}

	event := graphEvent{
		Subject: "Busy",
		Body: &graphItemBody{
			ContentType: "text",
			Content:     SyncedBusyMarker + " This event was synced from another calendar.",
		},
		Start:       graphTime(block.Start),
		End:         graphTime(block.End),
		ShowAs:      "busy",
		Sensitivity: "private",
		ExtendedProperties: []graphExtendedProperty{{
			ID:    "String {00020329-0000-0000-C000-000000000046} Name original_event_id",
			Value: block.OriginalEventID,
		}},
	}

	var created graphEvent
	if err := s.doJSON(ctx, account, http.MethodPost, "/me/events", event, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// RefreshToken refreshes the account's access token against the Microsoft
// identity platform and persists the result.
func (s *O365Source) RefreshToken(ctx context.Context, id provider.Identity) error {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return err
	}
	if !account.HasRefreshToken() {
		return &provider.FatalAuthError{
			Op:  "refresh_token",
			Err: errors.New("no refresh token stored"),
		}
	}

	conf := &oauth2.Config{
		ClientID:     account.ClientID,
		ClientSecret: account.ClientSecret,
		Endpoint:     microsoft.AzureADEndpoint("common"),
		Scopes:       account.ScopeList(),
	}
	if account.TokenURI != "" {
		conf.Endpoint.TokenURL = account.TokenURI
	}

	newToken, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken}).Token()
	if err != nil {
		return google.ClassifyRefreshError("refresh_token", err)
	}

	fields := store.AccountFields{AccessToken: store.Ptr(newToken.AccessToken)}
	if newToken.RefreshToken != "" {
		fields.RefreshToken = store.Ptr(newToken.RefreshToken)
	}
	if !newToken.Expiry.IsZero() {
		expiry := newToken.Expiry.UTC()
		fields.ExpiresAt = &expiry
	}
	_, err = s.accounts.Upsert(ctx, id, fields)
	return err
}

func (s *O365Source) doJSON(ctx context.Context, account *store.Account, method, path string, body, out any) error {
	op := fmt.Sprintf("graph %s %s", method, path)

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return provider.ClassifyTransportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.ClassifyTransportError(op, err)
	}

	if err := provider.ClassifyHTTPStatus(op, resp.StatusCode, string(payload)); err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return &provider.DataError{Op: op, Err: err}
		}
	}
	return nil
}

// mapGraphResponse maps Graph response values onto the normalized
// vocabulary. Unknown or absent values mean no response yet.
func mapGraphResponse(status string) string {
	switch status {
	case "accepted", "organizer":
		return ResponseAccepted
	case "declined":
		return ResponseDeclined
	case "tentativelyAccepted":
		return ResponseTentative
	case "notResponded", "none", "":
		return ResponseNeedsAction
	default:
		return ResponseNeedsAction
	}
}

// graphToMeeting normalizes a Graph event. The response status comes from the
// attendee entry matching the account.
func graphToMeeting(event graphEvent, selfEmail string) (Meeting, error) {
	meeting := Meeting{
		ID:             event.ID,
		Title:          event.Subject,
		ResponseStatus: ResponseNeedsAction,
		AttendeeCount:  len(event.Attendees),
		IsRealMeeting:  len(event.Attendees) > 1,
	}
	if event.Body != nil {
		meeting.IsSyncedBusy = strings.Contains(event.Body.Content, SyncedBusyMarker)
	}
	if event.Location != nil {
		meeting.Location = event.Location.DisplayName
	}

	start, err := parseGraphTime(event.Start)
	if err != nil {
		return Meeting{}, &provider.DataError{Op: "parse_start", Err: err}
	}
	end, err := parseGraphTime(event.End)
	if err != nil {
		return Meeting{}, &provider.DataError{Op: "parse_end", Err: err}
	}
	meeting.Start, meeting.End = start, end

	if event.Organizer != nil {
		meeting.IsOrganizer = strings.EqualFold(event.Organizer.EmailAddress.Address, selfEmail)
	}
	for _, att := range event.Attendees {
		if strings.EqualFold(att.EmailAddress.Address, selfEmail) {
			if att.Status != nil {
				meeting.ResponseStatus = mapGraphResponse(att.Status.Response)
			}
			break
		}
	}
	if meeting.IsOrganizer && meeting.ResponseStatus == ResponseNeedsAction {
		meeting.ResponseStatus = ResponseAccepted
	}

	return meeting, nil
}

func parseGraphTime(dtz *graphDateTimeZone) (time.Time, error) {
	if dtz == nil || dtz.DateTime == "" {
		return time.Time{}, errors.New("missing event time")
	}
	t, err := time.Parse(graphTimeLayout, dtz.DateTime)
	if err != nil {
		// Graph omits fractional seconds on some tenants
		t, err = time.Parse("2006-01-02T15:04:05", dtz.DateTime)
	}
	return t, err
}

func graphTime(t time.Time) *graphDateTimeZone {
	return &graphDateTimeZone{
		DateTime: t.UTC().Format(graphTimeLayout),
		TimeZone: "UTC",
	}
}
