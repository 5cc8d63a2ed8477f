package calendar

// Wire types for the Microsoft Graph event surface.

type eventCollection struct {
	Value []graphEvent `json:"value"`
}

type graphEvent struct {
	ID                 string                  `json:"id,omitempty"`
	Subject            string                  `json:"subject,omitempty"`
	Body               *graphItemBody          `json:"body,omitempty"`
	Start              *graphDateTimeZone      `json:"start,omitempty"`
	End                *graphDateTimeZone      `json:"end,omitempty"`
	Location           *graphLocation          `json:"location,omitempty"`
	Attendees          []graphAttendee         `json:"attendees,omitempty"`
	Organizer          *graphRecipient         `json:"organizer,omitempty"`
	ShowAs             string                  `json:"showAs,omitempty"`
	Sensitivity        string                  `json:"sensitivity,omitempty"`
	ExtendedProperties []graphExtendedProperty `json:"singleValueExtendedProperties,omitempty"`
}

type graphItemBody struct {
	ContentType string `json:"contentType,omitempty"`
	Content     string `json:"content,omitempty"`
}

type graphDateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type graphLocation struct {
	DisplayName string `json:"displayName,omitempty"`
}

type graphEmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphAttendee struct {
	EmailAddress graphEmailAddress    `json:"emailAddress"`
	Type         string               `json:"type,omitempty"`
	Status       *graphResponseStatus `json:"status,omitempty"`
}

type graphResponseStatus struct {
	Response string `json:"response,omitempty"`
	Time     string `json:"time,omitempty"`
}

type graphExtendedProperty struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}
