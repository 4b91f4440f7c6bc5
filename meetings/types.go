package meetings

import "time"

// Meeting represents a scheduled or instant Meetwire meeting.
type Meeting struct {
	// ID is the server-assigned meeting identifier (e.g. "m_8f2a").
	ID string `json:"id"`

	// Topic is the meeting title shown to invitees.
	Topic string `json:"topic"`

	// Agenda is an optional free-text description.
	Agenda string `json:"agenda,omitempty"`

	// HostID is the user id of the meeting host.
	HostID string `json:"host_id"`

	// StartTime is when the meeting is scheduled to begin.
	StartTime time.Time `json:"start_time"`

	// Duration is the planned length in minutes.
	Duration int `json:"duration"`

	// Timezone is the IANA timezone the start time is rendered in.
	Timezone string `json:"timezone,omitempty"`

	// JoinURL is the URL participants use to join.
	JoinURL string `json:"join_url,omitempty"`

	// Passcode protects entry when set.
	Passcode string `json:"passcode,omitempty"`

	// Settings holds per-meeting toggles.
	Settings *Settings `json:"settings,omitempty"`

	// CreatedAt is when the meeting was created.
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Settings holds per-meeting configuration toggles.
type Settings struct {
	// WaitingRoom holds participants until the host admits them.
	WaitingRoom bool `json:"waiting_room"`

	// JoinBeforeHost lets participants enter before the host.
	JoinBeforeHost bool `json:"join_before_host"`

	// AutoRecord starts cloud recording when the meeting starts.
	AutoRecord bool `json:"auto_record"`

	// MuteOnEntry mutes participants as they join.
	MuteOnEntry bool `json:"mute_on_entry"`
}

// CreateInput is the request body for creating a meeting.
type CreateInput struct {
	Topic     string    `json:"topic"`
	Agenda    string    `json:"agenda,omitempty"`
	StartTime time.Time `json:"start_time,omitzero"`
	Duration  int       `json:"duration,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	Passcode  string    `json:"passcode,omitempty"`
	Settings  *Settings `json:"settings,omitempty"`
}

// UpdateInput is the request body for updating a meeting. Nil and zero
// fields are omitted from the request and left unchanged on the server.
type UpdateInput struct {
	Topic     string    `json:"topic,omitempty"`
	Agenda    string    `json:"agenda,omitempty"`
	StartTime time.Time `json:"start_time,omitzero"`
	Duration  int       `json:"duration,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	Settings  *Settings `json:"settings,omitempty"`
}

// ListOptions narrows and pages a meeting listing.
type ListOptions struct {
	// UserID limits results to meetings hosted by one user.
	UserID string

	// From and To bound the start time window.
	From time.Time
	To   time.Time

	// PageSize caps the number of results per page.
	PageSize int

	// PageToken resumes a listing from a previous page.
	PageToken string
}

// Page is one page of a meeting listing.
type Page struct {
	Meetings []Meeting `json:"meetings"`

	// NextPageToken is empty on the last page.
	NextPageToken string `json:"next_page_token"`
}

// Recording is a finished cloud recording of a meeting.
type Recording struct {
	ID          string    `json:"id"`
	MeetingID   string    `json:"meeting_id"`
	State       string    `json:"state"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time,omitzero"`
	DownloadURL string    `json:"download_url,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
}
