package webhook

import (
	"encoding/json"
	"time"
)

// Known event types delivered by the Meetwire platform. The set is open:
// the server may introduce new types ahead of client updates, which decode
// as *UnknownEvent rather than failing.
const (
	EventMeetingCreated    = "meeting.created"
	EventMeetingUpdated    = "meeting.updated"
	EventMeetingDeleted    = "meeting.deleted"
	EventMeetingStarted    = "meeting.started"
	EventMeetingEnded      = "meeting.ended"
	EventRecordingReady    = "recording.ready"
	EventParticipantJoined = "participant.joined"
	EventParticipantLeft   = "participant.left"
)

// Envelope is the outer wrapper of one webhook delivery. It is constructed
// by Parse from verified bytes and never mutated afterwards.
type Envelope struct {
	// EventType selects the shape of Data.
	EventType string `json:"event_type"`

	// EventID is unique per delivery. Redeliveries reuse the same id.
	EventID string `json:"event_id"`

	// Timestamp is the RFC3339 time the event occurred, as sent by the
	// server. It is kept as a string on the wire; Time parses it.
	Timestamp string `json:"timestamp"`

	// PartnerAppID identifies the partner application the delivery is for.
	PartnerAppID string `json:"partner_app_id"`

	// ForUser is set when the event concerns a specific platform user.
	ForUser *ForUser `json:"for_user,omitempty"`

	// Data is the typed payload matching EventType, or *UnknownEvent for
	// types this client does not know.
	Data EventData `json:"-"`

	// RawData is the undecoded payload, kept for consumers that need
	// fields beyond the typed view.
	RawData json.RawMessage `json:"data"`

	// Extra holds top-level fields outside the envelope schema.
	Extra map[string]json.RawMessage `json:"-"`
}

// Time parses the envelope timestamp. The zero time is returned when the
// timestamp does not parse as RFC3339.
func (e *Envelope) Time() time.Time {
	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ForUser identifies the platform user an event concerns.
type ForUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// EventData is implemented by every typed event payload.
type EventData interface {
	eventData()
}

// Meeting is the meeting resource embedded in meeting.* event payloads.
type Meeting struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	HostID    string `json:"host_id"`
	JoinURL   string `json:"join_url,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

// MeetingCreated is the payload for meeting.created.
type MeetingCreated struct {
	Meeting Meeting `json:"meeting"`
}

// MeetingUpdated is the payload for meeting.updated.
type MeetingUpdated struct {
	Meeting Meeting `json:"meeting"`
	// ChangedFields lists the meeting fields the update touched.
	ChangedFields []string `json:"changed_fields,omitempty"`
}

// MeetingDeleted is the payload for meeting.deleted.
type MeetingDeleted struct {
	MeetingID string `json:"meeting_id"`
}

// MeetingStarted is the payload for meeting.started.
type MeetingStarted struct {
	Meeting Meeting `json:"meeting"`
}

// MeetingEnded is the payload for meeting.ended.
type MeetingEnded struct {
	Meeting  Meeting `json:"meeting"`
	Duration int     `json:"duration,omitempty"`
}

// RecordingReady is the payload for recording.ready.
type RecordingReady struct {
	MeetingID   string `json:"meeting_id"`
	RecordingID string `json:"recording_id"`
	DownloadURL string `json:"download_url"`
	FileSize    int64  `json:"file_size,omitempty"`
}

// ParticipantJoined is the payload for participant.joined.
type ParticipantJoined struct {
	MeetingID   string  `json:"meeting_id"`
	Participant ForUser `json:"participant"`
	JoinedAt    string  `json:"joined_at,omitempty"`
}

// ParticipantLeft is the payload for participant.left.
type ParticipantLeft struct {
	MeetingID   string  `json:"meeting_id"`
	Participant ForUser `json:"participant"`
	LeftAt      string  `json:"left_at,omitempty"`
}

// UnknownEvent carries the raw payload of an event type this client does
// not recognize, so new server-side types degrade gracefully.
type UnknownEvent struct {
	Raw json.RawMessage
}

func (*MeetingCreated) eventData()    {}
func (*MeetingUpdated) eventData()    {}
func (*MeetingDeleted) eventData()    {}
func (*MeetingStarted) eventData()    {}
func (*MeetingEnded) eventData()      {}
func (*RecordingReady) eventData()    {}
func (*ParticipantJoined) eventData() {}
func (*ParticipantLeft) eventData()   {}
func (*UnknownEvent) eventData()      {}

// decodeEventData decodes raw into the typed payload for eventType.
func decodeEventData(eventType string, raw json.RawMessage) (EventData, error) {
	var data EventData
	switch eventType {
	case EventMeetingCreated:
		data = &MeetingCreated{}
	case EventMeetingUpdated:
		data = &MeetingUpdated{}
	case EventMeetingDeleted:
		data = &MeetingDeleted{}
	case EventMeetingStarted:
		data = &MeetingStarted{}
	case EventMeetingEnded:
		data = &MeetingEnded{}
	case EventRecordingReady:
		data = &RecordingReady{}
	case EventParticipantJoined:
		data = &ParticipantJoined{}
	case EventParticipantLeft:
		data = &ParticipantLeft{}
	default:
		return &UnknownEvent{Raw: raw}, nil
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}
