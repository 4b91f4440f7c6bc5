package meetings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/meetwire/meetwire-go/client"
)

// Service exposes the meetings API through a configured client.
type Service struct {
	client *client.Client
}

// NewService wraps an API client.
func NewService(c *client.Client) *Service {
	return &Service{client: c}
}

// Create schedules a new meeting.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Meeting, error) {
	out, err := s.client.Post(ctx, "/meetings", in, callOptions(in.Timezone))
	if err != nil {
		return nil, err
	}
	return decodeMeeting(out)
}

// Get fetches one meeting by id.
func (s *Service) Get(ctx context.Context, id string) (*Meeting, error) {
	out, err := s.client.Get(ctx, "/meetings/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return decodeMeeting(out)
}

// List returns one page of meetings matching opts. Call again with the
// returned NextPageToken to continue.
func (s *Service) List(ctx context.Context, opts ListOptions) (*Page, error) {
	q := url.Values{}
	if opts.UserID != "" {
		q.Set("user_id", opts.UserID)
	}
	if !opts.From.IsZero() {
		q.Set("from", opts.From.UTC().Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		q.Set("to", opts.To.UTC().Format(time.RFC3339))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.PageToken != "" {
		q.Set("page_token", opts.PageToken)
	}

	out, err := s.client.Get(ctx, "/meetings", &client.CallOptions{Query: q})
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(out, &page); err != nil {
		return nil, fmt.Errorf("decoding meeting page: %w", err)
	}
	return &page, nil
}

// ListAll walks every page of a listing and returns the combined results.
func (s *Service) ListAll(ctx context.Context, opts ListOptions) ([]Meeting, error) {
	var all []Meeting
	for {
		page, err := s.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Meetings...)
		if page.NextPageToken == "" {
			return all, nil
		}
		opts.PageToken = page.NextPageToken
	}
}

// Update patches a meeting. Zero-valued fields in the input are left
// unchanged on the server.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Meeting, error) {
	out, err := s.client.Patch(ctx, "/meetings/"+url.PathEscape(id), in, callOptions(in.Timezone))
	if err != nil {
		return nil, err
	}
	return decodeMeeting(out)
}

// Delete cancels a meeting.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, "/meetings/"+url.PathEscape(id), nil)
	return err
}

// End stops a meeting that is currently in progress.
func (s *Service) End(ctx context.Context, id string) error {
	_, err := s.client.Post(ctx, "/meetings/"+url.PathEscape(id)+"/end", nil, nil)
	return err
}

// Recordings lists the cloud recordings of a meeting.
func (s *Service) Recordings(ctx context.Context, meetingID string) ([]Recording, error) {
	out, err := s.client.Get(ctx, "/meetings/"+url.PathEscape(meetingID)+"/recordings", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Recordings []Recording `json:"recordings"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("decoding recordings: %w", err)
	}
	return resp.Recordings, nil
}

// GetRecording fetches one recording by id.
func (s *Service) GetRecording(ctx context.Context, id string) (*Recording, error) {
	out, err := s.client.Get(ctx, "/recordings/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var rec Recording
	if err := json.Unmarshal(out, &rec); err != nil {
		return nil, fmt.Errorf("decoding recording: %w", err)
	}
	return &rec, nil
}

func decodeMeeting(raw json.RawMessage) (*Meeting, error) {
	var m Meeting
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding meeting: %w", err)
	}
	return &m, nil
}

func callOptions(timezone string) *client.CallOptions {
	if timezone == "" {
		return nil
	}
	return &client.CallOptions{Timezone: timezone}
}
