package github

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nhle/octobar/internal/model"
)

// threadID accepts both string and numeric ids.
type threadID string

func (id *threadID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = threadID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("thread id: %w", err)
	}
	*id = threadID(n.String())
	return nil
}

// Owner is the account owning a repository.
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Repository is the container a notification thread belongs to.
type Repository struct {
	FullName string `json:"full_name"`
	Name     string `json:"name"`
	Owner    *Owner `json:"owner"`
}

// Subject describes what a notification thread is about.
type Subject struct {
	Title            string `json:"title"`
	URL              string `json:"url"`
	LatestCommentURL string `json:"latest_comment_url"`
	Type             string `json:"type"`
}

// Thread is one entry of the notifications list endpoint.
type Thread struct {
	ID         threadID   `json:"id"`
	Unread     bool       `json:"unread"`
	Reason     string     `json:"reason"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastReadAt *time.Time `json:"last_read_at"`
	Subject    Subject    `json:"subject"`
	Repository Repository `json:"repository"`
	URL        string     `json:"url"`
}

// User is the subset of the authenticated user payload we need.
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// markAllReadRequest is the body of PUT /notifications.
type markAllReadRequest struct {
	LastReadAt *string `json:"last_read_at,omitempty"`
	Read       bool    `json:"read"`
}

// errorResponse is GitHub's standard error payload.
type errorResponse struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

// toRecord converts a decoded thread into a NotificationRecord. Unknown
// reason and subject type values map to their Unknown variants.
func (t Thread) toRecord() (model.NotificationRecord, error) {
	if t.ID == "" {
		return model.NotificationRecord{}, fmt.Errorf("thread has no id")
	}
	if t.UpdatedAt.IsZero() {
		return model.NotificationRecord{}, fmt.Errorf("thread %s has no updated_at", t.ID)
	}

	container := t.Repository.FullName
	if container == "" {
		container = t.Repository.Name
	}

	rec := model.NotificationRecord{
		ID:            string(t.ID),
		ContainerName: container,
		SubjectTitle:  t.Subject.Title,
		SubjectType:   model.ParseSubjectType(t.Subject.Type),
		SubjectURL:    optional(t.Subject.URL),
		Reason:        model.ParseReason(t.Reason),
		Unread:        t.Unread,
		UpdatedAt:     t.UpdatedAt.UTC(),
	}
	if t.Repository.Owner != nil {
		rec.ContainerAvatarURL = optional(t.Repository.Owner.AvatarURL)
	}
	if t.LastReadAt != nil && !t.LastReadAt.IsZero() {
		lr := t.LastReadAt.UTC()
		rec.LastReadAt = &lr
	}
	return rec, nil
}

// decodeThreads decodes a list payload record by record. Records that fail
// to decode are dropped and counted; only a body that is not a JSON array
// is an error.
func decodeThreads(body []byte) ([]model.NotificationRecord, int, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, 0, fmt.Errorf("decoding notification list: %w", err)
	}

	records := make([]model.NotificationRecord, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	dropped := 0
	for _, raw := range raws {
		var t Thread
		if err := json.Unmarshal(raw, &t); err != nil {
			dropped++
			continue
		}
		rec, err := t.toRecord()
		if err != nil {
			dropped++
			continue
		}
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records, dropped, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
