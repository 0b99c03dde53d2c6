// Package notify delivers user-facing alerts for new notification threads.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/octobar/internal/model"
)

// Payload identifies the thread an alert points at.
type Payload struct {
	ID   string            `json:"id"`
	URL  string            `json:"url,omitempty"`
	Type model.SubjectType `json:"type"`
}

// Alert is a single user-visible alert.
type Alert struct {
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle"`
	Body     string  `json:"body"`
	GroupKey string  `json:"group_key"`
	Payload  Payload `json:"payload"`
}

// AlertFor builds the alert announcing a new thread.
func AlertFor(n model.NotificationRecord) Alert {
	a := Alert{
		Title:    n.ContainerName,
		Subtitle: n.Reason.Label(),
		Body:     n.SubjectTitle,
		GroupKey: n.ContainerName,
		Payload: Payload{
			ID:   n.ID,
			Type: n.SubjectType,
		},
	}
	if n.SubjectURL != nil {
		a.Payload.URL = *n.SubjectURL
	}
	return a
}

// SummaryText is the body of the overflow alert for count new threads.
func SummaryText(count int) string {
	if count == 1 {
		return "1 new notification"
	}
	return fmt.Sprintf("%d new notifications", count)
}

// Sink receives alerts. Implementations must be safe for concurrent use.
type Sink interface {
	Deliver(ctx context.Context, a Alert) error
	DeliverSummary(ctx context.Context, count int) error
	RemoveDelivered(ctx context.Context, id string) error
	RemoveAllDelivered(ctx context.Context) error
	IsAuthorized() bool
}

// Multi fans every call out to several sinks.
type Multi []Sink

func (m Multi) Deliver(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m {
		if !s.IsAuthorized() {
			continue
		}
		if err := s.Deliver(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) DeliverSummary(ctx context.Context, count int) error {
	var errs []error
	for _, s := range m {
		if !s.IsAuthorized() {
			continue
		}
		if err := s.DeliverSummary(ctx, count); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RemoveDelivered(ctx context.Context, id string) error {
	var errs []error
	for _, s := range m {
		if err := s.RemoveDelivered(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RemoveAllDelivered(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.RemoveAllDelivered(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsAuthorized reports whether any member sink can deliver.
func (m Multi) IsAuthorized() bool {
	for _, s := range m {
		if s.IsAuthorized() {
			return true
		}
	}
	return false
}
