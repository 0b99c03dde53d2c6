package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/source"
)

// Adapter implements source.NotificationSource for the GitHub REST API.
type Adapter struct {
	client *Client
	log    zerolog.Logger
}

var _ source.NotificationSource = (*Adapter)(nil)

// NewAdapter creates a new GitHub notification source.
func NewAdapter(cfg model.APIConfig, log zerolog.Logger) *Adapter {
	c := NewClient(cfg, log)
	return &Adapter{client: c, log: c.log}
}

// FetchNotifications lists notification threads, optionally as a
// conditional request against the supplied cache token.
func (a *Adapter) FetchNotifications(
	ctx context.Context,
	token string,
	opts source.FetchOptions,
) (*source.FetchResult, error) {
	const path = "/notifications"

	q := url.Values{}
	q.Set("all", strconv.FormatBool(opts.IncludeRead))
	q.Set("per_page", strconv.Itoa(source.PageSize))
	if opts.Since != nil {
		q.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}

	headers := map[string]string{}
	if opts.UseConditional && opts.CacheToken != "" {
		headers[headerIfModifiedSince] = opts.CacheToken
	}

	resp, err := a.client.do(ctx, request{
		method:  http.MethodGet,
		path:    path,
		query:   q,
		token:   token,
		headers: headers,
		retry:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}

	cacheToken := resp.header.Get(headerLastModified)
	pollInterval := parsePollInterval(resp.header.Get(headerPollInterval))

	if resp.status == http.StatusNotModified {
		if cacheToken == "" {
			cacheToken = opts.CacheToken
		}
		return &source.FetchResult{
			NotModified:  true,
			CacheToken:   cacheToken,
			PollInterval: pollInterval,
		}, nil
	}

	if !resp.ok() {
		return nil, classify(resp, http.MethodGet, path)
	}

	records, dropped, err := decodeThreads(resp.body)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		a.log.Debug().Int("dropped", dropped).Msg("skipped undecodable notification records")
	}

	return &source.FetchResult{
		Notifications: records,
		CacheToken:    cacheToken,
		PollInterval:  pollInterval,
		Dropped:       dropped,
	}, nil
}

// MarkThreadRead marks one thread read. GitHub answers 205 Reset Content,
// or 304 when the thread was already read.
func (a *Adapter) MarkThreadRead(ctx context.Context, token, id string) error {
	path := "/notifications/threads/" + url.PathEscape(id)

	resp, err := a.client.do(ctx, request{
		method: http.MethodPatch,
		path:   path,
		token:  token,
	})
	if err != nil {
		return fmt.Errorf("marking thread %s read: %w", id, err)
	}

	switch resp.status {
	case http.StatusResetContent, http.StatusNotModified:
		return nil
	}
	return classify(resp, http.MethodPatch, path)
}

// MarkAllRead marks all threads read, optionally only those updated
// before since. GitHub answers 202 Accepted when it processes the request
// asynchronously, 205 Reset Content otherwise.
func (a *Adapter) MarkAllRead(ctx context.Context, token string, since *time.Time) error {
	const path = "/notifications"

	body := markAllReadRequest{Read: true}
	if since != nil {
		ts := since.UTC().Format(time.RFC3339)
		body.LastReadAt = &ts
	}

	resp, err := a.client.do(ctx, request{
		method: http.MethodPut,
		path:   path,
		token:  token,
		body:   body,
	})
	if err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}

	switch resp.status {
	case http.StatusAccepted, http.StatusResetContent:
		return nil
	}
	return classify(resp, http.MethodPut, path)
}

// ValidateToken verifies credentials by calling the authenticated user
// endpoint and returns the account login.
func (a *Adapter) ValidateToken(ctx context.Context, token string) (string, error) {
	const path = "/user"

	resp, err := a.client.do(ctx, request{
		method: http.MethodGet,
		path:   path,
		token:  token,
		retry:  true,
	})
	if err != nil {
		return "", fmt.Errorf("validating token: %w", err)
	}
	if !resp.ok() {
		return "", classify(resp, http.MethodGet, path)
	}

	var user User
	if err := json.Unmarshal(resp.body, &user); err != nil {
		return "", fmt.Errorf("decoding identity response: %w", err)
	}
	login := strings.TrimSpace(user.Login)
	if login == "" {
		return "", fmt.Errorf("identity response has no login; token may be invalid")
	}
	return login, nil
}

// parsePollInterval reads X-Poll-Interval, which is given in seconds.
func parsePollInterval(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
