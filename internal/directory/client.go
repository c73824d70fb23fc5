// Package directory is the pull collaborator: a REST client over the
// directory service that answers "who is online right now" and group
// membership queries. Failures are returned as errors and never crash the
// callers; the watch drivers absorb them into retries.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/friendwatch/engine/internal/presence"
)

// Client is the capability the watch drivers consume.
type Client interface {
	// FetchOnlineSet returns the entries currently online, restricted to the
	// filter when one is set.
	FetchOnlineSet(ctx context.Context, filter presence.Filter) ([]presence.Entry, error)

	// FetchGroupMembership returns the set of member ids for a group.
	FetchGroupMembership(ctx context.Context, groupID string) (map[string]struct{}, error)
}

// HTTPClient talks to the directory service over HTTP with bounded retries
// on transient failures.
type HTTPClient struct {
	base      string
	authToken string
	userAgent string
	client    *retryablehttp.Client
}

// NewHTTPClient creates a directory client for the given base URL. The auth
// token is a pre-acquired session credential; acquiring or renewing it is
// the caller's concern.
func NewHTTPClient(baseURL, authToken, userAgent string, timeout time.Duration) *HTTPClient {
	client := &retryablehttp.Client{
		HTTPClient:   &http.Client{Timeout: timeout},
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		Backoff:      retryablehttp.LinearJitterBackoff,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
	}
	return &HTTPClient{
		base:      strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		userAgent: userAgent,
		client:    client,
	}
}

// friendRecord is the directory's friend resource, reduced to the fields
// the engine consumes.
type friendRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	Status      string `json:"status"`
	Location    string `json:"location"`
}

// online reports whether the record should be treated as online: an explicit
// online status, or any location other than "offline".
func (r friendRecord) online() bool {
	if strings.EqualFold(r.Status, "online") {
		return true
	}
	loc := strings.ToLower(r.Location)
	return loc != "" && loc != "offline"
}

func (r friendRecord) name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.Username != "" {
		return r.Username
	}
	return r.ID
}

func (c *HTTPClient) FetchOnlineSet(ctx context.Context, filter presence.Filter) ([]presence.Entry, error) {
	var records []friendRecord
	if err := c.getJSON(ctx, "/friends?offline=false", &records); err != nil {
		return nil, fmt.Errorf("fetch online set: %w", err)
	}
	entries := make([]presence.Entry, 0, len(records))
	for _, r := range records {
		if r.ID == "" || !filter.Match(r.ID) || !r.online() {
			continue
		}
		entries = append(entries, presence.Entry{ID: r.ID, Name: r.name()})
	}
	return entries, nil
}

func (c *HTTPClient) FetchGroupMembership(ctx context.Context, groupID string) (map[string]struct{}, error) {
	var members []struct {
		UserID string `json:"userId"`
	}
	path := "/groups/" + url.PathEscape(groupID) + "/members"
	if err := c.getJSON(ctx, path, &members); err != nil {
		return nil, fmt.Errorf("fetch group membership: %w", err)
	}
	ids := make(map[string]struct{}, len(members))
	for _, m := range members {
		if m.UserID != "" {
			ids[m.UserID] = struct{}{}
		}
	}
	return ids, nil
}

// getJSON performs a GET against the directory service and decodes the JSON
// response body into out.
func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
