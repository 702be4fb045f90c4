package federation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const activityContentType = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`

// HTTPDeliverer posts activities to remote inboxes over HTTP.
type HTTPDeliverer struct {
	client    *http.Client
	userAgent string
}

// NewHTTPDeliverer builds an inbox deliverer with a bounded request
// timeout.
func NewHTTPDeliverer(client *http.Client, userAgent string) *HTTPDeliverer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "fedilist"
	}
	return &HTTPDeliverer{client: client, userAgent: userAgent}
}

// Deliver posts one activity payload to an inbox. Any non-2xx response is
// an error; the worker decides whether it retries.
func (d *HTTPDeliverer) Deliver(ctx context.Context, inbox string, payload []byte) error {
	if d == nil || d.client == nil {
		return fmt.Errorf("deliverer is not configured")
	}
	inbox = strings.TrimSpace(inbox)
	if inbox == "" {
		return fmt.Errorf("inbox is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build inbox request: %w", err)
	}
	req.Header.Set("Content-Type", activityContentType)
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to inbox: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("inbox returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Deliverer = (*HTTPDeliverer)(nil)
