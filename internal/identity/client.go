package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const emailByUserIDPath = "/api/auth/v1/users/email/by-userid/"

// HTTPClient looks emails up in the auth service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a lookup client whose every call is bounded by
// timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type emailResponse struct {
	Email string `json:"email"`
}

// LookupEmail calls GET /api/auth/v1/users/email/by-userid/{userId}.
func (c *HTTPClient) LookupEmail(ctx context.Context, userID string) Result {
	endpoint := c.baseURL + emailByUserIDPath + url.PathEscape(userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Failed(ReasonGeneric, fmt.Errorf("failed to build lookup request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Failed(classifyTransportError(err), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Failed(ReasonNotFound, fmt.Errorf("user %s not found", userID))
	case resp.StatusCode == http.StatusServiceUnavailable:
		return Failed(ReasonUnavailable, fmt.Errorf("identity service unavailable"))
	case resp.StatusCode >= 500:
		return Failed(ReasonServerError, fmt.Errorf("identity service returned %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Failed(ReasonGeneric, fmt.Errorf("identity service returned %d", resp.StatusCode))
	}

	var body emailResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return Failed(ReasonGeneric, fmt.Errorf("failed to decode lookup response: %w", err))
	}

	email := strings.TrimSpace(body.Email)
	if email == "" {
		return Failed(ReasonGeneric, fmt.Errorf("identity service returned an empty email for %s", userID))
	}
	return Ok(email)
}

func classifyTransportError(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonUnavailable
	}

	return ReasonGeneric
}
