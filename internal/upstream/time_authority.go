package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TimeAuthority queries the external time service. It implements
// timesync.TimeSource; callers fall back to the local clock on any
// error, so this client reports failures instead of masking them.
type TimeAuthority struct {
	baseURL string
	http    *http.Client
}

// NewTimeAuthority creates a time authority client. The http.Client's
// timeout bounds the single per-session call.
func NewTimeAuthority(baseURL string, httpClient *http.Client) *TimeAuthority {
	return &TimeAuthority{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type serverTimeResponse struct {
	ServerTime time.Time `json:"server_time"`
}

// Now returns the authority's current time.
func (t *TimeAuthority) Now(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/now", nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("build time request: %w", err)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch server time: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("time authority returned %d", resp.StatusCode)
	}

	var body serverTimeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return time.Time{}, fmt.Errorf("decode server time: %w", err)
	}
	if body.ServerTime.IsZero() {
		return time.Time{}, fmt.Errorf("time authority returned empty timestamp")
	}
	return body.ServerTime, nil
}
