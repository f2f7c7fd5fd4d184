package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prepnest/exam-engine/internal/session"
)

// SubmissionClient posts the final submission payload to the
// submission sink and returns the server's scoring response.
type SubmissionClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewSubmissionClient creates a submission sink client.
func NewSubmissionClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *SubmissionClient {
	return &SubmissionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log.With().Str("component", "submission_sink").Logger(),
	}
}

type submitResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Scoring json.RawMessage `json:"scoring,omitempty"`
}

// SubmitExam delivers the payload. A non-2xx response or transport
// error is returned to the controller, which treats the attempt as
// terminal.
func (s *SubmissionClient) SubmitExam(ctx context.Context, payload session.SubmissionPayload) (*session.SubmitOutcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit exam: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read submission response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("submission sink returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode submission response: %w", err)
	}

	s.log.Info().Str("session_id", payload.SessionID).Bool("success", out.Success).Msg("Submission delivered")
	return &session.SubmitOutcome{
		Success: out.Success,
		Message: out.Message,
		Scoring: out.Scoring,
	}, nil
}
