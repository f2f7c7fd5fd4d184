// Package codexec submits source code to the external execution
// service and normalizes its heterogeneous result shapes into uniform
// per-test-case records.
package codexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prepnest/exam-engine/internal/model"
)

// Case is one test case prepared for a run, tagged with its kind so
// results can be classified even when the service omits typing.
type Case struct {
	Kind           model.RunKind
	Input          string
	ExpectedOutput string
}

// RunRequest describes one execution request. For a standard run,
// Cases holds the sample case followed by the hidden cases. For a
// custom run, CustomRun is set and CustomInput carries the user's
// input; no expected output exists.
type RunRequest struct {
	QuestionID  string
	SourceCode  string
	Language    Language
	Cases       []Case
	CustomRun   bool
	CustomInput string
}

// Runner is implemented by the execution client. The session
// controller depends on this interface so tests can substitute a fake
// service.
type Runner interface {
	Run(ctx context.Context, req RunRequest) *model.CodeRunResult
}

// Client calls the execution service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates an execution client. The http.Client's timeout
// bounds each run request.
func NewClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log.With().Str("component", "codexec").Logger(),
	}
}

// Wire shapes. The service is loose about what it returns: status
// fields and per-case typing may be absent, and a custom run may
// carry only a top-level output string.
type wireRequest struct {
	SourceCode  string         `json:"source_code"`
	Language    string         `json:"language"`
	TestCases   []wireTestCase `json:"test_cases"`
	CustomInput bool           `json:"custom_input"`
}

type wireTestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

type wireResponse struct {
	Status  string     `json:"status,omitempty"`
	Error   string     `json:"error,omitempty"`
	Results []wireCase `json:"results"`
	Output  string     `json:"output,omitempty"`
}

type wireCase struct {
	Kind           string `json:"kind,omitempty"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Status         string `json:"status,omitempty"`
}

// Run executes the request and normalizes the response. Transport and
// server failures never escape as errors: they surface as a
// COMPILE_FAILED result with the failure message, leaving the session
// intact so the user can retry indefinitely.
func (c *Client) Run(ctx context.Context, req RunRequest) *model.CodeRunResult {
	payload := wireRequest{
		SourceCode:  req.SourceCode,
		Language:    string(req.Language),
		CustomInput: req.CustomRun,
	}
	if req.CustomRun {
		payload.TestCases = []wireTestCase{{Input: NormalizeInput(req.CustomInput)}}
	} else {
		for _, tc := range req.Cases {
			payload.TestCases = append(payload.TestCases, wireTestCase{
				Input:          NormalizeInput(tc.Input),
				ExpectedOutput: NormalizeOutput(tc.ExpectedOutput),
			})
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failedRun(req.QuestionID, fmt.Sprintf("encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return failedRun(req.QuestionID, fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn().Err(err).Str("question_id", req.QuestionID).Msg("Execution request failed")
		return failedRun(req.QuestionID, fmt.Sprintf("execution service unreachable: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failedRun(req.QuestionID, fmt.Sprintf("read response: %v", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failedRun(req.QuestionID, fmt.Sprintf("execution service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return failedRun(req.QuestionID, fmt.Sprintf("malformed response: %v", err))
	}
	if wire.Error != "" {
		return failedRun(req.QuestionID, wire.Error)
	}

	return normalize(req, &wire)
}

// normalize converts a wire response into the uniform result record.
// Derivation rules:
//   - a case with no status gets its verdict from normalized
//     expected/actual equality;
//   - a case with no kind inherits the kind of the request case at
//     the same index (custom for custom runs);
//   - a custom run with no per-case results synthesizes a single
//     custom record from the top-level output.
func normalize(req RunRequest, wire *wireResponse) *model.CodeRunResult {
	out := &model.CodeRunResult{
		QuestionID: req.QuestionID,
		Status:     model.RunStatusOK,
	}

	if req.CustomRun && len(wire.Results) == 0 {
		out.Results = []model.TestCaseResult{{
			Kind:         model.RunKindCustom,
			Input:        NormalizeInput(req.CustomInput),
			ActualOutput: NormalizeOutput(wire.Output),
			Passed:       true,
		}}
		return out
	}

	for i, wc := range wire.Results {
		expected := wc.ExpectedOutput
		if expected == "" && !req.CustomRun && i < len(req.Cases) {
			expected = req.Cases[i].ExpectedOutput
		}

		r := model.TestCaseResult{
			Kind:           caseKind(req, wc, i),
			Input:          NormalizeInput(wc.Input),
			ExpectedOutput: NormalizeOutput(expected),
			ActualOutput:   NormalizeOutput(wc.ActualOutput),
		}

		if wc.Status != "" {
			r.Passed = strings.EqualFold(wc.Status, "passed")
		} else {
			r.Passed = OutputsMatch(expected, wc.ActualOutput)
		}

		out.Results = append(out.Results, r)
	}

	return out
}

func caseKind(req RunRequest, wc wireCase, idx int) model.RunKind {
	switch strings.ToLower(wc.Kind) {
	case "sample":
		return model.RunKindSample
	case "hidden":
		return model.RunKindHidden
	case "custom":
		return model.RunKindCustom
	}
	if req.CustomRun {
		return model.RunKindCustom
	}
	if idx < len(req.Cases) {
		return req.Cases[idx].Kind
	}
	return model.RunKindHidden
}

func failedRun(questionID, msg string) *model.CodeRunResult {
	return &model.CodeRunResult{
		QuestionID: questionID,
		Status:     model.RunStatusCompileFailed,
		Error:      msg,
	}
}
