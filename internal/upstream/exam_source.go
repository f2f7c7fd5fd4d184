// Package upstream holds the HTTP clients for the engine's external
// collaborators: the exam source, the time authority and the
// submission sink.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepnest/exam-engine/internal/config"
	"github.com/prepnest/exam-engine/internal/model"
)

// ExamSource fetches exam definitions. Fetched payloads are cached in
// Redis: the definition is immutable once published, so every session
// for the same exam can reuse one upstream fetch. The cache is an
// optimization only — a nil Redis client or a cache failure falls
// through to the upstream call.
type ExamSource struct {
	baseURL  string
	http     *http.Client
	rdb      *redis.Client
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewExamSource creates an exam source client. rdb may be nil to
// disable caching.
func NewExamSource(baseURL string, httpClient *http.Client, rdb *redis.Client, cacheTTL time.Duration, log zerolog.Logger) *ExamSource {
	return &ExamSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		log:      log.With().Str("component", "exam_source").Logger(),
	}
}

// CreateExam returns the full exam definition for an exam id within a
// collection.
func (s *ExamSource) CreateExam(ctx context.Context, examID, collection string) (*model.Exam, error) {
	if exam := s.cached(ctx, examID); exam != nil {
		return exam, nil
	}

	reqURL := fmt.Sprintf("%s/exams/%s?collection=%s", s.baseURL, url.PathEscape(examID), url.QueryEscape(collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build exam request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch exam %s: %w", examID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read exam response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exam source returned %d for exam %s", resp.StatusCode, examID)
	}

	var exam model.Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		return nil, fmt.Errorf("decode exam %s: %w", examID, err)
	}
	if exam.ID == "" {
		exam.ID = examID
	}

	s.store(ctx, examID, raw)
	return &exam, nil
}

// Prewarm loads a set of exam payloads into the cache before traffic
// arrives. Failures are logged per exam and do not abort the rest.
func (s *ExamSource) Prewarm(ctx context.Context, examIDs []string, collection string) {
	if s.rdb == nil {
		return
	}
	for _, id := range examIDs {
		if _, err := s.CreateExam(ctx, id, collection); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id).Msg("Prewarm fetch failed")
		}
	}
}

func (s *ExamSource) cached(ctx context.Context, examID string) *model.Exam {
	if s.rdb == nil {
		return nil
	}

	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn().Err(err).Msg("Exam cache read failed")
		}
		return nil
	}

	var exam model.Exam
	if err := json.Unmarshal([]byte(raw), &exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Corrupt exam cache entry, refetching")
		return nil
	}
	return &exam
}

func (s *ExamSource) store(ctx context.Context, examID string, raw []byte) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(examID), raw, s.cacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Exam cache write failed")
	}
}
