// Package summary generates weekly insight digests from a user's
// reflection sessions.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reflectd-dev/reflectd/internal/generator"
	"github.com/reflectd-dev/reflectd/internal/reflection"
	"github.com/reflectd-dev/reflectd/internal/store"
	"github.com/reflectd-dev/reflectd/pkg/observability"
)

// ErrNoSessions is returned by WeekFor when the week holds no started
// sessions for the user. It is not a failure; callers typically skip.
var ErrNoSessions = errors.New("no sessions recorded for week")

// defaultConcurrency bounds the per-user fan-out in RunAll.
const defaultConcurrency = 4

// Summarizer builds WeeklySummary records from stored reflections.
type Summarizer struct {
	gen         generator.Generator
	store       store.Store
	logger      *zap.Logger
	now         func() time.Time
	concurrency int
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Summarizer) { s.now = now }
}

// WithConcurrency bounds how many users RunAll processes at once.
func WithConcurrency(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a Summarizer over the given generator and store.
func New(gen generator.Generator, st store.Store, logger *zap.Logger, opts ...Option) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Summarizer{
		gen:         gen,
		store:       st,
		logger:      logger,
		now:         time.Now,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// insight is the structured shape requested from the generator.
type insight struct {
	Wins       []string `json:"wins"`
	Challenges []string `json:"challenges"`
	Patterns   []string `json:"patterns"`
	Advice     string   `json:"advice"`
}

func insightSchema() *generator.Schema {
	items := &generator.Schema{Type: "string"}
	return &generator.Schema{
		Type: "object",
		Properties: map[string]*generator.Schema{
			"wins":       {Type: "array", Items: items, Description: "Concrete wins from the week."},
			"challenges": {Type: "array", Items: items, Description: "Recurring or significant challenges."},
			"patterns":   {Type: "array", Items: items, Description: "Behavioral or emotional patterns across sessions."},
			"advice":     {Type: "string", Description: "One short piece of actionable advice for next week."},
		},
		Required: []string{"wins", "challenges", "patterns", "advice"},
	}
}

// WeekFor builds and persists the summary for the week starting at
// weekStart. Weeks with no started sessions return ErrNoSessions and
// write nothing.
func (s *Summarizer) WeekFor(ctx context.Context, userID string, weekStart time.Time) (sum *reflection.WeeklySummary, err error) {
	defer func() {
		if !errors.Is(err, ErrNoSessions) {
			observability.RecordSummaryRun(err)
		}
	}()

	records, err := s.weekRecords(ctx, userID, weekStart)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoSessions
	}

	raw, err := s.gen.GenerateObject(ctx, generator.ObjectRequest{
		TextRequest: generator.TextRequest{
			System:      summarySystemPrompt,
			Prompt:      buildSummaryPrompt(records),
			Temperature: 0.4,
			MaxTokens:   700,
		},
		Schema:     insightSchema(),
		SchemaName: "weekly_insight",
	})
	if err != nil {
		return nil, err
	}

	var ins insight
	if err := json.Unmarshal(raw, &ins); err != nil {
		return nil, fmt.Errorf("decode weekly insight: %w", err)
	}

	sum = &reflection.WeeklySummary{
		ID:           uuid.NewString(),
		UserID:       userID,
		WeekStart:    reflection.WeekStart(weekStart).Format(reflection.DateFormat),
		Wins:         ins.Wins,
		Challenges:   ins.Challenges,
		Patterns:     ins.Patterns,
		Advice:       strings.TrimSpace(ins.Advice),
		SessionCount: len(records),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.AppendSummary(ctx, sum); err != nil {
		return nil, err
	}

	s.logger.Info("weekly summary written",
		zap.String("user_id", userID),
		zap.String("week_start", sum.WeekStart),
		zap.Int("sessions", sum.SessionCount))
	return sum, nil
}

// RunAll summarizes the given week for every known user, with bounded
// concurrency. Users without sessions are skipped; the first hard error
// cancels the rest.
func (s *Summarizer) RunAll(ctx context.Context, weekStart time.Time) (int, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	written := make(chan string, len(users))
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			_, err := s.WeekFor(ctx, userID, weekStart)
			if errors.Is(err, ErrNoSessions) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("summarize %s: %w", userID, err)
			}
			written <- userID
			return nil
		})
	}

	err = g.Wait()
	close(written)
	return len(written), err
}

func (s *Summarizer) weekRecords(ctx context.Context, userID string, weekStart time.Time) ([]*reflection.Record, error) {
	var records []*reflection.Record
	for _, date := range reflection.WeekDates(weekStart) {
		rec, err := s.store.LoadReflection(ctx, userID, date)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.Started() {
			records = append(records, rec)
		}
	}
	return records, nil
}
