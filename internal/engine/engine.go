// Package engine drives one reflection session per user per calendar day:
// start, per-turn question generation, topic-coverage analysis, and a bounded,
// graceful completion. It is the only component with multi-step decision
// logic; generation and persistence are collaborators behind interfaces.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reflectd-dev/reflectd/internal/generator"
	"github.com/reflectd-dev/reflectd/internal/reflection"
	"github.com/reflectd-dev/reflectd/internal/store"
	"github.com/reflectd-dev/reflectd/pkg/observability"
)

const (
	defaultMaxQuestions = 5
	defaultMaxDuration  = 20 * time.Minute
)

// ErrAlreadyStarted is returned by Start when a session already has messages
// for the (user, date) key. Callers should load and resume it instead.
var ErrAlreadyStarted = errors.New("session already started for this date")

// ValidationError rejects user input before any work is attempted.
// No turn is started and no state changes.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Engine owns the session state machine. It holds no per-user state between
// calls; every operation loads, mutates, and persists one record.
type Engine struct {
	gen    generator.Generator
	store  store.Store
	logger *zap.Logger

	maxQuestions int
	maxDuration  time.Duration
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxQuestions overrides the follow-up ceiling.
func WithMaxQuestions(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxQuestions = n
		}
	}
}

// WithMaxDuration overrides the soft wall-clock ceiling.
func WithMaxDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxDuration = d
		}
	}
}

// New creates a session engine.
func New(gen generator.Generator, st store.Store, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		gen:          gen,
		store:        st,
		logger:       logger,
		maxQuestions: defaultMaxQuestions,
		maxDuration:  defaultMaxDuration,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a new session for (userID, date): fresh state, the fixed
// opening assistant message, one persist. If a session already has messages
// for the key it returns the existing record with ErrAlreadyStarted.
// A persistence failure is reported alongside the in-memory record; the
// session is still usable for this process.
func (e *Engine) Start(ctx context.Context, userID, date string) (*reflection.Record, error) {
	existing, err := e.store.LoadReflection(ctx, userID, date)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing.Started() {
		return existing, ErrAlreadyStarted
	}

	now := e.now().UTC()
	rec := &reflection.Record{
		Date:   date,
		UserID: userID,
		Messages: []reflection.Message{
			e.newMessage(reflection.RoleAssistant, openingMessage),
		},
		State: reflection.SessionState{
			StartTime:     now,
			QuestionCount: 0,
			MaxQuestions:  e.maxQuestions,
			Phase:         reflection.PhaseInProgress,
			Topics:        []string{},
			TopicCoverage: map[string]reflection.TopicStatus{},
		},
		UpdatedAt: now,
	}

	observability.RecordSessionStarted()

	if err := e.store.SaveReflection(ctx, rec); err != nil {
		e.logger.Error("persist on session start failed",
			zap.String("user_id", userID),
			zap.String("date", date),
			zap.Error(err))
		return rec, err
	}
	return rec, nil
}

// Submit processes one user turn: append the user message, decide whether
// the session ends, otherwise analyze topic coverage and generate the next
// question, then persist the whole record once.
//
// Generator failures never block the turn: the analysis degrades to a neutral
// result and the question falls back to a fixed template. A persistence
// failure is returned alongside the updated in-memory record; the transcript
// is never rolled back.
func (e *Engine) Submit(ctx context.Context, userID, date, text string) (*reflection.Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Reason: "empty message"}
	}

	rec, err := e.store.LoadReflection(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	// Complete is terminal: no further input is accepted for this date.
	if rec.State.Complete() {
		return rec, nil
	}

	rec.Messages = append(rec.Messages, e.newMessage(reflection.RoleUser, text))

	// Working copy counts the assistant prompt about to be issued.
	questionCount := rec.State.QuestionCount + 1
	elapsed := e.now().UTC().Sub(rec.State.StartTime)

	if questionCount >= rec.State.MaxQuestions || elapsed >= e.maxDuration {
		rec.Messages = append(rec.Messages, e.newMessage(reflection.RoleAssistant, closingMessage))
		rec.State.QuestionCount = questionCount
		rec.State.Phase = reflection.PhaseComplete
		observability.RecordSessionCompleted(questionCount)
	} else {
		analysis := e.analyzeTopics(ctx, rec)
		rec.State.QuestionCount = questionCount
		mergeAnalysis(&rec.State, analysis)

		question := e.nextQuestion(ctx, rec, analysis, elapsed)
		rec.Messages = append(rec.Messages, e.newMessage(reflection.RoleAssistant, question))
	}

	observability.RecordTurn()
	rec.UpdatedAt = e.now().UTC()

	if err := e.store.SaveReflection(ctx, rec); err != nil {
		// The in-memory turn stands; the previous persisted record is the
		// durable recovery point.
		e.logger.Error("persist after turn failed",
			zap.String("user_id", userID),
			zap.String("date", date),
			zap.Error(err))
		return rec, err
	}
	return rec, nil
}

// Load retrieves the record for (userID, date). A missing record means no
// session has started; callers derive hasStarted from Record.Started.
func (e *Engine) Load(ctx context.Context, userID, date string) (*reflection.Record, error) {
	return e.store.LoadReflection(ctx, userID, date)
}

// Progress summarizes a user's session history.
type Progress struct {
	Streak        int `json:"streak"`
	WeekProgress  int `json:"weekProgress"`
	TotalSessions int `json:"totalSessions"`
}

// ProgressFor computes streak and weekly progress from the user's recorded
// session dates.
func (e *Engine) ProgressFor(ctx context.Context, userID string) (*Progress, error) {
	dates, err := e.store.ListReflectionDates(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := e.now().UTC()
	return &Progress{
		Streak:        reflection.ComputeStreak(dates, today),
		WeekProgress:  reflection.WeekProgress(dates, today),
		TotalSessions: len(dates),
	}, nil
}

// nextQuestion asks the generator for the next follow-up. On failure it
// falls back to one of two fixed templates: an action commitment when one
// question slot remains, a concrete-challenge probe otherwise.
func (e *Engine) nextQuestion(ctx context.Context, rec *reflection.Record, analysis reflection.TopicAnalysis, elapsed time.Duration) string {
	remaining := rec.State.MaxQuestions - rec.State.QuestionCount

	question, err := e.gen.GenerateText(ctx, generator.TextRequest{
		System:      questionSystemPrompt,
		Prompt:      buildQuestionPrompt(rec, analysis, rec.State.QuestionCount, remaining, elapsed.Minutes()),
		Temperature: 0.7,
		MaxTokens:   160,
	})
	if err != nil || strings.TrimSpace(question) == "" {
		e.logger.Warn("question generation fell back to template",
			zap.String("user_id", rec.UserID),
			zap.Int("remaining", remaining),
			zap.Error(err))
		if remaining <= 1 {
			return fallbackFinalQuestion
		}
		return fallbackProbeQuestion
	}
	return strings.TrimSpace(question)
}

func (e *Engine) newMessage(role reflection.Role, content string) reflection.Message {
	return reflection.Message{
		ID:        fmt.Sprintf("%d-%s", e.now().UTC().UnixMilli(), uuid.New().String()[:8]),
		Role:      role,
		Content:   content,
		Timestamp: e.now().UTC(),
	}
}
