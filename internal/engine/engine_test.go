package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/reflectd-dev/reflectd/internal/generator"
	"github.com/reflectd-dev/reflectd/internal/reflection"
	"github.com/reflectd-dev/reflectd/internal/store"
)

type fixture struct {
	engine *Engine
	gen    *generator.Mock
	store  store.Store
	clock  *time.Time
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	now := time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC)
	gen := generator.NewMock()

	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	eng := New(gen, st, zap.NewNop(), opts...)

	return &fixture{engine: eng, gen: gen, store: st, clock: &now}
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func validAnalysis(topic string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"topics":[%q],"currentTopicSpecificity":1,"shouldMoveToNewTopic":false}`, topic))
}

func TestStart(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rec, err := f.engine.Start(ctx, "user-1", "2025-06-11")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if len(rec.Messages) != 1 {
		t.Fatalf("messages = %d, want 1 opening message", len(rec.Messages))
	}
	if rec.Messages[0].Role != reflection.RoleAssistant {
		t.Errorf("opening role = %s, want assistant", rec.Messages[0].Role)
	}
	if rec.Messages[0].Content != openingMessage {
		t.Errorf("opening content = %q, want the fixed opening", rec.Messages[0].Content)
	}
	if rec.State.QuestionCount != 0 {
		t.Errorf("questionCount = %d, want 0", rec.State.QuestionCount)
	}
	if rec.State.MaxQuestions != 5 {
		t.Errorf("maxQuestions = %d, want 5", rec.State.MaxQuestions)
	}
	if rec.State.Phase != reflection.PhaseInProgress {
		t.Errorf("phase = %s, want in_progress", rec.State.Phase)
	}

	// The record must have been persisted.
	loaded, err := f.store.LoadReflection(ctx, "user-1", "2025-06-11")
	if err != nil {
		t.Fatalf("LoadReflection() error = %v", err)
	}
	if !loaded.Started() {
		t.Error("persisted record should count as started")
	}
}

func TestStartTwice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, "user-1", "2025-06-11"); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	rec, err := f.engine.Start(ctx, "user-1", "2025-06-11")
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	if len(rec.Messages) != 1 {
		t.Errorf("second Start() must return the existing record, got %d messages", len(rec.Messages))
	}
}

func TestSubmitEmptyInput(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, "user-1", "2025-06-11"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := f.engine.Submit(ctx, "user-1", "2025-06-11", input)
		if !IsValidationError(err) {
			t.Errorf("Submit(%q) error = %v, want ValidationError", input, err)
		}
	}

	// No messages and no state change.
	rec, err := f.engine.Load(ctx, "user-1", "2025-06-11")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rec.Messages) != 1 {
		t.Errorf("messages = %d, want 1 (no turn attempted)", len(rec.Messages))
	}
	if rec.State.QuestionCount != 0 {
		t.Errorf("questionCount = %d, want 0", rec.State.QuestionCount)
	}
	if len(f.gen.TextCalls)+len(f.gen.ObjectCalls) != 0 {
		t.Error("generator must not be called for rejected input")
	}
}

func TestSubmitNormalTurn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.gen.ObjectResponses = []json.RawMessage{validAnalysis("daily_progress")}
	f.gen.TextResponses = []string{"What made that launch land well with users?"}

	if _, err := f.engine.Start(ctx, "user-1", "2025-06-11"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec, err := f.engine.Submit(ctx, "user-1", "2025-06-11", "Shipped onboarding flow")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if len(rec.Messages) != 3 {
		t.Fatalf("messages = %d, want 3 (opening, user, assistant)", len(rec.Messages))
	}
	if rec.Messages[1].Role != reflection.RoleUser || rec.Messages[1].Content != "Shipped onboarding flow" {
		t.Errorf("user message = %+v", rec.Messages[1])
	}
	if rec.Messages[2].Role != reflection.RoleAssistant {
		t.Errorf("assistant message role = %s", rec.Messages[2].Role)
	}
	if rec.Messages[2].Content != "What made that launch land well with users?" {
		t.Errorf("assistant content = %q", rec.Messages[2].Content)
	}
	if rec.State.QuestionCount != 1 {
		t.Errorf("questionCount = %d, want 1", rec.State.QuestionCount)
	}
	if rec.State.Complete() {
		t.Error("session must not be complete after one turn")
	}

	// Topic memory is folded in from the analysis.
	if len(rec.State.Topics) != 1 || rec.State.Topics[0] != "daily_progress" {
		t.Errorf("topics = %v, want [daily_progress]", rec.State.Topics)
	}
	status, ok := rec.State.TopicCoverage["daily_progress"]
	if !ok || !status.Mentioned {
		t.Errorf("topicCoverage = %+v, want daily_progress mentioned", rec.State.TopicCoverage)
	}

	// Analysis then generation, in that order, sequentially.
	if len(f.gen.ObjectCalls) != 1 || len(f.gen.TextCalls) != 1 {
		t.Errorf("generator calls = %d object, %d text; want 1 and 1",
			len(f.gen.ObjectCalls), len(f.gen.TextCalls))
	}
}

func TestQuestionCeiling(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, "user-1", "2025-06-11"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var rec *reflection.Record
	var err error
	for i := 1; i <= 5; i++ {
		f.advance(time.Minute)
		rec, err = f.engine.Submit(ctx, "user-1", "2025-06-11", fmt.Sprintf("progress update %d", i))
		if err != nil {
			t.Fatalf("Submit(#%d) error = %v", i, err)
		}

		if rec.State.QuestionCount != i {
			t.Errorf("after submit #%d questionCount = %d, want %d", i, rec.State.QuestionCount, i)
		}
		if i < 5 && rec.State.Complete() {
			t.Errorf("session complete after %d turns, want 5", i)
		}
	}

	if !rec.State.Complete() {
		t.Fatal("session must be complete after the 5th submission")
	}
	if rec.State.QuestionCount > rec.State.MaxQuestions {
		t.Errorf("questionCount %d exceeds maxQuestions %d", rec.State.QuestionCount, rec.State.MaxQuestions)
	}
	closing := rec.Messages[len(rec.Messages)-1]
	if closing.Role != reflection.RoleAssistant || closing.Content != closingMessage {
		t.Errorf("final message = %+v, want the fixed closing", closing)
	}

	// A 6th submission is a no-op.
	before := len(rec.Messages)
	rec, err = f.engine.Submit(ctx, "user-1", "2025-06-11", "one more thing")
	if err != nil {
		t.Fatalf("Submit after completion error = %v", err)
	}
	if len(rec.Messages) != before {
		t.Errorf("messages grew from %d to %d after completion", before, len(rec.Messages))
	}
	if rec.State.Phase != reflection.PhaseComplete {
		t.Error("phase must stay complete")
	}
}

func TestTimeCeiling(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, "user-1", "2025-06-11"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.advance(21 * time.Minute)

	rec, err := f.engine.Submit(ctx, "user-1", "2025-06-11", "sorry, got pulled into a call")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if !rec.State.Complete() {
		t.Error("session must complete once 20 minutes have elapsed")
	}
	closing := rec.Messages[len(rec.Messages)-1]
	if closing.Content != closingMessage {
		t.Errorf("final message = %q, want the fixed closing", closing.Content)
	}
	if len(f.gen.TextCalls)+len(f.gen.ObjectCalls) != 0 {
		t.Error("no generator calls expected for a timed-out turn")
	}
}

func TestAnalysisFailureDegrades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.gen.ObjectErrors = []error{errors.New("service unavailable")}
	f.gen.TextResponses = []string{"What blocked you most today?"}

	if _, err := f.engine.Start(ctx, "user-1", "2025-06-11"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec, err := f.engine.Submit(ctx, "user-1", "2025-06-11", "Talked to three customers")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// Exactly one new assistant message, and the record was persisted.
	if len(rec.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(rec.Messages))
	}
	loaded, err := f.store.LoadReflection(ctx, "user-1", "2025-06-11")
	if err != nil {
		t.Fatalf("LoadReflection() error = %v", err)
	}
	if len(loaded.Messages) != 3 {
		t.Errorf("persisted messages = %d, want 3", len(loaded.Messages))
	}
}

func TestQuestionFallbackTemplates(t *testing.T) {
	t.Run("more than one question remaining", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()

		f.gen.ObjectResponses = []json.RawMessage{validAnalysis("funding")}
		f.gen.TextErrors = []error{errors.New("timeout")}

		if _, err := f.engine.Start(ctx, "user-1", "2025-06-11"); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		rec, err := f.engine.Submit(ctx, "user-1", "2025-06-11", "Investor call went sideways")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		got := rec.Messages[len(rec.Messages)-1].Content
		if got != fallbackProbeQuestion {
			t.Errorf("fallback = %q, want the specific-challenge template", got)
		}
		if !strings.Contains(got, "specific challenge") || !strings.Contains(got, "move forward") {
			t.Errorf("fallback text drifted: %q", got)
		}
	})

	t.Run("last question remaining", func(t *testing.T) {
		f := setup(t, WithMaxQuestions(2))
		ctx := context.Background()

		f.gen.ObjectResponses = []json.RawMessage{validAnalysis("funding")}
		f.gen.TextErrors = []error{errors.New("timeout")}

		if _, err := f.engine.Start(ctx, "user-1", "2025-06-11"); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		rec, err := f.engine.Submit(ctx, "user-1", "2025-06-11", "Investor call went sideways")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		got := rec.Messages[len(rec.Messages)-1].Content
		if got != fallbackFinalQuestion {
			t.Errorf("fallback = %q, want the action-commitment template", got)
		}
		if !strings.Contains(got, "one specific action") || !strings.Contains(got, "tomorrow") {
			t.Errorf("fallback text drifted: %q", got)
		}
	})
}

func TestLoadIdempotence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engine.Load(ctx, "user-1", "2025-06-11")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Load() on fresh key error = %v, want ErrNotFound", err)
	}

	if _, err := f.engine.Start(ctx, "user-1", "2025-06-11"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec, err := f.engine.Load(ctx, "user-1", "2025-06-11")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, want := rec.Started(), len(rec.Messages) > 0; got != want {
		t.Errorf("Started() = %v, want %v", got, want)
	}
}

// failingStore wraps a Store and fails every SaveReflection.
type failingStore struct {
	store.Store
}

func (f *failingStore) SaveReflection(ctx context.Context, rec *reflection.Record) error {
	return &store.StorageError{Op: "save", Key: rec.UserID + ":" + rec.Date, Err: errors.New("quota exceeded")}
}

func TestPersistFailureKeepsTurn(t *testing.T) {
	inner, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	t.Cleanup(func() { _ = inner.Close() })

	// Seed a started session through the working store, then wrap it.
	now := time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC)
	gen := generator.NewMock()
	seeder := New(gen, inner, zap.NewNop(), WithClock(func() time.Time { return now }))
	if _, err := seeder.Start(context.Background(), "user-1", "2025-06-11"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	eng := New(gen, &failingStore{Store: inner}, zap.NewNop(), WithClock(func() time.Time { return now }))

	rec, err := eng.Submit(context.Background(), "user-1", "2025-06-11", "Closed a pilot deal")
	if !store.IsStorageError(err) {
		t.Fatalf("Submit() error = %v, want StorageError", err)
	}
	if rec == nil || len(rec.Messages) != 3 {
		t.Fatal("in-memory turn must be returned despite the persist failure")
	}

	// The durable record is the pre-turn state.
	loaded, err := inner.LoadReflection(context.Background(), "user-1", "2025-06-11")
	if err != nil {
		t.Fatalf("LoadReflection() error = %v", err)
	}
	if len(loaded.Messages) != 1 {
		t.Errorf("durable messages = %d, want 1 (turn lost on failure)", len(loaded.Messages))
	}
}

func TestProgressFor(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// Sessions on the 9th, 10th, and 11th; clock is the 11th.
	for _, date := range []string{"2025-06-09", "2025-06-10", "2025-06-11"} {
		if _, err := f.engine.Start(ctx, "user-1", date); err != nil {
			t.Fatalf("Start(%s) error = %v", date, err)
		}
	}

	progress, err := f.engine.ProgressFor(ctx, "user-1")
	if err != nil {
		t.Fatalf("ProgressFor() error = %v", err)
	}
	if progress.Streak != 3 {
		t.Errorf("streak = %d, want 3", progress.Streak)
	}
	if progress.WeekProgress != 3 {
		t.Errorf("weekProgress = %d, want 3", progress.WeekProgress)
	}
	if progress.TotalSessions != 3 {
		t.Errorf("totalSessions = %d, want 3", progress.TotalSessions)
	}
}

func TestEndToEndScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rec, err := f.engine.Start(ctx, "user-1", "2025-06-11")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(rec.Messages) != 1 || rec.State.QuestionCount != 0 || rec.State.Complete() {
		t.Fatalf("unexpected initial state: %d messages, count %d", len(rec.Messages), rec.State.QuestionCount)
	}

	rec, err = f.engine.Submit(ctx, "user-1", "2025-06-11", "Shipped onboarding flow")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(rec.Messages) != 3 || rec.State.QuestionCount != 1 || rec.State.Complete() {
		t.Fatalf("after turn 1: %d messages, count %d, complete %v",
			len(rec.Messages), rec.State.QuestionCount, rec.State.Complete())
	}

	for i := 2; i <= 5; i++ {
		rec, err = f.engine.Submit(ctx, "user-1", "2025-06-11", fmt.Sprintf("more progress %d", i))
		if err != nil {
			t.Fatalf("Submit(#%d) error = %v", i, err)
		}
	}

	if rec.State.QuestionCount != 5 || !rec.State.Complete() {
		t.Errorf("after 5 turns: count %d, complete %v; want 5 and true",
			rec.State.QuestionCount, rec.State.Complete())
	}
}
