// Package reflection defines the domain model for daily founder reflection
// sessions: the conversation transcript, the per-day pacing state, and the
// derived records (streaks, weekly summaries, profile) persisted per user.
package reflection

import (
	"strings"
	"time"
)

// DateFormat is the canonical layout for the calendar-date half of a
// reflection record key.
const DateFormat = "2006-01-02"

// Role identifies the author of a message. Sessions have exactly two
// participants.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a reflection conversation.
// Messages are append-only and never reordered; the first message of a
// session is always assistant-authored (the opening prompt).
type Message struct {
	// ID is unique and sorts by creation order.
	ID string `json:"id"`
	// Role is the message author.
	Role Role `json:"role"`
	// Content is free-form text.
	Content string `json:"content"`
	// Timestamp is the creation instant (UTC).
	Timestamp time.Time `json:"timestamp"`
}

// Phase is the lifecycle state of a calendar-day session.
// Transitions are NotStarted -> InProgress -> Complete; Complete is terminal.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseComplete   Phase = "complete"
)

// TopicStatus tracks per-topic memory accumulated across turns.
type TopicStatus struct {
	Mentioned         bool `json:"mentioned"`
	Explored          bool `json:"explored"`
	Specificity       int  `json:"specificity"`
	LastQuestionIndex int  `json:"lastQuestionIndex"`
}

// SessionState is the pacing and coverage state for one calendar day's
// session. It is owned exclusively by the session engine for that day.
type SessionState struct {
	// StartTime is when the session began; immutable once set.
	StartTime time.Time `json:"startTime"`
	// QuestionCount is the number of assistant follow-up turns issued so
	// far, excluding the opening message. Never decreases within a session.
	QuestionCount int `json:"questionCount"`
	// MaxQuestions is the follow-up ceiling for the session.
	MaxQuestions int `json:"maxQuestions"`
	// Phase is the session lifecycle state. PhaseComplete never reverts.
	Phase Phase `json:"phase"`
	// Topics are the topic labels detected so far, deduplicated, in first
	// mention order.
	Topics []string `json:"topics"`
	// TopicCoverage maps topic label to accumulated coverage memory.
	TopicCoverage map[string]TopicStatus `json:"topicCoverage"`
	// CurrentFocus is the topic currently being probed, or empty.
	CurrentFocus string `json:"currentFocus,omitempty"`
}

// Complete reports whether the session has reached its terminal phase.
func (s SessionState) Complete() bool {
	return s.Phase == PhaseComplete
}

// Record is the persisted unit for one (user, date) pair. It is created on
// the first message of a day and replaced whole after every turn.
type Record struct {
	Date      string       `json:"date"`
	UserID    string       `json:"userId"`
	Messages  []Message    `json:"messages"`
	State     SessionState `json:"sessionState"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Started reports whether a session exists for this record's date.
// A record with zero messages is equivalent to no session having started.
func (r *Record) Started() bool {
	return r != nil && len(r.Messages) > 0
}

// LastMessages returns up to n trailing messages in order.
func (r *Record) LastMessages(n int) []Message {
	if r == nil || n <= 0 {
		return nil
	}
	if len(r.Messages) <= n {
		return r.Messages
	}
	return r.Messages[len(r.Messages)-n:]
}

// Topic labels the coverage analysis draws from. The analysis may return
// labels outside this vocabulary; these are the ones it is steered toward.
var TopicVocabulary = []string{
	"daily_progress",
	"current_challenges",
	"immediate_plans",
	"goals_status",
	"mental_blocks",
	"team_issues",
	"product_development",
	"customer_feedback",
	"funding",
	"personal_wellbeing",
}

// TopicAnalysis is the transient output of the per-turn coverage analysis.
// It is recomputed each turn from the trailing messages and never persisted.
type TopicAnalysis struct {
	Topics                  []string `json:"topics"`
	CurrentTopicSpecificity int      `json:"currentTopicSpecificity"`
	ShouldMoveToNewTopic    bool     `json:"shouldMoveToNewTopic"`
	SuggestedNextTopic      string   `json:"suggestedNextTopic,omitempty"`
}

// Clamp bounds the specificity score to [0,3] and drops blank topic labels.
func (a *TopicAnalysis) Clamp() {
	if a.CurrentTopicSpecificity < 0 {
		a.CurrentTopicSpecificity = 0
	}
	if a.CurrentTopicSpecificity > 3 {
		a.CurrentTopicSpecificity = 3
	}
	topics := a.Topics[:0]
	for _, t := range a.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	a.Topics = topics
}

// Profile holds the founder's editable profile, stored per user.
type Profile struct {
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	CompanyName string    `json:"companyName,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Goals       []string  `json:"goals,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WeeklySummary is the structured insight digest for one week of sessions.
type WeeklySummary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	WeekStart    string    `json:"weekStart"`
	Wins         []string  `json:"wins"`
	Challenges   []string  `json:"challenges"`
	Patterns     []string  `json:"patterns"`
	Advice       string    `json:"advice"`
	SessionCount int       `json:"sessionCount"`
	CreatedAt    time.Time `json:"createdAt"`
}
