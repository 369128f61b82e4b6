package engine

import (
	"fmt"
	"strings"

	"github.com/reflectd-dev/reflectd/internal/reflection"
)

// Fixed, hand-authored messages. The opening and closing are never generated;
// the two fallback questions cover generator outages so a turn always
// completes.
const (
	openingMessage = "Welcome back. What's one piece of progress you made since yesterday — big or small?"

	closingMessage = "Thanks for reflecting today. Showing up daily is how momentum compounds. " +
		"I've saved today's session — see you tomorrow."

	fallbackFinalQuestion = "Before we wrap up: what's one specific action you'll commit to tomorrow?"

	fallbackProbeQuestion = "What's the most specific challenge in front of you right now, " +
		"and what would help you move forward?"
)

const analysisSystemPrompt = "You analyze a founder's daily reflection conversation and report topic coverage."

const questionSystemPrompt = "You are a thoughtful coach for early-stage startup founders, " +
	"guiding a short daily written reflection. Ask exactly one question. " +
	"Keep it under 80 words. Never re-ask for detail the founder already gave."

// buildAnalysisPrompt asks for topic coverage over the trailing window of the
// transcript.
func buildAnalysisPrompt(window []reflection.Message) string {
	var b strings.Builder
	b.WriteString("Analyze the topic coverage of this conversation excerpt.\n")
	b.WriteString("Known topic labels: ")
	b.WriteString(strings.Join(reflection.TopicVocabulary, ", "))
	b.WriteString(".\nPrefer these labels, but introduce a new snake_case label when nothing fits.\n")
	b.WriteString("Score currentTopicSpecificity 0-3: 0 = not discussed, 3 = concrete details, numbers, or named people.\n")
	b.WriteString("Set shouldMoveToNewTopic when the current topic is exhausted or the founder is circling.\n\n")
	writeTranscript(&b, window)
	return b.String()
}

// buildQuestionPrompt embeds the turn bookkeeping, the analysis verdict, and
// the transcript so far.
func buildQuestionPrompt(rec *reflection.Record, analysis reflection.TopicAnalysis, turn, remaining int, elapsedMinutes float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "This is follow-up %d of the session; %d question(s) remain; %.0f minute(s) elapsed.\n",
		turn, remaining, elapsedMinutes)

	if len(rec.State.Topics) > 0 {
		fmt.Fprintf(&b, "Topics touched so far: %s.\n", strings.Join(rec.State.Topics, ", "))
	}

	focus := rec.State.CurrentFocus
	if focus == "" && len(analysis.Topics) > 0 {
		focus = analysis.Topics[0]
	}

	if analysis.ShouldMoveToNewTopic && analysis.SuggestedNextTopic != "" {
		fmt.Fprintf(&b, "The current topic (%s) feels exhausted. Pivot to %s with your next question.\n",
			focus, analysis.SuggestedNextTopic)
	} else if analysis.CurrentTopicSpecificity < 3 {
		fmt.Fprintf(&b, "The current topic (%s) is at specificity %d of 3. Ask a question that makes it more concrete.\n",
			focus, analysis.CurrentTopicSpecificity)
	} else {
		fmt.Fprintf(&b, "The current topic (%s) is fully concrete. Move the conversation somewhere useful.\n", focus)
	}

	if remaining <= 1 {
		b.WriteString("This is the final question: steer toward one committed action for tomorrow.\n")
	}

	b.WriteString("\n")
	writeTranscript(&b, rec.Messages)
	return b.String()
}

func writeTranscript(b *strings.Builder, messages []reflection.Message) {
	b.WriteString("Conversation:\n")
	for _, m := range messages {
		label := "Founder"
		if m.Role == reflection.RoleAssistant {
			label = "Coach"
		}
		fmt.Fprintf(b, "%s: %s\n", label, m.Content)
	}
}
