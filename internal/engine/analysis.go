package engine

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/reflectd-dev/reflectd/internal/generator"
	"github.com/reflectd-dev/reflectd/internal/reflection"
)

// analysisWindow is how many trailing messages feed the coverage analysis.
const analysisWindow = 4

// topicAnalysisSchema constrains the structured-generation call. Specificity
// bounds are enforced here and clamped again on receipt.
func topicAnalysisSchema() *generator.Schema {
	return &generator.Schema{
		Type: "object",
		Properties: map[string]*generator.Schema{
			"topics": {
				Type:        "array",
				Items:       &generator.Schema{Type: "string"},
				Description: "Topic labels discussed in the excerpt.",
			},
			"currentTopicSpecificity": {
				Type:    "integer",
				Minimum: generator.Float(0),
				Maximum: generator.Float(3),
			},
			"shouldMoveToNewTopic": {Type: "boolean"},
			"suggestedNextTopic":   {Type: "string"},
		},
		Required: []string{"topics", "currentTopicSpecificity", "shouldMoveToNewTopic"},
	}
}

// neutralAnalysis is the degraded result when the analysis call fails:
// continue the current topic at specificity 1, no pivot.
func neutralAnalysis(state reflection.SessionState) reflection.TopicAnalysis {
	return reflection.TopicAnalysis{
		Topics:                  append([]string(nil), state.Topics...),
		CurrentTopicSpecificity: 1,
	}
}

// analyzeTopics runs the coverage analysis over the trailing window.
// It returns a neutral result when the transcript is too short and degrades
// to one on generator failure; it never blocks the turn.
func (e *Engine) analyzeTopics(ctx context.Context, rec *reflection.Record) reflection.TopicAnalysis {
	if len(rec.Messages) < 2 {
		return reflection.TopicAnalysis{}
	}

	raw, err := e.gen.GenerateObject(ctx, generator.ObjectRequest{
		TextRequest: generator.TextRequest{
			System:      analysisSystemPrompt,
			Prompt:      buildAnalysisPrompt(rec.LastMessages(analysisWindow)),
			Temperature: 0.2,
			MaxTokens:   300,
		},
		Schema:     topicAnalysisSchema(),
		SchemaName: "topic_analysis",
	})
	if err != nil {
		e.logger.Warn("topic analysis degraded",
			zap.String("user_id", rec.UserID),
			zap.String("date", rec.Date),
			zap.Error(err))
		return neutralAnalysis(rec.State)
	}

	var analysis reflection.TopicAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		e.logger.Warn("topic analysis unmarshal failed",
			zap.String("user_id", rec.UserID),
			zap.Error(err))
		return neutralAnalysis(rec.State)
	}

	analysis.Clamp()
	return analysis
}

// mergeAnalysis folds the transient analysis into the session's persistent
// topic memory: topic set, per-topic coverage, and current focus.
func mergeAnalysis(state *reflection.SessionState, analysis reflection.TopicAnalysis) {
	if state.TopicCoverage == nil {
		state.TopicCoverage = make(map[string]reflection.TopicStatus)
	}

	// Specificity describes the topic in focus, not every topic mentioned.
	current := state.CurrentFocus
	if current == "" && len(analysis.Topics) > 0 {
		current = analysis.Topics[0]
	}

	for _, topic := range analysis.Topics {
		if !containsTopic(state.Topics, topic) {
			state.Topics = append(state.Topics, topic)
		}

		status := state.TopicCoverage[topic]
		status.Mentioned = true
		status.LastQuestionIndex = state.QuestionCount
		if topic == current && analysis.CurrentTopicSpecificity > status.Specificity {
			status.Specificity = analysis.CurrentTopicSpecificity
		}
		status.Explored = status.Specificity >= 3
		state.TopicCoverage[topic] = status
	}

	switch {
	case analysis.ShouldMoveToNewTopic && analysis.SuggestedNextTopic != "":
		state.CurrentFocus = analysis.SuggestedNextTopic
	case state.CurrentFocus == "" && len(analysis.Topics) > 0:
		state.CurrentFocus = analysis.Topics[0]
	}
}

func containsTopic(topics []string, topic string) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}
