package generator

import (
	"encoding/json"
	"testing"
)

func analysisSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"topics": {
				Type:  "array",
				Items: &Schema{Type: "string"},
			},
			"currentTopicSpecificity": {
				Type:    "integer",
				Minimum: Float(0),
				Maximum: Float(3),
			},
			"shouldMoveToNewTopic": {Type: "boolean"},
			"suggestedNextTopic":   {Type: "string"},
		},
		Required: []string{"topics", "currentTopicSpecificity", "shouldMoveToNewTopic"},
	}
}

func TestSchemaValidate(t *testing.T) {
	schema := analysisSchema()

	tests := []struct {
		name    string
		payload string
		wantOK  bool
	}{
		{
			name:    "conforming payload",
			payload: `{"topics":["funding"],"currentTopicSpecificity":2,"shouldMoveToNewTopic":false,"suggestedNextTopic":"team_issues"}`,
			wantOK:  true,
		},
		{
			name:    "missing required field",
			payload: `{"topics":[],"currentTopicSpecificity":1}`,
			wantOK:  false,
		},
		{
			name:    "specificity above maximum",
			payload: `{"topics":[],"currentTopicSpecificity":5,"shouldMoveToNewTopic":true}`,
			wantOK:  false,
		},
		{
			name:    "specificity below minimum",
			payload: `{"topics":[],"currentTopicSpecificity":-1,"shouldMoveToNewTopic":true}`,
			wantOK:  false,
		},
		{
			name:    "wrong type for topics",
			payload: `{"topics":"funding","currentTopicSpecificity":1,"shouldMoveToNewTopic":false}`,
			wantOK:  false,
		},
		{
			name:    "non-integer specificity",
			payload: `{"topics":[],"currentTopicSpecificity":1.5,"shouldMoveToNewTopic":false}`,
			wantOK:  false,
		},
		{
			name:    "array item type enforced",
			payload: `{"topics":[7],"currentTopicSpecificity":1,"shouldMoveToNewTopic":false}`,
			wantOK:  false,
		},
		{
			name:    "not JSON",
			payload: `deepen the current topic`,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := schema.Validate(json.RawMessage(tt.payload))
			if tt.wantOK && len(violations) > 0 {
				t.Errorf("Validate() violations = %v, want none", violations)
			}
			if !tt.wantOK && len(violations) == 0 {
				t.Error("Validate() found no violations, want at least one")
			}
		})
	}
}

func TestSchemaValidateEnum(t *testing.T) {
	schema := &Schema{Type: "string", Enum: []any{"user", "assistant"}}

	if v := schema.Validate(json.RawMessage(`"user"`)); len(v) > 0 {
		t.Errorf("enum member rejected: %v", v)
	}
	if v := schema.Validate(json.RawMessage(`"system"`)); len(v) == 0 {
		t.Error("non-member accepted")
	}
}
