package generator

import (
	"context"
	"encoding/json"
	"sync"
)

// Mock is a scripted Generator for tests and offline use. Responses and
// errors are consumed in order; when the script runs out, defaults are
// returned. Mock is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// TextResponses are returned by GenerateText in order.
	TextResponses []string
	// ObjectResponses are returned by GenerateObject in order.
	ObjectResponses []json.RawMessage
	// TextErrors and ObjectErrors are consumed alongside the responses;
	// a non-nil error at the current index wins over the response.
	TextErrors   []error
	ObjectErrors []error

	// Recorded calls.
	TextCalls   []TextRequest
	ObjectCalls []ObjectRequest

	textIndex   int
	objectIndex int
}

// NewMock creates an empty scripted generator.
func NewMock() *Mock { return &Mock{} }

// Name returns the provider name.
func (m *Mock) Name() string { return "mock" }

// GenerateText returns the next scripted text response.
func (m *Mock) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TextCalls = append(m.TextCalls, req)
	i := m.textIndex
	m.textIndex++

	if i < len(m.TextErrors) && m.TextErrors[i] != nil {
		return "", textErr(m.Name(), m.TextErrors[i])
	}
	if i < len(m.TextResponses) {
		return m.TextResponses[i], nil
	}
	return "What felt most important about that?", nil
}

// GenerateObject returns the next scripted object response.
func (m *Mock) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ObjectCalls = append(m.ObjectCalls, req)
	i := m.objectIndex
	m.objectIndex++

	if i < len(m.ObjectErrors) && m.ObjectErrors[i] != nil {
		return nil, objectErr(m.Name(), m.ObjectErrors[i])
	}
	if i < len(m.ObjectResponses) {
		return m.ObjectResponses[i], nil
	}
	return json.RawMessage(`{}`), nil
}
