package llm

import "context"

// MockClient is a test double for the LLM Client interface.
// Responses are served in order; the last one repeats.
type MockClient struct {
	Responses []*Response
	Err       error
	Calls     []string // records prompts sent
}

// Complete records the call and returns the next queued response.
func (m *MockClient) Complete(ctx context.Context, prompt string) (*Response, error) {
	m.Calls = append(m.Calls, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &Response{Content: "", Provider: "mock"}, nil
	}
	resp := m.Responses[0]
	if len(m.Responses) > 1 {
		m.Responses = m.Responses[1:]
	}
	return resp, nil
}
