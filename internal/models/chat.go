package models

// ChatRequest is the request body for an OpenAI-compatible /chat/completions
// call.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []HistoryTurn `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse is the non-streaming completion response. Only the fields the
// bot reads are declared.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}
