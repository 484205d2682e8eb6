package models

// Request is one turn's input to the chat core.
type Request struct {
	ThreadID  string            `json:"thread_id"`
	Input     string            `json:"input"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Response is the aggregate result of a one-shot turn.
type Response struct {
	Content string `json:"content"`
}
