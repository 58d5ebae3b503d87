package domain

// ChatMessage is the provider-agnostic chat message shape exchanged between
// agents, the coordinator and the LLM integration. Name carries the speaking
// agent inside a group chat and is empty for system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
