package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"team-chat/internal/domain"
)

// TerminationMarker ends a group chat when an agent's predicate sees it.
const TerminationMarker = "TERMINATE"

const defaultSystemMessage = "You are a helpful AI assistant. Solve tasks using your language skills. " +
	"Reply \"" + TerminationMarker + "\" in the end when everything is done."

// ErrCannotSpeak is returned by Reply on agents that never produce messages.
var ErrCannotSpeak = errors.New("agent: agent does not generate replies")

// LLM is the chat completion dependency of LLM-backed agents.
type LLM interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Agent is one participant of a group chat.
type Agent interface {
	Name() string
	Description() string
	Kind() Kind
	// CanSpeak reports whether the agent may be selected as a speaker.
	CanSpeak() bool
	Reply(ctx context.Context, history []domain.ChatMessage) (domain.ChatMessage, error)
	IsTermination(msg domain.ChatMessage) bool
}

// Assistant answers from its system message and the shared history.
type Assistant struct {
	name          string
	description   string
	systemMessage string
	llm           LLM
}

func NewAssistant(name, description, systemMessage string, llm LLM) *Assistant {
	if strings.TrimSpace(systemMessage) == "" {
		systemMessage = defaultSystemMessage
	}
	if strings.TrimSpace(description) == "" {
		description = systemMessage
	}
	return &Assistant{name: name, description: description, systemMessage: systemMessage, llm: llm}
}

func (a *Assistant) Name() string          { return a.name }
func (a *Assistant) Description() string   { return a.description }
func (a *Assistant) Kind() Kind            { return KindAssistant }
func (a *Assistant) CanSpeak() bool        { return a.llm != nil }
func (a *Assistant) SystemMessage() string { return a.systemMessage }

// Reply sends the history from this agent's point of view: its own messages
// as assistant turns, everyone else's as user turns prefixed with the sender.
func (a *Assistant) Reply(ctx context.Context, history []domain.ChatMessage) (domain.ChatMessage, error) {
	if a.llm == nil {
		return domain.ChatMessage{}, ErrCannotSpeak
	}
	messages := make([]domain.ChatMessage, 0, len(history)+1)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: a.systemMessage})
	for _, m := range history {
		messages = append(messages, a.perspective(m))
	}

	content, err := a.llm.Chat(ctx, messages)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("agent %s: %w", a.name, err)
	}
	return domain.ChatMessage{Role: domain.RoleAssistant, Name: a.name, Content: content}, nil
}

func (a *Assistant) perspective(m domain.ChatMessage) domain.ChatMessage {
	if m.Name == a.name {
		return domain.ChatMessage{Role: domain.RoleAssistant, Content: m.Content}
	}
	content := m.Content
	if m.Name != "" {
		content = m.Name + ": " + content
	}
	return domain.ChatMessage{Role: domain.RoleUser, Content: content}
}

// IsTermination matches a reply that is exactly the termination marker.
func (a *Assistant) IsTermination(msg domain.ChatMessage) bool {
	return strings.TrimSpace(msg.Content) == TerminationMarker
}

// Proxy stands in for a participant that does not call the model in this
// deployment (user proxies and web surfers). It only watches the
// conversation for the termination marker.
type Proxy struct {
	name        string
	description string
	kind        Kind
}

func NewProxy(kind Kind, name, description string) *Proxy {
	return &Proxy{name: name, description: description, kind: kind}
}

func (p *Proxy) Name() string        { return p.name }
func (p *Proxy) Description() string { return p.description }
func (p *Proxy) Kind() Kind          { return p.kind }
func (p *Proxy) CanSpeak() bool      { return false }

func (p *Proxy) Reply(context.Context, []domain.ChatMessage) (domain.ChatMessage, error) {
	return domain.ChatMessage{}, ErrCannotSpeak
}

func (p *Proxy) IsTermination(msg domain.ChatMessage) bool {
	return strings.Contains(msg.Content, TerminationMarker)
}
