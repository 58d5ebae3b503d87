package groupchat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"team-chat/internal/agent"
	"team-chat/internal/domain"
)

// UserName is the sender name of the message that starts a conversation.
const UserName = "user"

var (
	ErrUnknownAgent = errors.New("groupchat: initiating agent is not part of the group")
	ErrNoReply      = errors.New("groupchat: conversation ended before any agent replied")
)

type StopReason string

const (
	StopMaxRounds   StopReason = "max_rounds"
	StopTermination StopReason = "termination"
	StopNoSpeaker   StopReason = "no_speaker"
)

// Result is the outcome of one conversation.
type Result struct {
	Messages   []domain.ChatMessage
	StopReason StopReason
	// Summary is the text shown to the user: the last agent message with any
	// trailing termination marker removed.
	Summary string
}

// Rounds is the number of messages exchanged, the opening message included.
func (r Result) Rounds() int {
	return len(r.Messages)
}

// Manager sequences turns in a GroupChat. The selector LLM is used for
// automatic speaker selection; without one the manager rotates speakers.
type Manager struct {
	chat     *GroupChat
	selector agent.LLM
}

func NewManager(chat *GroupChat, selector agent.LLM) (*Manager, error) {
	if chat == nil {
		return nil, errors.New("groupchat: chat must not be nil")
	}
	return &Manager{chat: chat, selector: selector}, nil
}

func (m *Manager) Chat() *GroupChat {
	return m.chat
}

// Initiate posts message to the group on behalf of the user and runs the
// conversation until the round limit, a termination predicate, or a lack of
// speakers stops it. first answers first when it can speak.
func (m *Manager) Initiate(ctx context.Context, first agent.Agent, message string) (Result, error) {
	if first == nil || !m.chat.contains(first) {
		return Result{}, ErrUnknownAgent
	}

	history := []domain.ChatMessage{{Role: domain.RoleUser, Name: UserName, Content: message}}
	var last agent.Agent
	var stop StopReason

	for {
		// The opening message is never a termination message; the first
		// speaker always gets a turn.
		if last != nil && m.terminates(history[len(history)-1]) {
			stop = StopTermination
			break
		}
		if len(history) >= m.chat.maxRounds {
			stop = StopMaxRounds
			break
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		var speaker agent.Agent
		if last == nil && first.CanSpeak() {
			speaker = first
		} else {
			var err error
			speaker, err = m.nextSpeaker(ctx, history, last)
			if err != nil {
				return Result{}, err
			}
		}
		if speaker == nil {
			stop = StopNoSpeaker
			break
		}

		reply, err := speaker.Reply(ctx, history)
		if err != nil {
			return Result{}, fmt.Errorf("groupchat: round %d: %w", len(history), err)
		}
		reply.Role = domain.RoleAssistant
		reply.Name = speaker.Name()
		history = append(history, reply)
		last = speaker
	}

	res := Result{Messages: history, StopReason: stop}
	summary, ok := summarize(history)
	if !ok {
		return res, ErrNoReply
	}
	res.Summary = summary
	return res, nil
}

// terminates reports whether any agent other than the sender accepts msg as
// a termination message.
func (m *Manager) terminates(msg domain.ChatMessage) bool {
	for _, a := range m.chat.agents {
		if a.Name() == msg.Name {
			continue
		}
		if a.IsTermination(msg) {
			return true
		}
	}
	return false
}

// summarize returns the last non-empty agent message. ok is false when no
// agent spoke at all.
func summarize(history []domain.ChatMessage) (text string, ok bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != domain.RoleAssistant {
			continue
		}
		ok = true
		body := strings.TrimSpace(history[i].Content)
		body = strings.TrimSpace(strings.TrimSuffix(body, agent.TerminationMarker))
		if body != "" {
			return body, true
		}
	}
	return "", ok
}
