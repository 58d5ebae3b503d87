package groupchat

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"team-chat/internal/agent"
	"team-chat/internal/config"
	"team-chat/internal/domain"
)

// nextSpeaker picks who talks after last. last is nil before anyone spoke.
func (m *Manager) nextSpeaker(ctx context.Context, history []domain.ChatMessage, last agent.Agent) (agent.Agent, error) {
	candidates := m.chat.speakers()
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	}
	if m.chat.selection == config.SelectionRoundRobin || m.selector == nil {
		return roundRobin(candidates, last), nil
	}

	raw, err := m.selector.Chat(ctx, selectionPrompt(candidates, history))
	if err != nil {
		return nil, fmt.Errorf("groupchat: select speaker: %w", err)
	}
	if picked, ok := matchSpeaker(candidates, raw); ok {
		return picked, nil
	}
	return roundRobin(candidates, last), nil
}

func roundRobin(candidates []agent.Agent, last agent.Agent) agent.Agent {
	if last == nil {
		return candidates[0]
	}
	_, idx, ok := lo.FindIndexOf(candidates, func(a agent.Agent) bool {
		return a == last
	})
	if !ok {
		return candidates[0]
	}
	return candidates[(idx+1)%len(candidates)]
}

// matchSpeaker accepts an exact name, or a reply that mentions exactly one
// candidate.
func matchSpeaker(candidates []agent.Agent, raw string) (agent.Agent, bool) {
	answer := strings.Trim(strings.TrimSpace(raw), "\"'`.")
	if picked, ok := lo.Find(candidates, func(a agent.Agent) bool {
		return a.Name() == answer
	}); ok {
		return picked, true
	}
	mentioned := lo.Filter(candidates, func(a agent.Agent, _ int) bool {
		return strings.Contains(raw, a.Name())
	})
	if len(mentioned) == 1 {
		return mentioned[0], true
	}
	return nil, false
}

func selectionPrompt(candidates []agent.Agent, history []domain.ChatMessage) []domain.ChatMessage {
	roles := lo.Map(candidates, func(a agent.Agent, _ int) string {
		return a.Name() + ": " + a.Description()
	})
	names := strings.Join(lo.Map(candidates, func(a agent.Agent, _ int) string {
		return a.Name()
	}), ", ")

	messages := []domain.ChatMessage{{
		Role: domain.RoleSystem,
		Content: "You are in a role play game. The following roles are available:\n" +
			strings.Join(roles, "\n") +
			"\n\nRead the following conversation. Then select the next role from [" + names + "] to play. Only return the role.",
	}}
	for _, h := range history {
		content := h.Content
		if h.Name != "" {
			content = h.Name + ": " + content
		}
		messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: content})
	}
	return append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: "Read the above conversation. Then select the next role from [" + names + "] to play. Only return the role.",
	})
}
