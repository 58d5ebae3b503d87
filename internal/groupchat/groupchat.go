package groupchat

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"team-chat/internal/agent"
	"team-chat/internal/config"
)

var (
	ErrNoAgents      = errors.New("groupchat: at least one agent is required")
	ErrInvalidRounds = errors.New("groupchat: max rounds must be a positive integer")
)

// GroupChat is the fixed roster and round limit of one conversation.
type GroupChat struct {
	agents    []agent.Agent
	maxRounds int
	selection config.Selection
}

func New(agents []agent.Agent, maxRounds int, selection config.Selection) (*GroupChat, error) {
	if len(agents) == 0 {
		return nil, ErrNoAgents
	}
	if maxRounds <= 0 {
		return nil, ErrInvalidRounds
	}
	seen := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		if a == nil {
			return nil, errors.New("groupchat: agent must not be nil")
		}
		if a.Name() == UserName {
			return nil, fmt.Errorf("groupchat: agent name %q is reserved for the user", UserName)
		}
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("groupchat: duplicate agent name %q", a.Name())
		}
		seen[a.Name()] = struct{}{}
	}
	if selection == "" {
		selection = config.SelectionAuto
	}
	return &GroupChat{
		agents:    append([]agent.Agent(nil), agents...),
		maxRounds: maxRounds,
		selection: selection,
	}, nil
}

func (g *GroupChat) Agents() []agent.Agent {
	return append([]agent.Agent(nil), g.agents...)
}

func (g *GroupChat) MaxRounds() int {
	return g.maxRounds
}

func (g *GroupChat) Selection() config.Selection {
	return g.selection
}

// speakers returns the agents eligible to be selected, in roster order.
func (g *GroupChat) speakers() []agent.Agent {
	return lo.Filter(g.agents, func(a agent.Agent, _ int) bool {
		return a.CanSpeak()
	})
}

func (g *GroupChat) agentByName(name string) (agent.Agent, bool) {
	return lo.Find(g.agents, func(a agent.Agent) bool {
		return a.Name() == name
	})
}

func (g *GroupChat) contains(target agent.Agent) bool {
	return lo.ContainsBy(g.agents, func(a agent.Agent) bool {
		return a == target
	})
}
