package agent

import (
	"strings"

	"team-chat/internal/config"
)

// Kind is the closed set of participant implementations.
type Kind int

const (
	KindWebSurfer Kind = iota + 1
	KindAssistant
	KindUserProxy
)

func (k Kind) String() string {
	switch k {
	case KindWebSurfer:
		return "web_surfer"
	case KindAssistant:
		return "assistant"
	case KindUserProxy:
		return "user_proxy"
	default:
		return "unknown"
	}
}

type constructor func(p config.ParticipantConfig, llm LLM) Agent

// kinds maps provider tag suffixes to constructors. Order matters only for
// readability; suffixes are disjoint.
var kinds = []struct {
	suffix string
	kind   Kind
	build  constructor
}{
	{
		suffix: "MultimodalWebSurfer",
		kind:   KindWebSurfer,
		build: func(p config.ParticipantConfig, _ LLM) Agent {
			return NewProxy(KindWebSurfer, p.Name, p.Description)
		},
	},
	{
		suffix: "AssistantAgent",
		kind:   KindAssistant,
		build: func(p config.ParticipantConfig, llm LLM) Agent {
			return NewAssistant(p.Name, p.Description, p.SystemMessage, llm)
		},
	},
	{
		suffix: "UserProxyAgent",
		kind:   KindUserProxy,
		build: func(p config.ParticipantConfig, _ LLM) Agent {
			return NewProxy(KindUserProxy, p.Name, p.Description)
		},
	},
}

// KindOf resolves a provider tag such as
// "autogen_agentchat.agents.AssistantAgent".
func KindOf(provider string) (Kind, bool) {
	provider = strings.TrimSpace(provider)
	for _, k := range kinds {
		if strings.HasSuffix(provider, k.suffix) {
			return k.kind, true
		}
	}
	return 0, false
}

func constructorFor(kind Kind) constructor {
	for _, k := range kinds {
		if k.kind == kind {
			return k.build
		}
	}
	return nil
}
