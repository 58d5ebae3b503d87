package agent

import (
	"log/slog"
	"strings"

	"team-chat/internal/config"
)

// Result is the outcome of Assemble.
type Result struct {
	Agents  []Agent
	Skipped []config.Participant
}

// Assemble builds one agent per participant, preserving order. Participants
// with an unrecognized provider tag or no name are skipped and logged, never
// an error.
func Assemble(participants []config.Participant, llm LLM) Result {
	var res Result
	for _, p := range participants {
		kind, ok := KindOf(p.Provider)
		if !ok {
			slog.Warn("skipping participant with unknown provider",
				"name", p.Config.Name, "provider", p.Provider)
			res.Skipped = append(res.Skipped, p)
			continue
		}
		if strings.TrimSpace(p.Config.Name) == "" {
			slog.Warn("skipping participant without a name", "provider", p.Provider)
			res.Skipped = append(res.Skipped, p)
			continue
		}
		res.Agents = append(res.Agents, constructorFor(kind)(p.Config, llm))
	}
	return res
}
