package config

import (
	"errors"
	"strings"
)

// Team is the decoded team file. The layout follows the component format
// exported by the agent studio tooling: every component is a provider tag
// plus a config object.
type Team struct {
	Provider string     `json:"provider"`
	Config   TeamConfig `json:"config"`
}

type TeamConfig struct {
	Participants         []Participant `json:"participants"`
	ModelClient          ModelClient   `json:"model_client"`
	TerminationCondition Termination   `json:"termination_condition"`
}

// Participant is one configured agent role. Participants are not validated
// here; unrecognized ones are dropped when agents are assembled.
type Participant struct {
	Provider string            `json:"provider"`
	Config   ParticipantConfig `json:"config"`
}

type ParticipantConfig struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	SystemMessage string `json:"system_message"`
}

type ModelClient struct {
	Provider string `json:"provider"`
	Config   struct {
		Model string `json:"model" validate:"required"`
	} `json:"config"`
}

type Termination struct {
	Provider string `json:"provider"`
	Config   struct {
		Conditions []Condition `json:"conditions" validate:"required,min=1,dive"`
	} `json:"config"`
}

type Condition struct {
	Provider string `json:"provider"`
	Config   struct {
		MaxMessages int `json:"max_messages"`
	} `json:"config"`
}

// Selection is the speaker selection strategy of the group chat.
type Selection string

const (
	SelectionAuto       Selection = "auto"
	SelectionRoundRobin Selection = "round_robin"
)

var errMaxRounds = errors.New("config: termination_condition.config.conditions[0].config.max_messages must be a positive integer")

// MaxRounds returns the round limit of the first termination condition.
func (t *Team) MaxRounds() (int, error) {
	conds := t.Config.TerminationCondition.Config.Conditions
	if len(conds) == 0 || conds[0].Config.MaxMessages <= 0 {
		return 0, errMaxRounds
	}
	return conds[0].Config.MaxMessages, nil
}

// Model returns the configured model id.
func (t *Team) Model() string {
	return t.Config.ModelClient.Config.Model
}

// Participants returns the configured participants in file order.
func (t *Team) Participants() []Participant {
	return t.Config.Participants
}

// Selection derives the speaker selection strategy from the team provider.
func (t *Team) Selection() Selection {
	if strings.HasSuffix(t.Provider, "RoundRobinGroupChat") {
		return SelectionRoundRobin
	}
	return SelectionAuto
}
