package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds the process configuration read from the environment.
type Settings struct {
	APIKey     string `envconfig:"AZURE_OPENAI_API_KEY"`
	Endpoint   string `envconfig:"AZURE_OPENAI_ENDPOINT"`
	APIVersion string `envconfig:"AZURE_OPENAI_API_VERSION"`
	Deployment string `envconfig:"AZURE_OPENAI_DEPLOYMENT_NAME"`

	TeamConfigPath   string        `envconfig:"TEAM_CONFIG_PATH" default:"team-config.json"`
	ListenAddr       string        `envconfig:"LISTEN_ADDR" default:":8080"`
	TranscriptTable  string        `envconfig:"TRANSCRIPT_TABLE"`
	ParamPrefix      string        `envconfig:"PARAM_PREFIX"`
	MaxMessageLength int           `envconfig:"MAX_MESSAGE_LENGTH" default:"4000"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	LLMTimeout       time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`
}

// Credentials are the Azure OpenAI values consumed by the LLM integration.
type Credentials struct {
	APIKey     string
	Endpoint   string
	APIVersion string
	Deployment string

	// KeyFromParamStore is set when the API key is read from SSM at first use.
	KeyFromParamStore bool
}

// CredentialStatus is one line of the configuration sidebar.
type CredentialStatus struct {
	Label      string
	Configured bool

	// Source names where a configured value comes from when it is not the
	// environment.
	Source string
}

func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, fmt.Errorf("config: read environment: %w", err)
	}
	return s, nil
}

func (s Settings) Credentials() Credentials {
	return Credentials{
		APIKey:     strings.TrimSpace(s.APIKey),
		Endpoint:   strings.TrimSpace(s.Endpoint),
		APIVersion: strings.TrimSpace(s.APIVersion),
		Deployment: strings.TrimSpace(s.Deployment),

		KeyFromParamStore: strings.TrimSpace(s.APIKey) == "" && strings.TrimSpace(s.ParamPrefix) != "",
	}
}

// Status reports which credentials are present. Missing values do not block
// initialization; they only fail once the model is called.
func (c Credentials) Status() []CredentialStatus {
	key := CredentialStatus{Label: "Azure OpenAI API Key", Configured: c.APIKey != ""}
	if !key.Configured && c.KeyFromParamStore {
		key.Configured = true
		key.Source = "SSM"
	}
	return []CredentialStatus{
		key,
		{Label: "Azure OpenAI Endpoint", Configured: c.Endpoint != ""},
		{Label: "Azure OpenAI API Version", Configured: c.APIVersion != ""},
		{Label: "Azure OpenAI Deployment", Configured: c.Deployment != ""},
	}
}
