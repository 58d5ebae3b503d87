package azureopenai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"team-chat/internal/config"
	"team-chat/internal/domain"
)

const (
	defaultTimeout = 120 * time.Second
	keyParameter   = "/azure-openai-key"
)

// TokenGetter resolves a secret token by parameter name.
type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("azureopenai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls chat completions on one Azure OpenAI deployment.
type Client struct {
	creds       config.Credentials
	httpClient  *http.Client
	timeout     time.Duration
	tokens      TokenGetter
	paramPrefix string

	mu  sync.Mutex
	api *openai.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithParamStore makes the client read the API key from
// <prefix>/azure-openai-key when none is present in the credentials.
func WithParamStore(tokens TokenGetter, prefix string) Option {
	return func(c *Client) {
		c.tokens = tokens
		c.paramPrefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	}
}

// NewClient builds a client for creds. Missing credential values are not an
// error here; the upstream call reports them.
func NewClient(creds config.Credentials, opts ...Option) (*Client, error) {
	c := &Client{
		creds:   creds,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens != nil && c.paramPrefix == "" {
		return nil, errors.New("azureopenai: parameter prefix must not be empty")
	}
	return c, nil
}

// resolveAPI builds the SDK client on first successful use. A failed key
// lookup is not kept; the next call tries again.
func (c *Client) resolveAPI(ctx context.Context) (*openai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}

	key := c.creds.APIKey
	if key == "" && c.tokens != nil {
		// The lookup outlives a canceled request; its result serves every session.
		token, err := c.tokens.GetToken(context.WithoutCancel(ctx), c.paramPrefix+keyParameter)
		if err != nil {
			return nil, fmt.Errorf("azureopenai: resolve api key: %w", err)
		}
		key = token
	}
	reqOpts := []option.RequestOption{
		azure.WithEndpoint(c.creds.Endpoint, c.creds.APIVersion),
		azure.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}
	api := openai.NewClient(reqOpts...)
	c.api = &api
	return c.api, nil
}

// Chat sends messages to the deployment and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("azureopenai: messages must not be empty")
	}
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := api.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Messages: toParams(messages),
		Model:    openai.ChatModel(c.creds.Deployment),
	})
	if err != nil {
		return "", fmt.Errorf("azureopenai: request failed: %w", statusError(err))
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("azureopenai: no choices in response")
	}
	return completion.Choices[0].Message.Content, nil
}

func toParams(messages []domain.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// statusError converts SDK API errors into *HTTPStatusError so callers can
// branch on the status code without importing the SDK.
func statusError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	url := ""
	if apiErr.Request != nil && apiErr.Request.URL != nil {
		url = apiErr.Request.URL.String()
	}
	return &HTTPStatusError{
		StatusCode: apiErr.StatusCode,
		URL:        url,
		Body:       apiErr.Message,
	}
}
