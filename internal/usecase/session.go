package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"team-chat/internal/agent"
	"team-chat/internal/config"
	"team-chat/internal/domain"
	"team-chat/internal/groupchat"
)

const (
	defaultMaxMessageLen = 4000
	defaultIdleTimeout   = 30 * time.Minute
)

type TeamLoader interface {
	Load(path string) (*config.Team, error)
}

// Coordinator runs one group conversation per call.
type Coordinator interface {
	Initiate(ctx context.Context, first agent.Agent, message string) (groupchat.Result, error)
}

type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, entry domain.Entry) error
	Load(ctx context.Context, sessionID string) (domain.Transcript, error)
}

// CoordinatorFactory wraps assembled agents into a coordinator.
type CoordinatorFactory func(team *config.Team, agents []agent.Agent) (Coordinator, error)

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// session is the per-user state: uninitialized until coordinator is set.
type session struct {
	id string

	mu          sync.Mutex
	coordinator Coordinator
	first       agent.Agent
	agents      []string
	transcript  domain.Transcript
	loaded      bool

	// lastUsed is guarded by SessionService.mu.
	lastUsed time.Time
}

func (s *session) ready() bool {
	return s.coordinator != nil
}

// SessionService owns the UI sessions of the process. Sessions share only
// the team loader, whose cached values are read-only.
type SessionService struct {
	loader         TeamLoader
	teamPath       string
	llm            agent.LLM
	store          TranscriptStore
	creds          config.Credentials
	maxMessageLen  int
	idleTimeout    time.Duration
	newCoordinator CoordinatorFactory
	now            func() time.Time

	mu        sync.Mutex
	sessions  map[string]*session
	lastSweep time.Time
}

type Option func(*SessionService)

func WithMaxMessageLength(n int) Option {
	return func(s *SessionService) {
		if n > 0 {
			s.maxMessageLen = n
		}
	}
}

// WithIdleTimeout sets how long an unused session is kept in memory. Its
// transcript stays in the store and is reloaded when the id comes back.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *SessionService) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

func WithCoordinatorFactory(f CoordinatorFactory) Option {
	return func(s *SessionService) {
		if f != nil {
			s.newCoordinator = f
		}
	}
}

func NewSessionService(loader TeamLoader, teamPath string, llm agent.LLM, store TranscriptStore, creds config.Credentials, opts ...Option) (*SessionService, error) {
	if loader == nil {
		return nil, errors.New("usecase: team loader must not be nil")
	}
	if strings.TrimSpace(teamPath) == "" {
		return nil, errors.New("usecase: team config path must not be empty")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: transcript store must not be nil")
	}
	s := &SessionService{
		loader:        loader,
		teamPath:      teamPath,
		llm:           llm,
		store:         store,
		creds:         creds,
		maxMessageLen: defaultMaxMessageLen,
		idleTimeout:   defaultIdleTimeout,
		now:           time.Now,
		sessions:      make(map[string]*session),
	}
	s.newCoordinator = func(team *config.Team, agents []agent.Agent) (Coordinator, error) {
		return BuildCoordinator(team, agents, llm)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BuildCoordinator is the default CoordinatorFactory: a group chat with the
// team's round limit and speaker selection, managed with llm as selector.
func BuildCoordinator(team *config.Team, agents []agent.Agent, llm agent.LLM) (Coordinator, error) {
	rounds, err := team.MaxRounds()
	if err != nil {
		return nil, err
	}
	chat, err := groupchat.New(agents, rounds, team.Selection())
	if err != nil {
		return nil, err
	}
	return groupchat.NewManager(chat, llm)
}

// View is everything the page needs to render one session.
type View struct {
	SessionID   string
	Ready       bool
	Agents      []string
	Transcript  domain.Transcript
	Credentials []config.CredentialStatus
	// Err is set when initialization failed on this render.
	Err *Error
}

// View returns the session's state, retrying initialization when it is not
// ready yet. A session for an empty or unknown id is not registered until the
// first Send.
func (s *SessionService) View(ctx context.Context, sessionID string) (View, error) {
	sess := s.session(sessionID, false)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := s.loadTranscript(ctx, sess); err != nil {
		return View{}, err
	}
	v := View{SessionID: sess.id, Credentials: s.creds.Status()}
	if err := s.ensureReady(sess); err != nil {
		v.Err = err
	}
	v.Ready = sess.ready()
	v.Agents = append([]string(nil), sess.agents...)
	v.Transcript = append(domain.Transcript(nil), sess.transcript...)
	return v, nil
}

type SendOutput struct {
	SessionID string
	Reply     string
}

// Send appends text to the transcript, runs one group conversation and
// appends its reply. When the conversation fails only the user entry remains.
func (s *SessionService) Send(ctx context.Context, sessionID, text string) (SendOutput, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(text) > s.maxMessageLen {
		return SendOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	sess := s.session(sessionID, true)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := SendOutput{SessionID: sess.id}

	if err := s.loadTranscript(ctx, sess); err != nil {
		return out, err
	}
	if err := s.ensureReady(sess); err != nil {
		return out, err
	}
	if err := s.appendEntry(ctx, sess, domain.RoleUser, text); err != nil {
		return out, err
	}

	started := time.Now()
	res, err := sess.coordinator.Initiate(ctx, sess.first, text)
	if err != nil {
		slog.Error("group chat turn failed", "session", sess.id, "err", err)
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return out, newError(ErrorRateLimited, "llm_rate_limited", err)
		}
		return out, newError(ErrorTurn, "group_chat_error", err)
	}
	slog.Info("group chat turn completed",
		"session", sess.id,
		"rounds", res.Rounds(),
		"stop_reason", string(res.StopReason),
		"duration", time.Since(started))

	if err := s.appendEntry(ctx, sess, domain.RoleAssistant, res.Summary); err != nil {
		return out, err
	}
	out.Reply = res.Summary
	return out, nil
}

// session returns the session for id. Unknown ids get a fresh session that is
// registered only when register is set. Ids that are not UUIDs are replaced so
// clients cannot pick arbitrary store keys.
func (s *SessionService) session(id string, register bool) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		id = newUUID()
	}
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{id: id}
		if !register {
			return sess
		}
		s.sessions[id] = sess
	}
	sess.lastUsed = now
	return sess
}

// sweep drops sessions idle for longer than idleTimeout. It runs at most
// once per half timeout. Callers hold s.mu.
func (s *SessionService) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.idleTimeout/2 {
		return
	}
	s.lastSweep = now
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.idleTimeout {
			delete(s.sessions, id)
		}
	}
}

// ensureReady builds the session's agents and coordinator. Failures leave the
// session uninitialized so the next call retries.
func (s *SessionService) ensureReady(sess *session) *Error {
	if sess.ready() {
		return nil
	}
	team, err := s.loader.Load(s.teamPath)
	if err != nil {
		slog.Error("team config load failed", "path", s.teamPath, "err", err)
		return newError(ErrorConfig, "config_load_error", err)
	}

	assembled := agent.Assemble(team.Participants(), s.llm)
	if len(assembled.Agents) == 0 {
		return newError(ErrorInitialization, "no_agents", errors.New("no participant has a recognized provider"))
	}
	coordinator, err := s.newCoordinator(team, assembled.Agents)
	if err != nil {
		slog.Error("chat initialization failed", "session", sess.id, "err", err)
		return newError(ErrorInitialization, "coordinator_init_error", err)
	}

	sess.coordinator = coordinator
	sess.first = assembled.Agents[0]
	sess.agents = make([]string, 0, len(assembled.Agents))
	for _, a := range assembled.Agents {
		sess.agents = append(sess.agents, fmt.Sprintf("%s (%s)", a.Name(), a.Kind()))
	}
	slog.Info("chat initialized",
		"session", sess.id,
		"model", team.Model(),
		"agents", len(assembled.Agents),
		"skipped", len(assembled.Skipped))
	return nil
}

func (s *SessionService) loadTranscript(ctx context.Context, sess *session) error {
	if sess.loaded {
		return nil
	}
	tr, err := s.store.Load(ctx, sess.id)
	if err != nil {
		return newError(ErrorInternal, "transcript_load_error", err)
	}
	sess.transcript = tr
	sess.loaded = true
	return nil
}

func (s *SessionService) appendEntry(ctx context.Context, sess *session, role, content string) error {
	entry := domain.Entry{Role: role, Content: content, CreatedAt: time.Now().UTC()}
	if err := s.store.Append(ctx, sess.id, entry); err != nil {
		return newError(ErrorInternal, "transcript_write_error", err)
	}
	sess.transcript = append(sess.transcript, entry)
	return nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
