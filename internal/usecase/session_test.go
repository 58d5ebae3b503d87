package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"team-chat/internal/agent"
	"team-chat/internal/config"
	"team-chat/internal/domain"
	"team-chat/internal/groupchat"
	"team-chat/internal/integrations/azureopenai"
	"team-chat/internal/repository"
)

type fakeLoader struct {
	team  *config.Team
	err   error
	calls int
}

func (f *fakeLoader) Load(_ string) (*config.Team, error) {
	f.calls++
	return f.team, f.err
}

type fakeCoordinator struct {
	result       groupchat.Result
	err          error
	firstName    string
	message      string
	initiateCall int
}

func (f *fakeCoordinator) Initiate(_ context.Context, first agent.Agent, message string) (groupchat.Result, error) {
	f.initiateCall++
	f.firstName = first.Name()
	f.message = message
	return f.result, f.err
}

type fakeLLM struct {
	answer string
	err    error
}

func (f *fakeLLM) Chat(_ context.Context, _ []domain.ChatMessage) (string, error) {
	return f.answer, f.err
}

type failingStore struct {
	*repository.MemoryStore
	appendErr error
	loadErr   error
}

func (f *failingStore) Append(ctx context.Context, id string, e domain.Entry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.MemoryStore.Append(ctx, id, e)
}

func (f *failingStore) Load(ctx context.Context, id string) (domain.Transcript, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.MemoryStore.Load(ctx, id)
}

func testTeam(providers ...string) *config.Team {
	team := &config.Team{Provider: "autogen_agentchat.teams.SelectorGroupChat"}
	for i, p := range providers {
		team.Config.Participants = append(team.Config.Participants, config.Participant{
			Provider: p,
			Config: config.ParticipantConfig{
				Name:          []string{"A", "B", "C", "D"}[i],
				Description:   "role",
				SystemMessage: "x",
			},
		})
	}
	team.Config.ModelClient.Config.Model = "gpt-4o"
	team.Config.TerminationCondition.Config.Conditions = []config.Condition{{}}
	team.Config.TerminationCondition.Config.Conditions[0].Config.MaxMessages = 6
	return team
}

const (
	assistantTag = "autogen_agentchat.agents.AssistantAgent"
	proxyTag     = "autogen_agentchat.agents.UserProxyAgent"
	unknownTag   = "autogen_agentchat.agents.UnknownAgent"
)

func newTestService(t *testing.T, loader TeamLoader, store TranscriptStore, coord *fakeCoordinator) *SessionService {
	t.Helper()
	var opts []Option
	if coord != nil {
		opts = append(opts, WithCoordinatorFactory(func(*config.Team, []agent.Agent) (Coordinator, error) {
			return coord, nil
		}))
	}
	svc, err := NewSessionService(loader, "team-config.json", &fakeLLM{answer: "ok"}, store, config.Credentials{APIKey: "k"}, opts...)
	require.NoError(t, err)
	return svc
}

func expectUsecaseError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func TestNewSessionService_ValidatesDependencies(t *testing.T) {
	store := repository.NewMemoryStore()
	loader := &fakeLoader{}
	llm := &fakeLLM{}

	_, err := NewSessionService(nil, "p", llm, store, config.Credentials{})
	require.Error(t, err)
	_, err = NewSessionService(loader, " ", llm, store, config.Credentials{})
	require.Error(t, err)
	_, err = NewSessionService(loader, "p", nil, store, config.Credentials{})
	require.Error(t, err)
	_, err = NewSessionService(loader, "p", llm, nil, config.Credentials{})
	require.Error(t, err)
}

func TestSend_HappyPath(t *testing.T) {
	coord := &fakeCoordinator{result: groupchat.Result{Summary: "hi from the team"}}
	svc := newTestService(t, &fakeLoader{team: testTeam(proxyTag, assistantTag)}, repository.NewMemoryStore(), coord)

	v, err := svc.View(context.Background(), "")
	require.NoError(t, err)
	require.True(t, v.Ready)
	require.Nil(t, v.Err)

	out, err := svc.Send(context.Background(), v.SessionID, "hello")
	require.NoError(t, err)
	require.Equal(t, "hi from the team", out.Reply)
	require.Equal(t, v.SessionID, out.SessionID)
	require.Equal(t, "A", coord.firstName)
	require.Equal(t, "hello", coord.message)

	v, err = svc.View(context.Background(), v.SessionID)
	require.NoError(t, err)
	require.Len(t, v.Transcript, 2)
	require.Equal(t, domain.RoleUser, v.Transcript[0].Role)
	require.Equal(t, "hello", v.Transcript[0].Content)
	require.Equal(t, domain.RoleAssistant, v.Transcript[1].Role)
	require.Equal(t, "hi from the team", v.Transcript[1].Content)
}

func TestSend_TurnFailureKeepsOnlyUserEntry(t *testing.T) {
	coord := &fakeCoordinator{err: errors.New("credentials rejected")}
	svc := newTestService(t, &fakeLoader{team: testTeam(assistantTag)}, repository.NewMemoryStore(), coord)
	v, err := svc.View(context.Background(), "")
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), v.SessionID, "hello")
	expectUsecaseError(t, err, ErrorTurn, "group_chat_error")

	v, err = svc.View(context.Background(), v.SessionID)
	require.NoError(t, err)
	require.True(t, v.Ready)
	require.Len(t, v.Transcript, 1)
	require.Equal(t, domain.RoleUser, v.Transcript[0].Role)
	require.Equal(t, "hello", v.Transcript[0].Content)
}

func TestSend_RateLimited(t *testing.T) {
	coord := &fakeCoordinator{err: &azureopenai.HTTPStatusError{StatusCode: http.StatusTooManyRequests}}
	svc := newTestService(t, &fakeLoader{team: testTeam(assistantTag)}, repository.NewMemoryStore(), coord)

	_, err := svc.Send(context.Background(), "", "hello")
	expectUsecaseError(t, err, ErrorRateLimited, "llm_rate_limited")
}

func TestSend_ValidationErrors(t *testing.T) {
	coord := &fakeCoordinator{}
	svc := newTestService(t, &fakeLoader{team: testTeam(assistantTag)}, repository.NewMemoryStore(), coord)

	_, err := svc.Send(context.Background(), "", "   ")
	expectUsecaseError(t, err, ErrorInvalidInput, "empty_message")

	_, err = svc.Send(context.Background(), "", strings.Repeat("a", defaultMaxMessageLen+1))
	expectUsecaseError(t, err, ErrorInvalidInput, "message_too_long")
	require.Zero(t, coord.initiateCall)
}

func TestView_ConfigErrorIsRetriedOnNextRender(t *testing.T) {
	loader := &fakeLoader{err: &config.Error{Path: "team-config.json", Err: errors.New("no such file")}}
	coord := &fakeCoordinator{result: groupchat.Result{Summary: "ok"}}
	svc := newTestService(t, loader, repository.NewMemoryStore(), coord)

	v, err := svc.View(context.Background(), "")
	require.NoError(t, err)
	require.False(t, v.Ready)
	require.NotNil(t, v.Err)
	require.Equal(t, ErrorConfig, v.Err.Code)
	require.Contains(t, v.Err.UserMessage(), "Error initializing chat")

	_, err = svc.Send(context.Background(), v.SessionID, "hello")
	expectUsecaseError(t, err, ErrorConfig, "config_load_error")
	require.Zero(t, coord.initiateCall)

	loader.err = nil
	loader.team = testTeam(assistantTag)
	v, err = svc.View(context.Background(), v.SessionID)
	require.NoError(t, err)
	require.True(t, v.Ready)
	require.Empty(t, v.Transcript)
}

func TestView_InitializationErrors(t *testing.T) {
	svc := newTestService(t, &fakeLoader{team: testTeam(unknownTag)}, repository.NewMemoryStore(), &fakeCoordinator{})
	v, err := svc.View(context.Background(), "")
	require.NoError(t, err)
	require.False(t, v.Ready)
	require.Equal(t, ErrorInitialization, v.Err.Code)
	require.Equal(t, "no_agents", v.Err.Reason)

	svc, err = NewSessionService(&fakeLoader{team: testTeam(assistantTag)}, "p", &fakeLLM{}, repository.NewMemoryStore(), config.Credentials{},
		WithCoordinatorFactory(func(*config.Team, []agent.Agent) (Coordinator, error) {
			return nil, errors.New("bad roster")
		}))
	require.NoError(t, err)
	v, err = svc.View(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "coordinator_init_error", v.Err.Reason)
}

func TestView_ReportsAgentsAndCredentials(t *testing.T) {
	svc := newTestService(t, &fakeLoader{team: testTeam(proxyTag, unknownTag, assistantTag)}, repository.NewMemoryStore(), &fakeCoordinator{})
	v, err := svc.View(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []string{"A (user_proxy)", "C (assistant)"}, v.Agents)
	require.Len(t, v.Credentials, 4)
	require.True(t, v.Credentials[0].Configured)
	require.False(t, v.Credentials[1].Configured)
}

func TestView_SessionIdentity(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newTestService(t, &fakeLoader{team: testTeam(assistantTag)}, store, &fakeCoordinator{})

	v, err := svc.View(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	_, err = uuid.Parse(v.SessionID)
	require.NoError(t, err)

	again, err := svc.View(context.Background(), v.SessionID)
	require.NoError(t, err)
	require.Equal(t, v.SessionID, again.SessionID)

	persisted := uuid.NewString()
	require.NoError(t, store.Append(context.Background(), persisted, domain.Entry{Role: domain.RoleUser, Content: "from an earlier process"}))
	restored, err := svc.View(context.Background(), persisted)
	require.NoError(t, err)
	require.Equal(t, persisted, restored.SessionID)
	require.Len(t, restored.Transcript, 1)
}

func TestSend_StoreErrors(t *testing.T) {
	store := &failingStore{MemoryStore: repository.NewMemoryStore(), appendErr: errors.New("write failed")}
	coord := &fakeCoordinator{result: groupchat.Result{Summary: "ok"}}
	svc := newTestService(t, &fakeLoader{team: testTeam(assistantTag)}, store, coord)

	_, err := svc.Send(context.Background(), "", "hello")
	expectUsecaseError(t, err, ErrorInternal, "transcript_write_error")
	require.Zero(t, coord.initiateCall)

	store = &failingStore{MemoryStore: repository.NewMemoryStore(), loadErr: errors.New("read failed")}
	svc = newTestService(t, &fakeLoader{team: testTeam(assistantTag)}, store, coord)
	_, err = svc.View(context.Background(), "")
	expectUsecaseError(t, err, ErrorInternal, "transcript_load_error")
}

func TestSend_DefaultCoordinator(t *testing.T) {
	team := testTeam(proxyTag, assistantTag)
	llm := &fakeLLM{answer: "The answer is 4. TERMINATE"}
	svc, err := NewSessionService(&fakeLoader{team: team}, "team-config.json", llm, repository.NewMemoryStore(), config.Credentials{})
	require.NoError(t, err)

	out, err := svc.Send(context.Background(), "", "what is 2+2?")
	require.NoError(t, err)
	require.Equal(t, "The answer is 4.", out.Reply)
}

func TestError_UserMessage(t *testing.T) {
	require.Equal(t, "Error getting response: boom", newError(ErrorTurn, "x", errors.New("boom")).UserMessage())
	require.Equal(t, "Invalid message: empty_message", newError(ErrorInvalidInput, "empty_message", nil).UserMessage())
	require.Contains(t, newError(ErrorRateLimited, "x", nil).UserMessage(), "rate limiting")
	require.Empty(t, (*Error)(nil).UserMessage())
}

func TestView_DoesNotRegisterSessions(t *testing.T) {
	svc := newTestService(t, &fakeLoader{team: testTeam(assistantTag)}, repository.NewMemoryStore(), &fakeCoordinator{})

	for i := 0; i < 100; i++ {
		_, err := svc.View(context.Background(), "")
		require.NoError(t, err)
	}
	require.Empty(t, svc.sessions)
}

func TestSessions_IdleSessionsAreEvicted(t *testing.T) {
	store := repository.NewMemoryStore()
	coord := &fakeCoordinator{result: groupchat.Result{Summary: "ok"}}
	loader := &fakeLoader{team: testTeam(assistantTag)}
	svc, err := NewSessionService(loader, "team-config.json", &fakeLLM{}, store, config.Credentials{},
		WithIdleTimeout(10*time.Minute),
		WithCoordinatorFactory(func(*config.Team, []agent.Agent) (Coordinator, error) {
			return coord, nil
		}))
	require.NoError(t, err)

	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	idle, err := svc.Send(context.Background(), "", "hello")
	require.NoError(t, err)
	clock = clock.Add(8 * time.Minute)
	active, err := svc.Send(context.Background(), "", "hello")
	require.NoError(t, err)
	require.Len(t, svc.sessions, 2)

	clock = clock.Add(5 * time.Minute)
	_, err = svc.View(context.Background(), active.SessionID)
	require.NoError(t, err)
	require.Len(t, svc.sessions, 1)
	require.Contains(t, svc.sessions, active.SessionID)
	loadsBefore := loader.calls

	// An evicted session comes back from the store.
	v, err := svc.View(context.Background(), idle.SessionID)
	require.NoError(t, err)
	require.Equal(t, idle.SessionID, v.SessionID)
	require.Len(t, v.Transcript, 2)
	require.Greater(t, loader.calls, loadsBefore)
}
