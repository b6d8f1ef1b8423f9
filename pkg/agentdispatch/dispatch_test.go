package agentdispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/ent/workitem"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestClient(t *testing.T) *ent.Client {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(pgContainer) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	drv, err := sql.Open(entsql.Postgres, connStr)
	require.NoError(t, err)

	client := ent.NewClient(ent.Driver(drv))
	require.NoError(t, client.Schema.Create(ctx))
	t.Cleanup(func() { _ = client.Close() })

	return client
}

type fakeRequests struct {
	failUntil int
	calls     int
	text      string
}

func (f *fakeRequests) BuildRequest(ctx context.Context, prevOutput map[string]any, item *ent.WorkItem) (string, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return "", errors.New("llm unavailable")
	}
	return f.text, nil
}

type fakeChannel struct {
	calls    int
	response any
}

func (f *fakeChannel) Send(ctx context.Context, agentURL, procInstID, requestText string, item *ent.WorkItem) (any, error) {
	f.calls++
	return f.response, nil
}

type fakeNormalizer struct {
	calls  int
	result AgentResult
}

func (f *fakeNormalizer) Normalize(ctx context.Context, raw any) (AgentResult, error) {
	f.calls++
	return f.result, nil
}

type alwaysFailNormalizer struct{}

func (alwaysFailNormalizer) Normalize(ctx context.Context, raw any) (AgentResult, error) {
	return AgentResult{}, errors.New("malformed agent response")
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *ent.Client) {
	t.Helper()
	client := newTestClient(t)
	return &Dispatcher{
		Items: store.New(client),
		Chats: store.NewChatStore(client),
	}, client
}

func seedWorkItem(t *testing.T, client *ent.Client, procInstID, activityID string) *ent.WorkItem {
	t.Helper()
	ctx := context.Background()
	_, err := store.NewProcInstStore(client).LoadOrCreate(ctx, store.MintOrLoadInput{
		InstanceID: procInstID,
		ProcDefID:  "agent_proc",
		TenantID:   "tenant-a",
	})
	require.NoError(t, err)

	row, err := store.New(client).Create(ctx, store.NewInput{
		ProcInstID: procInstID,
		ProcDefID:  "agent_proc",
		ActivityID: activityID,
		TenantID:   "tenant-a",
		Status:     workitem.StatusIN_PROGRESS,
		AgentMode:  "A2A",
	})
	require.NoError(t, err)
	return row
}

func TestDispatchSucceedsAndSubmitsWorkItem(t *testing.T) {
	ctx := context.Background()
	d, client := newTestDispatcher(t)
	seedWorkItem(t, client, "agent_proc.inst-1", "search")

	requests := &fakeRequests{text: "please search hotels"}
	channel := &fakeChannel{response: map[string]any{"raw": "ok"}}
	normalizer := &fakeNormalizer{result: AgentResult{
		HTML:      "<table></table>",
		TableData: []map[string]any{{"name": "Hotel A"}},
	}}
	d.Requests, d.Channel, d.Response = requests, channel, normalizer

	result, err := d.Dispatch(ctx, "agent_proc.inst-1", "tenant-a", "search", nil, Agent{Name: "SearchAgent", URL: "https://agents.example.com/search"})
	require.NoError(t, err)
	require.Equal(t, "<table></table>", result.HTML)

	item, err := d.Items.CurrentForActivity(ctx, "agent_proc.inst-1", "search")
	require.NoError(t, err)
	require.Equal(t, workitem.StatusSUBMITTED, item.Status)
	require.Nil(t, item.Consumer)
}

func TestDispatchRetriesRequestBuilderBeforeSucceeding(t *testing.T) {
	ctx := context.Background()
	d, client := newTestDispatcher(t)
	seedWorkItem(t, client, "agent_proc.inst-2", "search")

	requests := &fakeRequests{text: "retry then succeed", failUntil: 2}
	channel := &fakeChannel{response: "ok"}
	normalizer := &fakeNormalizer{result: AgentResult{HTML: "<p>done</p>"}}
	d.Requests, d.Channel, d.Response = requests, channel, normalizer

	_, err := d.Dispatch(ctx, "agent_proc.inst-2", "tenant-a", "search", nil, Agent{Name: "SearchAgent"})
	require.NoError(t, err)
	require.Equal(t, 3, requests.calls)
}

func TestDispatchCollapsesToDoneAfterExhaustingRetries(t *testing.T) {
	ctx := context.Background()
	d, client := newTestDispatcher(t)
	seedWorkItem(t, client, "agent_proc.inst-3", "search")

	requests := &fakeRequests{text: "ignored", failUntil: 99}
	d.Requests, d.Channel, d.Response = requests, &fakeChannel{}, alwaysFailNormalizer{}

	_, err := d.Dispatch(ctx, "agent_proc.inst-3", "tenant-a", "search", nil, Agent{Name: "SearchAgent"})
	require.Error(t, err)

	item, err := d.Items.CurrentForActivity(ctx, "agent_proc.inst-3", "search")
	require.NoError(t, err)
	require.Equal(t, workitem.StatusDONE, item.Status)
	require.Nil(t, item.Consumer)
}
