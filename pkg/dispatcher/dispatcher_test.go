package dispatcher

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

func seedSubmittedItem(t *testing.T, client *ent.Client, id string) {
	t.Helper()
	ctx := context.Background()

	inst, err := client.ProcInst.Create().
		SetID("proc1.inst-" + id).
		SetProcDefID("proc1").
		SetTenantID("tenant-a").
		Save(ctx)
	require.NoError(t, err)

	_, err = client.WorkItem.Create().
		SetID(id).
		SetProcInst(inst).
		SetProcInstID(inst.ID).
		SetProcDefID("proc1").
		SetActivityID("review").
		SetTenantID("tenant-a").
		SetStatus(workitem.StatusSUBMITTED).
		SetStartDate(time.Now()).
		Save(ctx)
	require.NoError(t, err)
}

// TestGracefulShutdownAwaitsInFlight verifies that after
// Stop is called, no new claims are issued and Stop does not return
// until the in-flight handler finishes and releases its claim.
func TestGracefulShutdownAwaitsInFlight(t *testing.T) {
	client := newTestClient(t)
	seedSubmittedItem(t, client, "wi-shutdown")
	st := store.New(client)

	entered := make(chan struct{})
	release := make(chan struct{})
	handler := HandlerFunc(func(ctx context.Context, item *ent.WorkItem) error {
		close(entered)
		<-release
		return nil
	})

	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	cfg.PollInterval = 20 * time.Millisecond
	cfg.CleanupInterval = time.Hour

	d := New("pod-a", st, cfg, handler)
	ctx := context.Background()
	d.Start(ctx)

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("handler was never invoked")
	}

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight handler released")
	case <-time.After(200 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after handler completed")
	}

	row, err := client.WorkItem.Get(context.Background(), "wi-shutdown")
	require.NoError(t, err)
	require.Nil(t, row.Consumer, "consumer must be released after successful handling")
}

// TestRetryCeilingCollapsesToDone verifies that a
// handler that always fails drives retry up to MaxRetries, after which
// the item collapses into terminal DONE with the consumer released.
func TestRetryCeilingCollapsesToDone(t *testing.T) {
	client := newTestClient(t)
	seedSubmittedItem(t, client, "wi-retry")
	st := store.New(client)

	handler := HandlerFunc(func(ctx context.Context, item *ent.WorkItem) error {
		return errors.New("boom")
	})

	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollIntervalJitter = 0
	cfg.MaxRetries = 3
	cfg.CleanupInterval = time.Hour

	d := New("pod-b", st, cfg, handler)
	ctx := context.Background()
	d.Start(ctx)
	defer d.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		row, err := client.WorkItem.Get(context.Background(), "wi-retry")
		require.NoError(t, err)
		if row.Status == workitem.StatusDONE {
			require.Equal(t, 3, row.Retry)
			require.Nil(t, row.Consumer)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("item never collapsed into terminal DONE")
}
