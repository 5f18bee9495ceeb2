package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aliashahi/secure-online-shop/internal/journal"
	"github.com/aliashahi/secure-online-shop/internal/ledger"
)

type journalSuite struct {
	suite.Suite

	container testcontainers.Container
	pool      *pgxpool.Pool
	journal   *journal.Journal
}

func TestJournalSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(journalSuite))
}

func (s *journalSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("shop"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = journal.Connect(ctx, connStr)
	s.Require().NoError(err)

	s.journal = journal.New(s.pool)
	s.Require().NoError(s.journal.Init(ctx))
}

func (s *journalSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *journalSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE ledger_events`)
	s.Require().NoError(err)
}

// Postgres keeps microseconds, so fixtures stay at that precision.
func fakeEnvelope(eventType string) ledger.Envelope {
	return ledger.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC().Truncate(time.Microsecond),
		Producer:      "shop-test",
		CorrelationID: gofakeit.DigitN(4),
		Payload:       []byte(`{"order_id":1}`),
	}
}

func (s *journalSuite) TestAppendAndReplay() {
	t := s.T()
	ctx := context.Background()

	want := []ledger.Envelope{
		fakeEnvelope(ledger.EventProductRegistered),
		fakeEnvelope(ledger.EventOrderPaid),
		fakeEnvelope(ledger.EventOrderShipped),
	}
	for _, env := range want {
		require.NoError(t, s.journal.Append(ctx, env))
	}

	var got []ledger.Envelope
	applied, err := s.journal.Replay(ctx, func(env ledger.Envelope) error {
		got = append(got, env)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, len(want), applied)

	for i := range want {
		require.Equal(t, want[i].EventID, got[i].EventID, "commit order preserved")
		require.Equal(t, want[i].EventType, got[i].EventType)
		require.Equal(t, want[i].CorrelationID, got[i].CorrelationID)
		require.True(t, want[i].OccurredAt.Equal(got[i].OccurredAt))
		require.JSONEq(t, string(want[i].Payload), string(got[i].Payload))
	}

	n, err := s.journal.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, len(want), n)
}

func (s *journalSuite) TestAppendIsIdempotentOnEventID() {
	t := s.T()
	ctx := context.Background()

	env := fakeEnvelope(ledger.EventOrderPaid)
	require.NoError(t, s.journal.Append(ctx, env))
	require.NoError(t, s.journal.Append(ctx, env))

	n, err := s.journal.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func (s *journalSuite) TestReplayStopsOnApplyError() {
	t := s.T()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.journal.Append(ctx, fakeEnvelope(ledger.EventOrderPaid)))
	}

	boom := errors.New("boom")
	applied, err := s.journal.Replay(ctx, func(ledger.Envelope) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Zero(t, applied)
}

func (s *journalSuite) TestInitIsIdempotent() {
	require.NoError(s.T(), s.journal.Init(context.Background()))
}
