//go:build integration

package repository_test

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/okian/attrition/internal/adapters/repository"
	"github.com/okian/attrition/internal/domain/model"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	dsn       string
	store     *repository.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("attrition"),
		tcpostgres.WithUsername("attrition"),
		tcpostgres.WithPassword("attrition"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = ctr

	s.dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, s.dsn)
	s.Require().NoError(err)
	_, err = conn.Exec(ctx, "DROP TABLE IF EXISTS predictions")
	s.Require().NoError(err)
	s.Require().NoError(conn.Close(ctx))

	s.store, err = repository.NewPostgres(ctx, s.dsn)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Init(ctx))
}

func (s *PostgresStoreSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *PostgresStoreSuite) TestInitIsIdempotent() {
	ctx := context.Background()
	_, err := s.store.Append(ctx, sampleRequest(40), model.Result{Label: model.LabelRetained, Confidence: 0.8})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Init(ctx))
	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *PostgresStoreSuite) TestAppendRecentRoundTrip() {
	ctx := context.Background()
	req := sampleRequest(45)
	id, err := s.store.Append(ctx, req, model.Result{Label: model.LabelAttrited, Confidence: 0.73})
	s.Require().NoError(err)
	s.Equal(int64(1), id)

	recs, err := s.store.Recent(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(id, recs[0].ID)
	s.Equal(req, recs[0].Request)
	s.Equal(model.LabelAttrited, recs[0].Result.Label)
	s.InDelta(0.73, recs[0].Result.Confidence, 1e-12)
	s.WithinDuration(time.Now(), recs[0].CreatedAt, time.Minute)

	empty, err := s.store.Recent(ctx, 0)
	s.Require().NoError(err)
	s.Empty(empty)

	all, err := s.store.Recent(ctx, math.MaxInt)
	s.Require().NoError(err)
	s.Len(all, 1)

	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *PostgresStoreSuite) TestConcurrentAppendsAreDense() {
	ctx := context.Background()
	const goroutines, each = 10, 5

	var (
		mu  sync.Mutex
		ids []int64
		wg  sync.WaitGroup
	)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				id, err := s.store.Append(ctx, sampleRequest(30), model.Result{Label: model.LabelRetained, Confidence: 0.6})
				require.NoError(s.T(), err)
				mu.Lock()
				ids = append(ids, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	s.Require().Len(ids, goroutines*each)
	for i, id := range ids {
		s.Equal(int64(i+1), id)
	}

	recs, err := s.store.Recent(ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(recs, 3)
	s.Equal(int64(goroutines*each), recs[0].ID)
	s.Greater(recs[0].ID, recs[1].ID)
}
