//go:build integration

package notification_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"hrms/internal/notification"
	"hrms/pkg/testutil/containers"
)

type RedisDedupeSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *notification.RedisDedupe
}

func TestRedisDedupeSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisDedupeSuite))
}

func (s *RedisDedupeSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = notification.NewRedisDedupe(s.redis.Client)
}

func (s *RedisDedupeSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisDedupeSuite) TestFirstClaimWins() {
	ctx := context.Background()
	id := uuid.NewString()

	first, err := s.store.MarkProcessed(ctx, id)
	s.Require().NoError(err)
	s.True(first)

	again, err := s.store.MarkProcessed(ctx, id)
	s.Require().NoError(err)
	s.False(again)
}

func (s *RedisDedupeSuite) TestReleaseAllowsReclaim() {
	ctx := context.Background()
	id := uuid.NewString()

	_, err := s.store.MarkProcessed(ctx, id)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Release(ctx, id))

	first, err := s.store.MarkProcessed(ctx, id)
	s.Require().NoError(err)
	s.True(first)
}

func (s *RedisDedupeSuite) TestDistinctIDsAreIndependent() {
	ctx := context.Background()

	a, err := s.store.MarkProcessed(ctx, uuid.NewString())
	s.Require().NoError(err)
	b, err := s.store.MarkProcessed(ctx, uuid.NewString())
	s.Require().NoError(err)
	s.True(a)
	s.True(b)
}
