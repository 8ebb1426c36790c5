package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/krisefikser/internal/model"
	"github.com/iliyamo/krisefikser/internal/repository"
)

func TestRunInTxRollsBack(t *testing.T) {
	s := NewMemStore()
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, s.Create(ctx, model.User{ID: uuid.New(), Email: "alice@test.com"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.UserCount())
}

func TestRollbackKeepsWritesMadeOutsideTheTransaction(t *testing.T) {
	s := NewMemStore()
	boom := errors.New("boom")
	started := make(chan struct{})
	release := make(chan struct{})

	txDone := make(chan error, 1)
	go func() {
		txDone <- s.RunInTx(context.Background(), func(ctx context.Context) error {
			if err := s.Create(ctx, model.User{ID: uuid.New(), Email: "alice@test.com"}); err != nil {
				return err
			}
			close(started)
			<-release
			return boom
		})
	}()
	<-started

	storeDone := make(chan error, 1)
	go func() {
		storeDone <- s.Store(context.Background(), model.RefreshToken{
			ID:        uuid.New(),
			UserID:    uuid.New(),
			TokenHash: "outside",
			ExpiresAt: time.Now().Add(time.Hour),
		})
	}()
	assert.Never(t, func() bool { return len(storeDone) > 0 }, 20*time.Millisecond, time.Millisecond)
	close(release)

	assert.ErrorIs(t, <-txDone, boom)
	require.NoError(t, <-storeDone)
	assert.Zero(t, s.UserCount())
	assert.Equal(t, 1, s.TokenCount())
}

func TestNestedTxJoinsOuter(t *testing.T) {
	s := NewMemStore()
	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			return s.Create(ctx, model.User{ID: uuid.New(), Email: "alice@test.com"})
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.UserCount())
}

func TestUpdatePassword(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	u := model.User{ID: uuid.New(), Email: "alice@test.com", PasswordHash: "old"}
	require.NoError(t, s.Create(ctx, u))

	require.NoError(t, s.UpdatePassword(ctx, u.ID, "new"))
	got, err := s.FindByEmail(ctx, "alice@test.com")
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)

	assert.ErrorIs(t, s.UpdatePassword(ctx, uuid.New(), "x"), repository.ErrNotFound)
}
