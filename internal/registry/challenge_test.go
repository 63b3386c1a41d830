package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
)

func newTestChallenges(capacity int, expiry time.Duration) *ChallengeRegistry {
	return NewChallengeRegistry(testLogger(), capacity, expiry)
}

func createChallenge(t *testing.T, reg *ChallengeRegistry, challenger, target string) Challenge {
	t.Helper()

	ch, err := reg.Create(challenger, challenger+"-name", target, &fakeConn{}, &fakeConn{}, "ranked", 300)
	require.NoError(t, err)

	return ch
}

func TestChallengeRegistry_Create(t *testing.T) {
	t.Run("assigns id, status and expiry", func(t *testing.T) {
		reg := newTestChallenges(100, time.Minute)

		ch := createChallenge(t, reg, "a", "b")

		assert.NotEmpty(t, ch.ID)
		assert.Equal(t, ChallengePending, ch.Status)
		assert.True(t, ch.ExpiresAt.After(ch.CreatedAt))
	})

	t.Run("one pending challenge per pair, either direction", func(t *testing.T) {
		reg := newTestChallenges(100, time.Minute)
		createChallenge(t, reg, "a", "b")

		_, err := reg.Create("a", "a-name", "b", &fakeConn{}, &fakeConn{}, "ranked", 300)
		require.ErrorIs(t, err, apperror.ErrChallengeExists)

		// the reverse direction counts as the same pair
		_, err = reg.Create("b", "b-name", "a", &fakeConn{}, &fakeConn{}, "ranked", 300)
		require.ErrorIs(t, err, apperror.ErrChallengeExists)
	})

	t.Run("resolved challenges free the pair", func(t *testing.T) {
		reg := newTestChallenges(100, time.Minute)
		ch := createChallenge(t, reg, "a", "b")

		_, err := reg.Decline(ch.ID)
		require.NoError(t, err)
		reg.Remove(ch.ID)

		createChallenge(t, reg, "a", "b")
	})

	t.Run("table capacity", func(t *testing.T) {
		reg := newTestChallenges(1, time.Minute)
		createChallenge(t, reg, "a", "b")

		_, err := reg.Create("c", "c-name", "d", &fakeConn{}, &fakeConn{}, "ranked", 300)
		require.ErrorIs(t, err, apperror.ErrChallengeTableFull)
	})
}

func TestChallengeRegistry_Resolve(t *testing.T) {
	t.Run("accept moves the challenge out of pending once", func(t *testing.T) {
		reg := newTestChallenges(100, time.Minute)
		ch := createChallenge(t, reg, "a", "b")

		accepted, err := reg.Accept(ch.ID)
		require.NoError(t, err)
		assert.Equal(t, ChallengeAccepted, accepted.Status)

		_, err = reg.Accept(ch.ID)
		require.ErrorIs(t, err, apperror.ErrChallengeNotPending)
	})

	t.Run("decline and cancel work only while pending", func(t *testing.T) {
		reg := newTestChallenges(100, time.Minute)
		ch := createChallenge(t, reg, "a", "b")

		_, err := reg.Cancel(ch.ID)
		require.NoError(t, err)

		_, err = reg.Decline(ch.ID)
		require.ErrorIs(t, err, apperror.ErrChallengeNotPending)
	})

	t.Run("unknown id", func(t *testing.T) {
		reg := newTestChallenges(100, time.Minute)

		_, err := reg.Accept("no-such-challenge")
		require.ErrorIs(t, err, apperror.ErrChallengeNotFound)
	})
}

func TestChallengeRegistry_SweepExpired(t *testing.T) {
	t.Run("expires overdue pending challenges and notifies", func(t *testing.T) {
		// Given: a registry with a very short expiry window
		reg := newTestChallenges(100, time.Millisecond)

		var expired []Challenge
		reg.OnExpired(func(ch Challenge) {
			expired = append(expired, ch)
		})

		ch := createChallenge(t, reg, "a", "b")

		// When: the sweeper runs past the deadline
		reg.SweepExpired(time.Now().Add(time.Second))

		// Then: the callback fired and the challenge is gone
		require.Len(t, expired, 1)
		assert.Equal(t, ch.ID, expired[0].ID)
		assert.Equal(t, ChallengeExpired, expired[0].Status)

		_, err := reg.Get(ch.ID)
		require.ErrorIs(t, err, apperror.ErrChallengeNotFound)
	})

	t.Run("late accept after expiry fails", func(t *testing.T) {
		reg := newTestChallenges(100, time.Millisecond)
		reg.OnExpired(func(Challenge) {})

		ch := createChallenge(t, reg, "a", "b")
		reg.SweepExpired(time.Now().Add(time.Second))

		_, err := reg.Accept(ch.ID)
		require.ErrorIs(t, err, apperror.ErrChallengeNotFound)
	})

	t.Run("fresh challenges survive the sweep", func(t *testing.T) {
		reg := newTestChallenges(100, time.Hour)
		reg.OnExpired(func(Challenge) {
			t.Fatal("nothing should expire")
		})

		ch := createChallenge(t, reg, "a", "b")
		reg.SweepExpired(time.Now())

		got, err := reg.Get(ch.ID)
		require.NoError(t, err)
		assert.Equal(t, ChallengePending, got.Status)
	})
}
