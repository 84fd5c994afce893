package authsdk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// queueWaiters makes the caller lead a refresh and queues n more callers
// behind it, returning their channels in the order begin handed them out.
func queueWaiters(t *testing.T, s *Session, stale string, n int) []<-chan refreshResult {
	t.Helper()

	_, _, lead := s.begin(stale)
	require.True(t, lead)

	waits := make([]<-chan refreshResult, n)
	for i := range n {
		token, wait, lead := s.begin(stale)
		require.False(t, lead, "waiter %d", i)
		require.Empty(t, token, "waiter %d", i)
		require.NotNil(t, wait, "waiter %d", i)
		waits[i] = wait
	}
	require.Equal(t, n, s.pending())
	return waits
}

func requireReleasedOnce(t *testing.T, waits []<-chan refreshResult, token string, err error) {
	t.Helper()
	for i, w := range waits {
		select {
		case r := <-w:
			require.Equal(t, token, r.token, "waiter %d", i)
			require.Equal(t, err, r.err, "waiter %d", i)
		default:
			t.Fatalf("waiter %d was not released", i)
		}
		select {
		case r := <-w:
			t.Fatalf("waiter %d released twice: %+v", i, r)
		default:
		}
	}
}

func TestSessionReleasesWaitersInQueueOrder(t *testing.T) {
	const n = 6

	s := NewSession("stale")
	waits := queueWaiters(t, s, "stale", n)

	s.mu.Lock()
	queued := make([]<-chan refreshResult, len(s.waiters))
	for i, ch := range s.waiters {
		queued[i] = ch
	}
	s.mu.Unlock()
	require.Equal(t, waits, queued, "settle walks the queue in enqueue order")

	s.settle("fresh", nil)

	requireReleasedOnce(t, waits, "fresh", nil)
	require.Zero(t, s.pending())
	require.False(t, s.Refreshing())
	require.Equal(t, "fresh", s.AccessToken())
}

func TestSessionSettleOnlyReleasesCurrentQueue(t *testing.T) {
	s := NewSession("stale")
	first := queueWaiters(t, s, "stale", 3)
	s.settle("fresh", nil)
	requireReleasedOnce(t, first, "fresh", nil)

	boom := errors.New("refresh failed")
	second := queueWaiters(t, s, "fresh", 2)
	s.settle("", boom)

	requireReleasedOnce(t, second, "", boom)
	for i, w := range first {
		select {
		case r := <-w:
			t.Fatalf("earlier waiter %d released again: %+v", i, r)
		default:
		}
	}
	require.Empty(t, s.AccessToken(), "failed refresh logs the session out")
	require.False(t, s.Refreshing())
}

func TestSessionBeginRetriesWithNewerToken(t *testing.T) {
	s := NewSession("newer")

	token, wait, lead := s.begin("older")
	require.Equal(t, "newer", token)
	require.Nil(t, wait)
	require.False(t, lead)
	require.False(t, s.Refreshing())
}
