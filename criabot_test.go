package criabot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatLocksSerializeSameChat(t *testing.T) {
	locks := chatLocks{locks: map[string]*chatLock{}}

	const workers = 16
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock := locks.lock("chat-1")
			defer unlock()

			// Unguarded increment; only the lock keeps this race-free.
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, workers, counter)
}

func TestChatLocksReleaseIdleEntries(t *testing.T) {
	locks := chatLocks{locks: map[string]*chatLock{}}

	unlock := locks.lock("chat-1")
	require.Len(t, locks.locks, 1)

	unlock()
	require.Empty(t, locks.locks)
}

func TestChatLocksIndependentChats(t *testing.T) {
	locks := chatLocks{locks: map[string]*chatLock{}}

	unlockA := locks.lock("chat-a")
	defer unlockA()

	// A held lock on another chat must not block this one.
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("chat-b")
		unlockB()
		close(done)
	}()
	<-done
}

func TestNewBotAPIKey(t *testing.T) {
	seen := map[string]struct{}{}

	for i := 0; i < 32; i++ {
		key, err := newBotAPIKey()
		require.NoError(t, err)
		require.NotEmpty(t, key)
		require.NotContains(t, key, "=")
		require.NotContains(t, key, "+")
		require.NotContains(t, key, "/")

		_, dup := seen[key]
		require.False(t, dup, "duplicate key %q", key)
		seen[key] = struct{}{}
	}
}
