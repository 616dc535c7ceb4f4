package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"leave-bot/internal/models"
	"leave-bot/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_SerializesSameKey(t *testing.T) {
	locker := NewKeyedLocker()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("team:1")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, locker.locks)
}

func TestKeyedLocker_IndependentKeys(t *testing.T) {
	locker := NewKeyedLocker()

	unlockA := locker.Lock("user:1")
	done := make(chan struct{})
	go func() {
		unlock := locker.Lock("user:2")
		unlock()
		close(done)
	}()
	<-done
	unlockA()

	assert.Empty(t, locker.locks)
}

func (l *KeyedLocker) waiters(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lock, ok := l.locks[key]; ok {
		return lock.refs
	}
	return 0
}

func TestLeaveLock_FollowsTeamChange(t *testing.T) {
	f := newFixture(t)
	platform := f.team(t, "Platform", nil)
	data := f.team(t, "Data", nil)
	employee := f.user(t, models.RoleEmployee, platform)

	oldKey := fmt.Sprintf("team:%d", platform.ID)
	unlock := f.leaves.locks.Lock(oldKey)

	seen := make(chan *uint, 1)
	done := make(chan error, 1)
	go func() {
		done <- f.leaves.inLock(f.ctx, employee.ID, func(_ *repository.Store, owner *models.User) error {
			seen <- owner.TeamID
			return nil
		})
	}()

	require.Eventually(t, func() bool { return f.leaves.locks.waiters(oldKey) == 2 }, time.Second, time.Millisecond)

	employee.TeamID = &data.ID
	require.NoError(t, f.store.Users.Update(f.ctx, employee))
	unlock()

	require.NoError(t, <-done)
	teamID := <-seen
	require.NotNil(t, teamID)
	assert.Equal(t, data.ID, *teamID)
	assert.Empty(t, f.leaves.locks.locks)
}
