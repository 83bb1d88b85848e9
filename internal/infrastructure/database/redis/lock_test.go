package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutex_LockUnlock(t *testing.T) {
	c, mr := newMiniClient(t)
	ctx := context.Background()
	m := NewMutex(c, "test:", "reprocess", time.Second, nil)

	ok, err := m.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:lock:reprocess"))

	require.NoError(t, m.Unlock(ctx))
	assert.False(t, mr.Exists("test:lock:reprocess"))
}

func TestMutex_Contention(t *testing.T) {
	c, _ := newMiniClient(t)
	ctx := context.Background()
	a := NewMutex(c, "test:", "job", time.Second, nil)
	b := NewMutex(c, "test:", "job", time.Second, nil)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ErrLockNotHeld, b.Unlock(ctx))

	require.NoError(t, a.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock(ctx))
}

func TestMutex_Extend(t *testing.T) {
	c, mr := newMiniClient(t)
	ctx := context.Background()
	m := NewMutex(c, "test:", "job", 3*time.Second, nil)

	ok, err := m.Extend(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Second)
	ok, err = m.Extend(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, mr.TTL("test:lock:job"))
	require.NoError(t, m.Unlock(ctx))
}

func TestWithLock(t *testing.T) {
	c, mr := newMiniClient(t)
	ctx := context.Background()
	m := NewMutex(c, "test:", "job", time.Second, nil)

	ran := false
	err := WithLock(ctx, m, func(context.Context) error {
		ran = true
		assert.True(t, mr.Exists("test:lock:job"))
		return errors.New("job failed")
	})
	assert.EqualError(t, err, "job failed")
	assert.True(t, ran)
	assert.False(t, mr.Exists("test:lock:job"))

	other := NewMutex(c, "test:", "job", time.Second, nil)
	ok, err := other.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	err = WithLock(ctx, m, func(context.Context) error {
		t.Fatal("must not run while another owner holds the lock")
		return nil
	})
	assert.Equal(t, ErrLockNotAcquired, err)
}
