package batch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDeleter struct {
	mu       sync.Mutex
	deleted  []string
	fail     map[string]error
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (r *recordingDeleter) Delete(ctx context.Context, key string) (string, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(r.delay)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, key)
	if err := r.fail[key]; err != nil {
		return "", err
	}
	return "OK", nil
}

func TestDeleteAll(t *testing.T) {
	d := &recordingDeleter{}

	err := DeleteAll(context.Background(), d, []string{"c", "a", "b"}, 0)
	require.NoError(t, err)

	sort.Strings(d.deleted)
	assert.Equal(t, []string{"a", "b", "c"}, d.deleted)
}

func TestDeleteAll_Empty(t *testing.T) {
	d := &recordingDeleter{}
	assert.NoError(t, DeleteAll(context.Background(), d, nil, 0))
	assert.Empty(t, d.deleted)
}

func TestDeleteAll_FailureFailsBatch(t *testing.T) {
	boom := errors.New("connection reset")
	d := &recordingDeleter{fail: map[string]error{"b": boom}}

	err := DeleteAll(context.Background(), d, []string{"a", "b", "c"}, 0)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `delete "b"`)

	// siblings still ran
	assert.Len(t, d.deleted, 3)
}

func TestDeleteAll_Limit(t *testing.T) {
	d := &recordingDeleter{delay: 5 * time.Millisecond}
	keys := []string{"1", "2", "3", "4", "5", "6", "7", "8"}

	require.NoError(t, DeleteAll(context.Background(), d, keys, 2))
	assert.LessOrEqual(t, d.peak.Load(), int32(2))

	// each goroutine saw its own key
	sort.Strings(d.deleted)
	assert.Equal(t, keys, d.deleted)
}
