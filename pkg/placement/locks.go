package placement

import (
	"context"
	"sync"
)

// clusterLocks serializes mutating batches per cluster. Waiting honours ctx.
type clusterLocks struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func newClusterLocks() *clusterLocks {
	return &clusterLocks{slots: make(map[int64]chan struct{})}
}

func (l *clusterLocks) slot(clusterID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[clusterID]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[clusterID] = s
	}
	return s
}

// acquire blocks until the cluster lock is held or ctx is done.
func (l *clusterLocks) acquire(ctx context.Context, clusterID int64) (func(), error) {
	s := l.slot(clusterID)
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
