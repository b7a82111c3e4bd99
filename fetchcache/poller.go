package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidInterval is returned by StartPoller for a non-positive interval.
var ErrInvalidInterval = errors.New("fetchcache: poll interval must be positive")

// Poller calls a refresh function on a fixed interval.
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartPoller runs refresh immediately and then every interval until ctx is
// done or Stop is called. Refresh errors are logged and polling continues.
func StartPoller(ctx context.Context, interval time.Duration, refresh func(context.Context) error, log *zap.Logger) (*Poller, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Poller{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := refresh(ctx); err != nil && ctx.Err() == nil {
				log.Warn("poll refresh failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return p, nil
}

// Stop ends polling and waits for an in-progress refresh to return.
func (p *Poller) Stop() {
	p.once.Do(p.cancel)
	<-p.done
}

// Done is closed once the poller has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
