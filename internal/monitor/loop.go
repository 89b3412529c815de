package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/jmylchreest/wlrs/internal/scheduler"
)

// loop delivers timer-driven frame opportunities to one output. It re-reads
// the scheduler cadence whenever it is woken, so a rebind to a wallpaper
// with a different rate takes effect immediately.
type loop struct {
	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

func (r *Registry) startLoop(ctx context.Context, id string) *loop {
	l := &loop{
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go r.runLoop(ctx, id, l)
	return l
}

func (l *loop) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

func (l *loop) stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (r *Registry) runLoop(ctx context.Context, id string, l *loop) {
	defer close(l.doneCh)

	ticker := time.NewTicker(time.Hour)
	ticker.Stop()
	defer ticker.Stop()

	logger := r.logger.With("monitor", id)
	logger.Debug("frame loop started")
	defer logger.Debug("frame loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-l.wakeCh:
			if iv := r.loopInterval(id); iv > 0 {
				ticker.Reset(iv)
			} else {
				ticker.Stop()
			}
		case <-ticker.C:
		}

		_, err := r.FrameOpportunity(id, r.now())
		var serr *scheduler.StateError
		var nf *NotFoundError
		switch {
		case err == nil, errors.As(err, &serr):
		case errors.As(err, &nf):
			return
		default:
			logger.Warn("frame failed", "error", err)
		}
	}
}

// loopInterval is the timer period for the output, or 0 when the loop only
// runs on wake-ups.
func (r *Registry) loopInterval(id string) time.Duration {
	m, err := r.get(id)
	if err != nil || m.sched.State() != scheduler.Running {
		return 0
	}
	hostDriven, iv := m.sched.Cadence()
	if hostDriven {
		if r.hostRefresh {
			return 0
		}
		return r.refresh
	}
	return iv
}
