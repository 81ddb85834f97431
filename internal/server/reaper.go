package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/store-locator/internal/metrics"
)

// runReaper expires idle sessions every ReapInterval. It blocks until ctx is
// cancelled.
func (s *Server) runReaper(ctx context.Context) {
	log := zap.L().With(zap.String("component", "server.reaper"))
	log.Info("starting session reaper",
		zap.Duration("interval", s.opts.ReapInterval),
		zap.Duration("ttl", s.opts.SessionTTL),
	)

	ticker := time.NewTicker(s.opts.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("session reaper stopped")
			return
		case <-ticker.C:
			if n := s.reap(); n > 0 {
				log.Info("expired idle sessions", zap.Int("expired", n), zap.Int("live", s.Len()))
			}
		}
	}
}

// reap removes every session idle for longer than SessionTTL and returns how
// many were removed.
func (s *Server) reap() int {
	if s.opts.SessionTTL <= 0 {
		return 0
	}
	cutoff := s.nowFunc().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			expired++
			zap.L().Debug("session expired", zap.String("session", id))
		}
	}
	metrics.ActiveSessions.Sub(float64(expired))
	return expired
}
