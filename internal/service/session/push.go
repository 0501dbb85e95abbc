package session

import (
	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/utils/log"
)

// PushAll pushes env to every valid and active session and returns how
// many accepted it. Offline sessions are skipped, not counted as failures.
// A nil logger falls back to the package logger.
func PushAll(logger *zap.Logger, sessions []*Session, env *model.Envelope) int {
	if logger == nil {
		logger = log.L()
	}

	success := 0
	for _, sess := range sessions {
		if !sess.Online() {
			logger.Debug("session not online, skip",
				zap.String("identifier", sess.Identifier().String()),
				zap.String("remote", sess.RemoteAddr()))
			continue
		}
		if sess.Push(env) {
			success++
		} else {
			logger.Warn("failed to push message via connection",
				zap.String("identifier", sess.Identifier().String()),
				zap.String("remote", sess.RemoteAddr()))
		}
	}
	return success
}
