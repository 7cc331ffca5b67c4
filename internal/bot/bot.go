// Package bot drives computer players. A bot is an ordinary player record
// with a flag; its rolls run through the exact same pipeline as a human's, so
// every replica sees bot moves as regular player_moved events.
package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ular_tangga/internal/bootstrap"
	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/engine"
	sessionUC "ular_tangga/internal/usecase/session"
)

type Runner struct {
	cfg bootstrap.Config
	log *zap.SugaredLogger
	uc  *sessionUC.SessionUseCase
}

func NewRunner(cfg bootstrap.Config, log *zap.SugaredLogger, uc *sessionUC.SessionUseCase) *Runner {
	return &Runner{cfg: cfg, log: log, uc: uc}
}

func (r *Runner) thinkDelay() time.Duration {
	return time.Duration(r.cfg.BotThinkMillis) * time.Millisecond
}

// PlayIfBot rolls for the current player while it is a bot's turn. The lock
// guards the shared session replica and is released during the think delay so
// remote events keep flowing. Only the replica co-located with the host calls
// this, which keeps exactly one driver per bot.
func (r *Runner) PlayIfBot(ctx context.Context, mu sync.Locker, s *engine.Session) {
	for {
		mu.Lock()
		cur := s.CurrentPlayer()
		if s.Status() != gamedom.StatusPlaying || cur == nil || !cur.IsBot {
			mu.Unlock()
			return
		}
		botID := cur.ID
		mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.thinkDelay()):
		}

		mu.Lock()
		// The turn may have moved while the bot was "thinking".
		if s.Status() != gamedom.StatusPlaying || !s.IsMyTurn(botID) {
			mu.Unlock()
			continue
		}
		out, err := r.uc.Roll(ctx, s, botID, 0, false)
		mu.Unlock()
		if err != nil {
			r.log.Errorf("bot %s roll failed: %v", botID, err)
			return
		}
		if out.Won {
			return
		}
	}
}
