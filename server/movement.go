package server

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// applyMove validates a position update and, when accepted, makes it the
// player's new target. Rejections leave the player untouched and do not consume
// the flood gate, except ErrTooFast itself.
func applyMove(p *Player, x, y float64, dir string, now time.Time, cfg Config) error {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return ErrInvalidPosition
	}
	if x < cfg.MinX || y < cfg.MinY || x > cfg.MaxX || y > cfg.MaxY {
		return ErrInvalidPosition
	}
	if math.Hypot(x-p.TargetX, y-p.TargetY) > cfg.MaxMoveDistance {
		return ErrMoveTooFar
	}
	if !p.moveGate.AllowN(now, 1) {
		return ErrTooFast
	}

	// The previous target is where the avatar was heading; observers
	// interpolate from there to the new target.
	p.X, p.Y = p.TargetX, p.TargetY
	p.TargetX, p.TargetY = x, y
	p.Direction = ParseDirection(dir)
	p.AFK = false
	return nil
}

// retune updates a player's flood gates after a config change.
func (p *Player) retune(cfg Config, now time.Time) {
	p.moveGate.SetLimitAt(now, rate.Every(cfg.MinMoveInterval))
	p.chatGate.SetLimitAt(now, rate.Every(cfg.ChatCooldown))
}
