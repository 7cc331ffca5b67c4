// Package rules holds the deterministic move resolution functions. Nothing
// here touches the store or the network, which is what keeps the game core
// testable and lets every replica recompute the same outcome locally.
package rules

import (
	"math/rand"

	"ular_tangga/internal/domain/board"
	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/errors"
)

// ResolveMove computes the outcome of a die roll from a given position.
// Overshooting the final tile reflects the excess backward (bounce-back),
// and a bounce that lands exactly on a chute head or climb bottom still
// applies that tile's effect.
func ResolveMove(position, diceRoll int, t board.Topology) gamedom.MoveResult {
	raw := position + diceRoll

	if raw > t.MaxTile {
		bounced := t.MaxTile - (raw - t.MaxTile)
		if tail, ok := t.ChuteTail(bounced); ok {
			return gamedom.MoveResult{Position: tail, Type: gamedom.MoveChute}
		}
		if top, ok := t.ClimbTop(bounced); ok {
			return gamedom.MoveResult{Position: top, Type: gamedom.MoveClimb}
		}
		return gamedom.MoveResult{Position: bounced, Type: gamedom.MoveBounce}
	}

	if tail, ok := t.ChuteTail(raw); ok {
		return gamedom.MoveResult{Position: tail, Type: gamedom.MoveChute}
	}
	if top, ok := t.ClimbTop(raw); ok {
		return gamedom.MoveResult{Position: top, Type: gamedom.MoveClimb}
	}

	return gamedom.MoveResult{Position: raw, Type: gamedom.MoveNormal}
}

// DetectCollision reports whether another player rests at the candidate tile.
// Only the mover's landing tile is evaluated; the occupant is displaced
// backward by the fixed setback, never below tile 1, and the bump does not
// chain-trigger further collisions.
func DetectCollision(candidate int, players []gamedom.Player, moverID string) *gamedom.CollisionEvent {
	for _, p := range players {
		if p.ID == moverID || p.Position != candidate {
			continue
		}
		bumpedTo := p.Position - gamedom.CollisionSetback
		if bumpedTo < gamedom.StartTile {
			bumpedTo = gamedom.StartTile
		}
		return &gamedom.CollisionEvent{
			BumpedPlayerID:     p.ID,
			BumpedPlayerName:   p.Name,
			BumpedFromPosition: p.Position,
			BumpedToPosition:   bumpedTo,
		}
	}
	return nil
}

func IsWinningPosition(position, maxTile int) bool {
	return position == maxTile
}

// NextPlayerIndex advances the turn, wrapping past the last player.
func NextPlayerIndex(current, totalPlayers int) int {
	return (current + 1) % totalPlayers
}

// GrantsBonusRoll reports whether the rolled face keeps the turn with the
// same player for exactly one more roll.
func GrantsBonusRoll(face int) bool {
	return face == gamedom.DiceMax
}

func ValidateRoll(face int) error {
	if face < gamedom.DiceMin || face > gamedom.DiceMax {
		return errors.ErrInvalidRoll
	}
	return nil
}

func RollDice() int {
	return rand.Intn(gamedom.DiceMax) + 1
}

// NearestClimbAhead returns the closest climb bottom strictly ahead of the
// given position. Used by the single-use reposition power-up.
func NearestClimbAhead(position int, t board.Topology) (int, bool) {
	best := 0
	for bottom := range t.Climbs {
		if bottom <= position {
			continue
		}
		if best == 0 || bottom < best {
			best = bottom
		}
	}
	return best, best != 0
}
