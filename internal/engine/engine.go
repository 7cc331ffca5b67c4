// Package engine owns the per-client replica of one game session: whose turn
// it is, bonus-roll continuation, pause/resume and the win transition. All
// state is explicit and every mutation goes through the same transition
// functions whether the triggering event was local or received from a remote
// replica.
package engine

import (
	"time"

	"ular_tangga/internal/domain/board"
	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/errors"
	"ular_tangga/internal/rules"
)

// PowerUps tracks the optional per-player modifier charges. Bookkeeping is
// independent of the core turn state; using a charge never bypasses collision
// detection or the win check.
type PowerUps struct {
	ShieldCharges  int
	ClimbTeleports int
}

// RollOutcome is everything a single applied roll produced.
type RollOutcome struct {
	Move      gamedom.MoveEvent
	Collision *gamedom.CollisionEvent
	Won       bool
	BonusRoll bool
	Shielded  bool
}

// Session is one replica of a room's game state. It is not safe for
// concurrent use; callers serialize access (each client runs a single event
// loop).
type Session struct {
	Room     gamedom.Room
	Players  []gamedom.Player
	Topology board.Topology
	History  []gamedom.MoveEvent

	CurrentIndex int
	Winner       *gamedom.Player
	Paused       bool

	moveInFlight bool
	bonusPending bool
	powerUps     map[string]*PowerUps
}

// New builds a replica from store records. Players must already be ordered
// by PlayerOrder; the current index is recovered from the turn flags.
func New(room gamedom.Room, players []gamedom.Player, t board.Topology) *Session {
	s := &Session{
		Room:     room,
		Players:  players,
		Topology: t,
		powerUps: make(map[string]*PowerUps),
	}
	for i, p := range players {
		if p.IsCurrentTurn {
			s.CurrentIndex = i
		}
		s.powerUps[p.ID] = &PowerUps{ShieldCharges: 1, ClimbTeleports: 1}
	}
	return s
}

func (s *Session) Status() string { return s.Room.Status }

func (s *Session) CurrentPlayer() *gamedom.Player {
	if len(s.Players) == 0 || s.CurrentIndex >= len(s.Players) {
		return nil
	}
	return &s.Players[s.CurrentIndex]
}

func (s *Session) PlayerByID(id string) *gamedom.Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *Session) IsMyTurn(playerID string) bool {
	cur := s.CurrentPlayer()
	return cur != nil && cur.ID == playerID
}

func (s *Session) PowerUpsFor(playerID string) *PowerUps {
	pu, ok := s.powerUps[playerID]
	if !ok {
		pu = &PowerUps{ShieldCharges: 1, ClimbTeleports: 1}
		s.powerUps[playerID] = pu
	}
	return pu
}

// Start moves the session from waiting to playing: at least two players,
// everyone back on the start tile, turn fixed to player order 0.
func (s *Session) Start() error {
	if s.Room.Status == gamedom.StatusPlaying {
		return errors.ErrGameAlreadyStarted
	}
	if len(s.Players) < gamedom.MinPlayers {
		return errors.ErrNotEnoughPlayers
	}
	for i := range s.Players {
		s.Players[i].Position = gamedom.StartTile
		s.Players[i].IsCurrentTurn = i == 0
		s.Players[i].DiceResult = 0
	}
	s.CurrentIndex = 0
	s.Room.Status = gamedom.StatusPlaying
	s.History = nil
	s.Winner = nil
	s.bonusPending = false
	s.moveInFlight = false
	return nil
}

// CanRoll rejects a roll attempt without changing any state: wrong session
// status, paused, a move still in flight, or not the caller's turn.
func (s *Session) CanRoll(playerID string) error {
	if s.Room.Status != gamedom.StatusPlaying {
		return errors.ErrGameNotInProgress
	}
	if s.Paused {
		return errors.ErrGamePaused
	}
	if s.moveInFlight {
		return errors.ErrMoveInFlight
	}
	if !s.IsMyTurn(playerID) {
		return errors.ErrNotYourTurn
	}
	return nil
}

// ApplyRoll resolves a die face for the acting player, applies the chute,
// climb, bounce and collision rules and runs the win check. The session
// stays "move in flight" until EndTurn or a remote turn event clears it,
// which is what gates duplicate rolls.
//
// useShield arms the shield power-up for this roll: if the roll lands on a
// chute head the charge is spent and the player stays on the head instead of
// sliding down. Arming without a charge left is rejected before anything
// moves; an armed roll that hits no chute keeps the charge. A plain roll
// always resolves chutes normally.
func (s *Session) ApplyRoll(playerID string, face int, useShield bool) (*RollOutcome, error) {
	if err := s.CanRoll(playerID); err != nil {
		return nil, err
	}
	if err := rules.ValidateRoll(face); err != nil {
		return nil, err
	}
	if useShield && s.PowerUpsFor(playerID).ShieldCharges == 0 {
		return nil, errors.ErrPowerUpExhausted
	}

	player := s.PlayerByID(playerID)
	if player == nil {
		return nil, errors.ErrPlayerNotFound
	}

	prev := player.Position
	result := rules.ResolveMove(prev, face, s.Topology)

	outcome := &RollOutcome{}

	if useShield && result.Type == gamedom.MoveChute {
		pu := s.PowerUpsFor(playerID)
		pu.ShieldCharges--
		result = gamedom.MoveResult{Position: prev + face, Type: gamedom.MoveNormal}
		if result.Position > s.Topology.MaxTile {
			result.Position = s.Topology.MaxTile - (prev + face - s.Topology.MaxTile)
			result.Type = gamedom.MoveBounce
		}
		outcome.Shielded = true
	}

	outcome.Collision = rules.DetectCollision(result.Position, s.Players, playerID)
	if outcome.Collision != nil {
		if bumped := s.PlayerByID(outcome.Collision.BumpedPlayerID); bumped != nil {
			bumped.Position = outcome.Collision.BumpedToPosition
		}
	}

	player.Position = result.Position
	player.DiceResult = face
	s.moveInFlight = true

	outcome.Move = gamedom.MoveEvent{
		RoomID:           s.Room.ID,
		PlayerID:         player.ID,
		PlayerName:       player.Name,
		PreviousPosition: prev,
		NewPosition:      result.Position,
		DiceRoll:         face,
		Type:             result.Type,
		CreatedAt:        time.Now(),
	}
	s.History = append(s.History, outcome.Move)

	if rules.IsWinningPosition(result.Position, s.Topology.MaxTile) {
		s.finish(*player)
		outcome.Won = true
		return outcome, nil
	}

	s.bonusPending = rules.GrantsBonusRoll(face)
	outcome.BonusRoll = s.bonusPending
	return outcome, nil
}

// UseClimbTeleport consumes the single-use reposition power-up: the player
// is moved to the nearest climb bottom ahead and the climb applies. Collision
// and win checks still run; the teleport never grants a bonus roll.
func (s *Session) UseClimbTeleport(playerID string) (*RollOutcome, error) {
	if err := s.CanRoll(playerID); err != nil {
		return nil, err
	}
	player := s.PlayerByID(playerID)
	if player == nil {
		return nil, errors.ErrPlayerNotFound
	}
	pu := s.PowerUpsFor(playerID)
	if pu.ClimbTeleports == 0 {
		return nil, errors.ErrPowerUpExhausted
	}

	bottom, ok := rules.NearestClimbAhead(player.Position, s.Topology)
	if !ok {
		return nil, errors.ErrPowerUpExhausted
	}
	pu.ClimbTeleports--

	prev := player.Position
	target := s.Topology.Climbs[bottom]

	outcome := &RollOutcome{}
	outcome.Collision = rules.DetectCollision(target, s.Players, playerID)
	if outcome.Collision != nil {
		if bumped := s.PlayerByID(outcome.Collision.BumpedPlayerID); bumped != nil {
			bumped.Position = outcome.Collision.BumpedToPosition
		}
	}

	player.Position = target
	s.moveInFlight = true

	outcome.Move = gamedom.MoveEvent{
		RoomID:           s.Room.ID,
		PlayerID:         player.ID,
		PlayerName:       player.Name,
		PreviousPosition: prev,
		NewPosition:      target,
		DiceRoll:         0,
		Type:             gamedom.MoveTeleport,
		CreatedAt:        time.Now(),
	}
	s.History = append(s.History, outcome.Move)

	if rules.IsWinningPosition(target, s.Topology.MaxTile) {
		s.finish(*player)
		outcome.Won = true
	}
	return outcome, nil
}

// EndTurn advances the turn and returns the new current index. A pending
// bonus roll keeps the index in place exactly once. Calling EndTurn when the
// session is not playing is a no-op.
func (s *Session) EndTurn() int {
	if s.Room.Status != gamedom.StatusPlaying {
		return s.CurrentIndex
	}
	s.moveInFlight = false
	if s.bonusPending {
		s.bonusPending = false
		return s.CurrentIndex
	}
	next := rules.NextPlayerIndex(s.CurrentIndex, len(s.Players))
	s.setTurnIndex(next)
	return next
}

// Pause freezes roll acceptance. Local-only convenience state: it is not
// broadcast and does not survive reconnection.
func (s *Session) Pause() {
	if s.Room.Status == gamedom.StatusPlaying {
		s.Paused = true
	}
}

func (s *Session) Resume() {
	if s.Room.Status == gamedom.StatusPlaying {
		s.Paused = false
	}
}

// ApplyRemoteMove replays a player_moved event from another replica.
// Applying the same event twice leaves the state unchanged: the position set
// is naturally idempotent and a duplicate history tail is dropped.
func (s *Session) ApplyRemoteMove(playerID, playerName string, prevPos, newPos, face int, moveType gamedom.MoveType, collision *gamedom.CollisionEvent) {
	player := s.PlayerByID(playerID)
	if player == nil {
		return
	}

	if n := len(s.History); n > 0 {
		last := s.History[n-1]
		if last.PlayerID == playerID && last.PreviousPosition == prevPos &&
			last.NewPosition == newPos && last.DiceRoll == face {
			return
		}
	}

	if collision != nil {
		if bumped := s.PlayerByID(collision.BumpedPlayerID); bumped != nil {
			bumped.Position = collision.BumpedToPosition
		}
	}

	player.Position = newPos
	player.DiceResult = face
	s.History = append(s.History, gamedom.MoveEvent{
		RoomID:           s.Room.ID,
		PlayerID:         playerID,
		PlayerName:       playerName,
		PreviousPosition: prevPos,
		NewPosition:      newPos,
		DiceRoll:         face,
		Type:             moveType,
		CreatedAt:        time.Now(),
	})

	// Terminal facts are derived locally, never trusted from the wire.
	if rules.IsWinningPosition(newPos, s.Topology.MaxTile) {
		s.finish(*player)
	}
}

// ApplyRemoteTurn applies a turn_changed event. Last received wins.
func (s *Session) ApplyRemoteTurn(nextIndex int) {
	if nextIndex < 0 || nextIndex >= len(s.Players) {
		return
	}
	s.moveInFlight = false
	s.bonusPending = false
	s.setTurnIndex(nextIndex)
}

func (s *Session) ApplyRemoteJoin(p gamedom.Player) {
	if s.PlayerByID(p.ID) != nil {
		return
	}
	s.Players = append(s.Players, p)
	s.Room.CurrentPlayers = len(s.Players)
	s.powerUps[p.ID] = &PowerUps{ShieldCharges: 1, ClimbTeleports: 1}
}

// ApplyRemoteLeave removes a departed player. If the departed player held
// the active turn, the turn passes to the next live player so the session
// does not wedge.
func (s *Session) ApplyRemoteLeave(playerID string) {
	idx := -1
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	heldTurn := idx == s.CurrentIndex
	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)
	delete(s.powerUps, playerID)
	s.Room.CurrentPlayers = len(s.Players)

	if len(s.Players) == 0 {
		s.CurrentIndex = 0
		return
	}
	if idx < s.CurrentIndex {
		s.CurrentIndex--
	}
	if heldTurn {
		s.moveInFlight = false
		s.bonusPending = false
		s.setTurnIndex(s.CurrentIndex % len(s.Players))
	} else if s.CurrentIndex >= len(s.Players) {
		s.setTurnIndex(0)
	}
}

// ApplyRemoteEnd applies a game_ended event. The winner name string is
// host-authoritative; everything else was already derived locally.
func (s *Session) ApplyRemoteEnd(winnerName string) {
	if s.Room.Status == gamedom.StatusFinished {
		return
	}
	s.Room.Status = gamedom.StatusFinished
	s.Room.WinnerName = winnerName
	for i := range s.Players {
		s.Players[i].IsCurrentTurn = false
	}
}

func (s *Session) finish(winner gamedom.Player) {
	now := time.Now()
	s.Room.Status = gamedom.StatusFinished
	s.Room.WinnerName = winner.Name
	s.Room.EndedAt = &now
	s.Winner = &winner
	s.bonusPending = false
	s.moveInFlight = false
	for i := range s.Players {
		s.Players[i].IsCurrentTurn = false
	}
}

func (s *Session) setTurnIndex(idx int) {
	s.CurrentIndex = idx
	for i := range s.Players {
		s.Players[i].IsCurrentTurn = i == idx
		if i != idx {
			s.Players[i].DiceResult = 0
		}
	}
}
