package engine

import (
	"testing"

	"ular_tangga/internal/domain/board"
	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/errors"
)

func newTestSession(t *testing.T, playerCount int) *Session {
	t.Helper()
	room := gamedom.Room{
		ID:       "room-1",
		JoinCode: "ABC234",
		Name:     "test room",
		Status:   gamedom.StatusWaiting,
	}
	var players []gamedom.Player
	names := []string{"Ani", "Budi", "Citra", "Dewi"}
	for i := 0; i < playerCount; i++ {
		players = append(players, gamedom.Player{
			ID:          names[i],
			Name:        names[i],
			Position:    gamedom.StartTile,
			PlayerOrder: i,
		})
	}
	s := New(room, players, board.Topology{
		Chutes:  map[int]int{17: 7},
		Climbs:  map[int]int{3: 22},
		MaxTile: 100,
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	return s
}

func TestStartRequiresTwoPlayers(t *testing.T) {
	room := gamedom.Room{ID: "r", Status: gamedom.StatusWaiting}
	s := New(room, []gamedom.Player{{ID: "solo", Name: "solo"}}, board.Classic())
	if err := s.Start(); err != errors.ErrNotEnoughPlayers {
		t.Fatalf("Start() = %v, want ErrNotEnoughPlayers", err)
	}
}

func TestStartResetsPositionsAndTurn(t *testing.T) {
	s := newTestSession(t, 3)
	if s.Room.Status != gamedom.StatusPlaying {
		t.Fatalf("status = %s, want playing", s.Room.Status)
	}
	for i, p := range s.Players {
		if p.Position != gamedom.StartTile {
			t.Errorf("player %d position = %d, want 1", i, p.Position)
		}
		if p.IsCurrentTurn != (i == 0) {
			t.Errorf("player %d turn flag = %v", i, p.IsCurrentTurn)
		}
	}
}

func TestExactlyOneCurrentTurnWhilePlaying(t *testing.T) {
	s := newTestSession(t, 4)
	for round := 0; round < 10; round++ {
		count := 0
		for _, p := range s.Players {
			if p.IsCurrentTurn {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("round %d: %d players hold the turn, want 1", round, count)
		}
		if _, err := s.ApplyRoll(s.CurrentPlayer().ID, 2, false); err != nil {
			t.Fatalf("ApplyRoll failed: %v", err)
		}
		s.EndTurn()
	}
}

func TestRollRejectedOutOfTurn(t *testing.T) {
	s := newTestSession(t, 2)
	if _, err := s.ApplyRoll("Budi", 4, false); err != errors.ErrNotYourTurn {
		t.Fatalf("ApplyRoll out of turn = %v, want ErrNotYourTurn", err)
	}
}

func TestRollRejectedWhileInFlight(t *testing.T) {
	s := newTestSession(t, 2)
	if _, err := s.ApplyRoll("Ani", 6, false); err != nil {
		t.Fatalf("first roll failed: %v", err)
	}
	// Bonus roll keeps the turn with Ani, but the move is still in flight
	// until EndTurn runs.
	if _, err := s.ApplyRoll("Ani", 2, false); err != errors.ErrMoveInFlight {
		t.Fatalf("in-flight roll = %v, want ErrMoveInFlight", err)
	}
}

func TestRollRejectedWhilePaused(t *testing.T) {
	s := newTestSession(t, 2)
	s.Pause()
	if _, err := s.ApplyRoll("Ani", 4, false); err != errors.ErrGamePaused {
		t.Fatalf("paused roll = %v, want ErrGamePaused", err)
	}
	s.Resume()
	if _, err := s.ApplyRoll("Ani", 4, false); err != nil {
		t.Fatalf("roll after resume failed: %v", err)
	}
}

func TestBonusRollOnMaxFace(t *testing.T) {
	s := newTestSession(t, 3)

	out, err := s.ApplyRoll("Ani", 6, false)
	if err != nil {
		t.Fatalf("ApplyRoll failed: %v", err)
	}
	if !out.BonusRoll {
		t.Fatal("rolling a 6 should grant a bonus roll")
	}
	if next := s.EndTurn(); next != 0 {
		t.Fatalf("EndTurn after bonus = %d, want 0 (same player)", next)
	}

	// The bonus applies exactly once; a non-6 follow-up advances normally.
	if _, err := s.ApplyRoll("Ani", 2, false); err != nil {
		t.Fatalf("bonus roll failed: %v", err)
	}
	if next := s.EndTurn(); next != 1 {
		t.Fatalf("EndTurn after bonus consumed = %d, want 1", next)
	}
}

func TestTurnWrapsAround(t *testing.T) {
	s := newTestSession(t, 2)
	if _, err := s.ApplyRoll("Ani", 2, false); err != nil {
		t.Fatal(err)
	}
	if next := s.EndTurn(); next != 1 {
		t.Fatalf("next = %d, want 1", next)
	}
	if _, err := s.ApplyRoll("Budi", 2, false); err != nil {
		t.Fatal(err)
	}
	if next := s.EndTurn(); next != 0 {
		t.Fatalf("next = %d, want 0 (wrap)", next)
	}
}

func TestWinSkipsTurnAdvancement(t *testing.T) {
	s := newTestSession(t, 2)
	s.Players[0].Position = 98

	out, err := s.ApplyRoll("Ani", 2, false)
	if err != nil {
		t.Fatalf("ApplyRoll failed: %v", err)
	}
	if !out.Won {
		t.Fatal("landing on 100 should win")
	}
	if s.Room.Status != gamedom.StatusFinished {
		t.Fatalf("status = %s, want finished", s.Room.Status)
	}
	if s.Winner == nil || s.Winner.Name != "Ani" {
		t.Fatalf("winner = %+v, want Ani", s.Winner)
	}
	for _, p := range s.Players {
		if p.IsCurrentTurn {
			t.Error("no player should hold the turn after the game finished")
		}
	}
	// A win on a 6 must not leave a pending bonus behind.
	if _, err := s.ApplyRoll("Ani", 3, false); err != errors.ErrGameNotInProgress {
		t.Fatalf("roll after finish = %v, want ErrGameNotInProgress", err)
	}
}

func TestCollisionBumpsRestingPlayer(t *testing.T) {
	s := newTestSession(t, 2)
	s.Players[1].Position = 40
	s.Players[0].Position = 36

	out, err := s.ApplyRoll("Ani", 4, false)
	if err != nil {
		t.Fatalf("ApplyRoll failed: %v", err)
	}
	if out.Collision == nil {
		t.Fatal("expected a collision at tile 40")
	}
	if out.Collision.BumpedPlayerID != "Budi" || out.Collision.BumpedToPosition != 38 {
		t.Errorf("unexpected collision: %+v", out.Collision)
	}
	if s.PlayerByID("Budi").Position != 38 {
		t.Errorf("Budi position = %d, want 38", s.PlayerByID("Budi").Position)
	}
}

func TestPlainRollFollowsChute(t *testing.T) {
	s := newTestSession(t, 2)
	s.Players[0].Position = 14

	// An unarmed roll never touches the shield charge, even with one left.
	out, err := s.ApplyRoll("Ani", 3, false) // lands on chute head 17
	if err != nil {
		t.Fatalf("ApplyRoll failed: %v", err)
	}
	if out.Shielded {
		t.Fatal("plain roll must not consume the shield")
	}
	if out.Move.Type != gamedom.MoveChute {
		t.Fatalf("move type = %s, want chute", out.Move.Type)
	}
	if got := s.PlayerByID("Ani").Position; got != 7 {
		t.Fatalf("position = %d, want 7 (chute tail)", got)
	}
	if s.PowerUpsFor("Ani").ShieldCharges != 1 {
		t.Fatal("shield charge was spent by a plain roll")
	}
}

func TestShieldMustBeArmedToCancelChute(t *testing.T) {
	s := newTestSession(t, 2)
	s.Players[0].Position = 14

	out, err := s.ApplyRoll("Ani", 3, true) // armed, lands on chute head 17
	if err != nil {
		t.Fatalf("ApplyRoll failed: %v", err)
	}
	if !out.Shielded {
		t.Fatal("expected the armed shield to absorb the chute")
	}
	if got := s.PlayerByID("Ani").Position; got != 17 {
		t.Fatalf("position = %d, want 17 (stayed on chute head)", got)
	}
	s.EndTurn()
	s.ApplyRoll("Budi", 2, false)
	s.EndTurn()

	// The single charge is spent: arming again is rejected before the roll.
	s.Players[0].Position = 14
	if _, err := s.ApplyRoll("Ani", 3, true); err != errors.ErrPowerUpExhausted {
		t.Fatalf("armed roll without charges = %v, want ErrPowerUpExhausted", err)
	}
	// The rejection changed nothing; a plain roll still slides down.
	out, err = s.ApplyRoll("Ani", 3, false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Shielded || out.Move.Type != gamedom.MoveChute || s.PlayerByID("Ani").Position != 7 {
		t.Fatalf("chute landing should slide: %+v, pos %d", out, s.PlayerByID("Ani").Position)
	}
}

func TestArmedShieldKeepsChargeWithoutChute(t *testing.T) {
	s := newTestSession(t, 2)
	s.Players[0].Position = 30

	out, err := s.ApplyRoll("Ani", 2, true) // no chute at 32
	if err != nil {
		t.Fatalf("ApplyRoll failed: %v", err)
	}
	if out.Shielded {
		t.Fatal("nothing to shield against")
	}
	if s.PowerUpsFor("Ani").ShieldCharges != 1 {
		t.Fatal("charge spent although no chute was hit")
	}
}

func TestClimbTeleport(t *testing.T) {
	s := newTestSession(t, 2)
	s.Players[0].Position = 1

	out, err := s.UseClimbTeleport("Ani")
	if err != nil {
		t.Fatalf("UseClimbTeleport failed: %v", err)
	}
	if out.Move.Type != gamedom.MoveTeleport {
		t.Errorf("move type = %s, want teleport", out.Move.Type)
	}
	if got := s.PlayerByID("Ani").Position; got != 22 {
		t.Errorf("position = %d, want 22 (climb 3 -> 22)", got)
	}
	if out.BonusRoll {
		t.Error("teleport must not grant a bonus roll")
	}
	s.EndTurn()
	s.ApplyRoll("Budi", 2, false)
	s.EndTurn()

	if _, err := s.UseClimbTeleport("Ani"); err != errors.ErrPowerUpExhausted {
		t.Fatalf("second teleport = %v, want ErrPowerUpExhausted", err)
	}
}

func TestApplyRemoteMoveIdempotent(t *testing.T) {
	s := newTestSession(t, 2)

	s.ApplyRemoteMove("Budi", "Budi", 1, 9, 4, gamedom.MoveNormal, nil)
	posAfterOnce := s.PlayerByID("Budi").Position
	historyAfterOnce := len(s.History)

	s.ApplyRemoteMove("Budi", "Budi", 1, 9, 4, gamedom.MoveNormal, nil)

	if got := s.PlayerByID("Budi").Position; got != posAfterOnce {
		t.Errorf("position changed on duplicate apply: %d vs %d", got, posAfterOnce)
	}
	if len(s.History) != historyAfterOnce {
		t.Errorf("history grew on duplicate apply: %d vs %d", len(s.History), historyAfterOnce)
	}
}

func TestApplyRemoteMoveDerivesWinLocally(t *testing.T) {
	s := newTestSession(t, 2)
	s.ApplyRemoteMove("Budi", "Budi", 96, 100, 4, gamedom.MoveNormal, nil)
	if s.Room.Status != gamedom.StatusFinished {
		t.Fatalf("status = %s, want finished (win recomputed locally)", s.Room.Status)
	}
	if s.Winner == nil || s.Winner.ID != "Budi" {
		t.Fatalf("winner = %+v, want Budi", s.Winner)
	}
}

func TestApplyRemoteTurnIsAuthoritativeLatest(t *testing.T) {
	s := newTestSession(t, 3)
	s.ApplyRemoteTurn(2)
	s.ApplyRemoteTurn(1)
	if s.CurrentIndex != 1 {
		t.Fatalf("CurrentIndex = %d, want 1 (last write wins)", s.CurrentIndex)
	}
	if !s.Players[1].IsCurrentTurn || s.Players[0].IsCurrentTurn || s.Players[2].IsCurrentTurn {
		t.Error("turn flags do not match the applied index")
	}
	// Out-of-range indices from a stale replica are ignored.
	s.ApplyRemoteTurn(7)
	if s.CurrentIndex != 1 {
		t.Fatalf("CurrentIndex = %d after bogus index, want 1", s.CurrentIndex)
	}
}

func TestLeaveOfActivePlayerAdvancesTurn(t *testing.T) {
	s := newTestSession(t, 3)
	s.ApplyRemoteLeave("Ani")
	if len(s.Players) != 2 {
		t.Fatalf("players = %d, want 2", len(s.Players))
	}
	cur := s.CurrentPlayer()
	if cur == nil || cur.ID != "Budi" {
		t.Fatalf("current player = %+v, want Budi", cur)
	}
	if !cur.IsCurrentTurn {
		t.Error("turn flag not set on the advanced player")
	}
}

func TestLeaveOfEarlierPlayerKeepsTurnOwner(t *testing.T) {
	s := newTestSession(t, 3)
	s.ApplyRemoteTurn(2) // Citra's turn
	s.ApplyRemoteLeave("Ani")
	cur := s.CurrentPlayer()
	if cur == nil || cur.ID != "Citra" {
		t.Fatalf("current player = %+v, want Citra", cur)
	}
}

func TestApplyRemoteJoinIgnoresDuplicates(t *testing.T) {
	s := newTestSession(t, 2)
	p := gamedom.Player{ID: "Citra", Name: "Citra", Position: 1, PlayerOrder: 2}
	s.ApplyRemoteJoin(p)
	s.ApplyRemoteJoin(p)
	if len(s.Players) != 3 {
		t.Fatalf("players = %d, want 3", len(s.Players))
	}
}
