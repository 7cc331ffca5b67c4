package rules

import (
	"testing"

	"ular_tangga/internal/domain/board"
	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/errors"
)

func topo(chutes, climbs map[int]int) board.Topology {
	if chutes == nil {
		chutes = map[int]int{}
	}
	if climbs == nil {
		climbs = map[int]int{}
	}
	return board.Topology{Chutes: chutes, Climbs: climbs, MaxTile: 100}
}

func TestResolveMove(t *testing.T) {
	tests := []struct {
		name     string
		position int
		roll     int
		chutes   map[int]int
		climbs   map[int]int
		wantPos  int
		wantType gamedom.MoveType
	}{
		{"normal move", 5, 3, nil, nil, 8, gamedom.MoveNormal},
		{"exact win", 98, 2, nil, nil, 100, gamedom.MoveNormal},
		{"bounce back", 97, 5, nil, nil, 98, gamedom.MoveBounce},
		{"exact landing from further back", 96, 4, nil, nil, 100, gamedom.MoveNormal},
		{"chute", 14, 3, map[int]int{17: 7}, nil, 7, gamedom.MoveChute},
		{"climb", 1, 2, nil, map[int]int{3: 22}, 22, gamedom.MoveClimb},
		{"bounce onto chute head", 97, 6, map[int]int{97: 25}, nil, 25, gamedom.MoveChute},
		{"bounce onto climb bottom", 98, 6, nil, map[int]int{96: 99}, 99, gamedom.MoveClimb},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveMove(tt.position, tt.roll, topo(tt.chutes, tt.climbs))
			if got.Position != tt.wantPos || got.Type != tt.wantType {
				t.Errorf("ResolveMove(%d, %d) = (%d, %s), want (%d, %s)",
					tt.position, tt.roll, got.Position, got.Type, tt.wantPos, tt.wantType)
			}
		})
	}
}

func TestResolveMoveDeterministic(t *testing.T) {
	tp := topo(map[int]int{17: 7, 99: 79}, map[int]int{3: 22, 88: 99})
	for pos := 1; pos <= 99; pos++ {
		for roll := 1; roll <= 6; roll++ {
			first := ResolveMove(pos, roll, tp)
			second := ResolveMove(pos, roll, tp)
			if first != second {
				t.Fatalf("ResolveMove(%d, %d) not deterministic: %+v vs %+v", pos, roll, first, second)
			}
			if first.Position < 1 || first.Position > 100 {
				t.Fatalf("ResolveMove(%d, %d) left the board: %+v", pos, roll, first)
			}
		}
	}
}

func TestDetectCollision(t *testing.T) {
	players := []gamedom.Player{
		{ID: "a", Name: "Ani", Position: 40},
		{ID: "b", Name: "Budi", Position: 35},
	}

	ev := DetectCollision(40, players, "b")
	if ev == nil {
		t.Fatal("expected a collision at tile 40")
	}
	if ev.BumpedPlayerID != "a" || ev.BumpedFromPosition != 40 || ev.BumpedToPosition != 38 {
		t.Errorf("unexpected collision event: %+v", ev)
	}

	if ev := DetectCollision(41, players, "b"); ev != nil {
		t.Errorf("expected no collision at empty tile, got %+v", ev)
	}

	// The mover never collides with itself.
	if ev := DetectCollision(35, players, "b"); ev != nil {
		t.Errorf("mover collided with itself: %+v", ev)
	}
}

func TestDetectCollisionFloorsAtOne(t *testing.T) {
	players := []gamedom.Player{{ID: "a", Name: "Ani", Position: 2}}
	ev := DetectCollision(2, players, "b")
	if ev == nil || ev.BumpedToPosition != 1 {
		t.Fatalf("expected bump floored at tile 1, got %+v", ev)
	}
}

func TestIsWinningPosition(t *testing.T) {
	if !IsWinningPosition(100, 100) {
		t.Error("tile 100 should win")
	}
	if IsWinningPosition(99, 100) {
		t.Error("tile 99 should not win")
	}
}

func TestNextPlayerIndex(t *testing.T) {
	if got := NextPlayerIndex(3, 4); got != 0 {
		t.Errorf("NextPlayerIndex(3, 4) = %d, want 0", got)
	}
	if got := NextPlayerIndex(0, 4); got != 1 {
		t.Errorf("NextPlayerIndex(0, 4) = %d, want 1", got)
	}
	if got := NextPlayerIndex(1, 2); got != 0 {
		t.Errorf("NextPlayerIndex(1, 2) = %d, want 0", got)
	}
}

func TestValidateRoll(t *testing.T) {
	for face := 1; face <= 6; face++ {
		if err := ValidateRoll(face); err != nil {
			t.Errorf("ValidateRoll(%d) = %v, want nil", face, err)
		}
	}
	for _, face := range []int{0, -1, 7, 13} {
		if err := ValidateRoll(face); err != errors.ErrInvalidRoll {
			t.Errorf("ValidateRoll(%d) = %v, want ErrInvalidRoll", face, err)
		}
	}
}

func TestRollDiceRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		face := RollDice()
		if face < 1 || face > 6 {
			t.Fatalf("RollDice() = %d, out of range", face)
		}
	}
}

func TestGrantsBonusRoll(t *testing.T) {
	if !GrantsBonusRoll(6) {
		t.Error("face 6 should grant a bonus roll")
	}
	for face := 1; face <= 5; face++ {
		if GrantsBonusRoll(face) {
			t.Errorf("face %d should not grant a bonus roll", face)
		}
	}
}

func TestNearestClimbAhead(t *testing.T) {
	tp := topo(nil, map[int]int{3: 22, 20: 39, 51: 67})

	if bottom, ok := NearestClimbAhead(10, tp); !ok || bottom != 20 {
		t.Errorf("NearestClimbAhead(10) = (%d, %v), want (20, true)", bottom, ok)
	}
	if bottom, ok := NearestClimbAhead(20, tp); !ok || bottom != 51 {
		t.Errorf("NearestClimbAhead(20) = (%d, %v), want (51, true)", bottom, ok)
	}
	if _, ok := NearestClimbAhead(51, tp); ok {
		t.Error("expected no climb ahead of the last bottom")
	}
}
