package board

import "testing"

func TestClassicTopologyIsWellFormed(t *testing.T) {
	topo := Classic()

	if topo.MaxTile != 100 {
		t.Fatalf("MaxTile = %d, want 100", topo.MaxTile)
	}
	for head, tail := range topo.Chutes {
		if tail >= head {
			t.Errorf("chute %d -> %d does not go down", head, tail)
		}
		if head >= topo.MaxTile || tail < 1 {
			t.Errorf("chute %d -> %d out of range", head, tail)
		}
	}
	for bottom, top := range topo.Climbs {
		if top <= bottom {
			t.Errorf("climb %d -> %d does not go up", bottom, top)
		}
		if bottom <= 1 || top > topo.MaxTile {
			t.Errorf("climb %d -> %d out of range", bottom, top)
		}
	}
	for tile := range topo.Chutes {
		if _, ok := topo.Climbs[tile]; ok {
			t.Errorf("tile %d is both a chute head and a climb bottom", tile)
		}
	}
}

func TestThemeByIDFallsBackToDefault(t *testing.T) {
	if got := ThemeByID("candy"); got.ID != "candy" {
		t.Fatalf("ThemeByID(candy).ID = %q", got.ID)
	}
	if got := ThemeByID("does-not-exist"); got.ID != "default" {
		t.Fatalf("unknown id resolved to %q, want default", got.ID)
	}
	if got := ThemeByID(""); got.ID != "default" {
		t.Fatalf("empty id resolved to %q, want default", got.ID)
	}
}

func TestSquarePositionBoustrophedon(t *testing.T) {
	cases := []struct {
		tile     int
		row, col int
	}{
		{1, 0, 0},
		{10, 0, 9},
		{11, 1, 9}, // odd rows run right to left
		{20, 1, 0},
		{21, 2, 0},
		{100, 9, 0},
	}
	for _, c := range cases {
		row, col := SquarePosition(c.tile, 10)
		if row != c.row || col != c.col {
			t.Errorf("SquarePosition(%d) = (%d,%d), want (%d,%d)", c.tile, row, col, c.row, c.col)
		}
	}
}
