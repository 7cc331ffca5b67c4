package board

// Topology describes one board variant: the special-tile maps and the board
// extent. Rule evaluation works on the linear tile index 1..MaxTile; the
// 10x10 boustrophedon layout only matters to renderers.
type Topology struct {
	Chutes  map[int]int `json:"chutes"`
	Climbs  map[int]int `json:"climbs"`
	MaxTile int         `json:"max_tile"`
}

func (t Topology) ChuteTail(tile int) (int, bool) {
	tail, ok := t.Chutes[tile]
	return tail, ok
}

func (t Topology) ClimbTop(tile int) (int, bool) {
	top, ok := t.Climbs[tile]
	return top, ok
}

type Theme struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Topology Topology `json:"topology"`
}

// Classic returns the default topology. Chute entries strictly decrease the
// position, climb entries strictly increase it.
func Classic() Topology {
	return Topology{
		Chutes: map[int]int{
			17: 7,
			54: 34,
			62: 19,
			87: 36,
			93: 73,
			99: 79,
		},
		Climbs: map[int]int{
			3:  22,
			5:  14,
			20: 39,
			27: 84,
			51: 67,
			72: 91,
			88: 99,
		},
		MaxTile: 100,
	}
}

var themes = []Theme{
	{ID: "default", Name: "Klasik Jungle", Topology: Classic()},
	{ID: "candy", Name: "Dunia Permen", Topology: Classic()},
	{ID: "candy2", Name: "Dunia Permen 2", Topology: Classic()},
	{ID: "edukasi", Name: "Edukasi Anak", Topology: Classic()},
	{ID: "jawa", Name: "Tema Jawa", Topology: Classic()},
}

// ThemeByID falls back to the default theme for unknown ids.
func ThemeByID(id string) Theme {
	for _, th := range themes {
		if th.ID == id {
			return th
		}
	}
	return themes[0]
}

func Themes() []Theme {
	out := make([]Theme, len(themes))
	copy(out, themes)
	return out
}

// SquarePosition maps a tile number to its row and column on the
// alternating-direction grid. Even rows run left to right, odd rows right to
// left. Used by rendering collaborators only.
func SquarePosition(tile int, sideLen int) (row int, col int) {
	adjusted := tile - 1
	row = adjusted / sideLen
	col = adjusted % sideLen
	if row%2 != 0 {
		col = (sideLen - 1) - col
	}
	return row, col
}
