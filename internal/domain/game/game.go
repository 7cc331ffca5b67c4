package game

import (
	"time"
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

const (
	MaxPlayers = 4
	MinPlayers = 2

	StartTile = 1
	MaxTile   = 100

	DiceMin = 1
	DiceMax = 6

	// Landing on an occupied tile displaces the occupant backward by this
	// many tiles, floored at tile 1.
	CollisionSetback = 2

	JoinCodeLen = 6
)

// Room is the authoritative session record shared by all participants via
// the store. Exactly one exists per session.
type Room struct {
	ID             string     `json:"id" bson:"_id"`
	JoinCode       string     `json:"join_code" bson:"join_code"`
	Name           string     `json:"name" bson:"name"`
	HostName       string     `json:"host_name" bson:"host_name"`
	Status         string     `json:"status" bson:"status"`
	MaxPlayers     int        `json:"max_players" bson:"max_players"`
	CurrentPlayers int        `json:"current_players" bson:"current_players"`
	BoardThemeID   string     `json:"board_theme_id" bson:"board_theme_id"`
	WinnerName     string     `json:"winner_name,omitempty" bson:"winner_name,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	LastActivityAt time.Time  `json:"last_activity_at" bson:"last_activity_at"`
}

// Player is owned by its session. Position is mutated only through the move
// rules, turn flags only through the turn state machine.
type Player struct {
	ID            string    `json:"id" bson:"_id"`
	RoomID        string    `json:"room_id" bson:"room_id"`
	Name          string    `json:"name" bson:"name"`
	Color         string    `json:"color" bson:"color"`
	Avatar        int       `json:"avatar" bson:"avatar"`
	Position      int       `json:"position" bson:"position"`
	IsHost        bool      `json:"is_host" bson:"is_host"`
	IsBot         bool      `json:"is_bot" bson:"is_bot"`
	IsCurrentTurn bool      `json:"is_current_turn" bson:"is_current_turn"`
	PlayerOrder   int       `json:"player_order" bson:"player_order"`
	DiceResult    int       `json:"dice_result,omitempty" bson:"dice_result,omitempty"`
	JoinedAt      time.Time `json:"joined_at" bson:"joined_at"`
	LastActiveAt  time.Time `json:"last_active_at" bson:"last_active_at"`
}

// LeaderboardEntry is derived from per-player stats, ranked by wins.
type LeaderboardEntry struct {
	Username         string  `json:"username" bson:"username"`
	TotalGamesPlayed int     `json:"total_games_played" bson:"total_games_played"`
	TotalGamesWon    int     `json:"total_games_won" bson:"total_games_won"`
	TotalGamesLost   int     `json:"total_games_lost" bson:"total_games_lost"`
	WinPercentage    float64 `json:"win_percentage" bson:"win_percentage"`
	Rank             int     `json:"rank" bson:"rank"`
}

type CreateRoomRequest struct {
	RoomName     string `json:"room_name"`
	HostName     string `json:"host_name"`
	HostColor    string `json:"host_color"`
	Avatar       int    `json:"avatar"`
	BoardThemeID string `json:"board_theme_id"`
}

type JoinRoomRequest struct {
	JoinCode    string `json:"join_code"`
	PlayerName  string `json:"player_name"`
	PlayerColor string `json:"player_color"`
	Avatar      int    `json:"avatar"`
}

type RollRequest struct {
	RoomID string `json:"room_id"`
	// Face is optional: 0 means "roll randomly", 1..6 substitutes a chosen
	// face (custom dice presentation layer).
	Face int `json:"face,omitempty"`
	// UseShield arms the shield power-up for this roll.
	UseShield bool `json:"use_shield,omitempty"`
}
