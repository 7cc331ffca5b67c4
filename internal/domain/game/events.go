package game

import (
	"encoding/json"
	"time"
)

// Update event types carried on the per-room pub/sub channel. Delivery is
// at-most-once and unordered; consumers must tolerate duplicates and treat
// turn_changed as authoritative-latest.
const (
	EventPlayerJoined = "player_joined"
	EventPlayerLeft   = "player_left"
	EventGameStarted  = "game_started"
	EventPlayerMoved  = "player_moved"
	EventTurnChanged  = "turn_changed"
	EventGameEnded    = "game_ended"
	EventHostLeft     = "host_left"
)

type Update struct {
	Type       string          `json:"type"`
	RoomID     string          `json:"room_id"`
	PlayerID   string          `json:"player_id,omitempty"`
	PlayerName string          `json:"player_name,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

type PlayerJoinedPayload struct {
	Player Player `json:"player"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
}

type PlayerMovedPayload struct {
	PreviousPosition int             `json:"previous_position"`
	NewPosition      int             `json:"new_position"`
	DiceRoll         int             `json:"dice_roll"`
	MoveType         MoveType        `json:"move_type"`
	Collision        *CollisionEvent `json:"collision,omitempty"`
}

type TurnChangedPayload struct {
	NextTurnIndex int `json:"next_turn_index"`
}

type GameEndedPayload struct {
	WinnerName string `json:"winner_name"`
}

type HostLeftPayload struct {
	Message string `json:"message"`
}

// NewUpdate marshals the payload once at construction. A payload that fails
// to marshal is a programming error, so the Data field is simply left empty.
func NewUpdate(eventType, roomID, playerID, playerName string, payload any) Update {
	u := Update{
		Type:       eventType,
		RoomID:     roomID,
		PlayerID:   playerID,
		PlayerName: playerName,
		Timestamp:  time.Now().UnixMilli(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			u.Data = raw
		}
	}
	return u
}
