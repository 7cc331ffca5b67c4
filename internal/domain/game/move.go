package game

import "time"

type MoveType string

const (
	MoveNormal    MoveType = "normal"
	MoveChute     MoveType = "chute"
	MoveClimb     MoveType = "climb"
	MoveBounce    MoveType = "bounce"
	MoveCollision MoveType = "collision"
	MoveTeleport  MoveType = "teleport"
)

// MoveResult is the outcome of resolving a single die roll.
type MoveResult struct {
	Position int      `json:"position"`
	Type     MoveType `json:"move_type"`
}

// MoveEvent is an immutable append-only history record.
type MoveEvent struct {
	ID               string    `json:"id,omitempty" bson:"_id,omitempty"`
	RoomID           string    `json:"room_id" bson:"room_id"`
	PlayerID         string    `json:"player_id" bson:"player_id"`
	PlayerName       string    `json:"player_name" bson:"player_name"`
	PreviousPosition int       `json:"previous_position" bson:"previous_position"`
	NewPosition      int       `json:"new_position" bson:"new_position"`
	DiceRoll         int       `json:"dice_roll" bson:"dice_roll"`
	Type             MoveType  `json:"move_type" bson:"move_type"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

// CollisionEvent is derived per move when the mover lands on a tile occupied
// by a resting player. Only the mover's landing tile is checked; bumps never
// cascade.
type CollisionEvent struct {
	BumpedPlayerID     string `json:"bumped_player_id"`
	BumpedPlayerName   string `json:"bumped_player_name"`
	BumpedFromPosition int    `json:"bumped_from_position"`
	BumpedToPosition   int    `json:"bumped_to_position"`
}
