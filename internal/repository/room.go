package repo

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"ular_tangga/internal/bootstrap"
	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/errors"
	"ular_tangga/internal/random"
)

const (
	collRooms   = "rooms"
	collPlayers = "players"
	collMoves   = "move_history"

	joinCodeRetries = 16
	opTimeout       = 5 * time.Second
)

// RoomRepository persists rooms, players and the append-only move history in
// MongoDB. It backs both the session usecase and the presence manager.
type RoomRepository struct {
	cfg   bootstrap.Config
	log   *zap.SugaredLogger
	mongo *mongo.Database
}

func NewRoomRepository(cfg bootstrap.Config, log *zap.SugaredLogger, db *mongo.Database) *RoomRepository {
	r := &RoomRepository{cfg: cfg, log: log, mongo: db}
	r.ensureIndexes()
	return r
}

// ensureIndexes makes the unique join_code index the arbiter of uniqueness.
// The pre-check in GenerateJoinCode is only an optimization; without the
// index, two concurrent creates could both see a code as free and insert it
// twice.
func (r *RoomRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := r.mongo.Collection(collRooms).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "join_code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		r.log.Errorf("failed to ensure join_code index: %v", err)
	}
}

// GenerateJoinCode draws 6-char uppercase codes until one looks free,
// bounded so a pathologically full keyspace fails instead of spinning. The
// result is only a candidate; CreateRoom's insert settles races.
func (r *RoomRepository) GenerateJoinCode(ctx context.Context) (string, error) {
	for i := 0; i < joinCodeRetries; i++ {
		code := random.JoinCode(gamedom.JoinCodeLen)
		if r.joinCodeIsFree(ctx, code) {
			return code, nil
		}
	}
	return "", errors.ErrJoinCodeExhausted
}

func (r *RoomRepository) joinCodeIsFree(ctx context.Context, code string) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	err := r.mongo.Collection(collRooms).FindOne(ctx, bson.M{"join_code": code}).Err()
	return stderrors.Is(err, mongo.ErrNoDocuments)
}

func (r *RoomRepository) CreateRoom(ctx context.Context, room gamedom.Room) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.mongo.Collection(collRooms).InsertOne(ctx, room); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.ErrJoinCodeTaken
		}
		r.log.Errorf("failed to insert room %s: %v", room.ID, err)
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) GetRoomByID(ctx context.Context, roomID string) (gamedom.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var room gamedom.Room
	err := r.mongo.Collection(collRooms).FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return gamedom.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return gamedom.Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) GetWaitingRoomByJoinCode(ctx context.Context, joinCode string) (gamedom.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var room gamedom.Room
	filter := bson.M{"join_code": joinCode, "status": gamedom.StatusWaiting}
	err := r.mongo.Collection(collRooms).FindOne(ctx, filter).Decode(&room)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return gamedom.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return gamedom.Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) ListWaitingRooms(ctx context.Context, limit int) ([]gamedom.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.mongo.Collection(collRooms).Find(ctx, bson.M{"status": gamedom.StatusWaiting}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rooms []gamedom.Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *RoomRepository) SetRoomStatus(ctx context.Context, roomID, status, winnerName string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now()
	set := bson.M{"status": status, "last_activity_at": now}
	switch status {
	case gamedom.StatusPlaying:
		set["started_at"] = now
	case gamedom.StatusFinished:
		set["ended_at"] = now
		if winnerName != "" {
			set["winner_name"] = winnerName
		}
	}

	_, err := r.mongo.Collection(collRooms).UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{"$set": set})
	if err != nil {
		r.log.Errorf("failed to set room %s status to %s: %v", roomID, status, err)
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) SetRoomPlayerCount(ctx context.Context, roomID string, count int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.mongo.Collection(collRooms).UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{"current_players": count, "last_activity_at": time.Now()}})
	if err != nil {
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) TouchRoom(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.mongo.Collection(collRooms).UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{"last_activity_at": time.Now()}})
	if err != nil {
		return errors.ErrStoreWriteFailed
	}
	return nil
}

// DeleteRoom removes the room and everything hanging off it.
func (r *RoomRepository) DeleteRoom(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.mongo.Collection(collMoves).DeleteMany(ctx, bson.M{"room_id": roomID}); err != nil {
		r.log.Errorf("failed to delete move history for room %s: %v", roomID, err)
	}
	if _, err := r.mongo.Collection(collPlayers).DeleteMany(ctx, bson.M{"room_id": roomID}); err != nil {
		r.log.Errorf("failed to delete players for room %s: %v", roomID, err)
	}
	if _, err := r.mongo.Collection(collRooms).DeleteOne(ctx, bson.M{"_id": roomID}); err != nil {
		r.log.Errorf("failed to delete room %s: %v", roomID, err)
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) AddPlayer(ctx context.Context, p gamedom.Player) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.mongo.Collection(collPlayers).InsertOne(ctx, p); err != nil {
		r.log.Errorf("failed to insert player %s: %v", p.ID, err)
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) GetPlayer(ctx context.Context, playerID string) (gamedom.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var p gamedom.Player
	err := r.mongo.Collection(collPlayers).FindOne(ctx, bson.M{"_id": playerID}).Decode(&p)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return gamedom.Player{}, errors.ErrPlayerNotFound
	}
	if err != nil {
		return gamedom.Player{}, err
	}
	return p, nil
}

func (r *RoomRepository) GetPlayersByRoom(ctx context.Context, roomID string) ([]gamedom.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "player_order", Value: 1}})
	cur, err := r.mongo.Collection(collPlayers).Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var players []gamedom.Player
	if err := cur.All(ctx, &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *RoomRepository) SetPlayerPosition(ctx context.Context, playerID string, position int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.mongo.Collection(collPlayers).UpdateOne(ctx,
		bson.M{"_id": playerID},
		bson.M{"$set": bson.M{"position": position, "last_active_at": time.Now()}})
	if err != nil {
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) ResetPositions(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.mongo.Collection(collPlayers).UpdateMany(ctx,
		bson.M{"room_id": roomID},
		bson.M{"$set": bson.M{"position": gamedom.StartTile, "dice_result": 0}})
	if err != nil {
		return errors.ErrStoreWriteFailed
	}
	return nil
}

// SetCurrentTurn clears every turn flag in the room and sets the new owner,
// keeping the "exactly one current turn" invariant in the store.
func (r *RoomRepository) SetCurrentTurn(ctx context.Context, roomID, playerID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.mongo.Collection(collPlayers).UpdateMany(ctx,
		bson.M{"room_id": roomID},
		bson.M{"$set": bson.M{"is_current_turn": false}}); err != nil {
		return errors.ErrStoreWriteFailed
	}
	if _, err := r.mongo.Collection(collPlayers).UpdateOne(ctx,
		bson.M{"_id": playerID},
		bson.M{"$set": bson.M{"is_current_turn": true}}); err != nil {
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) RemovePlayer(ctx context.Context, playerID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.mongo.Collection(collPlayers).DeleteOne(ctx, bson.M{"_id": playerID}); err != nil {
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) TakenAvatars(ctx context.Context, roomID string) ([]int, error) {
	players, err := r.GetPlayersByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var avatars []int
	for _, p := range players {
		if p.Avatar != 0 {
			avatars = append(avatars, p.Avatar)
		}
	}
	return avatars, nil
}

func (r *RoomRepository) AppendMove(ctx context.Context, m gamedom.MoveEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if _, err := r.mongo.Collection(collMoves).InsertOne(ctx, m); err != nil {
		r.log.Errorf("failed to append move for room %s: %v", m.RoomID, err)
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) GetMoveHistory(ctx context.Context, roomID string) ([]gamedom.MoveEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.mongo.Collection(collMoves).Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var moves []gamedom.MoveEvent
	if err := cur.All(ctx, &moves); err != nil {
		return nil, err
	}
	return moves, nil
}

func (r *RoomRepository) TouchPlayer(ctx context.Context, playerID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.mongo.Collection(collPlayers).UpdateOne(ctx,
		bson.M{"_id": playerID},
		bson.M{"$set": bson.M{"last_active_at": time.Now()}})
	if err != nil {
		return errors.ErrStoreWriteFailed
	}
	return nil
}

func (r *RoomRepository) StalePlayers(ctx context.Context, olderThan time.Time) ([]gamedom.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := r.mongo.Collection(collPlayers).Find(ctx,
		bson.M{"last_active_at": bson.M{"$lt": olderThan}, "is_bot": false})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var players []gamedom.Player
	if err := cur.All(ctx, &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *RoomRepository) FinishedRoomsBefore(ctx context.Context, cutoff time.Time) ([]gamedom.Room, error) {
	return r.findRooms(ctx, bson.M{
		"status":   gamedom.StatusFinished,
		"ended_at": bson.M{"$lt": cutoff},
	})
}

func (r *RoomRepository) EmptyRooms(ctx context.Context) ([]gamedom.Room, error) {
	return r.findRooms(ctx, bson.M{"current_players": 0})
}

func (r *RoomRepository) IdleWaitingRooms(ctx context.Context, cutoff time.Time) ([]gamedom.Room, error) {
	return r.findRooms(ctx, bson.M{
		"status":           gamedom.StatusWaiting,
		"last_activity_at": bson.M{"$lt": cutoff},
	})
}

func (r *RoomRepository) findRooms(ctx context.Context, filter bson.M) ([]gamedom.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := r.mongo.Collection(collRooms).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rooms []gamedom.Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}
