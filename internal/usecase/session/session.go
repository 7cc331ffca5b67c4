// Package session is the synchronization layer: it persists every
// locally-applied transition to the shared store and broadcasts it on the
// room's channel so all replicas converge without a central arbiter.
package session

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ular_tangga/internal/bootstrap"
	"ular_tangga/internal/domain/board"
	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/engine"
	"ular_tangga/internal/errors"
	"ular_tangga/internal/rules"
)

// RoomStore is the persistent shared store. The Mongo repository implements
// it; tests use an in-memory fake.
type RoomStore interface {
	GenerateJoinCode(ctx context.Context) (string, error)
	CreateRoom(ctx context.Context, room gamedom.Room) error
	GetRoomByID(ctx context.Context, roomID string) (gamedom.Room, error)
	GetWaitingRoomByJoinCode(ctx context.Context, joinCode string) (gamedom.Room, error)
	ListWaitingRooms(ctx context.Context, limit int) ([]gamedom.Room, error)
	SetRoomStatus(ctx context.Context, roomID, status, winnerName string) error
	SetRoomPlayerCount(ctx context.Context, roomID string, count int) error
	TouchRoom(ctx context.Context, roomID string) error
	DeleteRoom(ctx context.Context, roomID string) error

	AddPlayer(ctx context.Context, p gamedom.Player) error
	GetPlayer(ctx context.Context, playerID string) (gamedom.Player, error)
	GetPlayersByRoom(ctx context.Context, roomID string) ([]gamedom.Player, error)
	SetPlayerPosition(ctx context.Context, playerID string, position int) error
	ResetPositions(ctx context.Context, roomID string) error
	SetCurrentTurn(ctx context.Context, roomID, playerID string) error
	RemovePlayer(ctx context.Context, playerID string) error
	TakenAvatars(ctx context.Context, roomID string) ([]int, error)

	AppendMove(ctx context.Context, m gamedom.MoveEvent) error
	GetMoveHistory(ctx context.Context, roomID string) ([]gamedom.MoveEvent, error)
}

// Broadcaster is the per-room publish/subscribe channel. Delivery is
// best-effort and unordered; the Redis repository implements it.
type Broadcaster interface {
	Publish(ctx context.Context, roomID string, u gamedom.Update) error
	Subscribe(ctx context.Context, roomID string) (<-chan gamedom.Update, func(), error)
}

// Leaderboard records finished-game results and serves rankings.
type Leaderboard interface {
	RecordResult(ctx context.Context, username string, won bool) error
	Top(ctx context.Context, limit int) ([]gamedom.LeaderboardEntry, error)
}

const joinCodeCreateRetries = 4

type SessionUseCase struct {
	cfg         bootstrap.Config
	log         *zap.SugaredLogger
	store       RoomStore
	broadcaster Broadcaster
	leaderboard Leaderboard
}

func NewSessionUseCase(cfg bootstrap.Config, log *zap.SugaredLogger, store RoomStore, b Broadcaster, lb Leaderboard) *SessionUseCase {
	return &SessionUseCase{
		cfg:         cfg,
		log:         log,
		store:       store,
		broadcaster: b,
		leaderboard: lb,
	}
}

func (u *SessionUseCase) Store() RoomStore         { return u.store }
func (u *SessionUseCase) Broadcaster() Broadcaster { return u.broadcaster }
func (u *SessionUseCase) Leaderboard() Leaderboard { return u.leaderboard }

// CreateRoom issues a unique join code and registers the host as player
// order 0. Nobody holds the turn until the game starts.
func (u *SessionUseCase) CreateRoom(ctx context.Context, req gamedom.CreateRoomRequest) (gamedom.Room, gamedom.Player, error) {
	if strings.TrimSpace(req.HostName) == "" {
		return gamedom.Room{}, gamedom.Player{}, errors.ErrNameRequired
	}

	now := time.Now()
	room := gamedom.Room{
		ID:             uuid.New().String(),
		Name:           req.RoomName,
		HostName:       req.HostName,
		Status:         gamedom.StatusWaiting,
		MaxPlayers:     gamedom.MaxPlayers,
		CurrentPlayers: 1,
		BoardThemeID:   board.ThemeByID(req.BoardThemeID).ID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	host := gamedom.Player{
		ID:           uuid.New().String(),
		RoomID:       room.ID,
		Name:         req.HostName,
		Color:        req.HostColor,
		Avatar:       req.Avatar,
		Position:     gamedom.StartTile,
		IsHost:       true,
		PlayerOrder:  0,
		JoinedAt:     now,
		LastActiveAt: now,
	}

	// The store enforces join-code uniqueness on insert; a concurrent create
	// that grabbed the same code surfaces as ErrJoinCodeTaken and we draw a
	// fresh one.
	created := false
	for attempt := 0; attempt < joinCodeCreateRetries; attempt++ {
		code, err := u.store.GenerateJoinCode(ctx)
		if err != nil {
			return gamedom.Room{}, gamedom.Player{}, err
		}
		room.JoinCode = code

		err = u.store.CreateRoom(ctx, room)
		if err == nil {
			created = true
			break
		}
		if stderrors.Is(err, errors.ErrJoinCodeTaken) {
			continue
		}
		u.log.Errorf("failed to create room: %v", err)
		return gamedom.Room{}, gamedom.Player{}, errors.ErrStoreWriteFailed
	}
	if !created {
		return gamedom.Room{}, gamedom.Player{}, errors.ErrJoinCodeExhausted
	}
	if err := u.store.AddPlayer(ctx, host); err != nil {
		u.log.Errorf("failed to add host player: %v", err)
		return gamedom.Room{}, gamedom.Player{}, errors.ErrStoreWriteFailed
	}

	u.log.Infof("room %s created with join code %s", room.ID, room.JoinCode)
	return room, host, nil
}

// JoinRoom validates the code, capacity and avatar uniqueness, assigns the
// next player order and announces the newcomer on the room channel.
func (u *SessionUseCase) JoinRoom(ctx context.Context, req gamedom.JoinRoomRequest) (gamedom.Room, gamedom.Player, []gamedom.Player, error) {
	if strings.TrimSpace(req.PlayerName) == "" {
		return gamedom.Room{}, gamedom.Player{}, nil, errors.ErrNameRequired
	}

	room, err := u.store.GetWaitingRoomByJoinCode(ctx, strings.ToUpper(req.JoinCode))
	if err != nil {
		return gamedom.Room{}, gamedom.Player{}, nil, err
	}
	if room.CurrentPlayers >= room.MaxPlayers {
		return gamedom.Room{}, gamedom.Player{}, nil, errors.ErrRoomFull
	}

	taken, err := u.store.TakenAvatars(ctx, room.ID)
	if err != nil {
		return gamedom.Room{}, gamedom.Player{}, nil, errors.ErrStoreWriteFailed
	}
	for _, a := range taken {
		if a == req.Avatar {
			return gamedom.Room{}, gamedom.Player{}, nil, errors.ErrAvatarTaken
		}
	}

	existing, err := u.store.GetPlayersByRoom(ctx, room.ID)
	if err != nil {
		return gamedom.Room{}, gamedom.Player{}, nil, errors.ErrStoreWriteFailed
	}

	now := time.Now()
	player := gamedom.Player{
		ID:           uuid.New().String(),
		RoomID:       room.ID,
		Name:         req.PlayerName,
		Color:        req.PlayerColor,
		Avatar:       req.Avatar,
		Position:     gamedom.StartTile,
		PlayerOrder:  nextPlayerOrder(existing),
		JoinedAt:     now,
		LastActiveAt: now,
	}

	if err := u.store.AddPlayer(ctx, player); err != nil {
		u.log.Errorf("failed to add player to room %s: %v", room.ID, err)
		return gamedom.Room{}, gamedom.Player{}, nil, errors.ErrStoreWriteFailed
	}
	room.CurrentPlayers = len(existing) + 1
	if err := u.store.SetRoomPlayerCount(ctx, room.ID, room.CurrentPlayers); err != nil {
		u.log.Errorf("failed to update player count for room %s: %v", room.ID, err)
	}

	u.publish(ctx, gamedom.NewUpdate(gamedom.EventPlayerJoined, room.ID, player.ID, player.Name,
		gamedom.PlayerJoinedPayload{Player: player}))

	all := append(existing, player)
	return room, player, all, nil
}

// AddBot registers a bot participant. Bots are ordinary player records with
// a behavioral flag; their rolls go through the same pipeline.
func (u *SessionUseCase) AddBot(ctx context.Context, roomID, botName, color string, avatar int) (gamedom.Player, error) {
	room, err := u.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return gamedom.Player{}, err
	}
	if room.CurrentPlayers >= room.MaxPlayers {
		return gamedom.Player{}, errors.ErrRoomFull
	}
	existing, err := u.store.GetPlayersByRoom(ctx, roomID)
	if err != nil {
		return gamedom.Player{}, errors.ErrStoreWriteFailed
	}

	now := time.Now()
	bot := gamedom.Player{
		ID:           uuid.New().String(),
		RoomID:       roomID,
		Name:         botName,
		Color:        color,
		Avatar:       avatar,
		Position:     gamedom.StartTile,
		IsBot:        true,
		PlayerOrder:  nextPlayerOrder(existing),
		JoinedAt:     now,
		LastActiveAt: now,
	}
	if err := u.store.AddPlayer(ctx, bot); err != nil {
		return gamedom.Player{}, errors.ErrStoreWriteFailed
	}
	if err := u.store.SetRoomPlayerCount(ctx, roomID, len(existing)+1); err != nil {
		u.log.Errorf("failed to update player count for room %s: %v", roomID, err)
	}

	u.publish(ctx, gamedom.NewUpdate(gamedom.EventPlayerJoined, roomID, bot.ID, bot.Name,
		gamedom.PlayerJoinedPayload{Player: bot}))
	return bot, nil
}

// nextPlayerOrder keeps orders monotonic: a departed player's order is never
// reissued, so count-based assignment would collide after a mid-lobby leave.
func nextPlayerOrder(players []gamedom.Player) int {
	next := 0
	for _, p := range players {
		if p.PlayerOrder >= next {
			next = p.PlayerOrder + 1
		}
	}
	return next
}

func (u *SessionUseCase) ListRooms(ctx context.Context) ([]gamedom.Room, error) {
	return u.store.ListWaitingRooms(ctx, u.cfg.PageLimitRooms)
}

func (u *SessionUseCase) MoveHistory(ctx context.Context, roomID string) ([]gamedom.MoveEvent, error) {
	return u.store.GetMoveHistory(ctx, roomID)
}

func (u *SessionUseCase) TakenAvatars(ctx context.Context, joinCode string) ([]int, error) {
	room, err := u.store.GetWaitingRoomByJoinCode(ctx, strings.ToUpper(joinCode))
	if err != nil {
		return nil, err
	}
	return u.store.TakenAvatars(ctx, room.ID)
}

// LoadSession materializes a replica from the store.
func (u *SessionUseCase) LoadSession(ctx context.Context, roomID string) (*engine.Session, error) {
	room, err := u.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	players, err := u.store.GetPlayersByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return engine.New(room, players, board.ThemeByID(room.BoardThemeID).Topology), nil
}

// StartGame transitions the room to playing. Host only, at least two
// players; all positions reset and the turn fixes to player order 0.
func (u *SessionUseCase) StartGame(ctx context.Context, s *engine.Session, playerID string) error {
	caller := s.PlayerByID(playerID)
	if caller == nil {
		return errors.ErrPlayerNotFound
	}
	if !caller.IsHost {
		return errors.ErrNotHost
	}
	if err := s.Start(); err != nil {
		return err
	}

	if err := u.store.ResetPositions(ctx, s.Room.ID); err != nil {
		u.log.Errorf("failed to reset positions for room %s: %v", s.Room.ID, err)
		return errors.ErrStoreWriteFailed
	}
	if err := u.store.SetCurrentTurn(ctx, s.Room.ID, s.Players[0].ID); err != nil {
		u.log.Errorf("failed to set starting turn for room %s: %v", s.Room.ID, err)
		return errors.ErrStoreWriteFailed
	}
	if err := u.store.SetRoomStatus(ctx, s.Room.ID, gamedom.StatusPlaying, ""); err != nil {
		u.log.Errorf("failed to mark room %s playing: %v", s.Room.ID, err)
		return errors.ErrStoreWriteFailed
	}

	u.publish(ctx, gamedom.NewUpdate(gamedom.EventGameStarted, s.Room.ID, "", "", nil))
	u.log.Infof("game started in room %s with %d players", s.Room.ID, len(s.Players))
	return nil
}

// Roll runs the full acting-player pipeline: validate and resolve locally,
// persist the position and history, broadcast player_moved, then either end
// the game or advance the turn and broadcast turn_changed after the
// animation delay. Validation failures change nothing and broadcast nothing.
// useShield arms the shield power-up for this roll only.
func (u *SessionUseCase) Roll(ctx context.Context, s *engine.Session, playerID string, face int, useShield bool) (*engine.RollOutcome, error) {
	if face == 0 {
		face = rules.RollDice()
	}

	out, err := s.ApplyRoll(playerID, face, useShield)
	if err != nil {
		return nil, err
	}

	u.persistOutcome(ctx, s, out)
	u.publish(ctx, gamedom.NewUpdate(gamedom.EventPlayerMoved, s.Room.ID, out.Move.PlayerID, out.Move.PlayerName,
		gamedom.PlayerMovedPayload{
			PreviousPosition: out.Move.PreviousPosition,
			NewPosition:      out.Move.NewPosition,
			DiceRoll:         out.Move.DiceRoll,
			MoveType:         out.Move.Type,
			Collision:        out.Collision,
		}))

	if out.Won {
		u.endGame(ctx, s)
		return out, nil
	}

	u.advanceTurn(ctx, s)
	return out, nil
}

// Teleport applies the reposition power-up through the same persist and
// broadcast pipeline as a roll.
func (u *SessionUseCase) Teleport(ctx context.Context, s *engine.Session, playerID string) (*engine.RollOutcome, error) {
	out, err := s.UseClimbTeleport(playerID)
	if err != nil {
		return nil, err
	}

	u.persistOutcome(ctx, s, out)
	u.publish(ctx, gamedom.NewUpdate(gamedom.EventPlayerMoved, s.Room.ID, out.Move.PlayerID, out.Move.PlayerName,
		gamedom.PlayerMovedPayload{
			PreviousPosition: out.Move.PreviousPosition,
			NewPosition:      out.Move.NewPosition,
			DiceRoll:         out.Move.DiceRoll,
			MoveType:         out.Move.Type,
			Collision:        out.Collision,
		}))

	if out.Won {
		u.endGame(ctx, s)
		return out, nil
	}
	u.advanceTurn(ctx, s)
	return out, nil
}

// LeaveRoom removes a participant. Host departure force-finishes the session
// after a host_left notification; departure of the active player passes the
// turn so the room does not wedge.
func (u *SessionUseCase) LeaveRoom(ctx context.Context, s *engine.Session, playerID string) error {
	leaving := s.PlayerByID(playerID)
	if leaving == nil {
		return errors.ErrPlayerNotFound
	}
	wasHost := leaving.IsHost
	heldTurn := s.IsMyTurn(playerID)
	name := leaving.Name

	if err := u.store.RemovePlayer(ctx, playerID); err != nil {
		u.log.Errorf("failed to remove player %s: %v", playerID, err)
	}
	s.ApplyRemoteLeave(playerID)

	u.publish(ctx, gamedom.NewUpdate(gamedom.EventPlayerLeft, s.Room.ID, playerID, name,
		gamedom.PlayerLeftPayload{PlayerID: playerID}))

	if wasHost {
		u.publish(ctx, gamedom.NewUpdate(gamedom.EventHostLeft, s.Room.ID, playerID, name,
			gamedom.HostLeftPayload{Message: "Host telah meninggalkan permainan. Game berakhir."}))
		if err := u.store.SetRoomStatus(ctx, s.Room.ID, gamedom.StatusFinished, ""); err != nil {
			u.log.Errorf("failed to finish room %s after host left: %v", s.Room.ID, err)
		}
		u.deleteRoomAfter(s.Room.ID, time.Duration(u.cfg.FinishedGraceSeconds)*time.Second)
		return nil
	}

	if len(s.Players) == 0 {
		if err := u.store.DeleteRoom(ctx, s.Room.ID); err != nil {
			u.log.Errorf("failed to delete empty room %s: %v", s.Room.ID, err)
		}
		return nil
	}

	if err := u.store.SetRoomPlayerCount(ctx, s.Room.ID, len(s.Players)); err != nil {
		u.log.Errorf("failed to update player count for room %s: %v", s.Room.ID, err)
	}

	if heldTurn && s.Room.Status == gamedom.StatusPlaying {
		cur := s.CurrentPlayer()
		if cur != nil {
			if err := u.store.SetCurrentTurn(ctx, s.Room.ID, cur.ID); err != nil {
				u.log.Errorf("failed to pass turn in room %s: %v", s.Room.ID, err)
			}
			u.publishCritical(ctx, gamedom.NewUpdate(gamedom.EventTurnChanged, s.Room.ID, cur.ID, cur.Name,
				gamedom.TurnChangedPayload{NextTurnIndex: s.CurrentIndex}))
		}
	}
	return nil
}

func (u *SessionUseCase) persistOutcome(ctx context.Context, s *engine.Session, out *engine.RollOutcome) {
	// Position writes are idempotent, so transient failures are retried.
	if err := u.retryWrite(ctx, func() error {
		return u.store.SetPlayerPosition(ctx, out.Move.PlayerID, out.Move.NewPosition)
	}); err != nil {
		u.log.Errorf("failed to persist position for player %s: %v", out.Move.PlayerID, err)
	}
	if out.Collision != nil {
		if err := u.retryWrite(ctx, func() error {
			return u.store.SetPlayerPosition(ctx, out.Collision.BumpedPlayerID, out.Collision.BumpedToPosition)
		}); err != nil {
			u.log.Errorf("failed to persist bump for player %s: %v", out.Collision.BumpedPlayerID, err)
		}
	}
	if err := u.store.AppendMove(ctx, out.Move); err != nil {
		u.log.Errorf("failed to append move history: %v", err)
	}
	if err := u.store.TouchRoom(ctx, s.Room.ID); err != nil {
		u.log.Errorf("failed to touch room %s: %v", s.Room.ID, err)
	}
}

func (u *SessionUseCase) advanceTurn(ctx context.Context, s *engine.Session) {
	// The delay between player_moved and turn_changed is part of the
	// protocol: it gives every replica time to apply the position update
	// before the turn handover arrives.
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(u.cfg.TurnDelayMillis) * time.Millisecond):
	}

	next := s.EndTurn()
	cur := s.CurrentPlayer()
	if cur == nil {
		return
	}
	if err := u.store.SetCurrentTurn(ctx, s.Room.ID, cur.ID); err != nil {
		u.log.Errorf("failed to persist turn for room %s: %v", s.Room.ID, err)
	}
	u.publishCritical(ctx, gamedom.NewUpdate(gamedom.EventTurnChanged, s.Room.ID, cur.ID, cur.Name,
		gamedom.TurnChangedPayload{NextTurnIndex: next}))
}

func (u *SessionUseCase) endGame(ctx context.Context, s *engine.Session) {
	winner := s.Winner
	if winner == nil {
		return
	}
	if err := u.store.SetRoomStatus(ctx, s.Room.ID, gamedom.StatusFinished, winner.Name); err != nil {
		u.log.Errorf("failed to finish room %s: %v", s.Room.ID, err)
	}

	u.publishCritical(ctx, gamedom.NewUpdate(gamedom.EventGameEnded, s.Room.ID, winner.ID, winner.Name,
		gamedom.GameEndedPayload{WinnerName: winner.Name}))

	for _, p := range s.Players {
		if p.IsBot {
			continue
		}
		if err := u.leaderboard.RecordResult(ctx, p.Name, p.ID == winner.ID); err != nil {
			u.log.Errorf("failed to record result for %s: %v", p.Name, err)
		}
	}

	// Grace delay before deletion so every client can observe the end state.
	u.deleteRoomAfter(s.Room.ID, time.Duration(u.cfg.FinishedGraceSeconds)*time.Second)
	u.log.Infof("game in room %s won by %s", s.Room.ID, winner.Name)
}

func (u *SessionUseCase) deleteRoomAfter(roomID string, d time.Duration) {
	time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := u.store.DeleteRoom(ctx, roomID); err != nil {
			u.log.Errorf("deferred delete of room %s failed: %v", roomID, err)
		}
	})
}

func (u *SessionUseCase) publish(ctx context.Context, update gamedom.Update) {
	if err := u.broadcaster.Publish(ctx, update.RoomID, update); err != nil {
		u.log.Errorf("broadcast %s for room %s failed: %v", update.Type, update.RoomID, err)
	}
}

// publishCritical is for turn_changed and game_ended events: losing one can
// desynchronize every replica, so the publish is retried before giving up.
func (u *SessionUseCase) publishCritical(ctx context.Context, update gamedom.Update) {
	err := u.retryWrite(ctx, func() error {
		return u.broadcaster.Publish(ctx, update.RoomID, update)
	})
	if err != nil {
		u.log.Errorf("CRITICAL: broadcast %s for room %s dropped after retries: %v",
			update.Type, update.RoomID, err)
	}
}

func (u *SessionUseCase) retryWrite(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return err
}
