// Package presence keeps player liveness fresh and garbage-collects dead
// sessions: stale players, emptied rooms, finished rooms past their grace
// delay and long-idle waiting rooms.
package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ular_tangga/internal/bootstrap"
	gamedom "ular_tangga/internal/domain/game"
)

// Store is the slice of the shared store the presence manager needs. The
// Mongo room repository implements it.
type Store interface {
	TouchPlayer(ctx context.Context, playerID string) error
	StalePlayers(ctx context.Context, olderThan time.Time) ([]gamedom.Player, error)
	RemovePlayer(ctx context.Context, playerID string) error
	GetPlayersByRoom(ctx context.Context, roomID string) ([]gamedom.Player, error)
	SetRoomPlayerCount(ctx context.Context, roomID string, count int) error
	DeleteRoom(ctx context.Context, roomID string) error
	FinishedRoomsBefore(ctx context.Context, cutoff time.Time) ([]gamedom.Room, error)
	EmptyRooms(ctx context.Context) ([]gamedom.Room, error)
	IdleWaitingRooms(ctx context.Context, cutoff time.Time) ([]gamedom.Room, error)
}

type Manager struct {
	cfg   bootstrap.Config
	log   *zap.SugaredLogger
	store Store
}

func NewManager(cfg bootstrap.Config, log *zap.SugaredLogger, store Store) *Manager {
	return &Manager{cfg: cfg, log: log, store: store}
}

func (m *Manager) heartbeatInterval() time.Duration {
	return time.Duration(m.cfg.HeartbeatSeconds) * time.Second
}

func (m *Manager) staleAfter() time.Duration {
	return time.Duration(m.cfg.StaleAfterSeconds) * time.Second
}

// RunHeartbeat periodically refreshes the player's liveness timestamp until
// the context is cancelled. Heartbeat writes are idempotent; a single failed
// write is only logged, the next tick covers it.
func (m *Manager) RunHeartbeat(ctx context.Context, playerID string) {
	if err := m.store.TouchPlayer(ctx, playerID); err != nil {
		m.log.Errorf("initial heartbeat for player %s failed: %v", playerID, err)
	}

	ticker := time.NewTicker(m.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.TouchPlayer(ctx, playerID); err != nil {
				m.log.Errorf("heartbeat for player %s failed: %v", playerID, err)
			}
		}
	}
}

// Sweep performs one garbage-collection pass and reports how many rooms it
// deleted. It is safe to run opportunistically, e.g. on every lobby listing.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	deleted := 0
	now := time.Now()

	stale, err := m.store.StalePlayers(ctx, now.Add(-m.staleAfter()))
	if err != nil {
		return 0, err
	}
	touchedRooms := make(map[string]struct{})
	for _, p := range stale {
		if err := m.store.RemovePlayer(ctx, p.ID); err != nil {
			m.log.Errorf("failed to remove stale player %s: %v", p.ID, err)
			continue
		}
		touchedRooms[p.RoomID] = struct{}{}
	}
	for roomID := range touchedRooms {
		remaining, err := m.store.GetPlayersByRoom(ctx, roomID)
		if err != nil {
			m.log.Errorf("failed to count players in room %s: %v", roomID, err)
			continue
		}
		if len(remaining) == 0 {
			if m.deleteRoom(ctx, roomID) {
				deleted++
			}
			continue
		}
		if err := m.store.SetRoomPlayerCount(ctx, roomID, len(remaining)); err != nil {
			m.log.Errorf("failed to update player count for room %s: %v", roomID, err)
		}
	}

	// Finished rooms are only collected after the grace delay, so clients
	// still observing the final broadcast can read the end state.
	grace := time.Duration(m.cfg.FinishedGraceSeconds) * time.Second
	finished, err := m.store.FinishedRoomsBefore(ctx, now.Add(-grace))
	if err != nil {
		return deleted, err
	}
	for _, r := range finished {
		if m.deleteRoom(ctx, r.ID) {
			deleted++
		}
	}

	empty, err := m.store.EmptyRooms(ctx)
	if err != nil {
		return deleted, err
	}
	for _, r := range empty {
		if m.deleteRoom(ctx, r.ID) {
			deleted++
		}
	}

	idleCutoff := now.Add(-time.Duration(m.cfg.IdleRoomSeconds) * time.Second)
	idle, err := m.store.IdleWaitingRooms(ctx, idleCutoff)
	if err != nil {
		return deleted, err
	}
	for _, r := range idle {
		if m.deleteRoom(ctx, r.ID) {
			deleted++
		}
	}

	if deleted > 0 {
		m.log.Infof("presence sweep deleted %d rooms", deleted)
	}
	return deleted, nil
}

// RunSweeper runs Sweep on a fixed cadence until the context is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.log.Errorf("presence sweep failed: %v", err)
			}
		}
	}
}

func (m *Manager) deleteRoom(ctx context.Context, roomID string) bool {
	if err := m.store.DeleteRoom(ctx, roomID); err != nil {
		m.log.Errorf("failed to delete room %s: %v", roomID, err)
		return false
	}
	return true
}
