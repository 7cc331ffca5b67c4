package game

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ular_tangga/internal/adapters"
	"ular_tangga/internal/bootstrap"
	"ular_tangga/internal/bot"
	"ular_tangga/internal/delivery/auth"
	"ular_tangga/internal/domain/board"
	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/engine"
	"ular_tangga/internal/httpresponse"
	repo "ular_tangga/internal/repository"
	"ular_tangga/internal/usecase/presence"
	sessionUC "ular_tangga/internal/usecase/session"
	"ular_tangga/internal/utils"
)

type GameHandler struct {
	cfg         bootstrap.Config
	log         *zap.SugaredLogger
	sessionUC   *sessionUC.SessionUseCase
	presence    *presence.Manager
	bots        *bot.Runner
	authHandler *auth.AuthHandler
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveRoom is the server-side replica of one room plus the websocket
// connections of locally attached players. All access goes through mu; the
// relay goroutine and every command handler serialize on it.
type liveRoom struct {
	mu      sync.Mutex
	session *engine.Session
	conns   map[string]*websocket.Conn
	unsub   func()
	cancel  context.CancelFunc
	botBusy bool
}

var activeRooms = make(map[string]*liveRoom)
var activeRoomsMu sync.Mutex

func NewGameHandler(cfg bootstrap.Config, log *zap.SugaredLogger, mongoAdapter *adapters.AdapterMongo, redisAdapter *adapters.AdapterRedis, authHandler *auth.AuthHandler) *GameHandler {
	roomRepo := repo.NewRoomRepository(cfg, log, mongoAdapter.Database)
	broadcaster := repo.NewRedisBroadcaster(log, redisAdapter.GetClient())
	leaderboard := repo.NewLeaderboardRepository(log, redisAdapter.GetClient(), mongoAdapter.Database)

	uc := sessionUC.NewSessionUseCase(cfg, log, roomRepo, broadcaster, leaderboard)
	return &GameHandler{
		cfg:         cfg,
		log:         log,
		sessionUC:   uc,
		presence:    presence.NewManager(cfg, log, roomRepo),
		bots:        bot.NewRunner(cfg, log, uc),
		authHandler: authHandler,
	}
}

func (g *GameHandler) Presence() *presence.Manager { return g.presence }

func (g *GameHandler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req gamedom.CreateRoomRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		g.log.Error("HandleCreateRoom: ", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: httpresponse.MALFORMEDJSON_errorDesc})
		return
	}
	if req.HostName == "" {
		req.HostName = g.authHandler.GetPlayerName(r)
	}

	room, host, err := g.sessionUC.CreateRoom(r.Context(), req)
	if err != nil {
		g.log.Error("HandleCreateRoom: ", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusOK, map[string]any{
		"room":   room,
		"player": host,
	})
}

func (g *GameHandler) HandleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req gamedom.JoinRoomRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		g.log.Error("HandleJoinRoom: ", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: httpresponse.MALFORMEDJSON_errorDesc})
		return
	}
	if req.PlayerName == "" {
		req.PlayerName = g.authHandler.GetPlayerName(r)
	}

	room, player, players, err := g.sessionUC.JoinRoom(r.Context(), req)
	if err != nil {
		g.log.Error("HandleJoinRoom: ", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusOK, map[string]any{
		"room":    room,
		"player":  player,
		"players": players,
	})
}

type addBotRequest struct {
	RoomID  string `json:"room_id"`
	BotName string `json:"bot_name"`
	Color   string `json:"color"`
	Avatar  int    `json:"avatar"`
}

func (g *GameHandler) HandleAddBot(w http.ResponseWriter, r *http.Request) {
	var req addBotRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: httpresponse.MALFORMEDJSON_errorDesc})
		return
	}
	if req.BotName == "" {
		req.BotName = "Bot"
	}

	player, err := g.sessionUC.AddBot(r.Context(), req.RoomID, req.BotName, req.Color, req.Avatar)
	if err != nil {
		g.log.Error("HandleAddBot: ", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, player)
}

// HandleListRooms serves the public lobby. Listing is also the opportunistic
// moment to garbage-collect dead rooms, so stale entries never linger past
// one lobby refresh.
func (g *GameHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	if _, err := g.presence.Sweep(r.Context()); err != nil {
		g.log.Errorf("lobby sweep failed: %v", err)
	}

	rooms, err := g.sessionUC.ListRooms(r.Context())
	if err != nil {
		g.log.Error("HandleListRooms: ", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, rooms)
}

func (g *GameHandler) HandleTakenAvatars(w http.ResponseWriter, r *http.Request) {
	joinCode := r.URL.Query().Get("join_code")
	if joinCode == "" {
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: "join_code is required"})
		return
	}

	taken, err := g.sessionUC.TakenAvatars(r.Context(), joinCode)
	if err != nil {
		httpresponse.WriteResponseWithStatus(w, http.StatusNotFound,
			httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, map[string]any{"taken_avatars": taken})
}

func (g *GameHandler) HandleMoveHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: "roomID is required"})
		return
	}

	moves, err := g.sessionUC.MoveHistory(r.Context(), roomID)
	if err != nil {
		g.log.Error("HandleMoveHistory: ", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, moves)
}

func (g *GameHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	top, err := g.sessionUC.Leaderboard().Top(r.Context(), g.cfg.PageLimitLeaderboard)
	if err != nil {
		g.log.Error("HandleLeaderboard: ", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, top)
}

func (g *GameHandler) HandleThemes(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, board.Themes())
}

type clientCommand struct {
	Action string `json:"action"`
	Face   int    `json:"face,omitempty"`
	// UseShield arms the shield power-up for this roll; a plain roll always
	// resolves chutes normally.
	UseShield bool `json:"use_shield,omitempty"`
}

type wsError struct {
	Error string `json:"error"`
}

// HandlePlay is the realtime endpoint: one websocket per player per room.
// Commands flow in (start, roll, teleport, pause, resume, leave), room
// updates flow out. The first connection for a room materializes the local
// replica and subscribes it to the room channel.
func (g *GameHandler) HandlePlay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := r.URL.Query().Get("room_id")
	playerID := r.URL.Query().Get("player_id")

	if roomID == "" || playerID == "" {
		g.log.Error("HandlePlay: room_id or player_id missing")
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: "room_id and player_id are required"})
		return
	}

	if _, err := g.sessionUC.Store().GetPlayer(ctx, playerID); err != nil {
		g.log.Errorf("HandlePlay: unknown player %s: %v", playerID, err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}

	lr, err := g.attachRoom(ctx, roomID)
	if err != nil {
		g.log.Errorf("HandlePlay: cannot attach room %s: %v", roomID, err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error("upgrade error: ", err)
		return
	}

	lr.mu.Lock()
	if old, ok := lr.conns[playerID]; ok {
		old.WriteMessage(websocket.TextMessage, []byte(`{"error":"replaced by a new connection"}`))
		old.Close()
	}
	lr.conns[playerID] = conn
	lr.mu.Unlock()

	hbCtx, hbCancel := context.WithCancel(context.Background())
	go g.presence.RunHeartbeat(hbCtx, playerID)

	defer func() {
		hbCancel()
		conn.Close()
		g.detach(roomID, lr, playerID, conn)
	}()

	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			g.log.Infof("player %s disconnected from room %s: %v", playerID, roomID, err)
			return
		}

		if leave := g.runCommand(lr, playerID, conn, cmd); leave {
			return
		}
	}
}

// runCommand executes one websocket command under the room lock and reports
// whether the connection should close.
func (g *GameHandler) runCommand(lr *liveRoom, playerID string, conn *websocket.Conn, cmd clientCommand) bool {
	ctx := context.Background()

	lr.mu.Lock()
	defer lr.mu.Unlock()

	var err error
	switch cmd.Action {
	case "start":
		err = g.sessionUC.StartGame(ctx, lr.session, playerID)
	case "roll":
		_, err = g.sessionUC.Roll(ctx, lr.session, playerID, cmd.Face, cmd.UseShield)
	case "teleport":
		_, err = g.sessionUC.Teleport(ctx, lr.session, playerID)
	case "pause":
		lr.session.Pause()
	case "resume":
		lr.session.Resume()
	case "leave":
		if err = g.sessionUC.LeaveRoom(ctx, lr.session, playerID); err == nil {
			return true
		}
	default:
		err = conn.WriteJSON(wsError{Error: "unknown action: " + cmd.Action})
		return false
	}

	if err != nil {
		g.log.Errorf("command %s from player %s failed: %v", cmd.Action, playerID, err)
		if werr := conn.WriteJSON(wsError{Error: err.Error()}); werr != nil {
			g.log.Error("write error: ", werr)
		}
	}
	return false
}

// attachRoom returns the live replica for the room, creating it and its
// channel subscription on first use.
func (g *GameHandler) attachRoom(ctx context.Context, roomID string) (*liveRoom, error) {
	activeRoomsMu.Lock()
	defer activeRoomsMu.Unlock()

	if lr, ok := activeRooms[roomID]; ok {
		return lr, nil
	}

	session, err := g.sessionUC.LoadSession(ctx, roomID)
	if err != nil {
		return nil, err
	}

	relayCtx, cancel := context.WithCancel(context.Background())
	updates, unsub, err := g.sessionUC.Broadcaster().Subscribe(relayCtx, roomID)
	if err != nil {
		cancel()
		return nil, err
	}

	lr := &liveRoom{
		session: session,
		conns:   make(map[string]*websocket.Conn),
		unsub:   unsub,
		cancel:  cancel,
	}
	activeRooms[roomID] = lr

	go g.relay(relayCtx, lr, updates)
	return lr, nil
}

func (g *GameHandler) detach(roomID string, lr *liveRoom, playerID string, conn *websocket.Conn) {
	lr.mu.Lock()
	if lr.conns[playerID] == conn {
		delete(lr.conns, playerID)
	}
	empty := len(lr.conns) == 0
	lr.mu.Unlock()

	if !empty {
		return
	}
	activeRoomsMu.Lock()
	if activeRooms[roomID] == lr {
		delete(activeRooms, roomID)
		lr.unsub()
		lr.cancel()
	}
	activeRoomsMu.Unlock()
}

// relay consumes the room channel: every update is applied to the local
// replica, then fanned out to all locally connected players. Our own
// published events come back here too; the replica apply functions are
// idempotent, so the echo is harmless.
func (g *GameHandler) relay(ctx context.Context, lr *liveRoom, updates <-chan gamedom.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			lr.mu.Lock()
			g.applyUpdate(lr, u)
			for playerID, conn := range lr.conns {
				if err := conn.WriteJSON(u); err != nil {
					g.log.Errorf("relay write to player %s failed: %v", playerID, err)
					conn.Close()
					delete(lr.conns, playerID)
				}
			}
			lr.mu.Unlock()
		}
	}
}

func (g *GameHandler) applyUpdate(lr *liveRoom, u gamedom.Update) {
	s := lr.session
	switch u.Type {
	case gamedom.EventPlayerJoined:
		var p gamedom.PlayerJoinedPayload
		if err := json.Unmarshal(u.Data, &p); err == nil {
			s.ApplyRemoteJoin(p.Player)
		}
	case gamedom.EventPlayerLeft:
		s.ApplyRemoteLeave(u.PlayerID)
	case gamedom.EventGameStarted:
		if s.Status() == gamedom.StatusWaiting {
			if err := s.Start(); err != nil {
				g.log.Errorf("remote start for room %s failed: %v", s.Room.ID, err)
			}
		}
		g.maybeDriveBot(lr)
	case gamedom.EventPlayerMoved:
		var p gamedom.PlayerMovedPayload
		if err := json.Unmarshal(u.Data, &p); err == nil {
			s.ApplyRemoteMove(u.PlayerID, u.PlayerName, p.PreviousPosition, p.NewPosition,
				p.DiceRoll, p.MoveType, p.Collision)
		}
	case gamedom.EventTurnChanged:
		var p gamedom.TurnChangedPayload
		if err := json.Unmarshal(u.Data, &p); err == nil {
			s.ApplyRemoteTurn(p.NextTurnIndex)
		}
		g.maybeDriveBot(lr)
	case gamedom.EventGameEnded:
		var p gamedom.GameEndedPayload
		if err := json.Unmarshal(u.Data, &p); err == nil {
			s.ApplyRemoteEnd(p.WinnerName)
		}
	case gamedom.EventHostLeft:
		s.ApplyRemoteEnd(s.Room.WinnerName)
	}
}

// maybeDriveBot spawns the bot driver when the turn lands on a bot and the
// host is attached to this replica. The host-side condition keeps exactly one
// server driving each bot. Caller holds lr.mu.
func (g *GameHandler) maybeDriveBot(lr *liveRoom) {
	if lr.botBusy {
		return
	}
	cur := lr.session.CurrentPlayer()
	if cur == nil || !cur.IsBot {
		return
	}
	hostAttached := false
	for _, p := range lr.session.Players {
		if p.IsHost {
			_, hostAttached = lr.conns[p.ID]
			break
		}
	}
	if !hostAttached {
		return
	}

	lr.botBusy = true
	go func() {
		g.bots.PlayIfBot(context.Background(), &lr.mu, lr.session)
		lr.mu.Lock()
		lr.botBusy = false
		lr.mu.Unlock()
	}()
}
