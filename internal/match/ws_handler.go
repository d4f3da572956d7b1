package match

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	httperrors "github.com/rkatarai/hayaoshi/pkg/http/errors"
	"github.com/rkatarai/hayaoshi/pkg/http/ws"

	"github.com/rkatarai/hayaoshi/internal/game"
	"github.com/rkatarai/hayaoshi/internal/store"
)

// WSHandler is the WebSocket gateway for sessions. Each connection carries
// one player; the handler routes protocol messages to the matchmaking
// service and to the connection's engine, and relays engine events back as
// session updates.
type WSHandler struct {
	service  *Service
	store    SessionStore
	resolver PoolResolver
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler creates the session WebSocket gateway.
func NewWSHandler(service *Service, st SessionStore, resolver PoolResolver, hub *ws.Hub, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		store:    st,
		resolver: resolver,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary origins; identity is
			// per-connection, not cookie-based, so origin checks buy nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleWebSocket upgrades the connection and pumps messages until the
// client goes away. Reconnecting clients pass their previous player_id as a
// query parameter to resume their seat; new clients get a fresh id.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		playerID = uuid.NewString()
	}

	logger := h.logger.With().Str("player_id", playerID).Logger()
	conn := ws.NewConnection(raw, logger)
	h.hub.RegisterConnection(playerID, conn)
	go conn.WritePump()

	c := &wsClient{handler: h, conn: conn, playerID: playerID, logger: logger}

	// Resuming clients may rejoin their session with join_session; the
	// duplicate-join path in the machine makes that a no-op on state.
	conn.ReadPump(c.handleMessage)

	c.detach()
	h.hub.UnregisterConnection(playerID, conn)
}

// wsClient is the per-connection routing state.
type wsClient struct {
	handler  *WSHandler
	conn     *ws.Connection
	playerID string
	logger   zerolog.Logger

	mu        sync.Mutex
	sessionID string
	engine    *Engine
	cancel    context.CancelFunc
}

func (c *wsClient) handleMessage(msg ws.Message) error {
	ctx := context.Background()

	switch msg.Type {
	case ws.TypeCreateSession:
		return c.onCreate(ctx, msg)
	case ws.TypeJoinSession:
		return c.onJoin(ctx, msg)
	case ws.TypeFindOpen:
		return c.onFindOpen(ctx, msg)
	case ws.TypeBuzz:
		return c.onBuzz(ctx, msg)
	case ws.TypeSubmitAnswer:
		return c.onSubmitAnswer(ctx, msg)
	case ws.TypeLeaveSession:
		c.detach()
		return nil
	case ws.TypeDeleteSession:
		return c.onDelete(ctx, msg)
	case ws.TypePing:
		return c.conn.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})
	default:
		return c.sendError(msg.RequestID, httperrors.ErrCodeUnknownMessageType, "unknown message type: "+msg.Type)
	}
}

func (c *wsClient) onCreate(ctx context.Context, msg ws.Message) error {
	var p ws.CreateSessionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Name == "" {
		return c.sendError(msg.RequestID, httperrors.ErrCodeInvalidPayload, "create_session requires a player name")
	}

	rules := rulesFromPayload(p.Rules)
	sessionID, err := c.handler.service.Create(ctx, rules, game.Player{ID: c.playerID, Name: p.Name}, p.IsOpenMatch)
	if err != nil {
		c.logger.Error().Err(err).Msg("session create failed")
		return c.sendError(msg.RequestID, httperrors.ErrCodeSessionCreateFailed, "could not create session")
	}
	return c.attach(msg.RequestID, sessionID)
}

func (c *wsClient) onJoin(ctx context.Context, msg ws.Message) error {
	var p ws.JoinSessionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.SessionID == "" || p.Name == "" {
		return c.sendError(msg.RequestID, httperrors.ErrCodeInvalidPayload, "join_session requires a session id and player name")
	}

	err := c.handler.service.Join(ctx, p.SessionID, game.Player{ID: c.playerID, Name: p.Name})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.sendError(msg.RequestID, httperrors.ErrCodeSessionNotFound, "session not found")
	case errors.Is(err, game.ErrAlreadyStarted):
		return c.sendError(msg.RequestID, httperrors.ErrCodeSessionAlreadyStarted, "session already started")
	case errors.Is(err, game.ErrSessionFull):
		return c.sendError(msg.RequestID, httperrors.ErrCodeSessionFull, "session is full")
	case err != nil:
		c.logger.Error().Err(err).Str("session_id", p.SessionID).Msg("session join failed")
		return c.sendError(msg.RequestID, httperrors.ErrCodeJoinFailed, "could not join session")
	}
	return c.attach(msg.RequestID, p.SessionID)
}

func (c *wsClient) onFindOpen(ctx context.Context, msg ws.Message) error {
	var p ws.FindOpenPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Name == "" {
		return c.sendError(msg.RequestID, httperrors.ErrCodeInvalidPayload, "find_open requires a player name")
	}

	rules := rulesFromPayload(p.Rules)
	sessionID, err := c.handler.service.FindOrCreateOpen(ctx, rules, game.Player{ID: c.playerID, Name: p.Name})
	if err != nil {
		c.logger.Error().Err(err).Msg("open match failed")
		return c.sendError(msg.RequestID, httperrors.ErrCodeSessionCreateFailed, "could not find an open match")
	}
	return c.attach(msg.RequestID, sessionID)
}

func (c *wsClient) onBuzz(ctx context.Context, msg ws.Message) error {
	engine, sessionID := c.current()
	if engine == nil {
		return c.sendError(msg.RequestID, httperrors.ErrCodeNotInSession, "not in a session")
	}

	err := engine.Buzz(ctx)
	switch {
	case errors.Is(err, game.ErrInvalidTransition):
		// Lost the race or the buzz window is closed.
		return c.send(ws.Message{Type: ws.TypeBuzzRejected, RequestID: msg.RequestID}, ws.BuzzRejectedPayload{SessionID: sessionID})
	case errors.Is(err, store.ErrNotFound):
		return c.sendError(msg.RequestID, httperrors.ErrCodeSessionNotFound, "session not found")
	case err != nil:
		c.logger.Error().Err(err).Msg("buzz failed")
		return c.sendError(msg.RequestID, httperrors.ErrCodeBuzzFailed, "could not buzz")
	}
	return nil
}

func (c *wsClient) onSubmitAnswer(ctx context.Context, msg ws.Message) error {
	engine, _ := c.current()
	if engine == nil {
		return c.sendError(msg.RequestID, httperrors.ErrCodeNotInSession, "not in a session")
	}

	var p ws.SubmitAnswerPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return c.sendError(msg.RequestID, httperrors.ErrCodeInvalidPayload, "submit_answer requires an answer")
	}

	err := engine.SubmitAnswer(ctx, p.Answer)
	switch {
	case errors.Is(err, game.ErrInvalidTransition):
		return c.sendError(msg.RequestID, httperrors.ErrCodeSubmitFailed, "no answer expected from you right now")
	case errors.Is(err, store.ErrNotFound):
		return c.sendError(msg.RequestID, httperrors.ErrCodeSessionNotFound, "session not found")
	case err != nil:
		c.logger.Error().Err(err).Msg("answer submit failed")
		return c.sendError(msg.RequestID, httperrors.ErrCodeSubmitFailed, "could not submit answer")
	}
	return nil
}

func (c *wsClient) onDelete(ctx context.Context, msg ws.Message) error {
	_, sessionID := c.current()
	if sessionID == "" {
		return c.sendError(msg.RequestID, httperrors.ErrCodeNotInSession, "not in a session")
	}

	err := c.handler.service.Delete(ctx, sessionID, c.playerID)
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return c.sendError(msg.RequestID, httperrors.ErrCodeNotSessionHost, "only the host can delete the session")
	case errors.Is(err, store.ErrNotFound):
		return c.sendError(msg.RequestID, httperrors.ErrCodeSessionNotFound, "session not found")
	case err != nil:
		c.logger.Error().Err(err).Msg("session delete failed")
		return c.sendError(msg.RequestID, httperrors.ErrCodeInternalError, "could not delete session")
	}
	// The watcher observes the deletion and sends session_closed.
	return nil
}

// attach switches this connection to a session: it spins up the engine,
// confirms with session_joined, and relays snapshots until the session ends
// or the connection moves elsewhere.
func (c *wsClient) attach(requestID, sessionID string) error {
	c.detach()

	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngine(c.handler.store, c.handler.resolver, sessionID, c.playerID, c.logger)

	c.mu.Lock()
	c.sessionID = sessionID
	c.engine = engine
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error().Err(err).Str("session_id", sessionID).Msg("engine stopped")
		}
	}()
	go c.relay(engine, sessionID)

	sess, err := c.handler.service.Get(ctx, sessionID)
	if err != nil {
		c.detach()
		return c.sendError(requestID, httperrors.ErrCodeSessionNotFound, "session not found")
	}
	return c.send(ws.Message{Type: ws.TypeSessionJoined, RequestID: requestID}, ws.SessionJoinedPayload{
		SessionID: sessionID,
		PlayerID:  c.playerID,
		IsHost:    sess.Players[c.playerID].IsHost,
	})
}

// relay pushes engine events to the client until the event stream closes.
func (c *wsClient) relay(engine *Engine, sessionID string) {
	for ev := range engine.Events() {
		if ev.Closed {
			c.send(ws.Message{Type: ws.TypeSessionClosed}, ws.SessionClosedPayload{SessionID: sessionID})
			c.detachIfCurrent(sessionID)
			return
		}
		c.send(ws.Message{Type: ws.TypeSessionUpdate}, sessionView(ev.Session, c.playerID))
	}
}

// detach stops the engine, if attached.
func (c *wsClient) detach() {
	c.mu.Lock()
	cancel := c.cancel
	c.sessionID, c.engine, c.cancel = "", nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *wsClient) detachIfCurrent(sessionID string) {
	c.mu.Lock()
	current := c.sessionID
	c.mu.Unlock()
	if current == sessionID {
		c.detach()
	}
}

func (c *wsClient) current() (*Engine, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine, c.sessionID
}

func (c *wsClient) send(msg ws.Message, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg.Payload = raw
	return c.conn.Send(msg)
}

func (c *wsClient) sendError(requestID, code, message string) error {
	return c.send(ws.Message{Type: ws.TypeError, RequestID: requestID}, ws.ErrorPayload{Code: code, Message: message})
}

// rulesFromPayload maps client-requested rules onto normalized game rules.
// An omitted delay gets the default rather than zero, so matches keep the
// short breather between questions.
func rulesFromPayload(p *ws.RulesPayload) game.Rules {
	if p == nil {
		return game.Rules{NextQuestionDelay: game.DefaultNextQuestionDelay}.Normalize()
	}
	delay := p.NextQuestionDelay
	if delay == 0 {
		delay = game.DefaultNextQuestionDelay
	}
	return game.Rules{
		WinPoints:          p.WinPoints,
		WrongAnswerPenalty: game.PenaltyKind(p.WrongAnswerPenalty),
		TotalQuestions:     p.TotalQuestions,
		NextQuestionDelay:  delay,
		Subjects:           p.Subjects,
	}.Normalize()
}

// sessionView projects a snapshot into the per-client update payload. The
// correct answer and the remaining question sequence never leave the server.
func sessionView(s *game.Session, viewerID string) ws.SessionUpdatePayload {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	players := make([]ws.PlayerView, 0, len(ids))
	for _, id := range ids {
		p := s.Players[id]
		players = append(players, ws.PlayerView{ID: p.ID, Name: p.Name, Score: p.Score, IsHost: p.IsHost})
	}

	out := ws.SessionUpdatePayload{
		SessionID:   s.ID,
		Status:      string(s.Status),
		IsOpenMatch: s.IsOpenMatch,
		Rules: ws.RulesPayload{
			WinPoints:          s.Rules.WinPoints,
			WrongAnswerPenalty: string(s.Rules.WrongAnswerPenalty),
			TotalQuestions:     s.Rules.TotalQuestions,
			NextQuestionDelay:  s.Rules.NextQuestionDelay,
			Subjects:           s.Rules.Subjects,
		},
		Players:              players,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		WinnerID:             s.WinnerID,
		IsHost:               s.Players[viewerID].IsHost,
	}
	if opp, ok := s.Opponent(viewerID); ok {
		out.OpponentName = opp.Name
	}
	if r := s.CurrentQuestion; r != nil {
		out.CurrentQuestion = &ws.QuestionView{
			QuestionID:      r.QuestionID,
			Text:            r.Text,
			IsSelectable:    r.IsSelectable,
			Options:         r.Options,
			Status:          string(r.Status),
			BuzzedPlayerID:  r.BuzzedPlayerID,
			AnswererID:      r.AnswererID,
			LockedOut:       r.LockedOut,
			SubmittedAnswer: r.SubmittedAnswer,
		}
	}
	return out
}
