// Package realtime implements the websocket transport of spec §4.H: one
// room per game, fanning out the events a manager.Manager produces to
// every connected client and relaying client commands back into it. It
// is adapted from the teacher's Hub/Client pair in celebrity.go: a room
// of clients (here guarded by a mutex) with a send-or-drop broadcast,
// generalized from one celebrity-guessing lobby to a room that forwards
// the four Jarls client commands into the game manager instead of
// handling game logic itself.
package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/seednode/jarlsd/internal/hexgeom"
	"github.com/seednode/jarlsd/internal/manager"
	"github.com/seednode/jarlsd/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientMessage is the envelope for all four client→server commands of
// §4.H: joinGame, startGame, playTurn, starvationChoice.
type ClientMessage struct {
	Type        string  `json:"type"`
	RequestID   string  `json:"requestId,omitempty"`
	GameID      string  `json:"gameId,omitempty"`
	Token       string  `json:"token,omitempty"`
	PieceID     string  `json:"pieceId,omitempty"`
	Destination *hexPos `json:"destination,omitempty"`
	TurnNumber  *int    `json:"turnNumber,omitempty"`
}

type hexPos struct {
	Q int `json:"q"`
	R int `json:"r"`
}

func (p *hexPos) hex() hexgeom.Hex {
	if p == nil {
		return hexgeom.Hex{}
	}
	return hexgeom.Hex{Q: p.Q, R: p.R}
}

// ackMessage acknowledges one client command, per §4.H's ack-callback
// semantics.
type ackMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// serverEvent is the generic envelope for every server→client push:
// gameState, turnPlayed, gameEnded, playerJoined, playerLeft,
// playerReconnected, starvationRequired.
type serverEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client is one websocket connection, identified once it completes
// joinGame.
type Client struct {
	conn     *websocket.Conn
	send     chan any
	gameID   string
	playerID string
}

// room fans out events to every client currently watching one game.
type room struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

func newRoom() *room {
	return &room{clients: make(map[*Client]bool)}
}

func (r *room) add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = true
}

func (r *room) remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		close(c.send)
	}
}

func (r *room) broadcast(msg any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.clients {
		select {
		case c.send <- msg:
		default:
			// slow consumer; drop rather than block the broadcaster.
		}
	}
}

func (r *room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Hub owns one room per game and implements manager.Broadcaster.
type Hub struct {
	mgr  *manager.Manager
	sess *session.Store
	log  *zap.SugaredLogger

	mu    sync.Mutex
	rooms map[string]*room
}

// NewHub builds a Hub bound to the manager it relays commands into and
// the session store it authenticates joinGame tokens against.
func NewHub(mgr *manager.Manager, sess *session.Store, log *zap.SugaredLogger) *Hub {
	return &Hub{
		mgr:   mgr,
		sess:  sess,
		log:   log,
		rooms: make(map[string]*room),
	}
}

func (h *Hub) roomFor(gameID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[gameID]
	if !ok {
		r = newRoom()
		h.rooms[gameID] = r
	}
	return r
}

// Broadcast implements manager.Broadcaster: the manager calls this after
// every state transition, and the Hub fans it out to the game's room.
func (h *Hub) Broadcast(gameID string, eventType string, payload any) {
	h.roomFor(gameID).broadcast(serverEvent{Type: eventType, Payload: payload})
}

// ServeWS upgrades a connection and runs its pumps until it drops. It
// does not require the game ID up front — the client authenticates and
// selects a room via its first joinGame message, per §4.H.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{conn: conn, send: make(chan any, 16)}

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) readPump(c *Client) {
	defer h.handleDisconnect(c)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		h.dispatch(c, msg)
	}
}

func (h *Hub) writePump(c *Client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (h *Hub) handleDisconnect(c *Client) {
	_ = c.conn.Close()
	if c.gameID != "" {
		h.roomFor(c.gameID).remove(c)
		if c.playerID != "" {
			h.mgr.OnDisconnect(c.gameID, c.playerID)
		}
	}
}

func (h *Hub) dispatch(c *Client, msg ClientMessage) {
	switch msg.Type {
	case "joinGame":
		h.handleJoinGame(c, msg)
	case "startGame":
		h.handleStartGame(c, msg)
	case "playTurn":
		h.handlePlayTurn(c, msg)
	case "starvationChoice":
		h.handleStarvationChoice(c, msg)
	default:
		c.send <- ackMessage{Type: "ack", RequestID: msg.RequestID, Success: false, Error: "unknown message type"}
	}
}

func (h *Hub) handleJoinGame(c *Client, msg ClientMessage) {
	data, ok, err := h.sess.Validate(context.Background(), msg.Token)
	if err != nil || !ok || data.GameID != msg.GameID {
		c.send <- ackMessage{Type: "ack", RequestID: msg.RequestID, Success: false, Error: "invalid session"}
		return
	}

	c.gameID = data.GameID
	c.playerID = data.PlayerID

	r := h.roomFor(c.gameID)
	r.add(c)

	state, err := h.mgr.GetState(c.gameID)
	if err != nil {
		c.send <- ackMessage{Type: "ack", RequestID: msg.RequestID, Success: false, Error: "game not found"}
		return
	}

	if _, inDisconnect := state.DisconnectedPlayers[c.playerID]; inDisconnect {
		reconnected, err := h.mgr.OnReconnect(c.gameID, c.playerID)
		if err == nil {
			state = reconnected
		}
	} else {
		r.broadcast(serverEvent{Type: "playerJoined", Payload: map[string]any{"playerId": c.playerID}})
	}

	_ = h.sess.Extend(context.Background(), msg.Token)

	c.send <- ackMessage{Type: "ack", RequestID: msg.RequestID, Success: true}
	c.send <- serverEvent{Type: "gameState", Payload: state}
}

func (h *Hub) handleStartGame(c *Client, msg ClientMessage) {
	if c.gameID == "" || c.playerID == "" {
		c.send <- ackMessage{Type: "ack", RequestID: msg.RequestID, Success: false, Error: "not joined"}
		return
	}
	_, err := h.mgr.Start(context.Background(), c.gameID, c.playerID)
	c.send <- ackOf(msg.RequestID, err)
}

func (h *Hub) handlePlayTurn(c *Client, msg ClientMessage) {
	if c.gameID == "" || c.playerID == "" {
		c.send <- ackMessage{Type: "ack", RequestID: msg.RequestID, Success: false, Error: "not joined"}
		return
	}
	if msg.PieceID == "" || msg.Destination == nil {
		c.send <- ackMessage{Type: "ack", RequestID: msg.RequestID, Success: false, Error: "missing pieceId or destination"}
		return
	}
	_, _, err := h.mgr.MakeMove(context.Background(), c.gameID, c.playerID, msg.PieceID, msg.Destination.hex(), msg.TurnNumber)
	c.send <- ackOf(msg.RequestID, err)
}

func (h *Hub) handleStarvationChoice(c *Client, msg ClientMessage) {
	if c.gameID == "" || c.playerID == "" {
		c.send <- ackMessage{Type: "ack", RequestID: msg.RequestID, Success: false, Error: "not joined"}
		return
	}
	if msg.PieceID == "" {
		c.send <- ackMessage{Type: "ack", RequestID: msg.RequestID, Success: false, Error: "missing pieceId"}
		return
	}
	_, _, err := h.mgr.SubmitStarvationChoice(context.Background(), c.gameID, c.playerID, msg.PieceID)
	c.send <- ackOf(msg.RequestID, err)
}

func ackOf(requestID string, err error) ackMessage {
	if err != nil {
		return ackMessage{Type: "ack", RequestID: requestID, Success: false, Error: err.Error()}
	}
	return ackMessage{Type: "ack", RequestID: requestID, Success: true}
}

// ErrMissingGameID is returned by the QR handler when :gameid is absent
// from the route.
var ErrMissingGameID = errors.New("realtime: missing game id")

// QRHandler renders a PNG QR code encoding the game's URL for :gameid
// (this request's URL without its /qr suffix), the same convenience the
// teacher offers for sharing a game link from a phone.
func QRHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, ErrMissingGameID.Error(), http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	path := strings.TrimSuffix(r.URL.Path, "/qr")
	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// RoomSize reports how many clients currently watch a game, useful for
// diagnostics/metrics.
func (h *Hub) RoomSize(gameID string) int {
	return h.roomFor(gameID).size()
}
