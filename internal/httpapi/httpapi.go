// Package httpapi implements the REST surface of spec §6 on top of
// httprouter, adapted from the teacher's ServePage handlers: JSON
// encode/decode helpers, security headers matching web.go's
// securityHeaders, and Bearer-session auth backed by internal/session.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/seednode/jarlsd/internal/gamestate"
	"github.com/seednode/jarlsd/internal/manager"
	"github.com/seednode/jarlsd/internal/model"
	"github.com/seednode/jarlsd/internal/rules"
	"github.com/seednode/jarlsd/internal/session"
)

// Server wires the manager and session store into a set of httprouter
// handlers.
type Server struct {
	mgr  *manager.Manager
	sess *session.Store
	log  *zap.SugaredLogger
}

// New builds a Server.
func New(mgr *manager.Manager, sess *session.Store, log *zap.SugaredLogger) *Server {
	return &Server{mgr: mgr, sess: sess, log: log}
}

// Register mounts every §6 endpoint (plus the QR code convenience route
// registered separately by cmd/jarlsd) onto mux.
func (s *Server) Register(mux *httprouter.Router) {
	mux.POST("/api/games", s.createGame)
	mux.GET("/api/games", s.listGames)
	mux.GET("/api/games/stats", s.stats)
	mux.POST("/api/games/:id/join", s.joinGame)
	mux.POST("/api/games/:id/ai", s.auth(s.addAI))
	mux.GET("/api/games/:id", s.auth(s.getGame))
	mux.POST("/api/games/:id/start", s.auth(s.startGame))
	mux.GET("/api/games/:id/valid-moves/:pieceId", s.auth(s.validMoves))
}

func securityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	securityHeaders(w)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorCode is the closed set of {error: CODE} values spec §6 documents.
type errorCode string

const (
	codeUnauthorized errorCode = "UNAUTHORIZED"
	codeNotFound     errorCode = "NOT_FOUND"
	codeBadRequest   errorCode = "BAD_REQUEST"
	codeConflict     errorCode = "CONFLICT"
)

type errorBody struct {
	Error   errorCode `json:"error"`
	Message string    `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// ruleErrorStatus maps a rules/gamestate error to an HTTP status and
// code, per the endpoint table's per-error-kind mapping in §6.
func ruleErrorStatus(err error) (int, errorCode) {
	var kindErr *rules.Error
	if errors.As(err, &kindErr) {
		return http.StatusConflict, codeConflict
	}
	switch {
	case errors.Is(err, gamestate.ErrWrongPhase),
		errors.Is(err, gamestate.ErrNotHost),
		errors.Is(err, gamestate.ErrLobbyFull),
		errors.Is(err, gamestate.ErrNotEnoughPlayers),
		errors.Is(err, manager.ErrStaleMove):
		return http.StatusConflict, codeConflict
	case errors.Is(err, manager.ErrGameNotFound):
		return http.StatusNotFound, codeNotFound
	default:
		return http.StatusBadRequest, codeBadRequest
	}
}

// auth wraps a handler requiring a valid Bearer session token, per §6:
// "UNAUTHORIZED is the single auth-failure code".
func (s *Server) auth(next func(http.ResponseWriter, *http.Request, httprouter.Params, session.Data)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
			return
		}

		data, ok, err := s.sess.Validate(r.Context(), token)
		if err != nil {
			s.log.Errorw("session validate failed", "error", err)
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "session lookup failed")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid or expired session")
			return
		}
		if data.GameID != ps.ByName("id") {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "session does not belong to this game")
			return
		}

		_ = s.sess.Extend(r.Context(), token)
		next(w, r, ps, data)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

type createGameRequest struct {
	PlayerCount          int    `json:"playerCount"`
	BoardRadius          int    `json:"boardRadius"`
	WarriorCount         int    `json:"warriorCount"`
	Terrain              string `json:"terrain"`
	TurnTimerMs          *int   `json:"turnTimerMs"`
	StarveJarlWithoutWarriors bool `json:"starveJarlWithoutWarriors"`
}

type createGameResponse struct {
	GameID string `json:"gameId"`
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// An empty or absent body is valid — every field defaults in the
	// manager — so decode errors here are simply ignored.
	var req createGameRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	cfg := model.GameConfig{
		PlayerCount:          req.PlayerCount,
		BoardRadius:          req.BoardRadius,
		WarriorCount:         req.WarriorCount,
		Terrain:              model.Terrain(req.Terrain),
		TurnTimerMs:          req.TurnTimerMs,
		StarveJarlWithoutWarriors: req.StarveJarlWithoutWarriors,
	}

	gameID, err := s.mgr.Create(r.Context(), cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createGameResponse{GameID: gameID})
}

func (s *Server) listGames(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.mgr.ListGames())
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := s.mgr.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeBadRequest, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type joinGameRequest struct {
	PlayerName string `json:"playerName"`
}

type joinGameResponse struct {
	SessionToken string `json:"sessionToken"`
	PlayerID     string `json:"playerId"`
}

func (s *Server) joinGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("id")

	var req joinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerName == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "playerName is required")
		return
	}

	playerID, _, err := s.mgr.Join(r.Context(), gameID, req.PlayerName)
	if err != nil {
		status, code := ruleErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}

	token, err := s.sess.Create(r.Context(), session.Data{GameID: gameID, PlayerID: playerID, PlayerName: req.PlayerName})
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeBadRequest, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, joinGameResponse{SessionToken: token, PlayerID: playerID})
}

type addAIRequest struct {
	Type         string `json:"type"`
	Difficulty   string `json:"difficulty"`
	Model        string `json:"model"`
	CustomPrompt string `json:"customPrompt"`
}

type addAIResponse struct {
	AIPlayerID string         `json:"aiPlayerId"`
	AIConfig   model.AIConfig `json:"aiConfig"`
}

// addAI requires a Bearer session belonging to the game's host, per §6's
// endpoint table (`Bearer (host)`).
func (s *Server) addAI(w http.ResponseWriter, r *http.Request, ps httprouter.Params, auth session.Data) {
	gameID := ps.ByName("id")

	state, err := s.mgr.GetState(gameID)
	if err != nil {
		status, code := ruleErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	if len(state.Players) == 0 || state.Players[0].ID != auth.PlayerID {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "only the host may add an AI player")
		return
	}

	var req addAIRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Type == "" {
		req.Type = "heuristic"
	}
	aiCfg := model.AIConfig{Type: req.Type, Difficulty: req.Difficulty, Model: req.Model, CustomPrompt: req.CustomPrompt}

	playerID, err := s.mgr.AddAI(r.Context(), gameID, aiCfg)
	if err != nil {
		status, code := ruleErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, addAIResponse{AIPlayerID: playerID, AIConfig: aiCfg})
}

func (s *Server) getGame(w http.ResponseWriter, _ *http.Request, ps httprouter.Params, _ session.Data) {
	state, err := s.mgr.GetState(ps.ByName("id"))
	if err != nil {
		status, code := ruleErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) startGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params, auth session.Data) {
	state, err := s.mgr.Start(r.Context(), ps.ByName("id"), auth.PlayerID)
	if err != nil {
		status, code := ruleErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) validMoves(w http.ResponseWriter, _ *http.Request, ps httprouter.Params, _ session.Data) {
	moves, err := s.mgr.GetValidMoves(ps.ByName("id"), ps.ByName("pieceId"))
	if err != nil {
		status, code := ruleErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, moves)
}
