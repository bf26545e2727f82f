package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/duelarena/backend/internal/history"
	"github.com/duelarena/backend/internal/hub"
	"github.com/duelarena/backend/internal/match"
	"github.com/duelarena/backend/internal/session"
)

// rulesBody echoes the server's match rules to a creating client so every
// peer runtime is configured identically.
type rulesBody struct {
	RoundDurationMS int64 `json:"roundDurationMs"`
	RoundsToWin     int   `json:"roundsToWin"`
	CountdownMS     int64 `json:"countdownMs"`
	RestDelayMS     int64 `json:"restDelayMs"`
	SpawnTimeoutMS  int64 `json:"spawnTimeoutMs"`
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateSession(h *hub.Hub, rules match.Rules, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan *session.Session, 1)
			h.Inbox() <- hub.GetSession{Code: c, Reply: reply}
			if <-reply == nil {
				code = c
				break
			}
			logger.Warn("session code collision, regenerating", zap.String("code", c))
		}

		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.EnsureSession{Code: code, Reply: reply}
		if <-reply == nil {
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code  string    `json:"code"`
			Rules rulesBody `json:"rules"`
		}{
			Code: code,
			Rules: rulesBody{
				RoundDurationMS: rules.RoundDuration.Milliseconds(),
				RoundsToWin:     rules.RoundsToWin,
				CountdownMS:     rules.Countdown.Milliseconds(),
				RestDelayMS:     rules.RestDelay.Milliseconds(),
				SpawnTimeoutMS:  rules.SpawnTimeout.Milliseconds(),
			},
		})
	}
}

// GetSession returns a spectator snapshot: membership, authority, and the
// replicated properties, without joining.
func GetSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.GetSession{Code: code, Reply: reply}
		sess := <-reply
		if sess == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		viewReply := make(chan session.View, 1)
		sess.Inbox() <- session.GetView{Reply: viewReply}
		select {
		case v := <-viewReply:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(v)
		case <-time.After(2 * time.Second):
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		}
	}
}

// ListMatches serves archived results, newest first.
func ListMatches(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "match history disabled", http.StatusNotImplemented)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		matches, err := store.Recent(r.Context(), limit)
		if err != nil {
			http.Error(w, "failed to load matches", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(matches)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
