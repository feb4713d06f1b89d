package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/chia/internal/channel"
	"github.com/antoniostano/chia/internal/config"
	"github.com/antoniostano/chia/internal/counsel"
	"github.com/antoniostano/chia/internal/flows"
	"github.com/antoniostano/chia/internal/observability"
	"github.com/antoniostano/chia/internal/protocol"
	"github.com/antoniostano/chia/internal/session"
)

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	counsel  *counsel.Service
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func New(cfg config.Config, sessions *session.Manager, counselSvc *counsel.Service, metrics *observability.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		counsel:  counselSvc,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// usually omit Origin and are allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat/session", s.handleCreateSession)
	r.Post("/v1/chat/session/{id}/end", s.handleEndSession)
	r.Get("/v1/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"oracle_mode": s.cfg.OracleMode,
		"policy":      s.cfg.PolicyMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

type createSessionRequest struct {
	UserID   string `json:"user_id"`
	Language string `json:"language"`
}

type createSessionResponse struct {
	SessionID       string         `json:"session_id"`
	ChatID          string         `json:"chat_id"`
	UserID          string         `json:"user_id"`
	Language        string         `json:"language"`
	Status          session.Status `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	InactivityTTLMS int64          `json:"inactivity_ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = s.cfg.DefaultLanguage
	}

	sess := s.sessions.Create(req.UserID)
	_ = s.sessions.SetLanguage(sess.ID, req.Language)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:       sess.ID,
		ChatID:          sess.ChatID,
		UserID:          sess.UserID,
		Language:        req.Language,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	var sess *session.Session
	if sessionID == "" {
		sess = s.sessions.Create("anonymous")
		_ = s.sessions.SetLanguage(sess.ID, s.cfg.DefaultLanguage)
		sess.Language = s.cfg.DefaultLanguage
		s.metrics.SessionEvents.WithLabelValues("created").Inc()
	} else {
		var err error
		sess, err = s.sessions.Get(sessionID)
		if err != nil {
			respondError(w, http.StatusNotFound, "session_not_found", err.Error())
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan string, 256)
	outbound := make(chan protocol.ChatResponse, 256)
	adapter := channel.New(inbound, outbound, s.cfg.ReceiveTimeout, s.log)
	adapter.SetDropHook(func(reason string) {
		s.metrics.WSMessages.WithLabelValues("outbound", "dropped_"+reason).Inc()
	})
	adapter.Open()

	conv := s.counsel.NewConversation(flows.Session{
		ChatID:   sess.ChatID,
		UserID:   sess.UserID,
		Language: sess.Language,
	}, adapter)

	// Writer goroutine keeps websocket writes single-threaded.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(frame); err != nil {
					cancel()
					return
				}
				s.metrics.WSMessages.WithLabelValues("outbound", string(frame.Type)).Inc()
			}
		}
	}()

	// Exchange runner: each message pulled here opens one bounded
	// exchange; scripted flows pull their own follow-up replies from
	// the same inbound stream.
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		for {
			msg, err := adapter.Recv(ctx)
			if err != nil {
				return
			}
			started := time.Now()
			if err := conv.HandleMessage(ctx, msg); err != nil {
				if !errors.Is(err, context.Canceled) {
					s.log.Warn("exchange failed", "chat_id", sess.ChatID, "error", err)
				}
			}
			s.metrics.ObserveExchangeDuration(time.Since(started))
			_ = s.sessions.Touch(sess.ID)
			// A terminated exchange leaves the session open; the next
			// message starts a new one.
			if conv.Terminated() {
				s.metrics.SessionEvents.WithLabelValues("exchange_terminated").Inc()
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientFrame(data)
		if err != nil {
			// Unrecognized frame types are dropped without a reply;
			// only malformed envelopes get the apology.
			if errors.Is(err, protocol.ErrUnsupportedType) {
				s.metrics.WSMessages.WithLabelValues("inbound", "unsupported").Inc()
				continue
			}
			s.metrics.WSMessages.WithLabelValues("inbound", "invalid").Inc()
			adapter.SendFrame(protocol.NewChatResponse("error", "Sorry, I couldn't read that message."))
			continue
		}

		switch frame := parsed.(type) {
		case protocol.UserID:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeUserID)).Inc()
			_ = s.sessions.SetUserID(sess.ID, frame.Content)
			conv.SetUserID(frame.Content)
		case protocol.ChatID:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeChatID)).Inc()
			_ = s.sessions.SetChatID(sess.ID, frame.Content)
			conv.SetChatID(frame.Content)
		case protocol.TeachabilityFlag:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeTeachabilityFlag)).Inc()
			_ = s.sessions.SetMemoryEnabled(sess.ID, frame.Enabled)
			conv.SetMemoryEnabled(frame.Enabled)
		case protocol.Message:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeMessage)).Inc()
			select {
			case <-ctx.Done():
				break readLoop
			case inbound <- frame.Content:
			}
		}

		if adapter.Closed() {
			break
		}
	}

	adapter.Close()
	cancel()
	<-runnerDone
	<-writerDone

	archiveCtx, archiveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	conv.Archive(archiveCtx)
	archiveCancel()

	if _, err := s.sessions.End(sess.ID); err == nil {
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
