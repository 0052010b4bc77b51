package stubserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/tutor-client/internal/identity"
	"github.com/ashureev/tutor-client/internal/protocol"
)

const writeTimeout = 10 * time.Second

// WebSocketHandler serves /ws/tutor/{userID}.
type WebSocketHandler struct {
	tutor        *Tutor
	sm           *SessionManager
	thinkingTime time.Duration
	logger       *slog.Logger
}

// NewWebSocketHandler creates a handler that answers frames after
// thinkingTime.
func NewWebSocketHandler(tutor *Tutor, sm *SessionManager, thinkingTime time.Duration, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{tutor: tutor, sm: sm, thinkingTime: thinkingTime, logger: logger}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	h.logger.Info("WebSocket connection request", "user_id", userID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, ws)
	defer h.sm.Unregister(userID, ws)

	h.readLoop(r.Context(), ws, userID)
	h.logger.Info("Tutor session ended", "user_id", userID)
}

// readLoop handles frames one at a time, so replies to a frame are always
// written before the next frame is read.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		replies := h.replies(userID, data)
		for _, reply := range replies {
			if _, ok := reply.(protocol.Typing); !ok && !h.think(ctx) {
				return
			}
			if err := h.write(ctx, ws, reply); err != nil {
				h.logger.Debug("Failed to send frame", "error", err, "user_id", userID, "kind", reply.Kind())
				return
			}
		}
	}
}

func (h *WebSocketHandler) replies(userID string, data []byte) []protocol.Inbound {
	frame, err := protocol.DecodeOutbound(data)
	if err != nil {
		h.logger.Warn("Rejected client frame", "error", err, "user_id", userID)
		return []protocol.Inbound{unsupported()}
	}
	h.logger.Debug("Client frame", "user_id", userID, "kind", frame.Kind())
	return h.tutor.Handle(userID, frame)
}

// think waits out the simulated generation time. It reports false if the
// connection went away meanwhile.
func (h *WebSocketHandler) think(ctx context.Context) bool {
	if h.thinkingTime <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(h.thinkingTime)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, frame protocol.Inbound) error {
	data, err := protocol.EncodeInbound(frame)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
