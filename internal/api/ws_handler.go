package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dashEditor/internal/auth"
	"dashEditor/internal/notify"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
	wsAuthTimeout  = 10 * time.Second
)

// WsHandler 负责处理 WebSocket 鉴权与变更通知转发。
type WsHandler struct {
	source         notify.Source
	authService    *auth.AuthService
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

// NewWsHandler 构造 WebSocket 处理器。authService 为 nil 时连接无需鉴权。
func NewWsHandler(source notify.Source, authService *auth.AuthService, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &WsHandler{
		source:         source,
		authService:    authService,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(h.allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleConnection 负责升级连接并启动读写循环。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	authedCh := make(chan struct{}, 1)
	errCh := make(chan error, 2)

	go h.readLoop(ctx, conn, authedCh, errCh, cancel, log)

	if h.authService != nil {
		timer := time.NewTimer(wsAuthTimeout)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				log.Warn("websocket authentication failed", slog.Any("error", err))
			}
			return
		case <-timer.C:
			writeClose(conn, websocket.ClosePolicyViolation, "auth timeout")
			log.Warn("websocket authentication timed out")
			return
		case <-authedCh:
		}
	}

	events, err := h.source.Subscribe(ctx)
	if err != nil {
		writeClose(conn, websocket.CloseInternalServerErr, "subscribe failed")
		log.Error("subscribe to change events failed", slog.Any("error", err))
		return
	}
	go h.forwardLoop(ctx, conn, events, errCh, cancel, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Info("websocket connection closed", slog.Any("error", err))
		} else {
			log.Info("websocket connection closed")
		}
	}
}

func (h *WsHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	authedCh chan<- struct{},
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	authenticated := h.authService == nil

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}

		if !authenticated {
			var authMsg wsAuthMessage
			if err := json.Unmarshal(message, &authMsg); err != nil {
				writeClose(conn, websocket.ClosePolicyViolation, "invalid auth payload")
				errCh <- fmt.Errorf("decode auth payload: %w", err)
				cancel()
				return
			}
			if authMsg.Type != "auth" || authMsg.Token == "" {
				writeClose(conn, websocket.ClosePolicyViolation, "auth required")
				errCh <- fmt.Errorf("invalid auth message")
				cancel()
				return
			}
			if _, err := h.authService.ValidateToken(authMsg.Token); err != nil {
				writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
				errCh <- fmt.Errorf("validate token: %w", err)
				cancel()
				return
			}

			authenticated = true
			authedCh <- struct{}{}
			log.Info("websocket authenticated")
			continue
		}

		// 目前无需处理额外消息，保持循环以检测客户端断开。
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(wsWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) forwardLoop(
	ctx context.Context,
	conn *websocket.Conn,
	events <-chan notify.Event,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				errCh <- fmt.Errorf("event stream closed")
				cancel()
				return
			}

			log.Debug("forwarding change event to client",
				slog.String("type", string(event.Type)),
				slog.Uint64("revision", event.Revision),
			)
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
