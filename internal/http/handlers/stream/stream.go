// Package stream реализует WebSocket-канал, по которому клиент получает
// решения route guard сразу после каждого изменения сессии: вход, выход,
// истечение токена или завершение онбординга в другой вкладке.
//
// Клиент отправляет {"path": "/profile"} при каждом переходе. Сервер
// отвечает решением для этого пути и дальше присылает новое решение,
// как только оно меняется.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"

	"github.com/magabrotheeeer/openconnect-gateway/internal/guard"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var errClosed = errors.New("stream closed")

// Resolver возвращает источник состояния сессии запроса.
type Resolver func(r *http.Request) (guard.StateSource, bool)

// Message — сообщение клиента.
type Message struct {
	Path string `json:"path"`
}

// Event — сообщение сервера.
type Event struct {
	Type     string          `json:"type"`
	Decision *guard.Decision `json:"decision,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Handler обслуживает WebSocket-подключения.
type Handler struct {
	log      *slog.Logger
	guard    *guard.Guard
	resolve  Resolver
	upgrader websocket.Upgrader
}

// New создает новый экземпляр Handler. Подключения принимаются только
// со страниц того же origin.
func New(log *slog.Logger, g *guard.Guard, resolve Resolver) *Handler {
	return &Handler{
		log:     log,
		guard:   g,
		resolve: resolve,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// conn сериализует запись и закрытие: решения приходят из горутины
// навигатора, ответы на переходы из цикла чтения.
type conn struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

func (c *conn) send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(ev)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.stream"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	src, ok := h.resolve(r)
	if !ok {
		log.Error("session scope missing")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		log.Info("websocket upgrade failed", sl.Err(err))
		return
	}
	c := &conn{ws: ws}
	defer c.close()
	nav := guard.NewNavigator(h.guard, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go nav.Run(ctx, func(d guard.Decision) {
		if err := c.send(Event{Type: "decision", Decision: &d}); err != nil {
			log.Debug("failed to push decision", sl.Err(err))
			cancel()
		}
	})
	go h.keepAlive(ctx, c, cancel)

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	log.Debug("stream opened")
	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Info("stream closed unexpectedly", sl.Err(err))
			}
			return
		}
		if msg.Path == "" || msg.Path[0] != '/' {
			if err := c.send(Event{Type: "error", Error: "path must start with /"}); err != nil {
				return
			}
			continue
		}
		d := nav.Navigate(msg.Path)
		if err := c.send(Event{Type: "decision", Decision: &d}); err != nil {
			return
		}
	}
}

func (h *Handler) keepAlive(ctx context.Context, c *conn, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				cancel()
				return
			}
		}
	}
}
