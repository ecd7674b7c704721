package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

const (
	defaultSendBuffer   = 256
	defaultWriteTimeout = 10 * time.Second
	maxRequestSize      = 64 << 10
)

var errSubscriberClosed = errors.New("subscriber closed")

// wsSubscriber queues messages for one websocket connection. Deliver never
// blocks; a full queue closes the subscriber.
type wsSubscriber struct {
	id string

	mu     sync.Mutex
	closed bool
	send   chan *model.Message
}

func newWSSubscriber(buffer int) *wsSubscriber {
	return &wsSubscriber{
		id:   uuid.NewString(),
		send: make(chan *model.Message, buffer),
	}
}

func (s *wsSubscriber) ID() string { return s.id }

func (s *wsSubscriber) Deliver(msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSubscriberClosed
	}
	select {
	case s.send <- msg:
		return nil
	default:
		s.closeLocked()
		return goerr.New("subscriber queue full", goerr.V("subscriber", s.id))
	}
}

func (s *wsSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *wsSubscriber) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// streamHandler serves GET /ws
type streamHandler struct {
	tracker      interfaces.TrackerUseCase
	dispatcher   interfaces.DispatcherUseCase
	sendBuffer   int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newStreamHandler(
	tracker interfaces.TrackerUseCase,
	dispatcher interfaces.DispatcherUseCase,
	sendBuffer int,
	writeTimeout time.Duration,
) *streamHandler {
	return &streamHandler{
		tracker:      tracker,
		dispatcher:   dispatcher,
		sendBuffer:   sendBuffer,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin,
		},
		conns: make(map[string]*websocket.Conn),
	}
}

// checkOrigin accepts non-browser clients and pages served from loopback
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Handle upgrades the connection and streams dispatcher messages until the
// client disconnects or falls behind
func (h *streamHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		ctxlog.From(r.Context()).Warn("Websocket upgrade failed", "error", err)
		return
	}

	sub := newWSSubscriber(h.sendBuffer)
	logger := ctxlog.From(r.Context()).With("subscriber", sub.ID())
	ctx := ctxlog.With(r.Context(), logger)

	h.track(sub.ID(), conn)
	h.dispatcher.Subscribe(sub)
	logger.Info("Subscriber connected", "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go h.writeLoop(ctx, conn, sub, writerDone)

	h.readLoop(ctx, conn, sub)

	h.dispatcher.Unsubscribe(sub.ID())
	sub.close()
	<-writerDone
	h.untrack(sub.ID())
	logger.Info("Subscriber disconnected")
}

func (h *streamHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *wsSubscriber, done chan struct{}) {
	defer close(done)
	defer conn.Close()
	logger := ctxlog.From(ctx)

	for msg := range sub.send {
		if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			logger.Warn("Failed to set write deadline", "error", err)
			return
		}
		if err := conn.WriteJSON(msg); err != nil {
			logger.Warn("Failed to write message", "type", msg.Type, "error", err)
			return
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (h *streamHandler) readLoop(ctx context.Context, conn *websocket.Conn, sub *wsSubscriber) {
	logger := ctxlog.From(ctx)
	conn.SetReadLimit(maxRequestSize)

	for {
		var req model.ClientRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Subscriber read failed", "error", err)
			}
			return
		}
		h.handleRequest(ctx, sub, &req)
	}
}

func (h *streamHandler) handleRequest(ctx context.Context, sub *wsSubscriber, req *model.ClientRequest) {
	logger := ctxlog.From(ctx)
	logger.Debug("Subscriber request", "type", req.Type, "path", req.Path)

	switch req.Type {
	case model.RequestBaseline:
		if err := h.tracker.RequestBaseline(ctx, sub.ID()); err != nil {
			if !errors.Is(err, types.ErrNoActiveRepository) {
				logger.Warn("Failed to send baseline", "error", err)
				return
			}
			h.reply(ctx, sub, model.SeverityInfo, "No repository selected")
		}
		// degraded-channel notices may predate this subscriber
		if err := h.dispatcher.SendNotices(ctx, sub.ID()); err != nil {
			logger.Warn("Failed to send notices", "error", err)
		}

	case model.RequestSelectRepository:
		if req.Path == "" {
			h.reply(ctx, sub, model.SeverityWarning, "select-repository requires a path")
			return
		}
		// failures are broadcast as advisories by the tracker
		if err := h.tracker.SelectRepository(ctx, req.Path); err != nil {
			logger.Warn("Repository selection failed", "path", req.Path, "error", err)
		}

	default:
		h.reply(ctx, sub, model.SeverityWarning, "Unsupported request: "+string(req.Type))
	}
}

// reply sends an advisory to one subscriber only
func (h *streamHandler) reply(ctx context.Context, sub *wsSubscriber, severity model.Severity, message string) {
	err := h.dispatcher.SendTo(ctx, sub.ID(), &model.Message{
		Type:     model.MessageTypeAdvisory,
		Advisory: &model.Advisory{Severity: severity, Message: message},
	})
	if err != nil {
		ctxlog.From(ctx).Warn("Failed to reply to subscriber", "error", err)
	}
}

func (h *streamHandler) track(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = conn
}

func (h *streamHandler) untrack(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// closeAll drops every open connection; hijacked connections are not closed
// by http.Server.Shutdown
func (h *streamHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		_ = conn.Close()
	}
}
