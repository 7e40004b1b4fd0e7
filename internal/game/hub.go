package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/obs"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/service"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("game command queue is full")
	ErrClosed    = errors.New("game hub closed")
)

// Conn is the part of a plugin WebSocket connection the writer needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type session struct {
	conn Conn
	id   uint64
}

// Hub is the game side of the bridge. Every frame for the plugin, commands
// and replies alike, goes through one queue drained by Run, so writes to
// the socket never overlap and the plugin can apply them on the server
// thread in order.
type Hub struct {
	logger  *zap.Logger
	metrics *obs.Metrics
	queue   chan []byte

	mu       sync.Mutex
	current  *session
	nextID   uint64
	attached chan struct{}

	online sync.Map // lowercase name -> display name
	done   chan struct{}
	once   sync.Once
}

var (
	_ service.GameActions  = (*Hub)(nil)
	_ service.GroupGrantor = (*Hub)(nil)
)

func NewHub(queueSize int, logger *zap.Logger, metrics *obs.Metrics) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:   logger,
		metrics:  metrics,
		queue:    make(chan []byte, queueSize),
		attached: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run writes queued frames to the attached plugin until ctx is done. Frames
// queued while no plugin is connected wait for the next connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		var frame []byte
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case frame = <-h.queue:
		}
		h.metrics.GameQueueDepth(len(h.queue))
		if !h.deliver(ctx, frame) {
			return
		}
	}
}

func (h *Hub) deliver(ctx context.Context, frame []byte) bool {
	for {
		s := h.session()
		if s == nil {
			select {
			case <-ctx.Done():
				return false
			case <-h.done:
				return false
			case <-h.attached:
				continue
			}
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Warn("write to game plugin failed", zap.Uint64("session", s.id), zap.Error(err))
			h.detach(s)
			continue
		}
		return true
	}
}

// Attach makes conn the plugin session, replacing any previous one. The
// returned func detaches it again.
func (h *Hub) Attach(conn Conn) func() {
	h.mu.Lock()
	old := h.current
	h.nextID++
	s := &session{conn: conn, id: h.nextID}
	h.current = s
	h.mu.Unlock()

	if old != nil {
		h.logger.Info("game plugin reconnected, dropping old session", zap.Uint64("session", old.id))
		_ = old.conn.Close()
	}
	select {
	case h.attached <- struct{}{}:
	default:
	}
	h.metrics.GameConnected(true)
	h.logger.Info("game plugin connected", zap.Uint64("session", s.id))
	return func() { h.detach(s) }
}

func (h *Hub) detach(s *session) {
	h.mu.Lock()
	if h.current != s {
		h.mu.Unlock()
		return
	}
	h.current = nil
	h.mu.Unlock()

	_ = s.conn.Close()
	h.clearPresence()
	h.metrics.GameConnected(false)
	h.logger.Info("game plugin disconnected", zap.Uint64("session", s.id))
}

func (h *Hub) session() *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Connected reports whether a plugin session is attached.
func (h *Hub) Connected() bool {
	return h.session() != nil
}

// Close stops Run and drops the current session.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)
		if s := h.session(); s != nil {
			h.detach(s)
		}
	})
}

// Send queues an outbound frame.
func (h *Hub) Send(eventType string, data any) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	event := model.WSEvent{Type: eventType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", eventType, err)
		}
		event.Data = raw
	}
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	select {
	case h.queue <- frame:
		h.metrics.GameQueueDepth(len(h.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// --- presence ---

func (h *Hub) SetOnline(names []string) {
	h.clearPresence()
	for _, n := range names {
		h.Joined(n)
	}
}

func (h *Hub) Joined(name string) {
	if name != "" {
		h.online.Store(strings.ToLower(name), name)
	}
}

func (h *Hub) Left(name string) {
	h.online.Delete(strings.ToLower(name))
}

func (h *Hub) IsOnline(name string) bool {
	_, ok := h.online.Load(strings.ToLower(name))
	return ok
}

// OnlineCount is the number of players the plugin last reported.
func (h *Hub) OnlineCount() int {
	n := 0
	h.online.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (h *Hub) clearPresence() {
	h.online.Range(func(k, _ any) bool {
		h.online.Delete(k)
		return true
	})
}

// --- service.GameActions ---

func (h *Hub) Ban(_ context.Context, name, reason string, duration time.Duration) error {
	return h.Send(model.WSBan, model.WSSanctionData{Name: name, Reason: reason, DurationSeconds: seconds(duration)})
}

func (h *Hub) Unban(_ context.Context, name string) error {
	return h.Send(model.WSUnban, model.WSSanctionData{Name: name})
}

func (h *Hub) Kick(_ context.Context, name, reason string) error {
	return h.Send(model.WSKickPlayer, model.WSSanctionData{Name: name, Reason: reason})
}

func (h *Hub) Mute(_ context.Context, name, reason string, duration time.Duration) error {
	return h.Send(model.WSMute, model.WSSanctionData{Name: name, Reason: reason, DurationSeconds: seconds(duration)})
}

func (h *Hub) Unmute(_ context.Context, name string) error {
	return h.Send(model.WSUnmute, model.WSSanctionData{Name: name})
}

func (h *Hub) SendMessage(_ context.Context, name, text string) error {
	return h.Send(model.WSMessage, model.WSMessageData{Name: name, Text: text})
}

// GrantGroup asks the plugin to put the player in a permission group.
func (h *Hub) GrantGroup(_ context.Context, minecraftID uuid.UUID, name, group string) error {
	return h.Send(model.WSGroupAdd, model.WSGroupData{MinecraftID: minecraftID.String(), Name: name, Group: group})
}

func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(d.Round(time.Second) / time.Second)
}
