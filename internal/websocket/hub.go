package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prolink-chat/internal/events"
	"prolink-chat/internal/metrics"
)

const (
	DefaultPingInterval    = 30 * time.Second
	DefaultMaxConnsPerUser = 10
)

// Handle is one live connection as seen by the hub.
type Handle interface {
	ID() string
	UserID() uuid.UUID
	// Enqueue hands data to the connection's writer without blocking. It reports
	// false when the buffer is full or the handle is closed.
	Enqueue(data []byte) bool
	// Ping sends a liveness ping.
	Ping() error
	// ResetAlive reports whether the peer answered since the last call and clears the flag.
	ResetAlive() bool
	Close()
}

// ConnectHook runs after a handle is registered. first is true for the user's first live handle.
type ConnectHook func(userID uuid.UUID, handleID string, first bool)

// DisconnectHook runs after a handle is removed. last is true when the user has no handles left.
type DisconnectHook func(userID uuid.UUID, handleID string, last bool)

type userEntry struct {
	mu      sync.Mutex
	handles []Handle
	// dead marks an entry that was emptied and removed from the map; registrations
	// that raced with the removal retry with a fresh entry.
	dead bool
}

type HubConfig struct {
	PingInterval    time.Duration
	MaxConnsPerUser int
	SendBuffer      int
}

// Hub is the registry of live connections keyed by user. Each user has its own lock,
// so pushes to one user never wait on connects or disconnects of another.
type Hub struct {
	users sync.Map // uuid.UUID -> *userEntry

	pingInterval time.Duration
	maxPerUser   int
	sendBuffer   int

	connections atomic.Int64
	online      atomic.Int64

	onConnect    []ConnectHook
	onDisconnect []DisconnectHook

	metrics *metrics.Collectors
	logger  *Logger
}

func NewHub(cfg HubConfig, m *metrics.Collectors, logger *Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.MaxConnsPerUser <= 0 {
		cfg.MaxConnsPerUser = DefaultMaxConnsPerUser
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	return &Hub{
		pingInterval: cfg.PingInterval,
		maxPerUser:   cfg.MaxConnsPerUser,
		sendBuffer:   cfg.SendBuffer,
		metrics:      m,
		logger:       logger,
	}
}

// OnConnect adds a hook. Hooks must be added before the hub serves connections.
func (h *Hub) OnConnect(fn ConnectHook) {
	h.onConnect = append(h.onConnect, fn)
}

// OnDisconnect adds a hook. Hooks must be added before the hub serves connections.
func (h *Hub) OnDisconnect(fn DisconnectHook) {
	h.onDisconnect = append(h.onDisconnect, fn)
}

// Register admits an authenticated handle. When the user is at the connection cap the
// oldest handle is closed to make room.
func (h *Hub) Register(handle Handle) {
	userID := handle.UserID()

	var (
		first   bool
		evicted Handle
	)
	for {
		v, _ := h.users.LoadOrStore(userID, &userEntry{})
		entry := v.(*userEntry)

		entry.mu.Lock()
		if entry.dead {
			entry.mu.Unlock()
			continue
		}
		first = len(entry.handles) == 0
		if len(entry.handles) >= h.maxPerUser {
			evicted = entry.handles[0]
			entry.handles = append(entry.handles[:0:0], entry.handles[1:]...)
		}
		entry.handles = append(entry.handles, handle)
		entry.mu.Unlock()
		break
	}

	if evicted != nil {
		evicted.Close()
		h.logger.Warn("max connections per user reached", userID, evicted.ID())
		for _, fn := range h.onDisconnect {
			fn(userID, evicted.ID(), false)
		}
	} else {
		h.connections.Add(1)
	}
	if first {
		h.online.Add(1)
	}
	h.updateGauges()

	h.logger.Info("client connected", userID, handle.ID())
	for _, fn := range h.onConnect {
		fn(userID, handle.ID(), first)
	}
}

// Unregister removes a handle. It reports false if the handle was not registered,
// which makes repeated calls harmless.
func (h *Hub) Unregister(handle Handle) bool {
	userID := handle.UserID()
	v, ok := h.users.Load(userID)
	if !ok {
		return false
	}
	entry := v.(*userEntry)

	entry.mu.Lock()
	idx := -1
	for i, existing := range entry.handles {
		if existing == handle {
			idx = i
			break
		}
	}
	if idx < 0 {
		entry.mu.Unlock()
		return false
	}
	entry.handles = append(entry.handles[:idx:idx], entry.handles[idx+1:]...)
	last := len(entry.handles) == 0
	if last {
		entry.dead = true
		h.users.CompareAndDelete(userID, entry)
	}
	entry.mu.Unlock()

	h.connections.Add(-1)
	if last {
		h.online.Add(-1)
	}
	h.updateGauges()

	h.logger.Info("client disconnected", userID, handle.ID())
	for _, fn := range h.onDisconnect {
		fn(userID, handle.ID(), last)
	}
	return true
}

func (h *Hub) handles(userID uuid.UUID) []Handle {
	v, ok := h.users.Load(userID)
	if !ok {
		return nil
	}
	entry := v.(*userEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return append([]Handle(nil), entry.handles...)
}

func (h *Hub) IsOnline(userID uuid.UUID) bool {
	return len(h.handles(userID)) > 0
}

// CheckOnline reports local presence. It never fails.
func (h *Hub) CheckOnline(_ context.Context, userID uuid.UUID) (bool, error) {
	return h.IsOnline(userID), nil
}

// Send pushes event to every live handle of userID. Delivery is best effort.
func (h *Hub) Send(userID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", userID, "", err, zap.String("type", event.Type))
		return
	}
	h.SendRaw(userID, data)
}

// SendRaw pushes an encoded frame and returns how many handles accepted it.
func (h *Hub) SendRaw(userID uuid.UUID, data []byte) int {
	handles := h.handles(userID)
	if len(handles) == 0 {
		h.metrics.Push(metrics.PushOffline)
		return 0
	}

	accepted := 0
	for _, handle := range handles {
		if handle.Enqueue(data) {
			accepted++
			h.metrics.Push(metrics.PushQueued)
			continue
		}
		h.metrics.Push(metrics.PushDropped)
		h.logger.Warn("client send buffer full", userID, handle.ID())
	}
	return accepted
}

// BroadcastExcept pushes event to each participant other than excluded.
func (h *Hub) BroadcastExcept(excluded uuid.UUID, participants []uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", excluded, "", err, zap.String("type", event.Type))
		return
	}
	seen := make(map[uuid.UUID]struct{}, len(participants))
	for _, id := range participants {
		if id == excluded {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		h.SendRaw(id, data)
	}
}

// OnlineUsers lists users with at least one local handle.
func (h *Hub) OnlineUsers() []uuid.UUID {
	var out []uuid.UUID
	h.users.Range(func(key, _ any) bool {
		out = append(out, key.(uuid.UUID))
		return true
	})
	return out
}

// ConnectionCount is the number of live local handles.
func (h *Hub) ConnectionCount() int64 {
	return h.connections.Load()
}

// OnlineCount is the number of users with at least one live local handle.
func (h *Hub) OnlineCount() int64 {
	return h.online.Load()
}

// Run pings every handle once per ping interval until ctx is done. A handle that did
// not answer the previous ping is closed and unregistered.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-ticker.C:
			h.Sweep()
		}
	}
}

// Sweep runs one liveness pass.
func (h *Hub) Sweep() {
	var all []Handle
	h.users.Range(func(key, value any) bool {
		all = append(all, h.handles(key.(uuid.UUID))...)
		return true
	})

	for _, handle := range all {
		if !handle.ResetAlive() {
			h.reap(handle, "liveness ping missed")
			continue
		}
		if err := handle.Ping(); err != nil {
			h.reap(handle, "ping failed")
		}
	}
}

func (h *Hub) reap(handle Handle, reason string) {
	if h.Unregister(handle) {
		h.metrics.Reaped()
		h.logger.Warn(reason, handle.UserID(), handle.ID())
	}
	handle.Close()
}

// Shutdown closes every handle.
func (h *Hub) Shutdown() {
	var all []Handle
	h.users.Range(func(key, value any) bool {
		all = append(all, h.handles(key.(uuid.UUID))...)
		return true
	})
	for _, handle := range all {
		h.Unregister(handle)
		handle.Close()
	}
}

func (h *Hub) updateGauges() {
	h.metrics.SetConnections(h.ConnectionCount())
	h.metrics.SetOnlineUsers(h.OnlineCount())
}
