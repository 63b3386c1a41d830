package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/protocol"
)

// Conn is the slice of the transport connection the registries need: enough
// to push a message or drop the peer, nothing more.
type Conn interface {
	SendMessage(msg *protocol.Message) error
	Close() error
}

// StatusUpdater reflects presence changes into durable user state.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, userID, status string) error
}

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// ConnectionRegistry maps authenticated user IDs to their live connections.
// One connection per user: a second login supersedes and closes the first.
type ConnectionRegistry struct {
	logger *slog.Logger
	status StatusUpdater
	queue  *MatchQueue

	mu       sync.RWMutex
	capacity int
	byUser   map[string]Conn
	byConn   map[Conn]string
}

func NewConnectionRegistry(logger *slog.Logger, status StatusUpdater, queue *MatchQueue, capacity int) *ConnectionRegistry {
	return &ConnectionRegistry{
		logger:   logger.With("component", "connections"),
		status:   status,
		queue:    queue,
		capacity: capacity,
		byUser:   make(map[string]Conn),
		byConn:   make(map[Conn]string),
	}
}

// Register binds a connection to a user, superseding any previous connection
// of the same user. The superseded connection is closed so its read loop
// unwinds; its deferred unregister must not evict the new binding.
func (that *ConnectionRegistry) Register(ctx context.Context, userID string, conn Conn) error {
	that.mu.Lock()

	old, hadOld := that.byUser[userID]
	if !hadOld && len(that.byUser) >= that.capacity {
		that.mu.Unlock()
		return apperror.ErrRegistryFull
	}

	if hadOld {
		delete(that.byConn, old)
	}

	that.byUser[userID] = conn
	that.byConn[conn] = userID
	that.mu.Unlock()

	if hadOld && old != conn {
		if err := old.Close(); err != nil {
			that.logger.Debug("failed to close superseded connection", "userID", userID, "error", err)
		}
	}

	if err := that.status.UpdateStatus(ctx, userID, statusOnline); err != nil {
		that.logger.Error("failed to mark user online", "userID", userID, "error", err)
	}

	return nil
}

// Lookup returns the live connection of a user, if any.
func (that *ConnectionRegistry) Lookup(userID string) (Conn, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	conn, ok := that.byUser[userID]

	return conn, ok
}

// Identity returns the user bound to a connection, if that binding is still
// current. A superseded connection has no identity.
func (that *ConnectionRegistry) Identity(conn Conn) (string, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	userID, ok := that.byConn[conn]

	return userID, ok
}

// Unregister removes the binding if this connection is still the current one
// for the user, dequeues the user from matchmaking, and marks them offline.
// Safe to call more than once and safe for superseded connections.
func (that *ConnectionRegistry) Unregister(ctx context.Context, conn Conn) {
	that.mu.Lock()

	userID, ok := that.byConn[conn]
	if !ok {
		that.mu.Unlock()
		return
	}

	delete(that.byConn, conn)
	if that.byUser[userID] == conn {
		delete(that.byUser, userID)
	}
	that.mu.Unlock()

	that.queue.Dequeue(userID)

	if err := that.status.UpdateStatus(ctx, userID, statusOffline); err != nil {
		that.logger.Error("failed to mark user offline", "userID", userID, "error", err)
	}
}

// Online returns the IDs of all currently connected users.
func (that *ConnectionRegistry) Online() []string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	ids := make([]string, 0, len(that.byUser))
	for userID := range that.byUser {
		ids = append(ids, userID)
	}

	return ids
}
