package registry

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/battleship-backend/internal/protocol"
)

// test doubles shared by the registry tests

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConn struct {
	mu     sync.Mutex
	sent   []*protocol.Message
	closed bool
}

func (that *fakeConn) SendMessage(msg *protocol.Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.sent = append(that.sent, msg)
	return nil
}

func (that *fakeConn) Close() error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.closed = true
	return nil
}

func (that *fakeConn) isClosed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.closed
}

type fakeStatus struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{statuses: make(map[string]string)}
}

func (that *fakeStatus) UpdateStatus(_ context.Context, userID, status string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.statuses[userID] = status
	return nil
}

func (that *fakeStatus) statusOf(userID string) string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.statuses[userID]
}
