package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
)

const (
	ChallengePending   = "pending"
	ChallengeAccepted  = "accepted"
	ChallengeDeclined  = "declined"
	ChallengeExpired   = "expired"
	ChallengeCancelled = "cancelled"
)

// Challenge is one direct game invitation.
type Challenge struct {
	ID             string
	ChallengerID   string
	ChallengerName string
	TargetID       string
	ChallengerConn Conn
	TargetConn     Conn
	GameMode       string
	TimeControl    int
	Status         string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// ExpiredFunc is invoked once per expired challenge, outside the table lock.
type ExpiredFunc func(ch Challenge)

// ChallengeRegistry is the bounded table of direct invitations. At most one
// pending challenge may exist between any two players regardless of who sent
// it; pending challenges expire after a fixed window.
type ChallengeRegistry struct {
	logger   *slog.Logger
	capacity int
	expiry   time.Duration

	onExpired ExpiredFunc

	mu   sync.Mutex
	byID map[string]*Challenge
}

func NewChallengeRegistry(logger *slog.Logger, capacity int, expiry time.Duration) *ChallengeRegistry {
	return &ChallengeRegistry{
		logger:   logger.With("component", "challenges"),
		capacity: capacity,
		expiry:   expiry,
		byID:     make(map[string]*Challenge),
	}
}

// OnExpired sets the expiry callback. Must be set before Run starts.
func (that *ChallengeRegistry) OnExpired(fn ExpiredFunc) {
	that.onExpired = fn
}

// Create registers a new pending challenge and returns it with the
// server-assigned ID and expiry filled in.
func (that *ChallengeRegistry) Create(challengerID, challengerName, targetID string, challengerConn, targetConn Conn, gameMode string, timeControl int) (Challenge, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, existing := range that.byID {
		if existing.Status != ChallengePending {
			continue
		}
		samePair := (existing.ChallengerID == challengerID && existing.TargetID == targetID) ||
			(existing.ChallengerID == targetID && existing.TargetID == challengerID)
		if samePair {
			return Challenge{}, apperror.ErrChallengeExists
		}
	}

	if len(that.byID) >= that.capacity {
		return Challenge{}, apperror.ErrChallengeTableFull
	}

	now := time.Now()
	ch := &Challenge{
		ID:             uuid.New().String(),
		ChallengerID:   challengerID,
		ChallengerName: challengerName,
		TargetID:       targetID,
		ChallengerConn: challengerConn,
		TargetConn:     targetConn,
		GameMode:       gameMode,
		TimeControl:    timeControl,
		Status:         ChallengePending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(that.expiry),
	}

	that.byID[ch.ID] = ch

	return *ch, nil
}

// Get returns a copy of the challenge.
func (that *ChallengeRegistry) Get(id string) (Challenge, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	ch, ok := that.byID[id]
	if !ok {
		return Challenge{}, apperror.ErrChallengeNotFound
	}

	return *ch, nil
}

// Accept resolves a pending challenge in favor of starting a game.
func (that *ChallengeRegistry) Accept(id string) (Challenge, error) {
	return that.resolve(id, ChallengeAccepted)
}

// Decline resolves a pending challenge as refused by the target.
func (that *ChallengeRegistry) Decline(id string) (Challenge, error) {
	return that.resolve(id, ChallengeDeclined)
}

// Cancel resolves a pending challenge as withdrawn by the challenger.
func (that *ChallengeRegistry) Cancel(id string) (Challenge, error) {
	return that.resolve(id, ChallengeCancelled)
}

// resolve moves a challenge out of pending exactly once; any later attempt
// fails, which is what makes a late accept after expiry observable.
func (that *ChallengeRegistry) resolve(id, status string) (Challenge, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	ch, ok := that.byID[id]
	if !ok {
		return Challenge{}, apperror.ErrChallengeNotFound
	}

	if ch.Status != ChallengePending {
		return *ch, apperror.ErrChallengeNotPending
	}

	ch.Status = status

	return *ch, nil
}

// Remove deletes a resolved challenge from the table. Idempotent.
func (that *ChallengeRegistry) Remove(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.byID, id)
}

// SweepExpired transitions overdue pending challenges to expired and fires
// the callback for each, outside the lock.
func (that *ChallengeRegistry) SweepExpired(now time.Time) {
	var expired []Challenge

	that.mu.Lock()
	for _, ch := range that.byID {
		if ch.Status == ChallengePending && now.After(ch.ExpiresAt) {
			ch.Status = ChallengeExpired
			expired = append(expired, *ch)
		}
	}
	that.mu.Unlock()

	for _, ch := range expired {
		that.logger.Info("challenge expired", "challengeID", ch.ID, "challenger", ch.ChallengerID, "target", ch.TargetID)
		if that.onExpired != nil {
			that.onExpired(ch)
		}
		that.Remove(ch.ID)
	}
}

// Run sweeps expired challenges on a fixed interval until ctx is done.
func (that *ChallengeRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			that.SweepExpired(now)
		}
	}
}
