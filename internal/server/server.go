package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/game"
	"github.com/rocketscienceinc/battleship-backend/internal/protocol"
	"github.com/rocketscienceinc/battleship-backend/internal/registry"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
	"github.com/rocketscienceinc/battleship-backend/internal/service"
)

var (
	ErrTextFrame        = errors.New("text frames are not part of the protocol")
	ErrNotAuthenticated = errors.New("not authenticated")

	// errCloseRequested unwinds the read loop after a clean logout.
	errCloseRequested = errors.New("close requested")
)

// Options carries the tunables of the session handler.
type Options struct {
	HandshakeTimeout  time.Duration
	IdleTimeout       time.Duration
	WriteTimeout      time.Duration
	MessagesPerSecond float64
	MessageBurst      int
}

type handlerFunc func(ctx context.Context, client *client, msg *protocol.Message) error

// Server accepts raw TCP connections, upgrades them to websocket and runs
// one session handler goroutine per connection.
type Server struct {
	logger  *slog.Logger
	options Options

	auth        *service.AuthService
	users       repository.UserRepository
	chats       repository.ChatRepository
	connections *registry.ConnectionRegistry
	queue       *registry.MatchQueue
	challenges  *registry.ChallengeRegistry
	games       *game.Store

	handlers map[protocol.MessageType]handlerFunc
}

// client is the per-connection session state.
type client struct {
	conn    *protocol.Conn
	user    *entity.User
	token   string
	limiter *rate.Limiter
}

func New(
	logger *slog.Logger,
	options Options,
	auth *service.AuthService,
	users repository.UserRepository,
	chats repository.ChatRepository,
	connections *registry.ConnectionRegistry,
	queue *registry.MatchQueue,
	challenges *registry.ChallengeRegistry,
	games *game.Store,
) *Server {
	server := &Server{
		logger:      logger.With("component", "server"),
		options:     options,
		auth:        auth,
		users:       users,
		chats:       chats,
		connections: connections,
		queue:       queue,
		challenges:  challenges,
		games:       games,
	}

	server.handlers = map[protocol.MessageType]handlerFunc{
		protocol.MsgRegister:         server.handleRegister,
		protocol.MsgLogin:            server.handleLogin,
		protocol.MsgAuthToken:        server.handleAuthToken,
		protocol.MsgLogout:           server.handleLogout,
		protocol.MsgPing:             server.handlePing,
		protocol.MsgJoinQueue:        server.handleJoinQueue,
		protocol.MsgLeaveQueue:       server.handleLeaveQueue,
		protocol.MsgPlaceShip:        server.handlePlaceShip,
		protocol.MsgPlayerReady:      server.handlePlayerReady,
		protocol.MsgPlayerMove:       server.handlePlayerMove,
		protocol.MsgChat:             server.handleChat,
		protocol.MsgGetOnlinePlayers: server.handleGetOnlinePlayers,
		protocol.MsgChallengePlayer:  server.handleChallengePlayer,
		protocol.MsgChallengeAccept:  server.handleChallengeAccept,
		protocol.MsgChallengeDecline: server.handleChallengeDecline,
		protocol.MsgChallengeCancel:  server.handleChallengeCancel,
	}

	queue.OnMatch(server.onMatch)
	challenges.OnExpired(server.onChallengeExpired)
	games.OnTurnWarning(server.onTurnWarning)
	games.OnTimeout(server.onTimeout)

	return server
}

// preAuthAllowed - message types a connection may send before it has an
// identity.
func preAuthAllowed(msgType protocol.MessageType) bool {
	switch msgType {
	case protocol.MsgRegister, protocol.MsgLogin, protocol.MsgAuthToken, protocol.MsgPing:
		return true
	default:
		return false
	}
}

// Start listens on the port and serves connections until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	that.logger.Info("listening", "port", port)

	for {
		sock, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		go that.handleConnection(ctx, sock)
	}
}

// handleConnection runs the whole lifetime of one client connection.
func (that *Server) handleConnection(ctx context.Context, sock net.Conn) {
	log := that.logger.With("method", "handleConnection", "remote", sock.RemoteAddr().String())

	conn := protocol.NewConn(sock)
	if that.options.WriteTimeout > 0 {
		conn.SetWriteTimeout(that.options.WriteTimeout)
	}

	defer func() {
		that.connections.Unregister(ctx, conn)
		_ = conn.Close()
	}()

	// a peer that never sends the upgrade request must not pin the goroutine
	if that.options.HandshakeTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(that.options.HandshakeTimeout)); err != nil {
			log.Debug("failed to set handshake deadline", "error", err)
			return
		}
	}

	if err := conn.Handshake(); err != nil {
		log.Debug("handshake failed", "error", err)
		return
	}

	log.Info("connection established")

	client := &client{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(that.options.MessagesPerSecond), that.options.MessageBurst),
	}

	if err := that.serve(ctx, client); err != nil {
		switch {
		case errors.Is(err, protocol.ErrPeerClosed), errors.Is(err, errCloseRequested):
			log.Info("connection closed")
		default:
			log.Error("connection failed", "error", err)
		}
	}
}

// serve is the read loop: one frame in, at most one handler out.
func (that *Server) serve(ctx context.Context, client *client) error {
	for {
		if err := client.conn.SetReadDeadline(time.Now().Add(that.options.IdleTimeout)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		frame, err := client.conn.RecvFrame()
		if err != nil {
			return err
		}

		switch frame.Opcode {
		case protocol.OpcodePing:
			if err := client.conn.SendPong(frame.Payload); err != nil {
				return err
			}
			continue

		case protocol.OpcodePong:
			continue

		case protocol.OpcodeClose:
			_ = client.conn.SendClose()
			return protocol.ErrPeerClosed

		case protocol.OpcodeText:
			return ErrTextFrame

		case protocol.OpcodeBinary:
			// fall through to message handling

		default:
			continue
		}

		if !client.limiter.Allow() {
			that.sendFailure(client, "rate limit exceeded")
			continue
		}

		msg, err := protocol.DecodeMessage(frame.Payload)
		if err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}

		if err := that.dispatch(ctx, client, msg); err != nil {
			return err
		}
	}
}

func (that *Server) dispatch(ctx context.Context, client *client, msg *protocol.Message) error {
	if client.user == nil && !preAuthAllowed(msg.Type) {
		that.sendFailure(client, ErrNotAuthenticated.Error())
		return nil
	}

	handler, ok := that.handlers[msg.Type]
	if !ok {
		that.sendFailure(client, fmt.Sprintf("unsupported message type %d", msg.Type))
		return nil
	}

	return handler(ctx, client, msg)
}

// sendFailure reports a rejected operation back to the client. Send errors
// here are not fatal: the read loop notices a dead connection on its own.
func (that *Server) sendFailure(client *client, reason string) {
	err := client.conn.SendMessage(&protocol.Message{
		Type:    protocol.MsgAuthFailed,
		Payload: protocol.AuthFailedPayload{Reason: reason},
	})
	if err != nil {
		that.logger.Debug("failed to send failure message", "error", err)
	}
}

// send pushes a message to a registry connection, logging send errors.
func (that *Server) send(conn registry.Conn, msg *protocol.Message) {
	if conn == nil {
		return
	}

	if err := conn.SendMessage(msg); err != nil {
		that.logger.Debug("failed to send message", "type", msg.Type, "error", err)
	}
}

// sendToUser pushes a message to a user's live connection, if any.
func (that *Server) sendToUser(userID string, msg *protocol.Message) {
	if conn, ok := that.connections.Lookup(userID); ok {
		that.send(conn, msg)
	}
}

// onMatch starts a game for a matched pair and tells both players. The
// notification goes through the connection registry so a player who
// reconnected while waiting is reached on their current socket.
func (that *Server) onMatch(a, b registry.QueueEntry) {
	ctx := context.Background()

	session, err := that.games.CreateSession(ctx, a.UserID, a.Username, b.UserID, b.Username)
	if err != nil {
		that.logger.Error("failed to create session for matched pair", "player1", a.UserID, "player2", b.UserID, "error", err)
		return
	}

	that.sendToUser(a.UserID, startGameMessage(session, b.Username))
	that.sendToUser(b.UserID, startGameMessage(session, a.Username))
}

func startGameMessage(session *entity.GameSession, opponentName string) *protocol.Message {
	snapshot := session.Snapshot()

	turnID := snapshot.CurrentTurn
	if turnID == "" {
		turnID = snapshot.Player1ID
	}

	return &protocol.Message{
		Type: protocol.MsgStartGame,
		Payload: protocol.StartGamePayload{
			Opponent:    opponentName,
			GameID:      snapshot.ID,
			CurrentTurn: snapshot.PlayerName(turnID),
		},
	}
}

// onChallengeExpired tells both sides their invitation lapsed.
func (that *Server) onChallengeExpired(ch registry.Challenge) {
	msg := &protocol.Message{
		Type:    protocol.MsgChallengeExpired,
		Payload: protocol.ChallengeIDPayload{ChallengeID: ch.ID},
	}

	that.send(ch.ChallengerConn, msg)
	that.send(ch.TargetConn, msg)
}

// onTurnWarning nudges the player whose clock is running low.
func (that *Server) onTurnWarning(session *entity.GameSession, secondsRemaining int) {
	snapshot := session.Snapshot()

	that.sendToUser(snapshot.CurrentTurn, &protocol.Message{
		Type:    protocol.MsgTurnWarning,
		Payload: protocol.TurnWarningPayload{SecondsRemaining: int32(secondsRemaining)},
	})
}

// onTimeout tells both players the game was decided by the clock.
func (that *Server) onTimeout(session *entity.GameSession, winnerID, loserID string) {
	msg := &protocol.Message{
		Type: protocol.MsgGameTimeout,
		Payload: protocol.GameTimeoutPayload{
			WinnerID: winnerID,
			LoserID:  loserID,
			Reason:   entity.FinishReasonTimeout,
		},
	}

	that.sendToUser(winnerID, msg)
	that.sendToUser(loserID, msg)
}
