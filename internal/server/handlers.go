package server

import (
	"context"
	"errors"
	"time"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/protocol"
	"github.com/rocketscienceinc/battleship-backend/internal/registry"
)

const defaultGameMode = "ranked"

func (that *Server) handleRegister(ctx context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.AuthRequestPayload)

	user, token, err := that.auth.Register(ctx, payload.Username, payload.Password)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	return that.completeAuth(ctx, client, user, token)
}

func (that *Server) handleLogin(ctx context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.AuthRequestPayload)

	user, token, err := that.auth.Login(ctx, payload.Username, payload.Password)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	return that.completeAuth(ctx, client, user, token)
}

func (that *Server) handleAuthToken(ctx context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.TokenPayload)

	user, err := that.auth.VerifyToken(ctx, payload.Token)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	return that.completeAuth(ctx, client, user, payload.Token)
}

// completeAuth binds the authenticated user to the connection, confirms the
// login and routes a reconnecting player back into their running game.
func (that *Server) completeAuth(ctx context.Context, client *client, user *entity.User, token string) error {
	if err := that.connections.Register(ctx, user.ID, client.conn); err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	client.user = user
	client.token = token

	err := client.conn.SendMessage(&protocol.Message{
		Type:    protocol.MsgAuthSuccess,
		Token:   token,
		Payload: protocol.AuthSuccessPayload{Username: user.Username},
	})
	if err != nil {
		return err
	}

	session, err := that.games.FindByPlayer(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, apperror.ErrGameNotFound) {
			that.logger.Error("failed to look up running game", "userID", user.ID, "error", err)
		}
		return nil
	}

	opponentName := session.PlayerName(session.OpponentOf(user.ID))

	return client.conn.SendMessage(startGameMessage(session, opponentName))
}

func (that *Server) handleLogout(ctx context.Context, client *client, _ *protocol.Message) error {
	if err := that.auth.Logout(ctx, client.token); err != nil {
		that.logger.Error("failed to drop session token", "userID", client.user.ID, "error", err)
	}

	that.connections.Unregister(ctx, client.conn)
	_ = client.conn.SendClose()

	return errCloseRequested
}

func (that *Server) handlePing(_ context.Context, client *client, _ *protocol.Message) error {
	return client.conn.SendMessage(&protocol.Message{Type: protocol.MsgPong})
}

func (that *Server) handleJoinQueue(_ context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.JoinQueuePayload)

	gameMode := payload.GameMode
	if gameMode == "" {
		gameMode = defaultGameMode
	}

	err := that.queue.Enqueue(registry.QueueEntry{
		UserID:   client.user.ID,
		Username: client.user.Username,
		Rating:   client.user.Rating,
		GameMode: gameMode,
	})
	if err != nil {
		that.sendFailure(client, err.Error())
	}

	return nil
}

func (that *Server) handleLeaveQueue(_ context.Context, client *client, _ *protocol.Message) error {
	that.queue.Dequeue(client.user.ID)
	return nil
}

func (that *Server) handlePlaceShip(ctx context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.PlaceShipPayload)

	session, err := that.games.FindByPlayer(ctx, client.user.ID)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	started, session, err := that.games.PlaceShip(ctx, session.ID, client.user.ID,
		entity.ShipType(payload.ShipType), int(payload.Row), int(payload.Col), payload.Horizontal)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	// placement confirmation is the echoed request
	if err := client.conn.SendMessage(msg); err != nil {
		return err
	}

	if started {
		that.notifyGameStarted(session)
	}

	return nil
}

func (that *Server) handlePlayerReady(ctx context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.PlayerReadyPayload)

	gameID := payload.GameID
	if gameID == "" {
		session, err := that.games.FindByPlayer(ctx, client.user.ID)
		if err != nil {
			that.sendFailure(client, err.Error())
			return nil
		}
		gameID = session.ID
	}

	started, session, err := that.games.SubmitBoard(ctx, gameID, client.user.ID, payload.Grid)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	if err := client.conn.SendMessage(msg); err != nil {
		return err
	}

	if started {
		that.notifyGameStarted(session)
	}

	return nil
}

// notifyGameStarted tells both players the battle phase began.
func (that *Server) notifyGameStarted(session *entity.GameSession) {
	snapshot := session.Snapshot()

	that.sendToUser(snapshot.Player1ID, startGameMessage(session, snapshot.Player2Name))
	that.sendToUser(snapshot.Player2ID, startGameMessage(session, snapshot.Player1Name))
}

func (that *Server) handlePlayerMove(ctx context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.PlayerMovePayload)

	result, session, err := that.games.ProcessShot(ctx, payload.GameID, client.user.ID, int(payload.Row), int(payload.Col))

	if errors.Is(err, apperror.ErrInvalidShot) {
		// a repeated or out-of-range shot is answered with a no-op result
		// to the shooter only; the turn does not change hands
		return client.conn.SendMessage(&protocol.Message{
			Type:    protocol.MsgMoveResult,
			Payload: protocol.MoveResultPayload{Row: payload.Row, Col: payload.Col, IsYourShot: true},
		})
	}

	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	shooterResult := protocol.MoveResultPayload{
		Row:        int32(result.Row),
		Col:        int32(result.Col),
		IsHit:      result.IsHit,
		IsSunk:     result.IsSunk,
		SunkType:   int32(result.SunkType),
		GameOver:   result.GameOver,
		IsYourShot: true,
	}

	opponentResult := shooterResult
	opponentResult.IsYourShot = false

	opponentID := session.OpponentOf(client.user.ID)

	if err := client.conn.SendMessage(&protocol.Message{Type: protocol.MsgMoveResult, Payload: shooterResult}); err != nil {
		return err
	}

	that.sendToUser(opponentID, &protocol.Message{Type: protocol.MsgMoveResult, Payload: opponentResult})

	if result.GameOver {
		gameOver := &protocol.Message{
			Type: protocol.MsgGameOver,
			Payload: protocol.GameOverPayload{
				WinnerID: client.user.ID,
				Reason:   entity.FinishReasonAllShipsSunk,
			},
		}

		that.sendToUser(client.user.ID, gameOver)
		that.sendToUser(opponentID, gameOver)
	}

	return nil
}

func (that *Server) handleChat(ctx context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.ChatPayload)

	session, err := that.games.Get(ctx, payload.GameID)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	if !session.HasPlayer(client.user.ID) {
		that.sendFailure(client, apperror.ErrNotYourGame.Error())
		return nil
	}

	chatMsg := &entity.ChatMessage{
		GameID:   session.ID,
		UserID:   client.user.ID,
		Username: client.user.Username,
		Text:     payload.Text,
		SentAt:   time.Now(),
	}

	if err := that.chats.Append(ctx, chatMsg); err != nil {
		that.logger.Error("failed to persist chat message", "gameID", session.ID, "error", err)
	}

	broadcast := &protocol.Message{
		Type: protocol.MsgChatMessage,
		Payload: protocol.ChatMessagePayload{
			Username: client.user.Username,
			Text:     payload.Text,
		},
	}

	that.sendToUser(session.Player1ID, broadcast)
	that.sendToUser(session.Player2ID, broadcast)

	return nil
}

func (that *Server) handleGetOnlinePlayers(ctx context.Context, client *client, _ *protocol.Message) error {
	online := that.connections.Online()

	players := make([]protocol.OnlinePlayer, 0, len(online))
	for _, userID := range online {
		if len(players) == protocol.MaxOnlinePlayers {
			break
		}

		user, err := that.users.GetByID(ctx, userID)
		if err != nil {
			that.logger.Error("failed to load online user", "userID", userID, "error", err)
			continue
		}

		players = append(players, protocol.OnlinePlayer{
			Username: user.Username,
			Rating:   int32(user.Rating),
			Rank:     user.Rank(),
		})
	}

	return client.conn.SendMessage(&protocol.Message{
		Type:    protocol.MsgOnlinePlayersList,
		Payload: protocol.OnlinePlayersListPayload{Players: players},
	})
}

func (that *Server) handleChallengePlayer(ctx context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.ChallengePlayerPayload)

	// the target may be addressed by user id or by username
	targetID := payload.TargetID
	targetConn, online := that.connections.Lookup(targetID)
	if !online {
		if user, err := that.users.GetByUsername(ctx, payload.TargetID); err == nil {
			targetID = user.ID
			targetConn, online = that.connections.Lookup(targetID)
		}
	}

	if targetID == client.user.ID {
		that.sendFailure(client, "cannot challenge yourself")
		return nil
	}

	if !online {
		that.sendFailure(client, "player is offline")
		return nil
	}

	gameMode := payload.GameMode
	if gameMode == "" {
		gameMode = defaultGameMode
	}

	ch, err := that.challenges.Create(client.user.ID, client.user.Username, targetID,
		client.conn, targetConn, gameMode, int(payload.TimeControl))
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	err = client.conn.SendMessage(&protocol.Message{
		Type: protocol.MsgChallengePlayer,
		Payload: protocol.ChallengePlayerPayload{
			ChallengerID: ch.ChallengerID,
			TargetID:     ch.TargetID,
			ChallengeID:  ch.ID,
			GameMode:     ch.GameMode,
			TimeControl:  int32(ch.TimeControl),
		},
	})
	if err != nil {
		return err
	}

	that.send(targetConn, &protocol.Message{
		Type: protocol.MsgChallengeReceived,
		Payload: protocol.ChallengeReceivedPayload{
			ChallengerUsername: ch.ChallengerName,
			ChallengerID:       ch.ChallengerID,
			ChallengeID:        ch.ID,
			GameMode:           ch.GameMode,
			TimeControl:        int32(ch.TimeControl),
			ExpiresAt:          ch.ExpiresAt.Unix(),
		},
	})

	return nil
}

func (that *Server) handleChallengeAccept(ctx context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.ChallengeIDPayload)

	ch, err := that.challenges.Get(payload.ChallengeID)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	if ch.TargetID != client.user.ID {
		that.sendFailure(client, "challenge is not addressed to you")
		return nil
	}

	ch, err = that.challenges.Accept(payload.ChallengeID)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	that.challenges.Remove(ch.ID)

	session, err := that.games.CreateSession(ctx, ch.ChallengerID, ch.ChallengerName, client.user.ID, client.user.Username)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	that.sendToUser(ch.ChallengerID, startGameMessage(session, client.user.Username))

	return client.conn.SendMessage(startGameMessage(session, ch.ChallengerName))
}

func (that *Server) handleChallengeDecline(_ context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.ChallengeIDPayload)

	ch, err := that.challenges.Get(payload.ChallengeID)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	if ch.TargetID != client.user.ID {
		that.sendFailure(client, "challenge is not addressed to you")
		return nil
	}

	if _, err = that.challenges.Decline(payload.ChallengeID); err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	that.challenges.Remove(ch.ID)

	that.sendToUser(ch.ChallengerID, &protocol.Message{
		Type:    protocol.MsgChallengeDeclined,
		Payload: protocol.ChallengeIDPayload{ChallengeID: ch.ID},
	})

	return nil
}

func (that *Server) handleChallengeCancel(_ context.Context, client *client, msg *protocol.Message) error {
	payload := msg.Payload.(protocol.ChallengeIDPayload)

	ch, err := that.challenges.Get(payload.ChallengeID)
	if err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	if ch.ChallengerID != client.user.ID {
		that.sendFailure(client, "only the challenger can cancel")
		return nil
	}

	if _, err = that.challenges.Cancel(payload.ChallengeID); err != nil {
		that.sendFailure(client, err.Error())
		return nil
	}

	that.challenges.Remove(ch.ID)

	that.sendToUser(ch.TargetID, &protocol.Message{
		Type:    protocol.MsgChallengeCancelled,
		Payload: protocol.ChallengeIDPayload{ChallengeID: ch.ID},
	})

	return nil
}
