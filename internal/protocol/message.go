package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire layout, little-endian, mirrored byte-for-byte by every client:
// [type int32 (4)] [token, NUL-padded (512)] [payload union (5004)].
// The block size is constant regardless of logical content; the encoder
// zero-fills the whole block before writing so stale bytes never leak
// between messages.
const (
	MaxTokenLen    = 512
	MaxPayloadSize = 5004
	MessageSize    = 4 + MaxTokenLen + MaxPayloadSize

	payloadOffset = 4 + MaxTokenLen
)

// MaxOnlinePlayers - fixed column count of the online players list payload.
const MaxOnlinePlayers = 50

type MessageType int32

const (
	MsgRegister           MessageType = 1
	MsgLogin              MessageType = 2
	MsgAuthSuccess        MessageType = 3
	MsgAuthFailed         MessageType = 4
	MsgJoinQueue          MessageType = 5
	MsgLeaveQueue         MessageType = 6
	MsgStartGame          MessageType = 7
	MsgPlayerMove         MessageType = 8
	MsgMoveResult         MessageType = 9
	MsgGameOver           MessageType = 10
	MsgChat               MessageType = 11
	MsgLogout             MessageType = 12
	MsgPing               MessageType = 13
	MsgPong               MessageType = 14
	MsgPlaceShip          MessageType = 15
	MsgPlayerReady        MessageType = 16
	MsgGetOnlinePlayers   MessageType = 17
	MsgOnlinePlayersList  MessageType = 18
	MsgChallengePlayer    MessageType = 19
	MsgChallengeReceived  MessageType = 20
	MsgChallengeAccept    MessageType = 21
	MsgChallengeDecline   MessageType = 22
	MsgChallengeDeclined  MessageType = 23
	MsgChallengeExpired   MessageType = 24
	MsgChallengeCancel    MessageType = 25
	MsgChallengeCancelled MessageType = 26
	MsgAuthToken          MessageType = 27
	MsgTurnWarning        MessageType = 28
	MsgGameTimeout        MessageType = 29
	MsgChatMessage        MessageType = 30
)

var (
	ErrBadMessageSize     = errors.New("message block size mismatch")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message - one decoded application message. The wire union never leaves
// this package; Payload carries the single active variant as a proper type.
type Message struct {
	Type    MessageType
	Token   string
	Payload Payload
}

// Payload is the decoded counterpart of the wire union's active variant.
type Payload interface {
	isPayload()
}

type AuthRequestPayload struct {
	Username string // 32 bytes
	Password string // 32 bytes
}

type AuthSuccessPayload struct {
	Username string // 32 bytes
}

type AuthFailedPayload struct {
	Reason string // 64 bytes
}

type JoinQueuePayload struct {
	GameMode string // 32 bytes; empty means "ranked"
}

type StartGamePayload struct {
	Opponent    string // 32 bytes
	GameID      string // 64 bytes
	CurrentTurn string // 32 bytes
}

type PlayerMovePayload struct {
	GameID string // 65 bytes
	Row    int32
	Col    int32
}

type MoveResultPayload struct {
	Row        int32
	Col        int32
	IsHit      bool
	IsSunk     bool
	SunkType   int32
	GameOver   bool
	IsYourShot bool
}

type GameOverPayload struct {
	WinnerID string // 64 bytes
	Reason   string // 64 bytes
}

type ChatPayload struct {
	GameID string // 64 bytes
	Text   string // 128 bytes
}

type ChatMessagePayload struct {
	Username string // 64 bytes
	Text     string // 128 bytes
}

type PlaceShipPayload struct {
	ShipType   int32
	Row        int32
	Col        int32
	Horizontal bool
}

type PlayerReadyPayload struct {
	GameID string // 65 bytes
	Grid   [100]byte
}

type OnlinePlayer struct {
	Username string // 64 bytes
	Rating   int32
	Rank     string // 32 bytes
}

type OnlinePlayersListPayload struct {
	Players []OnlinePlayer // at most MaxOnlinePlayers
}

type ChallengePlayerPayload struct {
	ChallengerID string // 64 bytes, filled by the server
	TargetID     string // 64 bytes
	ChallengeID  string // 65 bytes, filled by the server
	GameMode     string // 32 bytes
	TimeControl  int32
}

type ChallengeReceivedPayload struct {
	ChallengerUsername string // 64 bytes
	ChallengerID       string // 64 bytes
	ChallengeID        string // 65 bytes
	GameMode           string // 32 bytes
	TimeControl        int32
	ExpiresAt          int64 // unix seconds
}

type ChallengeIDPayload struct {
	ChallengeID string // 65 bytes
}

type TokenPayload struct {
	Token string // 512 bytes
}

type TurnWarningPayload struct {
	SecondsRemaining int32
}

type GameTimeoutPayload struct {
	WinnerID string // 64 bytes
	LoserID  string // 64 bytes
	Reason   string // 64 bytes
}

func (AuthRequestPayload) isPayload()       {}
func (AuthSuccessPayload) isPayload()       {}
func (AuthFailedPayload) isPayload()        {}
func (JoinQueuePayload) isPayload()         {}
func (StartGamePayload) isPayload()         {}
func (PlayerMovePayload) isPayload()        {}
func (MoveResultPayload) isPayload()        {}
func (GameOverPayload) isPayload()          {}
func (ChatPayload) isPayload()              {}
func (ChatMessagePayload) isPayload()       {}
func (PlaceShipPayload) isPayload()         {}
func (PlayerReadyPayload) isPayload()       {}
func (OnlinePlayersListPayload) isPayload() {}
func (ChallengePlayerPayload) isPayload()   {}
func (ChallengeReceivedPayload) isPayload() {}
func (ChallengeIDPayload) isPayload()       {}
func (TokenPayload) isPayload()             {}
func (TurnWarningPayload) isPayload()       {}
func (GameTimeoutPayload) isPayload()       {}

// putCString copies s into dst as a NUL-terminated fixed-size string,
// truncating so that at least one trailing NUL always remains.
func putCString(dst []byte, s string) {
	n := copy(dst, s)
	if n == len(dst) {
		dst[len(dst)-1] = 0
	}
}

// cString reads a NUL-terminated string out of a fixed-size field.
func cString(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}

func putBool(dst *byte, v bool) {
	if v {
		*dst = 1
	}
}

// EncodeMessage serializes a message into its constant-size wire block.
func EncodeMessage(msg *Message) []byte {
	buf := make([]byte, MessageSize)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(msg.Type))
	putCString(buf[4:payloadOffset], msg.Token)

	p := buf[payloadOffset:]

	switch payload := msg.Payload.(type) {
	case nil:
		// empty-payload message; the union stays zeroed

	case AuthRequestPayload:
		putCString(p[0:32], payload.Username)
		putCString(p[32:64], payload.Password)

	case AuthSuccessPayload:
		putCString(p[0:32], payload.Username)

	case AuthFailedPayload:
		putCString(p[0:64], payload.Reason)

	case JoinQueuePayload:
		putCString(p[0:32], payload.GameMode)

	case StartGamePayload:
		putCString(p[0:32], payload.Opponent)
		putCString(p[32:96], payload.GameID)
		putCString(p[96:128], payload.CurrentTurn)

	case PlayerMovePayload:
		putCString(p[0:65], payload.GameID)
		binary.LittleEndian.PutUint32(p[65:69], uint32(payload.Row))
		binary.LittleEndian.PutUint32(p[69:73], uint32(payload.Col))

	case MoveResultPayload:
		binary.LittleEndian.PutUint32(p[0:4], uint32(payload.Row))
		binary.LittleEndian.PutUint32(p[4:8], uint32(payload.Col))
		putBool(&p[8], payload.IsHit)
		putBool(&p[9], payload.IsSunk)
		binary.LittleEndian.PutUint32(p[10:14], uint32(payload.SunkType))
		putBool(&p[14], payload.GameOver)
		putBool(&p[15], payload.IsYourShot)

	case GameOverPayload:
		putCString(p[0:64], payload.WinnerID)
		putCString(p[64:128], payload.Reason)

	case ChatPayload:
		putCString(p[0:64], payload.GameID)
		putCString(p[64:192], payload.Text)

	case ChatMessagePayload:
		putCString(p[0:64], payload.Username)
		putCString(p[64:192], payload.Text)

	case PlaceShipPayload:
		binary.LittleEndian.PutUint32(p[0:4], uint32(payload.ShipType))
		binary.LittleEndian.PutUint32(p[4:8], uint32(payload.Row))
		binary.LittleEndian.PutUint32(p[8:12], uint32(payload.Col))
		putBool(&p[12], payload.Horizontal)

	case PlayerReadyPayload:
		putCString(p[0:65], payload.GameID)
		copy(p[65:165], payload.Grid[:])

	case OnlinePlayersListPayload:
		count := len(payload.Players)
		if count > MaxOnlinePlayers {
			count = MaxOnlinePlayers
		}
		binary.LittleEndian.PutUint32(p[0:4], uint32(count))
		for i := 0; i < count; i++ {
			putCString(p[4+i*64:4+(i+1)*64], payload.Players[i].Username)
			binary.LittleEndian.PutUint32(p[3204+i*4:3204+(i+1)*4], uint32(payload.Players[i].Rating))
			putCString(p[3404+i*32:3404+(i+1)*32], payload.Players[i].Rank)
		}

	case ChallengePlayerPayload:
		putCString(p[0:64], payload.ChallengerID)
		putCString(p[64:128], payload.TargetID)
		putCString(p[128:193], payload.ChallengeID)
		putCString(p[193:225], payload.GameMode)
		binary.LittleEndian.PutUint32(p[225:229], uint32(payload.TimeControl))

	case ChallengeReceivedPayload:
		putCString(p[0:64], payload.ChallengerUsername)
		putCString(p[64:128], payload.ChallengerID)
		putCString(p[128:193], payload.ChallengeID)
		putCString(p[193:225], payload.GameMode)
		binary.LittleEndian.PutUint32(p[225:229], uint32(payload.TimeControl))
		binary.LittleEndian.PutUint64(p[229:237], uint64(payload.ExpiresAt))

	case ChallengeIDPayload:
		putCString(p[0:65], payload.ChallengeID)

	case TokenPayload:
		putCString(p[0:512], payload.Token)

	case TurnWarningPayload:
		binary.LittleEndian.PutUint32(p[0:4], uint32(payload.SecondsRemaining))

	case GameTimeoutPayload:
		putCString(p[0:64], payload.WinnerID)
		putCString(p[64:128], payload.LoserID)
		putCString(p[128:192], payload.Reason)
	}

	return buf
}

// DecodeMessage parses a constant-size wire block into a typed message.
// Any block whose length differs from MessageSize is rejected outright.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) != MessageSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBadMessageSize, len(data), MessageSize)
	}

	msg := &Message{
		Type:  MessageType(int32(binary.LittleEndian.Uint32(data[0:4]))),
		Token: cString(data[4:payloadOffset]),
	}

	p := data[payloadOffset:]

	switch msg.Type {
	case MsgRegister, MsgLogin:
		msg.Payload = AuthRequestPayload{
			Username: cString(p[0:32]),
			Password: cString(p[32:64]),
		}

	case MsgAuthSuccess:
		msg.Payload = AuthSuccessPayload{Username: cString(p[0:32])}

	case MsgAuthFailed:
		msg.Payload = AuthFailedPayload{Reason: cString(p[0:64])}

	case MsgJoinQueue:
		msg.Payload = JoinQueuePayload{GameMode: cString(p[0:32])}

	case MsgLeaveQueue, MsgLogout, MsgPing, MsgPong, MsgGetOnlinePlayers:
		// empty payload

	case MsgStartGame:
		msg.Payload = StartGamePayload{
			Opponent:    cString(p[0:32]),
			GameID:      cString(p[32:96]),
			CurrentTurn: cString(p[96:128]),
		}

	case MsgPlayerMove:
		msg.Payload = PlayerMovePayload{
			GameID: cString(p[0:65]),
			Row:    int32(binary.LittleEndian.Uint32(p[65:69])),
			Col:    int32(binary.LittleEndian.Uint32(p[69:73])),
		}

	case MsgMoveResult:
		msg.Payload = MoveResultPayload{
			Row:        int32(binary.LittleEndian.Uint32(p[0:4])),
			Col:        int32(binary.LittleEndian.Uint32(p[4:8])),
			IsHit:      p[8] != 0,
			IsSunk:     p[9] != 0,
			SunkType:   int32(binary.LittleEndian.Uint32(p[10:14])),
			GameOver:   p[14] != 0,
			IsYourShot: p[15] != 0,
		}

	case MsgGameOver:
		msg.Payload = GameOverPayload{
			WinnerID: cString(p[0:64]),
			Reason:   cString(p[64:128]),
		}

	case MsgChat:
		msg.Payload = ChatPayload{
			GameID: cString(p[0:64]),
			Text:   cString(p[64:192]),
		}

	case MsgChatMessage:
		msg.Payload = ChatMessagePayload{
			Username: cString(p[0:64]),
			Text:     cString(p[64:192]),
		}

	case MsgPlaceShip:
		msg.Payload = PlaceShipPayload{
			ShipType:   int32(binary.LittleEndian.Uint32(p[0:4])),
			Row:        int32(binary.LittleEndian.Uint32(p[4:8])),
			Col:        int32(binary.LittleEndian.Uint32(p[8:12])),
			Horizontal: p[12] != 0,
		}

	case MsgPlayerReady:
		payload := PlayerReadyPayload{GameID: cString(p[0:65])}
		copy(payload.Grid[:], p[65:165])
		msg.Payload = payload

	case MsgOnlinePlayersList:
		count := int(int32(binary.LittleEndian.Uint32(p[0:4])))
		if count > MaxOnlinePlayers {
			count = MaxOnlinePlayers
		}
		payload := OnlinePlayersListPayload{}
		for i := 0; i < count; i++ {
			payload.Players = append(payload.Players, OnlinePlayer{
				Username: cString(p[4+i*64 : 4+(i+1)*64]),
				Rating:   int32(binary.LittleEndian.Uint32(p[3204+i*4 : 3204+(i+1)*4])),
				Rank:     cString(p[3404+i*32 : 3404+(i+1)*32]),
			})
		}
		msg.Payload = payload

	case MsgChallengePlayer:
		msg.Payload = ChallengePlayerPayload{
			ChallengerID: cString(p[0:64]),
			TargetID:     cString(p[64:128]),
			ChallengeID:  cString(p[128:193]),
			GameMode:     cString(p[193:225]),
			TimeControl:  int32(binary.LittleEndian.Uint32(p[225:229])),
		}

	case MsgChallengeReceived:
		msg.Payload = ChallengeReceivedPayload{
			ChallengerUsername: cString(p[0:64]),
			ChallengerID:       cString(p[64:128]),
			ChallengeID:        cString(p[128:193]),
			GameMode:           cString(p[193:225]),
			TimeControl:        int32(binary.LittleEndian.Uint32(p[225:229])),
			ExpiresAt:          int64(binary.LittleEndian.Uint64(p[229:237])),
		}

	case MsgChallengeAccept, MsgChallengeDecline, MsgChallengeDeclined,
		MsgChallengeExpired, MsgChallengeCancel, MsgChallengeCancelled:
		msg.Payload = ChallengeIDPayload{ChallengeID: cString(p[0:65])}

	case MsgAuthToken:
		msg.Payload = TokenPayload{Token: cString(p[0:512])}

	case MsgTurnWarning:
		msg.Payload = TurnWarningPayload{
			SecondsRemaining: int32(binary.LittleEndian.Uint32(p[0:4])),
		}

	case MsgGameTimeout:
		msg.Payload = GameTimeoutPayload{
			WinnerID: cString(p[0:64]),
			LoserID:  cString(p[64:128]),
			Reason:   cString(p[128:192]),
		}

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, msg.Type)
	}

	return msg, nil
}
