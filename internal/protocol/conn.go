package protocol

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"
)

// defaultWriteTimeout bounds every frame write so a peer that stops reading
// cannot block the sender, and with it the background monitors, forever.
const defaultWriteTimeout = 10 * time.Second

// Conn wraps a raw TCP connection after (or before) the websocket upgrade.
// Reads happen from a single goroutine; writes are serialized by a mutex so
// the session handler and the background monitors can send concurrently
// without interleaving frame bytes.
type Conn struct {
	sock         net.Conn
	reader       *bufio.Reader
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func NewConn(sock net.Conn) *Conn {
	return &Conn{
		sock:         sock,
		reader:       bufio.NewReader(sock),
		writeTimeout: defaultWriteTimeout,
	}
}

// SetWriteTimeout overrides the per-frame write deadline. Zero disables it.
func (that *Conn) SetWriteTimeout(timeout time.Duration) {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	that.writeTimeout = timeout
}

// Handshake performs the server side of the websocket upgrade.
func (that *Conn) Handshake() error {
	key, err := readHandshake(that.reader)
	if err != nil {
		return fmt.Errorf("failed to complete handshake: %w", err)
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if that.writeTimeout > 0 {
		if err := that.sock.SetWriteDeadline(time.Now().Add(that.writeTimeout)); err != nil {
			return fmt.Errorf("failed to complete handshake: %w", err)
		}
	}

	if err := writeHandshakeResponse(that.sock, GenerateAcceptKey(key)); err != nil {
		return fmt.Errorf("failed to complete handshake: %w", err)
	}

	return nil
}

// RecvFrame blocks until the next frame arrives or the read deadline fires.
func (that *Conn) RecvFrame() (*Frame, error) {
	return readFrame(that.reader)
}

// SendFrame writes one unmasked frame under the write deadline.
func (that *Conn) SendFrame(opcode byte, payload []byte) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if that.writeTimeout > 0 {
		if err := that.sock.SetWriteDeadline(time.Now().Add(that.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	return writeFrame(that.sock, opcode, payload)
}

// SendMessage encodes and sends one application message as a binary frame.
func (that *Conn) SendMessage(msg *Message) error {
	if err := that.SendFrame(OpcodeBinary, EncodeMessage(msg)); err != nil {
		return fmt.Errorf("failed to send message type %d: %w", msg.Type, err)
	}

	return nil
}

// SendPong answers a transport-level ping, echoing its payload.
func (that *Conn) SendPong(payload []byte) error {
	return that.SendFrame(OpcodePong, payload)
}

// SendClose sends a close frame; the peer is expected to close in response.
func (that *Conn) SendClose() error {
	return that.SendFrame(OpcodeClose, nil)
}

func (that *Conn) SetReadDeadline(t time.Time) error {
	return that.sock.SetReadDeadline(t)
}

func (that *Conn) RemoteAddr() string {
	return that.sock.RemoteAddr().String()
}

func (that *Conn) Close() error {
	return that.sock.Close()
}
