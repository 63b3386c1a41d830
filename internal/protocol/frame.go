package protocol

import (
	"bufio"
	"crypto/sha1" //nolint: gosec // RFC 6455 requires SHA-1 for the handshake
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Static GUID defined in RFC 6455 for WebSocket.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const (
	OpcodeContinuation byte = 0x0
	OpcodeText         byte = 0x1
	OpcodeBinary       byte = 0x2
	OpcodeClose        byte = 0x8
	OpcodePing         byte = 0x9
	OpcodePong         byte = 0xA
)

var (
	// ErrPeerClosed marks a graceful close by the peer, as opposed to a
	// failed read mid-frame.
	ErrPeerClosed = errors.New("peer closed the connection")

	ErrBadHandshake = errors.New("malformed websocket handshake")
)

// Frame represents one transport-level frame after unmasking.
type Frame struct {
	Fin     bool
	Opcode  byte
	Masked  bool
	Payload []byte
}

// GenerateAcceptKey - derives the Sec-WebSocket-Accept value for a client key.
func GenerateAcceptKey(key string) string {
	h := sha1.New() //nolint: gosec // RFC 6455 requires the use of SHA-1 for WebSocket

	h.Write([]byte(key + websocketGUID))

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// readHandshake consumes the client's HTTP upgrade request and returns the
// Sec-WebSocket-Key header value.
func readHandshake(reader *bufio.Reader) (string, error) {
	var key string

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read handshake request: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		if strings.EqualFold(strings.TrimSpace(name), "Sec-WebSocket-Key") {
			key = strings.TrimSpace(value)
		}
	}

	if key == "" {
		return "", fmt.Errorf("%w: missing Sec-WebSocket-Key header", ErrBadHandshake)
	}

	return key, nil
}

// writeHandshakeResponse writes the 101 Switching Protocols response.
func writeHandshakeResponse(writer io.Writer, acceptKey string) error {
	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + acceptKey + "\r\n" +
		"\r\n"

	if _, err := io.WriteString(writer, response); err != nil {
		return fmt.Errorf("failed to write handshake response: %w", err)
	}

	return nil
}

// writeFrame writes an unmasked frame, choosing the 7/16/64-bit length
// encoding by payload size. Frames sent by the server are never masked.
func writeFrame(writer io.Writer, opcode byte, payload []byte) error {
	header := make([]byte, 2, 10)
	header[0] = 0x80 | (opcode & 0x0f)

	length := uint64(len(payload))

	switch {
	case length < 126:
		header[1] = byte(length)
	case length < 1<<16:
		header[1] = 126
		size := make([]byte, 2)
		binary.BigEndian.PutUint16(size, uint16(length))
		header = append(header, size...)
	default:
		header[1] = 127
		size := make([]byte, 8)
		binary.BigEndian.PutUint64(size, length)
		header = append(header, size...)
	}

	if _, err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}

	if _, err := writer.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame payload: %w", err)
	}

	return nil
}

// readFrame reads one frame, unmasking the payload when the mask bit is set.
// An EOF on the first header byte is a graceful peer close; an EOF anywhere
// later is a hard connection error.
func readFrame(reader io.Reader) (*Frame, error) {
	header := make([]byte, 2)

	if _, err := io.ReadFull(reader, header[:1]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrPeerClosed
		}
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	if _, err := io.ReadFull(reader, header[1:]); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	frame := &Frame{
		Fin:    header[0]&0x80 != 0,
		Opcode: header[0] & 0x0f,
		Masked: header[1]&0x80 != 0,
	}

	length := uint64(header[1] & 0x7f)

	switch length {
	case 126:
		extended := make([]byte, 2)
		if _, err := io.ReadFull(reader, extended); err != nil {
			return nil, fmt.Errorf("failed to read extended payload length: %w", err)
		}
		length = uint64(binary.BigEndian.Uint16(extended))
	case 127:
		extended := make([]byte, 8)
		if _, err := io.ReadFull(reader, extended); err != nil {
			return nil, fmt.Errorf("failed to read extended payload length: %w", err)
		}
		length = binary.BigEndian.Uint64(extended)
	}

	var mask [4]byte
	if frame.Masked {
		if _, err := io.ReadFull(reader, mask[:]); err != nil {
			return nil, fmt.Errorf("failed to read masking key: %w", err)
		}
	}

	frame.Payload = make([]byte, length)
	if _, err := io.ReadFull(reader, frame.Payload); err != nil {
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}

	if frame.Masked {
		for i := range frame.Payload {
			frame.Payload[i] ^= mask[i%4]
		}
	}

	return frame, nil
}
