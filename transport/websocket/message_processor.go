package websocket

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/tictactoe"
)

const (
	opContinuation byte = 0x0
	opText         byte = 0x1
	opClose        byte = 0x8
	opPing         byte = 0x9
	opPong         byte = 0xA

	maxPayloadSize = 1 << 20
)

var (
	ErrPayloadTooLarge        = errors.New("websocket payload too large")
	ErrUnexpectedContinuation = errors.New("continuation frame without a message")
	ErrInterleavedMessage     = errors.New("new message inside a fragmented one")
)

// frame represents a WebSocket frame and its metadata.
type frame struct {
	isFin   bool
	opCode  byte
	length  uint64
	payload []byte
}

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RequestPayload carries the arguments of game actions.
type RequestPayload struct {
	Cell *int `json:"cell,omitempty"`
	Move *int `json:"move,omitempty"`
}

type ResponsePayload struct {
	Game  *tictactoe.GameView `json:"game,omitempty"`
	Error string              `json:"error,omitempty"`
}

func (that *Server) sendMessage(bufrw *bufio.ReadWriter, action string, payload ResponsePayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	responseBytes, err := json.Marshal(Message{
		Action:  action,
		Payload: payloadBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	return writeFrame(bufrw, frame{
		isFin:   true,
		opCode:  opText,
		length:  uint64(len(responseBytes)),
		payload: responseBytes,
	})
}

func writeFrame(bufrw *bufio.ReadWriter, frameData frame) error {
	buf := make([]byte, 2, 10+len(frameData.payload))
	buf[0] |= frameData.opCode

	if frameData.isFin {
		buf[0] |= 0x80
	}

	switch {
	case frameData.length < 126:
		buf[1] |= byte(frameData.length)
	case frameData.length < 1<<16:
		buf[1] |= 126
		buf = binary.BigEndian.AppendUint16(buf, uint16(frameData.length))
	default:
		buf[1] |= 127
		buf = binary.BigEndian.AppendUint64(buf, frameData.length)
	}

	buf = append(buf, frameData.payload...)

	if _, err := bufrw.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	if err := bufrw.Flush(); err != nil {
		return fmt.Errorf("failed to flush frame: %w", err)
	}

	return nil
}

// readFrame reads one frame and unmasks its payload.
func readFrame(reader io.Reader) (frame, error) {
	header := make([]byte, 2)
	if _, err := io.ReadFull(reader, header); err != nil {
		return frame{}, fmt.Errorf("failed to read header: %w", err)
	}

	result := frame{
		isFin:  header[0]>>7 == 1,
		opCode: header[0] & 0x0f,
	}
	masked := header[1]>>7 == 1

	length, err := readPayloadLength(reader, header[1]&0x7f)
	if err != nil {
		return frame{}, err
	}

	if length > maxPayloadSize {
		return frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)
	}

	var mask []byte
	if masked {
		mask = make([]byte, 4)
		if _, err = io.ReadFull(reader, mask); err != nil {
			return frame{}, fmt.Errorf("failed to read mask: %w", err)
		}
	}

	payload := make([]byte, length)
	if _, err = io.ReadFull(reader, payload); err != nil {
		return frame{}, fmt.Errorf("failed to read payload: %w", err)
	}

	if mask != nil {
		for i := range payload {
			payload[i] ^= mask[i%4]
		}
	}

	result.length = length
	result.payload = payload

	return result, nil
}

// readMessage joins continuation frames into one text message. Ping and pong
// frames, also those between fragments, go to onControl. A close frame ends
// the read and is returned as is.
func readMessage(reader io.Reader, onControl func(control frame) error) (frame, error) {
	var message *frame

	for {
		next, err := readFrame(reader)
		if err != nil {
			return frame{}, err
		}

		switch {
		case next.opCode == opClose:
			return next, nil
		case next.opCode >= opClose:
			if onControl != nil {
				if err = onControl(next); err != nil {
					return frame{}, err
				}
			}
			continue
		case message == nil && next.opCode == opContinuation:
			return frame{}, ErrUnexpectedContinuation
		case message != nil && next.opCode != opContinuation:
			return frame{}, fmt.Errorf("%w: opcode %#x", ErrInterleavedMessage, next.opCode)
		}

		if message == nil {
			message = &next
		} else {
			message.payload = append(message.payload, next.payload...)
			message.length += next.length
			message.isFin = next.isFin
		}

		if message.length > maxPayloadSize {
			return frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, message.length)
		}

		if message.isFin {
			return *message, nil
		}
	}
}

func readPayloadLength(reader io.Reader, payloadLen byte) (uint64, error) {
	switch payloadLen {
	case 126:
		length := make([]byte, 2)
		if _, err := io.ReadFull(reader, length); err != nil {
			return 0, fmt.Errorf("failed to read payload length: %w", err)
		}
		return uint64(binary.BigEndian.Uint16(length)), nil
	case 127:
		length := make([]byte, 8)
		if _, err := io.ReadFull(reader, length); err != nil {
			return 0, fmt.Errorf("failed to read payload length: %w", err)
		}
		return binary.BigEndian.Uint64(length), nil
	default:
		return uint64(payloadLen), nil
	}
}
