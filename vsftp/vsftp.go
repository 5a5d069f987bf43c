package vsftp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Package vsftp frames the messages of the VS file transfer application:
// a BEGIN carrying the file name, DATA records carrying file bytes, and a
// bare END. Each message rides in exactly one RUDP datagram.

const (
	MinLen         = 4
	FilenameLength = 128
	MaxData        = 128
)

const (
	TypeBegin uint32 = 1
	TypeData  uint32 = 2
	TypeEnd   uint32 = 3
)

type Message struct {
	Type     uint32
	Filename string // BEGIN only
	Data     []byte // DATA only
}

// Marshal encodes the message: a 4-byte type in network byte order followed
// by the file name or data bytes. The message length carries the payload
// length; there is no length field.
func (m *Message) Marshal() ([]byte, error) {
	switch m.Type {
	case TypeBegin:
		if len(m.Filename) == 0 || len(m.Filename) > FilenameLength {
			return nil, errors.Errorf("vsftp: bad filename length %d", len(m.Filename))
		}
		buf := make([]byte, MinLen+len(m.Filename))
		binary.BigEndian.PutUint32(buf[0:4], m.Type)
		copy(buf[MinLen:], m.Filename)
		return buf, nil
	case TypeData:
		if len(m.Data) == 0 || len(m.Data) > MaxData {
			return nil, errors.Errorf("vsftp: bad data length %d", len(m.Data))
		}
		buf := make([]byte, MinLen+len(m.Data))
		binary.BigEndian.PutUint32(buf[0:4], m.Type)
		copy(buf[MinLen:], m.Data)
		return buf, nil
	case TypeEnd:
		buf := make([]byte, MinLen)
		binary.BigEndian.PutUint32(buf[0:4], m.Type)
		return buf, nil
	default:
		return nil, errors.Errorf("vsftp: unknown message type %d", m.Type)
	}
}

// Unmarshal decodes one received message.
func Unmarshal(buf []byte) (*Message, error) {
	if len(buf) < MinLen {
		return nil, errors.Errorf("vsftp: message too short: %d bytes", len(buf))
	}
	m := &Message{
		Type: binary.BigEndian.Uint32(buf[0:4]),
	}
	switch m.Type {
	case TypeBegin:
		if len(buf) == MinLen || len(buf) > MinLen+FilenameLength {
			return nil, errors.Errorf("vsftp: bad BEGIN length %d", len(buf))
		}
		m.Filename = string(buf[MinLen:])
	case TypeData:
		if len(buf) == MinLen || len(buf) > MinLen+MaxData {
			return nil, errors.Errorf("vsftp: bad DATA length %d", len(buf))
		}
		m.Data = make([]byte, len(buf)-MinLen)
		copy(m.Data, buf[MinLen:])
	case TypeEnd:
		if len(buf) != MinLen {
			return nil, errors.Errorf("vsftp: bad END length %d", len(buf))
		}
	default:
		return nil, errors.Errorf("vsftp: unknown message type %d", m.Type)
	}
	return m, nil
}
