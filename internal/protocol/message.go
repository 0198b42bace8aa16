// Package protocol implements the relay's JSON wire format: one object per
// WebSocket text frame, tagged by its "type" field.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pscheid92/coderelay/internal/domain"
)

type Type string

const (
	TypeIdentify           Type = "identify"
	TypeNewCode            Type = "new_code"
	TypePing               Type = "ping"
	TypePong               Type = "pong"
	TypeAck                Type = "ack"
	TypeServerStatusUpdate Type = "server_status_update"
)

// Inbound is a decoded client→server message.
type Inbound interface {
	MessageType() Type
}

type Identify struct {
	ClientType domain.ClientType
	ID         string
	Username   string
}

func (Identify) MessageType() Type { return TypeIdentify }

// Validate checks required fields for the declared client type.
func (m Identify) Validate() error {
	role, ok := m.ClientType.Role()
	if !ok {
		return domain.NewProtocolError(domain.ErrInvalidIdentify, fmt.Sprintf("unknown client_type %q", m.ClientType))
	}
	if role == domain.RoleProducer && strings.TrimSpace(m.ID) == "" {
		return domain.NewProtocolError(domain.ErrInvalidIdentify, "producer requires id")
	}
	if role == domain.RoleConsumer && strings.TrimSpace(m.Username) == "" {
		return domain.NewProtocolError(domain.ErrInvalidIdentify, "consumer requires username")
	}
	return nil
}

// DisplayName is the producer id or the consumer username.
func (m Identify) DisplayName() string {
	if m.ClientType == domain.ClientTypeProducer {
		return m.ID
	}
	return m.Username
}

type NewCode struct {
	Code string
}

func (NewCode) MessageType() Type { return TypeNewCode }

func (m NewCode) Validate() error {
	if strings.TrimSpace(m.Code) == "" {
		return domain.ErrEmptyCode
	}
	return nil
}

type Ping struct{}

func (Ping) MessageType() Type { return TypePing }

// Unknown carries any type the relay does not handle.
type Unknown struct {
	Type Type
}

func (m Unknown) MessageType() Type { return m.Type }

// Decode parses one inbound frame. A frame that is not a JSON object with a
// string "type" yields a malformed-frame ProtocolError; an identify whose
// fields have the wrong JSON types yields an invalid-identify ProtocolError.
// A new_code whose code is missing or not a string decodes to an empty code.
func Decode(data []byte) (Inbound, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domain.NewProtocolError(domain.ErrMalformedFrame, "frame is not a JSON object")
	}

	var envelope struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, domain.NewProtocolError(domain.ErrMalformedFrame, err.Error())
	}

	switch envelope.Type {
	case TypeIdentify:
		var p struct {
			ClientType string `json:"client_type"`
			ID         string `json:"id"`
			Username   string `json:"username"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, domain.NewProtocolError(domain.ErrInvalidIdentify, err.Error())
		}
		return Identify{ClientType: domain.ClientType(p.ClientType), ID: p.ID, Username: p.Username}, nil

	case TypeNewCode:
		var p struct {
			Code json.RawMessage `json:"code"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return NewCode{}, nil
		}
		var code string
		if err := json.Unmarshal(p.Code, &code); err != nil {
			return NewCode{}, nil
		}
		return NewCode{Code: code}, nil

	case TypePing:
		return Ping{}, nil

	default:
		return Unknown{Type: envelope.Type}, nil
	}
}

// Outbound is a server→client message, also decoded by the producer client.
type Outbound struct {
	Type    Type   `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	return data, nil
}

func DecodeOutbound(data []byte) (Outbound, error) {
	var msg Outbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Outbound{}, fmt.Errorf("decode server message: %w", err)
	}
	return msg, nil
}

func NewCodeEvent(code string) Outbound {
	return Outbound{Type: TypeNewCode, Code: code}
}

func AckEvent(code string) Outbound {
	return Outbound{Type: TypeAck, Code: code}
}

func PongEvent() Outbound {
	return Outbound{Type: TypePong}
}

func StatusEvent(message string) Outbound {
	return Outbound{Type: TypeServerStatusUpdate, Message: message}
}

// IdentifyRequest builds the handshake a client sends after connecting.
func IdentifyRequest(clientType domain.ClientType, name string) ([]byte, error) {
	payload := map[string]string{"type": string(TypeIdentify), "client_type": string(clientType)}
	if clientType == domain.ClientTypeProducer {
		payload["id"] = name
	} else {
		payload["username"] = name
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode identify: %w", err)
	}
	return data, nil
}

// NewCodeRequest builds the producer's new_code frame.
func NewCodeRequest(code string) ([]byte, error) {
	data, err := json.Marshal(map[string]string{"type": string(TypeNewCode), "code": code})
	if err != nil {
		return nil, fmt.Errorf("encode new_code: %w", err)
	}
	return data, nil
}
