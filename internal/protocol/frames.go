package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FrameType identifies websocket payload variants.
type FrameType string

const (
	TypeUserID           FrameType = "user_id"
	TypeChatID           FrameType = "chat_id"
	TypeTeachabilityFlag FrameType = "teachability_flag"
	TypeMessage          FrameType = "message"
	TypeChatResponse     FrameType = "chat_response"
)

// ErrUnsupportedType marks inbound frame types the service does not
// recognize. Callers drop these frames without responding.
var ErrUnsupportedType = errors.New("unsupported frame type")

type envelope struct {
	Type      FrameType       `json:"type"`
	Content   json.RawMessage `json:"content"`
	MessageID string          `json:"messageId,omitempty"`
}

// UserID identifies the participant for the session.
type UserID struct {
	Type    FrameType `json:"type"`
	Content string    `json:"content"`
}

// ChatID attaches an externally supplied conversation id.
type ChatID struct {
	Type    FrameType `json:"type"`
	Content string    `json:"content"`
}

// TeachabilityFlag toggles conversational memory for the session.
type TeachabilityFlag struct {
	Type    FrameType `json:"type"`
	Enabled bool      `json:"content"`
}

// Message carries one human text turn.
type Message struct {
	Type      FrameType `json:"type"`
	Content   string    `json:"content"`
	MessageID string    `json:"messageId,omitempty"`
}

// ChatResponse is the single outbound frame type.
type ChatResponse struct {
	Type      FrameType `json:"type"`
	MessageID string    `json:"messageId"`
	Content   string    `json:"content"`
}

func NewChatResponse(messageID, content string) ChatResponse {
	if messageID == "" {
		messageID = "counselor_response"
	}
	return ChatResponse{Type: TypeChatResponse, MessageID: messageID, Content: content}
}

// ParseClientFrame decodes one inbound frame into its typed form.
// Unknown types return ErrUnsupportedType so the caller can drop them.
func ParseClientFrame(raw []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserID:
		content, err := stringContent(env.Content)
		if err != nil || content == "" {
			return nil, errors.New("invalid user_id frame")
		}
		return UserID{Type: env.Type, Content: content}, nil
	case TypeChatID:
		content, err := stringContent(env.Content)
		if err != nil || content == "" {
			return nil, errors.New("invalid chat_id frame")
		}
		return ChatID{Type: env.Type, Content: content}, nil
	case TypeTeachabilityFlag:
		enabled, err := boolContent(env.Content)
		if err != nil {
			return nil, errors.New("invalid teachability_flag frame")
		}
		return TeachabilityFlag{Type: env.Type, Enabled: enabled}, nil
	case TypeMessage:
		content, err := stringContent(env.Content)
		if err != nil || strings.TrimSpace(content) == "" {
			return nil, errors.New("invalid message frame")
		}
		return Message{Type: env.Type, Content: content, MessageID: env.MessageID}, nil
	default:
		return nil, ErrUnsupportedType
	}
}

func stringContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("missing content")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

// boolContent accepts both a JSON bool and the "true"/"false" strings that
// older frontends send.
func boolContent(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return false, errors.New("missing content")
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognized bool %q", s)
	}
}
