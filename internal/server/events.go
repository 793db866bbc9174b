// Package server defines the JSON event envelope exchanged over the websocket
// and the helpers that decode inbound events and encode outbound ones.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/lanshare/internal/presence"
	"github.com/Tyrowin/lanshare/internal/session"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Inbound event names.
const (
	EventIdentify      = "identify"
	EventSendMessage   = "send_message"
	EventClearHistory  = "clear_history"
	EventRequestRoster = "request_roster"
)

// Outbound event names.
const (
	EventWelcome        = "welcome"
	EventLoadHistory    = "load_history"
	EventNewMessage     = "new_message"
	EventUserUpdate     = "user_update"
	EventHistoryCleared = "history_cleared"
	EventError          = "error"
)

// ErrMalformedEvent is returned for frames that are not a known, valid event.
var ErrMalformedEvent = errors.New("malformed event")

var validate = validator.New()

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// IdentifyPayload sets the display name and platform of the sending device.
type IdentifyPayload struct {
	Name     string `json:"name" validate:"required,max=50"`
	Platform string `json:"platform" validate:"required,max=100"`
}

// SendMessagePayload posts a text entry to the room.
type SendMessagePayload struct {
	Content string `json:"content" validate:"required,max=5000"`
}

type clearHistoryCommand struct{}

type requestRosterCommand struct{}

// DeviceView is the wire shape of a roster member.
type DeviceView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

// EntryView is the wire shape of a history entry. Fields not relevant to the
// entry type are omitted.
type EntryView struct {
	Type      session.Kind `json:"type"`
	ID        string       `json:"id"`
	Content   string       `json:"content,omitempty"`
	Filename  string       `json:"filename,omitempty"`
	Size      *int64       `json:"size,omitempty"`
	FileID    string       `json:"file_id,omitempty"`
	MimeType  string       `json:"mime_type,omitempty"`
	Category  string       `json:"category,omitempty"`
	Sender    string       `json:"sender"`
	SenderID  string       `json:"sender_id"`
	Timestamp time.Time    `json:"timestamp"`
}

type WelcomePayload struct {
	Device DeviceView `json:"device"`
}

type LoadHistoryPayload struct {
	Entries []EntryView `json:"entries"`
}

type NewMessagePayload struct {
	Entry EntryView `json:"entry"`
}

type UserUpdatePayload struct {
	Devices []DeviceView `json:"devices"`
	Count   int          `json:"count"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// decodeCommand parses one inbound frame into its typed command.
func decodeCommand(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Event {
	case EventIdentify:
		var p IdentifyPayload
		if err := decodePayload(env.Data, &p); err != nil {
			return nil, err
		}
		p.Name = strings.TrimSpace(p.Name)
		p.Platform = strings.TrimSpace(p.Platform)
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return p, nil
	case EventSendMessage:
		var p SendMessagePayload
		if err := decodePayload(env.Data, &p); err != nil {
			return nil, err
		}
		p.Content = strings.TrimSpace(p.Content)
		if p.Content == "" {
			return nil, fmt.Errorf("%w: empty content", ErrMalformedEvent)
		}
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return p, nil
	case EventClearHistory:
		return clearHistoryCommand{}, nil
	case EventRequestRoster:
		return requestRosterCommand{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrMalformedEvent, env.Event)
	}
}

func decodePayload(data json.RawMessage, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

func encodeEvent(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func toDeviceView(d presence.Device) DeviceView {
	return DeviceView{ID: d.ConnectionID, Name: d.Name, Platform: d.Platform}
}

func toDeviceViews(devices []presence.Device) []DeviceView {
	return lo.Map(devices, func(d presence.Device, _ int) DeviceView { return toDeviceView(d) })
}

func toEntryView(entry session.Entry) (EntryView, error) {
	switch e := entry.(type) {
	case session.TextEntry:
		return EntryView{
			Type:      session.KindText,
			ID:        string(e.ID),
			Content:   e.Content,
			Sender:    e.Sender,
			SenderID:  e.SenderID,
			Timestamp: e.Timestamp,
		}, nil
	case session.FileEntry:
		return EntryView{
			Type:      session.KindFile,
			ID:        string(e.ID),
			Filename:  e.Filename,
			Size:      lo.ToPtr(e.Size),
			FileID:    e.BlobID,
			MimeType:  e.MimeType,
			Category:  e.Category,
			Sender:    e.Sender,
			SenderID:  e.SenderID,
			Timestamp: e.Timestamp,
		}, nil
	default:
		return EntryView{}, fmt.Errorf("unsupported entry type %T", entry)
	}
}

func toEntryViews(entries []session.Entry) ([]EntryView, error) {
	views := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		view, err := toEntryView(entry)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
