package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sprinta/internal/core/domain"
)

// Event is an encoded, transport-neutral stream message.
type Event struct {
	Name domain.EventName
	Data json.RawMessage
}

// Encode marshals payload into a single-line JSON document.
func Encode(name domain.EventName, payload interface{}) (Event, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	// json.Encoder terminates with a newline and never emits raw newlines
	// inside a value.
	return Event{Name: name, Data: bytes.TrimRight(buf.Bytes(), "\n")}, nil
}

// Frame renders the event in text/event-stream framing.
func (e Event) Frame() []byte {
	frame := make([]byte, 0, len(e.Name)+len(e.Data)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, e.Name...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, e.Data...)
	frame = append(frame, "\n\n"...)
	return frame
}

func FormatFrame(name domain.EventName, payload interface{}) ([]byte, error) {
	ev, err := Encode(name, payload)
	if err != nil {
		return nil, err
	}
	return ev.Frame(), nil
}

// RetryFrame tells EventSource clients how long to wait before reconnecting.
func RetryFrame(millis int64) []byte {
	return []byte(fmt.Sprintf("retry: %d\n\n", millis))
}
