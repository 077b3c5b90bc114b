package client

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

// Event is one message read from a text/event-stream body.
type Event struct {
	Name  string
	Data  []byte
	ID    string
	Retry int // milliseconds; 0 when the frame carried no retry field
}

func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// EventReader parses text/event-stream framing. Comment lines are skipped
// and an event without an "event:" field is named "message".
type EventReader struct {
	r *bufio.Reader
}

func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{r: bufio.NewReader(r)}
}

// Next blocks until a complete event has been read. It returns io.EOF when
// the stream ends between events and io.ErrUnexpectedEOF when it ends inside one.
func (er *EventReader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
		started bool
	)

	for {
		line, err := er.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if started || line != "" {
					return Event{}, io.ErrUnexpectedEOF
				}
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !started {
				continue
			}
			if !hasData && ev.Retry > 0 && ev.Name == "" {
				// retry-only frame
				return ev, nil
			}
			if ev.Name == "" {
				ev.Name = "message"
			}
			ev.Data = []byte(strings.Join(data, "\n"))
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		started = true
		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field = line[:i]
			value = strings.TrimPrefix(line[i+1:], " ")
		}

		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			ev.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil {
				ev.Retry = ms
			}
		}
	}
}
