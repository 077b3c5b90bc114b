package realtime

import (
	"net/http"
	"time"
)

// Sink is the transport side of a channel. Implementations need not be safe
// for concurrent use; Channel serialises calls.
type Sink interface {
	WriteEvent(ev Event) error
}

// SSESink writes text/event-stream frames to an HTTP response and flushes
// after every frame.
type SSESink struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
}

func NewSSESink(w http.ResponseWriter, writeTimeout time.Duration) *SSESink {
	return &SSESink{
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
	}
}

func (s *SSESink) WriteEvent(ev Event) error {
	return s.write(ev.Frame())
}

func (s *SSESink) WriteRetry(d time.Duration) error {
	return s.write(RetryFrame(d.Milliseconds()))
}

func (s *SSESink) write(frame []byte) error {
	if s.writeTimeout > 0 {
		// Not every ResponseWriter supports deadlines (httptest.ResponseRecorder
		// does not); a slow client is then only bounded by the server timeouts.
		_ = s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return s.rc.Flush()
}
