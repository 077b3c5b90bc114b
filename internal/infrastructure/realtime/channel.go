package realtime

import (
	"fmt"
	"sync"
	"time"

	"sprinta/internal/core/domain"
)

// Channel is one live connection of a user. Writes are serialised and no
// write reaches the sink after Close returns.
type Channel struct {
	id        domain.ChannelID
	userID    domain.UserID
	createdAt time.Time
	sink      Sink

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newChannel(id domain.ChannelID, userID domain.UserID, sink Sink) *Channel {
	return &Channel{
		id:        id,
		userID:    userID,
		createdAt: time.Now(),
		sink:      sink,
		done:      make(chan struct{}),
	}
}

func (c *Channel) ID() domain.ChannelID  { return c.id }
func (c *Channel) UserID() domain.UserID { return c.userID }
func (c *Channel) CreatedAt() time.Time  { return c.createdAt }
func (c *Channel) Done() <-chan struct{} { return c.done }

// Send writes ev to the sink. A failed write closes the channel.
func (c *Channel) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrChannelClosed
	}
	if err := c.sink.WriteEvent(ev); err != nil {
		c.closeLocked()
		return fmt.Errorf("write %s to channel %s: %w", ev.Name, c.id, err)
	}
	return nil
}

// Close marks the channel closed. It waits for an in-flight write and reports
// whether this call did the closing.
func (c *Channel) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closeLocked()
	return true
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) closeLocked() {
	c.closed = true
	close(c.done)
}
