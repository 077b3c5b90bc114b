package realtime

import (
	"time"

	"sprinta/internal/core/domain"
)

// Observer receives registry and dispatch events, typically to export metrics.
type Observer interface {
	ConnectionsChanged(clients, users int)
	EventDelivered(name domain.EventName, n int)
	EventFailed(name domain.EventName, n int)
	EventDropped(name domain.EventName)
	DispatchDuration(name domain.EventName, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ConnectionsChanged(int, int)                      {}
func (nopObserver) EventDelivered(domain.EventName, int)             {}
func (nopObserver) EventFailed(domain.EventName, int)                {}
func (nopObserver) EventDropped(domain.EventName)                    {}
func (nopObserver) DispatchDuration(domain.EventName, time.Duration) {}

func NopObserver() Observer { return nopObserver{} }
