package realtime

import (
	"sort"
	"sync"

	"sprinta/internal/core/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry maps users to their live channels. Users without channels are
// not kept.
type Registry struct {
	mu       sync.RWMutex
	clients  map[domain.UserID]map[domain.ChannelID]*Channel
	logger   *zap.SugaredLogger
	observer Observer
}

func NewRegistry(logger *zap.SugaredLogger, observer Observer) *Registry {
	if observer == nil {
		observer = NopObserver()
	}
	return &Registry{
		clients:  make(map[domain.UserID]map[domain.ChannelID]*Channel),
		logger:   logger,
		observer: observer,
	}
}

// AddClient registers a new channel for userID and returns its handle.
func (r *Registry) AddClient(userID domain.UserID, sink Sink) *Channel {
	ch := newChannel(domain.ChannelID(uuid.NewString()), userID, sink)
	r.insert(ch)
	return ch
}

// Connect is AddClient with a greeting: hello runs before the channel becomes
// visible to dispatchers, so whatever it sends is the first thing the client
// sees. The channel is not registered if hello fails.
func (r *Registry) Connect(userID domain.UserID, sink Sink, hello func(*Channel) error) (*Channel, error) {
	ch := newChannel(domain.ChannelID(uuid.NewString()), userID, sink)
	if hello != nil {
		if err := hello(ch); err != nil {
			ch.Close()
			return nil, err
		}
	}
	r.insert(ch)
	return ch, nil
}

func (r *Registry) insert(ch *Channel) {
	userID := ch.userID

	r.mu.Lock()
	set, ok := r.clients[userID]
	if !ok {
		set = make(map[domain.ChannelID]*Channel)
		r.clients[userID] = set
	}
	set[ch.id] = ch
	clients, users := r.countLocked()
	r.mu.Unlock()

	r.observer.ConnectionsChanged(clients, users)
	r.logger.Infow("Client connected",
		"user_id", userID,
		"client_id", ch.id,
		"user_clients", len(set),
	)
}

// RemoveClientByRef unregisters and closes ch. Removing an already removed
// channel is a no-op that returns false.
func (r *Registry) RemoveClientByRef(ch *Channel) bool {
	if ch == nil {
		return false
	}
	return r.remove(ch.userID, ch.id)
}

func (r *Registry) RemoveClient(userID domain.UserID, id domain.ChannelID) bool {
	return r.remove(userID, id)
}

func (r *Registry) remove(userID domain.UserID, id domain.ChannelID) bool {
	r.mu.Lock()
	set, ok := r.clients[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	ch, ok := set[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.clients, userID)
	}
	clients, users := r.countLocked()
	r.mu.Unlock()

	// Close outside the registry lock: it may wait for an in-flight write.
	ch.Close()

	r.observer.ConnectionsChanged(clients, users)
	r.logger.Infow("Client disconnected",
		"user_id", userID,
		"client_id", id,
		"remaining_clients", clients,
	)
	return true
}

// ClientsForUser returns a snapshot of the open channels of userID.
func (r *Registry) ClientsForUser(userID domain.UserID) []*Channel {
	r.mu.RLock()
	set := r.clients[userID]
	out := make([]*Channel, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	r.mu.RUnlock()

	open := out[:0]
	for _, ch := range out {
		if !ch.Closed() {
			open = append(open, ch)
		}
	}
	return open
}

func (r *Registry) Users() []domain.UserID {
	r.mu.RLock()
	users := make([]domain.UserID, 0, len(r.clients))
	for userID := range r.clients {
		users = append(users, userID)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

func (r *Registry) Stats() domain.ConnectionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.ConnectionStats{
		TotalUsers:    len(r.clients),
		ClientsByUser: make(map[domain.UserID]int, len(r.clients)),
	}
	for userID, set := range r.clients {
		stats.ClientsByUser[userID] = len(set)
		stats.TotalClients += len(set)
	}
	return stats
}

// Len returns the total number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients, _ := r.countLocked()
	return clients
}

// CloseAll closes and removes every channel. Used on shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	all := r.clients
	r.clients = make(map[domain.UserID]map[domain.ChannelID]*Channel)
	r.mu.Unlock()

	closed := 0
	for _, set := range all {
		for _, ch := range set {
			if ch.Close() {
				closed++
			}
		}
	}

	r.observer.ConnectionsChanged(0, 0)
	if closed > 0 {
		r.logger.Infow("Closed all clients", "count", closed)
	}
	return closed
}

func (r *Registry) countLocked() (clients, users int) {
	for _, set := range r.clients {
		clients += len(set)
	}
	return clients, len(r.clients)
}
