package server

import (
	"sort"
	"sync"

	"github.com/presbrey/ircd/irc"
)

// ChannelRegistry maps folded channel names to channels. It performs no
// broadcasting; it only stores channels and drops them once empty.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

// NewChannelRegistry creates an empty registry
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{
		channels: make(map[string]*Channel),
	}
}

// GetOrCreate returns the named channel, creating it if absent.
// created reports whether this call made the channel.
func (r *ChannelRegistry) GetOrCreate(name string) (ch *Channel, created bool) {
	key := irc.Fold(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[key]; ok {
		return ch, false
	}
	ch = NewChannel(name)
	r.channels[key] = ch
	return ch, true
}

// Get returns the named channel or nil
func (r *ChannelRegistry) Get(name string) *Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.channels[irc.Fold(name)]
}

// RemoveIfEmpty deletes the channel when it has no members left and
// reports whether it did
func (r *ChannelRegistry) RemoveIfEmpty(ch *Channel) bool {
	if ch.Len() > 0 {
		return false
	}

	key := irc.Fold(ch.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channels[key] != ch {
		return false
	}
	delete(r.channels, key)
	return true
}

// Len returns the number of channels
func (r *ChannelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels)
}

// Channels returns a snapshot of all channels sorted by name
func (r *ChannelRegistry) Channels() []*Channel {
	r.mu.RLock()
	channels := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.mu.RUnlock()

	sort.Slice(channels, func(i, j int) bool {
		return irc.Fold(channels[i].Name) < irc.Fold(channels[j].Name)
	})
	return channels
}
