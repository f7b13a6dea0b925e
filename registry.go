package main

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// RoomManager holds the set of hubs keyed by room ID, so each room is
// its own isolated session. Rooms share nothing but the question list.
type RoomManager struct {
	mu        sync.Mutex
	rooms     map[string]*Hub
	cfg       *Config
	clock     clockwork.Clock
	questions []Question
}

func newRoomManager(cfg *Config, clock clockwork.Clock, questions []Question) *RoomManager {
	m := &RoomManager{
		rooms:     make(map[string]*Hub),
		cfg:       cfg,
		clock:     clock,
		questions: questions,
	}

	if cfg.sessionTimeout > 0 {
		go m.reaperLoop()
	}

	return m
}

// create allocates a room with a fresh session and an empty scoreboard.
// The creator becomes moderator.
func (m *RoomManager) create(roomID, creatorIdentity, creatorName string) (*Hub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[roomID]; exists {
		return nil, errRoomAlreadyExists
	}

	hub := newHub(roomID, creatorIdentity, creatorName, m)
	m.rooms[roomID] = hub
	go hub.run()

	log.Info().Str("room", roomID).Msg("room created")

	return hub, nil
}

func (m *RoomManager) lookup(roomID string) (*Hub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.rooms[roomID]
	if !ok {
		return nil, errRoomNotFound
	}

	return hub, nil
}

// remove frees a room ID for reuse. The hub is compared so a torn-down
// room never evicts a successor that already claimed its ID.
func (m *RoomManager) remove(roomID string, h *Hub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[roomID] == h {
		delete(m.rooms, roomID)
	}
}

func (m *RoomManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rooms)
}

// reaperLoop periodically shuts down rooms that have been idle longer
// than the configured session timeout.
func (m *RoomManager) reaperLoop() {
	ticker := m.clock.NewTicker(m.cfg.sessionTimeout / 2)
	for range ticker.Chan() {
		cutoff := m.clock.Now().Add(-m.cfg.sessionTimeout)

		m.mu.Lock()
		var idle []*Hub
		for _, hub := range m.rooms {
			if hub.idleSince().Before(cutoff) {
				idle = append(idle, hub)
			}
		}
		m.mu.Unlock()

		for _, hub := range idle {
			log.Info().Str("room", hub.id).Msg("reaping idle room")
			hub.requestShutdown()
		}
	}
}
