// Package notify pushes "vault updated" events to connected devices over
// websockets so they can pull without waiting for their next poll.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/logging"
)

const EventVaultUpdated = "vault_updated"

// Event is the only message the server sends. It names the new version and
// the device that pushed it; the content stays on the sync endpoint.
type Event struct {
	Type     string `json:"type"`
	VaultID  string `json:"vault_id"`
	Version  int64  `json:"version"`
	DeviceID string `json:"device_id"`
}

type Timings struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

// Hub tracks connections per vault.
type Hub struct {
	mu      sync.RWMutex
	vaults  map[string]map[string]*client
	timings Timings
	logger  logging.Logger
}

func NewHub(t Timings, l logging.Logger) *Hub {
	return &Hub{
		vaults:  make(map[string]map[string]*client),
		timings: t,
		logger:  l.With("module", "notify"),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.vaults[c.vaultID] == nil {
		h.vaults[c.vaultID] = make(map[string]*client)
	}
	h.vaults[c.vaultID][c.id] = c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	conns, ok := h.vaults[c.vaultID]
	if !ok {
		return
	}
	if _, ok := conns[c.id]; !ok {
		return
	}
	delete(conns, c.id)
	if len(conns) == 0 {
		delete(h.vaults, c.vaultID)
	}
	close(c.send)
}

// Publish notifies every connection of vaultID except those of the device
// that made the push. Slow consumers are dropped.
func (h *Hub) Publish(vaultID string, version int64, deviceID string) {
	msg, err := json.Marshal(Event{Type: EventVaultUpdated, VaultID: vaultID, Version: version, DeviceID: deviceID})
	if err != nil {
		h.logger.Error(context.Background(), "marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.vaults[vaultID] {
		if c.deviceID == deviceID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn(context.Background(), "send buffer full, dropping connection", "vault_id", vaultID, "device_id", c.deviceID)
			h.removeLocked(c)
		}
	}
}

// Connections returns the number of open connections for vaultID.
func (h *Hub) Connections(vaultID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vaults[vaultID])
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.vaults {
		for _, c := range conns {
			h.removeLocked(c)
		}
	}
}
