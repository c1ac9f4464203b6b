package syncstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/server/models"
)

type memVault struct {
	// mu guards vault.CurrentVersion and snapshots. Push holds it for the
	// whole check-and-append.
	mu        sync.RWMutex
	vault     models.Vault
	snapshots []models.Snapshot

	devMu   sync.Mutex
	devices map[string]*models.Device
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	vaults map[string]*memVault
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vaults: make(map[string]*memVault), now: time.Now}
}

func (m *MemoryStore) vault(id string) (*memVault, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vaults[id]
	if !ok {
		return nil, fmt.Errorf("vault %q: %w", id, common.ErrorNotFound)
	}
	return v, nil
}

func (m *MemoryStore) CreateVault(_ context.Context, v *models.Vault) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vaults[v.ID]; ok {
		return common.ErrorAlreadyExists
	}
	v.CurrentVersion = 0
	v.CreatedAt = m.now()
	m.vaults[v.ID] = &memVault{vault: *v, devices: make(map[string]*models.Device)}
	return nil
}

func (m *MemoryStore) GetVault(_ context.Context, id string) (*models.Vault, error) {
	v, err := m.vault(id)
	if err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := v.vault
	return &out, nil
}

func (m *MemoryStore) RegisterDevice(_ context.Context, vaultID, deviceID string) error {
	v, err := m.vault(vaultID)
	if err != nil {
		return err
	}
	v.device(deviceID, m.now())
	return nil
}

// device returns the device entry, creating it on first sight.
func (v *memVault) device(id string, now time.Time) *models.Device {
	v.devMu.Lock()
	defer v.devMu.Unlock()
	d, ok := v.devices[id]
	if !ok {
		d = &models.Device{VaultID: v.vault.ID, DeviceID: id, FirstSeenAt: now}
		v.devices[id] = d
	}
	return d
}

func (v *memVault) touch(id string, now time.Time, f func(d *models.Device)) {
	d := v.device(id, now)
	v.devMu.Lock()
	f(d)
	v.devMu.Unlock()
}

func (m *MemoryStore) Push(_ context.Context, vaultID, deviceID string, expectedBase int64, blob []byte) (int64, error) {
	if err := checkBlob(vaultID, blob); err != nil {
		return 0, err
	}
	v, err := m.vault(vaultID)
	if err != nil {
		return 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.vault.CurrentVersion != expectedBase {
		return 0, &common.ConflictError{Expected: expectedBase, Current: v.vault.CurrentVersion}
	}

	now := m.now()
	next := v.vault.CurrentVersion + 1
	v.snapshots = append(v.snapshots, models.Snapshot{
		VaultID:   vaultID,
		Version:   next,
		DeviceID:  deviceID,
		CreatedAt: now,
		Digest:    digest(blob),
		Size:      int64(len(blob)),
		Blob:      append([]byte(nil), blob...),
	})
	v.vault.CurrentVersion = next
	v.touch(deviceID, now, func(d *models.Device) { d.LastPushAt = now })

	return next, nil
}

func (m *MemoryStore) Pull(_ context.Context, vaultID, deviceID string, since int64) (PullResult, error) {
	v, err := m.vault(vaultID)
	if err != nil {
		return PullResult{}, err
	}

	v.mu.RLock()
	latest := v.vault.CurrentVersion
	var snap *models.Snapshot
	if since < latest {
		s := v.snapshots[len(v.snapshots)-1]
		s.Blob = append([]byte(nil), s.Blob...)
		snap = &s
	}
	v.mu.RUnlock()

	now := m.now()
	v.touch(deviceID, now, func(d *models.Device) { d.LastPullAt = now })

	if snap == nil {
		return PullResult{Latest: latest, NotModified: true}, nil
	}
	return PullResult{Snapshot: snap, Latest: latest}, nil
}

func (m *MemoryStore) ListVersions(_ context.Context, vaultID string, limit int) ([]models.Snapshot, error) {
	v, err := m.vault(vaultID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		return nil, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]models.Snapshot, 0, min(limit, len(v.snapshots)))
	for i := len(v.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		s := v.snapshots[i]
		s.Blob = nil
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryStore) ListDevices(_ context.Context, vaultID string) ([]models.Device, error) {
	v, err := m.vault(vaultID)
	if err != nil {
		return nil, err
	}

	v.devMu.Lock()
	out := make([]models.Device, 0, len(v.devices))
	for _, d := range v.devices {
		out = append(out, *d)
	}
	v.devMu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeenAt.Equal(out[j].FirstSeenAt) {
			return out[i].FirstSeenAt.Before(out[j].FirstSeenAt)
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out, nil
}
