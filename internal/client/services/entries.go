package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/google/uuid"
)

// Put stores e under id, or under a new id when id is empty, and returns
// the id used.
func (s *VaultService) Put(ctx context.Context, vaultID, id string, e models.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}
	payload, err := e.Marshal()
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}

	err = s.mutate(ctx, vaultID, func(st *vault.RecordStore) error {
		_, err := st.Put(id, payload, s.clock.Stamp())
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *VaultService) Get(ctx context.Context, vaultID, id string) (models.Entry, error) {
	_, st, err := s.open(ctx, s.db, vaultID)
	if err != nil {
		return models.Entry{}, err
	}
	r, ok := st.Lookup(id)
	switch {
	case !ok:
		return models.Entry{}, fmt.Errorf("entry %q: %w", id, common.ErrorNotFound)
	case r.Deleted:
		return models.Entry{}, fmt.Errorf("entry %q was deleted: %w", id, common.ErrorNotFound)
	}
	return models.UnmarshalEntry(r.Payload)
}

// Remove replaces the entry with a tombstone.
func (s *VaultService) Remove(ctx context.Context, vaultID, id string) error {
	return s.mutate(ctx, vaultID, func(st *vault.RecordStore) error {
		_, err := st.Delete(id, s.clock.Stamp())
		return err
	})
}

// List returns the overviews of the live entries matching query, sorted by
// id. An empty query lists everything. Entries whose payload cannot be
// decoded are skipped with a warning.
func (s *VaultService) List(ctx context.Context, vaultID, query string) ([]models.Overview, error) {
	_, st, err := s.open(ctx, s.db, vaultID)
	if err != nil {
		return nil, err
	}

	live := st.Live()
	out := make([]models.Overview, 0, len(live))
	for _, r := range live {
		e, err := models.UnmarshalEntry(r.Payload)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable entry", "vault_id", vaultID, "id", r.ID, "error", err)
			continue
		}
		if !e.Matches(query) {
			continue
		}
		out = append(out, models.Overview{ID: r.ID, Title: e.Title, Category: e.Category})
	}
	return out, nil
}
