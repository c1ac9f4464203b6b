// Package services contains the client's vault service: joining and
// unlocking vaults, editing entries in the sealed local copy and the
// load/commit pair the sync orchestrator works through.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/cursors"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/localvaults"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

var ErrLocked = errors.New("vault is locked")

// Remote is the part of the transport needed to join a vault.
type Remote interface {
	GetSalt(ctx context.Context, vaultID string) ([]byte, error)
	RegisterDevice(ctx context.Context, vaultID, deviceID string, salt, verifier []byte) (*client.Registration, error)
}

// LocalState is a decrypted local vault together with its sync cursor.
// Fingerprint is taken at load time and handed back to Commit.
type LocalState struct {
	Store       *vault.RecordStore
	Cursor      models.SyncCursor
	Fingerprint uint64
}

// Dirty reports unpushed local edits.
func (s *LocalState) Dirty() bool {
	return s.Fingerprint != s.Cursor.SyncedFingerprint
}

type session struct {
	key   []byte
	codec *vault.Codec
}

type VaultService struct {
	db       *sql.DB
	remote   Remote
	logger   logging.Logger
	deviceID string
	clock    *vault.HybridClock
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewVaultService(db *sql.DB, remote Remote, deviceID string, l logging.Logger) *VaultService {
	return &VaultService{
		db:       db,
		remote:   remote,
		logger:   l.With("module", "vault_service"),
		deviceID: deviceID,
		clock:    vault.NewHybridClock(deviceID),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

func (s *VaultService) DeviceID() string {
	return s.deviceID
}

// Clock is the edit clock of this device. The orchestrator feeds remote
// timestamps into it.
func (s *VaultService) Clock() *vault.HybridClock {
	return s.clock
}

func (s *VaultService) openSession(key []byte) (*session, error) {
	c, err := cryptox.NewAESCipher(key)
	if err != nil {
		return nil, err
	}
	return &session{key: key, codec: vault.NewCodec(c)}, nil
}

func (s *VaultService) session(vaultID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ss, ok := s.sessions[vaultID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, vaultID)
	}
	return ss, nil
}

func (s *VaultService) keep(vaultID string, ss *session) {
	s.mu.Lock()
	s.sessions[vaultID] = ss
	s.mu.Unlock()
}

// Codec returns the codec of an unlocked vault.
func (s *VaultService) Codec(vaultID string) (*vault.Codec, error) {
	ss, err := s.session(vaultID)
	if err != nil {
		return nil, err
	}
	return ss.codec, nil
}

// Init joins vaultID on the server, creating it when nobody has yet, and
// prepares the local copy. The vault stays unlocked afterwards.
func (s *VaultService) Init(ctx context.Context, vaultID string, password []byte) (*client.Registration, error) {
	if vaultID == "" {
		return nil, fmt.Errorf("%w: vault id is required", common.ErrorValidation)
	}

	salt, err := s.remote.GetSalt(ctx, vaultID)
	if err != nil {
		return nil, fmt.Errorf("get salt: %w", err)
	}
	key := cryptox.DeriveMasterKey(password, salt)

	reg, err := s.remote.RegisterDevice(ctx, vaultID, s.deviceID, salt, cryptox.MakeVerifier(key))
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}

	ss, err := s.openSession(key)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := metadata.NewSQLiteRepository(tx).Set(ctx, metadata.TokenKey(vaultID), []byte(reg.AccessToken)); err != nil {
			return err
		}

		lvRepo := localvaults.NewSQLiteRepository(tx)
		lv, err := lvRepo.Get(ctx, vaultID)
		switch {
		case err == nil:
			if _, err := ss.codec.Open(lv.Sealed); err != nil {
				return fmt.Errorf("%w: local copy of %s does not open with this password", client.ErrUnauthorized, vaultID)
			}
			return nil
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		empty := vault.NewRecordStore(vaultID)
		sealed, err := ss.codec.Seal(empty)
		if err != nil {
			return err
		}
		if err := lvRepo.Save(ctx, &models.LocalVault{VaultID: vaultID, Salt: salt, Sealed: sealed, UpdatedAt: s.now()}); err != nil {
			return err
		}
		return cursors.NewSQLiteRepository(tx).Save(ctx, &models.SyncCursor{
			VaultID:           vaultID,
			DeviceID:          s.deviceID,
			SyncedFingerprint: empty.Fingerprint(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.keep(vaultID, ss)
	s.logger.Info(ctx, "vault joined", "vault_id", vaultID, "created", reg.Created, "server_version", reg.CurrentVersion)
	return reg, nil
}

// Unlock derives the vault key from password and checks it against the
// local copy. No network access is needed.
func (s *VaultService) Unlock(ctx context.Context, vaultID string, password []byte) error {
	lv, err := localvaults.NewSQLiteRepository(s.db).Get(ctx, vaultID)
	if err != nil {
		return fmt.Errorf("vault %s: %w", vaultID, err)
	}

	ss, err := s.openSession(cryptox.DeriveMasterKey(password, lv.Salt))
	if err != nil {
		return err
	}
	st, err := ss.codec.Open(lv.Sealed)
	if err != nil {
		if errors.Is(err, common.ErrDecryption) {
			return fmt.Errorf("%w: wrong password for %s", client.ErrUnauthorized, vaultID)
		}
		return err
	}

	s.clock.Observe(st.MaxTimestamp())
	s.keep(vaultID, ss)
	return nil
}

// Token returns the stored access token of vaultID.
func (s *VaultService) Token(ctx context.Context, vaultID string) (string, error) {
	token, err := metadata.GetString(ctx, metadata.NewSQLiteRepository(s.db), metadata.TokenKey(vaultID))
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("token for %s: %w", vaultID, common.ErrorNotFound)
	}
	return token, nil
}

// Reauth registers the device again with the key of an unlocked vault and
// stores the new token.
func (s *VaultService) Reauth(ctx context.Context, vaultID string) (string, error) {
	ss, err := s.session(vaultID)
	if err != nil {
		return "", err
	}
	lv, err := localvaults.NewSQLiteRepository(s.db).Get(ctx, vaultID)
	if err != nil {
		return "", err
	}

	reg, err := s.remote.RegisterDevice(ctx, vaultID, s.deviceID, lv.Salt, cryptox.MakeVerifier(ss.key))
	if err != nil {
		return "", err
	}
	if err := metadata.NewSQLiteRepository(s.db).Set(ctx, metadata.TokenKey(vaultID), []byte(reg.AccessToken)); err != nil {
		return "", err
	}
	s.logger.Debug(ctx, "token renewed", "vault_id", vaultID)
	return reg.AccessToken, nil
}

// Vaults lists the ids of the locally known vaults.
func (s *VaultService) Vaults(ctx context.Context) ([]string, error) {
	return localvaults.NewSQLiteRepository(s.db).List(ctx)
}

// Forget drops the local copy of vaultID with its token and sync cursors
// and locks it. The server side is left alone, so the vault can be joined
// again with init.
func (s *VaultService) Forget(ctx context.Context, vaultID string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lvRepo := localvaults.NewSQLiteRepository(tx)
		if _, err := lvRepo.Get(ctx, vaultID); err != nil {
			return fmt.Errorf("vault %s: %w", vaultID, err)
		}
		if err := lvRepo.Delete(ctx, vaultID); err != nil {
			return err
		}
		if err := metadata.NewSQLiteRepository(tx).Delete(ctx, metadata.TokenKey(vaultID)); err != nil {
			return err
		}
		return cursors.NewSQLiteRepository(tx).Delete(ctx, vaultID)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, vaultID)
	s.mu.Unlock()
	s.logger.Info(ctx, "vault forgotten", "vault_id", vaultID)
	return nil
}

func (s *VaultService) open(ctx context.Context, tx dbx.DBTX, vaultID string) (*models.LocalVault, *vault.RecordStore, error) {
	ss, err := s.session(vaultID)
	if err != nil {
		return nil, nil, err
	}
	lv, err := localvaults.NewSQLiteRepository(tx).Get(ctx, vaultID)
	if err != nil {
		return nil, nil, fmt.Errorf("vault %s: %w", vaultID, err)
	}
	st, err := ss.codec.Open(lv.Sealed)
	if err != nil {
		return nil, nil, err
	}
	return lv, st, nil
}

func (s *VaultService) save(ctx context.Context, tx dbx.DBTX, lv *models.LocalVault, st *vault.RecordStore) error {
	ss, err := s.session(lv.VaultID)
	if err != nil {
		return err
	}
	sealed, err := ss.codec.Seal(st)
	if err != nil {
		return err
	}
	lv.Sealed = sealed
	lv.UpdatedAt = s.now()
	return localvaults.NewSQLiteRepository(tx).Save(ctx, lv)
}

// mutate runs fn against the decrypted local copy and seals the result, all
// inside one transaction.
func (s *VaultService) mutate(ctx context.Context, vaultID string, fn func(st *vault.RecordStore) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lv, st, err := s.open(ctx, tx, vaultID)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return s.save(ctx, tx, lv, st)
	})
}

// Load returns the local copy and cursor of vaultID. Store.Version is the
// cursor's last known server version.
func (s *VaultService) Load(ctx context.Context, vaultID string) (*LocalState, error) {
	_, st, err := s.open(ctx, s.db, vaultID)
	if err != nil {
		return nil, err
	}

	cur, err := cursors.NewSQLiteRepository(s.db).Get(ctx, vaultID, s.deviceID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		cur = &models.SyncCursor{
			VaultID:           vaultID,
			DeviceID:          s.deviceID,
			SyncedFingerprint: vault.NewRecordStore(vaultID).Fingerprint(),
		}
	case err != nil:
		return nil, err
	}

	st.Version = cur.LastKnownVersion
	return &LocalState{Store: st, Cursor: *cur, Fingerprint: st.Fingerprint()}, nil
}

// Commit stores the result of a sync cycle. If the local copy changed since
// it was loaded (loaded is the fingerprint Load returned), those edits are
// merged into synced so they survive; the cursor keeps synced's fingerprint
// and the next cycle sees the vault as dirty.
func (s *VaultService) Commit(ctx context.Context, vaultID string, loaded uint64, synced *vault.RecordStore, cursor models.SyncCursor) error {
	cursor.VaultID = vaultID
	cursor.DeviceID = s.deviceID

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lv, current, err := s.open(ctx, tx, vaultID)
		if err != nil {
			return err
		}

		next := synced
		if current.Fingerprint() != loaded {
			next = vault.Merge(current, synced, vault.StrategyMerge).Store
			s.logger.Debug(ctx, "local edits during sync kept", "vault_id", vaultID)
		}

		if err := s.save(ctx, tx, lv, next); err != nil {
			return err
		}
		return cursors.NewSQLiteRepository(tx).Save(ctx, &cursor)
	})
}
