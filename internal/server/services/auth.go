package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/server/auth"
	"github.com/dmitrijs2005/vaultsync/internal/server/config"
	"github.com/dmitrijs2005/vaultsync/internal/server/models"
	"github.com/dmitrijs2005/vaultsync/internal/server/syncstore"
	"github.com/go-playground/validator/v10"
)

type RegisterRequest struct {
	VaultID  string `validate:"required,max=256"`
	DeviceID string `validate:"required,max=128"`
	Salt     []byte `validate:"omitempty,min=16"`
	Verifier []byte `validate:"required,len=32"`
}

// Registration is the outcome of a successful device registration.
type Registration struct {
	AccessToken    string
	Created        bool
	CurrentVersion int64
}

// AuthService admits devices into vaults. The first device to register a
// vault id creates it with its salt and verifier; later devices must
// present the same verifier, proving they derived the same master key.
type AuthService struct {
	registry                    syncstore.Registry
	logger                      logging.Logger
	validate                    *validator.Validate
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewAuthService(r syncstore.Registry, l logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		registry:                    r,
		logger:                      l.With("module", "auth_service"),
		validate:                    validator.New(),
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// GetSalt returns the vault's salt, or a fresh random salt if the vault is
// unknown so that existence does not leak. A client registering with that
// salt creates the vault.
func (s *AuthService) GetSalt(ctx context.Context, vaultID string) ([]byte, error) {
	if vaultID == "" {
		return nil, fmt.Errorf("%w: empty vault id", common.ErrorValidation)
	}
	v, err := s.registry.GetVault(ctx, vaultID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return cryptox.NewSalt()
		}
		return nil, err
	}
	return v.Salt, nil
}

func (s *AuthService) RegisterDevice(ctx context.Context, req RegisterRequest) (*Registration, error) {
	if err := validate(s.validate, req); err != nil {
		return nil, err
	}

	v, created, err := s.getOrCreateVault(ctx, req)
	if err != nil {
		return nil, err
	}
	if !created && !cryptox.VerifierEqual(v.Verifier, req.Verifier) {
		s.logger.Warn(ctx, "verifier mismatch", "vault_id", req.VaultID, "device_id", req.DeviceID)
		return nil, common.ErrorUnauthorized
	}

	if err := s.registry.RegisterDevice(ctx, req.VaultID, req.DeviceID); err != nil {
		return nil, err
	}

	token, err := auth.GenerateToken(req.VaultID, req.DeviceID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "device registered", "vault_id", req.VaultID, "device_id", req.DeviceID, "created", created)
	return &Registration{AccessToken: token, Created: created, CurrentVersion: v.CurrentVersion}, nil
}

func (s *AuthService) getOrCreateVault(ctx context.Context, req RegisterRequest) (*models.Vault, bool, error) {
	v, err := s.registry.GetVault(ctx, req.VaultID)
	if err == nil {
		return v, false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, false, err
	}
	if len(req.Salt) == 0 {
		return nil, false, fmt.Errorf("%w: salt is required to create a vault", common.ErrorValidation)
	}

	v = &models.Vault{ID: req.VaultID, Salt: req.Salt, Verifier: req.Verifier}
	err = s.registry.CreateVault(ctx, v)
	if errors.Is(err, common.ErrorAlreadyExists) {
		// lost the creation race, fall back to the normal check
		v, err = s.registry.GetVault(ctx, req.VaultID)
		return v, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
