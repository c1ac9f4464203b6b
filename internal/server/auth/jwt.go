// Package auth issues and verifies the device tokens. A token binds a
// device to one vault; every sync RPC acts on the vault named in it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the standard claims plus the vault and device the token was
// issued to.
type Claims struct {
	jwt.RegisteredClaims
	VaultID  string `json:"vault_id"`
	DeviceID string `json:"device_id"`
}

func GenerateToken(vaultID, deviceID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		VaultID:  vaultID,
		DeviceID: deviceID,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies the signature and expiry and returns the claims.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.VaultID == "" || claims.DeviceID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
