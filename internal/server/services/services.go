// Package services contains the server-side business logic sitting between
// the gRPC handlers and the snapshot store.
package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/go-playground/validator/v10"
)

// Notifier is told about every accepted push.
type Notifier interface {
	Publish(vaultID string, version int64, deviceID string)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, int64, string) {}

// validate runs struct validation and maps failures onto common.ErrorValidation.
func validate(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: field %s failed on %q", common.ErrorValidation, verrs[0].Field(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", common.ErrorValidation, err)
}
