package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"susu_keeper/internal/domain/duty"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")
var ErrDutyAlreadyInactive = errors.New("scheduled duty is already inactive")

// AdminService gates the operator commands behind the configured admin Telegram ID.
type AdminService struct {
	registry        *TaskRegistry
	adminTelegramID int64
}

func NewAdminService(registry *TaskRegistry, adminID int64) *AdminService {
	return &AdminService{
		registry:        registry,
		adminTelegramID: adminID,
	}
}

// IsAdmin is false for everyone when no admin is configured.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return s.adminTelegramID != 0 && telegramID == s.adminTelegramID
}

// ListDuties returns every active duty on the automation network.
func (s *AdminService) ListDuties(ctx context.Context, performingAdminID int64) ([]duty.Task, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.registry.ActiveDuties(ctx)
}

// CancelDuty deregisters a duty by ID.
func (s *AdminService) CancelDuty(ctx context.Context, performingAdminID int64, dutyID string) error {
	if !s.IsAdmin(performingAdminID) {
		return ErrAdminNotAuthorized
	}

	// Check the mirror first so an already cancelled duty gets a clear answer
	mirrored, err := s.registry.mirror.GetByDutyID(ctx, dutyID)
	if err == nil && !mirrored.Active {
		return ErrDutyAlreadyInactive
	}
	if err != nil && !errors.Is(err, duty.ErrNotInMirror) {
		return fmt.Errorf("failed to look up mirrored duty: %w", err)
	}

	return s.registry.CancelDuty(ctx, dutyID)
}

// Balance reports the automation network balance that funds duty execution.
func (s *AdminService) Balance(ctx context.Context, performingAdminID int64) (decimal.Decimal, error) {
	if !s.IsAdmin(performingAdminID) {
		return decimal.Zero, ErrAdminNotAuthorized
	}
	return s.registry.Balance(ctx)
}
