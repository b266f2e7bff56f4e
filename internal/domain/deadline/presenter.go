// internal/domain/deadline/presenter.go
package deadline

import (
	"context"
	"errors"
)

// Permission is the consent state of a notification surface: default, then granted or denied.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ErrPermissionDenied is returned by Show when the member has refused notifications.
var ErrPermissionDenied = errors.New("notification permission denied")

// Presenter displays alerts on the member's notification surface.
type Presenter interface {
	Permission() Permission
	// RequestPermission prompts the member. Implementations must not re-prompt after a denial.
	RequestPermission(ctx context.Context) (Permission, error)
	Show(ctx context.Context, n DeadlineNotification) error
}
