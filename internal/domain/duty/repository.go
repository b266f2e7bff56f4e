// internal/domain/duty/repository.go
package duty

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Network is the automation network SDK surface the registry consumes.
type Network interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (taskID string, err error)
	CancelTask(ctx context.Context, taskID string) error
	GetActiveTasks(ctx context.Context) ([]Task, error)
	GetTaskState(ctx context.Context, taskID string) (*State, error)
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	DepositFunds(ctx context.Context, amount decimal.Decimal) error
	// DedicatedCaller is the address the network calls execute entry points from.
	DedicatedCaller(ctx context.Context) (common.Address, error)
}

// Repository is the local mirror of scheduled duties.
type Repository interface {
	Upsert(ctx context.Context, d *ScheduledDuty) error
	GetByGroup(ctx context.Context, group common.Address) (*ScheduledDuty, error)
	GetByDutyID(ctx context.Context, dutyID string) (*ScheduledDuty, error)
	SetActive(ctx context.Context, dutyID string, active bool) error
	UpdateExecution(ctx context.Context, dutyID string, lastExecuted, nextExecution *time.Time) error
	ListActive(ctx context.Context) ([]*ScheduledDuty, error)
}
