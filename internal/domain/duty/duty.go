// internal/domain/duty/duty.go
package duty

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Selector is a 4-byte function selector.
type Selector [4]byte

func (s Selector) Hex() string {
	return "0x" + common.Bytes2Hex(s[:])
}

// ScheduledDuty is the registered, recurring check of one savings group on the automation network.
// Corresponds to the 'scheduled_duties' table. Only Active and the advisory timestamps change after creation.
type ScheduledDuty struct {
	GroupAddress     common.Address // unique key
	DutyID           string         // assigned by the automation network
	Name             string
	ExecSelector     Selector
	ResolverSelector Selector
	Active           bool
	LastExecuted     *time.Time // advisory, chain state is authoritative
	NextExecution    *time.Time // advisory
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Task is a duty as the automation network reports it.
type Task struct {
	ID              string
	Name            string
	ExecAddress     string
	ExecSelector    string
	ResolverAddress string
	ResolverData    string
	DedicatedCaller bool
	Active          bool
}

// CreateTaskRequest mirrors the network's createTask call.
type CreateTaskRequest struct {
	ExecAddress     common.Address
	ExecSelector    Selector
	DedicatedCaller bool
	Name            string
	ResolverAddress common.Address
	ResolverData    []byte
}

// State is the network's execution metadata for one task. Advisory only.
type State struct {
	DutyID        string
	LastExecuted  *time.Time
	NextExecution *time.Time
	Executions    int64
}
