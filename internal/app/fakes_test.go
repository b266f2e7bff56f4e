package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"susu_keeper/internal/domain/deadline"
	"susu_keeper/internal/domain/duty"
	"susu_keeper/internal/domain/group"
	"susu_keeper/internal/domain/payout"
)

var (
	groupOne   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	groupTwo   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	groupThree = common.HexToAddress("0x3333333333333333333333333333333333333333")
	executorA  = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func newTestLogger() (*logrus.Entry, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

// fakeContract serves both the reader and the bootstrap contract surface.
type fakeContract struct {
	mu sync.Mutex

	active    bool
	round     int64
	deadline  int64
	remaining int64
	canExec   bool
	payload   []byte
	executor  common.Address

	activeErr   error
	canExecErr  error
	roundErr    error
	setErr      error
	panicOnRead bool

	canExecCalls int
	setCalls     int
}

func (c *fakeContract) GroupActive(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panicOnRead {
		panic("reader exploded")
	}
	return c.active, c.activeErr
}

func (c *fakeContract) CurrentRound(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roundErr != nil {
		return nil, c.roundErr
	}
	return big.NewInt(c.round), nil
}

func (c *fakeContract) RoundDeadline(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return big.NewInt(c.deadline), nil
}

func (c *fakeContract) TimeUntilDeadline(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return big.NewInt(c.remaining), nil
}

func (c *fakeContract) CanExecutePayout(ctx context.Context) (bool, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canExecCalls++
	if c.canExecErr != nil {
		return false, nil, c.canExecErr
	}
	return c.canExec, c.payload, nil
}

func (c *fakeContract) AutomationExecutor(ctx context.Context) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executor, nil
}

func (c *fakeContract) SetAutomationExecutor(ctx context.Context, executor common.Address) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCalls++
	if c.setErr != nil {
		return common.Hash{}, c.setErr
	}
	c.executor = executor
	return common.HexToHash("0xabc"), nil
}

type fakeChain struct {
	contracts map[common.Address]*fakeContract
}

func newFakeChain() *fakeChain {
	return &fakeChain{contracts: make(map[common.Address]*fakeContract)}
}

func (f *fakeChain) add(addr common.Address, c *fakeContract) *fakeContract {
	f.contracts[addr] = c
	return c
}

func (f *fakeChain) Reader(addr common.Address) (payout.ChainReader, error) {
	c, ok := f.contracts[addr]
	if !ok {
		return nil, errors.New("no contract at address")
	}
	return c, nil
}

func (f *fakeChain) Contract(addr common.Address) (group.Contract, error) {
	c, ok := f.contracts[addr]
	if !ok {
		return nil, errors.New("no contract at address")
	}
	return c, nil
}

type fakeNetwork struct {
	mu sync.Mutex

	tasks   []duty.Task
	states  map[string]*duty.State
	balance decimal.Decimal
	caller  common.Address

	createErr error
	listErr   error
	cancelErr error

	// createErrAfterRegister registers the task and still fails, like a timeout after the write landed.
	createErrAfterRegister error

	createCalls []duty.CreateTaskRequest
	cancelCalls []string
	deposits    []decimal.Decimal
}

func (n *fakeNetwork) CreateTask(ctx context.Context, req duty.CreateTaskRequest) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.createCalls = append(n.createCalls, req)
	if n.createErr != nil {
		return "", n.createErr
	}
	id := "task-" + strconv.Itoa(len(n.tasks)+1)
	n.tasks = append(n.tasks, duty.Task{
		ID:              id,
		Name:            req.Name,
		ExecAddress:     req.ExecAddress.Hex(),
		ExecSelector:    req.ExecSelector.Hex(),
		ResolverAddress: req.ResolverAddress.Hex(),
		DedicatedCaller: req.DedicatedCaller,
		Active:          true,
	})
	if n.createErrAfterRegister != nil {
		return "", n.createErrAfterRegister
	}
	return id, nil
}

func (n *fakeNetwork) CancelTask(ctx context.Context, taskID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelCalls = append(n.cancelCalls, taskID)
	if n.cancelErr != nil {
		return n.cancelErr
	}
	for i, t := range n.tasks {
		if t.ID == taskID && t.Active {
			n.tasks[i].Active = false
			return nil
		}
	}
	return duty.ErrTaskNotFound
}

func (n *fakeNetwork) GetActiveTasks(ctx context.Context) ([]duty.Task, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listErr != nil {
		return nil, n.listErr
	}
	var out []duty.Task
	for _, t := range n.tasks {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (n *fakeNetwork) GetTaskState(ctx context.Context, taskID string) (*duty.State, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.states[taskID]
	if !ok {
		return nil, duty.ErrTaskNotFound
	}
	return s, nil
}

func (n *fakeNetwork) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.balance, nil
}

func (n *fakeNetwork) DepositFunds(ctx context.Context, amount decimal.Decimal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deposits = append(n.deposits, amount)
	n.balance = n.balance.Add(amount)
	return nil
}

func (n *fakeNetwork) DedicatedCaller(ctx context.Context) (common.Address, error) {
	return n.caller, nil
}

func (n *fakeNetwork) createCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.createCalls)
}

type fakePresenter struct {
	mu sync.Mutex

	permission deadline.Permission
	answer     deadline.Permission
	showErr    error

	requests int
	shown    []deadline.DeadlineNotification
}

func (p *fakePresenter) Permission() deadline.Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission
}

func (p *fakePresenter) RequestPermission(ctx context.Context) (deadline.Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	p.permission = p.answer
	return p.permission, nil
}

func (p *fakePresenter) Show(ctx context.Context, n deadline.DeadlineNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.showErr != nil {
		return p.showErr
	}
	p.shown = append(p.shown, n)
	return nil
}

type staticGroups []group.Group

func (s staticGroups) ListGroups(ctx context.Context) ([]group.Group, error) {
	return s, nil
}
