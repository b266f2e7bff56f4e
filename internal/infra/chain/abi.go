// Package chain talks to savings-group contracts through go-ethereum.
package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"susu_keeper/internal/domain/duty"
)

// Method names of the group contract surface this service uses.
const (
	MethodGroupActive           = "groupActive"
	MethodCurrentRound          = "currentRound"
	MethodRoundDeadline         = "roundDeadline"
	MethodTimeUntilDeadline     = "getTimeUntilDeadline"
	MethodCanExecutePayout      = "canExecutePayout"
	MethodExecuteScheduled      = "executeScheduledPayout"
	MethodSetAutomationExecutor = "setAutomationExecutor"
	MethodAutomationExecutor    = "automationExecutor"
)

// groupABIJSON is the canonical ABI fragment of the savings-group contract.
const groupABIJSON = `[
  {"type":"function","name":"groupActive","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"currentRound","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"roundDeadline","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getTimeUntilDeadline","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"canExecutePayout","stateMutability":"view","inputs":[],"outputs":[{"name":"canExec","type":"bool"},{"name":"execPayload","type":"bytes"}]},
  {"type":"function","name":"executeScheduledPayout","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"setAutomationExecutor","stateMutability":"nonpayable","inputs":[{"name":"executor","type":"address"}],"outputs":[]},
  {"type":"function","name":"automationExecutor","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// GroupABI is the parsed group contract ABI.
var GroupABI = mustParseABI(groupABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: invalid group ABI: %v", err))
	}
	return parsed
}

func selectorOf(method string) duty.Selector {
	var s duty.Selector
	copy(s[:], GroupABI.Methods[method].ID)
	return s
}

// Selectors derived from the ABI, so a signature change cannot leave a stale literal behind.
var (
	ExecSelector     = selectorOf(MethodExecuteScheduled)
	ResolverSelector = selectorOf(MethodCanExecutePayout)
)

// ResolverCallData is the call data the automation network sends to the resolver.
func ResolverCallData() []byte {
	data, err := GroupABI.Pack(MethodCanExecutePayout)
	if err != nil {
		panic(fmt.Sprintf("chain: pack %s: %v", MethodCanExecutePayout, err))
	}
	return data
}
