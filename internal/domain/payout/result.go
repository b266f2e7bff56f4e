// internal/domain/payout/result.go
package payout

import (
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrInvalidInput is returned when the group address handed to the checker is missing or malformed.
var ErrInvalidInput = errors.New("invalid input: group address is required")

// CheckResult is the transient answer of one checker invocation. It is never persisted.
// ExecPayload is only meaningful when CanExec is true and is the exact call data the chain returned.
type CheckResult struct {
	CanExec     bool
	ExecPayload []byte
	Message     string
}

type checkResultJSON struct {
	CanExec  bool          `json:"canExec"`
	ExecData hexutil.Bytes `json:"execData"`
	Message  string        `json:"message"`
}

// MarshalJSON renders the result the way the automation network expects from a resolver.
func (r CheckResult) MarshalJSON() ([]byte, error) {
	out := checkResultJSON{CanExec: r.CanExec, ExecData: hexutil.Bytes{}, Message: r.Message}
	if r.CanExec {
		out.ExecData = r.ExecPayload
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *CheckResult) UnmarshalJSON(data []byte) error {
	var in checkResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.CanExec = in.CanExec
	r.ExecPayload = in.ExecData
	r.Message = in.Message
	return nil
}
