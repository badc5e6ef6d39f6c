package executor

import (
	"fmt"
)

// TxError describes a failed execution attempt. Kind is one of the domain
// execution sentinels and is matched with errors.Is.
type TxError struct {
	Op     string
	TxHash string
	Kind   error
	Err    error
}

func (e *TxError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("executor: %s %s: %v: %v", e.Op, e.TxHash, e.Kind, e.Err)
	}
	return fmt.Sprintf("executor: %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *TxError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Broadcast reports whether the transaction reached the network.
func (e *TxError) Broadcast() bool {
	return e.TxHash != ""
}
