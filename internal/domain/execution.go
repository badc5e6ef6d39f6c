package domain

import "time"

// ExecutionKind distinguishes a direct swap from a flash-loan funded one.
type ExecutionKind string

const (
	ExecutionSwap      ExecutionKind = "swap"
	ExecutionFlashLoan ExecutionKind = "flash_loan"
)

// ExecutionStatus is the journaled state of one attempt.
type ExecutionStatus string

const (
	ExecutionSubmitted ExecutionStatus = "submitted"
	ExecutionConfirmed ExecutionStatus = "confirmed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionTimeout   ExecutionStatus = "timeout"
)

// Execution records one execution attempt. Amounts are base-unit decimal
// strings so they survive JSON and SQL without precision loss.
type Execution struct {
	ID             string          `json:"id"`
	OpportunityID  string          `json:"opportunity_id"`
	Kind           ExecutionKind   `json:"kind"`
	BuyVenue       string          `json:"buy_venue"`
	SellVenue      string          `json:"sell_venue"`
	Account        string          `json:"account"`
	AmountIn       string          `json:"amount_in"`
	MinAmountOut   string          `json:"min_amount_out"`
	ExpectedProfit string          `json:"expected_profit"`
	GasPrice       string          `json:"gas_price"`
	Deadline       int64           `json:"deadline"`
	Attempt        int             `json:"attempt"`
	Status         ExecutionStatus `json:"status"`
	TxHash         string          `json:"tx_hash,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
