package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// CashFlowKind direction of an external capital movement.
type CashFlowKind string

const (
	CashFlowDeposit    CashFlowKind = "DEPOSIT"
	CashFlowWithdrawal CashFlowKind = "WITHDRAWAL"
)

// ParseCashFlowKind accepts DEPOSIT, WITHDRAW and WITHDRAWAL in any case.
func ParseCashFlowKind(value string) (CashFlowKind, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEPOSIT":
		return CashFlowDeposit, nil
	case "WITHDRAW", "WITHDRAWAL":
		return CashFlowWithdrawal, nil
	default:
		return "", errors.Errorf("unknown cash flow type %q, expected DEPOSIT or WITHDRAW", value)
	}
}

// CashFlow deposit (positive) or withdrawal (negative) of USD-denominated capital.
type CashFlow struct {
	Timestamp time.Time       `json:"ts"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Kind      CashFlowKind    `json:"kind"`
	Note      string          `json:"note,omitempty"`
}

// NewCashFlow builds a cash flow with the sign normalised to its kind.
func NewCashFlow(ts time.Time, amount decimal.Decimal, kind CashFlowKind, note string) (CashFlow, error) {
	if amount.IsZero() {
		return CashFlow{}, errors.New("cash flow amount must be non-zero")
	}

	switch kind {
	case CashFlowDeposit:
		amount = amount.Abs()
	case CashFlowWithdrawal:
		amount = amount.Abs().Neg()
	default:
		return CashFlow{}, errors.Errorf("unknown cash flow type %q", kind)
	}

	return CashFlow{Timestamp: ts, AmountUSD: amount, Kind: kind, Note: note}, nil
}

// IsDeposit reports whether capital flowed into the portfolio.
func (c CashFlow) IsDeposit() bool {
	return c.AmountUSD.IsPositive()
}
