package session

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTicket = errors.New("invalid order ticket")
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// Ticket holds the operator's pending bracket: how much to risk and where
// the stop and target go. Zero means unset.
type Ticket struct {
	RiskAmount decimal.Decimal `json:"riskAmount"`
	Stop       decimal.Decimal `json:"stop"`
	Target     decimal.Decimal `json:"target"`
}

func (t Ticket) Validate() error {
	switch {
	case t.RiskAmount.IsNegative():
		return fmt.Errorf("%w: risk amount is negative", ErrInvalidTicket)
	case t.Stop.IsNegative():
		return fmt.Errorf("%w: stop is negative", ErrInvalidTicket)
	case t.Target.IsNegative():
		return fmt.Errorf("%w: target is negative", ErrInvalidTicket)
	}
	return nil
}
