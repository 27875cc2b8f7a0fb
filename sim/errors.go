package sim

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/arming"
	"github.com/rustyeddy/pulse/ledger"
)

var (
	ErrNotArmed            = errors.New("system not armed")
	ErrPositionOpen        = errors.New("position already open")
	ErrNoPosition          = errors.New("no open position")
	ErrInvalidSide         = errors.New("invalid side")
	ErrInvalidSize         = errors.New("quantity must be positive")
	ErrInvalidStop         = errors.New("stop must be positive")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidFraction     = errors.New("fraction must be in (0, 1]")
	ErrPartialTooSmall     = errors.New("position too small for partial")
	ErrInsufficientCapital = errors.New("insufficient funds")
	ErrNoPrice             = errors.New("no price for symbol")
	ErrResetNotConfirmed   = ledger.ErrResetNotConfirmed
)

// CapitalError reports how much an order needed. It matches
// ErrInsufficientCapital with errors.Is.
type CapitalError struct {
	Needed    decimal.Decimal
	Available decimal.Decimal
}

func (e *CapitalError) Error() string {
	return fmt.Sprintf("insufficient funds: need %s, have %s", e.Needed.StringFixed(2), e.Available.StringFixed(2))
}

func (e *CapitalError) Is(target error) bool { return target == ErrInsufficientCapital }

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPrecondition
	KindCapital
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindCapital:
		return "capital"
	case KindPersistence:
		return "persistence"
	}
	return "internal"
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInsufficientCapital):
		return KindCapital
	case errors.Is(err, ErrInvalidSide),
		errors.Is(err, ErrInvalidSize),
		errors.Is(err, ErrInvalidStop),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrInvalidFraction):
		return KindValidation
	case errors.Is(err, ErrNotArmed),
		errors.Is(err, ErrPositionOpen),
		errors.Is(err, ErrNoPosition),
		errors.Is(err, ErrPartialTooSmall),
		errors.Is(err, ErrNoPrice),
		errors.Is(err, ErrResetNotConfirmed),
		errors.Is(err, arming.ErrNotStaged):
		return KindPrecondition
	case errors.Is(err, ledger.ErrPersistence):
		return KindPersistence
	}
	return KindInternal
}
