package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/arming"
	"github.com/rustyeddy/pulse/events"
	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/sim"
)

// KindOf extends sim.KindOf with the session's own input errors.
func KindOf(err error) sim.Kind {
	if errors.Is(err, ErrInvalidTicket) || errors.Is(err, ErrInvalidSymbol) {
		return sim.KindValidation
	}
	return sim.KindOf(err)
}

func severityFor(err error) events.Severity {
	if KindOf(err) == sim.KindPrecondition {
		return events.Warning
	}
	return events.Error
}

// failureMessage is the operator-facing text for err.
func failureMessage(err error) string {
	var ce *sim.CapitalError
	switch {
	case errors.As(err, &ce):
		return fmt.Sprintf("❌ Insufficient funds (%s needed)", money(ce.Needed))
	case errors.Is(err, sim.ErrNotArmed):
		return "⚠️ System not armed!"
	case errors.Is(err, sim.ErrPositionOpen):
		return "⚠️ Already have an open position"
	case errors.Is(err, sim.ErrInvalidSize):
		return "❌ Invalid position size"
	case errors.Is(err, sim.ErrNoPosition):
		return "No position"
	case errors.Is(err, sim.ErrPartialTooSmall):
		return "Position too small for partial"
	case errors.Is(err, sim.ErrNoPrice):
		return "⚠️ No price yet"
	case errors.Is(err, sim.ErrResetNotConfirmed):
		return "Reset needs confirmation"
	case errors.Is(err, arming.ErrNotStaged):
		return "⚠️ Stage the system before arming"
	case errors.Is(err, ledger.ErrPersistence):
		return "💾 Account could not be saved"
	}
	return "❌ " + err.Error()
}

// money formats d as dollars with two decimals and thousands separators.
func money(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "$" + group(d.StringFixed(2))
}

// signedMoney always carries a sign: +$220.00, -$120.00.
func signedMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return money(d)
	}
	return "+" + money(d)
}

// wholeMoney drops the cents when there are none: $10,000.
func wholeMoney(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return "$" + group(d.Truncate(0).String())
	}
	return money(d)
}

func group(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func pnlSeverity(pnl decimal.Decimal) events.Severity {
	if pnl.IsNegative() {
		return events.Error
	}
	return events.Success
}
