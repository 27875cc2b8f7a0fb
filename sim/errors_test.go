package sim

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/pulse/arming"
	"github.com/rustyeddy/pulse/ledger"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("x: %w", ErrInvalidSide), KindValidation},
		{fmt.Errorf("x: %w", ErrInvalidFraction), KindValidation},
		{fmt.Errorf("x: %w", ErrNotArmed), KindPrecondition},
		{fmt.Errorf("x: %w", ErrPartialTooSmall), KindPrecondition},
		{ErrResetNotConfirmed, KindPrecondition},
		{arming.ErrNotStaged, KindPrecondition},
		{fmt.Errorf("x: %w", &CapitalError{}), KindCapital},
		{fmt.Errorf("%w: save account: boom", ledger.ErrPersistence), KindPersistence},
		{errors.New("other"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
	assert.Equal(t, "capital", KindCapital.String())
}

func TestExitReason(t *testing.T) {
	t.Parallel()

	long := &Position{Side: "BUY", Entry: d("100"), Stop: d("95"), Target: d("110")}
	short := &Position{Side: "SELL", Entry: d("100"), Stop: d("105"), Target: d("90")}

	tests := []struct {
		name   string
		pos    *Position
		price  string
		reason ledger.Reason
		hit    bool
	}{
		{"long inside", long, "100", "", false},
		{"long stop touch", long, "95", ledger.ReasonStop, true},
		{"long target touch", long, "110", ledger.ReasonTarget, true},
		{"short inside", short, "100", "", false},
		{"short stop", short, "105.01", ledger.ReasonStop, true},
		{"short target", short, "89", ledger.ReasonTarget, true},
	}
	for _, tt := range tests {
		reason, hit := exitReason(tt.pos, d(tt.price))
		assert.Equal(t, tt.hit, hit, tt.name)
		assert.Equal(t, tt.reason, reason, tt.name)
	}
}
