package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/market"
)

// Fallback runs Primary and switches to Secondary for the rest of the run
// once Primary fails. OnSwitch, when set, is told why.
type Fallback struct {
	Primary   Source
	Secondary Source
	OnSwitch  func(err error)
	Log       *zap.Logger
}

func (f *Fallback) Run(ctx context.Context, symbol string, emit func(market.Tick)) error {
	err := f.Primary.Run(ctx, symbol, emit)
	if ctx.Err() != nil || f.Secondary == nil {
		return err
	}

	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Warn("primary feed failed, falling back", zap.String("symbol", symbol), zap.Error(err))
	if f.OnSwitch != nil {
		f.OnSwitch(err)
	}
	return f.Secondary.Run(ctx, symbol, emit)
}
