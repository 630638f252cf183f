package engine

import (
	"context"

	"MarketState/internal/domain/models"
	"MarketState/internal/services/indicators"
	applogger "MarketState/pkg/logger"
)

// macd returns the MACD line and signal for the configured mode.
//
// In incremental mode the stored state covers closed bars only, i.e. every bar
// but the last. New closed bars are applied, the state is saved, and the last
// (possibly still forming) bar is peeked. When no usable state exists the cold
// path answers and its warm-up seeds the state.
func (e *Engine) macd(ctx context.Context, key string, bars []models.Bar, closes []float64) (float64, float64) {
	if e.macdMode != MACDIncremental || e.macdStore == nil || key == "" {
		return indicators.MACD(closes)
	}

	closed := bars[:len(bars)-1]
	st := indicators.NewMACDState()
	snap, err := e.macdStore.Load(ctx, key)
	if err != nil {
		e.logger.Warn("macd state load failed", applogger.String("key", key), applogger.Error(err))
	}

	warm := snap != nil && snap.Count > 0 && covers(closed, snap.LastTime.Unix())
	if warm {
		st.RestoreFromSnapshot(*snap)
	}
	for _, b := range closed {
		st.Update(b)
	}
	if err := e.macdStore.Store(ctx, key, st.Snapshot()); err != nil {
		e.logger.Warn("macd state store failed", applogger.String("key", key), applogger.Error(err))
	}

	if !warm || !st.Ready() {
		return indicators.MACD(closes)
	}
	return st.Peek(closes[len(closes)-1])
}

// covers reports whether the stored state's last bar is present in closed, so
// that replaying newer bars continues the same series without gaps.
func covers(closed []models.Bar, lastUnix int64) bool {
	for i := len(closed) - 1; i >= 0; i-- {
		u := closed[i].Time.Unix()
		if u == lastUnix {
			return true
		}
		if u < lastUnix {
			return false
		}
	}
	return false
}
