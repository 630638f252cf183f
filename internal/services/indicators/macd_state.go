package indicators

import (
	"time"

	"MarketState/internal/domain/models"
)

// MACDState is an incremental MACD(12,26,9). It is seeded at the first price;
// the signal EMA starts from the first MACD value once MACDSlow updates have
// passed. O(1) per update.
type MACDState struct {
	fast     float64
	slow     float64
	signal   float64
	count    int
	lastTime time.Time
}

func NewMACDState() *MACDState { return &MACDState{} }

// Update applies one closed bar. Bars at or before the last applied time are ignored.
func (m *MACDState) Update(b models.Bar) bool {
	if m.count > 0 && !b.Time.After(m.lastTime) {
		return false
	}
	m.fast, m.slow, m.signal = m.step(b.Close)
	m.count++
	m.lastTime = b.Time
	return true
}

func (m *MACDState) step(price float64) (fast, slow, signal float64) {
	if m.count == 0 {
		return price, price, 0
	}
	fast = EMAStep(price, m.fast, MACDFast)
	slow = EMAStep(price, m.slow, MACDSlow)
	// count is the zero-based index of this price.
	switch {
	case m.count == MACDSlow:
		signal = fast - slow
	case m.count > MACDSlow:
		signal = EMAStep(fast-slow, m.signal, MACDSignal)
	}
	return fast, slow, signal
}

// Value returns the current MACD line and signal.
func (m *MACDState) Value() (macd, signal float64) {
	if !m.Ready() {
		return 0, 0
	}
	return m.fast - m.slow, m.signal
}

// Ready reports whether more than MACDSlow prices have been applied.
func (m *MACDState) Ready() bool { return m.count > MACDSlow }

// Peek returns what Value would be after applying price, without mutating state.
func (m *MACDState) Peek(price float64) (macd, signal float64) {
	if m.count+1 <= MACDSlow {
		return 0, 0
	}
	fast, slow, sig := m.step(price)
	return fast - slow, sig
}

// LastTime is the time of the most recent applied bar.
func (m *MACDState) LastTime() time.Time { return m.lastTime }

func (m *MACDState) Snapshot() models.MACDSnapshot {
	return models.MACDSnapshot{
		EMA12:    m.fast,
		EMA26:    m.slow,
		Signal:   m.signal,
		Count:    m.count,
		LastTime: m.lastTime,
	}
}

func (m *MACDState) RestoreFromSnapshot(snap models.MACDSnapshot) {
	m.fast = snap.EMA12
	m.slow = snap.EMA26
	m.signal = snap.Signal
	m.count = snap.Count
	m.lastTime = snap.LastTime
}
