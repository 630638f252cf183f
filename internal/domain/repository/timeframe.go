package repository

// Interval is a bar resolution understood by the market data provider.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval1wk Interval = "1wk"
	Interval1mo Interval = "1mo"
)

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	switch iv {
	case Interval1m, Interval5m, Interval15m, Interval1h, Interval1d, Interval1wk, Interval1mo:
		return true
	default:
		return false
	}
}

// DefaultInterval returns the default primary interval.
func DefaultInterval() Interval { return Interval1d }

// NormalizeInterval converts raw string to a valid interval (or default).
func NormalizeInterval(s string) Interval {
	if s == "" {
		return DefaultInterval()
	}
	iv := Interval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// HigherInterval returns the next coarser interval used for multi-timeframe features.
func HigherInterval(iv Interval) Interval {
	switch iv {
	case Interval1m:
		return Interval15m
	case Interval5m, Interval15m:
		return Interval1h
	case Interval1h:
		return Interval1d
	case Interval1d:
		return Interval1wk
	default:
		return Interval1mo
	}
}
