package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RateKind selects how a cadence is driven.
type RateKind int

const (
	// RateCompositor advances on every host-presented frame.
	RateCompositor RateKind = iota
	// RateStatic never advances automatically.
	RateStatic
	// RateFixed advances PerSecond times per second of wall-clock time.
	RateFixed
)

// DefaultFramerate is used when a manifest leaves framerate unset.
const DefaultFramerate = 30

// RatePolicy drives either presentation (framerate) or animation (tickrate).
type RatePolicy struct {
	Kind      RateKind
	PerSecond float64
}

// CompositorDriven returns a policy tied to the host refresh signal.
func CompositorDriven() RatePolicy { return RatePolicy{Kind: RateCompositor} }

// Static returns a policy that only moves on explicit request.
func Static() RatePolicy { return RatePolicy{Kind: RateStatic} }

// Fixed returns a policy running n times per second.
func Fixed(n float64) RatePolicy { return RatePolicy{Kind: RateFixed, PerSecond: n} }

// Validate checks that fixed policies carry a positive, finite rate.
func (r RatePolicy) Validate() error {
	switch r.Kind {
	case RateCompositor, RateStatic:
		return nil
	case RateFixed:
		if r.PerSecond <= 0 || math.IsInf(r.PerSecond, 0) || math.IsNaN(r.PerSecond) {
			return fmt.Errorf("fixed rate must be > 0, got %v", r.PerSecond)
		}
		return nil
	default:
		return fmt.Errorf("unknown rate kind %d", r.Kind)
	}
}

// Interval returns the wall-clock period of a fixed policy, or 0.
func (r RatePolicy) Interval() time.Duration {
	if r.Kind != RateFixed || r.PerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / r.PerSecond)
}

func (r RatePolicy) String() string {
	switch r.Kind {
	case RateCompositor:
		return "compositor"
	case RateStatic:
		return "static"
	case RateFixed:
		return strconv.FormatFloat(r.PerSecond, 'f', -1, 64)
	default:
		return "unknown"
	}
}

// ParseRate converts a raw manifest value into a policy. It accepts numbers
// (0 = static, n > 0 = fixed, -1 = compositor) and the strings "compositor",
// "static" and "default". isDefault reports that the caller should apply
// its own default, which is also the result for a nil value.
func ParseRate(v any) (policy RatePolicy, isDefault bool, err error) {
	switch val := v.(type) {
	case nil:
		return RatePolicy{}, true, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "compositor":
			return CompositorDriven(), false, nil
		case "static":
			return Static(), false, nil
		case "default", "":
			return RatePolicy{}, true, nil
		}
		n, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return RatePolicy{}, false, fmt.Errorf("must be a number or one of compositor|static|default, got %q", val)
		}
		return rateFromNumber(n)
	case int:
		return rateFromNumber(float64(val))
	case int64:
		return rateFromNumber(float64(val))
	case uint64:
		return rateFromNumber(float64(val))
	case float64:
		return rateFromNumber(val)
	default:
		return RatePolicy{}, false, fmt.Errorf("unsupported value type %T", v)
	}
}

func rateFromNumber(n float64) (RatePolicy, bool, error) {
	switch {
	case math.IsNaN(n) || math.IsInf(n, 0):
		return RatePolicy{}, false, fmt.Errorf("must be finite, got %v", n)
	case n == -1:
		return CompositorDriven(), false, nil
	case n < 0:
		return RatePolicy{}, false, fmt.Errorf("must be >= 0, got %v", n)
	case n == 0:
		return Static(), false, nil
	default:
		return Fixed(n), false, nil
	}
}
