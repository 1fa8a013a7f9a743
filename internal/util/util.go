// Package util provides small CSS value helpers shared by the animation
// model and the storage layer.
package util

import (
	"math"
	"strconv"
	"strings"
)

// ParsePercent converts a CSS percentage such as "50%" to a fraction.
// The trailing percent sign is optional. Unparsable input yields NaN.
func ParsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v / 100
}

// FormatPercent renders a fraction as a CSS percentage.
func FormatPercent(fraction float64) string {
	return strconv.FormatFloat(fraction*100, 'f', -1, 64) + "%"
}

// FormatMs renders a millisecond value as a CSS time.
func FormatMs(ms float64) string {
	return strconv.FormatFloat(ms, 'f', -1, 64) + "ms"
}

// CSSPropertyPrefix returns the longhand prefix for the timing properties of
// a CSS-created animation type, or "" for script-created animations.
func CSSPropertyPrefix(animationType string) string {
	switch animationType {
	case "CSSTransition":
		return "transition-"
	case "CSSAnimation":
		return "animation-"
	default:
		return ""
	}
}

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}
