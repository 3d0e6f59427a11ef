package app

import (
	"math"
	"strconv"
)

// FormatDistance renders meters for display:
// 10 m steps under 500 m, 50 m steps under 1 km,
// one decimal km under 10 km, whole km beyond.
func FormatDistance(meters float64) string {
	switch {
	case meters < 500:
		return strconv.Itoa(int(math.Round(meters/10)*10)) + " m"
	case meters < 1000:
		return strconv.Itoa(int(math.Round(meters/50)*50)) + " m"
	}
	km := meters / 1000
	if km < 10 {
		return strconv.FormatFloat(km, 'f', 1, 64) + " km"
	}
	return strconv.Itoa(int(math.Round(km))) + " km"
}
