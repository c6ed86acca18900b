package proximity

// Label returns a coarse proximity label for a friend at distanceKm, relative
// to the caller's nearby radius. Friends beyond the radius get no label.
func Label(distanceKm, radiusKm float64) string {
	p := Progress(distanceKm, radiusKm)
	switch {
	case p >= 75:
		return "Very Close"
	case p >= 50:
		return "Nearby"
	case p >= 25:
		return "Within Area"
	case p > 0:
		return "Far (within range)"
	default:
		return ""
	}
}

// Progress computes (1 - distance/radius) * 100, clamped to [0, 100].
func Progress(distanceKm, radiusKm float64) float64 {
	if radiusKm <= 0 || distanceKm >= radiusKm {
		return 0
	}
	p := (1 - distanceKm/radiusKm) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
