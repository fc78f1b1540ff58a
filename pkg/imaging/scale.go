package imaging

// ScaleDims implements the Scale stage's dimension-selection rule:
//
//	If max_size > 0 and max(W,H) > max_size, scale factor = max_size / max(W,H).
//	Else factor = scale / 100.
//
// scalePercent is in [1, 1000]; maxSize of 0 disables the cap. Returns the new
// (rounded) dimensions and whether scaling should actually run (it's a no-op
// when the result equals the input, e.g. scale=100 and no active max_size cap).
func ScaleDims(w, h, scalePercent, maxSize int) (newW, newH int, active bool) {
	var factor float64
	if maxSize > 0 && maxInt(w, h) > maxSize {
		factor = float64(maxSize) / float64(maxInt(w, h))
	} else {
		factor = float64(scalePercent) / 100.0
	}

	newW = roundPositive(float64(w) * factor)
	newH = roundPositive(float64(h) * factor)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	return newW, newH, newW != w || newH != h
}

func roundPositive(f float64) int {
	return int(f + 0.5)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
