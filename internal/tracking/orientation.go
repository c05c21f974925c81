package tracking

import "math"

const (
	// normEpsilon is the squared norm below which a quaternion is treated as zero.
	normEpsilon = 1e-12

	// gimbalEpsilon bounds both atan2 terms when pitch is at ±90°; the
	// remaining axis is undefined there and is reported as 0.
	gimbalEpsilon = 1e-9
)

// normalized returns q scaled to unit length in float64, and false when q has
// no usable direction.
func normalized(q Quaternion) (w, x, y, z float64, ok bool) {
	w, x, y, z = float64(q.W), float64(q.X), float64(q.Y), float64(q.Z)
	n2 := w*w + x*x + y*y + z*z
	if n2 < normEpsilon || math.IsNaN(n2) || math.IsInf(n2, 0) {
		return 0, 0, 0, 0, false
	}
	n := math.Sqrt(n2)
	return w / n, x / n, y / n, z / n, true
}

// Yaw returns the rotation of q about +Y in radians.
func Yaw(q Quaternion) float32 {
	w, x, y, z, ok := normalized(q)
	if !ok {
		return 0
	}
	return float32(stableAtan2(2*(w*y+x*z), 1-2*(x*x+y*y)))
}

// Pitch returns the rotation of q about +X in radians.
// The asin argument is clamped so rounding near ±90° cannot produce NaN.
func Pitch(q Quaternion) float32 {
	w, x, y, z, ok := normalized(q)
	if !ok {
		return 0
	}
	s := 2 * (w*x - y*z)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return float32(math.Asin(s))
}

// Roll returns the rotation of q about +Z in radians.
func Roll(q Quaternion) float32 {
	w, x, y, z, ok := normalized(q)
	if !ok {
		return 0
	}
	return float32(stableAtan2(2*(w*z+x*y), 1-2*(x*x+z*z)))
}

func stableAtan2(y, x float64) float64 {
	if math.Abs(y) < gimbalEpsilon && math.Abs(x) < gimbalEpsilon {
		return 0
	}
	return math.Atan2(y, x)
}
