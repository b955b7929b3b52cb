package kinematics

import "math"

// ScaleToRange maps the magnitude of x from [inMin, inMax] onto [outMin, outMax], keeping its
// sign. Magnitudes below inMin are a dead band and map to 0; magnitudes above inMax saturate at
// outMax. It is used to shape raw stick values before they become a Vector.
func ScaleToRange(x, inMin, inMax, outMin, outMax float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	x = math.Abs(x)
	if x < inMin {
		return 0
	}
	if x > inMax || inMax == inMin {
		return outMax * sign
	}
	pos := (x - inMin) / (inMax - inMin)
	return (outMin + pos*(outMax-outMin)) * sign
}
