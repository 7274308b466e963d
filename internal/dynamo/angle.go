package dynamo

import "math"

const TwoPi = 2 * math.Pi

// WrapTwoPi normalizes an angle into [0, 2π).
func WrapTwoPi(x float64) float64 {
	x = math.Mod(x, TwoPi)
	if x < 0 {
		x += TwoPi
	}
	return x
}

// WrapPi normalizes an angle into [-π, π).
func WrapPi(x float64) float64 {
	x = WrapTwoPi(x + math.Pi)
	return x - math.Pi
}

func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
