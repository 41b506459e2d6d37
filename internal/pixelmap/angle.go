package pixelmap

import "math"

const (
	// Angles is the number of discrete rotation buckets in a full turn.
	Angles = 72

	// Step is the width of one bucket in degrees.
	Step = 360.0 / Angles

	// FracBits is the fixed-point precision of the rotation tables.
	FracBits = 16
	FracUnit = 1 << FracBits
)

// Fixed-point cosine and sine per bucket.
var cosTable, sinTable [Angles]int64

func init() {
	for b := 0; b < Angles; b++ {
		a := Deg2Rad(BucketAngle(b))
		cosTable[b] = int64(math.Round(math.Cos(a) * FracUnit))
		sinTable[b] = int64(math.Round(math.Sin(a) * FracUnit))
	}
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}

// Normalize wraps an angle in degrees into [0, 360).
func Normalize(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// Bucket quantizes an angle in degrees to its rotation bucket.
// Angles that round up to a full turn land in bucket 0.
func Bucket(deg float64) int {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	return int(math.Round(Normalize(deg)/Step)) % Angles
}

// BucketAngle returns the exact angle in degrees of bucket b.
func BucketAngle(b int) float64 {
	return float64(b) * Step
}

// Cos returns the fixed-point cosine of bucket b.
func Cos(b int) int64 { return cosTable[b] }

// Sin returns the fixed-point sine of bucket b.
func Sin(b int) int64 { return sinTable[b] }
