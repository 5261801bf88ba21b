package mathx

import "math"

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// FloorDivF returns floor(v / b) as an int. Unlike a plain int conversion it
// rounds towards negative infinity, so -0.5 lands in cell -1.
func FloorDivF(v float32, b int) int {
	return int(math.Floor(float64(v) / float64(b)))
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Within reports whether (dx, dz) lies inside the closed disc of radius r.
func Within(dx, dz, r int) bool {
	return dx*dx+dz*dz <= r*r
}
