package tilemap

import "math/rand"

// fallbackRandom is used by AddRandomObstacles when no deterministic seed
// is supplied.
func fallbackRandom() float64 {
	return rand.Float64()
}
