package services

import (
	"math"
	"time"
)

// hotEpoch and hotDecay shape the hot ranking: every 45000 seconds of age
// is worth one order of magnitude of score.
const (
	hotEpoch = 1134028003
	hotDecay = 45000.0
)

// HotScore is sign(s)*log10(max(|s|,1)) + (created - epoch)/45000.
func HotScore(score int, createdAt time.Time) float64 {
	order := math.Log10(math.Max(math.Abs(float64(score)), 1))

	var sign float64
	switch {
	case score > 0:
		sign = 1
	case score < 0:
		sign = -1
	}

	return sign*order + float64(createdAt.Unix()-hotEpoch)/hotDecay
}
