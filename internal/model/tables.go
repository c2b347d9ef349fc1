package model

import "math"

const (
	sigmoidTableSize = 512
	maxSigmoid       = 8
	logTableSize     = 512
)

var (
	sigmoidTable [sigmoidTableSize + 1]float32
	logTable     [logTableSize + 1]float32
)

func init() {
	for i := range sigmoidTable {
		x := float64(i*2*maxSigmoid)/sigmoidTableSize - maxSigmoid
		sigmoidTable[i] = float32(1.0 / (1.0 + math.Exp(-x)))
	}
	for i := range logTable {
		x := (float64(i) + 1e-5) / logTableSize
		logTable[i] = float32(math.Log(x))
	}
}

// sigmoid evaluates the logistic function from a lookup table with linear
// interpolation between entries.  Inputs outside [-maxSigmoid, maxSigmoid]
// clamp to exactly 0 or 1.
func sigmoid(x float32) float32 {
	if x < -maxSigmoid {
		return 0
	}
	if x > maxSigmoid {
		return 1
	}
	pos := (x + maxSigmoid) * sigmoidTableSize / maxSigmoid / 2
	return lerp(sigmoidTable[:], pos)
}

// logf evaluates the natural log from a lookup table over (0, 1].  Values
// above 1 return 0.
func logf(x float32) float32 {
	if x > 1 {
		return 0
	}
	if x < 0 {
		x = 0
	}
	return lerp(logTable[:], x*logTableSize)
}

func lerp(table []float32, pos float32) float32 {
	i := int(pos)
	if i >= len(table)-1 {
		return table[len(table)-1]
	}
	frac := pos - float32(i)
	return table[i] + frac*(table[i+1]-table[i])
}

// stdLog is the smoothed log used for prediction scores.
func stdLog(x float32) float32 {
	return float32(math.Log(float64(x) + 1e-5))
}
