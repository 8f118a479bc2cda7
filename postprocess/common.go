package postprocess

import (
	"math"
)

// Sigmoid returns 1/(1+e^-x)
func Sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

// ExpectDFL decodes one side distance from its regression logits as the
// softmax weighted mean of the bin indices.  The largest logit is subtracted
// before exponentiation so the sum never overflows, the result lies in
// [0, len(logits)-1].  probs is scratch space of at least len(logits).
func ExpectDFL(logits, probs []float32) float32 {

	if len(logits) == 0 {
		return 0
	}

	maxLogit := logits[0]

	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	expSum := float64(0)

	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		probs[i] = float32(e)
		expSum += e
	}

	accSum := float64(0)

	for i := range logits {
		accSum += float64(probs[i]) / expSum * float64(i)
	}

	return float32(accSum)
}

// computeDFL calculates the Distribution Focal Loss (DFL) distances of the
// four box sides stored consecutively in tensor
func computeDFL(tensor []float32, dflLen int, probs []float32, box *[4]float32) {
	for b := 0; b < 4; b++ {
		box[b] = ExpectDFL(tensor[b*dflLen:(b+1)*dflLen], probs)
	}
}

// Grid returns the side length of the square grid holding n cells and
// whether n is a perfect square
func Grid(n int) (int, bool) {

	grid := int(math.Round(math.Sqrt(float64(n))))
	return grid, grid*grid == n
}
