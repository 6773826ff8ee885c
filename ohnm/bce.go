package ohnm

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// BCELoss is the logit-space formulation. Scores are used unnormalized with a
// binary cross entropy folded with the sigmoid, and a channel's unmatched
// patches are downweighted by a closed-form factor so their combined loss mass
// balances the channel's single matched patch.
type BCELoss struct {
	mu             sync.Mutex
	outlierWeights map[int]float32
}

// NewBCELoss returns a logit-space loss. The outlier weight cache is seeded
// for a single patch per channel, where the weight formula is undefined.
func NewBCELoss() *BCELoss {
	return &BCELoss{outlierWeights: map[int]float32{1: 1}}
}

func (l *BCELoss) NeedsCorrespondenceOutputs() bool { return true }

// outlierWeight is w(n) = n*ln(n-1) - ln((n-1)/n) - n*ln(n) + 1, the weight
// balancing a channel's n-1 unmatched patches against its matched one under a
// geometric-decay confidence profile. The closed form is only defined for
// n >= 2; n == 1 is pinned to 1 at construction. Weights are memoized: w is a
// pure function of n, so the cache never invalidates.
func (l *BCELoss) outlierWeight(n int) float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.outlierWeights[n]
	if !ok {
		k := float32(n)
		w = k*math32.Log(k-1) - math32.Log((k-1)/k) - k*math32.Log(k) + 1
		l.outlierWeights[n] = w
	}
	return w
}

// Forward implements Loss.
func (l *BCELoss) Forward(maximizerOutputs, correspondenceOutputs *tensor.Dense,
	inlierLabels, outlierLabels []bool) Result {

	maxScores, rows, cols := collapseScores(maximizerOutputs, "maximizer outputs")
	layout := decodeLayout(rows, cols, inlierLabels, outlierLabels)
	corrScores, corrRows, corrCols := collapseScores(correspondenceOutputs, "correspondence outputs")
	if corrRows != layout.channels || corrCols != layout.channels {
		panic(fmt.Sprintf("ohnm: correspondence outputs are %dx%d, want %dx%d",
			corrRows, corrCols, layout.channels, layout.channels))
	}

	maxGrad := make([]float32, len(maxScores))
	corrGrad := make([]float32, len(corrScores))
	terms := map[string]Term{
		OutlierCorrespondenceKey: {},
		BCEMaximizerKey:          {},
		UnalignedMaximizerKey:    {},
	}
	var total float32

	// An outlier channel's own correspondence response is scored against
	// target 1. The target convention is deliberately opposite the
	// probability-space form and must stay that way.
	if cells := correspondenceOutlierCells(outlierLabels); len(cells) > 0 {
		var sum float32
		for _, cl := range cells {
			i := cl.row*layout.channels + cl.col
			sum += bceWithLogits(corrScores[i], 1)
			corrGrad[i] += sigmoid(corrScores[i]) - 1
		}
		terms[OutlierCorrespondenceKey] = present(sum)
		total += sum
	}

	// One pass over every labeled patch, each evaluated by its own channel:
	// the designated correspondence patch of an inlier channel targets 1 at
	// weight 1, every other labeled patch targets 0 at the balancing weight.
	expInlier := layout.expandInlier(inlierLabels)
	expHasData := layout.expandHasData(inlierLabels, outlierLabels)
	selected := 0
	for r := range expHasData {
		if expHasData[r] {
			selected++
		}
	}
	if selected > 0 {
		w := l.outlierWeight(layout.patchesPerChannel)
		var sum float32
		for r := 0; r < layout.rows; r++ {
			if !expHasData[r] {
				continue
			}
			i := r*cols + r/layout.patchesPerChannel
			target, weight := float32(0), w
			if expInlier[r] {
				target, weight = 1, 1
			}
			sum += weight * bceWithLogits(maxScores[i], target)
			maxGrad[i] += weight * (sigmoid(maxScores[i]) - target)
		}
		terms[BCEMaximizerKey] = present(sum)
		total += sum
	}

	// Cross-channel responses at another channel's maximizing patch are scored
	// against target 0.
	if cells := unalignedCells(inlierLabels); len(cells) > 0 {
		var sum float32
		for _, cl := range cells {
			i := layout.maximumPatchIndex(cl.row)*cols + cl.col
			sum += bceWithLogits(maxScores[i], 0)
			maxGrad[i] += sigmoid(maxScores[i])
		}
		terms[UnalignedMaximizerKey] = present(sum)
		total += sum
	}

	terms[TotalKey] = present(total)
	return Result{
		Loss:               total,
		Terms:              terms,
		MaximizerGrad:      tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(maxGrad)),
		CorrespondenceGrad: tensor.New(tensor.WithShape(layout.channels, layout.channels), tensor.WithBacking(corrGrad)),
	}
}
