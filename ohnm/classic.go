package ohnm

import (
	"fmt"

	"gorgonia.org/tensor"
)

// ClassicLoss is the probability-space formulation. Scores are squashed
// through a logistic sigmoid, correct matches are rewarded and spurious
// responses suppressed with negative log likelihoods floored at epsilon, and
// cross-channel responses are penalized linearly.
type ClassicLoss struct {
	epsilon float32
}

// NewClassicLoss returns a probability-space loss. A non-positive epsilon
// falls back to DefaultEpsilon.
func NewClassicLoss(epsilon float32) *ClassicLoss {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &ClassicLoss{epsilon: epsilon}
}

func (l *ClassicLoss) NeedsCorrespondenceOutputs() bool { return true }

// Forward implements Loss.
func (l *ClassicLoss) Forward(maximizerOutputs, correspondenceOutputs *tensor.Dense,
	inlierLabels, outlierLabels []bool) Result {

	maxScores, rows, cols := collapseScores(maximizerOutputs, "maximizer outputs")
	layout := decodeLayout(rows, cols, inlierLabels, outlierLabels)
	corrScores, corrRows, corrCols := collapseScores(correspondenceOutputs, "correspondence outputs")
	if corrRows != layout.channels || corrCols != layout.channels {
		panic(fmt.Sprintf("ohnm: correspondence outputs are %dx%d, want %dx%d",
			corrRows, corrCols, layout.channels, layout.channels))
	}

	maxProbs := make([]float32, len(maxScores))
	for i, s := range maxScores {
		maxProbs[i] = sigmoid(s)
	}
	corrProbs := make([]float32, len(corrScores))
	for i, s := range corrScores {
		corrProbs[i] = sigmoid(s)
	}

	maxGrad := make([]float32, len(maxScores))
	corrGrad := make([]float32, len(corrScores))
	terms := map[string]Term{
		OutlierCorrespondenceKey: {},
		OutlierMaximizerKey:      {},
		InlierMaximizerKey:       {},
		UnalignedMaximizerKey:    {},
	}
	var total float32

	// Channels without a valid correspondence should not respond at their own
	// correspondence site.
	if cells := correspondenceOutlierCells(outlierLabels); len(cells) > 0 {
		var sum float32
		for _, cl := range cells {
			i := cl.row*layout.channels + cl.col
			p := corrProbs[i]
			sum -= logFloor(p, l.epsilon)
			if p > l.epsilon {
				corrGrad[i] -= 1 - p
			}
		}
		terms[OutlierCorrespondenceKey] = present(sum)
		total += sum
	}

	// Unmatched patches are pushed toward low confidence, averaged per channel
	// so channels with many candidate patches do not dominate the gradient.
	if cells := layout.maximaOutlierCells(inlierLabels, outlierLabels); len(cells) > 0 {
		counts := make([]float32, layout.channels)
		for _, cl := range cells {
			counts[cl.col]++
		}
		for c := range counts {
			if counts[c] < 1 {
				counts[c] = 1
			}
		}
		var sum float32
		for _, cl := range cells {
			i := cl.row*cols + cl.col
			p := maxProbs[i]
			sum -= logFloor(1-p, l.epsilon) / counts[cl.col]
			if 1-p > l.epsilon {
				maxGrad[i] += p / counts[cl.col]
			}
		}
		terms[OutlierMaximizerKey] = present(sum)
		total += sum
	}

	// Matched patches are pulled toward high confidence.
	if cells := layout.maximaInlierCells(inlierLabels); len(cells) > 0 {
		var sum float32
		for _, cl := range cells {
			i := cl.row*cols + cl.col
			p := maxProbs[i]
			sum -= logFloor(p, l.epsilon)
			if p > l.epsilon {
				maxGrad[i] -= 1 - p
			}
		}
		terms[InlierMaximizerKey] = present(sum)
		total += sum
	}

	// Cross-channel responses at another channel's maximizing patch are summed
	// directly. An empty selection leaves the term at zero, never absent.
	var unaligned float32
	for _, cl := range unalignedCells(inlierLabels) {
		i := layout.maximumPatchIndex(cl.row)*cols + cl.col
		p := maxProbs[i]
		unaligned += p
		maxGrad[i] += p * (1 - p)
	}
	terms[UnalignedMaximizerKey] = present(unaligned)
	total += unaligned

	terms[TotalKey] = present(total)
	return Result{
		Loss:               total,
		Terms:              terms,
		MaximizerGrad:      tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(maxGrad)),
		CorrespondenceGrad: tensor.New(tensor.WithShape(layout.channels, layout.channels), tensor.WithBacking(corrGrad)),
	}
}
