// Package ohnm implements online hard-negative-mining losses for training a
// multi-channel interest point detector. Each output channel of the detector
// is rewarded for a single, geometrically consistent maximal response per
// image pair and penalized for spurious or ambiguous responses. Two
// interchangeable formulations are provided: ClassicLoss works in probability
// space with epsilon-floored negative log likelihoods, BCELoss works directly
// on logits with a balanced binary cross entropy.
package ohnm

import (
	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// Component keys reported by every loss variant.
const (
	TotalKey                 = "loss"
	OutlierCorrespondenceKey = "outlier_correspondence_loss"
	OutlierMaximizerKey      = "outlier_maximizer_loss"
	InlierMaximizerKey       = "inlier_maximizer_loss"
	BCEMaximizerKey          = "bce_maximizer_loss"
	UnalignedMaximizerKey    = "unaligned_maximizer_loss"
)

// DefaultEpsilon floors probabilities away from zero before a log is taken.
const DefaultEpsilon float32 = 1e-4

// Term is an optional scalar loss component. A term with no applicable data
// this batch is absent, which is distinct from a present zero value: an absent
// term contributes nothing to the total and is reported as such.
type Term struct {
	Value   float32
	Present bool
}

func present(v float32) Term { return Term{Value: v, Present: true} }

// Result is the output of one loss evaluation.
type Result struct {
	// Loss is the total objective: the sum of every present term.
	Loss float32
	// Terms maps the component keys to their values for logging. Every key
	// the variant can produce is in the map, absent or not.
	Terms map[string]Term
	// MaximizerGrad is d(Loss)/d(maximizer score), shaped BxC like the
	// collapsed maximizer outputs.
	MaximizerGrad *tensor.Dense
	// CorrespondenceGrad is d(Loss)/d(correspondence score), shaped CxC.
	CorrespondenceGrad *tensor.Dense
}

// Loss scores a batch of per-channel responses against sparse correspondence
// ground truth and reports a scalar objective with a per-term breakdown.
type Loss interface {
	// Forward computes the total loss, its components and its gradients.
	//
	// maximizerOutputs holds float32 responses shaped (B, C) or (B, C, S, S)
	// with B an exact multiple of C; correspondenceOutputs is shaped (C, C)
	// or (C, C, S, S). When a spatial footprint is present only its center
	// cell is used. inlierLabels and outlierLabels have length C and are
	// never both true at the same index. Shape contract violations panic:
	// they are caller bugs, not recoverable runtime conditions.
	Forward(maximizerOutputs, correspondenceOutputs *tensor.Dense,
		inlierLabels, outlierLabels []bool) Result

	// NeedsCorrespondenceOutputs reports whether the variant reads the
	// correspondence tensor at all.
	NeedsCorrespondenceOutputs() bool
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// logFloor is log(max(p, epsilon)), keeping the loss finite as p approaches 0.
func logFloor(p, epsilon float32) float32 {
	return math32.Log(math32.Max(p, epsilon))
}

// bceWithLogits is binary cross entropy folded with the sigmoid, evaluated in
// the numerically stable form max(x,0) - x*t + log(1 + exp(-|x|)).
func bceWithLogits(x, target float32) float32 {
	return math32.Max(x, 0) - x*target + math32.Log1p(math32.Exp(-math32.Abs(x)))
}
