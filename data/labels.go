package data

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LabelChannels produces the per-channel inlier/outlier vectors for one
// training step. anchors1 holds each channel's maximizing location in image 1
// and maxima2 its maximizing location in image 2, both 2xC with x in row 0 and
// y in row 1. A channel is an inlier when its anchor projects into image 2
// within tolerance pixels of the channel's maximum there, an outlier when it
// projects elsewhere, and carries neither label when the anchor cannot be
// tracked between the views. The two vectors are never both true at an index.
func LabelChannels(pair CorrespondencePair, anchors1, maxima2 *mat.Dense, tolerance float64) (inlier, outlier []bool) {
	ar, ac := anchors1.Dims()
	mr, mc := maxima2.Dims()
	if ar != 2 || mr != 2 || ac != mc {
		panic(fmt.Sprintf("data: anchors are %dx%d and maxima %dx%d, want matching 2xC", ar, ac, mr, mc))
	}

	inlier = make([]bool, ac)
	outlier = make([]bool, ac)

	projected, tracked := pair.Correspondences(anchors1, false)
	for col, channel := range tracked {
		dx := projected.At(0, col) - maxima2.At(0, channel)
		dy := projected.At(1, col) - maxima2.At(1, channel)
		if math.Hypot(dx, dy) <= tolerance {
			inlier[channel] = true
		} else {
			outlier[channel] = true
		}
	}
	return inlier, outlier
}
