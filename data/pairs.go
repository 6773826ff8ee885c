// Package data provides the image pair and correspondence ground truth layer
// feeding the detector training step: planar stereo pairs related by
// homographies, sequence directories on disk, inlier/outlier channel labeling
// and dataset statistics.
package data

import (
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// ImagePair is two views of the same scene, decoded as CxHxW float32 tensors
// scaled to [0, 1].
type ImagePair interface {
	Image1() *tensor.Dense
	Image2() *tensor.Dense
	Name() string
}

// CorrespondencePair is an image pair with known point transfer between the
// views. Correspondences maps pixel coordinates from image 1 into image 2 (or
// the reverse when inverse is set). pixelsXY is 2xK with x in row 0 and y in
// row 1; the result holds one column per point that remained trackable, and
// the returned indices identify which input columns those are.
type CorrespondencePair interface {
	ImagePair
	Correspondences(pixelsXY *mat.Dense, inverse bool) (*mat.Dense, []int)
}

// Dataset is an indexed collection of correspondence pairs.
type Dataset interface {
	Len() int
	Pair(index int) (CorrespondencePair, error)
}
