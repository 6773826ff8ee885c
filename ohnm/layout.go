package ohnm

import (
	"fmt"

	"gorgonia.org/tensor"
)

// batchLayout describes how the flat maximizer rows decompose into channels:
// row c*patchesPerChannel+k is patch k of channel c's own image crop, and the
// first patch of each block is the channel's designated own-correspondence
// patch.
type batchLayout struct {
	channels          int // C
	patchesPerChannel int // N
	rows              int // B = C*N
}

// collapseScores validates the shape contract for a score tensor and returns
// its values as a row-major rows x cols float32 matrix, taking the center cell
// when a spatial footprint is present.
func collapseScores(t *tensor.Dense, name string) ([]float32, int, int) {
	shape := t.Shape()
	switch len(shape) {
	case 2:
		return t.Float32s(), shape[0], shape[1]
	case 4:
		if shape[2] != shape[3] {
			panic(fmt.Sprintf("ohnm: %s spatial footprint %dx%d is not square", name, shape[2], shape[3]))
		}
	default:
		panic(fmt.Sprintf("ohnm: %s must be 2-D or 4-D, got shape %v", name, shape))
	}
	rows, cols, side := shape[0], shape[1], shape[2]
	center := (side - 1) / 2
	data := t.Float32s()
	out := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = data[((r*cols+c)*side+center)*side+center]
		}
	}
	return out, rows, cols
}

// decodeLayout checks the batch contract and derives the channel/patch grid.
func decodeLayout(rows, cols int, inlier, outlier []bool) batchLayout {
	if cols == 0 || rows%cols != 0 {
		panic(fmt.Sprintf("ohnm: %d maximizer rows do not divide into %d channels", rows, cols))
	}
	if len(inlier) != cols || len(outlier) != cols {
		panic(fmt.Sprintf("ohnm: label lengths %d/%d do not match %d channels", len(inlier), len(outlier), cols))
	}
	for c := range inlier {
		if inlier[c] && outlier[c] {
			panic(fmt.Sprintf("ohnm: channel %d labeled both inlier and outlier", c))
		}
	}
	return batchLayout{channels: cols, patchesPerChannel: rows / cols, rows: rows}
}

// maximumPatchIndex is the flat row of channel c's designated
// own-correspondence patch: the first patch of its block.
func (l batchLayout) maximumPatchIndex(c int) int { return c * l.patchesPerChannel }

// expandInlier places each channel's inlier flag at its maximum patch index
// and false everywhere else.
func (l batchLayout) expandInlier(inlier []bool) []bool {
	expanded := make([]bool, l.rows)
	for c, in := range inlier {
		if in {
			expanded[l.maximumPatchIndex(c)] = true
		}
	}
	return expanded
}

// expandHasData broadcasts inlier OR outlier across each channel's patch block.
func (l batchLayout) expandHasData(inlier, outlier []bool) []bool {
	expanded := make([]bool, l.rows)
	for c := range inlier {
		if inlier[c] || outlier[c] {
			start := l.maximumPatchIndex(c)
			for k := 0; k < l.patchesPerChannel; k++ {
				expanded[start+k] = true
			}
		}
	}
	return expanded
}

// expandOutlier is has-data AND NOT expanded-inlier: every labeled patch that
// is not a channel's designated correspondence patch.
func (l batchLayout) expandOutlier(inlier, outlier []bool) []bool {
	expanded := l.expandHasData(inlier, outlier)
	for c, in := range inlier {
		if in {
			expanded[l.maximumPatchIndex(c)] = false
		}
	}
	return expanded
}
