package ohnm

// cell addresses one score in a row-major score matrix.
type cell struct {
	row, col int
}

// correspondenceOutlierCells selects the diagonal of the correspondence matrix
// restricted to outlier channels: channel c's response at its own
// correspondence site when c has no valid correspondence. These responses
// should stay low.
func correspondenceOutlierCells(outlier []bool) []cell {
	var cells []cell
	for c, out := range outlier {
		if out {
			cells = append(cells, cell{row: c, col: c})
		}
	}
	return cells
}

// maximaInlierCells selects expanded-inlier AND same-channel diagonal block:
// for each inlier channel, its own response at its maximum patch. These
// responses should be high.
func (l batchLayout) maximaInlierCells(inlier []bool) []cell {
	var cells []cell
	for c, in := range inlier {
		if in {
			cells = append(cells, cell{row: l.maximumPatchIndex(c), col: c})
		}
	}
	return cells
}

// maximaOutlierCells selects expanded-outlier AND same-channel diagonal block:
// every labeled patch without a matched target, evaluated by its own channel.
// These responses should be low.
func (l batchLayout) maximaOutlierCells(inlier, outlier []bool) []cell {
	expanded := l.expandOutlier(inlier, outlier)
	var cells []cell
	for r, out := range expanded {
		if out {
			cells = append(cells, cell{row: r, col: r / l.patchesPerChannel})
		}
	}
	return cells
}

// unalignedCells selects, on the C x C matrix of maximum-patch responses, the
// XOR of the inlier diagonal with the inlier column broadcast: cell (i, j) is
// selected iff channel i is an inlier and j != i, i.e. channel j's response at
// channel i's maximizing patch. A channel should not fire on another channel's
// match site.
func unalignedCells(inlier []bool) []cell {
	var cells []cell
	for i, in := range inlier {
		if !in {
			continue
		}
		for j := range inlier {
			if j != i {
				cells = append(cells, cell{row: i, col: j})
			}
		}
	}
	return cells
}
