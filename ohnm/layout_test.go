package ohnm

import (
	"testing"

	"gorgonia.org/tensor"
)

func mustPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	f()
}

func TestCollapseScoresPassesThrough2D(t *testing.T) {
	backing := []float32{1, 2, 3, 4, 5, 6}
	scores, rows, cols := collapseScores(tensor.New(tensor.WithShape(3, 2), tensor.WithBacking(backing)), "scores")
	if rows != 3 || cols != 2 {
		t.Fatalf("collapseScores dims = %dx%d; want 3x2", rows, cols)
	}
	for i := range backing {
		if scores[i] != backing[i] {
			t.Errorf("scores[%d] = %v; want %v", i, scores[i], backing[i])
		}
	}
}

func TestCollapseScoresExtractsCenter(t *testing.T) {
	want := []float32{1.5, -2, 0.25, 3}
	backing := make([]float32, 2*2*3*3)
	for i := 0; i < 4; i++ {
		for j := 0; j < 9; j++ {
			backing[i*9+j] = 100
		}
		backing[i*9+4] = want[i] // center of the 3x3 footprint
	}
	scores, rows, cols := collapseScores(tensor.New(tensor.WithShape(2, 2, 3, 3), tensor.WithBacking(backing)), "scores")
	if rows != 2 || cols != 2 {
		t.Fatalf("collapseScores dims = %dx%d; want 2x2", rows, cols)
	}
	for i := range want {
		if scores[i] != want[i] {
			t.Errorf("scores[%d] = %v; want %v", i, scores[i], want[i])
		}
	}
}

func TestCollapseScoresSingletonFootprint(t *testing.T) {
	backing := []float32{1, 2, 3, 4}
	scores, rows, cols := collapseScores(tensor.New(tensor.WithShape(2, 2, 1, 1), tensor.WithBacking(backing)), "scores")
	if rows != 2 || cols != 2 {
		t.Fatalf("collapseScores dims = %dx%d; want 2x2", rows, cols)
	}
	for i := range backing {
		if scores[i] != backing[i] {
			t.Errorf("scores[%d] = %v; want %v", i, scores[i], backing[i])
		}
	}
}

func TestCollapseScoresContractViolations(t *testing.T) {
	mustPanic(t, "non-square footprint", func() {
		collapseScores(tensor.New(tensor.WithShape(2, 2, 1, 3), tensor.WithBacking(make([]float32, 12))), "scores")
	})
	mustPanic(t, "3-D shape", func() {
		collapseScores(tensor.New(tensor.WithShape(2, 2, 3), tensor.WithBacking(make([]float32, 12))), "scores")
	})
}

func TestDecodeLayoutContractViolations(t *testing.T) {
	mustPanic(t, "indivisible batch", func() {
		decodeLayout(5, 2, []bool{false, false}, []bool{false, false})
	})
	mustPanic(t, "label length mismatch", func() {
		decodeLayout(4, 2, []bool{false}, []bool{false, false})
	})
	mustPanic(t, "channel both inlier and outlier", func() {
		decodeLayout(4, 2, []bool{true, false}, []bool{true, false})
	})
}

func TestLabelExpansion(t *testing.T) {
	layout := decodeLayout(6, 3, []bool{true, false, false}, []bool{false, true, false})

	if got := layout.patchesPerChannel; got != 2 {
		t.Fatalf("patchesPerChannel = %d; want 2", got)
	}
	for c, want := range []int{0, 2, 4} {
		if got := layout.maximumPatchIndex(c); got != want {
			t.Errorf("maximumPatchIndex(%d) = %d; want %d", c, got, want)
		}
	}

	checkBools := func(name string, got, want []bool) {
		t.Helper()
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s[%d] = %v; want %v", name, i, got[i], want[i])
			}
		}
	}
	inlier := []bool{true, false, false}
	outlier := []bool{false, true, false}
	checkBools("expandInlier", layout.expandInlier(inlier),
		[]bool{true, false, false, false, false, false})
	checkBools("expandHasData", layout.expandHasData(inlier, outlier),
		[]bool{true, true, true, true, false, false})
	checkBools("expandOutlier", layout.expandOutlier(inlier, outlier),
		[]bool{false, true, true, true, false, false})
}
