package ohnm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
)

func bce64(x, target float64) float64 {
	return math.Max(x, 0) - x*target + math.Log1p(math.Exp(-math.Abs(x)))
}

func TestOutlierWeightClosedForm(t *testing.T) {
	loss := NewBCELoss()
	for _, n := range []int{2, 3, 5, 10} {
		k := float64(n)
		want := k*math.Log(k-1) - math.Log((k-1)/k) - k*math.Log(k) + 1
		got := loss.outlierWeight(n)
		approx(t, "outlierWeight", got, float32(want), 1e-3)
		if got <= 0 {
			t.Errorf("outlierWeight(%d) = %v; want positive", n, got)
		}
		if again := loss.outlierWeight(n); again != got {
			t.Errorf("outlierWeight(%d) memoized %v != %v", n, again, got)
		}
	}
	if got := loss.outlierWeight(1); got != 1 {
		t.Errorf("outlierWeight(1) = %v; want 1 from the seeded cache", got)
	}
}

func TestBCEMatchedAndUnmatched(t *testing.T) {
	maximizer := denseOf(4, 2, []float32{
		0.5, -0.3,
		-1.2, 0.4,
		0.1, 1.3,
		0.7, -0.8,
	})
	correspondence := denseOf(2, 2, []float32{
		0.2, -0.5,
		0.9, -1.1,
	})
	inlier := []bool{true, false}
	outlier := []bool{false, true}

	res := NewBCELoss().Forward(maximizer, correspondence, inlier, outlier)

	w2 := 1 - math.Log(2)
	wantCorr := bce64(-1.1, 1)
	wantMaxima := bce64(0.5, 1) + w2*(bce64(-1.2, 0)+bce64(1.3, 0)+bce64(-0.8, 0))
	wantUnaligned := bce64(-0.3, 0)

	wantPresent(t, res, OutlierCorrespondenceKey, float32(wantCorr), 1e-4)
	wantPresent(t, res, BCEMaximizerKey, float32(wantMaxima), 1e-4)
	wantPresent(t, res, UnalignedMaximizerKey, float32(wantUnaligned), 1e-4)
	approx(t, "Loss", res.Loss, float32(wantCorr+wantMaxima+wantUnaligned), 1e-4)
}

func TestBCEUnlabeledBatch(t *testing.T) {
	maximizer := denseOf(4, 2, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	correspondence := denseOf(2, 2, []float32{1, 2, 3, 4})
	inlier := []bool{false, false}
	outlier := []bool{false, false}

	res := NewBCELoss().Forward(maximizer, correspondence, inlier, outlier)

	wantAbsent(t, res, OutlierCorrespondenceKey)
	wantAbsent(t, res, BCEMaximizerKey)
	wantAbsent(t, res, UnalignedMaximizerKey)
	wantPresent(t, res, TotalKey, 0, 0)
	if res.Loss != 0 {
		t.Errorf("loss = %v; want 0 with every term absent", res.Loss)
	}
}

func TestBCESinglePatchPerChannel(t *testing.T) {
	// One patch per channel pins the outlier weight at 1; the weight formula
	// must never run at that size.
	maximizer := denseOf(2, 2, []float32{
		0.8, 0.1,
		-0.2, -0.4,
	})
	correspondence := denseOf(2, 2, []float32{
		0.3, 0,
		0, -0.6,
	})
	inlier := []bool{true, false}
	outlier := []bool{false, true}

	res := NewBCELoss().Forward(maximizer, correspondence, inlier, outlier)

	wantMaxima := bce64(0.8, 1) + bce64(-0.4, 0)
	wantPresent(t, res, BCEMaximizerKey, float32(wantMaxima), 1e-4)
	wantPresent(t, res, OutlierCorrespondenceKey, float32(bce64(-0.6, 1)), 1e-4)
	wantPresent(t, res, UnalignedMaximizerKey, float32(bce64(0.1, 0)), 1e-4)
	if math.IsNaN(float64(res.Loss)) || math.IsInf(float64(res.Loss), 0) {
		t.Fatalf("loss = %v; want finite", res.Loss)
	}
}

func TestBCEGradientMatchesFiniteDifference(t *testing.T) {
	inlier := []bool{true, false}
	outlier := []bool{false, true}
	x0 := []float64{
		0.5, -0.3,
		-1.2, 0.4,
		0.1, 1.3,
		0.7, -0.8,
		// correspondence
		0.2, -0.5,
		0.9, -1.1,
	}

	loss := NewBCELoss()
	eval := func(x []float64) float64 {
		maxBacking := make([]float32, 8)
		corrBacking := make([]float32, 4)
		for i := range maxBacking {
			maxBacking[i] = float32(x[i])
		}
		for i := range corrBacking {
			corrBacking[i] = float32(x[8+i])
		}
		res := loss.Forward(denseOf(4, 2, maxBacking), denseOf(2, 2, corrBacking), inlier, outlier)
		return float64(res.Loss)
	}

	numeric := fd.Gradient(nil, eval, x0, &fd.Settings{Formula: fd.Central, Step: 1e-3})

	maxBacking := make([]float32, 8)
	corrBacking := make([]float32, 4)
	for i := range maxBacking {
		maxBacking[i] = float32(x0[i])
	}
	for i := range corrBacking {
		corrBacking[i] = float32(x0[8+i])
	}
	res := loss.Forward(denseOf(4, 2, maxBacking), denseOf(2, 2, corrBacking), inlier, outlier)
	analytic := append(append([]float32{}, res.MaximizerGrad.Float32s()...), res.CorrespondenceGrad.Float32s()...)

	for i := range numeric {
		if diff := math.Abs(numeric[i] - float64(analytic[i])); diff > 5e-3 {
			t.Errorf("gradient[%d]: numeric %v vs analytic %v", i, numeric[i], analytic[i])
		}
	}
}
