package data

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// MeanStdDev computes the per-channel mean and standard deviation over every
// image of a pair dataset in one pass, folding each image in with the
// parallel variance update so the accumulators stay stable across millions of
// pixels. Both images of every pair contribute.
func MeanStdDev(ds Dataset) (mean, stdDev []float64, err error) {
	var m2 []float64
	nOld := 0
	buf := []float64(nil)

	fold := func(img *tensor.Dense) error {
		shape := img.Shape()
		if len(shape) != 3 {
			return errors.Errorf("image tensor has shape %v, want CxHxW", shape)
		}
		channels, pixels := shape[0], shape[1]*shape[2]
		if mean == nil {
			mean = make([]float64, channels)
			m2 = make([]float64, channels)
		}
		if len(mean) != channels {
			return errors.Errorf("image has %d channels, want %d", channels, len(mean))
		}
		if cap(buf) < pixels {
			buf = make([]float64, pixels)
		}
		buf = buf[:pixels]

		values := img.Float32s()
		nTotal := nOld + pixels
		for c := 0; c < channels; c++ {
			for i, v := range values[c*pixels : (c+1)*pixels] {
				buf[i] = float64(v)
			}
			batchMean := floats.Sum(buf) / float64(pixels)
			floats.AddConst(-batchMean, buf)
			m2New := floats.Dot(buf, buf)

			delta := batchMean - mean[c]
			mean[c] += delta * float64(pixels) / float64(nTotal)
			m2[c] += m2New + delta*delta*float64(nOld)*float64(pixels)/float64(nTotal)
		}
		nOld = nTotal
		return nil
	}

	for i := 0; i < ds.Len(); i++ {
		pair, err := ds.Pair(i)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "loading pair %d", i)
		}
		if err := fold(pair.Image1()); err != nil {
			return nil, nil, err
		}
		if err := fold(pair.Image2()); err != nil {
			return nil, nil, err
		}
	}

	if nOld < 2 {
		return nil, nil, errors.New("dataset holds fewer than two pixels")
	}
	stdDev = make([]float64, len(m2))
	for c := range m2 {
		stdDev[c] = math.Sqrt(m2[c] / float64(nOld-1))
	}
	return mean, stdDev, nil
}
