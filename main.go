package main

import (
	"fmt"
	"math/rand"
	"os"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"imip/data"
	"imip/ohnm"
)

const (
	Channels          = 8
	PatchesPerChannel = 4
	TolerancePx       = 3.0
	Seed              = 0
)

func main() {
	rand.Seed(Seed)

	if len(os.Args) > 1 {
		if err := reportSequence(os.Args[1]); err != nil {
			fmt.Println("Error reading sequence:", err)
			return
		}
	}

	maximizer, correspondence := syntheticBatch(Channels, PatchesPerChannel)
	inlier, outlier := syntheticLabels(Channels)

	fmt.Println("classic (probability) loss:")
	printResult(ohnm.NewClassicLoss(ohnm.DefaultEpsilon).Forward(maximizer, correspondence, inlier, outlier))

	fmt.Println("bce (logit) loss:")
	printResult(ohnm.NewBCELoss().Forward(maximizer, correspondence, inlier, outlier))
}

func reportSequence(path string) error {
	seq, err := data.ReadSequenceDir(path, true)
	if err != nil {
		return err
	}
	fmt.Printf("sequence %s: %d pairs\n", seq.Name(), seq.Len())

	mean, stdDev, err := data.MeanStdDev(seq)
	if err != nil {
		return err
	}
	fmt.Printf("channel mean %v, std dev %v\n", mean, stdDev)

	pair, err := seq.Pair(0)
	if err != nil {
		return err
	}
	shape := pair.Image1().Shape()
	h, w := shape[1], shape[2]

	// Stand-in maximizing locations: a channel's image 2 maximum sits at its
	// projected anchor, so labeling marks every trackable channel an inlier.
	anchors := mat.NewDense(2, Channels, nil)
	for c := 0; c < Channels; c++ {
		anchors.Set(0, c, rand.Float64()*float64(w))
		anchors.Set(1, c, rand.Float64()*float64(h))
	}
	maxima, _ := pair.Correspondences(anchors, false)
	inlier, outlier := data.LabelChannels(pair, anchors, maxima, TolerancePx)

	inliers, outliers := 0, 0
	for c := range inlier {
		if inlier[c] {
			inliers++
		}
		if outlier[c] {
			outliers++
		}
	}
	fmt.Printf("pair %s: %d inlier channels, %d outlier channels\n", pair.Name(), inliers, outliers)
	return nil
}

// syntheticBatch draws random detector responses for a demo step.
func syntheticBatch(channels, patchesPerChannel int) (maximizer, correspondence *tensor.Dense) {
	rows := channels * patchesPerChannel
	maxBacking := make([]float32, rows*channels)
	for i := range maxBacking {
		maxBacking[i] = float32(rand.NormFloat64())
	}
	corrBacking := make([]float32, channels*channels)
	for i := range corrBacking {
		corrBacking[i] = float32(rand.NormFloat64())
	}
	maximizer = tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(rows, channels), tensor.WithBacking(maxBacking))
	correspondence = tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(channels, channels), tensor.WithBacking(corrBacking))
	return maximizer, correspondence
}

func syntheticLabels(channels int) (inlier, outlier []bool) {
	inlier = make([]bool, channels)
	outlier = make([]bool, channels)
	for c := 0; c < channels; c++ {
		switch rand.Intn(3) {
		case 0:
			inlier[c] = true
		case 1:
			outlier[c] = true
		}
	}
	return inlier, outlier
}

func printResult(res ohnm.Result) {
	keys := make([]string, 0, len(res.Terms))
	for key := range res.Terms {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		term := res.Terms[key]
		if term.Present {
			fmt.Printf("  %s = %.6f\n", key, term.Value)
		} else {
			fmt.Printf("  %s = absent\n", key)
		}
	}
}
