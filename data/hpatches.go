package data

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

const sequenceViews = 6

// PairGenerator yields every ordered view pair of a planar six-view sequence
// directory: six frames of the same scene plus the five plain-text 3x3
// homographies H_1_2 .. H_1_6 mapping view 1 onto the others, 15 pairs total.
type PairGenerator struct {
	name         string
	images       []*tensor.Dense
	homographies []*mat.Dense // view 1 -> view i+2
	order        [][2]int
}

// ReadSequenceDir loads a sequence directory. Frames may be ppm, pgm, png or
// jpg; the first extension with matches wins.
func ReadSequenceDir(path string, grayscale bool) (*PairGenerator, error) {
	var seq *FileListImageSequence
	for _, ext := range []string{"*.ppm", "*.pgm", "*.png", "*.jpg"} {
		s, err := NewGlobImageSequence(filepath.Join(path, ext), grayscale)
		if err != nil {
			return nil, err
		}
		if s.Len() > 0 {
			seq = s
			break
		}
	}
	if seq == nil || seq.Len() != sequenceViews {
		n := 0
		if seq != nil {
			n = seq.Len()
		}
		return nil, errors.Errorf("sequence %q has %d frames, want %d", path, n, sequenceViews)
	}

	images := make([]*tensor.Dense, seq.Len())
	for i := range images {
		img, err := seq.At(i)
		if err != nil {
			return nil, err
		}
		images[i] = img
	}

	homographies := make([]*mat.Dense, sequenceViews-1)
	for i := range homographies {
		h, err := readHomographyFile(filepath.Join(path, fmt.Sprintf("H_1_%d", i+2)))
		if err != nil {
			return nil, err
		}
		homographies[i] = h
	}

	return newPairGenerator(filepath.Base(path), images, homographies), nil
}

func newPairGenerator(name string, images []*tensor.Dense, homographies []*mat.Dense) *PairGenerator {
	var order [][2]int
	for i := 0; i < len(images); i++ {
		for j := i + 1; j < len(images); j++ {
			order = append(order, [2]int{i, j})
		}
	}
	return &PairGenerator{name: name, images: images, homographies: homographies, order: order}
}

func (g *PairGenerator) Name() string { return g.name }

func (g *PairGenerator) Len() int { return len(g.order) }

// Pair composes the homography between the two views of pair index: view 0 to
// view j directly, otherwise H_1_j * inverse(H_1_i).
func (g *PairGenerator) Pair(index int) (CorrespondencePair, error) {
	view := g.order[index]
	i, j := view[0], view[1]

	h := g.homographies[j-1]
	if i != 0 {
		hInv := mat.NewDense(3, 3, nil)
		if err := hInv.Inverse(g.homographies[i-1]); err != nil {
			return nil, errors.Wrapf(err, "inverting homography 1->%d of %q", i+1, g.name)
		}
		composed := mat.NewDense(3, 3, nil)
		composed.Mul(g.homographies[j-1], hInv)
		h = composed
	}

	name := fmt.Sprintf("%s: %d %d", g.name, i+1, j+1)
	return NewHomographyPair(g.images[i], g.images[j], h, name)
}

// readHomographyFile parses nine whitespace-separated floats into a row-major
// 3x3 matrix.
func readHomographyFile(path string) (*mat.Dense, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading homography")
	}
	fields := strings.Fields(string(raw))
	if len(fields) != 9 {
		return nil, errors.Errorf("homography %q has %d values, want 9", path, len(fields))
	}
	values := make([]float64, 9)
	for i, f := range fields {
		if values[i], err = strconv.ParseFloat(f, 64); err != nil {
			return nil, errors.Wrapf(err, "parsing homography %q", path)
		}
	}
	return mat.NewDense(3, 3, values), nil
}
