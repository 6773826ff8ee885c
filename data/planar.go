package data

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// HomographyPair relates two views of a planar scene by a 3x3 homography
// mapping image 1 pixels onto image 2. The inverse is computed once at
// construction.
type HomographyPair struct {
	image1, image2 *tensor.Dense
	name           string
	h, hInv        *mat.Dense
}

func NewHomographyPair(image1, image2 *tensor.Dense, homography *mat.Dense, name string) (*HomographyPair, error) {
	if r, c := homography.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("homography for %q is %dx%d, want 3x3", name, r, c)
	}
	hInv := mat.NewDense(3, 3, nil)
	if err := hInv.Inverse(homography); err != nil {
		return nil, errors.Wrapf(err, "inverting homography for %q", name)
	}
	return &HomographyPair{image1: image1, image2: image2, name: name, h: homography, hInv: hInv}, nil
}

func (p *HomographyPair) Image1() *tensor.Dense { return p.image1 }
func (p *HomographyPair) Image2() *tensor.Dense { return p.image2 }
func (p *HomographyPair) Name() string          { return p.name }

// Correspondences projects pixelsXY through the homography (or its inverse)
// and dehomogenizes. Planar transfer keeps every point trackable.
func (p *HomographyPair) Correspondences(pixelsXY *mat.Dense, inverse bool) (*mat.Dense, []int) {
	h := p.h
	if inverse {
		h = p.hInv
	}

	_, k := pixelsXY.Dims()
	homogeneous := mat.NewDense(3, k, nil)
	for j := 0; j < k; j++ {
		homogeneous.Set(0, j, pixelsXY.At(0, j))
		homogeneous.Set(1, j, pixelsXY.At(1, j))
		homogeneous.Set(2, j, 1)
	}

	var projected mat.Dense
	projected.Mul(h, homogeneous)

	out := mat.NewDense(2, k, nil)
	tracked := make([]int, k)
	for j := 0; j < k; j++ {
		w := projected.At(2, j)
		out.Set(0, j, projected.At(0, j)/w)
		out.Set(1, j, projected.At(1, j)/w)
		tracked[j] = j
	}
	return out, tracked
}
