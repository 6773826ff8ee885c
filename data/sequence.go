package data

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ImageSequence is an ordered collection of decoded images.
type ImageSequence interface {
	Len() int
	At(index int) (*tensor.Dense, error)
}

// FileListImageSequence decodes images lazily from an explicit list of files.
type FileListImageSequence struct {
	paths     []string
	grayscale bool
}

func NewFileListImageSequence(paths []string, grayscale bool) *FileListImageSequence {
	return &FileListImageSequence{paths: paths, grayscale: grayscale}
}

// NewGlobImageSequence builds a sequence from the sorted matches of pattern.
func NewGlobImageSequence(pattern string, grayscale bool) (*FileListImageSequence, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "globbing %q", pattern)
	}
	sort.Strings(paths)
	return NewFileListImageSequence(paths, grayscale), nil
}

func (s *FileListImageSequence) Len() int { return len(s.paths) }

func (s *FileListImageSequence) FileName(index int) string { return s.paths[index] }

// Filter keeps the files the predicate accepts, preserving order.
func (s *FileListImageSequence) Filter(keep func(path string) bool) *FileListImageSequence {
	var paths []string
	for _, p := range s.paths {
		if keep(p) {
			paths = append(paths, p)
		}
	}
	return NewFileListImageSequence(paths, s.grayscale)
}

func (s *FileListImageSequence) At(index int) (*tensor.Dense, error) {
	return LoadImage(s.paths[index], s.grayscale)
}

// LoadImage decodes an image file into a CxHxW float32 tensor scaled to
// [0, 1]. Grayscale loads produce a single channel.
func LoadImage(path string, grayscale bool) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %q", path)
	}
	return TensorFromImage(img, grayscale), nil
}

// TensorFromImage converts a decoded image to a CxHxW float32 tensor with
// values in [0, 1]: one luma channel when grayscale is set, RGB otherwise.
func TensorFromImage(img image.Image, grayscale bool) *tensor.Dense {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if grayscale {
		backing := make([]float32, h*w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				// ITU-R BT.601 luma.
				luma := 0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)
				backing[y*w+x] = luma / 0xffff
			}
		}
		return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(1, h, w), tensor.WithBacking(backing))
	}

	backing := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			backing[y*w+x] = float32(r) / 0xffff
			backing[h*w+y*w+x] = float32(g) / 0xffff
			backing[2*h*w+y*w+x] = float32(b) / 0xffff
		}
	}
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(3, h, w), tensor.WithBacking(backing))
}
