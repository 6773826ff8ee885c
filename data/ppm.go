package data

import (
	"bufio"
	"image"
	"image/color"
	"io"

	"github.com/pkg/errors"
)

// Planar benchmark sequences ship their frames as binary Netpbm files, which
// the standard image codecs do not cover. decodeNetpbm handles the P5
// (grayscale) and P6 (RGB) raw formats with 8-bit samples.

func init() {
	image.RegisterFormat("ppm", "P6", decodeNetpbm, decodeNetpbmConfig)
	image.RegisterFormat("pgm", "P5", decodeNetpbm, decodeNetpbmConfig)
}

type netpbmHeader struct {
	magic         string
	width, height int
	maxVal        int
}

// readNetpbmHeader consumes the magic number and the three header integers,
// skipping whitespace and # comments, and leaves the reader at the first raw
// sample byte.
func readNetpbmHeader(r *bufio.Reader) (netpbmHeader, error) {
	var h netpbmHeader

	token := func() (string, error) {
		var tok []byte
		inComment := false
		for {
			b, err := r.ReadByte()
			if err != nil {
				if err == io.EOF && len(tok) > 0 {
					return string(tok), nil
				}
				return "", err
			}
			switch {
			case inComment:
				if b == '\n' {
					inComment = false
				}
			case b == '#':
				inComment = true
			case b == ' ' || b == '\t' || b == '\r' || b == '\n':
				if len(tok) > 0 {
					return string(tok), nil
				}
			default:
				tok = append(tok, b)
			}
		}
	}

	atoi := func(s string) (int, error) {
		n := 0
		if s == "" {
			return 0, errors.New("empty netpbm header field")
		}
		for _, c := range s {
			if c < '0' || c > '9' {
				return 0, errors.Errorf("bad netpbm header field %q", s)
			}
			n = n*10 + int(c-'0')
		}
		return n, nil
	}

	magic, err := token()
	if err != nil {
		return h, errors.Wrap(err, "reading netpbm magic")
	}
	if magic != "P5" && magic != "P6" {
		return h, errors.Errorf("unsupported netpbm magic %q", magic)
	}
	h.magic = magic

	fields := [3]*int{&h.width, &h.height, &h.maxVal}
	for _, dst := range fields {
		tok, err := token()
		if err != nil {
			return h, errors.Wrap(err, "reading netpbm header")
		}
		if *dst, err = atoi(tok); err != nil {
			return h, err
		}
	}
	if h.width <= 0 || h.height <= 0 {
		return h, errors.Errorf("bad netpbm dimensions %dx%d", h.width, h.height)
	}
	if h.maxVal <= 0 || h.maxVal > 255 {
		return h, errors.Errorf("unsupported netpbm max value %d", h.maxVal)
	}
	return h, nil
}

func decodeNetpbm(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := readNetpbmHeader(br)
	if err != nil {
		return nil, err
	}

	if h.magic == "P5" {
		img := image.NewGray(image.Rect(0, 0, h.width, h.height))
		raw := make([]byte, h.width*h.height)
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, errors.Wrap(err, "reading netpbm samples")
		}
		copy(img.Pix, raw)
		return img, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, h.width, h.height))
	raw := make([]byte, 3*h.width*h.height)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, errors.Wrap(err, "reading netpbm samples")
	}
	for i := 0; i < h.width*h.height; i++ {
		img.Pix[4*i] = raw[3*i]
		img.Pix[4*i+1] = raw[3*i+1]
		img.Pix[4*i+2] = raw[3*i+2]
		img.Pix[4*i+3] = 0xff
	}
	return img, nil
}

func decodeNetpbmConfig(r io.Reader) (image.Config, error) {
	h, err := readNetpbmHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	cfg := image.Config{Width: h.width, Height: h.height, ColorModel: color.RGBAModel}
	if h.magic == "P5" {
		cfg.ColorModel = color.GrayModel
	}
	return cfg, nil
}
