// Package interop exchanges images with github.com/astrogo/fitsio, which
// understands every primary BITPIX and is used to import files the fits
// package itself would refuse.
package interop

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/pkg/errors"

	"github.com/warwick-one-metre/superwasp-talon/fits"
	"github.com/warwick-one-metre/superwasp-talon/util"
)

// structural is true for cards fitsio writes on its own, and for the scaling
// cards that describe a particular pixel encoding
func structural(name string) bool {
	switch name {
	case "SIMPLE", "BITPIX", "NAXIS", "EXTEND", "END", "BZERO", "BSCALE":
		return true
	}
	return strings.HasPrefix(name, "NAXIS") && util.AllElementsNumbers(name[5:])
}

// Cards converts the cards of h to fitsio cards, leaving out the structural
// and scaling cards.  Repeated keywords other than commentary keep their
// first value.
func Cards(h *fits.Header) []fitsio.Card {
	var out []fitsio.Card
	seen := map[string]bool{}
	for _, c := range h.Cards() {
		if structural(c.Name) {
			continue
		}
		var fc fitsio.Card
		switch v := c.Value.(type) {
		case fits.Logical:
			fc = fitsio.Card{Name: c.Name, Value: bool(v), Comment: c.Comment}
		case fits.Integer:
			fc = fitsio.Card{Name: c.Name, Value: int(v), Comment: c.Comment}
		case fits.Real:
			fc = fitsio.Card{Name: c.Name, Value: v.V, Comment: c.Comment}
		case fits.String:
			fc = fitsio.Card{Name: c.Name, Value: string(v), Comment: c.Comment}
		case fits.Text:
			out = append(out, fitsio.Card{Name: c.Name, Comment: string(v)})
			continue
		default:
			continue
		}
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, fc)
	}
	return out
}

// WriteFitsio writes img as a BITPIX 16 primary image through fitsio.  bias
// is subtracted from every sample and recorded as BZERO.  img.Pix is not
// modified.
func WriteFitsio(w io.Writer, img *fits.Image, bias int) error {
	if img.Pix == nil || len(img.Pix) < img.NPix() {
		return fits.ErrNoPixels
	}
	metadata := append(Cards(img.Header),
		fitsio.Card{Name: "BZERO", Value: bias},
		fitsio.Card{Name: "BSCALE", Value: 1.0})

	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()
	im := fitsio.NewImage(16, []int{img.Width, img.Height})
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}

	ints := make([]int16, img.NPix())
	for i := range ints {
		ints[i] = int16(int(img.Pix[i]) - bias)
	}
	err = im.Write(ints)
	if err != nil {
		return err
	}
	return f.Write(im)
}

// ReadForeign reads the primary image of any FITS file fitsio can open.
// Signed integer samples have bias added, and every sample is clamped to
// the canonical range.  The returned image has Bitpix 16 and a header of the
// simple cards followed by the non structural cards of the file.
func ReadForeign(r io.Reader, bias int) (*fits.Image, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening foreign FITS")
	}
	defer f.Close()

	im, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, errors.Wrap(fits.ErrInvalidFormat, "primary HDU is not an image")
	}
	hdr := im.Header()
	axes := hdr.Axes()
	if len(axes) < 2 {
		return nil, errors.Wrapf(fits.ErrInvalidFormat, "image has %d axes", len(axes))
	}
	for i, n := range axes[2:] {
		if n != 1 {
			return nil, errors.Wrapf(fits.ErrInvalidFormat, "Require NAXIS%d to be 1", i+3)
		}
	}

	img := fits.NewImage()
	img.Width, img.Height = axes[0], axes[1]
	img.Pix = make([]uint16, img.NPix())
	if err := decode(hdr.Bitpix(), bias, img.Pix, im.Raw()); err != nil {
		return nil, err
	}
	img.Bitpix = fits.Int16

	for i := range hdr.Keys() {
		c := hdr.Card(i)
		if structural(c.Name) {
			continue
		}
		switch c.Name {
		case "XFACTOR":
			img.XBin = intValue(c.Value, img.XBin)
		case "YFACTOR":
			img.YBin = intValue(c.Value, img.YBin)
		case "OFFSET1":
			img.OffsetX = intValue(c.Value, img.OffsetX)
		case "OFFSET2":
			img.OffsetY = intValue(c.Value, img.OffsetY)
		case "EXPTIME":
			if d, ok := c.Value.(float64); ok {
				img.Exposure = int(d * 1000)
			} else {
				img.Exposure = intValue(c.Value, 0) * 1000
			}
		}
	}
	img.SetSimpleHeader(bias)
	for i := range hdr.Keys() {
		copyCard(img.Header, hdr.Card(i))
	}
	return img, nil
}

func intValue(v interface{}, def int) int {
	switch v := v.(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

func copyCard(h *fits.Header, c *fitsio.Card) {
	if structural(c.Name) {
		return
	}
	switch v := c.Value.(type) {
	case nil:
		h.AddComment(c.Name, c.Comment)
	case bool:
		h.SetLogical(c.Name, v, c.Comment)
	case int:
		h.SetInt(c.Name, v, c.Comment)
	case int64:
		h.SetInt(c.Name, int(v), c.Comment)
	case float32:
		h.SetReal(c.Name, float64(v), 0, c.Comment)
	case float64:
		h.SetReal(c.Name, v, 0, c.Comment)
	case string:
		h.SetString(c.Name, v, c.Comment)
	default:
		h.SetString(c.Name, fmt.Sprint(v), c.Comment)
	}
}

func clamp16(v float64) uint16 {
	if math.IsNaN(v) {
		return 0
	}
	return uint16(util.Clamp(v, 0, math.MaxUint16))
}

// decode converts big-endian samples in raw to canonical pixels
func decode(bitpix, bias int, dst []uint16, raw []byte) error {
	size := bitpix / 8
	if size < 0 {
		size = -size
	}
	if size == 0 || len(raw) < len(dst)*size {
		return errors.Wrapf(fits.ErrShortData, "%d bytes for %d pixels of BITPIX %d", len(raw), len(dst), bitpix)
	}
	b := float64(bias)
	for i := range dst {
		p := raw[i*size:]
		switch bitpix {
		case 8:
			dst[i] = uint16(p[0])
		case 16:
			dst[i] = clamp16(float64(int16(binary.BigEndian.Uint16(p))) + b)
		case 32:
			dst[i] = clamp16(float64(int32(binary.BigEndian.Uint32(p))) + b)
		case 64:
			dst[i] = clamp16(float64(int64(binary.BigEndian.Uint64(p))) + b)
		case -32:
			dst[i] = clamp16(float64(math.Float32frombits(binary.BigEndian.Uint32(p))))
		case -64:
			dst[i] = clamp16(math.Float64frombits(binary.BigEndian.Uint64(p)))
		default:
			return errors.Wrapf(fits.ErrInvalidFormat, "unsupported BITPIX %d", bitpix)
		}
	}
	return nil
}
