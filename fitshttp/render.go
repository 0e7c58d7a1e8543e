package fitshttp

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"github.com/disintegration/gift"

	"github.com/warwick-one-metre/superwasp-talon/fits"
)

// Gray16 returns the pixels of img as an image with a linear stretch from
// the lowest to the highest sample.  Row 0 of the result is row 0 of img.
func Gray16(img *fits.Image) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	n := img.NPix()
	if n == 0 || len(img.Pix) < n {
		return out
	}
	lo, hi := img.Pix[0], img.Pix[0]
	for _, p := range img.Pix[:n] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	span := float64(hi) - float64(lo)
	for i, p := range img.Pix[:n] {
		v := uint16(0)
		if span > 0 {
			v = uint16((float64(p) - float64(lo)) / span * 65535)
		}
		out.SetGray16(i%img.Width, i/img.Width, color.Gray16{Y: v})
	}
	return out
}

// Preview returns the stretched image scaled to width pixels across, keeping
// the aspect ratio.  Images no wider than width are not scaled.
func Preview(img *fits.Image, width int) *image.Gray16 {
	src := Gray16(img)
	if width <= 0 || width >= img.Width {
		return src
	}
	g := gift.New(gift.Resize(width, 0, gift.LinearResampling))
	dst := image.NewGray16(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// render writes img as png or jpg, scaled to width if it is positive, setting
// the content type on w if it is an http.ResponseWriter
func render(w io.Writer, img *fits.Image, format string, width int) error {
	g := Preview(img, width)
	ct := "image/png"
	if format != "png" {
		ct = "image/jpeg"
	}
	if rw, ok := w.(http.ResponseWriter); ok {
		rw.Header().Set("Content-Type", ct)
	}
	if format == "png" {
		return png.Encode(w, g)
	}
	return jpeg.Encode(w, g, &jpeg.Options{Quality: 90})
}
