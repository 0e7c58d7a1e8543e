package fits

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/warwick-one-metre/superwasp-talon/astro"
)

// TimeStamp sets DATE-OBS, TIME-OBS and JD on img for t in UTC.
// The zero time means now, to the microsecond; an explicit time is only
// honored to the second.  comment annotates the JD card.
func TimeStamp(img *Image, t time.Time, comment string) {
	if t.IsZero() {
		t = time.Now().Truncate(time.Microsecond)
	} else {
		t = t.Truncate(time.Second)
	}
	t = t.UTC()

	h := img.hdr()
	h.SetReal("JD", astro.JulianDate(t), 16, comment)
	h.SetString("DATE-OBS", fmt.Sprintf("%4d-%02d-%02d", t.Year(), int(t.Month()), t.Day()), "UTC CCYY-MM-DD")
	h.SetString("TIME-OBS", fmt.Sprintf("%02d:%02d:%02d.%02d", t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/10000000),
		"UTC HH:MM:SS.ss")
}

// FWHM holds point spread estimates in pixels
type FWHM struct {
	// H and HS are the horizontal median and standard deviation
	H, HS float64

	// V and VS are the vertical median and standard deviation
	V, VS float64
}

// FWHMFunc estimates the FWHM of the stars in a canonical pixel buffer.  The
// error explains why no estimate could be made.
type FWHMFunc func(pix []uint16, width, height int) (FWHM, error)

// SetFWHM runs fn over the pixels of img and records the result in the
// FWHMH, FWHMHS, FWHMV and FWHMVS cards
func SetFWHM(img *Image, fn FWHMFunc) error {
	if img.Pix == nil {
		return ErrNoPixels
	}
	f, err := fn(img.Pix, img.Width, img.Height)
	if err != nil {
		return errors.Wrap(err, "FWHM")
	}
	h := img.hdr()
	h.SetReal("FWHMH", f.H, 5, "Horizontal FWHM median, pixels")
	h.SetReal("FWHMHS", f.HS, 5, "Horizontal FWHM std dev, pixels")
	h.SetReal("FWHMV", f.V, 5, "Vertical FWHM median, pixels")
	h.SetReal("FWHMVS", f.VS, 5, "Vertical FWHM std dev, pixels")
	return nil
}
