package fits

import "github.com/pkg/errors"

// Image is a single FITS image: scalar geometry and metadata cached from the
// header, the header cards themselves and the canonical pixel buffer.
//
// Pix holds Width*Height unsigned 16 bit samples in native byte order with
// the first sample at the upper left of the scene.  Header and Pix may each
// be nil; an image without pixels is header-only.
//
// An Image is not safe for concurrent use.
type Image struct {
	// Width and Height are NAXIS1 and NAXIS2
	Width, Height int

	// XBin and YBin are the binning factors, XFACTOR and YFACTOR
	XBin, YBin int

	// OffsetX and OffsetY locate the frame on the sensor, OFFSET1 and OFFSET2
	OffsetX, OffsetY int

	// Exposure is EXPTIME in milliseconds
	Exposure int

	// Bitpix is the declared encoding while reading; 16 once pixels are in memory
	Bitpix Bitpix

	Header *Header
	Pix    []uint16
}

// NewImage returns an initialized image
func NewImage() *Image {
	img := &Image{}
	img.Init()
	return img
}

// Init zeroes every field and sets the binning factors to 1
func (img *Image) Init() {
	*img = Image{XBin: 1, YBin: 1}
}

// Reset releases the header and pixels and reinitializes img
func (img *Image) Reset() {
	img.Init()
}

// HeaderOnly is true when img carries no pixels
func (img *Image) HeaderOnly() bool {
	return img.Pix == nil
}

// NPix is Width*Height
func (img *Image) NPix() int {
	return img.Width * img.Height
}

// hdr returns the header, creating it on first use
func (img *Image) hdr() *Header {
	if img.Header == nil {
		img.Header = NewHeader()
	}
	return img.Header
}

// CopyHeader copies the scalar fields and an independent copy of the header
// of src into dst.  dst.Pix is left as it was.
func CopyHeader(dst, src *Image) {
	pix := dst.Pix
	*dst = *src
	dst.Pix = pix
	if src.Header != nil {
		dst.Header = src.Header.Clone()
	}
}

// Copy makes dst a full, independent copy of src
func Copy(dst, src *Image) error {
	CopyHeader(dst, src)
	dst.Pix = nil
	if src.Pix == nil {
		return nil
	}
	if len(src.Pix) != src.NPix() {
		n := len(src.Pix)
		dst.Reset()
		return errors.Wrapf(ErrAlloc, "pixel buffer holds %d samples, expected %d", n, src.NPix())
	}
	dst.Pix = make([]uint16, len(src.Pix))
	copy(dst.Pix, src.Pix)
	return nil
}

// SetSimpleHeader adds the basic cards describing img to its header:
// SIMPLE, BITPIX, NAXIS, NAXIS1, NAXIS2, BZERO, BSCALE, OFFSET1, OFFSET2,
// XFACTOR, YFACTOR and EXPTIME.  END and padding are not added.
func (img *Image) SetSimpleHeader(bias int) {
	h := img.hdr()
	h.SetLogical("SIMPLE", true, "Standard FITS")
	h.SetInt("BITPIX", int(img.Bitpix), "Bits per pixel")
	h.SetInt("NAXIS", 2, "Number of dimensions")
	h.SetInt("NAXIS1", img.Width, "Number of columns")
	h.SetInt("NAXIS2", img.Height, "Number of rows")
	h.SetReal("BZERO", float64(bias), 6, "Real = Pixel*BSCALE + BZERO")
	h.SetReal("BSCALE", 1.0, 6, "Pixel scale factor")
	h.SetInt("OFFSET1", img.OffsetX, "Camera upper left frame x")
	h.SetInt("OFFSET2", img.OffsetY, "Camera upper left frame y")
	h.SetInt("XFACTOR", img.XBin, "Camera x binning factor")
	h.SetInt("YFACTOR", img.YBin, "Camera y binning factor")
	h.SetReal("EXPTIME", float64(img.Exposure)/1000.0, 6, "Exposure time, seconds")
}
