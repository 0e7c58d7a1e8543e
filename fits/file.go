/*Package fits reads and writes single image FITS files.

Each file is a header of 80 column ASCII cards, 36 to a 2880 byte block and
terminated by END, followed by the pixels padded with zeros to a whole block.
On disk, pixels are big-endian signed 16 bit, signed 32 bit or IEEE float
with the first pixel at the lower left of the scene.  In memory they are
always unsigned 16 bit in native byte order, the first pixel at the upper
left.  Only two dimensional primary images are supported.

A minimal round trip looks like

	img := fits.NewImage()
	err := fits.ReadFITS(f, img)
	...
	img.Header.SetString("OBJECT", "M31", "Target name")
	err = fits.WriteFITS(out, img, true)

Signed integer samples are recentered by a bias (BZERO) on the way in and
out; Codec carries it, and the package level functions use DefaultBias.
*/
package fits

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// writeFull keeps writing until buf is consumed, the writer fails, or it
// accepts nothing.  The writer may be a pipe.
func writeFull(w io.Writer, buf []byte) error {
	for nw := 0; nw < len(buf); {
		n, err := w.Write(buf[nw:])
		if err != nil {
			return err
		}
		if n <= 0 {
			return ErrShortWrite
		}
		nw += n
	}
	return nil
}

// readFull keeps reading until buf is full.  End of stream, or a read that
// returns nothing, before then is ErrShortData.
func readFull(r io.Reader, buf []byte) error {
	for ntot := 0; ntot < len(buf); {
		n, err := r.Read(buf[ntot:])
		ntot += n
		if ntot == len(buf) {
			return nil
		}
		if err == io.EOF {
			return ErrShortData
		}
		if err != nil {
			return err
		}
		if n <= 0 {
			return ErrShortData
		}
	}
	return nil
}

// pad writes zeros so that a stream holding nbytes ends on a block boundary
func pad(w io.Writer, nbytes int) error {
	n := (BlockSize - nbytes%BlockSize) % BlockSize
	if n == 0 {
		return nil
	}
	if err := writeFull(w, make([]byte, n)); err != nil {
		return errors.Wrapf(err, "adding padding of %d", n)
	}
	return nil
}

// WriteFITS writes img to w: the header, the pixels in FITS form and the
// padding.  The pixels are converted in place; if restore is true they are
// converted back afterwards, otherwise they are left in on-disk form.
func (c Codec) WriteFITS(w io.Writer, img *Image, restore bool) error {
	if img.Pix == nil {
		return ErrNoPixels
	}
	npix := img.NPix()
	if len(img.Pix) < npix {
		return errors.Wrapf(ErrNoPixels, "have %d pixels for a %dx%d image", len(img.Pix), img.Width, img.Height)
	}

	if err := WriteHeader(w, img.Header); err != nil {
		return err
	}

	pix := img.Pix[:npix]
	c.Encode(pix)
	if restore {
		defer c.Restore(pix)
	}

	buf := pixelBytes(pix)
	if err := writeFull(w, buf); err != nil {
		return errors.Wrap(err, "writing FITS pixels")
	}
	return pad(w, len(buf))
}

// ReadFITS reads a whole file from r into img.  The pixels are converted from
// the declared BITPIX into canonical form and img.Bitpix becomes 16.  On any
// error img is reset.  Block padding after the pixels is not consumed.
func (c Codec) ReadFITS(r io.Reader, img *Image) error {
	if err := ReadHeader(r, img); err != nil {
		return err
	}
	return c.ReadPixels(r, img)
}

// DataSize is the number of bytes of memory ReadPixels needs for img, the
// canonical buffer plus the on-disk samples.  It is -1 when the geometry
// cannot be allocated.
func DataSize(img *Image) int64 {
	npix := img.NPix()
	if img.Width != 0 && npix/img.Width != img.Height || npix > math.MaxInt32 || npix < 0 {
		return -1
	}
	return int64(npix) * int64(2+img.Bitpix.Size())
}

// ReadPixels reads the pixels that follow a header already read into img by
// ReadHeader.  On any error img is reset.
func (c Codec) ReadPixels(r io.Reader, img *Image) error {
	if DataSize(img) < 0 {
		img.Reset()
		return errors.Wrapf(ErrAlloc, "%d x %d pixels", img.Width, img.Height)
	}
	npix := img.NPix()
	img.Pix = make([]uint16, npix)

	// on-disk samples land here first, then are converted into img.Pix
	scratch := make([]byte, npix*img.Bitpix.Size())
	if err := readFull(r, scratch); err != nil {
		img.Reset()
		return errors.Wrap(err, "reading FITS pixels")
	}

	if err := c.Decode(img.Bitpix, img.Pix, scratch); err != nil {
		img.Reset()
		return err
	}
	img.Bitpix = Int16
	return nil
}

// WriteSimpleFITS writes a w x h canonical pixel buffer with a header of the
// basic cards.  x and y are the frame offsets and dur the exposure in ms.
// pix is converted in place and only converted back if restore is true.
func (c Codec) WriteSimpleFITS(out io.Writer, pix []uint16, w, h, x, y, dur int, restore bool) error {
	img := NewImage()
	img.Width = w
	img.Height = h
	img.OffsetX = x
	img.OffsetY = y
	img.Exposure = dur
	img.Bitpix = Int16
	img.Pix = pix
	img.SetSimpleHeader(c.Bias)
	return c.WriteFITS(out, img, restore)
}

// WriteFITS writes img with the default codec
func WriteFITS(w io.Writer, img *Image, restore bool) error {
	return Default.WriteFITS(w, img, restore)
}

// ReadFITS reads img with the default codec
func ReadFITS(r io.Reader, img *Image) error {
	return Default.ReadFITS(r, img)
}

// WriteSimpleFITS writes pix with the default codec
func WriteSimpleFITS(out io.Writer, pix []uint16, w, h, x, y, dur int, restore bool) error {
	return Default.WriteSimpleFITS(out, pix, w, h, x, y, dur, restore)
}
