package fits

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ReadHeader reads cards from r up to and including END, then discards cards
// until a whole number of blocks has been consumed.  A stream that ends
// after END but short of the block boundary is accepted.
//
// The required structural cards are validated and the scalar fields of img
// are filled in; the pixels are not read.  img is initialized first and
// reset if any error occurs.
func ReadHeader(r io.Reader, img *Image) error {
	img.Init()
	if err := readHeader(r, img); err != nil {
		img.Reset()
		return err
	}
	return nil
}

func readHeader(r io.Reader, img *Image) error {
	h := NewHeader()
	img.Header = h

	var rec Record
	nrec := 0
	sawEnd := false
	for !sawEnd || nrec%CardsPerBlock != 0 {
		_, err := io.ReadFull(r, rec[:])
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				if sawEnd {
					break
				}
				return ErrShortHeader
			}
			return errors.Wrap(err, "reading header")
		}
		nrec++
		if !sawEnd {
			if rec.IsEnd() {
				sawEnd = true
			} else {
				h.append(rec)
			}
		}
	}

	if simple, err := h.GetLogical("SIMPLE"); err != nil || !simple {
		return invalid("File must claim to be a SIMPLE image.")
	}

	bitpix, err := h.GetInt("BITPIX")
	if err != nil || !Bitpix(bitpix).Valid() {
		return invalid("File must include BITPIX value of 16, 32, or -32")
	}
	img.Bitpix = Bitpix(bitpix)

	img.Width, img.Height, err = naxis(h)
	if err != nil {
		return err
	}

	// remaining fields are optional
	if i, err := h.GetInt("XFACTOR"); err == nil {
		img.XBin = i
	}
	if i, err := h.GetInt("YFACTOR"); err == nil {
		img.YBin = i
	}
	if i, err := h.GetInt("OFFSET1"); err == nil {
		img.OffsetX = i
	}
	if i, err := h.GetInt("OFFSET2"); err == nil {
		img.OffsetY = i
	}
	if d, err := h.GetReal("EXPTIME"); err == nil {
		img.Exposure = int(d * 1000.0)
	}
	return nil
}

// naxis returns NAXIS1 and NAXIS2, requiring any higher axes to be 1
func naxis(h *Header) (int, int, error) {
	n, err := h.GetInt("NAXIS")
	if err != nil {
		return 0, 0, invalid("No NAXIS")
	}

	for i := 3; i <= n; i++ {
		name := fmt.Sprintf("NAXIS%d", i)
		ni, err := h.GetInt(name)
		if err != nil {
			return 0, 0, invalid("NAXIS=%d but no %s", n, name)
		}
		if ni != 1 {
			return 0, 0, invalid("Require %s to be 1", name)
		}
	}

	n1, err := h.GetInt("NAXIS1")
	if err != nil {
		return 0, 0, invalid("No NAXIS1")
	}
	n2, err := h.GetInt("NAXIS2")
	if err != nil {
		return 0, 0, invalid("No NAXIS2")
	}
	if n1 < 0 || n2 < 0 {
		return 0, 0, invalid("NAXIS1 and NAXIS2 must not be negative")
	}
	return n1, n2, nil
}

// WriteHeader writes the cards of h followed by END and enough blank cards
// to fill the last block.  h itself is not modified.
func WriteHeader(w io.Writer, h *Header) error {
	recs := h.Records()
	npad := (CardsPerBlock - (len(recs)+1)%CardsPerBlock) % CardsPerBlock

	buf := make([]byte, 0, (len(recs)+1+npad)*CardSize)
	for i := range recs {
		buf = append(buf, recs[i][:]...)
	}
	end := EncodeEnd()
	buf = append(buf, end[:]...)
	for i := 0; i < npad*CardSize; i++ {
		buf = append(buf, ' ')
	}

	if err := writeFull(w, buf); err != nil {
		return errors.Wrap(err, "writing FITS header")
	}
	return nil
}
