package fits

import (
	"bytes"
	"errors"
	"testing"
)

// simpleHeader returns the cards of a valid w x h BITPIX 16 image
func simpleHeader(w, h int) *Header {
	img := NewImage()
	img.Width, img.Height, img.Bitpix = w, h, Int16
	img.SetSimpleHeader(DefaultBias)
	return img.Header
}

func writeHeader(t *testing.T, h *Header) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := WriteHeader(buf, h); err != nil {
		t.Fatal(err)
	}
	return buf
}

func expectReset(t *testing.T, img *Image) {
	t.Helper()
	if img.Header != nil || img.Pix != nil || img.Width != 0 || img.Height != 0 || img.XBin != 1 || img.YBin != 1 {
		t.Errorf("expected image to be reset, got %+v", img)
	}
}

func TestWriteHeaderBlockAligned(t *testing.T) {
	for n := 0; n < 80; n++ {
		h := NewHeader()
		for i := 0; i < n; i++ {
			h.AddComment("COMMENT", "filler")
		}
		buf := writeHeader(t, h)
		if buf.Len()%BlockSize != 0 {
			t.Errorf("%d cards: header of %d bytes is not block aligned", n, buf.Len())
		}
		if h.Len() != n {
			t.Errorf("%d cards: WriteHeader mutated the header to %d cards", n, h.Len())
		}
	}
}

func TestWriteHeaderExactBlock(t *testing.T) {
	h := NewHeader()
	for i := 0; i < CardsPerBlock-1; i++ {
		h.AddComment("COMMENT", "filler")
	}
	buf := writeHeader(t, h)
	if buf.Len() != BlockSize {
		t.Errorf("expected 35 cards and END to fill one block, got %d bytes", buf.Len())
	}
	b := buf.Bytes()
	if string(b[BlockSize-CardSize:BlockSize-CardSize+3]) != "END" {
		t.Error("expected END as the last card of the block")
	}

	h.AddComment("COMMENT", "one more")
	if buf := writeHeader(t, h); buf.Len() != 2*BlockSize {
		t.Errorf("expected 36 cards and END to take two blocks, got %d bytes", buf.Len())
	}
}

func TestWriteHeaderPadsWithBlanks(t *testing.T) {
	buf := writeHeader(t, simpleHeader(4, 3))
	b := buf.Bytes()
	for i := 13 * CardSize; i < len(b); i++ {
		if b[i] != ' ' {
			t.Fatalf("expected blank padding, found %q at %d", b[i], i)
		}
	}
}

func TestReadHeaderRoundTrip(t *testing.T) {
	h := simpleHeader(640, 480)
	h.SetInt("XFACTOR", 2, "")
	h.SetInt("YFACTOR", 3, "")
	h.SetInt("OFFSET1", 10, "")
	h.SetInt("OFFSET2", 20, "")
	h.SetReal("EXPTIME", 1.5, 6, "")
	h.SetString("OBJECT", "M31", "")
	buf := writeHeader(t, h)

	img := NewImage()
	if err := ReadHeader(buf, img); err != nil {
		t.Fatal(err)
	}
	if img.Width != 640 || img.Height != 480 || img.Bitpix != Int16 {
		t.Errorf("bad geometry %dx%d bitpix %d", img.Width, img.Height, img.Bitpix)
	}
	if img.XBin != 2 || img.YBin != 3 || img.OffsetX != 10 || img.OffsetY != 20 {
		t.Errorf("bad optional fields %+v", img)
	}
	if img.Exposure != 1500 {
		t.Errorf("expected 1500 ms exposure, got %d", img.Exposure)
	}
	if img.Header.Len() != h.Len() {
		t.Errorf("expected %d cards read back, got %d", h.Len(), img.Header.Len())
	}
	if s, _ := img.Header.GetString("OBJECT"); s != "M31" {
		t.Errorf("expected OBJECT=M31, got %q", s)
	}
	if buf.Len() != 0 {
		t.Errorf("expected the whole block to be consumed, %d bytes left", buf.Len())
	}
}

func TestReadHeaderDefaults(t *testing.T) {
	h := NewHeader()
	h.SetLogical("SIMPLE", true, "")
	h.SetInt("BITPIX", 16, "")
	h.SetInt("NAXIS", 2, "")
	h.SetInt("NAXIS1", 4, "")
	h.SetInt("NAXIS2", 4, "")
	img := NewImage()
	if err := ReadHeader(writeHeader(t, h), img); err != nil {
		t.Fatal(err)
	}
	if img.XBin != 1 || img.YBin != 1 || img.OffsetX != 0 || img.OffsetY != 0 || img.Exposure != 0 {
		t.Errorf("expected defaults for absent optional fields, got %+v", img)
	}
}

func TestReadHeaderExposureTruncates(t *testing.T) {
	h := simpleHeader(1, 1)
	h.SetReal("EXPTIME", 0.0015, 6, "")
	img := NewImage()
	if err := ReadHeader(writeHeader(t, h), img); err != nil {
		t.Fatal(err)
	}
	if img.Exposure != 1 {
		t.Errorf("expected 1.5 ms to truncate to 1, got %d", img.Exposure)
	}
}

func TestReadHeaderValidation(t *testing.T) {
	cases := map[string]func(h *Header){
		"not simple":    func(h *Header) { h.SetLogical("SIMPLE", false, "") },
		"no simple":     func(h *Header) { h.Delete("SIMPLE") },
		"bitpix 8":      func(h *Header) { h.SetInt("BITPIX", 8, "") },
		"bitpix -64":    func(h *Header) { h.SetInt("BITPIX", -64, "") },
		"no bitpix":     func(h *Header) { h.Delete("BITPIX") },
		"no naxis":      func(h *Header) { h.Delete("NAXIS") },
		"no naxis1":     func(h *Header) { h.Delete("NAXIS1") },
		"no naxis2":     func(h *Header) { h.Delete("NAXIS2") },
		"naxis3 is 2":   func(h *Header) { h.SetInt("NAXIS", 3, ""); h.SetInt("NAXIS3", 2, "") },
		"no naxis3":     func(h *Header) { h.SetInt("NAXIS", 3, "") },
		"negative axis": func(h *Header) { h.SetInt("NAXIS1", -4, "") },
	}
	for name, mutate := range cases {
		h := simpleHeader(4, 3)
		mutate(h)
		img := NewImage()
		img.Pix = make([]uint16, 12)
		err := ReadHeader(writeHeader(t, h), img)
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("%s: expected ErrInvalidFormat, got %v", name, err)
		}
		expectReset(t, img)
	}
}

func TestReadHeaderHigherAxesOfOne(t *testing.T) {
	h := simpleHeader(4, 3)
	h.SetInt("NAXIS", 4, "")
	h.SetInt("NAXIS3", 1, "")
	h.SetInt("NAXIS4", 1, "")
	img := NewImage()
	if err := ReadHeader(writeHeader(t, h), img); err != nil {
		t.Fatal(err)
	}
	if img.Width != 4 || img.Height != 3 {
		t.Errorf("expected 4x3, got %dx%d", img.Width, img.Height)
	}
}

func TestReadHeaderShort(t *testing.T) {
	h := simpleHeader(4, 3)
	buf := &bytes.Buffer{}
	for _, r := range h.Records() {
		buf.Write(r[:])
	}
	img := NewImage()
	if err := ReadHeader(buf, img); !errors.Is(err, ErrShortHeader) {
		t.Errorf("expected ErrShortHeader without END, got %v", err)
	}
	expectReset(t, img)
}

func TestReadHeaderPartialCard(t *testing.T) {
	h := simpleHeader(4, 3)
	buf := &bytes.Buffer{}
	for _, r := range h.Records() {
		buf.Write(r[:])
	}
	buf.WriteString("COMMENT half a card")
	img := NewImage()
	if err := ReadHeader(buf, img); !errors.Is(err, ErrShortHeader) {
		t.Errorf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadHeaderTruncatedAfterEnd(t *testing.T) {
	h := simpleHeader(4, 3)
	buf := &bytes.Buffer{}
	for _, r := range h.Records() {
		buf.Write(r[:])
	}
	end := EncodeEnd()
	buf.Write(end[:])
	img := NewImage()
	if err := ReadHeader(buf, img); err != nil {
		t.Errorf("expected a file ending at END to be accepted, got %v", err)
	}
	if img.Width != 4 || img.Height != 3 {
		t.Errorf("expected 4x3, got %dx%d", img.Width, img.Height)
	}
}

func TestReadHeaderDiscardsAfterEnd(t *testing.T) {
	h := simpleHeader(4, 3)
	buf := writeHeader(t, h)
	// a card after END but inside the block is ignored
	b := buf.Bytes()
	copy(b[(h.Len()+1)*CardSize:], "OBJECT  = 'IGNORED '")
	img := NewImage()
	if err := ReadHeader(bytes.NewReader(b), img); err != nil {
		t.Fatal(err)
	}
	if _, ok := img.Header.Find("OBJECT"); ok {
		t.Error("expected cards after END to be discarded")
	}
}
