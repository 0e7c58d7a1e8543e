package fits

import "github.com/pkg/errors"

// Header is the ordered set of cards of an image, END excluded.
//
// Setting a name that is already present rewrites that card where it stands;
// a new name is appended.  Commentary cards are always appended.
type Header struct {
	recs  []Record
	index map[string]int // padded name => position of first card with it
}

// NewHeader returns an empty header
func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

// Len returns the number of cards
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.recs)
}

// Records returns a copy of the raw cards in order
func (h *Header) Records() []Record {
	if h == nil {
		return nil
	}
	out := make([]Record, len(h.recs))
	copy(out, h.recs)
	return out
}

// Cards decodes every card in order.  Cards that cannot be decoded are
// reported as Text so a listing never fails.
func (h *Header) Cards() []Card {
	out := make([]Card, 0, h.Len())
	for _, r := range h.Records() {
		c, err := Decode(r)
		if err != nil {
			c = Card{Name: r.Name(), Value: Text(r.Comment())}
		}
		out = append(out, c)
	}
	return out
}

// Clone returns an independent copy of h
func (h *Header) Clone() *Header {
	c := NewHeader()
	for _, r := range h.Records() {
		c.append(r)
	}
	return c
}

func (h *Header) append(r Record) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	key := string(r[:nameWidth])
	if _, ok := h.index[key]; !ok {
		h.index[key] = len(h.recs)
	}
	h.recs = append(h.recs, r)
}

func (h *Header) reindex() {
	h.index = make(map[string]int, len(h.recs))
	for i, r := range h.recs {
		key := string(r[:nameWidth])
		if _, ok := h.index[key]; !ok {
			h.index[key] = i
		}
	}
}

// Find returns the first card whose 8 column name equals name padded with blanks
func (h *Header) Find(name string) (*Record, bool) {
	if h == nil {
		return nil, false
	}
	i, ok := h.index[padName(name)]
	if !ok {
		return nil, false
	}
	return &h.recs[i], true
}

// Set stores v under name, in place if the name exists, else appended
func (h *Header) Set(name string, v Value, comment string) {
	r := Encode(name, v, comment)
	if rp, ok := h.Find(name); ok {
		*rp = r
		return
	}
	h.append(r)
}

// SetLogical sets a logical card
func (h *Header) SetLogical(name string, v bool, comment string) {
	h.Set(name, Logical(v), comment)
}

// SetInt sets an integer card
func (h *Header) SetInt(name string, v int, comment string) {
	h.Set(name, Integer(v), comment)
}

// SetReal sets a real card with at most digits significant digits
func (h *Header) SetReal(name string, v float64, digits int, comment string) {
	h.Set(name, Real{V: v, Digits: digits}, comment)
}

// SetString sets a string card
func (h *Header) SetString(name, v, comment string) {
	h.Set(name, String(v), comment)
}

// AddComment appends text under name, e.g. HISTORY or COMMENT, splitting it
// over as many cards as needed
func (h *Header) AddComment(name, text string) {
	for _, r := range EncodeComment(name, text) {
		h.append(r)
	}
}

// Delete removes the first card named name
func (h *Header) Delete(name string) error {
	if h == nil {
		return errors.Wrap(ErrKeywordNotFound, name)
	}
	i, ok := h.index[padName(name)]
	if !ok {
		return errors.Wrap(ErrKeywordNotFound, name)
	}
	recs := make([]Record, 0, len(h.recs)-1)
	recs = append(recs, h.recs[:i]...)
	h.recs = append(recs, h.recs[i+1:]...)
	h.reindex()
	return nil
}

func (h *Header) lookup(name string) (*Record, error) {
	r, ok := h.Find(name)
	if !ok {
		return nil, errors.Wrap(ErrKeywordNotFound, name)
	}
	return r, nil
}

// GetLogical returns the logical value of name
func (h *Header) GetLogical(name string) (bool, error) {
	r, err := h.lookup(name)
	if err != nil {
		return false, err
	}
	return r.Logical()
}

// GetInt returns the integer value of name
func (h *Header) GetInt(name string) (int, error) {
	r, err := h.lookup(name)
	if err != nil {
		return 0, err
	}
	return r.Int()
}

// GetReal returns the real value of name
func (h *Header) GetReal(name string) (float64, error) {
	r, err := h.lookup(name)
	if err != nil {
		return 0, err
	}
	return r.Float()
}

// GetString returns the string value of name
func (h *Header) GetString(name string) (string, error) {
	r, err := h.lookup(name)
	if err != nil {
		return "", err
	}
	return r.Str()
}

// GetComment returns columns 1-72 of the first card named name, verbatim
func (h *Header) GetComment(name string) (string, error) {
	r, err := h.lookup(name)
	if err != nil {
		return "", err
	}
	return r.Raw72(), nil
}
