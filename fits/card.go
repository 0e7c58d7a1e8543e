package fits

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// CardSize is the width of one header card in bytes
	CardSize = 80

	// CardsPerBlock is the number of cards in one 2880 byte block
	CardsPerBlock = 36

	// BlockSize is the size of a FITS block; headers and data are padded to it
	BlockSize = CardSize * CardsPerBlock

	nameWidth    = 8
	valueStart   = 10 // column 11
	valueEnd     = 30 // column 30, inclusive
	valueWidth   = valueEnd - valueStart
	inlineWidth  = 47
	textWidth    = 72
	contWidth    = 68
	minStringLen = 8
	maxStringLen = 68
	contMarker   = "... "
)

// Record is one raw 80 column header card as it appears on disk
type Record [CardSize]byte

// Kind enumerates the kinds of value a card may carry
type Kind int

const (
	// KindLogical is a T/F value in column 30
	KindLogical Kind = iota + 1

	// KindInteger is a decimal integer right justified in columns 11-30
	KindInteger

	// KindReal is a floating point number right justified in columns 11-30
	KindReal

	// KindString is a quoted string starting in column 11
	KindString

	// KindText is free text in columns 9-80, used by COMMENT and HISTORY
	KindText

	// KindEnd is the END marker
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindLogical:
		return "logical"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindText:
		return "text"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Value is the decoded value of a card.  The concrete type is one of
// Logical, Integer, Real, String, Text or End.
type Value interface {
	Kind() Kind
	encode(name, comment string) Record
}

// Logical is a boolean card value
type Logical bool

// Integer is an integer card value
type Integer int

// Real is a floating point card value.  Digits is the number of significant
// digits to encode with; zero or less means the shortest exact form.
type Real struct {
	V      float64
	Digits int
}

// String is a character string card value
type String string

// Text is the free text of a commentary card
type Text string

// End is the value of the END card
type End struct{}

// Kind implements Value
func (Logical) Kind() Kind { return KindLogical }

// Kind implements Value
func (Integer) Kind() Kind { return KindInteger }

// Kind implements Value
func (Real) Kind() Kind { return KindReal }

// Kind implements Value
func (String) Kind() Kind { return KindString }

// Kind implements Value
func (Text) Kind() Kind { return KindText }

// Kind implements Value
func (End) Kind() Kind { return KindEnd }

// Card is a decoded header card
type Card struct {
	Name    string
	Value   Value
	Comment string
}

// Encode formats a single card holding v.  Text longer than one card is
// truncated; use EncodeComment to split it.  An empty comment writes no
// " / " separator; the columns after the value stay blank.
func Encode(name string, v Value, comment string) Record {
	return v.encode(name, comment)
}

func blank() Record {
	var r Record
	for i := range r {
		r[i] = ' '
	}
	return r
}

// padName left justifies name in 8 columns, truncating longer names
func padName(name string) string {
	if len(name) > nameWidth {
		name = name[:nameWidth]
	}
	return name + strings.Repeat(" ", nameWidth-len(name))
}

// fit left justifies s in exactly n columns
func fit(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

// valueCard writes name, "= " and the right justified value
func valueCard(name, value string) Record {
	r := blank()
	copy(r[:], padName(name))
	r[nameWidth] = '='
	start := valueEnd - len(value)
	if start < valueStart {
		start = valueStart
	}
	copy(r[start:], value)
	return r
}

// inline fills columns 31-80 with the comment, or blanks
func inline(r *Record, comment string) {
	tail := strings.Repeat(" ", CardSize-valueEnd)
	if comment != "" {
		tail = " / " + fit(comment, inlineWidth)
	}
	copy(r[valueEnd:], tail)
}

func (v Logical) encode(name, comment string) Record {
	c := "F"
	if v {
		c = "T"
	}
	r := valueCard(name, c)
	inline(&r, comment)
	return r
}

func (v Integer) encode(name, comment string) Record {
	r := valueCard(name, strconv.Itoa(int(v)))
	inline(&r, comment)
	return r
}

func formatReal(v float64, digits int) string {
	if digits <= 0 {
		s := strconv.FormatFloat(v, 'G', -1, 64)
		if len(s) <= valueWidth {
			return s
		}
		digits = 17
	}
	s := strconv.FormatFloat(v, 'G', digits, 64)
	for len(s) > valueWidth && digits > 1 {
		digits--
		s = strconv.FormatFloat(v, 'G', digits, 64)
	}
	return s
}

func (v Real) encode(name, comment string) Record {
	r := valueCard(name, formatReal(v.V, v.Digits))
	inline(&r, comment)
	return r
}

func (v String) encode(name, comment string) Record {
	l := len(v)
	if l < minStringLen {
		l = minStringLen
	} else if l > maxStringLen {
		l = maxStringLen
	}
	r := blank()
	copy(r[:], padName(name)+"= '"+fit(string(v), l)+"'")
	if comment != "" && l < CardSize-3-12 {
		start := 12 + l
		if start < valueEnd {
			start = valueEnd
		}
		copy(r[start:], " / "+fit(comment, CardSize-3-start))
	}
	return r
}

func (v Text) encode(name, comment string) Record {
	r := blank()
	copy(r[:], padName(name)+fit(string(v), textWidth))
	return r
}

func (End) encode(name, comment string) Record {
	r := blank()
	copy(r[:], "END")
	return r
}

// EncodeEnd returns the END card
func EncodeEnd() Record {
	return End{}.encode("", "")
}

// EncodeComment formats commentary text under name.  Text wider than 72
// columns continues on further cards which begin with "... ".
func EncodeComment(name, text string) []Record {
	var out []Record
	for n := 0; n < len(text); {
		r := blank()
		if n == 0 {
			copy(r[:], padName(name)+fit(text, textWidth))
			n += textWidth
		} else {
			copy(r[:], padName(name)+contMarker+fit(text[n:], contWidth))
			n += contWidth
		}
		out = append(out, r)
	}
	return out
}

// Name returns the keyword in columns 1-8 without trailing blanks
func (r *Record) Name() string {
	return strings.TrimRight(string(r[:nameWidth]), " ")
}

// String returns the card as text
func (r *Record) String() string {
	return string(r[:])
}

// IsEnd is true for the END card
func (r *Record) IsEnd() bool {
	return string(r[:nameWidth]) == padName("END")
}

func (r *Record) hasValue() bool {
	return r[nameWidth] == '='
}

// field returns the value text following "= ", up to any inline comment
func (r *Record) field() string {
	s := string(r[valueStart:])
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func (r *Record) wrongKind(want Kind) error {
	return errors.Wrapf(ErrWrongKind, "%s is not %s", r.Name(), want)
}

// Logical decodes a T or F in column 30
func (r *Record) Logical() (bool, error) {
	if !r.hasValue() {
		return false, r.wrongKind(KindLogical)
	}
	switch r[valueEnd-1] {
	case 'T', 't':
		return true, nil
	case 'F', 'f':
		return false, nil
	}
	return false, r.wrongKind(KindLogical)
}

// Int decodes the integer value field
func (r *Record) Int() (int, error) {
	if !r.hasValue() {
		return 0, r.wrongKind(KindInteger)
	}
	i, err := strconv.Atoi(r.field())
	if err != nil {
		return 0, r.wrongKind(KindInteger)
	}
	return i, nil
}

// Float decodes the real value field.  Fortran style D exponents are accepted.
func (r *Record) Float() (float64, error) {
	if !r.hasValue() {
		return 0, r.wrongKind(KindReal)
	}
	s := strings.Map(func(c rune) rune {
		if c == 'D' || c == 'd' {
			return 'E'
		}
		return c
	}, r.field())
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, r.wrongKind(KindReal)
	}
	return f, nil
}

// Str decodes a quoted string, without the quotes and trailing blanks
func (r *Record) Str() (string, error) {
	s, _, err := r.quoted()
	return s, err
}

// quoted returns the string value and the index following the closing quote
func (r *Record) quoted() (string, int, error) {
	if !r.hasValue() || r[valueStart] != '\'' {
		return "", 0, r.wrongKind(KindString)
	}
	for i := valueStart + 1; i < CardSize; i++ {
		if r[i] == '\'' {
			return strings.TrimRight(string(r[valueStart+1:i]), " "), i + 1, nil
		}
	}
	return "", 0, r.wrongKind(KindString)
}

// Comment returns the commentary text in columns 9-80 without trailing blanks
func (r *Record) Comment() string {
	return strings.TrimRight(string(r[nameWidth:]), " ")
}

// Raw72 returns columns 1-72 verbatim, name included
func (r *Record) Raw72() string {
	return string(r[:textWidth])
}

// inlineComment returns the text after the " / " separator starting at from
func (r *Record) inlineComment(from int) string {
	s := string(r[from:])
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(s[i+1:])
}

// Decode determines the kind of value r carries and decodes it
func Decode(r Record) (Card, error) {
	c := Card{Name: r.Name()}
	switch {
	case r.IsEnd():
		c.Value = End{}
		return c, nil
	case !r.hasValue():
		c.Value = Text(r.Comment())
		return c, nil
	case r[valueStart] == '\'':
		s, next, err := r.quoted()
		if err != nil {
			return c, err
		}
		c.Value = String(s)
		c.Comment = r.inlineComment(next)
		return c, nil
	}
	c.Comment = r.inlineComment(valueStart)
	f := r.field()
	if f == "T" || f == "F" {
		c.Value = Logical(f == "T")
		return c, nil
	}
	if i, err := r.Int(); err == nil {
		c.Value = Integer(i)
		return c, nil
	}
	if v, err := r.Float(); err == nil {
		c.Value = Real{V: v}
		return c, nil
	}
	return c, errors.Wrapf(ErrWrongKind, "%s has an unrecognized value %q", c.Name, f)
}
