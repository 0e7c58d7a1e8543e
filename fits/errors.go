package fits

import "github.com/pkg/errors"

var (
	// ErrKeywordNotFound is returned by lookups when no card carries the name.
	// It is a normal outcome used to probe optional fields.
	ErrKeywordNotFound = errors.New("keyword not found")

	// ErrWrongKind is returned when a card does not hold the requested kind of value
	ErrWrongKind = errors.New("card holds a different kind of value")

	// ErrInvalidFormat is the cause of every header validation failure
	ErrInvalidFormat = errors.New("invalid FITS file")

	// ErrShortHeader is returned when the stream ends before an END card
	ErrShortHeader = errors.New("header is short")

	// ErrShortData is returned when the stream ends before all pixels are read
	ErrShortData = errors.New("data is short")

	// ErrShortWrite is returned when the transport accepts no more bytes
	ErrShortWrite = errors.New("short write")

	// ErrNoPixels is returned when writing an image without a pixel buffer
	ErrNoPixels = errors.New("no pixels")

	// ErrAlloc is returned when a pixel or scratch buffer cannot be sized
	ErrAlloc = errors.New("could not allocate buffer")
)

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidFormat, format, args...)
}
