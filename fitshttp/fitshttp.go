// Package fitshttp exposes a directory of FITS images over HTTP.
//
// Files are listed, described and served from an archive folder; uploads
// are validated, time stamped when they carry no DATE-OBS and handed to an
// image recorder.  Names are slash separated paths relative to the archive.
package fitshttp

import (
	"encoding/json"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/warwick-one-metre/superwasp-talon/fits"
	"github.com/warwick-one-metre/superwasp-talon/imgrec"
	"github.com/warwick-one-metre/superwasp-talon/server"
)

// ErrBadName is returned for names which leave the archive or are not .fits files
var ErrBadName = errors.New("bad file name")

// CardJSON is one header card as served by the header route
type CardJSON struct {
	Name    string      `json:"name"`
	Kind    string      `json:"kind"`
	Value   interface{} `json:"value"`
	Comment string      `json:"comment,omitempty"`
}

// HTTPWrapper serves an archive of FITS files
type HTTPWrapper struct {
	// Archive is the folder files are listed and served from
	Archive string

	// Codec decodes uploads and encodes served files
	Codec fits.Codec

	// Recorder stores uploads; uploads are refused if it is nil or disabled
	Recorder *imgrec.Recorder

	// Limiter bounds the rate of uploads; nil means unlimited
	Limiter *rate.Limiter

	// MaxUpload is the largest accepted request body in bytes, 0 for no limit
	MaxUpload int64

	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a wrapper serving archive and recording uploads with rec
func NewHTTPWrapper(archive string, codec fits.Codec, rec *imgrec.Recorder, limiter *rate.Limiter) *HTTPWrapper {
	h := &HTTPWrapper{
		Archive:  archive,
		Codec:    codec,
		Recorder: rec,
		Limiter:  limiter,
	}
	h.RouteTable = server.RouteTable{
		{Method: http.MethodGet, Path: "/files"}:   h.List,
		{Method: http.MethodGet, Path: "/files/*"}: h.Get,
		{Method: http.MethodPost, Path: "/files"}:  h.Upload,
	}
	if rec != nil {
		imgrec.NewHTTPWrapper(rec).Inject(h)
	}
	return h
}

// RT satisfies server.HTTPer
func (h *HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}

// resolve maps a slash separated name to a path inside the archive
func (h *HTTPWrapper) resolve(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" || !strings.HasSuffix(clean, ".fits") {
		return "", errors.Wrap(ErrBadName, name)
	}
	return filepath.Join(h.Archive, filepath.FromSlash(clean)), nil
}

// Files returns the names of every .fits file under the archive, sorted
func (h *HTTPWrapper) Files() ([]string, error) {
	names := []string{}
	err := filepath.Walk(h.Archive, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".fits") {
			return nil
		}
		rel, err := filepath.Rel(h.Archive, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(names)
	return names, err
}

// List replies with the JSON array of file names
func (h *HTTPWrapper) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.Files()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	server.ReplyWithJSON(w, names)
}

func (h *HTTPWrapper) open(name string) (*fits.Image, error) {
	fn, err := h.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img := fits.NewImage()
	err = h.Codec.ReadFITS(f, img)
	return img, err
}

func status(err error) int {
	switch {
	case errors.Is(err, ErrBadName):
		return http.StatusBadRequest
	case os.IsNotExist(errors.Cause(err)):
		return http.StatusNotFound
	case errors.Is(err, fits.ErrInvalidFormat), errors.Is(err, fits.ErrShortHeader), errors.Is(err, fits.ErrShortData),
		errors.Is(err, fits.ErrAlloc):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Get serves a file.  A name ending in /header replies with its cards as
// JSON; otherwise the query parameter fmt selects fits (the default), png or
// jpg, and w scales the png or jpg preview down to that many pixels across.
func (h *HTTPWrapper) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if strings.HasSuffix(name, "/header") {
		h.header(w, r, strings.TrimSuffix(name, "/header"))
		return
	}

	format := strings.ToLower(r.URL.Query().Get("fmt"))
	switch format {
	case "", "fits":
		fn, err := h.resolve(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/fits")
		server.ReplyWithFile(w, r, filepath.Base(fn), filepath.Dir(fn))
	case "png", "jpg", "jpeg":
		img, err := h.open(name)
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		width := 0
		if ws := r.URL.Query().Get("w"); ws != "" {
			width, err = strconv.Atoi(ws)
			if err != nil || width < 0 {
				http.Error(w, "w must be a positive integer", http.StatusBadRequest)
				return
			}
		}
		err = render(w, img, format, width)
		if err != nil {
			log.WithError(err).WithField("file", name).Error("rendering image")
		}
	default:
		http.Error(w, "fmt must be one of fits, png, jpg", http.StatusBadRequest)
	}
}

// header replies with the decoded cards of a file
func (h *HTTPWrapper) header(w http.ResponseWriter, r *http.Request, name string) {
	fn, err := h.resolve(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := os.Open(fn)
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	defer f.Close()
	img := fits.NewImage()
	if err := fits.ReadHeader(f, img); err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	server.ReplyWithJSON(w, HeaderJSON(img.Header))
}

// HeaderJSON converts the cards of hdr to their JSON form
func HeaderJSON(hdr *fits.Header) []CardJSON {
	cards := hdr.Cards()
	out := make([]CardJSON, 0, len(cards))
	for _, c := range cards {
		cj := CardJSON{Name: c.Name, Kind: c.Value.Kind().String(), Comment: c.Comment}
		switch v := c.Value.(type) {
		case fits.Logical:
			cj.Value = bool(v)
		case fits.Integer:
			cj.Value = int(v)
		case fits.Real:
			cj.Value = v.V
		case fits.String:
			cj.Value = string(v)
		case fits.Text:
			cj.Value = string(v)
		}
		out = append(out, cj)
	}
	return out
}

// Upload reads a FITS file from the request body and records it.  The reply
// is the name of the stored file.
func (h *HTTPWrapper) Upload(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	if h.Limiter != nil && !h.Limiter.Allow() {
		http.Error(w, "upload rate exceeded", http.StatusTooManyRequests)
		return
	}
	if h.Recorder == nil || !h.Recorder.IsEnabled() {
		http.Error(w, "recording is disabled", http.StatusServiceUnavailable)
		return
	}

	body := r.Body
	if h.MaxUpload > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxUpload)
	}
	img := fits.NewImage()
	if err := fits.ReadHeader(body, img); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if size := fits.DataSize(img); size < 0 || h.MaxUpload > 0 && size > h.MaxUpload {
		img.Reset()
		http.Error(w, "declared image is too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err := h.Codec.ReadPixels(body, img); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := img.Header.Find("DATE-OBS"); !ok {
		fits.TimeStamp(img, time.Time{}, "JD at upload")
	}

	fn, err := h.Recorder.Record(img)
	if err != nil {
		log.WithError(err).Error("recording upload")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	name := filepath.Base(fn)
	if rel, err := filepath.Rel(h.Archive, fn); err == nil && !strings.HasPrefix(rel, "..") {
		name = filepath.ToSlash(rel)
	}
	log.WithFields(log.Fields{"file": name, "width": img.Width, "height": img.Height}).Info("upload recorded")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(server.StrT{Str: name})
}
