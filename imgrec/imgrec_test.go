package imgrec

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"

	"github.com/warwick-one-metre/superwasp-talon/fits"
	"github.com/warwick-one-metre/superwasp-talon/server"
)

func tempRecorder(t *testing.T) (*Recorder, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "imgrec")
	if err != nil {
		t.Fatal(err)
	}
	r := New(dir, "wasp")
	r.Now = func() time.Time { return time.Date(2004, 5, 6, 23, 0, 0, 0, time.Local) }
	return r, func() { os.RemoveAll(dir) }
}

func smallImage() *fits.Image {
	img := fits.NewImage()
	img.Width, img.Height, img.Bitpix = 3, 2, fits.Int16
	img.Pix = []uint16{0, 1, 2, 3, 4, 65535}
	img.SetSimpleHeader(fits.DefaultBias)
	return img
}

func TestRecordSequence(t *testing.T) {
	r, done := tempRecorder(t)
	defer done()
	img := smallImage()
	for i := 1; i <= 3; i++ {
		fn, err := r.Record(img)
		if err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(r.Root, "2004-05-06", "wasp00000"+string(rune('0'+i))+".fits")
		if fn != want {
			t.Errorf("expected %s, got %s", want, fn)
		}
	}
	if r.Counter() != 4 {
		t.Errorf("expected counter 4, got %d", r.Counter())
	}

	f, err := os.Open(filepath.Join(r.Root, "2004-05-06", "wasp000002.fits"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	back := fits.NewImage()
	if err := fits.ReadFITS(f, back); err != nil {
		t.Fatal(err)
	}
	for i := range img.Pix {
		if back.Pix[i] != img.Pix[i] {
			t.Fatalf("pixel %d: expected %d, got %d", i, img.Pix[i], back.Pix[i])
		}
	}
}

func TestIncrSkipsForeignFiles(t *testing.T) {
	r, done := tempRecorder(t)
	defer done()
	dir := filepath.Join(r.Root, "2004-05-06")
	os.MkdirAll(dir, 0777)
	for _, fn := range []string{"wasp000041.fits", "wasp000007.fits", "other000099.fits", "waspnotes.fits", "wasp000500.txt"} {
		ioutil.WriteFile(filepath.Join(dir, fn), nil, 0666)
	}
	r.Incr()
	if r.Counter() != 42 {
		t.Errorf("expected counter 42, got %d", r.Counter())
	}
	fn, err := r.Record(smallImage())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(fn) != "wasp000042.fits" {
		t.Errorf("unexpected file %s", fn)
	}
}

func TestRecordEmptyPrefix(t *testing.T) {
	r, done := tempRecorder(t)
	defer done()
	r.Prefix = ""
	fn, err := r.Record(smallImage())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(fn) != "000001.fits" {
		t.Errorf("unexpected file %s", fn)
	}
}

func TestRecordNoPixels(t *testing.T) {
	r, done := tempRecorder(t)
	defer done()
	img := smallImage()
	img.Pix = nil
	if _, err := r.Record(img); err != fits.ErrNoPixels {
		t.Errorf("expected ErrNoPixels, got %v", err)
	}
	files, _ := ioutil.ReadDir(filepath.Join(r.Root, "2004-05-06"))
	if len(files) != 0 {
		t.Errorf("expected the failed file to be removed, found %d", len(files))
	}
}

type routes server.RouteTable

func (r routes) RT() server.RouteTable { return server.RouteTable(r) }

func TestHTTPWrapper(t *testing.T) {
	r, done := tempRecorder(t)
	defer done()
	rt := routes{}
	NewHTTPWrapper(r).Inject(rt)
	mux := chi.NewRouter()
	rt.RT().Bind(mux)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	if w := do(http.MethodPost, "/autowrite/prefix", `{"str":"flat"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(http.MethodGet, "/autowrite/prefix", ""); strings.TrimSpace(w.Body.String()) != `{"str":"flat"}` {
		t.Errorf("unexpected prefix %q", w.Body.String())
	}
	if w := do(http.MethodPost, "/autowrite/enabled", `{"bool":false}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if r.IsEnabled() {
		t.Error("expected the recorder to be disabled")
	}
	newRoot := filepath.Join(r.Root, "sub")
	if w := do(http.MethodPost, "/autowrite/root", `{"str":"`+newRoot+`"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(newRoot, "2004-05-06")); err != nil {
		t.Errorf("expected the dated folder to be created: %v", err)
	}
	if w := do(http.MethodPost, "/autowrite/root", "{"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad body, got %d", w.Code)
	}
}
