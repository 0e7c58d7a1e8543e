package fits

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestTimeStamp(t *testing.T) {
	img := NewImage()
	ts := time.Date(2000, 1, 1, 12, 0, 0, 500000000, time.UTC)
	TimeStamp(img, ts, "JD at start")

	if d, _ := img.Header.GetString("DATE-OBS"); d != "2000-01-01" {
		t.Errorf("expected DATE-OBS 2000-01-01, got %q", d)
	}
	if s, _ := img.Header.GetString("TIME-OBS"); s != "12:00:00.00" {
		t.Errorf("expected the half second to be dropped, got %q", s)
	}
	jd, err := img.Header.GetReal("JD")
	if err != nil {
		t.Fatal(err)
	}
	if jd != 2451545.0 {
		t.Errorf("expected JD 2451545, got %v", jd)
	}
	r, _ := img.Header.Find("JD")
	if !strings.Contains(r.String(), "/ JD at start") {
		t.Errorf("expected the JD comment, got %q", r.String())
	}
}

func TestTimeStampLocalZone(t *testing.T) {
	img := NewImage()
	zone := time.FixedZone("HST", -10*3600)
	TimeStamp(img, time.Date(2021, 3, 4, 20, 30, 15, 0, zone), "")
	if d, _ := img.Header.GetString("DATE-OBS"); d != "2021-03-05" {
		t.Errorf("expected the UTC date, got %q", d)
	}
	if s, _ := img.Header.GetString("TIME-OBS"); s != "06:30:15.00" {
		t.Errorf("expected the UTC time, got %q", s)
	}
}

func TestTimeStampNow(t *testing.T) {
	img := NewImage()
	before := time.Now().UTC()
	TimeStamp(img, time.Time{}, "")
	d, err := img.Header.GetString("DATE-OBS")
	if err != nil {
		t.Fatal(err)
	}
	after := time.Now().UTC()
	if d != before.Format("2006-01-02") && d != after.Format("2006-01-02") {
		t.Errorf("expected today, got %q", d)
	}
	jd, _ := img.Header.GetReal("JD")
	if now := 2440587.5 + float64(after.Unix())/86400; math.Abs(jd-now) > 1.0/86400*5 {
		t.Errorf("JD %v is not close to now %v", jd, now)
	}
}

func TestTimeStampUpdatesInPlace(t *testing.T) {
	img := NewImage()
	TimeStamp(img, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), "")
	TimeStamp(img, time.Date(2002, 1, 1, 0, 0, 0, 0, time.UTC), "")
	if img.Header.Len() != 3 {
		t.Errorf("expected three cards, got %d", img.Header.Len())
	}
}

func TestSetFWHM(t *testing.T) {
	img := testImage(8, 8)
	var gotW, gotH int
	fn := func(pix []uint16, w, h int) (FWHM, error) {
		gotW, gotH = w, h
		return FWHM{H: 2.5, HS: 0.25, V: 3.125, VS: 0.5}, nil
	}
	if err := SetFWHM(img, fn); err != nil {
		t.Fatal(err)
	}
	if gotW != 8 || gotH != 8 {
		t.Errorf("estimator saw %dx%d", gotW, gotH)
	}
	cases := map[string]float64{"FWHMH": 2.5, "FWHMHS": 0.25, "FWHMV": 3.125, "FWHMVS": 0.5}
	for k, want := range cases {
		if v, _ := img.Header.GetReal(k); v != want {
			t.Errorf("%s: expected %v, got %v", k, want, v)
		}
	}
}

func TestSetFWHMFails(t *testing.T) {
	img := testImage(8, 8)
	n := img.Header.Len()
	errNoStars := errors.New("no stars")
	fn := func([]uint16, int, int) (FWHM, error) { return FWHM{}, errNoStars }
	if err := SetFWHM(img, fn); !errors.Is(err, errNoStars) {
		t.Errorf("expected the estimator error, got %v", err)
	}
	if img.Header.Len() != n {
		t.Error("header changed after a failed estimate")
	}
	img.Pix = nil
	if err := SetFWHM(img, fn); err != ErrNoPixels {
		t.Errorf("expected ErrNoPixels, got %v", err)
	}
}
