package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/theckman/yacspin"

	"github.com/warwick-one-metre/superwasp-talon/client"
	"github.com/warwick-one-metre/superwasp-talon/fits"
	"github.com/warwick-one-metre/superwasp-talon/interop"
	"github.com/warwick-one-metre/superwasp-talon/util"
)

// errUsage is returned when a command is given the wrong arguments
var errUsage = errors.New("wrong number of arguments, see talonfits with no arguments for usage")

// spinnerOut is where normalize draws its progress
var spinnerOut io.Writer = os.Stdout

func readFile(codec fits.Codec, fn string) (*fits.Image, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img := fits.NewImage()
	if err := codec.ReadFITS(f, img); err != nil {
		return nil, errors.Wrap(err, fn)
	}
	return img, nil
}

// writeFile writes img to fn through a temporary file in the same folder
func writeFile(codec fits.Codec, fn string, img *fits.Image) error {
	return replaceFile(fn, func(w io.Writer) error {
		return codec.WriteFITS(w, img, true)
	})
}

// replaceFile creates fn from what write produces, leaving any existing fn
// untouched if write fails
func replaceFile(fn string, write func(io.Writer) error) error {
	tmp, err := ioutil.TempFile(filepath.Dir(fn), ".talonfits")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	err = write(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, fn)
	}
	return os.Rename(tmp.Name(), fn)
}

func header(w io.Writer, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	img := fits.NewImage()
	if err := fits.ReadHeader(f, img); err != nil {
		return errors.Wrap(err, args[0])
	}
	for _, r := range img.Header.Records() {
		fmt.Fprintln(w, r.String())
	}
	return nil
}

func info(w io.Writer, cfg config, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	img, err := readFile(fits.Codec{Bias: cfg.Bias}, args[0])
	if err != nil {
		return err
	}
	lo, hi := uint16(0xffff), uint16(0)
	var sum float64
	for _, p := range img.Pix {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
		sum += float64(p)
	}
	mean := 0.
	if len(img.Pix) > 0 {
		mean = sum / float64(len(img.Pix))
	} else {
		lo = 0
	}
	fmt.Fprintf(w, "%s: %d x %d, binning %d x %d, offset %d,%d\n",
		args[0], img.Width, img.Height, img.XBin, img.YBin, img.OffsetX, img.OffsetY)
	fmt.Fprintf(w, "axes %s\n", util.IntSliceToCSV([]int{img.Width, img.Height}))
	fmt.Fprintf(w, "exposure %v, %d cards\n", time.Duration(img.Exposure)*time.Millisecond, img.Header.Len())
	fmt.Fprintf(w, "pixels min %d max %d mean %.1f\n", lo, hi, mean)
	if d, err := img.Header.GetString("DATE-OBS"); err == nil {
		t, _ := img.Header.GetString("TIME-OBS")
		fmt.Fprintf(w, "observed %s %s UTC\n", d, t)
	}
	return nil
}

func simple(cfg config, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	w, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Wrap(err, "width")
	}
	h, err := strconv.Atoi(args[2])
	if err != nil {
		return errors.Wrap(err, "height")
	}
	if w < 0 || h < 0 {
		return errors.New("width and height must not be negative")
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	codec := fits.Codec{Bias: cfg.Bias}
	return codec.WriteSimpleFITS(f, make([]uint16, w*h), w, h, 0, 0, 0, false)
}

func stamp(cfg config, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	codec := fits.Codec{Bias: cfg.Bias}
	img, err := readFile(codec, args[0])
	if err != nil {
		return err
	}
	fits.TimeStamp(img, time.Time{}, "JD at stamping")
	return writeFile(codec, args[0], img)
}

func importOne(codec fits.Codec, in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()
	img, err := interop.ReadForeign(f, codec.Bias)
	if err != nil {
		return errors.Wrap(err, in)
	}
	return writeFile(codec, out, img)
}

func importFile(cfg config, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	return importOne(fits.Codec{Bias: cfg.Bias}, args[0], args[1])
}

// exportFile rewrites a file through fitsio with the configured bias
func exportFile(cfg config, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	img, err := readFile(fits.Codec{Bias: cfg.Bias}, args[0])
	if err != nil {
		return err
	}
	return replaceFile(args[1], func(w io.Writer) error {
		return interop.WriteFitsio(w, img, cfg.Bias)
	})
}

func normalize(cfg config, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	outdir, files := args[0], args[1:]
	if err := os.MkdirAll(outdir, 0777); err != nil {
		return err
	}
	spinner, err := yacspin.New(yacspin.Config{
		Writer:            spinnerOut,
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " normalizing",
		SuffixAutoColon:   true,
		StopCharacter:     "done",
		StopFailCharacter: "failed",
	})
	if err != nil {
		return err
	}
	if err := spinner.Start(); err != nil {
		return err
	}
	codec := fits.Codec{Bias: cfg.Bias}
	failed := 0
	for i, fn := range files {
		spinner.Message(fmt.Sprintf("%d/%d %s", i+1, len(files), filepath.Base(fn)))
		err := importOne(codec, fn, filepath.Join(outdir, filepath.Base(fn)))
		if err != nil {
			log.WithError(err).WithField("file", fn).Warn("could not normalize")
			failed++
		}
	}
	if failed > 0 {
		spinner.Message(fmt.Sprintf("%d of %d files failed", failed, len(files)))
		spinner.StopFail()
		return errors.Errorf("%d of %d files could not be normalized", failed, len(files))
	}
	spinner.Message(fmt.Sprintf("%d files", len(files)))
	return spinner.Stop()
}

func newClient(cfg config) *client.Client {
	c := client.New(cfg.Remote.Addr, util.SecsToDuration(cfg.Remote.MaxElapsed))
	c.Codec = fits.Codec{Bias: cfg.Bias}
	return c
}

func push(w io.Writer, cfg config, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	c := newClient(cfg)
	img, err := readFile(c.Codec, args[0])
	if err != nil {
		return err
	}
	name, err := c.Push(img)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, name)
	return nil
}

func fetch(cfg config, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	c := newClient(cfg)
	img, err := c.Fetch(args[0])
	if err != nil {
		return err
	}
	return writeFile(c.Codec, args[1], img)
}
