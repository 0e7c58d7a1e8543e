// Package client talks to a fitshttp server.
//
// Establishing the TCP connection is retried with an exponential backoff,
// since the server may be restarting; any other failure is returned at once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warwick-one-metre/superwasp-talon/fits"
	"github.com/warwick-one-metre/superwasp-talon/server"
	"github.com/warwick-one-metre/superwasp-talon/util"
)

// DefaultMaxElapsed is used when Client.MaxElapsed is not positive
const DefaultMaxElapsed = 3 * time.Second

// StatusError is returned when the server replies with a non success code
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, http.StatusText(e.Code), e.Msg)
}

// Client pushes images to and fetches images from a fitshttp server
type Client struct {
	// Addr is the base URL of the server, e.g. http://localhost:8000/fits
	Addr string

	// MaxElapsed bounds the time spent retrying a refused connection
	MaxElapsed time.Duration

	// Timeout bounds connecting and the exchange on the connection
	Timeout time.Duration

	// Codec encodes pushed images and decodes fetched ones
	Codec fits.Codec

	http *http.Client
}

// New returns a client of the server at addr with the default codec
func New(addr string, maxElapsed time.Duration) *Client {
	return &Client{Addr: strings.TrimSuffix(addr, "/"), MaxElapsed: maxElapsed, Timeout: 30 * time.Second, Codec: fits.Default}
}

func (c *Client) client() *http.Client {
	if c.http == nil {
		c.http = &http.Client{Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return util.TCPSetup(addr, c.Timeout)
			},
			// the deadlines set at dial time do not survive reuse
			DisableKeepAlives: true,
		}}
	}
	return c.http
}

// do sends the request built by mk, rebuilding and retrying it while the
// connection is refused
func (c *Client) do(mk func() (*http.Request, error)) (*http.Response, error) {
	maxElapsed := c.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = DefaultMaxElapsed
	}
	var resp *http.Response
	op := func() error {
		req, err := mk()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err = c.client().Do(req)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "refused") {
				log.WithField("addr", c.Addr).Debug("connection refused, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      maxElapsed,
		Clock:               backoff.SystemClock})
	if err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			err = perm.Err
		}
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := ioutil.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Msg: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// Push uploads img and returns the name the server stored it under.  The
// pixels of img are restored after encoding.
func (c *Client) Push(img *fits.Image) (string, error) {
	buf := &bytes.Buffer{}
	if err := c.Codec.WriteFITS(buf, img, true); err != nil {
		return "", err
	}
	body := buf.Bytes()
	resp, err := c.do(func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.Addr+"/files", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/fits")
		return req, nil
	})
	if err != nil {
		return "", errors.Wrap(err, "pushing image")
	}
	defer resp.Body.Close()
	s := server.StrT{}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return "", errors.Wrap(err, "decoding push reply")
	}
	return s.Str, nil
}

// escape percent encodes each element of a slash separated name
func escape(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Fetch downloads and decodes the named file
func (c *Client) Fetch(name string) (*fits.Image, error) {
	resp, err := c.do(func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, c.Addr+"/files/"+escape(name), nil)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", name)
	}
	defer resp.Body.Close()
	img := fits.NewImage()
	if err := c.Codec.ReadFITS(resp.Body, img); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", name)
	}
	return img, nil
}

// List returns the names of the files on the server
func (c *Client) List() ([]string, error) {
	resp, err := c.do(func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, c.Addr+"/files", nil)
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing files")
	}
	defer resp.Body.Close()
	var names []string
	err = json.NewDecoder(resp.Body).Decode(&names)
	return names, err
}
