package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzhttp"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	xxh3 "github.com/zeebo/xxh3"

	"github.com/qrv0/epgfetch/internal/logtrace"
)

const (
	MsgSuccess = "File downloaded successfully."
	MsgFailure = "Failed to download file. Status code: %d"
)

// Result describes one completed fetch. A non-200 response is a Result
// with Saved unset, not an error.
type Result struct {
	URL        string
	Path       string
	StatusCode int
	Saved      bool
	Bytes      int
	// Fingerprint is the xxh3-64 of the written bytes, for logs only.
	Fingerprint uint64
}

// Message is the single console line reported for r.
func (r Result) Message() string {
	if r.Saved {
		return MsgSuccess
	}
	return fmt.Sprintf(MsgFailure, r.StatusCode)
}

// Fetcher downloads one URL into one file.
type Fetcher struct {
	fs     afero.Fs
	client *resty.Client

	httpClient *http.Client
	transport  http.RoundTripper
	timeout    time.Duration
}

type Option func(*Fetcher)

// WithFs sets the filesystem the output file is written to.
func WithFs(fs afero.Fs) Option {
	return func(f *Fetcher) { f.fs = fs }
}

// WithTimeout bounds the whole request. Zero means wait forever.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithHTTPClient swaps the underlying client. Its transport is kept unless
// WithTransport is also given.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = hc }
}

// WithTransport replaces the round tripper used for the GET.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.transport = rt }
}

// New returns a Fetcher. Without options it writes to the OS filesystem
// through a client with no timeout and no retries.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(f)
	}

	var c *resty.Client
	if f.httpClient != nil {
		c = resty.NewWithClient(f.httpClient)
	} else {
		c = resty.New().SetTransport(gzhttp.Transport(http.DefaultTransport))
	}
	if f.transport != nil {
		c.SetTransport(f.transport)
	}
	if f.timeout > 0 {
		c.SetTimeout(f.timeout)
	}
	f.client = c.SetLogger(logtrace.Sugar()).SetRetryCount(0)
	return f
}

// FetchAndSave downloads url into path using a default Fetcher.
func FetchAndSave(ctx context.Context, url, path string) (Result, error) {
	return New().FetchAndSave(ctx, url, path)
}

// FetchAndSave issues one GET for url. On 200 the whole body is written to
// path in a single write, truncating any existing file. On any other status
// path is not touched. The body is read completely before path is opened,
// so a transport failure never creates or modifies the file.
func (f *Fetcher) FetchAndSave(ctx context.Context, url, path string) (Result, error) {
	res := Result{URL: url, Path: path}
	fields := logtrace.Fields{logtrace.FieldURL: url, logtrace.FieldPath: path}

	start := time.Now()
	logtrace.Debug(ctx, "requesting", fields)
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		logtrace.Error(ctx, "request failed", logtrace.WithFields(fields, logtrace.Fields{logtrace.FieldError: err}))
		return res, errors.Wrapf(err, "get %s", url)
	}
	res.StatusCode = resp.StatusCode()
	fields[logtrace.FieldStatus] = res.StatusCode
	fields[logtrace.FieldDuration] = time.Since(start).String()

	if res.StatusCode != http.StatusOK {
		logtrace.Info(ctx, "unexpected status, nothing written", fields)
		return res, nil
	}

	body := resp.Body()
	if err := writeFile(f.fs, path, body); err != nil {
		logtrace.Error(ctx, "write failed", logtrace.WithFields(fields, logtrace.Fields{logtrace.FieldError: err}))
		return res, err
	}
	res.Saved = true
	res.Bytes = len(body)
	res.Fingerprint = xxh3.Hash(body)

	fields[logtrace.FieldBytes] = res.Bytes
	fields[logtrace.FieldFingerprint] = fmt.Sprintf("%016x", res.Fingerprint)
	logtrace.Info(ctx, "saved", fields)
	return res, nil
}

// writeFile truncates path and writes data in one call. A failed write is
// not cleaned up.
func writeFile(fs afero.Fs, path string, data []byte) (err error) {
	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()

	n, err := file.Write(data)
	if err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if n < len(data) {
		return errors.Wrapf(io.ErrShortWrite, "write %s", path)
	}
	return nil
}
