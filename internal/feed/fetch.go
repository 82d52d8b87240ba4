package feed

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FetcherOptions configures feed downloads.
type FetcherOptions struct {
	Timeout      time.Duration // per download; default 60s
	DownloadRate float64       // downloads per second across all sources; default 2
	UserAgent    string
}

// Fetcher downloads feed files over HTTP(S) or FTP, rate-limited so repeated
// ingest runs do not hammer retailer endpoints.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    FetcherOptions
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.DownloadRate <= 0 {
		opts.DownloadRate = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "product-match/1.0"
	}
	return &Fetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.DownloadRate), 1),
		opts:    opts,
	}
}

// Fetch downloads rawURL into dir and returns the local file path. The
// scheme selects the transport: http, https, or ftp.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "feed: rate limit wait")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "feed: parse url %s", rawURL)
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		body, err = f.fetchHTTP(ctx, rawURL)
	case "ftp":
		body, err = f.fetchFTP(ctx, u)
	default:
		return "", eris.Errorf("feed: unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return "", err
	}
	defer body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "feed: create dir %s", dir)
	}
	dest := filepath.Join(dir, filepath.Base(u.Path))
	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "feed: create %s", dest)
	}
	defer out.Close()

	n, err := io.Copy(out, body)
	if err != nil {
		return "", eris.Wrapf(err, "feed: download %s", rawURL)
	}

	zap.L().Info("feed downloaded",
		zap.String("url", rawURL),
		zap.String("dest", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "feed: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: GET %s", rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, eris.Errorf("feed: GET %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

func (f *Fetcher) fetchFTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return nil, eris.New("feed: empty path in ftp url")
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "feed: ftp dial %s", host)
	}

	user := "anonymous"
	pass := "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, eris.Wrapf(err, "feed: ftp login %s", host)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		return nil, eris.Wrapf(err, "feed: ftp retr %s", u.Path)
	}
	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// ftpConnReader closes both the FTP response and the connection when the
// caller is done reading.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "feed: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "feed: quit ftp connection")
	}
	return nil
}
