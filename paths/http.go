package paths

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// HTTP serves sprite files fetched relative to a base URL.
type HTTP struct {
	Base   *url.URL
	Client *http.Client
}

// NewHTTP returns a source fetching names relative to base, which should end
// in a slash.
func NewHTTP(base string) (*HTTP, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing base url %q", base)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &HTTP{Base: u, Client: http.DefaultClient}, nil
}

// IsURL reports whether s looks like an http or https URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Open implements pipeline.Source. The whole file is read before Open
// returns.
func (h *HTTP) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	ref, err := url.Parse(strings.TrimPrefix(name, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "sprite name %q", name)
	}
	return OpenURL(ctx, h.Client, h.Base.ResolveReference(ref).String())
}

// OpenURL fetches a single file over HTTP.
func OpenURL(ctx context.Context, client *http.Client, u string) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %q", u)
	}
	glog.V(1).Infof("paths: fetching %s", u)
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %q", u)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		e := os.ErrInvalid
		if resp.StatusCode == http.StatusNotFound {
			e = os.ErrNotExist
		}
		return nil, errors.Wrapf(e, "fetching %q: http status %v, want 200", u, resp.StatusCode)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, errors.Wrapf(err, "fetching %q", u)
	}
	return ioutil.NopCloser(bytes.NewReader(buf.Bytes())), nil
}
