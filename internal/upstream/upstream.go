package upstream

import (
	"net/http/httputil"
	"net/url"
)

// Upstream represents a protected upstream service: a model loader,
// embedding API, or any other HTTP dependency fronted by a circuit.
type Upstream struct {
	name  string
	url   *url.URL
	proxy *httputil.ReverseProxy
}

// New creates a new Upstream with the given circuit name and base URL.
func New(name string, url *url.URL) *Upstream {
	return &Upstream{
		name:  name,
		url:   url,
		proxy: httputil.NewSingleHostReverseProxy(url),
	}
}

// Name returns the upstream's circuit name.
func (u *Upstream) Name() string {
	return u.name
}

// URL returns the upstream base URL.
func (u *Upstream) URL() *url.URL {
	return u.url
}

// ReverseProxy returns the HTTP reverse proxy for this upstream.
func (u *Upstream) ReverseProxy() *httputil.ReverseProxy {
	return u.proxy
}
