// Package proxy parses outbound proxy descriptors and implements the
// round-robin assignment of proxies to accounts.
package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidAddr is returned when a proxy descriptor cannot be parsed.
var ErrInvalidAddr = errors.New("proxy: invalid address")

// supportedSchemes lists the proxy schemes understood by net/http.
var supportedSchemes = map[string]struct{}{
	"http":    {},
	"https":   {},
	"socks5":  {},
	"socks5h": {},
}

// Addr is a normalized proxy URL. The zero value means "no proxy".
type Addr string

// None is the absence of a proxy.
const None Addr = ""

// Parse normalizes a proxy descriptor. Accepted forms:
//
//	scheme://[user:pass@]host:port
//	[user:pass@]host:port
//	host:port:user:pass
//
// Descriptors without a scheme default to http.
func Parse(raw string) (Addr, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return None, fmt.Errorf("%w: empty descriptor", ErrInvalidAddr)
	}

	if !strings.Contains(s, "://") {
		if parts := strings.Split(s, ":"); len(parts) == 4 && !strings.Contains(s, "@") {
			s = fmt.Sprintf("%s:%s@%s:%s", parts[2], parts[3], parts[0], parts[1])
		}
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		// url errors echo the whole input, credentials included.
		return None, fmt.Errorf("%w: %q: malformed URL", ErrInvalidAddr, redactRaw(raw))
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if _, ok := supportedSchemes[u.Scheme]; !ok {
		return None, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddr, u.Scheme)
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil || host == "" {
		return None, fmt.Errorf("%w: %q: expected host:port", ErrInvalidAddr, redactRaw(raw))
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return None, fmt.Errorf("%w: %q: port out of range", ErrInvalidAddr, redactRaw(raw))
	}

	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return Addr(u.String()), nil
}

// IsZero reports whether a is the absence of a proxy.
func (a Addr) IsZero() bool {
	return a == None
}

// URL returns the parsed proxy URL.
func (a Addr) URL() (*url.URL, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("%w: no proxy", ErrInvalidAddr)
	}
	return url.Parse(string(a))
}

// Password returns the proxy password, if any.
func (a Addr) Password() string {
	u, err := a.URL()
	if err != nil || u.User == nil {
		return ""
	}
	p, _ := u.User.Password()
	return p
}

// Redacted returns a form of a safe for logs.
func (a Addr) Redacted() string {
	if a.IsZero() {
		return "none"
	}
	u, err := a.URL()
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}

// String implements fmt.Stringer. It never exposes credentials.
func (a Addr) String() string {
	return a.Redacted()
}

// Transport builds an HTTP transport routing traffic through a.
// The zero Addr yields a direct transport.
func (a Addr) Transport() (*http.Transport, error) {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	if a.IsZero() {
		return t, nil
	}
	u, err := a.URL()
	if err != nil {
		return nil, err
	}
	t.Proxy = http.ProxyURL(u)
	return t, nil
}

// Assign returns the proxy for the account at index i: proxies[i mod len]
// when proxy usage is enabled and the pool is non-empty, None otherwise.
func Assign(i int, proxies []Addr, useProxy bool) Addr {
	if !useProxy || len(proxies) == 0 || i < 0 {
		return None
	}
	return proxies[i%len(proxies)]
}

// redactRaw hides credentials in an unparsed descriptor: everything
// before '@', or the fourth and later fields of host:port:user:pass.
func redactRaw(raw string) string {
	raw = strings.TrimSpace(raw)
	if at := strings.LastIndex(raw, "@"); at >= 0 {
		return "***" + raw[at:]
	}
	if !strings.Contains(raw, "://") {
		if parts := strings.SplitN(raw, ":", 4); len(parts) == 4 {
			return strings.Join(parts[:3], ":") + ":***"
		}
	}
	return raw
}
