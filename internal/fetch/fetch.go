// Package fetch loads source documents referenced by URL instead of uploaded.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/local/pagerender/internal/document"
	"github.com/local/pagerender/internal/storage"
)

// ObjectStore is the S3 surface the fetcher needs.
type ObjectStore interface {
	Stat(ctx context.Context, bucket, key string) (*storage.ObjectInfo, error)
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// Object is a fetched document.
type Object struct {
	Name string
	Data []byte
}

// Fetcher resolves s3:// and http(s):// references. HTTP sources must resolve
// to public addresses unless their host is allowed explicitly.
type Fetcher struct {
	store    ObjectStore
	client   *http.Client
	maxBytes int64
	allowed  map[string]bool
	resolver *net.Resolver
}

var errBlockedAddress = errors.New("address is not publicly routable")

func New(store ObjectStore, timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	f := &Fetcher{store: store, maxBytes: maxBytes, allowed: map[string]bool{}, resolver: net.DefaultResolver}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = f.dialPublic(&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second})
	f.client = &http.Client{Timeout: timeout, Transport: transport}
	return f
}

// AllowHosts exempts hosts from the public address check.
func (f *Fetcher) AllowHosts(hosts ...string) *Fetcher {
	for _, h := range hosts {
		f.allowed[strings.ToLower(h)] = true
	}
	return f
}

// dialPublic resolves the host itself and dials only vetted addresses, so
// redirects and DNS answers pointing inside the network are refused too.
func (f *Fetcher) dialPublic(d *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if f.allowed[strings.ToLower(host)] {
			return d.DialContext(ctx, network, addr)
		}
		ips, err := f.resolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error = fmt.Errorf("%s: no addresses", host)
		for _, ip := range ips {
			if !publicIP(ip.IP) {
				return nil, fmt.Errorf("%s resolves to %s: %w", host, ip.IP, errBlockedAddress)
			}
		}
		for _, ip := range ips {
			conn, err := d.DialContext(ctx, network, net.JoinHostPort(ip.IP.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}

func publicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}

// Fetch downloads ref. Unsupported schemes and oversized objects are validation errors.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*Object, error) {
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	switch {
	case strings.HasPrefix(ref, "s3://"):
		return f.fetchS3(ctx, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	}
	return nil, document.ValidationError("file_url must be an s3:// or http(s):// URL", nil)
}

func (f *Fetcher) fetchS3(ctx context.Context, ref string) (*Object, error) {
	if f.store == nil {
		return nil, document.ValidationError("S3 sources are not configured", nil)
	}
	rest := strings.TrimPrefix(ref, "s3://")
	slash := strings.Index(rest, "/")
	if slash <= 0 || slash == len(rest)-1 {
		return nil, document.ValidationError(fmt.Sprintf("invalid s3 url: %s", ref), nil)
	}
	bucket, key := rest[:slash], rest[slash+1:]

	info, err := f.store.Stat(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	if f.maxBytes > 0 && info.Size > f.maxBytes {
		return nil, document.ValidationError(fmt.Sprintf("File exceeds the %d MB limit", f.maxBytes>>20), nil)
	}
	data, err := f.store.Download(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	name := info.OriginalName
	if name == "" {
		name = path.Base(key)
	}
	return &Object{Name: name, Data: data}, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) (*Object, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, document.ValidationError(fmt.Sprintf("invalid url: %s", ref), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if errors.Is(err, errBlockedAddress) {
		return nil, document.ValidationError(fmt.Sprintf("file_url host is not allowed: %s", u.Hostname()), err)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: http %d", u.Redacted(), resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Redacted(), err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, document.ValidationError(fmt.Sprintf("File exceeds the %d MB limit", f.maxBytes>>20), nil)
	}
	return &Object{Name: path.Base(u.Path), Data: data}, nil
}
