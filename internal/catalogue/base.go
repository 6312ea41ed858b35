package catalogue

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/climdiff/climdiff/internal/config"
)

// requestTimeout bounds a single HTTP exchange. Whole retrievals are
// bounded separately by catalogue.timeout.
const requestTimeout = 5 * time.Minute

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.EffectiveHeader(), t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient constructs an http.Client for the catalogue's auth and TLS settings.
func NewHTTPClient(cfg config.CatalogueConfig) (*http.Client, error) {
	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	transport := &authRoundTripper{
		base: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsCfg,
		},
		auth: cfg.Auth,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}, nil
}

func buildTLSConfig(cfg config.CatalogueConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if cfg.Auth.Mode != "mtls" {
		return tlsCfg, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.Auth.CertFile, cfg.Auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("catalogue: load client cert: %w", err)
	}
	tlsCfg.Certificates = []tls.Certificate{cert}

	if cfg.Auth.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.Auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("catalogue: read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("catalogue: no valid certs found in ca file %q", cfg.Auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}
