package catalogue

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/climdiff/climdiff/internal/config"
)

// Certificate states reported by CheckTLS.
const (
	CertValid       = "valid"
	CertExpiring    = "expiring"
	CertExpired     = "expired"
	CertUnreachable = "unreachable"
)

// expiringWithin is how close to expiry a certificate is flagged.
const expiringWithin = 30 * 24 * time.Hour

// CertStatus describes the catalogue endpoint's leaf certificate.
type CertStatus struct {
	Endpoint string
	Status   string
	DaysLeft int
	Issuer   string
	NotAfter time.Time
}

// CheckTLS dials the catalogue endpoint and inspects its certificate.
//
// Returns nil for non-HTTPS endpoints since there is nothing to inspect.
// Uses a 10-second dial timeout so a slow or unreachable host does not
// delay startup.
func CheckTLS(ctx context.Context, cfg config.CatalogueConfig) *CertStatus {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}
	cs := &CertStatus{Endpoint: cfg.Endpoint}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
		},
	}
	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = CertUnreachable
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peers := conn.ConnectionState().PeerCertificates
	if len(peers) == 0 {
		cs.Status = CertUnreachable
		return cs
	}
	leaf := peers[0]
	left := time.Until(leaf.NotAfter)

	cs.NotAfter = leaf.NotAfter.UTC()
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(left.Hours() / 24))

	switch {
	case left <= 0:
		cs.Status = CertExpired
	case left <= expiringWithin:
		cs.Status = CertExpiring
	default:
		cs.Status = CertValid
	}
	return cs
}

// New returns the Catalogue selected by cfg: a Directory when
// catalogue.directory is set, otherwise the CDS API client.
func New(cfg config.CatalogueConfig, obs Observer) (Catalogue, error) {
	if cfg.Directory != "" {
		return NewDirectory(cfg.Directory, obs), nil
	}
	return NewCDS(cfg, obs)
}
