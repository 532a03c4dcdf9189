package tls

import (
	tls "crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var secureCipherSuites = []uint16{
	// TLS 1.3 suites are always enabled by crypto/tls and listed for reference
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,

	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,

	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256,
}

var ErrNoCertificate = errors.New("no certificate configured")

// ServerConfig builds the LDAPS listener configuration. Inline PEM wins over
// file paths when both are set.
func ServerConfig(certFile, keyFile, certPEM, keyPEM string, legacy bool) (*tls.Config, error) {
	certBytes, keyBytes := []byte(certPEM), []byte(keyPEM)

	if len(certBytes) == 0 || len(keyBytes) == 0 {
		if certFile == "" || keyFile == "" {
			return nil, ErrNoCertificate
		}

		var err error
		if certBytes, err = os.ReadFile(certFile); err != nil {
			return nil, fmt.Errorf("reading certificate: %w", err)
		}
		if keyBytes, err = os.ReadFile(keyFile); err != nil {
			return nil, fmt.Errorf("reading key: %w", err)
		}
	}

	return MakeTLS(certBytes, keyBytes, legacy)
}

// MakeTLS generates a tls.Config serving the given key pair.
func MakeTLS(certPEM, keyPEM []byte, legacy bool) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	if legacy {
		return &tls.Config{
			MinVersion:   tls.VersionTLS10,
			MaxVersion:   tls.VersionTLS13,
			Certificates: []tls.Certificate{cert},
		}, nil
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		CipherSuites: secureCipherSuites,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// ClientConfig is used when dialing upstream LDAPS servers. caPEM, when set,
// is appended to the system pool.
func ClientConfig(serverName string, caPEM []byte, insecure bool) (*tls.Config, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	for _, der := range DecodePEM(caPEM).Certificate {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parsing CA certificate: %w", err)
		}
		pool.AddCert(c)
	}

	return &tls.Config{
		ServerName:         serverName,
		RootCAs:            pool,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure,
	}, nil
}

// DecodePEM collects every CERTIFICATE block of a PEM bundle.
func DecodePEM(certPEM []byte) tls.Certificate {
	var cert tls.Certificate
	var certDER *pem.Block
	for {
		certDER, certPEM = pem.Decode(certPEM)
		if certDER == nil {
			break
		}
		if certDER.Type == "CERTIFICATE" {
			cert.Certificate = append(cert.Certificate, certDER.Bytes)
		}
	}

	return cert
}

func CipherSuiteNames(suites []uint16) []string {
	var names []string
	for _, suite := range suites {
		names = append(names, tls.CipherSuiteName(suite))
	}
	return names
}
