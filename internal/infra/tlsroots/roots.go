// Package tlsroots builds the TLS configuration used to reach the backend.
package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoCertsFound is returned when a PEM source holds no certificate.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found")

// LoadPool returns the system roots plus every certificate under caPath.
// caPath may be a PEM file or a directory; empty means system roots only.
func LoadPool(caPath string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if caPath == "" {
		return pool, nil
	}

	info, err := os.Stat(caPath)
	if err != nil {
		return nil, fmt.Errorf("tlsroots: %w", err)
	}
	if info.IsDir() {
		err = addDir(pool, caPath)
	} else {
		err = addFile(pool, caPath)
	}
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// ClientConfig returns a TLS 1.2+ client configuration trusting LoadPool(caPath).
func ClientConfig(caPath string) (*tls.Config, error) {
	pool, err := LoadPool(caPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

func addFile(pool *x509.CertPool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read %s: %w", path, err)
	}
	n, err := addPEM(pool, data)
	if err != nil {
		return fmt.Errorf("tlsroots: %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("%w in %s", ErrNoCertsFound, path)
	}
	return nil
}

// addDir loads every certificate file in dir. Unreadable files are
// skipped, but at least one certificate must be found.
func addDir(pool *x509.CertPool, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("tlsroots: read dir %s: %w", dir, err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pem", ".crt", ".cer":
		default:
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		n, err := addPEM(pool, data)
		if err != nil {
			continue
		}
		total += n
	}
	if total == 0 {
		return fmt.Errorf("%w in %s", ErrNoCertsFound, dir)
	}
	return nil
}

// addPEM adds the CERTIFICATE blocks of data and returns how many it added.
func addPEM(pool *x509.CertPool, data []byte) (int, error) {
	n := 0
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return n, fmt.Errorf("parse certificate: %w", err)
		}
		pool.AddCert(cert)
		n++
	}
	return n, nil
}
