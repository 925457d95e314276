// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gotls

import (
	"bytes"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

var (
	// ErrNoCertificate is returned when a key store holds no certificate.
	ErrNoCertificate = errors.New("gotls: no certificate found")
	// ErrNoPrivateKey is returned when a key store holds no private key.
	ErrNoPrivateKey = errors.New("gotls: no private key found")
	// ErrKeyMismatch is returned when no certificate matches the private key.
	ErrKeyMismatch = errors.New("gotls: no certificate matches the private key")
)

// LoadKeyPair reads a certificate chain and its private key from a PEM file
// or a PKCS#12 archive. password decrypts a legacy encrypted PEM key or the
// PKCS#12 archive and may be empty.
func LoadKeyPair(file, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read key store: %w", err)
	}
	blocks, err := decodeStore(data, password)
	if err != nil {
		return tls.Certificate{}, err
	}

	var certs [][]byte
	var keyDER []byte
	for _, b := range blocks {
		switch {
		case b.Type == "CERTIFICATE":
			certs = append(certs, b.Bytes)
		case keyDER == nil && isKeyBlock(b.Type):
			der := b.Bytes
			//nolint:staticcheck // legacy encrypted PEM keys are still in use.
			if x509.IsEncryptedPEMBlock(b) {
				//nolint:staticcheck
				if der, err = x509.DecryptPEMBlock(b, []byte(password)); err != nil {
					return tls.Certificate{}, fmt.Errorf("decrypt private key: %w", err)
				}
			}
			keyDER = der
		}
	}
	if len(certs) == 0 {
		return tls.Certificate{}, ErrNoCertificate
	}
	if keyDER == nil {
		return tls.Certificate{}, ErrNoPrivateKey
	}
	return assemble(certs, keyDER)
}

// LoadTrustPool reads trusted certificates from a PEM file or a PKCS#12
// archive.
func LoadTrustPool(file, password string) (*x509.CertPool, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read trust store: %w", err)
	}
	blocks, err := decodeStore(data, password)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	n := 0
	for _, b := range blocks {
		if b.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(b.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse trusted certificate: %w", err)
		}
		pool.AddCert(cert)
		n++
	}
	if n == 0 {
		return nil, ErrNoCertificate
	}
	return pool, nil
}

func decodeStore(data []byte, password string) ([]*pem.Block, error) {
	if bytes.Contains(data, []byte("-----BEGIN ")) {
		var blocks []*pem.Block
		for {
			var b *pem.Block
			b, data = pem.Decode(data)
			if b == nil {
				return blocks, nil
			}
			blocks = append(blocks, b)
		}
	}
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("decode PKCS#12 store: %w", err)
	}
	return blocks, nil
}

func isKeyBlock(typ string) bool {
	switch typ {
	case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
		return true
	}
	return false
}

func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	return signer, nil
}

// assemble puts the certificate matching the key first and keeps the rest
// of the chain in order.
func assemble(certs [][]byte, keyDER []byte) (tls.Certificate, error) {
	key, err := parsePrivateKey(keyDER)
	if err != nil {
		return tls.Certificate{}, err
	}
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return tls.Certificate{}, ErrKeyMismatch
	}
	for i, der := range certs {
		leaf, err := x509.ParseCertificate(der)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
		}
		if !pub.Equal(leaf.PublicKey) {
			continue
		}
		chain := make([][]byte, 0, len(certs))
		chain = append(chain, der)
		chain = append(chain, certs[:i]...)
		chain = append(chain, certs[i+1:]...)
		return tls.Certificate{Certificate: chain, PrivateKey: key, Leaf: leaf}, nil
	}
	return tls.Certificate{}, ErrKeyMismatch
}
