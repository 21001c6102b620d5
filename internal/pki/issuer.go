package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"time"
)

const orgName = "Certificate Management"

const DefaultValidity = 365 * 24 * time.Hour

type Certificate struct {
	CertPEM []byte
	KeyPEM  []byte
}

// NewParticipantCertificate issues a self-signed certificate for a
// participant. Used to produce upload material for local environments.
func NewParticipantCertificate(participantID string, validity time.Duration) (*Certificate, error) {
	if participantID == "" {
		return nil, errors.New("participant id is required")
	}
	if validity <= 0 {
		validity = DefaultValidity
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: generateSerial(),
		Subject: pkix.Name{
			Organization:       []string{orgName},
			OrganizationalUnit: []string{"participants"},
			CommonName:         participantID,
		},
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, err
	}

	return &Certificate{
		CertPEM: pemEncode("CERTIFICATE", certDER),
		KeyPEM:  pemEncodeKey(privateKey),
	}, nil
}

func generateSerial() *big.Int {
	serial, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	return serial
}

func pemEncode(blockType string, data []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: data})
}

func pemEncodeKey(key *ecdsa.PrivateKey) []byte {
	data, _ := x509.MarshalECPrivateKey(key)
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: data})
}
