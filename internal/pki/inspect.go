package pki

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudflare/cfssl/certinfo"
	"github.com/cloudflare/cfssl/helpers"

	"github.com/certmgmt/backend/internal/domain"
)

var ErrInvalidCertificate = fmt.Errorf("%w: invalid certificate data", domain.ErrInvalidInput)

var allowedUploadExtensions = []string{"cer", "pem", "crt"}

var attributeNames = map[string]string{
	"2.5.4.6":  "Country Name",
	"2.5.4.8":  "State or Province Name",
	"2.5.4.7":  "Locality",
	"2.5.4.10": "Organization Name",
	"2.5.4.11": "Organizational Unit Name",
	"2.5.4.3":  "Common Name",
	"2.5.4.5":  "Serial Number",
}

var publicKeyAlgorithmNames = map[x509.PublicKeyAlgorithm]string{
	x509.RSA:     "RSA Encryption",
	x509.DSA:     "DSA",
	x509.ECDSA:   "EC Public Key",
	x509.Ed25519: "Ed25519",
}

// Inspection is what an upload yields once parsed: the derived metadata and
// the subject public key re-encoded as a PEM "PUBLIC KEY" block.
type Inspection struct {
	Info         domain.CertificateInfo `json:"certInfo"`
	PublicKeyPEM string                 `json:"publicKey"`
}

// Inspect parses exactly one PEM certificate. Structural parse success is the
// only validation performed; expiry and chain are not checked.
func Inspect(certPEM []byte) (*Inspection, error) {
	cert, err := helpers.ParseCertificatePEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}

	spki, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported public key: %v", ErrInvalidCertificate, err)
	}

	parsed := certinfo.ParseCertificate(cert)

	extensions := map[string]string{}
	if parsed.SKI != "" {
		extensions["subjectKeyIdentifier"] = parsed.SKI
	}
	if parsed.AKI != "" {
		extensions["authorityKeyIdentifier"] = parsed.AKI
	}
	if len(parsed.SANs) > 0 {
		extensions["subjectAltNames"] = strings.Join(parsed.SANs, ", ")
	}

	return &Inspection{
		Info: domain.CertificateInfo{
			Subject:            describeName(cert.Subject),
			Issuer:             describeName(cert.Issuer),
			ValidFrom:          cert.NotBefore.UTC().Format(time.RFC3339),
			ValidTo:            cert.NotAfter.UTC().Format(time.RFC3339),
			SerialNumber:       parsed.SerialNumber,
			PublicKeyAlgorithm: publicKeyAlgorithmName(cert.PublicKeyAlgorithm),
			SignatureAlgorithm: parsed.SignatureAlgorithm,
			Extensions:         extensions,
		},
		PublicKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: spki})),
	}, nil
}

// ValidUploadFilename accepts "<participantId>.cer|crt|pem" and nothing else.
func ValidUploadFilename(participantID, filename string) bool {
	base := filepath.Base(filename)
	parts := strings.Split(base, ".")
	if len(parts) != 2 {
		return false
	}
	if parts[0] != participantID {
		return false
	}
	for _, ext := range allowedUploadExtensions {
		if parts[1] == ext {
			return true
		}
	}
	return false
}

func describeName(name pkix.Name) string {
	parts := make([]string, 0, len(name.Names))
	for _, atv := range name.Names {
		oid := atv.Type.String()
		label, ok := attributeNames[oid]
		if !ok {
			label = oid
		}
		parts = append(parts, fmt.Sprintf("%s: %v", label, atv.Value))
	}
	return strings.Join(parts, ", ")
}

func publicKeyAlgorithmName(alg x509.PublicKeyAlgorithm) string {
	if name, ok := publicKeyAlgorithmNames[alg]; ok {
		return name
	}
	return alg.String()
}
