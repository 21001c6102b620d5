package pki

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/certmgmt/backend/internal/domain"
)

func TestInspect(t *testing.T) {
	cert, err := NewParticipantCertificate("dfsp-one", time.Hour)
	if err != nil {
		t.Fatalf("new participant cert error: %v", err)
	}

	inspection, err := Inspect(cert.CertPEM)
	if err != nil {
		t.Fatalf("inspect error: %v", err)
	}

	if !strings.Contains(inspection.Info.Subject, "Common Name: dfsp-one") {
		t.Errorf("expected subject to carry common name, got %q", inspection.Info.Subject)
	}
	if !strings.Contains(inspection.Info.Subject, "Organization Name: "+orgName) {
		t.Errorf("expected subject to carry organization, got %q", inspection.Info.Subject)
	}
	if inspection.Info.Subject != inspection.Info.Issuer {
		t.Errorf("self-signed cert should have subject == issuer, got %q vs %q", inspection.Info.Subject, inspection.Info.Issuer)
	}
	if inspection.Info.PublicKeyAlgorithm != "EC Public Key" {
		t.Errorf("expected EC Public Key, got %s", inspection.Info.PublicKeyAlgorithm)
	}
	if inspection.Info.SignatureAlgorithm == "" {
		t.Error("expected signature algorithm")
	}
	if inspection.Info.SerialNumber == "" {
		t.Error("expected serial number")
	}
	if _, err := time.Parse(time.RFC3339, inspection.Info.ValidTo); err != nil {
		t.Errorf("validTo not RFC3339: %v", err)
	}
	if !strings.HasPrefix(inspection.PublicKeyPEM, "-----BEGIN PUBLIC KEY-----") {
		t.Errorf("expected PEM public key, got %q", inspection.PublicKeyPEM)
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"not pem", []byte("hello")},
		{"wrong block", []byte("-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(tt.input)
			if !errors.Is(err, ErrInvalidCertificate) {
				t.Fatalf("expected ErrInvalidCertificate, got %v", err)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected error to wrap ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestValidUploadFilename(t *testing.T) {
	tests := []struct {
		participantID string
		filename      string
		want          bool
	}{
		{"dfsp-one", "dfsp-one.pem", true},
		{"dfsp-one", "dfsp-one.cer", true},
		{"dfsp-one", "dfsp-one.crt", true},
		{"dfsp-one", "/tmp/upload/dfsp-one.crt", true},
		{"dfsp-one", "dfsp-two.pem", false},
		{"dfsp-one", "dfsp-one.key", false},
		{"dfsp-one", "dfsp-one.pem.bak", false},
		{"dfsp-one", "dfsp-one", false},
	}

	for _, tt := range tests {
		if got := ValidUploadFilename(tt.participantID, tt.filename); got != tt.want {
			t.Errorf("ValidUploadFilename(%q, %q) = %v, want %v", tt.participantID, tt.filename, got, tt.want)
		}
	}
}

func TestNewParticipantCertificateRequiresID(t *testing.T) {
	if _, err := NewParticipantCertificate("", time.Hour); err == nil {
		t.Fatal("expected error for empty participant id")
	}
}
