package certclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testParticipant = "dfsp-one"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/public/certs/public-keys", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"data":null,"error":{"code":"UNAUTHORIZED","message":"authentication required"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":[{"participantId":"dfsp-one","publicKey":"PEM"}],"error":null}`))
	})
	mux.HandleFunc("/public/certs/"+testParticipant, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"c-1","participantId":"dfsp-one","publicKey":"PEM","certInfo":{"serialNumber":"42"}},"error":null}`))
	})
	mux.HandleFunc("/public/certs/missing-one", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"data":null,"error":{"code":"NOT_FOUND","message":"not found"}}`))
	})
	mux.HandleFunc("/public/certs/broken-one", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"data":null,"error":{"code":"STORAGE_UNAVAILABLE","message":"down"}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListPublicKeys(t *testing.T) {
	srv := newTestServer(t)

	keys, err := NewClient(srv.URL+"/", WithToken("token-1")).ListPublicKeys(context.Background())
	if err != nil {
		t.Fatalf("ListPublicKeys failed: %v", err)
	}
	if len(keys) != 1 || keys[0].ParticipantID != testParticipant || keys[0].PublicKey != "PEM" {
		t.Errorf("unexpected keys: %+v", keys)
	}

	_, err = NewClient(srv.URL).ListPublicKeys(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "UNAUTHORIZED" {
		t.Errorf("expected unauthorized API error, got %v", err)
	}
}

func TestGetCertificate(t *testing.T) {
	client := NewClient(newTestServer(t).URL)

	cert, err := client.GetCertificate(context.Background(), testParticipant)
	if err != nil {
		t.Fatalf("GetCertificate failed: %v", err)
	}
	if cert == nil || cert.ID != "c-1" || cert.CertInfo.SerialNumber != "42" {
		t.Errorf("unexpected certificate: %+v", cert)
	}

	key, err := client.GetPublicKey(context.Background(), testParticipant)
	if err != nil || key != "PEM" {
		t.Errorf("expected PEM key, got %q (%v)", key, err)
	}
}

func TestGetCertificateNotFound(t *testing.T) {
	client := NewClient(newTestServer(t).URL)

	cert, err := client.GetCertificate(context.Background(), "missing-one")
	if err != nil || cert != nil {
		t.Errorf("expected nil certificate without error, got %+v (%v)", cert, err)
	}

	key, err := client.GetPublicKey(context.Background(), "missing-one")
	if err != nil || key != "" {
		t.Errorf("expected empty key without error, got %q (%v)", key, err)
	}
}

func TestGetCertificateServerError(t *testing.T) {
	client := NewClient(newTestServer(t).URL)

	_, err := client.GetCertificate(context.Background(), "broken-one")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "STORAGE_UNAVAILABLE" {
		t.Errorf("expected storage unavailable API error, got %v", err)
	}
}
