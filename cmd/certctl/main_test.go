package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenCertThenInspect(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"gencert", "--participant", "dfsp-one", "--out", dir})
	if err := root.Execute(); err != nil {
		t.Fatalf("gencert failed: %v", err)
	}

	certPath := filepath.Join(dir, "dfsp-one.pem")
	if _, err := os.Stat(filepath.Join(dir, "dfsp-one.key")); err != nil {
		t.Fatalf("expected private key file: %v", err)
	}

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"inspect", certPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out.String(), "dfsp-one") || !strings.Contains(out.String(), "BEGIN PUBLIC KEY") {
		t.Errorf("unexpected inspect output: %s", out.String())
	}
}

func TestGenCertRequiresParticipant(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"gencert"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected missing participant flag to fail")
	}
}
