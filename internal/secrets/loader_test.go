package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  api-key-value \n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	secret, err := Load(Source{Name: "gemini api key", File: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if secret != "api-key-value" {
		t.Fatalf("expected trimmed secret, got %q", secret)
	}
}

func TestLoadFilePrecedesValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	secret, err := Load(Source{Value: "inline", File: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if secret != "from-file" {
		t.Fatalf("expected file to win, got %q", secret)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(Source{Name: "gemini api key", File: path}); err == nil {
		t.Fatal("expected an error for empty file")
	}
}

func TestLoadUnconfigured(t *testing.T) {
	_, err := Load(Source{Name: "gemini api key"})
	if err == nil {
		t.Fatal("expected an error")
	}

	if !strings.Contains(err.Error(), "gemini api key") {
		t.Fatalf("error should name the secret: %v", err)
	}
}
