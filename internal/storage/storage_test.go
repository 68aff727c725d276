package storage

import (
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), DefaultDBName))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestGetMissingKey(t *testing.T) {
	store := openTemp(t)

	value, ok, err := store.Get(KeyResumeContent)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok || value != "" {
		t.Fatalf("expected missing key, got %q (ok=%v)", value, ok)
	}
}

func TestSetGetRemove(t *testing.T) {
	store := openTemp(t)

	if err := store.Set(KeyAPIKey, "secret"); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, ok, err := store.Get(KeyAPIKey)
	if err != nil || !ok || value != "secret" {
		t.Fatalf("unexpected get result: %q %v %v", value, ok, err)
	}

	if err := store.Set(KeyAPIKey, "rotated"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	value, _, err = store.Get(KeyAPIKey)
	if err != nil || value != "rotated" {
		t.Fatalf("expected overwritten value, got %q %v", value, err)
	}

	if err := store.Remove(KeyAPIKey); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, ok, err = store.Get(KeyAPIKey)
	if err != nil || ok {
		t.Fatalf("expected key gone, got ok=%v err=%v", ok, err)
	}

	// Removing again is a no-op.
	if err := store.Remove(KeyAPIKey); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBName)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Set(KeyResumeFilename, "resume.pdf"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get(KeyResumeFilename)
	if err != nil || !ok || value != "resume.pdf" {
		t.Fatalf("value did not survive reopen: %q %v %v", value, ok, err)
	}
}
