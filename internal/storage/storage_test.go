package storage

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "uploads"), filepath.Join(root, "results"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestSaveUploadKeepsBytesAndLowercasesExtension(t *testing.T) {
	store := newTestStore(t)
	payload := []byte("\xff\xd8\xff\xe0 not re-encoded")

	upload, err := store.SaveUpload(bytes.NewReader(payload), "Portrait.JPEG")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}

	if !strings.HasSuffix(upload.Name, ".jpeg") {
		t.Fatalf("expected lower-cased extension, got %q", upload.Name)
	}
	if strings.Contains(upload.Name, "Portrait") {
		t.Fatalf("original name must not leak into %q", upload.Name)
	}
	if filepath.Dir(upload.Path) != store.UploadDir() {
		t.Fatalf("upload written outside upload dir: %s", upload.Path)
	}

	got, err := os.ReadFile(upload.Path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("uploaded bytes were modified")
	}
	if upload.Size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), upload.Size)
	}
	sum := sha1.Sum(payload)
	if upload.SHA1 != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected hash %s", upload.SHA1)
	}
	if upload.URL() != "/static/uploads/"+upload.Name {
		t.Fatalf("unexpected url %s", upload.URL())
	}
}

func TestSaveUploadWithoutExtension(t *testing.T) {
	store := newTestStore(t)

	upload, err := store.SaveUpload(strings.NewReader("x"), "scan")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	if filepath.Ext(upload.Name) != "" {
		t.Fatalf("expected no extension, got %q", upload.Name)
	}
}

func TestNewResultNamesAreUnique(t *testing.T) {
	store := newTestStore(t)

	const n = 64
	names := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names <- store.NewResult().Name
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool, n)
	for name := range names {
		if seen[name] {
			t.Fatalf("duplicate result name %s", name)
		}
		if filepath.Ext(name) != OutputExt {
			t.Fatalf("expected %s extension, got %q", OutputExt, name)
		}
		seen[name] = true
	}

	result := store.NewResult()
	if _, err := os.Stat(result.Path); !os.IsNotExist(err) {
		t.Fatalf("NewResult must not create the file, stat err=%v", err)
	}
	if result.URL() != "/static/results/"+result.Name {
		t.Fatalf("unexpected url %s", result.URL())
	}
}
