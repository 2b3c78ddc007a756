package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store, err := NewLocalStore(logger, filepath.Join(t.TempDir(), "charts"), "/static/charts/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestLocalStoreWriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "demo_pie.svg", []byte("<svg>pie</svg>")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !store.Exists("demo_pie.svg") {
		t.Fatalf("expected artifact to exist after write")
	}

	content, err := store.Read(ctx, "demo_pie.svg")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "<svg>pie</svg>" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestLocalStoreWriteLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "demo.svg", []byte("<svg/>")); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestLocalStoreOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "demo.svg", []byte("first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Write(ctx, "demo.svg", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	content, err := store.Read(ctx, "demo.svg")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "second" {
		t.Fatalf("expected overwrite to win, got %q", content)
	}
}

func TestLocalStoreDeleteToleratesAbsence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Delete(ctx, "never_written.svg"); err != nil {
		t.Fatalf("delete of absent artifact should succeed, got %v", err)
	}
	if err := store.Delete(ctx, ""); err != nil {
		t.Fatalf("delete of empty path should succeed, got %v", err)
	}

	if err := store.Write(ctx, "demo.svg", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Delete(ctx, "demo.svg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Exists("demo.svg") {
		t.Fatalf("artifact still present after delete")
	}
}

func TestLocalStoreURL(t *testing.T) {
	store := newTestStore(t)

	if got := store.URL("demo_pie.svg"); got != "/static/charts/demo_pie.svg" {
		t.Fatalf("unexpected URL: %q", got)
	}
	if got := store.URL(""); got != "" {
		t.Fatalf("expected empty URL for empty path, got %q", got)
	}
}

func TestFilename(t *testing.T) {
	got := Filename("demographics_religion_pie", "svg")
	if !strings.HasPrefix(got, "demographics_religion_pie-") || !strings.HasSuffix(got, ".svg") {
		t.Fatalf("unexpected filename: %q", got)
	}
	if got != Filename("demographics_religion_pie", "svg") {
		t.Fatalf("filename must be deterministic")
	}

	if got := Filename("a/b:c d", "png"); !strings.HasPrefix(got, "a_b_c_d-") {
		t.Fatalf("sanitization failed: %q", got)
	}

	long := strings.Repeat("k", 300)
	if got := Filename(long, "svg"); len(got) > 120+1+10+len(".svg") {
		t.Fatalf("expected capped filename, got length %d", len(got))
	}
}

func TestFilenameDistinctKeysNeverCollide(t *testing.T) {
	pairs := [][2]string{
		{"key_a", "key_b"},
		// Sanitized forms coincide; the raw keys must still get separate files.
		{"a/b", "a_b"},
		{"a:b", "a b"},
		// Truncated readable prefixes coincide.
		{strings.Repeat("k", 300) + "1", strings.Repeat("k", 300) + "2"},
	}
	for _, p := range pairs {
		if Filename(p[0], "svg") == Filename(p[1], "svg") {
			t.Fatalf("keys %q and %q map to the same filename", p[0], p[1])
		}
	}
}
