package cartridgeloader_test

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/sweproj/onerom/cartridgeloader"
	"github.com/sweproj/onerom/errors"
)

// memFetcher maps a reference string directly to bytes, for tests that
// don't want to touch the filesystem or the network.
type memFetcher map[string][]byte

func (m memFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, ok := m[ref]
	if !ok {
		return nil, errors.New(errors.SourceError, "no such source %q", ref)
	}
	return data, nil
}

func TestResolveSingleExactFit(t *testing.T) {
	raw := []byte(`{
		"version": 1,
		"rom_sets": [{"type": "single", "roms": [{"file": "kernal.bin", "type": "2364", "cs1": "active_low"}]}]
	}`)
	cfg, err := cartridgeloader.ParseConfig(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fetcher := memFetcher{"kernal.bin": make([]byte, 8192)}
	sets, err := cartridgeloader.Resolve(context.Background(), cfg, fetcher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets) != 1 || len(sets[0].ROMs) != 1 {
		t.Fatalf("unexpected shape: %+v", sets)
	}
	if len(sets[0].ROMs[0].Bytes) != 8192 {
		t.Errorf("got %d bytes, want 8192", len(sets[0].ROMs[0].Bytes))
	}
}

func TestResolveDuplicateAndPad(t *testing.T) {
	length := 2048
	dup := 4096
	pad := 8192
	raw := `{
		"version": 1,
		"rom_sets": [{"type": "single", "roms": [{"file": "small.bin", "type": "2364", "cs1": "active_low",
			"length": ` + strconv.Itoa(length) + `, "duplicate_to": ` + strconv.Itoa(dup) + `, "pad_to": ` + strconv.Itoa(pad) + `}]}]
	}`
	cfg, err := cartridgeloader.ParseConfig([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src := make([]byte, 2048)
	for i := range src {
		src[i] = 0xAA
	}
	fetcher := memFetcher{"small.bin": src}

	sets, err := cartridgeloader.Resolve(context.Background(), cfg, fetcher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := sets[0].ROMs[0].Bytes
	if len(got) != 8192 {
		t.Fatalf("got %d bytes, want 8192", len(got))
	}
	for i := 0; i < 4096; i++ {
		if got[i] != 0xAA {
			t.Fatalf("byte %d: got %#x, want 0xAA", i, got[i])
		}
	}
	for i := 4096; i < 8192; i++ {
		if got[i] != 0 {
			t.Fatalf("pad byte %d: got %#x, want 0", i, got[i])
		}
	}
}

func TestResolveSizeMismatchFails(t *testing.T) {
	raw := []byte(`{
		"version": 1,
		"rom_sets": [{"type": "single", "roms": [{"file": "kernal.bin", "type": "2364", "cs1": "active_low"}]}]
	}`)
	cfg, err := cartridgeloader.ParseConfig(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fetcher := memFetcher{"kernal.bin": make([]byte, 100)}
	_, err = cartridgeloader.Resolve(context.Background(), cfg, fetcher)
	if err == nil {
		t.Fatalf("expected a size mismatch error")
	}
	if k, ok := errors.Kind(err); !ok || k != errors.InputError {
		t.Errorf("got kind %v, want InputError", k)
	}
}

func TestResolveZipMember(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("kernal.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.Write(make([]byte, 8192)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw := []byte(`{
		"version": 1,
		"rom_sets": [{"type": "single", "roms": [{"file": "archive.zip", "zip_member": "kernal.bin", "type": "2364", "cs1": "active_low"}]}]
	}`)
	cfg, err := cartridgeloader.ParseConfig(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fetcher := memFetcher{"archive.zip": buf.Bytes()}
	sets, err := cartridgeloader.Resolve(context.Background(), cfg, fetcher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets[0].ROMs[0].Bytes) != 8192 {
		t.Errorf("got %d bytes, want 8192", len(sets[0].ROMs[0].Bytes))
	}
}

func TestDefaultFetcherHTTPS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 32))
	}))
	defer srv.Close()

	fetcher := cartridgeloader.DefaultFetcher{Client: srv.Client()}
	data, err := fetcher.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 32 {
		t.Errorf("got %d bytes, want 32", len(data))
	}
}

func TestDefaultFetcherRejectsPlainHTTP(t *testing.T) {
	fetcher := cartridgeloader.DefaultFetcher{}
	_, err := fetcher.Fetch(context.Background(), "http://example.invalid/rom.bin")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if k, ok := errors.Kind(err); !ok || k != errors.SourceError {
		t.Errorf("got kind %v, want SourceError", k)
	}
}

