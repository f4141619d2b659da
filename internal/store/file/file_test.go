package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/staywatch/internal/state"
)

func TestBackendReadMissing(t *testing.T) {
	b := New(filepath.Join(t.TempDir(), "datastore.json"))
	_, err := b.Read(context.Background())
	if !errors.Is(err, state.ErrNotExist) {
		t.Errorf("Read() error = %v, want state.ErrNotExist", err)
	}
}

func TestBackendWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "datastore.json")
	b := New(path)

	if err := b.Write(context.Background(), []byte(`{"a":{}}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := b.Write(context.Background(), []byte(`{"b":{}}`)); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	data, err := b.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != `{"b":{}}` {
		t.Errorf("Read() = %s, want the last write", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only the state file (no temp leftovers)", names)
	}
}

func TestBackendWriteCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datastore.json")
	b := New(path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Write(ctx, []byte(`{}`)); err == nil {
		t.Fatal("Write() with cancelled context should fail")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("state file should not exist after a cancelled write")
	}
}

func TestStoreOverFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datastore.json")
	ctx := context.Background()
	log := newNopLogger()

	st, err := state.Open(ctx, New(path), log)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := st.Save(ctx, "Hotels in Rovinj", sampleAds()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened, err := state.Open(ctx, New(path), log)
	if err != nil {
		t.Fatalf("Open() after save error = %v", err)
	}
	snap := reopened.Load("Hotels in Rovinj")
	if len(snap.Ads) != 2 || snap.Ads["id1"].Title != "title1" || snap.Ads["id2"].Title != "title2" {
		t.Errorf("Load() after reopen = %+v", snap.Ads)
	}
}

func TestStoreOverFileCorruptIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datastore.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	_, err := state.Open(context.Background(), New(path), newNopLogger())
	if err == nil {
		t.Fatal("Open() with corrupt document should fail")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Error("corrupt document must be left untouched")
	}
}
