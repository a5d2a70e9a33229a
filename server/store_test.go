package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "database.json"))
	snap, err := store.Load()
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if snap.NextID != 1 || len(snap.Units) != 0 || snap.Units == nil {
		t.Fatalf("unexpected empty snapshot %+v", snap)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "database.json")
	store := NewFileStore(path)
	in := Snapshot{
		NextID:  4,
		Units:   map[UnitID]Unit{3: {ID: 3, X: 42.5, Y: 17, Angle: -1.25, Online: true}},
		Objects: DefaultObjects(),
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.NextID != 4 || out.Units[3] != in.Units[3] {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if len(out.Objects) != 1 || out.Objects[0].Items[0].Name != "Wood" {
		t.Fatalf("objects not persisted: %+v", out.Objects)
	}
}

func TestFileStoreCorruptFileFallsBackEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, err := NewFileStore(path).Load()
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if snap.NextID != 1 || len(snap.Units) != 0 {
		t.Fatalf("expected empty fallback, got %+v", snap)
	}
}

func TestFileStoreReadsReferenceLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	raw := `{"nextID":3,"units":{"1":{"ID":1,"x":11,"y":11,"angle":0,"color":null,"online":true},"2":{"x":0,"y":0,"angle":0,"online":false}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.NextID != 3 || len(snap.Units) != 2 || snap.Units[1].X != 11 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
