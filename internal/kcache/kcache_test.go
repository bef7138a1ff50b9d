package kcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKeyIsLengthPrefixed(t *testing.T) {
	if Key("ab", "c") == Key("a", "bc") {
		t.Fatal("part boundaries do not affect the key")
	}
	if Key("x") != Key("x") {
		t.Fatal("key is not deterministic")
	}
	d, err := ParseDigest(Key("x").String())
	if err != nil || d != Key("x") {
		t.Fatalf("ParseDigest round trip: %v", err)
	}
	if _, err := ParseDigest("zz"); err == nil {
		t.Fatal("ParseDigest accepted garbage")
	}
}

func TestPutGetList(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().Round(time.Second)
	older := Key("old")
	newer := Key("new")
	if err := c.Put(older, &Record{Driver: "host", Entry: "spark_main", OK: true, Created: now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(newer, &Record{Driver: "host", OK: false, Log: "<source>:1:1: error: boom\n", Created: now}); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := c.Get(newer)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.OK || rec.Log != "<source>:1:1: error: boom\n" || rec.Key != newer || !rec.Created.Equal(now) {
		t.Fatalf("record mismatch: %+v", rec)
	}
	if _, ok, _ := c.Get(Key("missing")); ok {
		t.Fatal("hit for a key never written")
	}

	// Stray files next to the records are ignored.
	if err := os.WriteFile(filepath.Join(c.Dir(), "builds", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	list, errs := c.List()
	if len(errs) != 0 {
		t.Fatalf("List errors: %v", errs)
	}
	if len(list) != 2 || list[0].Key != newer || list[1].Key != older {
		t.Fatalf("List order wrong: %v", list)
	}

	n, err := c.DropAll()
	if err != nil || n != 2 {
		t.Fatalf("DropAll = %d, %v", n, err)
	}
	if list, _ := c.List(); len(list) != 0 {
		t.Fatalf("records survived DropAll: %d", len(list))
	}
}

func TestCorruptRecordIsReported(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Key("bad")
	if err := os.MkdirAll(filepath.Join(c.Dir(), "builds"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.pathFor(key), []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Get(key); err == nil {
		t.Fatal("Get decoded a corrupt record")
	}
	if _, errs := c.List(); len(errs) != 1 {
		t.Fatalf("List errs = %v, want one", errs)
	}
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *Cache
	if err := c.Put(Key("k"), &Record{}); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(Key("k")); ok || err != nil {
		t.Fatalf("nil cache Get = %v, %v", ok, err)
	}
	if n, err := c.DropAll(); n != 0 || err != nil {
		t.Fatalf("nil cache DropAll = %d, %v", n, err)
	}
}

func TestDefaultDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := DefaultDir("spark")
	if err != nil || dir != filepath.Join("/tmp/xdg", "spark") {
		t.Fatalf("DefaultDir = %q, %v", dir, err)
	}
}
