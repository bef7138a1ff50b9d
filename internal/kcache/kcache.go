// Package kcache is the on-disk build cache. Every program build leaves a
// record keyed by the digest of device, options and source; the runtime
// consults it to skip builds that are known to fail and the CLI lists it.
package kcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when Record format changes
const schemaVersion uint16 = 1

const recordExt = ".mp"

type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short is the 12 character prefix used in listings.
func (d Digest) Short() string { return d.String()[:12] }

// ParseDigest accepts the hex form printed by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(d) {
		return d, fmt.Errorf("invalid digest %q", s)
	}
	copy(d[:], b)
	return d, nil
}

// Key digests the parts that decide a build outcome. Parts are length
// prefixed so ("ab","c") and ("a","bc") differ.
func Key(parts ...string) Digest {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		_, _ = h.Write([]byte(p))
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Record is one cached build outcome.
type Record struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Key     Digest `msgpack:"-"`
	Driver  string
	Device  string
	Options string
	Entry   string
	// SourceBytes is the length of the built source.
	SourceBytes int
	OK          bool
	Log         string
	Created     time.Time
	Duration    time.Duration
}

// Cache stores records below dir. A nil *Cache is a valid disabled cache.
// Thread-safe for concurrent access.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Open uses dir, creating it when needed.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("kcache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// DefaultDir is $XDG_CACHE_HOME/<app>, falling back to ~/.cache/<app>.
func DefaultDir(app string) (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, app), nil
}

func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "builds", key.String()+recordExt)
}

// Put serializes and atomically writes rec under key.
func (c *Cache) Put(key Digest, rec *Record) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	out := *rec
	out.Schema = schemaVersion
	if err := msgpack.NewEncoder(f).Encode(&out); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get loads the record for key. Records from another schema are misses.
func (c *Cache) Get(key Digest) (*Record, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := readRecord(c.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if rec.Schema != schemaVersion {
		return nil, false, nil
	}
	rec.Key = key
	return rec, true, nil
}

func readRecord(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rec Record
	if err := msgpack.NewDecoder(f).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

// List returns every readable record, newest first. Unreadable files are
// skipped and reported in the error list.
func (c *Cache) List() ([]*Record, []error) {
	if c == nil {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, err := os.ReadDir(filepath.Join(c.dir, "builds"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, []error{err}
	}
	var (
		out  []*Record
		errs []error
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		key, err := ParseDigest(strings.TrimSuffix(name, recordExt))
		if err != nil {
			continue
		}
		rec, err := readRecord(filepath.Join(c.dir, "builds", name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec.Schema != schemaVersion {
			continue
		}
		rec.Key = key
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, errs
}

// DropAll removes every record and returns how many were removed.
func (c *Cache) DropAll() (int, error) {
	if c == nil {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	dir := filepath.Join(c.dir, "builds")
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), recordExt) {
			n++
		}
	}
	old := dir + ".old-" + time.Now().Format("20060102150405.000000000")
	if err := os.Rename(dir, old); err != nil {
		return 0, err
	}
	return n, os.RemoveAll(old)
}
