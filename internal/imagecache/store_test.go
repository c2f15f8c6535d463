package imagecache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "static")
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected storage directory to be created: %v", err)
	}

	ctx := context.Background()
	if ok, err := s.Has(ctx, "cat"); err != nil || ok {
		t.Fatalf("Has(cat)=%v,%v want=false,nil", ok, err)
	}
	if _, err := s.Get(ctx, "cat"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(cat) err=%v want=ErrNotFound", err)
	}

	body := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><circle r="4"/></svg>`)
	if err := s.Put(ctx, "cat", body); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, "cat.svg"))
	if err != nil {
		t.Fatalf("expected cat.svg on disk: %v", err)
	}
	if string(onDisk) != string(body) {
		t.Fatalf("on-disk body=%q want=%q", onDisk, body)
	}

	got, err := s.Get(ctx, "cat")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("Get body=%q want=%q", got, body)
	}
	if ok, err := s.Has(ctx, "cat"); err != nil || !ok {
		t.Fatalf("Has(cat)=%v,%v want=true,nil", ok, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only cat.svg in directory, got %d entries", len(entries))
	}
}

func TestFileStoreExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dog.svg"), []byte("<svg/>"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	got, err := s.Get(context.Background(), "dog")
	if err != nil || string(got) != "<svg/>" {
		t.Fatalf("Get(dog)=%q,%v", got, err)
	}
}

func TestNewFileStoreRequiresDir(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a")
	}
	c.Put("c", []byte("3"))

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to survive")
	}
	if c.Len() != 2 {
		t.Fatalf("Len()=%d want=2", c.Len())
	}
}

func TestMemoryCacheDisabled(t *testing.T) {
	c := NewMemoryCache(0)
	c.Put("a", []byte("1"))
	if _, ok := c.Get("a"); ok {
		t.Fatal("disabled cache should never hit")
	}
}

type countingStore struct {
	Store
	gets int
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets++
	return s.Store.Get(ctx, key)
}

func TestLayeredStoreServesFromMemory(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	base := &countingStore{Store: fs}
	s := NewLayeredStore(NewMemoryCache(8), base, nil)
	ctx := context.Background()

	if err := s.Put(ctx, "cat", []byte("<svg/>")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := s.Get(ctx, "cat")
		if err != nil || string(got) != "<svg/>" {
			t.Fatalf("Get=%q,%v", got, err)
		}
	}
	if base.gets != 0 {
		t.Fatalf("base gets=%d want=0", base.gets)
	}
	if ok, err := s.Has(ctx, "cat"); err != nil || !ok {
		t.Fatalf("Has=%v,%v", ok, err)
	}
	if _, err := s.Get(ctx, "dog"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(dog) err=%v want=ErrNotFound", err)
	}
}

func TestInstrumentedStoreCountsLookups(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	stats := NewStats()
	s := NewInstrumentedStore(fs, "store", stats)
	ctx := context.Background()

	_, _ = s.Get(ctx, "cat")
	_, _ = s.Has(ctx, "cat")
	_ = s.Put(ctx, "cat", []byte("<svg/>"))
	_, _ = s.Get(ctx, "cat")

	hits, misses := stats.Snapshot()
	if hits != 1 || misses != 2 {
		t.Fatalf("hits=%d misses=%d want=1,2", hits, misses)
	}
}

func TestOpenFileStoreWithMemoryLayer(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	s, closeFn, err := Open(Options{Mode: "fs", Dir: dir, MemoryCacheSize: 4}, NewStats())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer closeFn()

	if _, ok := s.(*LayeredStore); !ok {
		t.Fatalf("expected *LayeredStore, got %T", s)
	}
	if err := s.Put(context.Background(), "cat", []byte("<svg/>")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cat.svg")); err != nil {
		t.Fatalf("expected file write-through: %v", err)
	}
}

func TestOpenCountsMemoryHits(t *testing.T) {
	stats := NewStats()
	s, closeFn, err := Open(Options{Mode: "fs", Dir: t.TempDir(), MemoryCacheSize: 4}, stats)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer closeFn()
	ctx := context.Background()

	if err := s.Put(ctx, "cat", []byte("<svg/>")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if ok, err := s.Has(ctx, "cat"); err != nil || !ok {
		t.Fatalf("Has(cat)=%v,%v want=true,nil", ok, err)
	}
	if _, err := s.Get(ctx, "cat"); err != nil {
		t.Fatalf("Get(cat) error: %v", err)
	}
	if ok, err := s.Has(ctx, "dog"); err != nil || ok {
		t.Fatalf("Has(dog)=%v,%v want=false,nil", ok, err)
	}

	hits, misses := stats.Snapshot()
	if hits != 2 || misses != 1 {
		t.Fatalf("hits=%d misses=%d want=2,1", hits, misses)
	}
}

func TestOpenRejectsUnknownMode(t *testing.T) {
	if _, _, err := Open(Options{Mode: "s3"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), "", 0, "")
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if ok, err := s.Has(ctx, "cat"); err != nil || ok {
		t.Fatalf("Has(cat)=%v,%v want=false,nil", ok, err)
	}
	if _, err := s.Get(ctx, "cat"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(cat) err=%v want=ErrNotFound", err)
	}
	if err := s.Put(ctx, "cat", []byte("<svg/>")); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	raw, err := mr.Get("svgcache:cat.svg")
	if err != nil {
		t.Fatalf("raw key svgcache:cat.svg: %v", err)
	}
	if raw != "<svg/>" {
		t.Fatalf("raw value=%q want=<svg/>", raw)
	}
	if ttl := mr.TTL("svgcache:cat.svg"); ttl != 0 {
		t.Fatalf("ttl=%v want=0", ttl)
	}

	got, err := s.Get(ctx, "cat")
	if err != nil || string(got) != "<svg/>" {
		t.Fatalf("Get=%q,%v want=<svg/>", got, err)
	}
	if ok, err := s.Has(ctx, "cat"); err != nil || !ok {
		t.Fatalf("Has(cat)=%v,%v want=true,nil", ok, err)
	}
}

func TestRedisStoreCustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), "", 0, "img:")
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	defer s.Close()

	if err := s.Put(context.Background(), "dog", []byte("<svg/>")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if !mr.Exists("img:dog.svg") {
		t.Fatalf("keys=%v want img:dog.svg", mr.Keys())
	}
}

func TestOpenRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, closeFn, err := Open(Options{Mode: "redis", RedisAddr: mr.Addr(), RedisPrefix: "svgcache:"}, NewStats())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer closeFn()

	if err := store.Put(context.Background(), "cat", []byte("<svg/>")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if !mr.Exists("svgcache:cat.svg") {
		t.Fatalf("keys=%v want svgcache:cat.svg", mr.Keys())
	}
}

func TestNewRedisStoreRequiresAddr(t *testing.T) {
	if _, err := NewRedisStore("  ", "", 0, ""); err == nil {
		t.Fatal("expected error")
	}
}
