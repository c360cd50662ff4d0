package seogate

import (
	"bytes"
	"encoding/gob"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// CachedPage is a pre-rendered document as stored in the page cache. The
// gateway reads pages and upserts them after live renders; it never deletes
// them (capacity eviction is internal to the store).
type CachedPage struct {
	Path         string
	HTML         []byte
	StoredAt     int64 // unix seconds
	ExpiresAt    int64 // unix seconds
	SizeBytes    int64
	Title        string
	Description  string
	CanonicalURL string

	// RenderedBy indicates what produced this entry.
	// Expected values: "live" | "sitemap".
	RenderedBy string
}

// Fresh reports whether the page has not yet expired. The store itself never
// filters on freshness; callers decide whether stale content is acceptable.
func (p CachedPage) Fresh(now int64) bool {
	return now < p.ExpiresAt
}

type pageMeta struct {
	Size       int64
	LastAccess int64
}

type storeOp struct {
	putKey string
	putEnt *CachedPage
	delKey string
}

// PageStore is a LevelDB-backed path -> CachedPage store. Writes flow through
// a single writer goroutine; reads go straight to the database. Any store
// failure on read collapses to "not found" -- callers cannot distinguish a
// miss from an outage, which keeps the fallback decision uniform.
type PageStore struct {
	maxBytes int64

	db *leveldb.DB

	mu        sync.Mutex
	index     map[string]pageMeta
	totalSize int64

	ops  chan storeOp
	done chan struct{}
}

func openPageStore(path string, maxBytes int64) (*PageStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	s := &PageStore{
		maxBytes: maxBytes,
		db:       db,
		index:    map[string]pageMeta{},
		ops:      make(chan storeOp, 1024),
		done:     make(chan struct{}),
	}
	if err := s.loadIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	go s.writerLoop()
	return s, nil
}

func (s *PageStore) close() {
	close(s.ops)
	<-s.done
	_ = s.db.Close()
}

func (s *PageStore) loadIndex() error {
	it := s.db.NewIterator(util.BytesPrefix([]byte("m:")), nil)
	defer it.Release()

	var total int64
	idx := map[string]pageMeta{}
	for it.Next() {
		key := string(bytes.TrimPrefix(it.Key(), []byte("m:")))
		var meta pageMeta
		if err := decodeGob(it.Value(), &meta); err != nil {
			continue
		}
		idx[key] = meta
		total += meta.Size
	}
	if err := it.Error(); err != nil {
		return err
	}
	s.mu.Lock()
	s.index = idx
	s.totalSize = total
	s.mu.Unlock()
	return nil
}

// Get returns the page for key regardless of freshness. The second return is
// false for both not-found and any underlying store error.
func (s *PageStore) Get(key string) (CachedPage, bool) {
	b, err := s.db.Get([]byte("p:"+key), nil)
	if err != nil {
		return CachedPage{}, false
	}
	var page CachedPage
	if err := decodeGob(b, &page); err != nil {
		return CachedPage{}, false
	}
	now := time.Now().Unix()
	s.mu.Lock()
	meta, exists := s.index[key]
	if exists {
		meta.LastAccess = now
		s.index[key] = meta
	}
	s.mu.Unlock()
	if exists {
		s.ops <- storeOp{putKey: key, putEnt: nil} // meta touch
	}
	return page, true
}

// Put upserts synchronously. Last write wins.
func (s *PageStore) Put(key string, page CachedPage) {
	s.applyPutOrTouch(key, &page)
}

// PutAsync hands the upsert to the writer goroutine.
func (s *PageStore) PutAsync(key string, page CachedPage) {
	clone := page
	s.ops <- storeOp{putKey: key, putEnt: &clone}
}

func (s *PageStore) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSize
}

func (s *PageStore) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func (s *PageStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.index))
	for k := range s.index {
		out = append(out, k)
	}
	return out
}

func (s *PageStore) writerLoop() {
	defer close(s.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for op := range s.ops {
		if op.delKey != "" {
			s.applyDelete(op.delKey)
			continue
		}
		if op.putKey != "" {
			s.applyPutOrTouch(op.putKey, op.putEnt)
		}
	}
}

func (s *PageStore) applyPutOrTouch(key string, page *CachedPage) {
	now := time.Now().Unix()

	s.mu.Lock()
	meta := s.index[key]
	s.mu.Unlock()

	batch := new(leveldb.Batch)

	if page != nil {
		b, err := encodeGob(*page)
		if err != nil {
			return
		}
		size := int64(len(b))

		s.mu.Lock()
		old := s.index[key]
		if old.Size > 0 {
			s.totalSize -= old.Size
		}
		meta.Size = size
		meta.LastAccess = now
		s.index[key] = meta
		s.totalSize += size
		total := s.totalSize
		max := s.maxBytes
		s.mu.Unlock()

		batch.Put([]byte("p:"+key), b)
		mb, _ := encodeGob(meta)
		batch.Put([]byte("m:"+key), mb)
		_ = s.db.Write(batch, nil)

		if max > 0 && total > max {
			s.evictSome()
		}
		return
	}

	// touch only
	if meta.Size == 0 {
		return
	}
	meta.LastAccess = now
	s.mu.Lock()
	s.index[key] = meta
	s.mu.Unlock()
	mb, _ := encodeGob(meta)
	batch.Put([]byte("m:"+key), mb)
	_ = s.db.Write(batch, nil)
}

func (s *PageStore) applyDelete(key string) {
	batch := new(leveldb.Batch)
	batch.Delete([]byte("p:" + key))
	batch.Delete([]byte("m:" + key))
	_ = s.db.Write(batch, nil)

	s.mu.Lock()
	if meta, ok := s.index[key]; ok {
		s.totalSize -= meta.Size
		delete(s.index, key)
	}
	s.mu.Unlock()
}

// evictSome drops the least-recently-accessed 10% of entries when the store
// is over its byte cap.
func (s *PageStore) evictSome() {
	s.mu.Lock()
	items := make([]struct {
		key string
		m   pageMeta
	}, 0, len(s.index))
	for k, m := range s.index {
		items = append(items, struct {
			key string
			m   pageMeta
		}{k, m})
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].m.LastAccess < items[j].m.LastAccess
	})

	n := len(items) / 10
	if n < 1 {
		n = 1
	}

	for i := 0; i < n && i < len(items); i++ {
		s.applyDelete(items[i].key)
	}
}

// ---- encoding ----

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	dec := gob.NewDecoder(bytes.NewReader(b))
	return dec.Decode(v)
}
