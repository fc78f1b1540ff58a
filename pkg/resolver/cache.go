package resolver

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/DataDog/zstd"
	"github.com/cespare/xxhash/v2"
)

// cacheMagic/cacheVersion identify the on-disk entry-table format: a single
// zstd frame wrapping one fixed-layout record per cached source file. Unlike
// a generic archive container, the whole table is compressed and decompressed
// in one shot — Save/LoadCache never stream, since a conversion cache for a
// texture tree is at most a few MB of path strings and fingerprints.
const (
	cacheMagic   = uint32(0x50544443) // "PTDC"
	cacheVersion = uint16(1)
)

type cacheEntry struct {
	path     string
	size     int64
	modNanos int64
	digest   uint64
}

// Cache is an in-memory index of prior-run file fingerprints, loaded from and
// flushed back to a zstd-compressed file. It never widens a skip decision
// beyond what overwrite/overwrite_new already allow — a miss always falls
// back to the mtime-only comparison in shouldProcess.
type Cache struct {
	path    string
	entries map[string]cacheEntry
	dirty   bool
}

// LoadCache reads an existing cache file, or returns an empty Cache ready to
// be populated and saved if path doesn't exist yet.
func LoadCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]cacheEntry)}
	if path == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %q: %w", path, err)
	}

	if err := c.unmarshal(raw); err != nil {
		return nil, fmt.Errorf("decode cache %q: %w", path, err)
	}
	return c, nil
}

// Unchanged reports whether source's current size+mtime+content digest match
// the cache's recorded entry and destModTime is at least as new as the last
// recorded run, i.e. the destination can be safely skipped. A cache miss (no
// entry yet) is reported as an error so the caller falls back to mtime-only
// comparison rather than treating "unknown" as "unchanged".
func (c *Cache) Unchanged(source string, destModTime time.Time) (bool, error) {
	info, err := os.Stat(source)
	if err != nil {
		return false, fmt.Errorf("stat %q: %w", source, err)
	}

	entry, ok := c.entries[source]
	if !ok {
		return false, fmt.Errorf("no cache entry for %q", source)
	}
	if entry.size != info.Size() || entry.modNanos != info.ModTime().UnixNano() {
		return false, nil
	}
	if info.ModTime().After(destModTime) {
		return false, nil
	}

	digest, err := digestFile(source)
	if err != nil {
		return false, err
	}
	return digest == entry.digest, nil
}

// Record updates (or inserts) source's fingerprint after a successful
// conversion, ready to be persisted by Save.
func (c *Cache) Record(source string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat %q: %w", source, err)
	}
	digest, err := digestFile(source)
	if err != nil {
		return err
	}
	c.entries[source] = cacheEntry{
		path:     source,
		size:     info.Size(),
		modNanos: info.ModTime().UnixNano(),
		digest:   digest,
	}
	c.dirty = true
	return nil
}

// Save flushes the cache to its configured path if it has unsaved changes, or
// is a no-op when the cache has no path or nothing changed.
func (c *Cache) Save() error {
	if c.path == "" || !c.dirty {
		return nil
	}

	if err := os.WriteFile(c.path, c.marshal(), 0o644); err != nil {
		return fmt.Errorf("write cache %q: %w", c.path, err)
	}
	c.dirty = false
	return nil
}

// digestLength is how many leading and trailing bytes are hashed per file: a
// fixed, cheap-to-read window rather than hashing entire multi-megabyte
// textures, since this is skip-detection and not a security boundary.
const digestLength = 64 * 1024

func digestFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %q for digest: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %q for digest: %w", path, err)
	}

	h := xxhash.New()
	size := info.Size()
	if size <= 2*digestLength {
		if _, err := io.Copy(h, f); err != nil {
			return 0, fmt.Errorf("hash %q: %w", path, err)
		}
		return h.Sum64(), nil
	}

	head := make([]byte, digestLength)
	if _, err := io.ReadFull(f, head); err != nil {
		return 0, fmt.Errorf("read head of %q: %w", path, err)
	}
	h.Write(head)

	tail := make([]byte, digestLength)
	if _, err := f.Seek(-digestLength, io.SeekEnd); err != nil {
		return 0, fmt.Errorf("seek tail of %q: %w", path, err)
	}
	if _, err := io.ReadFull(f, tail); err != nil {
		return 0, fmt.Errorf("read tail of %q: %w", path, err)
	}
	h.Write(tail)

	return h.Sum64(), nil
}

// marshal builds the entry-table body — [pathLen uint32][path][size
// int64][modNanos int64][digest uint64] per entry, length-prefixed so paths
// of any length round-trip without a delimiter collision — then wraps it in
// the on-disk frame: [magic uint32][version uint16][uncompressed length
// uint64][zstd-compressed body].
func (c *Cache) marshal() []byte {
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint32(len(c.entries)))
	for path, e := range c.entries {
		binary.Write(&body, binary.LittleEndian, uint32(len(path)))
		body.WriteString(path)
		binary.Write(&body, binary.LittleEndian, e.size)
		binary.Write(&body, binary.LittleEndian, e.modNanos)
		binary.Write(&body, binary.LittleEndian, e.digest)
	}

	compressed, err := zstd.CompressLevel(nil, body.Bytes(), zstd.BestSpeed)
	if err != nil {
		// A compression failure on an in-memory entry table leaves the
		// uncompressed body as the only usable fallback; unmarshal detects
		// this by comparing decompressed length against the stored length.
		compressed = body.Bytes()
	}

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, cacheMagic)
	binary.Write(&out, binary.LittleEndian, cacheVersion)
	binary.Write(&out, binary.LittleEndian, uint64(body.Len()))
	out.Write(compressed)
	return out.Bytes()
}

func (c *Cache) unmarshal(raw []byte) error {
	r := bytes.NewReader(raw)

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return fmt.Errorf("read cache magic: %w", err)
	}
	if magic != cacheMagic {
		return fmt.Errorf("bad cache magic: 0x%x", magic)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("read cache version: %w", err)
	}
	if version != cacheVersion {
		return fmt.Errorf("unsupported cache version %d", version)
	}
	var bodyLen uint64
	if err := binary.Read(r, binary.LittleEndian, &bodyLen); err != nil {
		return fmt.Errorf("read cache body length: %w", err)
	}

	compressed, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read cache body: %w", err)
	}
	body, err := zstd.Decompress(make([]byte, 0, bodyLen), compressed)
	if err != nil {
		if uint64(len(compressed)) != bodyLen {
			return fmt.Errorf("decompress cache body: %w", err)
		}
		// marshal's fallback: the body was stored uncompressed.
		body = compressed
	}

	return c.unmarshalEntries(body)
}

func (c *Cache) unmarshalEntries(raw []byte) error {
	r := bytes.NewReader(raw)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("read entry count: %w", err)
	}

	c.entries = make(map[string]cacheEntry, count)
	for i := uint32(0); i < count; i++ {
		var pathLen uint32
		if err := binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
			return fmt.Errorf("read path length: %w", err)
		}
		pathBytes := make([]byte, pathLen)
		if _, err := io.ReadFull(r, pathBytes); err != nil {
			return fmt.Errorf("read path: %w", err)
		}

		var e cacheEntry
		e.path = string(pathBytes)
		if err := binary.Read(r, binary.LittleEndian, &e.size); err != nil {
			return fmt.Errorf("read size: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &e.modNanos); err != nil {
			return fmt.Errorf("read modNanos: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &e.digest); err != nil {
			return fmt.Errorf("read digest: %w", err)
		}
		c.entries[e.path] = e
	}
	return nil
}
