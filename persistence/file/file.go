// Package file persists the dormant tier into a single dump file.
//
// Layout: a sequence of frames [len uint32 LE][crc32 uint32 LE][record], optionally gzip-compressed.
// Writes go to a temporary file that is renamed over the dump, so readers never observe a
// half-written dump.
package file

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Borislavv/go-crow-cache/model"
	"github.com/Borislavv/go-crow-cache/persistence"
	"github.com/rs/zerolog"
)

const (
	dumpExt     = ".dump"
	gzipExt     = ".gz"
	tmpExt      = ".tmp"
	bufSize     = 256 * 1024
	maxFrameLen = 64 << 20
)

type Option func(*options)

type options struct {
	gzip   bool
	crc    bool
	codec  persistence.Codec
	logger zerolog.Logger
}

// WithGzip enables gzip compression of the dump.
func WithGzip(enabled bool) Option { return func(o *options) { o.gzip = enabled } }

// WithCrc32 enables per-record checksums.
func WithCrc32(enabled bool) Option { return func(o *options) { o.crc = enabled } }

// WithCodec overrides the record codec (gob by default).
func WithCodec(c persistence.Codec) Option { return func(o *options) { o.codec = c } }

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = l } }

type Store[V any] struct {
	mu   sync.Mutex
	dir  string
	path string
	opts options
}

func New[V any](dir, name string, opts ...Option) *Store[V] {
	o := options{codec: persistence.GobCodec{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	file := name + dumpExt
	if o.gzip {
		file += gzipExt
	}
	return &Store[V]{
		dir:  dir,
		path: filepath.Join(dir, file),
		opts: o,
	}
}

// Path returns the dump location.
func (s *Store[V]) Path() string { return s.path }

func (s *Store[V]) ReadAll(ctx context.Context) (model.Mapping[V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(model.Mapping[V]), nil
	} else if err != nil {
		return nil, fmt.Errorf("open dump %s: %w", s.path, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if s.opts.gzip {
		gzr, gzErr := gzip.NewReader(f)
		if errors.Is(gzErr, io.EOF) {
			// zero-length file: nothing was ever flushed into it
			return make(model.Mapping[V]), nil
		} else if gzErr != nil {
			return nil, fmt.Errorf("%w: gzip header of %s: %v", persistence.ErrCorrupted, s.path, gzErr)
		}
		defer gzr.Close()
		reader = gzr
	}

	out := make(model.Mapping[V])
	br := bufio.NewReaderSize(reader, bufSize)
	var meta [8]byte
	for {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		if _, err = io.ReadFull(br, meta[:]); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: read frame header: %v", persistence.ErrCorrupted, err)
		}

		size := binary.LittleEndian.Uint32(meta[0:4])
		expected := binary.LittleEndian.Uint32(meta[4:8])
		if size > maxFrameLen {
			return nil, fmt.Errorf("%w: frame of %d bytes", persistence.ErrCorrupted, size)
		}
		buf := make([]byte, size)
		if _, err = io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: read frame: %v", persistence.ErrCorrupted, err)
		}
		if s.opts.crc && crc32.ChecksumIEEE(buf) != expected {
			return nil, fmt.Errorf("%w: crc mismatch", persistence.ErrCorrupted)
		}

		var rec persistence.Record[V]
		if err = s.opts.codec.Unmarshal(buf, &rec); err != nil {
			return nil, fmt.Errorf("%w: decode record: %v", persistence.ErrCorrupted, err)
		}
		entry := rec.Entry
		out[rec.Key] = &entry
	}

	s.opts.logger.Debug().
		Int("restored", len(out)).
		Str("elapsed", time.Since(start).String()).
		Msg("dormant dump read")

	return out, nil
}

func (s *Store[V]) WriteAll(ctx context.Context, m model.Mapping[V]) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err = os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}

	tmp := s.path + tmpExt
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	var (
		writer io.Writer = f
		gw     *gzip.Writer
	)
	if s.opts.gzip {
		gw = gzip.NewWriter(f)
		writer = gw
	}
	bw := bufio.NewWriterSize(writer, bufSize)

	var written int
	for key, entry := range m {
		if err = ctx.Err(); err != nil {
			return err
		}
		if entry == nil {
			continue
		}

		data, encErr := s.opts.codec.Marshal(persistence.Record[V]{Key: key, Entry: *entry})
		if encErr != nil {
			return fmt.Errorf("encode record %q: %w", key, encErr)
		}

		var crc uint32
		if s.opts.crc {
			crc = crc32.ChecksumIEEE(data)
		}
		var meta [8]byte
		binary.LittleEndian.PutUint32(meta[0:4], uint32(len(data)))
		binary.LittleEndian.PutUint32(meta[4:8], crc)
		if _, err = bw.Write(meta[:]); err != nil {
			return fmt.Errorf("write frame header: %w", err)
		}
		if _, err = bw.Write(data); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		written++
	}

	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush dump: %w", err)
	}
	if gw != nil {
		if err = gw.Close(); err != nil {
			return fmt.Errorf("close gzip: %w", err)
		}
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	s.opts.logger.Debug().
		Int("written", written).
		Str("elapsed", time.Since(start).String()).
		Msg("dormant dump written")

	return nil
}

func (s *Store[V]) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove dump: %w", err)
	}
	return nil
}

func (s *Store[V]) Exists(context.Context) bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *Store[V]) IsAccessible(ctx context.Context) bool {
	if !s.Exists(ctx) {
		return false
	}
	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func (s *Store[V]) EnsureExists(context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	return nil
}
