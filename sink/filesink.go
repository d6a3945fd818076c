// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sink

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cando-sh/cando/cando"
	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// record layout: 4-byte big-endian payload length, 8-byte xxhash64 checksum
// of the payload, then the gob-encoded payload itself.
const recordHeaderSize = 4 + 8

var errTornWrite = errors.New("sink: torn write detected in journal")

// ErrCorrupted is returned by Write once the background watcher has
// observed the journal file change outside of this FileSink's own writes.
var ErrCorrupted = errors.New("sink: journal modified externally")

// FileSink is a crash-safe, checksummed, append-only journal file. Write
// only buffers a change in memory; the file on disk is touched solely by
// Flush (append) and Rewrite (replace), so it never contains anything but
// durably committed records. Clear simply drops the in-memory buffer.
//
// A background fsnotify watcher observes the journal file for
// modifications this FileSink did not itself make (e.g. an operator
// truncating the file while the process is running). When that happens the
// sink marks itself unhealthy and every subsequent Write fails with
// ErrCorrupted until the process is restarted against a known-good file.
type FileSink[GranteeId, ActionId comparable] struct {
	mu      sync.Mutex
	file    *os.File
	size    int64 // durable length of the file on disk
	pending []cando.Change[GranteeId, ActionId]

	unhealthy atomic.Bool
	watcher   *fsnotify.Watcher
	stopWatch chan struct{}
}

// OpenFileSink opens (creating if necessary) the journal file at path.
func OpenFileSink[G, A comparable](path string) (*FileSink[G, A], error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("sink: open journal: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: stat journal: %w", err)
	}

	s := &FileSink[G, A]{
		file:      f,
		size:      info.Size(),
		stopWatch: make(chan struct{}),
	}

	if watcher, err := fsnotify.NewWatcher(); err == nil {
		if err := watcher.Add(path); err == nil {
			s.watcher = watcher
			go s.watchExternalChanges(path)
		} else {
			watcher.Close()
		}
	}

	return s, nil
}

func (s *FileSink[G, A]) watchExternalChanges(path string) {
	for {
		select {
		case <-s.stopWatch:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			info, err := os.Stat(path)
			s.mu.Lock()
			expected := s.size
			s.mu.Unlock()
			if err != nil || info.Size() != expected {
				s.unhealthy.Store(true)
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.unhealthy.Store(true)
		}
	}
}

// Close stops the background watcher and closes the underlying file.
func (s *FileSink[G, A]) Close() error {
	if s.watcher != nil {
		close(s.stopWatch)
		s.watcher.Close()
	}
	return s.file.Close()
}

func encodeChange[G, A comparable](change cando.Change[G, A]) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(change); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeChange[G, A comparable](payload []byte) (cando.Change[G, A], error) {
	var change cando.Change[G, A]
	err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&change)
	return change, err
}

func appendRecord(buf *bytes.Buffer, payload []byte) {
	header := make([]byte, recordHeaderSize)
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	binary.BigEndian.PutUint64(header[4:], xxhash.Sum64(payload))
	buf.Write(header)
	buf.Write(payload)
}

// ReadAll reads every durably flushed record from the start of the file.
// Since Write never touches the file, the file's entire contents are
// always flushed records.
func (s *FileSink[G, A]) ReadAll(_ context.Context) ([]cando.Change[G, A], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("sink: seek journal: %w", err)
	}
	return readRecords[G, A](s.file)
}

// Write buffers change in memory; it is not durable, and not visible to
// ReadAll, until Flush succeeds.
func (s *FileSink[G, A]) Write(_ context.Context, change cando.Change[G, A]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unhealthy.Load() {
		return fmt.Errorf("%w: %w", ErrWrite, ErrCorrupted)
	}

	// Validate encodability now so a bad change is rejected at Write time
	// rather than silently breaking a later Flush.
	if _, err := encodeChange(change); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	s.pending = append(s.pending, change)
	return nil
}

// Flush appends every buffered change to the journal in a single write and
// fsyncs the file, making them durable. The buffer is encoded in full
// before any file I/O happens, so an encode failure never leaves a partial
// record on disk.
func (s *FileSink[G, A]) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, change := range s.pending {
		payload, err := encodeChange(change)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFlush, err)
		}
		appendRecord(&buf, payload)
	}

	if _, err := s.file.Seek(s.size, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}
	if _, err := s.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}

	s.size += int64(buf.Len())
	s.pending = nil
	return nil
}

// Clear discards the in-memory batch without touching the file.
func (s *FileSink[G, A]) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	return nil
}

// Rewrite replaces the entire journal file with changes in one durable
// step, implementing sink.Compactor.
func (s *FileSink[G, A]) Rewrite(_ context.Context, changes []cando.Change[G, A]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	for _, change := range changes {
		payload, err := encodeChange(change)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFlush, err)
		}
		appendRecord(&buf, payload)
	}

	if err := s.file.Truncate(0); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}
	if _, err := s.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}

	s.size = int64(buf.Len())
	s.pending = nil
	return nil
}

func readRecords[G, A comparable](r io.Reader) ([]cando.Change[G, A], error) {
	var out []cando.Change[G, A]
	header := make([]byte, recordHeaderSize)

	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%w: %v", errTornWrite, err)
		}

		length := binary.BigEndian.Uint32(header[:4])
		wantSum := binary.BigEndian.Uint64(header[4:])

		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return out, fmt.Errorf("%w: %v", errTornWrite, err)
		}

		if xxhash.Sum64(payload) != wantSum {
			return out, errTornWrite
		}

		change, err := decodeChange[G, A](payload)
		if err != nil {
			return out, fmt.Errorf("sink: decode journal record: %w", err)
		}
		out = append(out, change)
	}
}
