// Package storesink implements domain.StoreSink as an append-only,
// segment-rotated write-ahead log, grounded on the teacher's
// internal/recorder (writer.go's segment-file rotation plus CRC32
// Castagnoli-checksummed records). The teacher recorded raw market-data
// frames for replay; here every record is a placement/cancel intent that
// must durably precede the matching engine acting on it, but the on-disk
// shape — length-prefixed, checksummed records inside rotating segment
// files under a queue-bounded writer goroutine — carries over unchanged.
package storesink

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// Config controls segment sizing and the write queue's backpressure.
type Config struct {
	Dir            string
	SegmentMaxSize int64 // bytes; rotate once a segment would exceed this
	QueueCapacity  int
	Enabled        bool // false ⇒ every Store() returns StoreFeatureOff
}

// DefaultConfig mirrors the teacher's recorder defaults: 128MiB segments,
// a few thousand records of queue depth.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, SegmentMaxSize: 128 << 20, QueueCapacity: 4096, Enabled: true}
}

// record is the sonic-encoded envelope written to a segment after a 12-byte
// header holding its length, a CRC32C checksum of the encoded record, and
// the write time in unix seconds.
type record struct {
	Kind    domain.QueueEventKind `json:"kind"`
	OrderID domain.OrderID        `json:"orderId,omitempty"`
	Payload []byte                `json:"payload"`
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type writeJob struct {
	event domain.QueueEvent
	reply chan domain.StoreOutcome
}

// Sink is the WAL-backed StoreSink.
type Sink struct {
	cfg Config

	mu         sync.Mutex
	file       *os.File
	writer     *bufio.Writer
	segmentLen int64
	segmentIdx int

	queue chan writeJob
	done  chan struct{}
}

// Open creates the WAL directory (if needed), opens (or starts) the
// current segment, and launches the writer goroutine.
func Open(cfg Config) (*Sink, error) {
	if !cfg.Enabled {
		return &Sink{cfg: cfg, done: make(chan struct{})}, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("storesink: create dir: %w", err)
	}
	s := &Sink{
		cfg:   cfg,
		queue: make(chan writeJob, cfg.QueueCapacity),
		done:  make(chan struct{}),
	}
	if err := s.openSegment(); err != nil {
		return nil, err
	}
	go s.run()
	return s, nil
}

// Store implements domain.StoreSink. It enqueues the event for the writer
// goroutine and blocks until persisted, or until ctx is cancelled.
func (s *Sink) Store(ctx context.Context, event domain.QueueEvent) domain.StoreOutcome {
	if !s.cfg.Enabled {
		return domain.StoreOutcome{Kind: domain.StoreFeatureOff}
	}
	reply := make(chan domain.StoreOutcome, 1)
	select {
	case s.queue <- writeJob{event: event, reply: reply}:
	case <-ctx.Done():
		return domain.StoreOutcome{Kind: domain.StoreFailed, Err: ctx.Err()}
	}
	select {
	case outcome := <-reply:
		return outcome
	case <-ctx.Done():
		return domain.StoreOutcome{Kind: domain.StoreFailed, Err: ctx.Err()}
	}
}

// Close stops the writer goroutine and flushes the current segment.
func (s *Sink) Close() error {
	if !s.cfg.Enabled {
		return nil
	}
	close(s.queue)
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		_ = s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Sink) run() {
	defer close(s.done)
	for job := range s.queue {
		outcome := s.append(job.event)
		job.reply <- outcome
	}
}

func (s *Sink) append(event domain.QueueEvent) domain.StoreOutcome {
	payload, err := sonic.Marshal(event)
	if err != nil {
		return domain.StoreOutcome{Kind: domain.StoreFailed, Err: fmt.Errorf("storesink: encode: %w", err)}
	}
	rec := record{Kind: event.Kind, OrderID: event.OrderID, Payload: payload}
	body, err := sonic.Marshal(rec)
	if err != nil {
		return domain.StoreOutcome{Kind: domain.StoreFailed, Err: fmt.Errorf("storesink: encode record: %w", err)}
	}
	checksum := crc32.Checksum(body, castagnoli)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.segmentLen+int64(len(body))+12 > s.cfg.SegmentMaxSize {
		if err := s.rotateLocked(); err != nil {
			return domain.StoreOutcome{Kind: domain.StoreFailed, Err: err}
		}
	}

	var header [12]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(header[4:8], checksum)
	binary.BigEndian.PutUint32(header[8:12], uint32(time.Now().Unix()))

	if _, err := s.writer.Write(header[:]); err != nil {
		return domain.StoreOutcome{Kind: domain.StoreFailed, Err: err}
	}
	if _, err := s.writer.Write(body); err != nil {
		return domain.StoreOutcome{Kind: domain.StoreFailed, Err: err}
	}
	if err := s.writer.Flush(); err != nil {
		return domain.StoreOutcome{Kind: domain.StoreFailed, Err: err}
	}
	s.segmentLen += int64(len(body)) + 12
	return domain.StoreOutcome{Kind: domain.StorePersisted}
}

func (s *Sink) openSegment() error {
	path := filepath.Join(s.cfg.Dir, fmt.Sprintf("segment-%05d.wal", s.segmentIdx))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("storesink: open segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.file = f
	s.writer = bufio.NewWriter(f)
	s.segmentLen = info.Size()
	return nil
}

func (s *Sink) rotateLocked() error {
	if s.writer != nil {
		_ = s.writer.Flush()
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	s.segmentIdx++
	logs.Infof("storesink: rotating to segment %d", s.segmentIdx)
	return s.openSegment()
}
