// Package recorder keeps a sqlite log of everything the bridge commanded,
// one run per process, for offline review of a drive.
package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	loop "dbw-bridge/dbw_node/control_loop"
	"dbw-bridge/utils"
)

const (
	DefaultQueueSize = 1024
	maxBatch         = 128
)

var ErrClosed = errors.New("recorder closed")

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		stopped_at INTEGER,
		dropped INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS actuation (
		run_id TEXT NOT NULL,
		ts_ns INTEGER NOT NULL,
		throttle DOUBLE,
		throttle_type INTEGER,
		brake DOUBLE,
		brake_type INTEGER,
		steering DOUBLE,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS cte (
		run_id TEXT NOT NULL,
		ts_ns INTEGER NOT NULL,
		cte DOUBLE,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE INDEX IF NOT EXISTS actuation_run ON actuation(run_id, ts_ns);
	CREATE INDEX IF NOT EXISTS cte_run ON cte(run_id, ts_ns);
`

type record struct {
	at        time.Time
	actuation *loop.Actuation
	cte       float64
}

// Recorder is a loop.Publisher that writes to sqlite from a background
// goroutine. Publishing never waits on disk: when the queue is full the
// record is dropped and counted.
type Recorder struct {
	db    *sql.DB
	runID string
	log   *utils.Logger
	now   func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan record
	done   chan struct{}

	written atomic.Uint64
	dropped atomic.Uint64
}

func Open(path string, queueSize int, log *utils.Logger) (*Recorder, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	r := &Recorder{
		db:    db,
		runID: uuid.New().String(),
		log:   log,
		now:   time.Now,
		queue: make(chan record, queueSize),
		done:  make(chan struct{}),
	}
	if _, err := db.Exec("INSERT INTO runs (run_id, started_at) VALUES (?, ?)", r.runID, r.now().UnixNano()); err != nil {
		db.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}

	go r.writer()
	log.Info("Recording run %s to %s", r.runID, path)
	return r, nil
}

func (r *Recorder) RunID() string { return r.runID }

// Dropped is the number of records lost to a full queue or a failed write.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Written is the number of records committed so far.
func (r *Recorder) Written() uint64 { return r.written.Load() }

func (r *Recorder) PublishActuation(_ context.Context, a loop.Actuation) error {
	return r.enqueue(record{at: r.now(), actuation: &a})
}

func (r *Recorder) PublishCTE(_ context.Context, cte float64) error {
	return r.enqueue(record{at: r.now(), cte: cte})
}

func (r *Recorder) enqueue(rec record) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.queue <- rec:
	default:
		if r.dropped.Add(1) == 1 {
			r.log.Warn("Recorder queue full, dropping records")
		}
	}
	return nil
}

func (r *Recorder) writer() {
	defer close(r.done)

	batch := make([]record, 0, maxBatch)
	for rec := range r.queue {
		batch = append(batch[:0], rec)
	fill:
		for len(batch) < maxBatch {
			select {
			case more, ok := <-r.queue:
				if !ok {
					break fill
				}
				batch = append(batch, more)
			default:
				break fill
			}
		}
		if err := r.flush(batch); err != nil {
			r.dropped.Add(uint64(len(batch)))
			r.log.Error("Recorder write of %d records failed: %v", len(batch), err)
			continue
		}
		r.written.Add(uint64(len(batch)))
	}
}

func (r *Recorder) flush(batch []record) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range batch {
		if rec.actuation != nil {
			a := rec.actuation
			_, err = tx.Exec(
				"INSERT INTO actuation (run_id, ts_ns, throttle, throttle_type, brake, brake_type, steering) VALUES (?, ?, ?, ?, ?, ?, ?)",
				r.runID, rec.at.UnixNano(),
				a.Throttle.PedalCmd, int(a.Throttle.PedalCmdType),
				a.Brake.PedalCmd, int(a.Brake.PedalCmdType),
				a.Steering.SteeringWheelAngleCmd,
			)
		} else {
			_, err = tx.Exec("INSERT INTO cte (run_id, ts_ns, cte) VALUES (?, ?, ?)", r.runID, rec.at.UnixNano(), rec.cte)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close stops accepting records, writes what is queued, stamps the run and
// closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done

	_, err := r.db.Exec("UPDATE runs SET stopped_at = ?, dropped = ? WHERE run_id = ?",
		r.now().UnixNano(), int64(r.dropped.Load()), r.runID)
	if err != nil {
		err = fmt.Errorf("stamp run: %w", err)
	}
	r.log.Info("Run %s closed: %d records written, %d dropped", r.runID, r.written.Load(), r.dropped.Load())
	return errors.Join(err, r.db.Close())
}
