// Package gormstorage implements the storage.Backend interface on top of GORM
// with internal queues and a background DB writer goroutine. The postgres
// and sqlite backends embed it.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/animscope/internal/cache"
	"github.com/OCAP2/animscope/internal/model"
	"github.com/OCAP2/animscope/internal/model/convert"
	"github.com/OCAP2/animscope/internal/queue"
	"github.com/OCAP2/animscope/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultBatchSize     = 500
)

// Dependencies holds all dependencies for the GORM storage backend.
// A nil DB runs the backend in queue-only mode.
type Dependencies struct {
	DB            *gorm.DB
	RowIDs        *cache.RowIDCache
	Logger        *slog.Logger
	FlushInterval time.Duration
	BatchSize     int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Groups      *queue.Queue[model.AnimationGroup]
	Screenshots *queue.Queue[model.Screenshot]
	Resets      *queue.Queue[model.PageReset]
}

func newQueues() *queues {
	return &queues{
		Groups:      queue.New[model.AnimationGroup](),
		Screenshots: queue.New[model.Screenshot](),
		Resets:      queue.New[model.PageReset](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.RowIDs == nil {
		deps.RowIDs = cache.NewRowIDCache()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	return &Backend{deps: deps}
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		close(b.done)
		return nil
	}

	b.deps.Logger.Info("Migrating schema")
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine and flushes what is left.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	<-b.done
	return b.Flush()
}

// DB returns the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// StartSession inserts the session row synchronously so later rows can
// reference it.
func (b *Backend) StartSession(s *core.Session) error {
	b.deps.RowIDs.Reset()
	if b.deps.DB == nil {
		return nil
	}

	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// EndSession drains the queues and stamps the end time.
func (b *Backend) EndSession(s *core.Session) error {
	if err := b.Flush(); err != nil {
		return err
	}
	if b.deps.DB == nil || s.EndedAt == nil {
		return nil
	}

	err := b.deps.DB.Model(&model.Session{}).
		Where("session_id = ?", s.ID).
		Update("ended_at", *s.EndedAt).Error
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// RecordGroup converts and queues a group with its members.
func (b *Backend) RecordGroup(g *core.GroupRecord) error {
	b.queues.Groups.Push(convert.CoreToGroup(*g))
	return nil
}

// RecordScreenshots converts and queues one row per frame.
func (b *Backend) RecordScreenshots(batch *core.ScreenshotBatch) error {
	if len(batch.Frames) == 0 {
		return nil
	}
	b.queues.Screenshots.Push(convert.CoreToScreenshots(*batch)...)
	return nil
}

// RecordReset converts and queues a reset marker.
func (b *Backend) RecordReset(r *core.ResetRecord) error {
	b.queues.Resets.Push(convert.CoreToReset(*r))
	return nil
}

// QueueLen returns the number of rows waiting for the writer.
func (b *Backend) QueueLen() int {
	if b.queues == nil {
		return 0
	}
	return b.queues.Groups.Len() + b.queues.Screenshots.Len() + b.queues.Resets.Len()
}

// Flush writes every queued row now. Groups go first so screenshots can be
// linked to their group row.
func (b *Backend) Flush() error {
	if b.deps.DB == nil || b.queues == nil {
		return nil
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	db, log, n := b.deps.DB, b.deps.Logger, b.deps.BatchSize

	return errors.Join(
		writeQueue(db, b.queues.Groups, "animation groups", n, log, nil, func(items []model.AnimationGroup) {
			for _, g := range items {
				b.deps.RowIDs.Set(g.GroupID, g.ID)
			}
		}),
		writeQueue(db, b.queues.Screenshots, "screenshots", n, log, func(items []model.Screenshot) {
			for i := range items {
				if id, ok := b.deps.RowIDs.Get(items[i].GroupID); ok {
					items[i].GroupRowID = id
				}
			}
		}, nil),
		writeQueue(db, b.queues.Resets, "page resets", n, log, nil, nil),
	)
}

// writeQueue drains a queue into the database in batches, one transaction
// per batch. A failed batch goes back on the queue and stops the drain.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, batchSize int, log *slog.Logger, prepare func([]T), onSuccess func([]T)) error {
	for !q.Empty() {
		items := q.TakeBatch(batchSize)
		if prepare != nil {
			prepare(items)
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&items).Error
		})
		if err != nil {
			log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
			q.Push(items...)
			return fmt.Errorf("writing %s: %w", name, err)
		}

		if onSuccess != nil {
			onSuccess(items)
		}
	}
	return nil
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Flush(); err != nil {
				continue
			}
			b.deps.Logger.Debug("DB write cycle", "duration", time.Since(start))
		}
	}
}
