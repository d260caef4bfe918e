package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/townsquare/media_server/internal/journal"
	"github.com/townsquare/media_server/internal/metrics"
	"github.com/townsquare/media_server/internal/storage"
)

const (
	defaultQueueSize = 256
	defaultTimeout   = 30 * time.Second
)

// Queue copies files toward their canonical location in the background.
// Enqueue never blocks a request: when the queue is full the task is
// dropped, since the next resolution of the same file will enqueue it
// again.
type Queue struct {
	object  storage.Backend
	fs      storage.Backend
	journal journal.Repository
	timeout time.Duration

	tasks chan Task
	done  chan struct{}

	mu       sync.Mutex
	inflight map[string]bool
}

func NewQueue(object, fs storage.Backend, repo journal.Repository, config *Config) *Queue {
	size := config.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Queue{
		object:   object,
		fs:       fs,
		journal:  repo,
		timeout:  timeout,
		tasks:    make(chan Task, size),
		done:     make(chan struct{}),
		inflight: make(map[string]bool),
	}
}

// Enqueue offers a task to the queue. It reports false when the task was
// dropped or the same file is already queued.
func (q *Queue) Enqueue(task Task) bool {
	name := task.Key.String()

	q.mu.Lock()
	if q.inflight[name] {
		q.mu.Unlock()
		return false
	}
	q.inflight[name] = true
	q.mu.Unlock()

	select {
	case q.tasks <- task:
		metrics.MirrorEnqueuedTotal.Inc()
		return true
	default:
		q.clear(name)
		metrics.MirrorDroppedTotal.Inc()
		log.Warn().Str("file", name).Msg("[MIRROR] Queue full, dropping mirror task")
		return false
	}
}

func (q *Queue) Run() {
	for {
		select {
		case task := <-q.tasks:
			q.process(task)
		case <-q.done:
			return
		}
	}
}

func (q *Queue) Stop() {
	close(q.done)
}

func (q *Queue) process(task Task) {
	defer q.clear(task.Key.String())

	// detached from any request; only the per-copy timeout bounds it
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	dest := storage.KindFilesystem
	if q.object != nil {
		dest = storage.KindObject
	}

	if err := Copy(ctx, q.object, q.fs, task.Key, task.Source, dest); err != nil {
		metrics.MirrorFailuresTotal.Inc()
		log.Warn().Err(err).Str("file", task.Key.String()).Msg("[MIRROR] Copy failed")
		q.recordFailure(task, dest, err)
		return
	}

	metrics.MirrorCompletedTotal.Inc()
	if err := q.journal.ResolveMirrorFailuresForKey(task.Key.Category, task.Key.Filename, time.Now().UnixMilli()); err != nil {
		log.Warn().Err(err).Str("file", task.Key.String()).Msg("[MIRROR] Failed to update journal")
	}
	log.Debug().Str("file", task.Key.String()).Str("target", string(dest)).Msg("[MIRROR] Copy complete")
}

func (q *Queue) recordFailure(task Task, dest storage.Kind, copyErr error) {
	failure := &journal.MirrorFailure{
		ID:            uuid.NewString(),
		Category:      task.Key.Category,
		Filename:      task.Key.Filename,
		SourceBackend: string(task.Source.Kind),
		SourceStore:   task.Source.Store,
		SourcePath:    task.Source.Path,
		Target:        string(dest),
		Reason:        copyErr.Error(),
		CreatedAt:     time.Now().UnixMilli(),
	}
	if err := q.journal.RecordMirrorFailure(failure); err != nil {
		log.Warn().Err(err).Str("file", task.Key.String()).Msg("[MIRROR] Failed to journal mirror failure")
	}
}

func (q *Queue) clear(name string) {
	q.mu.Lock()
	delete(q.inflight, name)
	q.mu.Unlock()
}
