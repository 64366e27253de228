package pagestore

import (
	"fmt"
	"sync"
)

// writeTask is either a (page, txnID) write request or a flush barrier
// (sync != nil; the consumer closes it when reached), modeled on the writer-goroutine-plus-barrier shape in
// the retrieval pack's Carmen paged_file.go.
type writeTask struct {
	page  *Page
	txnID uint64
	sync  chan<- struct{}
}

// BackgroundPageWriter is a single-consumer durable write pipeline
// owning one output sink. One goroutine pops items from a bounded FIFO
// queue; for each item it seeks to the page's offset and writes the
// page's current bytes. Because the same page can be queued multiple
// times (on mutation, and again at commit), the writer re-reads the
// page's bytes at dequeue time rather than snapshotting them at queue
// time, so the last write for a given id that is dequeued before a
// Flush defines the on-disk bytes for that id.
type BackgroundPageWriter struct {
	sink  WriteHandle
	tasks chan writeTask
	done  chan struct{}

	mu       sync.Mutex
	closed   bool
	writeErr error

	bytesFlushed uint64
	pagesWritten uint64
}

// NewBackgroundPageWriter starts a consumer goroutine writing to sink and
// returns the writer handle. queueDepth bounds the number of pending
// items before QueueWrite blocks.
func NewBackgroundPageWriter(sink WriteHandle, queueDepth int) *BackgroundPageWriter {
	if queueDepth < 1 {
		queueDepth = 1
	}
	w := &BackgroundPageWriter{
		sink:  sink,
		tasks: make(chan writeTask, queueDepth),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *BackgroundPageWriter) run() {
	defer close(w.done)
	for task := range w.tasks {
		if task.sync != nil {
			close(task.sync)
			continue
		}
		if err := task.page.WriteTo(w.sink, task.txnID); err != nil {
			w.mu.Lock()
			if w.writeErr == nil {
				w.writeErr = err
			}
			w.mu.Unlock()
			continue
		}
		w.mu.Lock()
		w.pagesWritten++
		w.bytesFlushed += uint64(task.page.Size())
		w.mu.Unlock()
	}
}

// QueueWrite enqueues (page, txnID) for the background writer. It
// tolerates the same page being queued again before a prior queued write
// for it has been dequeued; whichever write is dequeued last before the
// next Flush wins. Non-blocking unless the internal queue is full.
func (w *BackgroundPageWriter) QueueWrite(page *Page, txnID uint64) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWriterClosed
	}
	w.tasks <- writeTask{page: page, txnID: txnID}
	return nil
}

// Flush blocks until every item queued before this call has been written
// and the sink has been flushed to stable storage. It is a barrier: a
// failed write surfaces here (and is latched so subsequent Flush calls
// keep reporting it) rather than being silently dropped.
func (w *BackgroundPageWriter) Flush() error {
	ack := make(chan struct{})
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWriterClosed
	}

	w.tasks <- writeTask{sync: ack}
	<-ack

	w.mu.Lock()
	err := w.writeErr
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("pagestore: background flush failed: %w", err)
	}
	return w.sink.Sync()
}

// Shutdown signals end-of-input, drains the queue, and flushes. After
// Shutdown, QueueWrite and Flush return ErrWriterClosed.
func (w *BackgroundPageWriter) Shutdown() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	ack := make(chan struct{})
	w.tasks <- writeTask{sync: ack}
	<-ack
	close(w.tasks)
	<-w.done

	w.mu.Lock()
	err := w.writeErr
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("pagestore: background flush failed during shutdown: %w", err)
	}
	return w.sink.Sync()
}

// Dispose releases the sink handle. Call after Shutdown.
func (w *BackgroundPageWriter) Dispose() error {
	return w.sink.Close()
}

// WriterStats is a point-in-time snapshot of writer counters.
type WriterStats struct {
	QueueDepth   int    `msgpack:"queue_depth"`
	PagesWritten uint64 `msgpack:"pages_written"`
	BytesFlushed uint64 `msgpack:"bytes_flushed"`
}

// Stats returns a snapshot of the writer's counters.
func (w *BackgroundPageWriter) Stats() WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WriterStats{
		QueueDepth:   len(w.tasks),
		PagesWritten: w.pagesWritten,
		BytesFlushed: w.bytesFlushed,
	}
}
