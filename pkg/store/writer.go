package store

import (
	"errors"
	"sync"
)

var errWriterClosed = errors.New("store: closed")

// writeOp is one mutation waiting its turn on the writer goroutine.
type writeOp struct {
	apply func() error
	done  chan error
}

// writer funnels every read-modify-write against the database through one
// goroutine. Tile documents and ink accounts are whole-document JSON, so
// concurrent handler goroutines doing get-append-set would lose each
// other's updates; with a single applier each document sees one mutator at
// a time and per-tile append order is preserved. Callers block for the
// result, keeping the HTTP surface synchronous.
type writer struct {
	ops  chan *writeOp
	quit chan struct{}
	stop sync.Once
	wg   sync.WaitGroup
}

func newWriter(depth int) *writer {
	if depth <= 0 {
		depth = 1024
	}
	w := &writer{ops: make(chan *writeOp, depth), quit: make(chan struct{})}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *writer) run() {
	defer w.wg.Done()
	for {
		select {
		case op := <-w.ops:
			op.done <- op.apply()
		case <-w.quit:
			// apply everything already accepted so no caller hangs
			for {
				select {
				case op := <-w.ops:
					op.done <- op.apply()
				default:
					return
				}
			}
		}
	}
}

// do submits one mutation and waits until the writer goroutine has applied
// it.
func (w *writer) do(fn func() error) error {
	op := &writeOp{apply: fn, done: make(chan error, 1)}
	select {
	case w.ops <- op:
		return <-op.done
	case <-w.quit:
		return errWriterClosed
	}
}

// close drains the queue and stops the goroutine. Mutations racing in after
// shutdown began are failed, not applied.
func (w *writer) close() {
	w.stop.Do(func() {
		close(w.quit)
		w.wg.Wait()
		for {
			select {
			case op := <-w.ops:
				op.done <- errWriterClosed
			default:
				return
			}
		}
	})
}
