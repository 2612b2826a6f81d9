// Package engine is the client core of the shared fading canvas: it owns
// the local edit buffer, the draft stroke state machine, the flush
// scheduler, the ink ledger and the loaded tile set.
//
// The engine is single-goroutine by contract. All methods must be called
// from one goroutine (the UI loop); asynchronous completions arrive on
// Inbox and must be forwarded to Handle from that same goroutine. There is
// no locking inside the engine because there is no parallelism inside it.
package engine

import (
	"context"
	"errors"
	"time"

	"inkwash/pkg/clock"
	"inkwash/pkg/config"
	"inkwash/pkg/geom"
	"inkwash/pkg/ink"
	"inkwash/pkg/logger"
	"inkwash/pkg/models"
	"inkwash/pkg/remote"
	"inkwash/pkg/stroke"
	"inkwash/pkg/sweep"
	"inkwash/pkg/tilemap"
)

// ErrClosed is returned for input arriving after Close.
var ErrClosed = errors.New("engine: closed")

// DraftState tracks the in-progress stroke through the mid-draw flush
// protocol. FlushedMidDraw exists only while a save carrying the draft
// snapshot is in flight; Finalized only between pointer-up and that save's
// result.
type DraftState int

const (
	Drafting DraftState = iota
	FlushedMidDraw
	Finalized
)

// draftStroke is the at-most-one in-progress stroke plus its flush state.
// cut is the number of samples included in the in-flight snapshot and
// cutInk the ink those samples carried.
type draftStroke struct {
	s      *stroke.Stroke
	state  DraftState
	cut    int
	cutInk float64
}

// bufferedStroke is a committed-but-unflushed stroke. addedAt drives the
// undo window.
type bufferedStroke struct {
	s       *stroke.Stroke
	addedAt time.Time
}

// loadedTile is one remote tile held for rendering, with its subscription.
type loadedTile struct {
	tile   models.Tile
	sub    remote.Subscription
	loaded bool
}

// Options configures an Engine. An empty UserID derives a fresh anonymous
// identifier. SweepInterval tunes the advisory eviction pass; zero uses the
// sweeper's default.
type Options struct {
	Canvas        config.CanvasConfig
	UserID        string
	Country       string
	Account       models.InkAccount
	SweepInterval time.Duration
	Now           clock.Clock
}

// Engine is the drawing surface core for one session.
type Engine struct {
	cfg     config.CanvasConfig
	now     clock.Clock
	userID  string
	country string

	adapter   remote.Adapter
	localOnly bool

	view    *geom.Viewport
	tiles   map[tilemap.TileID]*loadedTile
	ledger  *ink.Ledger
	sweeper *sweep.Sweeper

	buffer  []bufferedStroke
	pending *flushBatch // the one in-flight save, nil otherwise
	draft   *draftStroke

	inbox chan Msg
	sched *scheduler

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// New builds an Engine over the given sync adapter. A nil adapter degrades
// to local-only mode: strokes render and cost ink but never persist beyond
// the process.
func New(opts Options, adapter remote.Adapter) *Engine {
	now := opts.Now
	if now == nil {
		now = clock.System
	}
	if opts.UserID == "" {
		opts.UserID = ink.NewUserID()
	}
	localOnly := false
	if adapter == nil {
		adapter = remote.NewMemory(opts.Canvas.TileSize, now)
		localOnly = true
		logger.Warn("sync_backend_unconfigured", "mode", "local_only")
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       opts.Canvas,
		now:       now,
		userID:    opts.UserID,
		country:   opts.Country,
		adapter:   adapter,
		localOnly: localOnly,
		view:      geom.NewViewport(0, 0),
		tiles:     make(map[tilemap.TileID]*loadedTile),
		ledger: ink.NewLedger(opts.Account, ink.Options{
			MaxInk:      opts.Canvas.MaxInk,
			RefillRate:  opts.Canvas.RefillRate,
			Unlimited:   opts.Canvas.UnlimitedInk,
			Maintenance: opts.Canvas.Maintenance,
			Now:         now,
		}),
		inbox:  make(chan Msg, 64),
		ctx:    ctx,
		cancel: cancel,
	}
	e.sched = newScheduler(opts.Canvas.InactivityTimeout.Duration(), e.inbox)
	e.sweeper = sweep.New(adapter, opts.Canvas.FadeDuration.Duration(), opts.SweepInterval)
	go e.sweeper.Run(e.ctx)
	return e
}

// Inbox returns the engine's inbound message channel. The driving goroutine
// selects on it and forwards every message to Handle.
func (e *Engine) Inbox() <-chan Msg { return e.inbox }

// Handle processes one inbound message. Must be called from the driving
// goroutine.
func (e *Engine) Handle(msg Msg) {
	if e.closed {
		return
	}
	switch m := msg.(type) {
	case flushDueMsg:
		e.flush()
	case flushResultMsg:
		e.finishFlush(m.batch, m.err)
	case tileLoadedMsg:
		e.tileLoaded(m)
	case tileUpdateMsg:
		if lt, ok := e.tiles[m.id]; ok {
			m.tile.Bounds = m.id.Bounds(e.cfg.TileSize)
			lt.tile = m.tile
			lt.loaded = true
		}
	}
}

// Viewport returns the session viewport for pan/zoom input.
func (e *Engine) Viewport() *geom.Viewport { return e.view }

// InkRemaining returns the gauge value: the lazily computed effective
// balance, pinned at maximum in unlimited mode.
func (e *Engine) InkRemaining() float64 { return e.ledger.Effective() }

// LocalOnly reports whether the engine runs without a configured backend.
func (e *Engine) LocalOnly() bool { return e.localOnly }

// BeginStroke starts a freehand or eraser stroke at a world point.
// Authorization gates only the start: once begun, a stroke may continue
// past a zero balance.
func (e *Engine) BeginStroke(kind stroke.Kind, x, y, width float64, color string) error {
	if e.closed {
		return ErrClosed
	}
	if e.draft != nil {
		// previous stroke never ended; finalize it first
		e.EndStroke()
	}
	if err := e.ledger.Authorize(kind); err != nil {
		return err
	}
	w := stroke.ClampWidth(width, e.cfg.MinStrokeWidth, e.cfg.MaxStrokeWidth)
	e.draft = &draftStroke{
		s:     stroke.NewFreehand(kind, x, y, w, color, clock.Millis(e.now()), e.country),
		state: Drafting,
	}
	e.sched.Reset()
	return nil
}

// ExtendStroke appends a sample to the in-progress stroke and debits its
// incremental cost. No-op when no stroke is in progress.
func (e *Engine) ExtendStroke(x, y, width float64) {
	if e.draft == nil {
		return
	}
	w := stroke.ClampWidth(width, e.cfg.MinStrokeWidth, e.cfg.MaxStrokeWidth)
	cost := e.draft.s.Append(x, y, w)
	e.ledger.Consume(cost)
	e.sched.Reset()
}

// EndStroke finishes the in-progress stroke. A freehand stroke with fewer
// than two samples carries no content: it is discarded and its ink
// refunded. A stroke whose snapshot is mid-flight stays parked until the
// flush result decides whether only its continuation needs persisting.
func (e *Engine) EndStroke() {
	d := e.draft
	if d == nil {
		return
	}
	e.draft = nil
	switch d.state {
	case Drafting:
		if d.s.Empty() {
			e.ledger.Refund(d.s.InkUsed)
			return
		}
		e.enqueue(d.s)
	case FlushedMidDraw:
		// the flush result owns this stroke now; mark it ended so it is
		// not re-enqueued wholesale
		d.state = Finalized
	}
	e.sched.Reset()
}

// PlaceText commits a text mark at a world position. Text cost is measured
// once here: rendered width times font size.
func (e *Engine) PlaceText(text string, x, y, fontSize float64, fontFamily, color string) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.ledger.Authorize(stroke.Text); err != nil {
		return err
	}
	s, err := stroke.NewText(text, x, y, fontSize, fontFamily, color, clock.Millis(e.now()), e.country)
	if err != nil {
		return err
	}
	if s.Empty() {
		return nil
	}
	e.ledger.Consume(s.InkUsed)
	e.enqueue(s)
	e.sched.Reset()
	return nil
}

// Undo removes the most recently buffered stroke and refunds its recorded
// ink. It is only available within the undo window and only while the
// stroke has not been flushed; it reports whether anything was undone.
func (e *Engine) Undo() bool {
	n := len(e.buffer)
	if n == 0 {
		return false
	}
	last := e.buffer[n-1]
	if e.now().Sub(last.addedAt) > e.cfg.UndoWindow.Duration() {
		return false
	}
	e.buffer = e.buffer[:n-1]
	e.ledger.Refund(last.s.InkUsed)
	return true
}

// enqueue moves a finished stroke into the local buffer, forcing a flush
// when the buffer ceiling is hit.
func (e *Engine) enqueue(s *stroke.Stroke) {
	e.buffer = append(e.buffer, bufferedStroke{s: s, addedAt: e.now()})
	if len(e.buffer) >= e.cfg.MaxBuffered {
		e.flush()
	}
}

// Close tears the session down: subscriptions are cancelled, one
// best-effort synchronous flush is attempted within ctx, and any remaining
// retries are abandoned.
func (e *Engine) Close(ctx context.Context) {
	if e.closed {
		return
	}
	e.closed = true
	e.sched.Cancel()
	for _, lt := range e.tiles {
		if lt.sub != nil {
			lt.sub.Cancel()
		}
	}
	e.cancel()

	if e.draft != nil && e.draft.state == Drafting && !e.draft.s.Empty() {
		e.buffer = append(e.buffer, bufferedStroke{s: e.draft.s, addedAt: e.now()})
		e.draft = nil
	}
	batch := e.collectBatch()
	if batch == nil {
		return
	}
	if err := e.adapter.SaveStrokes(ctx, batch.grouped, e.userID, batch.totalInk); err != nil {
		logger.Warn("teardown_flush_abandoned", "strokes", len(batch.strokes), "error", err)
		return
	}
	e.ledger.Commit()
}
