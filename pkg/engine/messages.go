package engine

import (
	"inkwash/pkg/models"
	"inkwash/pkg/tilemap"
)

// Msg is an inbound event for the engine. Asynchronous completions (flush
// results, tile loads, subscription pushes, scheduler fires) are posted to
// the inbox as messages; the goroutine driving the engine forwards each one
// to Handle. The engine itself never blocks on the inbox.
type Msg interface{ isMsg() }

// flushDueMsg is posted by the flush scheduler when the inactivity timer
// fires.
type flushDueMsg struct{}

// flushResultMsg carries the outcome of one save round trip.
type flushResultMsg struct {
	batch *flushBatch
	err   error
}

// tileLoadedMsg carries the result of an initial tile load.
type tileLoadedMsg struct {
	id   tilemap.TileID
	tile models.Tile
	err  error
}

// tileUpdateMsg carries a full tile state pushed by the store subscription.
// It may arrive at any time and is merged without disturbing local drawing.
type tileUpdateMsg struct {
	id   tilemap.TileID
	tile models.Tile
}

func (flushDueMsg) isMsg()    {}
func (flushResultMsg) isMsg() {}
func (tileLoadedMsg) isMsg()  {}
func (tileUpdateMsg) isMsg()  {}
