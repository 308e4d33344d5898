package interfaces

import (
	"context"
	"sync"

	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// IEventSource is the contract for upstream raw-event streams. Delivery is
// at-least-once, unordered and bursty; consumers must tolerate duplicates.
// -----------------------------------------------------------------------------

type IEventSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// Start begins pushing raw events.
	// ctx: controls the lifecycle (cancellation stops the source)
	// outputChan: channel to push events to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, outputChan chan<- models.MRawEvent, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the stream (cancelling the context passed to Start is
	// normally enough).
	Stop() error
}
