package sandwich

import (
	"context"
	"sync"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
	"github.com/rs/zerolog"
)

type dispatchKind uint8

const (
	dispatchEvent dispatchKind = iota
	dispatchShardConnected
	dispatchShardDisconnected
)

type dispatchItem struct {
	kind  dispatchKind
	event qq.Event
}

// eventDispatcher delivers items to a sink from a single goroutine in the
// order they were enqueued. Enqueue never blocks.
type eventDispatcher struct {
	ctx     context.Context
	logger  zerolog.Logger
	shardID int32
	sink    EventSink

	queueMu sync.Mutex
	queue   []dispatchItem
	closed  bool

	notify chan struct{}
	done   chan struct{}
}

// newEventDispatcher starts a dispatcher. Sink calls receive a context that
// keeps the values of ctx but is never cancelled.
func newEventDispatcher(ctx context.Context, logger zerolog.Logger, shardID int32, sink EventSink) *eventDispatcher {
	dispatcher := &eventDispatcher{
		ctx:     context.WithoutCancel(ctx),
		logger:  logger,
		shardID: shardID,
		sink:    sink,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	go dispatcher.run()

	return dispatcher
}

func (d *eventDispatcher) Enqueue(item dispatchItem) bool {
	d.queueMu.Lock()

	if d.closed {
		d.queueMu.Unlock()

		return false
	}

	d.queue = append(d.queue, item)
	d.queueMu.Unlock()

	d.wake()

	return true
}

// Close stops accepting items. Items already queued are still delivered.
func (d *eventDispatcher) Close() {
	d.queueMu.Lock()
	d.closed = true
	d.queueMu.Unlock()

	d.wake()
}

// Done is closed once every queued item has been delivered after Close.
func (d *eventDispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *eventDispatcher) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *eventDispatcher) run() {
	defer close(d.done)

	for {
		d.queueMu.Lock()
		items := d.queue
		closed := d.closed
		d.queue = nil
		d.queueMu.Unlock()

		if len(items) == 0 {
			if closed {
				return
			}

			<-d.notify

			continue
		}

		for _, item := range items {
			d.deliver(item)
		}
	}
}

func (d *eventDispatcher) deliver(item dispatchItem) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("recovered", r).Msg("Recovered panic in event sink")
		}
	}()

	switch item.kind {
	case dispatchEvent:
		d.sink.OnEvent(d.ctx, d.shardID, item.event)
	case dispatchShardConnected:
		d.sink.OnShardConnected(d.shardID)
	case dispatchShardDisconnected:
		d.sink.OnShardDisconnected(d.shardID)
	}
}
