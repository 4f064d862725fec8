package heatmap

import (
	"sync"

	"github.com/gogpu/heatmap/backend"
	"github.com/gogpu/heatmap/mesh"
)

// Message is an event handled by the renderer's dispatcher.
type Message interface {
	message()
}

// Resized reports a new surface size in device pixels.
type Resized struct {
	Width, Height uint32
}

// ContextReady reports the result of device acquisition.
type ContextReady struct {
	Device backend.Device
	Err    error
}

// LoadStarted reports that the dataset of load ticket Load has started
// meshing. It clears the ready signal.
type LoadStarted struct {
	Load uint64
}

// LoadFailed reports that load ticket Load produced no dataset.
type LoadFailed struct {
	Load uint64
}

// IncomingData installs a new dataset, replacing the current geometry.
// Load is the ticket returned by Renderer.BeginLoad, or zero for data
// posted without one. Ready is signalled only once no newer load is
// still meshing.
type IncomingData struct {
	Dataset mesh.Dataset
	Load    uint64
}

// MaxWeightMapped delivers a mapped max-weight readback buffer.
type MaxWeightMapped struct {
	Generation uint64
	Data       []byte
	Err        error
}

// ExportMapped delivers a mapped export readback buffer.
type ExportMapped struct {
	Generation  uint64
	Data        []byte
	Err         error
	Width       uint32
	Height      uint32
	BytesPerRow uint32
}

// RedrawRequested asks for one frame.
type RedrawRequested struct{}

// ExportRequested asks for an export on a following frame.
type ExportRequested struct{}

func (Resized) message()         {}
func (ContextReady) message()    {}
func (LoadStarted) message()     {}
func (LoadFailed) message()      {}
func (IncomingData) message()    {}
func (MaxWeightMapped) message() {}
func (ExportMapped) message()    {}
func (RedrawRequested) message() {}
func (ExportRequested) message() {}

// Bus is the message queue consumed by the dispatcher. Posting is safe from
// any goroutine.
type Bus struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

// NewBus creates a bus holding up to size undelivered messages.
func NewBus(size int) *Bus {
	return &Bus{
		ch:   make(chan Message, size),
		done: make(chan struct{}),
	}
}

// Post enqueues m, blocking while the bus is full. It reports false once
// the bus is closed.
func (b *Bus) Post(m Message) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.ch <- m:
		return true
	case <-b.done:
		return false
	}
}

// Messages returns the receive side of the bus.
func (b *Bus) Messages() <-chan Message {
	return b.ch
}

// Done is closed when the bus is closed.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Close stops the bus. Pending and later Posts report false.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })
}
