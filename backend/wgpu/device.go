//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/heatmap/backend"
)

// pollInterval is how often MapRead and Present check the queue for
// completed submissions.
const pollInterval = 500 * time.Microsecond

func init() {
	backend.Register(backend.BackendWGPU, func() (backend.Device, error) {
		return New()
	})
}

// Device is a backend.Device on a HAL device and queue.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	// externalDevice is set for devices borrowed from a provider; Close
	// leaves them alive.
	externalDevice bool

	adapter string
	limits  gputypes.Limits
	pipes   *pipelines

	garbage    []retired
	lastSubmit uint64

	// staging is the idle Present buffer, kept while the frame size holds.
	staging     hal.Buffer
	stagingSize uint64

	closed    bool
	destroyed bool
	pending   sync.WaitGroup
}

// retired is a release function waiting for a submission to complete.
type retired struct {
	index uint64
	free  func()
}

// New opens a Vulkan adapter, preferring discrete and integrated GPUs.
func New() (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", backend.ErrNoAdapter)
	}
	return Open(b)
}

// Open creates an instance on b and opens its best adapter.
func Open(b hal.Backend) (*Device, error) {
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, backend.ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", backend.ErrNoAdapter, err)
	}

	limits := selected.Capabilities.Limits
	d, err := newDevice(openDev.Device, openDev.Queue, selected.Info.Name, limits)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	slogger().Info("wgpu: device opened", "adapter", selected.Info.Name, "type", selected.Info.DeviceType.String())
	return d, nil
}

// NewFromProvider wraps the device of a running gogpu application. The
// provider must expose HalDevice() any and HalQueue() any returning a
// hal.Device and hal.Queue. The device is not destroyed by Close.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}

	info := provider.AdapterInfo()
	d, err := newDevice(device, queue, info.Name, gputypes.DefaultLimits())
	if err != nil {
		return nil, err
	}
	d.externalDevice = true
	slogger().Info("wgpu: using shared device", "adapter", info.Name)
	return d, nil
}

func newDevice(device hal.Device, queue hal.Queue, adapter string, limits gputypes.Limits) (*Device, error) {
	if limits.MaxTextureDimension2D == 0 {
		limits = gputypes.DefaultLimits()
	}
	pipes, err := newPipelines(device)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipelines: %w", err)
	}
	return &Device{
		device:  device,
		queue:   queue,
		adapter: adapter,
		limits:  limits,
		pipes:   pipes,
	}, nil
}

// Name returns backend.BackendWGPU.
func (d *Device) Name() string { return backend.BackendWGPU }

// Adapter returns the adapter name reported by the driver.
func (d *Device) Adapter() string { return d.adapter }

// Limits returns the adapter limits.
func (d *Device) Limits() backend.Limits {
	return backend.Limits{MaxTextureDimension2D: d.limits.MaxTextureDimension2D}
}

// SetLogger sets the logger for the package.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// submit ends enc, submits it and schedules the encoder, its command buffer
// and extra for release after completion. Must be called with d.mu held.
func (d *Device) submit(enc hal.CommandEncoder, extra ...func()) (uint64, error) {
	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		for _, f := range extra {
			f()
		}
		return 0, fmt.Errorf("wgpu: end encoding: %w", mapError(err))
	}
	idx, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		enc.Destroy()
		for _, f := range extra {
			f()
		}
		return 0, fmt.Errorf("wgpu: submit: %w", mapError(err))
	}
	d.lastSubmit = idx
	d.retire(idx, func() {
		d.device.FreeCommandBuffer(cmd)
		enc.Destroy()
	})
	for _, f := range extra {
		d.retire(idx, f)
	}
	d.collect(d.queue.PollCompleted())
	return idx, nil
}

// encode records one command buffer with record and submits it.
// Must be called with d.mu held.
func (d *Device) encode(label string, record func(enc hal.CommandEncoder), extra ...func()) (uint64, error) {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		for _, f := range extra {
			f()
		}
		return 0, fmt.Errorf("wgpu: create encoder: %w", mapError(err))
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		for _, f := range extra {
			f()
		}
		return 0, fmt.Errorf("wgpu: begin encoding: %w", mapError(err))
	}
	record(enc)
	return d.submit(enc, extra...)
}

func (d *Device) retire(index uint64, free func()) {
	d.garbage = append(d.garbage, retired{index: index, free: free})
}

// collect releases everything retired at or before completed.
func (d *Device) collect(completed uint64) {
	keep := d.garbage[:0]
	for _, g := range d.garbage {
		if g.index <= completed {
			g.free()
			continue
		}
		keep = append(keep, g)
	}
	clear(d.garbage[len(keep):])
	d.garbage = keep
}

// release destroys a resource once the last submission that may use it
// has completed. Once Close has finished, an owned device has already freed
// everything and a borrowed one frees immediately.
func (d *Device) release(free func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		if d.externalDevice {
			free()
		}
		return
	}
	d.retire(d.lastSubmit, free)
	d.collect(d.queue.PollCompleted())
}

// waitFor polls the queue until index has completed.
func (d *Device) waitFor(index uint64) {
	for {
		d.mu.Lock()
		done := d.queue.PollCompleted() >= index
		d.mu.Unlock()
		if done {
			return
		}
		time.Sleep(pollInterval)
	}
}

func (d *Device) checkOpen() error {
	if d.closed {
		return backend.ErrClosed
	}
	return nil
}

// Close waits for outstanding reads, releases pipelines and pending
// resources, and destroys the device unless it was borrowed.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.pending.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.device.WaitIdle(); err != nil {
		slogger().Warn("wgpu: wait idle", "err", err)
	}
	if d.staging != nil {
		d.device.DestroyBuffer(d.staging)
		d.staging = nil
	}
	d.collect(math.MaxUint64)
	d.pipes.destroy(d.device)
	if !d.externalDevice {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.instance = nil
	d.destroyed = true
	slogger().Info("wgpu: device closed", "adapter", d.adapter)
}

// mapError translates HAL errors to backend sentinels where one exists.
func mapError(err error) error {
	switch {
	case errors.Is(err, hal.ErrDeviceOutOfMemory):
		return fmt.Errorf("%w: %w", backend.ErrOutOfMemory, err)
	case errors.Is(err, hal.ErrSurfaceLost), errors.Is(err, hal.ErrDeviceLost):
		return fmt.Errorf("%w: %w", backend.ErrSurfaceLost, err)
	case errors.Is(err, hal.ErrSurfaceOutdated):
		return fmt.Errorf("%w: %w", backend.ErrSurfaceOutdated, err)
	case errors.Is(err, hal.ErrTimeout):
		return fmt.Errorf("%w: %w", backend.ErrSurfaceTimeout, err)
	default:
		return err
	}
}
