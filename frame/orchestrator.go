package frame

import (
	"errors"
	"fmt"
	"sort"
	"time"
	"unsafe"

	"github.com/NOT-REAL-GAMES/videogen/gpu"
	"github.com/NOT-REAL-GAMES/videogen/layout"
	"github.com/NOT-REAL-GAMES/videogen/logging"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

type slot struct {
	available vk.Semaphore
	finished  vk.Semaphore
	inFlight  vk.Fence
	cmd       vk.CommandBuffer

	staging vk.Buffer
	memory  vk.DeviceMemory
	mapped  []byte

	// pending is the submitted frame whose pixels have not been handed to
	// the consumer yet.
	pending *Frame
}

// Orchestrator owns the frame slots and runs one frame per RenderFrame
// call. It is not safe for concurrent use; drive it from one goroutine.
type Orchestrator struct {
	dev       Device
	queue     Queue
	stage     Stage
	swapchain vk.SwapchainInfo
	cfg       Config

	slots   []slot
	current int
	seq     uint64
	stats   Stats

	canvas  *layout.Tracker
	targets []*layout.Tracker

	// commands wraps a slot command buffer for recording.
	commands func(cb vk.CommandBuffer) gpu.Commands
}

// New creates MaxFramesInFlight slots, each with its own semaphores, a
// signaled fence, a command buffer and a mapped staging buffer.
func New(dev Device, queue Queue, stage Stage, swapchain vk.SwapchainInfo, cfg Config) (*Orchestrator, error) {
	cfg = cfg.withDefaults()

	if len(swapchain.Images) == 0 {
		return nil, errors.New("swapchain has no images")
	}
	extent := stage.Extent()
	if extent.Width == 0 || extent.Height == 0 {
		return nil, fmt.Errorf("canvas size %dx%d must be non-zero", extent.Width, extent.Height)
	}

	o := &Orchestrator{
		dev:       dev,
		queue:     queue,
		stage:     stage,
		swapchain: swapchain,
		cfg:       cfg,
		canvas:    layout.NewTracker(stage.Canvas(), layout.General),
		commands:  func(cb vk.CommandBuffer) gpu.Commands { return cb },
	}
	for _, img := range swapchain.Images {
		o.targets = append(o.targets, layout.NewTracker(img, layout.Undefined))
	}

	ready := false
	defer func() {
		if !ready {
			o.Destroy()
		}
	}()

	o.slots = make([]slot, cfg.MaxFramesInFlight)

	cmds, err := dev.AllocateCommandBuffers(&vk.CommandBufferAllocateInfo{
		CommandPool:        dev.CommandPool(),
		Level:              vk.COMMAND_BUFFER_LEVEL_PRIMARY,
		CommandBufferCount: uint32(cfg.MaxFramesInFlight),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate command buffers: %w", err)
	}
	for i := range o.slots {
		o.slots[i].cmd = cmds[i]
	}

	size := StagingSize(extent.Width, extent.Height)
	for i := range o.slots {
		s := &o.slots[i]

		if s.available, err = dev.CreateSemaphore(&vk.SemaphoreCreateInfo{}); err != nil {
			return nil, fmt.Errorf("failed to create semaphore for slot %d: %w", i, err)
		}
		if s.finished, err = dev.CreateSemaphore(&vk.SemaphoreCreateInfo{}); err != nil {
			return nil, fmt.Errorf("failed to create semaphore for slot %d: %w", i, err)
		}
		// Signaled so the first wait on each slot returns at once.
		if s.inFlight, err = dev.CreateFence(&vk.FenceCreateInfo{Flags: vk.FENCE_CREATE_SIGNALED_BIT}); err != nil {
			return nil, fmt.Errorf("failed to create fence for slot %d: %w", i, err)
		}

		if s.staging, s.memory, err = dev.CreateHostBuffer(size, vk.BUFFER_USAGE_TRANSFER_DST_BIT); err != nil {
			return nil, fmt.Errorf("failed to create staging buffer for slot %d: %w", i, err)
		}
		ptr, err := dev.MapMemory(s.memory, 0, size)
		if err != nil {
			return nil, fmt.Errorf("failed to map staging buffer for slot %d: %w", i, err)
		}
		s.mapped = unsafe.Slice((*byte)(ptr), size)
	}

	logging.Logger().Info("frame orchestrator ready",
		"slots", cfg.MaxFramesInFlight,
		"swapchain_images", len(swapchain.Images),
		"staging_bytes", size)

	ready = true
	return o, nil
}

// RenderFrame runs one frame at time t. It returns false with a nil error
// when the frame was abandoned because the swapchain went stale; the loop
// should carry on. Any error is fatal.
func (o *Orchestrator) RenderFrame(t float32) (bool, error) {
	if len(o.slots) == 0 {
		return false, errors.New("orchestrator is destroyed")
	}
	if state := o.canvas.State(); state != layout.General {
		return false, fmt.Errorf("%w: canvas is %s at frame start", ErrCanvasLayout, state)
	}

	index := o.current
	s := &o.slots[index]
	defer func() {
		o.current = (o.current + 1) % len(o.slots)
	}()

	if err := o.wait(index); err != nil {
		return false, err
	}

	imageIndex, err := o.dev.AcquireNextImageKHR(o.swapchain.Swapchain, durationNanos(o.cfg.AcquireTimeout), s.available, vk.Fence{})
	if err != nil {
		var res vk.Result
		if errors.As(err, &res) {
			switch res {
			case vk.OUT_OF_DATE:
				o.stats.Skipped++
				logging.Logger().Warn("swapchain out of date, skipping frame", "slot", index, "t", t)
				return false, nil
			case vk.TIMEOUT, vk.NOT_READY:
				return false, fmt.Errorf("%w: acquire on slot %d after %s", ErrGPUHang, index, o.cfg.AcquireTimeout)
			}
		}
		return false, fmt.Errorf("failed to acquire swapchain image: %w", err)
	}
	if int(imageIndex) >= len(o.swapchain.Images) {
		return false, fmt.Errorf("acquired image %d but swapchain has %d images", imageIndex, len(o.swapchain.Images))
	}

	// Reset only once work that signals the fence is certain to follow.
	if err := o.dev.ResetFences([]vk.Fence{s.inFlight}); err != nil {
		return false, fmt.Errorf("failed to reset fence for slot %d: %w", index, err)
	}

	if err := o.record(s, imageIndex, t); err != nil {
		return false, err
	}

	err = o.queue.Submit([]vk.SubmitInfo{
		{
			WaitSemaphores:   []vk.Semaphore{s.available},
			WaitDstStageMask: []vk.PipelineStageFlags{vk.PIPELINE_STAGE_COMPUTE_SHADER_BIT},
			CommandBuffers:   []vk.CommandBuffer{s.cmd},
			SignalSemaphores: []vk.Semaphore{s.finished},
		},
	}, s.inFlight)
	if err != nil {
		return false, fmt.Errorf("failed to submit frame: %w", err)
	}

	s.pending = &Frame{
		Seq:         o.seq,
		Slot:        index,
		ImageIndex:  imageIndex,
		Time:        t,
		SubmittedAt: time.Now(),
		Pixels:      s.mapped,
	}
	o.seq++

	err = o.queue.PresentKHR(&vk.PresentInfoKHR{
		WaitSemaphores: []vk.Semaphore{s.finished},
		Swapchains:     []vk.SwapchainKHR{o.swapchain.Swapchain},
		ImageIndices:   []uint32{imageIndex},
	})
	if err != nil {
		var res vk.Result
		if !errors.As(err, &res) || !res.Stale() {
			return false, fmt.Errorf("failed to present: %w", err)
		}
		o.stats.StalePresents++
		logging.Logger().Warn("stale present", "slot", index, "image", imageIndex, "error", err)
	}

	o.stats.Rendered++
	return true, nil
}

// wait blocks on the slot fence and delivers the frame the slot was holding.
func (o *Orchestrator) wait(index int) error {
	s := &o.slots[index]

	err := o.dev.WaitForFences([]vk.Fence{s.inFlight}, true, durationNanos(o.cfg.FenceTimeout))
	if err != nil {
		if errors.Is(err, vk.TIMEOUT) {
			return fmt.Errorf("%w: fence for slot %d after %s", ErrGPUHang, index, o.cfg.FenceTimeout)
		}
		return fmt.Errorf("failed to wait for slot %d: %w", index, err)
	}

	return o.deliver(s)
}

func (o *Orchestrator) deliver(s *slot) error {
	f := s.pending
	if f == nil {
		return nil
	}
	s.pending = nil

	if o.cfg.Consumer == nil {
		return nil
	}
	if err := o.cfg.Consumer.Consume(*f); err != nil {
		return fmt.Errorf("failed to deliver frame %d: %w", f.Seq, err)
	}
	o.stats.Delivered++
	return nil
}

// Flush waits for every submitted frame and delivers them in submission
// order.
func (o *Orchestrator) Flush() error {
	var order []int
	for i := range o.slots {
		if o.slots[i].pending != nil {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		return o.slots[order[a]].pending.Seq < o.slots[order[b]].pending.Seq
	})

	for _, i := range order {
		if err := o.wait(i); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) Stats() Stats { return o.stats }

// CanvasLayout is the layout the canvas will be in once all recorded work
// has executed.
func (o *Orchestrator) CanvasLayout() layout.State { return o.canvas.State() }

// Destroy waits for the device and releases every slot. Undelivered frames
// are dropped; call Flush first to keep them. Calling it again does nothing.
func (o *Orchestrator) Destroy() {
	if o.slots == nil {
		return
	}

	if err := o.dev.WaitIdle(); err != nil {
		logging.Logger().Warn("device wait idle failed during destroy", "error", err)
	}

	var cmds []vk.CommandBuffer
	for i := range o.slots {
		s := &o.slots[i]

		if s.mapped != nil {
			o.dev.UnmapMemory(s.memory)
			s.mapped = nil
		}
		if s.staging != (vk.Buffer{}) {
			o.dev.DestroyBuffer(s.staging)
			s.staging = vk.Buffer{}
		}
		if s.memory != (vk.DeviceMemory{}) {
			o.dev.FreeMemory(s.memory)
			s.memory = vk.DeviceMemory{}
		}
		if s.cmd != (vk.CommandBuffer{}) {
			cmds = append(cmds, s.cmd)
			s.cmd = vk.CommandBuffer{}
		}
	}
	if len(cmds) > 0 {
		o.dev.FreeCommandBuffers(o.dev.CommandPool(), cmds)
	}

	for i := range o.slots {
		s := &o.slots[i]
		if s.available != (vk.Semaphore{}) {
			o.dev.DestroySemaphore(s.available)
			s.available = vk.Semaphore{}
		}
		if s.finished != (vk.Semaphore{}) {
			o.dev.DestroySemaphore(s.finished)
			s.finished = vk.Semaphore{}
		}
		if s.inFlight != (vk.Fence{}) {
			o.dev.DestroyFence(s.inFlight)
			s.inFlight = vk.Fence{}
		}
		s.pending = nil
	}

	o.slots = nil
}

func durationNanos(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d.Nanoseconds())
}
