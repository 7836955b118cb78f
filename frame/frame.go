// Package frame runs the render loop: it keeps a ring of frame slots so the
// CPU can record up to MaxFramesInFlight frames ahead of the GPU, copies each
// finished canvas to the presentation image and to host memory, and hands
// the host copy to a Consumer once the GPU is done with it.
package frame

import (
	"errors"
	"time"
	"unsafe"

	"github.com/NOT-REAL-GAMES/videogen/gpu"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

var (
	// ErrGPUHang means a fence or acquire wait ran past its timeout.
	ErrGPUHang = errors.New("GPU did not respond in time")

	// ErrCanvasLayout means a frame was about to start with the canvas
	// outside GENERAL.
	ErrCanvasLayout = errors.New("canvas not in GENERAL layout")
)

const (
	DefaultMaxFramesInFlight = 2
	DefaultTimeout           = 5 * time.Second
)

// BytesPerPixel of the canvas and staging formats.
const BytesPerPixel = 4

// StagingSize is the size of one tightly packed RGBA8 frame.
func StagingSize(width, height uint32) uint64 {
	return uint64(width) * uint64(height) * BytesPerPixel
}

// Frame is one completed image in host memory.
type Frame struct {
	Seq         uint64
	Slot        int
	ImageIndex  uint32
	Time        float32
	SubmittedAt time.Time

	// Pixels aliases the slot's staging memory and is only valid until
	// Consume returns.
	Pixels []byte
}

// Consumer receives every submitted frame, in submission order. An error is
// fatal to the render loop.
type Consumer interface {
	Consume(f Frame) error
}

type ConsumerFunc func(f Frame) error

func (fn ConsumerFunc) Consume(f Frame) error { return fn(f) }

type Config struct {
	MaxFramesInFlight int
	FenceTimeout      time.Duration
	AcquireTimeout    time.Duration

	// Consumer may be nil, in which case frames are rendered and presented
	// but nobody reads them back.
	Consumer Consumer
}

func (c Config) withDefaults() Config {
	if c.MaxFramesInFlight <= 0 {
		c.MaxFramesInFlight = DefaultMaxFramesInFlight
	}
	if c.FenceTimeout <= 0 {
		c.FenceTimeout = DefaultTimeout
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultTimeout
	}
	return c
}

// Stats counts what happened to each attempted frame.
type Stats struct {
	Rendered      uint64
	Skipped       uint64
	StalePresents uint64
	Delivered     uint64
}

// Device is the part of the GPU context the orchestrator drives.
// *gpu.Context implements it.
type Device interface {
	CreateSemaphore(createInfo *vk.SemaphoreCreateInfo) (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)
	CreateFence(createInfo *vk.FenceCreateInfo) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFences(fences []vk.Fence, waitAll bool, timeout uint64) error
	ResetFences(fences []vk.Fence) error
	AcquireNextImageKHR(swapchain vk.SwapchainKHR, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, error)

	CommandPool() vk.CommandPool
	AllocateCommandBuffers(allocInfo *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer)

	CreateHostBuffer(size uint64, usage vk.BufferUsageFlags) (vk.Buffer, vk.DeviceMemory, error)
	MapMemory(memory vk.DeviceMemory, offset, size uint64) (unsafe.Pointer, error)
	UnmapMemory(memory vk.DeviceMemory)
	DestroyBuffer(buffer vk.Buffer)
	FreeMemory(memory vk.DeviceMemory)

	WaitIdle() error
}

var _ Device = (*gpu.Context)(nil)

// Queue submits and presents. vk.Queue implements it.
type Queue interface {
	Submit(submits []vk.SubmitInfo, fence vk.Fence) error
	PresentKHR(presentInfo *vk.PresentInfoKHR) error
}

var _ Queue = vk.Queue{}

// Stage draws into the canvas. *compute.Stage implements it.
type Stage interface {
	Canvas() vk.Image
	Extent() vk.Extent2D
	RecordDispatch(cmd gpu.Commands, t float32)
}
