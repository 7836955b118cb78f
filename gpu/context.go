// Package gpu owns the Vulkan instance, device, queue and swapchain, and the
// small helpers everything else allocates through.
package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/NOT-REAL-GAMES/videogen/logging"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

var (
	ErrNoDevice      = errors.New("no Vulkan physical device")
	ErrNoQueueFamily = errors.New("no queue family supports graphics, compute and present")
	ErrNoMemoryType  = errors.New("no suitable memory type")
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// RequiredQueueFlags is what the single queue must support: compute for the
// kernel and graphics so the same family can present.
const RequiredQueueFlags = vk.QUEUE_GRAPHICS_BIT | vk.QUEUE_COMPUTE_BIT

type Options struct {
	AppName    string
	Extensions []string
	Validation bool

	// CreateSurface receives the raw VkInstance and returns a raw
	// VkSurfaceKHR. Nil means headless.
	CreateSurface func(instance unsafe.Pointer) (unsafe.Pointer, error)

	// Window size, used when the surface leaves the extent to us.
	Width, Height uint32
}

// Context is the device context shared by the compute stage and the frame
// orchestrator. The embedded vk.Device exposes the raw device calls.
type Context struct {
	vk.Device

	Instance    vk.Instance
	Physical    vk.PhysicalDevice
	Properties  vk.PhysicalDeviceProperties
	Surface     vk.SurfaceKHR
	QueueFamily uint32
	Queue       vk.Queue
	Swapchain   vk.SwapchainInfo

	pool     vk.CommandPool
	memProps vk.PhysicalDeviceMemoryProperties
}

// New creates a windowed context: instance, surface, device, queue, command
// pool and swapchain.
func New(opts Options) (*Context, error) {
	if opts.CreateSurface == nil {
		return nil, errors.New("gpu.New needs a CreateSurface callback; use NewHeadless for offscreen work")
	}
	return newContext(opts, true)
}

// NewHeadless creates a context with no surface or swapchain.
func NewHeadless(opts Options) (*Context, error) {
	opts.CreateSurface = nil
	return newContext(opts, false)
}

func newContext(opts Options, present bool) (*Context, error) {
	ctx := &Context{}
	ready := false
	defer func() {
		if !ready {
			ctx.Destroy()
		}
	}()

	var err error

	appName := opts.AppName
	if appName == "" {
		appName = "videogen"
	}

	createInfo := &vk.InstanceCreateInfo{
		ApplicationInfo: &vk.ApplicationInfo{
			ApplicationName:    appName,
			ApplicationVersion: vk.MakeApiVersion(0, 1, 0, 0),
			EngineName:         "videogen",
			EngineVersion:      vk.MakeApiVersion(0, 1, 0, 0),
			ApiVersion:         vk.ApiVersion_1_0,
		},
		EnabledExtensionNames: opts.Extensions,
	}
	if opts.Validation {
		createInfo.EnabledLayerNames = []string{validationLayer}
	}

	if version, err := vk.EnumerateInstanceVersion(); err == nil {
		logging.Logger().Debug("vulkan loader", "version", fmt.Sprintf("%d.%d.%d",
			vk.ApiVersionMajor(version), vk.ApiVersionMinor(version), vk.ApiVersionPatch(version)))
	}

	ctx.Instance, err = vk.CreateInstance(createInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	if present {
		handle, err := opts.CreateSurface(ctx.Instance.Handle())
		if err != nil {
			return nil, fmt.Errorf("failed to create surface: %w", err)
		}
		ctx.Surface = vk.NewSurfaceKHR(handle)
	}

	devices, err := ctx.Instance.EnumeratePhysicalDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate physical devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}

	found := false
	for _, pd := range devices {
		supports := func(family uint32) bool {
			if !present {
				return true
			}
			ok, err := pd.GetSurfaceSupportKHR(family, ctx.Surface)
			return err == nil && ok
		}

		family, err := SelectQueueFamily(pd.GetQueueFamilyProperties(), supports)
		if err != nil {
			continue
		}

		ctx.Physical = pd
		ctx.QueueFamily = family
		found = true
		break
	}
	if !found {
		return nil, ErrNoQueueFamily
	}

	ctx.Properties = ctx.Physical.GetProperties()
	ctx.memProps = ctx.Physical.GetMemoryProperties()
	logging.Logger().Info("selected GPU",
		"device", ctx.Properties.DeviceName,
		"queue_family", ctx.QueueFamily,
		"api", fmt.Sprintf("%d.%d.%d",
			vk.ApiVersionMajor(ctx.Properties.ApiVersion),
			vk.ApiVersionMinor(ctx.Properties.ApiVersion),
			vk.ApiVersionPatch(ctx.Properties.ApiVersion)))

	deviceInfo := &vk.DeviceCreateInfo{
		QueueCreateInfos: []vk.DeviceQueueCreateInfo{
			{
				QueueFamilyIndex: ctx.QueueFamily,
				QueuePriorities:  []float32{1.0},
			},
		},
	}
	if present {
		deviceInfo.EnabledExtensionNames = []string{vk.KHR_SWAPCHAIN_EXTENSION_NAME}
	}

	ctx.Device, err = ctx.Physical.CreateDevice(deviceInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to create logical device: %w", err)
	}

	ctx.Queue = ctx.GetQueue(ctx.QueueFamily, 0)

	ctx.pool, err = ctx.CreateCommandPool(&vk.CommandPoolCreateInfo{
		Flags:            vk.COMMAND_POOL_CREATE_RESET_COMMAND_BUFFER_BIT,
		QueueFamilyIndex: ctx.QueueFamily,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create command pool: %w", err)
	}

	if present {
		ctx.Swapchain, err = vk.CreateSwapchain(ctx.Device, ctx.Physical, ctx.Surface, opts.Width, opts.Height)
		if err != nil {
			return nil, fmt.Errorf("failed to create swapchain: %w", err)
		}
		logging.Logger().Info("swapchain created",
			"images", len(ctx.Swapchain.Images),
			"width", ctx.Swapchain.Extent.Width,
			"height", ctx.Swapchain.Extent.Height,
			"format", int32(ctx.Swapchain.Format))
	}

	ready = true
	return ctx, nil
}

// SelectQueueFamily returns the first family with graphics and compute whose
// index passes canPresent.
func SelectQueueFamily(families []vk.QueueFamilyProperties, canPresent func(family uint32) bool) (uint32, error) {
	for i, family := range families {
		if family.QueueCount == 0 {
			continue
		}
		if family.QueueFlags&RequiredQueueFlags != RequiredQueueFlags {
			continue
		}
		if canPresent != nil && !canPresent(uint32(i)) {
			continue
		}
		return uint32(i), nil
	}
	return 0, ErrNoQueueFamily
}

// CommandPool is the pool every command buffer in the program comes from.
func (c *Context) CommandPool() vk.CommandPool {
	return c.pool
}

// Headless reports whether the context was built without a swapchain.
func (c *Context) Headless() bool {
	return c.Swapchain.Swapchain == (vk.SwapchainKHR{})
}

// Destroy waits for the device and releases everything in reverse creation
// order. Calling it again does nothing.
func (c *Context) Destroy() {
	if c.Device != (vk.Device{}) {
		if err := c.Device.WaitIdle(); err != nil {
			logging.Logger().Warn("device wait idle failed during destroy", "error", err)
		}
	}

	if c.pool != (vk.CommandPool{}) {
		c.DestroyCommandPool(c.pool)
		c.pool = vk.CommandPool{}
	}
	if c.Swapchain.Swapchain != (vk.SwapchainKHR{}) {
		c.DestroySwapchainKHR(c.Swapchain.Swapchain)
		c.Swapchain = vk.SwapchainInfo{}
	}
	if c.Device != (vk.Device{}) {
		c.Device.Destroy()
		c.Device = vk.Device{}
	}
	if c.Surface != (vk.SurfaceKHR{}) {
		c.Instance.DestroySurfaceKHR(c.Surface)
		c.Surface = vk.SurfaceKHR{}
	}
	if c.Instance != (vk.Instance{}) {
		c.Instance.Destroy()
		c.Instance = vk.Instance{}
	}
}
