package gpu

import (
	"fmt"
	"unsafe"

	"github.com/NOT-REAL-GAMES/videogen/layout"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

// HostVisible is the property set every staging buffer needs so the CPU
// sees GPU writes without explicit flushes.
const HostVisible = vk.MEMORY_PROPERTY_HOST_VISIBLE_BIT | vk.MEMORY_PROPERTY_HOST_COHERENT_BIT

// FindMemoryTypeIn is the first-match scan behind FindMemoryType.
func FindMemoryTypeIn(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, flags vk.MemoryPropertyFlags) (uint32, error) {
	index, ok := vk.FindMemoryType(props, typeBits, flags)
	if !ok {
		return 0, fmt.Errorf("%w: type bits %#x, properties %#x", ErrNoMemoryType, typeBits, uint32(flags))
	}
	return index, nil
}

func (c *Context) FindMemoryType(typeBits uint32, flags vk.MemoryPropertyFlags) (uint32, error) {
	return FindMemoryTypeIn(c.memProps, typeBits, flags)
}

func (c *Context) allocate(reqs vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	typeIndex, err := c.FindMemoryType(reqs.MemoryTypeBits, flags)
	if err != nil {
		return vk.DeviceMemory{}, err
	}

	memory, err := c.AllocateMemory(&vk.MemoryAllocateInfo{
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	})
	if err != nil {
		return vk.DeviceMemory{}, fmt.Errorf("failed to allocate memory: %w", err)
	}
	return memory, nil
}

// CreateDeviceImage creates a single-mip 2D image in device-local memory,
// starting in UNDEFINED layout.
func (c *Context) CreateDeviceImage(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlags) (vk.Image, vk.DeviceMemory, error) {
	image, err := c.CreateImage(&vk.ImageCreateInfo{
		ImageType:     vk.IMAGE_TYPE_2D,
		Format:        format,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SAMPLE_COUNT_1_BIT,
		Tiling:        vk.IMAGE_TILING_OPTIMAL,
		Usage:         usage,
		SharingMode:   vk.SHARING_MODE_EXCLUSIVE,
		InitialLayout: vk.IMAGE_LAYOUT_UNDEFINED,
	})
	if err != nil {
		return vk.Image{}, vk.DeviceMemory{}, fmt.Errorf("failed to create image: %w", err)
	}

	memory, err := c.allocate(c.GetImageMemoryRequirements(image), vk.MEMORY_PROPERTY_DEVICE_LOCAL_BIT)
	if err != nil {
		c.DestroyImage(image)
		return vk.Image{}, vk.DeviceMemory{}, err
	}

	if err := c.BindImageMemory(image, memory, 0); err != nil {
		c.FreeMemory(memory)
		c.DestroyImage(image)
		return vk.Image{}, vk.DeviceMemory{}, fmt.Errorf("failed to bind image memory: %w", err)
	}

	return image, memory, nil
}

// CreateHostBuffer creates an exclusive buffer in host-visible, coherent
// memory.
func (c *Context) CreateHostBuffer(size uint64, usage vk.BufferUsageFlags) (vk.Buffer, vk.DeviceMemory, error) {
	buffer, err := c.CreateBuffer(&vk.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SHARING_MODE_EXCLUSIVE,
	})
	if err != nil {
		return vk.Buffer{}, vk.DeviceMemory{}, fmt.Errorf("failed to create buffer: %w", err)
	}

	memory, err := c.allocate(c.GetBufferMemoryRequirements(buffer), HostVisible)
	if err != nil {
		c.DestroyBuffer(buffer)
		return vk.Buffer{}, vk.DeviceMemory{}, err
	}

	if err := c.BindBufferMemory(buffer, memory, 0); err != nil {
		c.FreeMemory(memory)
		c.DestroyBuffer(buffer)
		return vk.Buffer{}, vk.DeviceMemory{}, fmt.Errorf("failed to bind buffer memory: %w", err)
	}

	return buffer, memory, nil
}

// ReadImage copies an RGBA8 image in GENERAL layout back to the host and
// leaves it in GENERAL.
func (c *Context) ReadImage(img vk.Image, extent vk.Extent2D) ([]byte, error) {
	size := uint64(extent.Width) * uint64(extent.Height) * 4

	buffer, memory, err := c.CreateHostBuffer(size, vk.BUFFER_USAGE_TRANSFER_DST_BIT)
	if err != nil {
		return nil, fmt.Errorf("failed to create readback buffer: %w", err)
	}
	defer c.FreeMemory(memory)
	defer c.DestroyBuffer(buffer)

	err = c.SubmitOnce(func(cmd Commands) error {
		tracker := layout.NewTracker(img, layout.General)
		if err := tracker.Transition(cmd, layout.TransferSrc); err != nil {
			return err
		}
		cmd.CopyImageToBuffer(img, vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL, buffer, []vk.BufferImageCopy{
			{
				ImageSubresource: vk.ImageSubresourceLayers{AspectMask: vk.IMAGE_ASPECT_COLOR_BIT, LayerCount: 1},
				ImageExtent:      vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
			},
		})
		return tracker.Transition(cmd, layout.General)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	ptr, err := c.MapMemory(memory, 0, size)
	if err != nil {
		return nil, fmt.Errorf("failed to map readback memory: %w", err)
	}
	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(ptr), size))
	c.UnmapMemory(memory)

	return data, nil
}
