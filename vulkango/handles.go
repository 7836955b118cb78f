// handles.go
package vulkango

/*
#include <stdlib.h>
#include <vulkan/vulkan.h>
*/
import "C"
import "unsafe"

// Raw handle wrapping. The window layer hands us a surface created outside
// this package, and tests use sentinels to tell handles apart.
// All non-dispatchable handles are pointers on 64-bit targets.

// SentinelHandle returns a distinct pointer outside the Go heap for building
// fake handles. Handle types are C pointers the garbage collector does not
// trace, so Go memory must never be stored in them. The cell is never freed.
func SentinelHandle() unsafe.Pointer {
	return C.malloc(1)
}

// Wrap SDL's surface in our type
func NewSurfaceKHR(handle unsafe.Pointer) SurfaceKHR {
	return SurfaceKHR{handle: C.VkSurfaceKHR(handle)}
}

func NewFence(handle unsafe.Pointer) Fence {
	return Fence{handle: C.VkFence(handle)}
}

func NewSemaphore(handle unsafe.Pointer) Semaphore {
	return Semaphore{handle: C.VkSemaphore(handle)}
}

func NewImage(handle unsafe.Pointer) Image {
	return Image{handle: C.VkImage(handle)}
}

func NewBuffer(handle unsafe.Pointer) Buffer {
	return Buffer{handle: C.VkBuffer(handle)}
}

func NewDeviceMemory(handle unsafe.Pointer) DeviceMemory {
	return DeviceMemory{handle: C.VkDeviceMemory(handle)}
}

func NewCommandBuffer(handle unsafe.Pointer) CommandBuffer {
	return CommandBuffer{handle: C.VkCommandBuffer(handle)}
}

func NewSwapchainKHR(handle unsafe.Pointer) SwapchainKHR {
	return SwapchainKHR{handle: C.VkSwapchainKHR(handle)}
}

func NewImageView(handle unsafe.Pointer) ImageView {
	return ImageView{handle: C.VkImageView(handle)}
}

func NewPipeline(handle unsafe.Pointer) Pipeline {
	return Pipeline{handle: C.VkPipeline(handle)}
}

func NewPipelineLayout(handle unsafe.Pointer) PipelineLayout {
	return PipelineLayout{handle: C.VkPipelineLayout(handle)}
}

func NewDescriptorSetLayout(handle unsafe.Pointer) DescriptorSetLayout {
	return DescriptorSetLayout{handle: C.VkDescriptorSetLayout(handle)}
}

func NewDescriptorPool(handle unsafe.Pointer) DescriptorPool {
	return DescriptorPool{handle: C.VkDescriptorPool(handle)}
}

func NewDescriptorSet(handle unsafe.Pointer) DescriptorSet {
	return DescriptorSet{handle: C.VkDescriptorSet(handle)}
}

func NewShaderModule(handle unsafe.Pointer) ShaderModule {
	return ShaderModule{handle: C.VkShaderModule(handle)}
}

func NewCommandPool(handle unsafe.Pointer) CommandPool {
	return CommandPool{handle: C.VkCommandPool(handle)}
}

func (instance Instance) Handle() unsafe.Pointer {
	return unsafe.Pointer(instance.handle)
}

func (surface SurfaceKHR) Handle() unsafe.Pointer {
	return unsafe.Pointer(surface.handle)
}

func (fence Fence) Handle() unsafe.Pointer {
	return unsafe.Pointer(fence.handle)
}

func (semaphore Semaphore) Handle() unsafe.Pointer {
	return unsafe.Pointer(semaphore.handle)
}

func (image Image) Handle() unsafe.Pointer {
	return unsafe.Pointer(image.handle)
}

func (buffer Buffer) Handle() unsafe.Pointer {
	return unsafe.Pointer(buffer.handle)
}

func (cmd CommandBuffer) Handle() unsafe.Pointer {
	return unsafe.Pointer(cmd.handle)
}
