// types.go
package vulkango

/*
#include <vulkan/vulkan.h>
*/
import "C"

import "fmt"

type Result int32

const (
	SUCCESS                     Result = C.VK_SUCCESS
	NOT_READY                   Result = C.VK_NOT_READY
	TIMEOUT                     Result = C.VK_TIMEOUT
	INCOMPLETE                  Result = C.VK_INCOMPLETE
	OUT_OF_HOST_MEMORY          Result = C.VK_ERROR_OUT_OF_HOST_MEMORY
	OUT_OF_DEVICE_MEMORY        Result = C.VK_ERROR_OUT_OF_DEVICE_MEMORY
	INITIALIZATION_FAILED       Result = C.VK_ERROR_INITIALIZATION_FAILED
	DEVICE_LOST                 Result = C.VK_ERROR_DEVICE_LOST
	MEMORY_MAP_FAILED           Result = C.VK_ERROR_MEMORY_MAP_FAILED
	LAYER_NOT_PRESENT           Result = C.VK_ERROR_LAYER_NOT_PRESENT
	EXTENSION_NOT_PRESENT       Result = C.VK_ERROR_EXTENSION_NOT_PRESENT
	FEATURE_NOT_PRESENT         Result = C.VK_ERROR_FEATURE_NOT_PRESENT
	INCOMPATIBLE_DRIVER         Result = C.VK_ERROR_INCOMPATIBLE_DRIVER
	TOO_MANY_OBJECTS            Result = C.VK_ERROR_TOO_MANY_OBJECTS
	FORMAT_NOT_SUPPORTED        Result = C.VK_ERROR_FORMAT_NOT_SUPPORTED
	FRAGMENTED_POOL             Result = C.VK_ERROR_FRAGMENTED_POOL
	UNKNOWN                     Result = C.VK_ERROR_UNKNOWN
	OUT_OF_POOL_MEMORY          Result = C.VK_ERROR_OUT_OF_POOL_MEMORY
	SURFACE_LOST                Result = C.VK_ERROR_SURFACE_LOST_KHR
	NATIVE_WINDOW_IN_USE        Result = C.VK_ERROR_NATIVE_WINDOW_IN_USE_KHR
	SUBOPTIMAL                  Result = C.VK_SUBOPTIMAL_KHR
	OUT_OF_DATE                 Result = C.VK_ERROR_OUT_OF_DATE_KHR
	VALIDATION_FAILED           Result = -1000011001
	INVALID_SHADER              Result = -1000012000
	FULL_SCREEN_EXCLUSIVE_LOST  Result = -1000255000
	PIPELINE_COMPILE_REQUIRED   Result = 1000297000
	IMAGE_USAGE_NOT_SUPPORTED   Result = -1000023000
	INCOMPATIBLE_DISPLAY        Result = -1000003001
	INVALID_EXTERNAL_HANDLE     Result = -1000072003
	INVALID_OPAQUE_CAPTURE_ADDR Result = -1000257000
)

func (r Result) Error() string {
	switch r {
	case SUCCESS:
		return "SUCCESS"
	case NOT_READY:
		return "NOT READY"
	case TIMEOUT:
		return "TIMEOUT"
	case INCOMPLETE:
		return "INCOMPLETE"
	case OUT_OF_HOST_MEMORY:
		return "OUT OF HOST MEMORY"
	case OUT_OF_DEVICE_MEMORY:
		return "OUT OF DEVICE MEMORY"
	case INITIALIZATION_FAILED:
		return "INITIALIZATION FAILED"
	case DEVICE_LOST:
		return "DEVICE LOST"
	case MEMORY_MAP_FAILED:
		return "MEMORY MAP FAILED"
	case LAYER_NOT_PRESENT:
		return "LAYER NOT PRESENT"
	case EXTENSION_NOT_PRESENT:
		return "EXTENSION NOT PRESENT"
	case FEATURE_NOT_PRESENT:
		return "FEATURE NOT PRESENT"
	case INCOMPATIBLE_DRIVER:
		return "INCOMPATIBLE DRIVER"
	case TOO_MANY_OBJECTS:
		return "TOO MANY OBJECTS"
	case FORMAT_NOT_SUPPORTED:
		return "FORMAT NOT SUPPORTED"
	case FRAGMENTED_POOL:
		return "FRAGMENTED POOL"
	case UNKNOWN:
		return "UNKNOWN"
	case OUT_OF_POOL_MEMORY:
		return "OUT OF POOL MEMORY"
	case SURFACE_LOST:
		return "SURFACE LOST"
	case NATIVE_WINDOW_IN_USE:
		return "NATIVE WINDOW IN USE"
	case SUBOPTIMAL:
		return "SUBOPTIMAL"
	case OUT_OF_DATE:
		return "OUT OF DATE"
	case VALIDATION_FAILED:
		return "VALIDATION FAILED"
	case INVALID_SHADER:
		return "INVALID SHADER"
	case FULL_SCREEN_EXCLUSIVE_LOST:
		return "FULL SCREEN EXCLUSIVE MODE LOST"
	case PIPELINE_COMPILE_REQUIRED:
		return "PIPELINE COMPILE REQUIRED"
	case IMAGE_USAGE_NOT_SUPPORTED:
		return "IMAGE USAGE NOT SUPPORTED"
	case INCOMPATIBLE_DISPLAY:
		return "INCOMPATIBLE DISPLAY"
	case INVALID_EXTERNAL_HANDLE:
		return "INVALID EXTERNAL HANDLE"
	case INVALID_OPAQUE_CAPTURE_ADDR:
		return "INVALID OPAQUE CAPTURE ADDRESS"
	default:
		return fmt.Sprintf("VkResult(%d)", r)
	}
}

// Stale reports whether the result means the surface no longer matches the
// swapchain. The image (if any) may still be presented.
func (r Result) Stale() bool {
	return r == SUBOPTIMAL || r == OUT_OF_DATE
}

// Handles
type Instance struct {
	handle C.VkInstance
}

type PhysicalDevice struct {
	handle C.VkPhysicalDevice
}

type Device struct {
	handle C.VkDevice
}

type Queue struct {
	handle C.VkQueue
}

type Image struct {
	handle C.VkImage
}

type ImageView struct {
	handle C.VkImageView
}

type Pipeline struct {
	handle C.VkPipeline
}

type PipelineLayout struct {
	handle C.VkPipelineLayout
}

type DescriptorSetLayout struct {
	handle C.VkDescriptorSetLayout
}

type SurfaceKHR struct {
	handle C.VkSurfaceKHR
}

type SwapchainKHR struct {
	handle C.VkSwapchainKHR
}

// Geometry
type Extent2D struct {
	Width  uint32
	Height uint32
}

type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

type Offset3D struct {
	X int32
	Y int32
	Z int32
}

type Format int32

const (
	FORMAT_UNDEFINED      Format = C.VK_FORMAT_UNDEFINED
	FORMAT_R8G8B8A8_UNORM Format = C.VK_FORMAT_R8G8B8A8_UNORM
	FORMAT_R8G8B8A8_SRGB  Format = C.VK_FORMAT_R8G8B8A8_SRGB
	FORMAT_B8G8R8A8_UNORM Format = C.VK_FORMAT_B8G8R8A8_UNORM
	FORMAT_B8G8R8A8_SRGB  Format = C.VK_FORMAT_B8G8R8A8_SRGB
)

type QueueFlags uint32

const (
	QUEUE_GRAPHICS_BIT QueueFlags = C.VK_QUEUE_GRAPHICS_BIT
	QUEUE_COMPUTE_BIT  QueueFlags = C.VK_QUEUE_COMPUTE_BIT
	QUEUE_TRANSFER_BIT QueueFlags = C.VK_QUEUE_TRANSFER_BIT
)

type QueueFamilyProperties struct {
	QueueFlags                  QueueFlags
	QueueCount                  uint32
	TimestampValidBits          uint32
	MinImageTransferGranularity Extent3D
}

type ShaderStageFlags uint32

const (
	SHADER_STAGE_VERTEX_BIT   ShaderStageFlags = C.VK_SHADER_STAGE_VERTEX_BIT
	SHADER_STAGE_FRAGMENT_BIT ShaderStageFlags = C.VK_SHADER_STAGE_FRAGMENT_BIT
	SHADER_STAGE_COMPUTE_BIT  ShaderStageFlags = C.VK_SHADER_STAGE_COMPUTE_BIT
)

type ImageUsageFlags uint32

const (
	IMAGE_USAGE_TRANSFER_SRC_BIT     ImageUsageFlags = C.VK_IMAGE_USAGE_TRANSFER_SRC_BIT
	IMAGE_USAGE_TRANSFER_DST_BIT     ImageUsageFlags = C.VK_IMAGE_USAGE_TRANSFER_DST_BIT
	IMAGE_USAGE_SAMPLED_BIT          ImageUsageFlags = C.VK_IMAGE_USAGE_SAMPLED_BIT
	IMAGE_USAGE_STORAGE_BIT          ImageUsageFlags = C.VK_IMAGE_USAGE_STORAGE_BIT
	IMAGE_USAGE_COLOR_ATTACHMENT_BIT ImageUsageFlags = C.VK_IMAGE_USAGE_COLOR_ATTACHMENT_BIT
)

type ImageAspectFlags uint32

const (
	IMAGE_ASPECT_COLOR_BIT ImageAspectFlags = C.VK_IMAGE_ASPECT_COLOR_BIT
)

type ImageSubresourceRange struct {
	AspectMask     ImageAspectFlags
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

type ImageSubresourceLayers struct {
	AspectMask     ImageAspectFlags
	MipLevel       uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

type SampleCountFlags uint32

const (
	SAMPLE_COUNT_1_BIT SampleCountFlags = C.VK_SAMPLE_COUNT_1_BIT
)

type ImageCreateFlags uint32

// QUEUE_FAMILY_IGNORED for barriers that do not transfer queue ownership.
const QUEUE_FAMILY_IGNORED = ^uint32(0)

// WHOLE_SIZE maps the remainder of an allocation.
const WHOLE_SIZE = ^uint64(0)

// API versions
const (
	ApiVersion_1_0 = uint32(1<<22 | 0<<12)
	ApiVersion_1_1 = uint32(1<<22 | 1<<12)
	ApiVersion_1_2 = uint32(1<<22 | 2<<12)
	ApiVersion_1_3 = uint32(1<<22 | 3<<12)
)

func MakeApiVersion(variant, major, minor, patch uint32) uint32 {
	return variant<<29 | major<<22 | minor<<12 | patch
}

func ApiVersionMajor(version uint32) uint32 {
	return (version >> 22) & 0x7F
}

func ApiVersionMinor(version uint32) uint32 {
	return (version >> 12) & 0x3FF
}

func ApiVersionPatch(version uint32) uint32 {
	return version & 0xFFF
}
