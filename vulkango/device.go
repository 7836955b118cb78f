// device.go
package vulkango

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"
import "unsafe"

type DeviceQueueCreateInfo struct {
	QueueFamilyIndex uint32
	QueuePriorities  []float32
}

type DeviceCreateInfo struct {
	QueueCreateInfos      []DeviceQueueCreateInfo
	EnabledLayerNames     []string
	EnabledExtensionNames []string
}

const KHR_SWAPCHAIN_EXTENSION_NAME = "VK_KHR_swapchain"

func (physicalDevice PhysicalDevice) GetQueueFamilyProperties() []QueueFamilyProperties {
	var count C.uint32_t
	C.vkGetPhysicalDeviceQueueFamilyProperties(physicalDevice.handle, &count, nil)

	if count == 0 {
		return nil
	}

	props := make([]C.VkQueueFamilyProperties, count)
	C.vkGetPhysicalDeviceQueueFamilyProperties(physicalDevice.handle, &count, &props[0])

	goProps := make([]QueueFamilyProperties, count)
	for i := range goProps {
		goProps[i] = QueueFamilyProperties{
			QueueFlags:         QueueFlags(props[i].queueFlags),
			QueueCount:         uint32(props[i].queueCount),
			TimestampValidBits: uint32(props[i].timestampValidBits),
			MinImageTransferGranularity: Extent3D{
				Width:  uint32(props[i].minImageTransferGranularity.width),
				Height: uint32(props[i].minImageTransferGranularity.height),
				Depth:  uint32(props[i].minImageTransferGranularity.depth),
			},
		}
	}

	return goProps
}

func (physicalDevice PhysicalDevice) GetSurfaceSupportKHR(queueFamilyIndex uint32, surface SurfaceKHR) (bool, error) {
	var supported C.VkBool32
	result := C.vkGetPhysicalDeviceSurfaceSupportKHR(
		physicalDevice.handle,
		C.uint32_t(queueFamilyIndex),
		surface.handle,
		&supported,
	)

	if result != C.VK_SUCCESS {
		return false, Result(result)
	}

	return supported == C.VK_TRUE, nil
}

type deviceCreateData struct {
	cInfo            *C.VkDeviceCreateInfo
	queueCreateInfos *C.VkDeviceQueueCreateInfo
	priorities       []*C.float
	layers           []*C.char
	extensions       []*C.char
}

func (info *DeviceCreateInfo) vulkanize() *deviceCreateData {
	data := &deviceCreateData{}

	data.cInfo = (*C.VkDeviceCreateInfo)(C.calloc(1, C.sizeof_VkDeviceCreateInfo))
	data.cInfo.sType = C.VK_STRUCTURE_TYPE_DEVICE_CREATE_INFO
	data.cInfo.pNext = nil

	if n := len(info.QueueCreateInfos); n > 0 {
		data.queueCreateInfos = (*C.VkDeviceQueueCreateInfo)(C.calloc(C.size_t(n), C.sizeof_VkDeviceQueueCreateInfo))
		queueInfos := unsafe.Slice(data.queueCreateInfos, n)

		for i, queueInfo := range info.QueueCreateInfos {
			queueInfos[i].sType = C.VK_STRUCTURE_TYPE_DEVICE_QUEUE_CREATE_INFO
			queueInfos[i].pNext = nil
			queueInfos[i].flags = 0
			queueInfos[i].queueFamilyIndex = C.uint32_t(queueInfo.QueueFamilyIndex)
			queueInfos[i].queueCount = C.uint32_t(len(queueInfo.QueuePriorities))

			pri := (*C.float)(C.calloc(C.size_t(len(queueInfo.QueuePriorities)), C.size_t(unsafe.Sizeof(C.float(0)))))
			for j, p := range queueInfo.QueuePriorities {
				unsafe.Slice(pri, len(queueInfo.QueuePriorities))[j] = C.float(p)
			}
			data.priorities = append(data.priorities, pri)
			queueInfos[i].pQueuePriorities = pri
		}

		data.cInfo.queueCreateInfoCount = C.uint32_t(n)
		data.cInfo.pQueueCreateInfos = data.queueCreateInfos
	}

	if len(info.EnabledLayerNames) > 0 {
		data.layers = cStringArray(info.EnabledLayerNames)
		data.cInfo.enabledLayerCount = C.uint32_t(len(data.layers))
		data.cInfo.ppEnabledLayerNames = &data.layers[0]
	}

	if len(info.EnabledExtensionNames) > 0 {
		data.extensions = cStringArray(info.EnabledExtensionNames)
		data.cInfo.enabledExtensionCount = C.uint32_t(len(data.extensions))
		data.cInfo.ppEnabledExtensionNames = &data.extensions[0]
	}

	data.cInfo.pEnabledFeatures = nil

	return data
}

func (data *deviceCreateData) free() {
	freeCStringArray(data.layers)
	freeCStringArray(data.extensions)

	for _, p := range data.priorities {
		C.free(unsafe.Pointer(p))
	}

	if data.queueCreateInfos != nil {
		C.free(unsafe.Pointer(data.queueCreateInfos))
	}

	if data.cInfo != nil {
		C.free(unsafe.Pointer(data.cInfo))
	}
}

func (physicalDevice PhysicalDevice) CreateDevice(createInfo *DeviceCreateInfo) (Device, error) {
	data := createInfo.vulkanize()
	defer data.free()

	var device C.VkDevice
	result := C.vkCreateDevice(physicalDevice.handle, data.cInfo, nil, &device)

	if result != C.VK_SUCCESS {
		return Device{}, Result(result)
	}

	return Device{handle: device}, nil
}

func (device Device) Destroy() {
	C.vkDestroyDevice(device.handle, nil)
}

func (device Device) WaitIdle() error {
	result := C.vkDeviceWaitIdle(device.handle)
	if result != C.VK_SUCCESS {
		return Result(result)
	}
	return nil
}

func (device Device) GetQueue(queueFamilyIndex, queueIndex uint32) Queue {
	var queue C.VkQueue
	C.vkGetDeviceQueue(device.handle, C.uint32_t(queueFamilyIndex), C.uint32_t(queueIndex), &queue)
	return Queue{handle: queue}
}
