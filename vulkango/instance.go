package vulkango

// #cgo windows LDFLAGS: -LC:/VulkanSDK/1.4.328.1/Lib -lvulkan-1
// #cgo windows CFLAGS: -IC:/VulkanSDK/1.4.328.1/Include
// #cgo linux LDFLAGS: -L/usr/lib/x86_64-linux-gnu -lvulkan
// #cgo darwin LDFLAGS: -lvulkan
// #include <vulkan/vulkan.h>
// #include <stdlib.h>
import "C"
import "unsafe"

type ApplicationInfo struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	ApiVersion         uint32
}

type InstanceCreateInfo struct {
	Flags                 uint32
	ApplicationInfo       *ApplicationInfo
	EnabledLayerNames     []string
	EnabledExtensionNames []string
}

type PhysicalDeviceType int32

const (
	PHYSICAL_DEVICE_TYPE_OTHER          PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_OTHER
	PHYSICAL_DEVICE_TYPE_INTEGRATED_GPU PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_INTEGRATED_GPU
	PHYSICAL_DEVICE_TYPE_DISCRETE_GPU   PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU
	PHYSICAL_DEVICE_TYPE_VIRTUAL_GPU    PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_VIRTUAL_GPU
	PHYSICAL_DEVICE_TYPE_CPU            PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_CPU
)

type PhysicalDeviceProperties struct {
	ApiVersion    uint32
	DriverVersion uint32
	VendorID      uint32
	DeviceID      uint32
	DeviceType    PhysicalDeviceType
	DeviceName    string
}

func EnumerateInstanceVersion() (uint32, error) {
	var version C.uint32_t
	result := C.vkEnumerateInstanceVersion(&version)

	if result != C.VK_SUCCESS {
		return 0, Result(result)
	}

	return uint32(version), nil
}

type instanceCreateData struct {
	cInfo      *C.VkInstanceCreateInfo
	appInfo    *C.VkApplicationInfo
	strings    []*C.char
	layers     []*C.char
	extensions []*C.char
}

func (info *InstanceCreateInfo) vulkanize() *instanceCreateData {
	data := &instanceCreateData{}

	data.cInfo = (*C.VkInstanceCreateInfo)(C.calloc(1, C.sizeof_VkInstanceCreateInfo))
	data.cInfo.sType = C.VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO
	data.cInfo.pNext = nil
	data.cInfo.flags = C.VkInstanceCreateFlags(info.Flags)

	if app := info.ApplicationInfo; app != nil {
		data.appInfo = (*C.VkApplicationInfo)(C.calloc(1, C.sizeof_VkApplicationInfo))
		data.appInfo.sType = C.VK_STRUCTURE_TYPE_APPLICATION_INFO
		data.appInfo.pNext = nil
		if app.ApplicationName != "" {
			name := C.CString(app.ApplicationName)
			data.strings = append(data.strings, name)
			data.appInfo.pApplicationName = name
		}
		data.appInfo.applicationVersion = C.uint32_t(app.ApplicationVersion)
		if app.EngineName != "" {
			name := C.CString(app.EngineName)
			data.strings = append(data.strings, name)
			data.appInfo.pEngineName = name
		}
		data.appInfo.engineVersion = C.uint32_t(app.EngineVersion)
		data.appInfo.apiVersion = C.uint32_t(app.ApiVersion)
		data.cInfo.pApplicationInfo = data.appInfo
	}

	// Layers and extensions live in C memory; the arrays of pointers are
	// read by the loader only during vkCreateInstance.
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

	return data
}

func (data *instanceCreateData) free() {
	for _, s := range data.strings {
		C.free(unsafe.Pointer(s))
	}
	freeCStringArray(data.layers)
	freeCStringArray(data.extensions)
	if data.appInfo != nil {
		C.free(unsafe.Pointer(data.appInfo))
	}
	if data.cInfo != nil {
		C.free(unsafe.Pointer(data.cInfo))
	}
}

// The pointer arrays themselves are C allocations so that cgo's pointer
// checks accept them inside the create info.
func cStringArray(values []string) []*C.char {
	arr := (*[1 << 20]*C.char)(C.calloc(C.size_t(len(values)), C.size_t(unsafe.Sizeof((*C.char)(nil)))))[:len(values):len(values)]
	for i, v := range values {
		arr[i] = C.CString(v)
	}
	return arr
}

func freeCStringArray(arr []*C.char) {
	if len(arr) == 0 {
		return
	}
	for _, s := range arr {
		C.free(unsafe.Pointer(s))
	}
	C.free(unsafe.Pointer(&arr[0]))
}

func CreateInstance(createInfo *InstanceCreateInfo) (Instance, error) {
	data := createInfo.vulkanize()
	defer data.free()

	var instance C.VkInstance
	result := C.vkCreateInstance(data.cInfo, nil, &instance)

	if result != C.VK_SUCCESS {
		return Instance{}, Result(result)
	}

	return Instance{handle: instance}, nil
}

func (instance Instance) Destroy() {
	C.vkDestroyInstance(instance.handle, nil)
}

func (instance Instance) EnumeratePhysicalDevices() ([]PhysicalDevice, error) {
	var count C.uint32_t
	result := C.vkEnumeratePhysicalDevices(instance.handle, &count, nil)
	if result != C.VK_SUCCESS {
		return nil, Result(result)
	}
	if count == 0 {
		return nil, nil
	}

	handles := make([]C.VkPhysicalDevice, count)
	result = C.vkEnumeratePhysicalDevices(instance.handle, &count, &handles[0])
	if result != C.VK_SUCCESS && result != C.VK_INCOMPLETE {
		return nil, Result(result)
	}

	devices := make([]PhysicalDevice, count)
	for i := range devices {
		devices[i] = PhysicalDevice{handle: handles[i]}
	}
	return devices, nil
}

func (physicalDevice PhysicalDevice) GetProperties() PhysicalDeviceProperties {
	var props C.VkPhysicalDeviceProperties
	C.vkGetPhysicalDeviceProperties(physicalDevice.handle, &props)

	return PhysicalDeviceProperties{
		ApiVersion:    uint32(props.apiVersion),
		DriverVersion: uint32(props.driverVersion),
		VendorID:      uint32(props.vendorID),
		DeviceID:      uint32(props.deviceID),
		DeviceType:    PhysicalDeviceType(props.deviceType),
		DeviceName:    C.GoString(&props.deviceName[0]),
	}
}
