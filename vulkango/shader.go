// shader.go
package vulkango

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"
import "unsafe"

type ShaderModule struct {
	handle C.VkShaderModule
}

// Code must be SPIR-V: a non-empty multiple of four bytes.
type ShaderModuleCreateInfo struct {
	Code []byte
}

func (device Device) CreateShaderModule(createInfo *ShaderModuleCreateInfo) (ShaderModule, error) {
	if len(createInfo.Code) == 0 || len(createInfo.Code)%4 != 0 {
		return ShaderModule{}, INVALID_SHADER
	}

	cInfo := (*C.VkShaderModuleCreateInfo)(C.calloc(1, C.sizeof_VkShaderModuleCreateInfo))
	defer C.free(unsafe.Pointer(cInfo))

	// pCode must be 4-byte aligned; a Go []byte is not guaranteed to be.
	code := C.malloc(C.size_t(len(createInfo.Code)))
	defer C.free(code)
	C.memcpy(code, unsafe.Pointer(&createInfo.Code[0]), C.size_t(len(createInfo.Code)))

	cInfo.sType = C.VK_STRUCTURE_TYPE_SHADER_MODULE_CREATE_INFO
	cInfo.pNext = nil
	cInfo.flags = 0
	cInfo.codeSize = C.size_t(len(createInfo.Code))
	cInfo.pCode = (*C.uint32_t)(code)

	var shaderModule C.VkShaderModule
	result := C.vkCreateShaderModule(device.handle, cInfo, nil, &shaderModule)

	if result != C.VK_SUCCESS {
		return ShaderModule{}, Result(result)
	}

	return ShaderModule{handle: shaderModule}, nil
}

func (device Device) DestroyShaderModule(shaderModule ShaderModule) {
	C.vkDestroyShaderModule(device.handle, shaderModule.handle, nil)
}
