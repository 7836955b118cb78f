// pipeline.go
package vulkango

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"
import "unsafe"

type PushConstantRange struct {
	StageFlags ShaderStageFlags
	Offset     uint32
	Size       uint32
}

type PipelineLayoutCreateInfo struct {
	SetLayouts         []DescriptorSetLayout
	PushConstantRanges []PushConstantRange
}

type PipelineShaderStageCreateInfo struct {
	Stage  ShaderStageFlags
	Module ShaderModule
	Name   string
}

type ComputePipelineCreateInfo struct {
	Stage  PipelineShaderStageCreateInfo
	Layout PipelineLayout
}

type pipelineLayoutData struct {
	cInfo  *C.VkPipelineLayoutCreateInfo
	sets   *C.VkDescriptorSetLayout
	ranges *C.VkPushConstantRange
}

func (info *PipelineLayoutCreateInfo) vulkanize() *pipelineLayoutData {
	data := &pipelineLayoutData{}

	data.cInfo = (*C.VkPipelineLayoutCreateInfo)(C.calloc(1, C.sizeof_VkPipelineLayoutCreateInfo))
	data.cInfo.sType = C.VK_STRUCTURE_TYPE_PIPELINE_LAYOUT_CREATE_INFO
	data.cInfo.pNext = nil
	data.cInfo.flags = 0

	if n := len(info.SetLayouts); n > 0 {
		data.sets = (*C.VkDescriptorSetLayout)(C.calloc(C.size_t(n), C.sizeof_VkDescriptorSetLayout))
		sets := unsafe.Slice(data.sets, n)
		for i, layout := range info.SetLayouts {
			sets[i] = layout.handle
		}
		data.cInfo.setLayoutCount = C.uint32_t(n)
		data.cInfo.pSetLayouts = data.sets
	}

	if n := len(info.PushConstantRanges); n > 0 {
		data.ranges = (*C.VkPushConstantRange)(C.calloc(C.size_t(n), C.sizeof_VkPushConstantRange))
		ranges := unsafe.Slice(data.ranges, n)
		for i, r := range info.PushConstantRanges {
			ranges[i].stageFlags = C.VkShaderStageFlags(r.StageFlags)
			ranges[i].offset = C.uint32_t(r.Offset)
			ranges[i].size = C.uint32_t(r.Size)
		}
		data.cInfo.pushConstantRangeCount = C.uint32_t(n)
		data.cInfo.pPushConstantRanges = data.ranges
	}

	return data
}

func (data *pipelineLayoutData) free() {
	if data.sets != nil {
		C.free(unsafe.Pointer(data.sets))
	}
	if data.ranges != nil {
		C.free(unsafe.Pointer(data.ranges))
	}
	if data.cInfo != nil {
		C.free(unsafe.Pointer(data.cInfo))
	}
}

// Pipeline Layout
func (device Device) CreatePipelineLayout(createInfo *PipelineLayoutCreateInfo) (PipelineLayout, error) {
	data := createInfo.vulkanize()
	defer data.free()

	var layout C.VkPipelineLayout
	result := C.vkCreatePipelineLayout(device.handle, data.cInfo, nil, &layout)

	if result != C.VK_SUCCESS {
		return PipelineLayout{}, Result(result)
	}

	return PipelineLayout{handle: layout}, nil
}

func (device Device) DestroyPipelineLayout(layout PipelineLayout) {
	C.vkDestroyPipelineLayout(device.handle, layout.handle, nil)
}

func (device Device) DestroyPipeline(pipeline Pipeline) {
	C.vkDestroyPipeline(device.handle, pipeline.handle, nil)
}

// Compute Pipeline
type computePipelineData struct {
	cInfo     *C.VkComputePipelineCreateInfo
	entryName *C.char
}

func (info *ComputePipelineCreateInfo) vulkanize() *computePipelineData {
	data := &computePipelineData{}

	data.cInfo = (*C.VkComputePipelineCreateInfo)(C.calloc(1, C.sizeof_VkComputePipelineCreateInfo))
	data.cInfo.sType = C.VK_STRUCTURE_TYPE_COMPUTE_PIPELINE_CREATE_INFO
	data.cInfo.pNext = nil
	data.cInfo.flags = 0

	data.entryName = C.CString(info.Stage.Name)
	data.cInfo.stage.sType = C.VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO
	data.cInfo.stage.pNext = nil
	data.cInfo.stage.flags = 0
	data.cInfo.stage.stage = C.VkShaderStageFlagBits(info.Stage.Stage)
	data.cInfo.stage.module = info.Stage.Module.handle
	data.cInfo.stage.pName = data.entryName
	data.cInfo.stage.pSpecializationInfo = nil

	data.cInfo.layout = info.Layout.handle
	data.cInfo.basePipelineHandle = nil
	data.cInfo.basePipelineIndex = -1

	return data
}

func (data *computePipelineData) free() {
	if data.entryName != nil {
		C.free(unsafe.Pointer(data.entryName))
	}
	if data.cInfo != nil {
		C.free(unsafe.Pointer(data.cInfo))
	}
}

func (device Device) CreateComputePipeline(createInfo *ComputePipelineCreateInfo) (Pipeline, error) {
	data := createInfo.vulkanize()
	defer data.free()

	var pipeline C.VkPipeline
	result := C.vkCreateComputePipelines(device.handle, nil, 1, data.cInfo, nil, &pipeline)

	if result != C.VK_SUCCESS {
		return Pipeline{}, Result(result)
	}

	return Pipeline{handle: pipeline}, nil
}
