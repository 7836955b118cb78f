package gpu

import (
	"unsafe"

	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

// Commands is the recording surface of a command buffer. vk.CommandBuffer
// implements it; tests substitute a recorder.
type Commands interface {
	Begin(beginInfo *vk.CommandBufferBeginInfo) error
	End() error
	Reset(flags uint32) error

	PipelineBarrier(srcStageMask, dstStageMask vk.PipelineStageFlags, dependencyFlags uint32, imageMemoryBarriers []vk.ImageMemoryBarrier)
	CopyImage(srcImage vk.Image, srcImageLayout vk.ImageLayout, dstImage vk.Image, dstImageLayout vk.ImageLayout, regions []vk.ImageCopy)
	CopyImageToBuffer(srcImage vk.Image, srcImageLayout vk.ImageLayout, dstBuffer vk.Buffer, regions []vk.BufferImageCopy)
	ClearColorImage(image vk.Image, imageLayout vk.ImageLayout, color vk.ClearColorValue, ranges []vk.ImageSubresourceRange)

	BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, descriptorSets []vk.DescriptorSet, dynamicOffsets []uint32)
	CmdPushConstants(layout vk.PipelineLayout, stageFlags vk.ShaderStageFlags, offset, size uint32, pValues unsafe.Pointer)
	Dispatch(groupCountX, groupCountY, groupCountZ uint32)
}

var _ Commands = vk.CommandBuffer{}
