// Package compute owns the canvas image and the compute pipeline that draws
// into it.
package compute

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/NOT-REAL-GAMES/videogen/gpu"
	"github.com/NOT-REAL-GAMES/videogen/layout"
	"github.com/NOT-REAL-GAMES/videogen/logging"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

// WorkgroupSize matches local_size_x and local_size_y of the kernel.
const WorkgroupSize = 16

// CanvasFormat is the canvas pixel format: RGBA, 8 bits per channel.
const CanvasFormat = vk.FORMAT_R8G8B8A8_UNORM

const canvasUsage = vk.IMAGE_USAGE_STORAGE_BIT | vk.IMAGE_USAGE_TRANSFER_SRC_BIT | vk.IMAGE_USAGE_TRANSFER_DST_BIT

// ClearColor is the canvas content before the first dispatch.
var ClearColor = vk.ClearColorValue{Float32: [4]float32{0, 0, 0, 1}}

var ErrInvalidShader = errors.New("invalid SPIR-V")

// Device is what the stage needs from the GPU. *gpu.Context implements it.
type Device interface {
	CreateDeviceImage(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlags) (vk.Image, vk.DeviceMemory, error)
	CreateImageView(createInfo *vk.ImageViewCreateInfo) (vk.ImageView, error)
	CreateDescriptorSetLayout(createInfo *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)
	CreateDescriptorPool(createInfo *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error)
	AllocateDescriptorSets(allocInfo *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error)
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)
	CreatePipelineLayout(createInfo *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	CreateShaderModule(createInfo *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
	CreateComputePipeline(createInfo *vk.ComputePipelineCreateInfo) (vk.Pipeline, error)
	SubmitOnce(record func(cmd gpu.Commands) error) error

	DestroyPipeline(pipeline vk.Pipeline)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	DestroyImageView(view vk.ImageView)
	DestroyImage(image vk.Image)
	FreeMemory(memory vk.DeviceMemory)
}

var _ Device = (*gpu.Context)(nil)

type Config struct {
	Width, Height uint32

	// Shader is SPIR-V for a kernel with one storage image at set 0
	// binding 0 and a float push constant.
	Shader []byte
}

// Stage is the canvas plus everything needed to dispatch the kernel on it.
// The canvas is in GENERAL layout whenever no command buffer that touches it
// is being recorded.
type Stage struct {
	dev    Device
	extent vk.Extent2D

	image  vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView

	setLayout vk.DescriptorSetLayout
	pool      vk.DescriptorPool
	set       vk.DescriptorSet

	pipelineLayout vk.PipelineLayout
	pipeline       vk.Pipeline
}

// New builds the canvas and compute pipeline and moves the canvas into
// GENERAL. Anything created before a failure is released.
func New(dev Device, cfg Config) (*Stage, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("canvas size %dx%d must be non-zero", cfg.Width, cfg.Height)
	}
	if err := ValidateSPIRV(cfg.Shader); err != nil {
		return nil, err
	}

	s := &Stage{
		dev:    dev,
		extent: vk.Extent2D{Width: cfg.Width, Height: cfg.Height},
	}
	ready := false
	defer func() {
		if !ready {
			s.Destroy()
		}
	}()

	var err error

	s.image, s.memory, err = dev.CreateDeviceImage(s.extent, CanvasFormat, canvasUsage)
	if err != nil {
		return nil, fmt.Errorf("failed to create canvas: %w", err)
	}

	s.view, err = dev.CreateImageView(&vk.ImageViewCreateInfo{
		Image:            s.image,
		ViewType:         vk.IMAGE_VIEW_TYPE_2D,
		Format:           CanvasFormat,
		SubresourceRange: layout.ColorRange,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create canvas view: %w", err)
	}

	s.setLayout, err = dev.CreateDescriptorSetLayout(&vk.DescriptorSetLayoutCreateInfo{
		Bindings: []vk.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  vk.DESCRIPTOR_TYPE_STORAGE_IMAGE,
				DescriptorCount: 1,
				StageFlags:      vk.SHADER_STAGE_COMPUTE_BIT,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create descriptor set layout: %w", err)
	}

	s.pool, err = dev.CreateDescriptorPool(&vk.DescriptorPoolCreateInfo{
		MaxSets: 1,
		PoolSizes: []vk.DescriptorPoolSize{
			{Type: vk.DESCRIPTOR_TYPE_STORAGE_IMAGE, DescriptorCount: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create descriptor pool: %w", err)
	}

	sets, err := dev.AllocateDescriptorSets(&vk.DescriptorSetAllocateInfo{
		DescriptorPool: s.pool,
		SetLayouts:     []vk.DescriptorSetLayout{s.setLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate descriptor set: %w", err)
	}
	s.set = sets[0]

	dev.UpdateDescriptorSets([]vk.WriteDescriptorSet{
		{
			DstSet:         s.set,
			DstBinding:     0,
			DescriptorType: vk.DESCRIPTOR_TYPE_STORAGE_IMAGE,
			ImageInfo: []vk.DescriptorImageInfo{
				{ImageView: s.view, ImageLayout: vk.IMAGE_LAYOUT_GENERAL},
			},
		},
	})

	s.pipelineLayout, err = dev.CreatePipelineLayout(&vk.PipelineLayoutCreateInfo{
		SetLayouts: []vk.DescriptorSetLayout{s.setLayout},
		PushConstantRanges: []vk.PushConstantRange{
			{StageFlags: vk.SHADER_STAGE_COMPUTE_BIT, Offset: 0, Size: 4},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout: %w", err)
	}

	module, err := dev.CreateShaderModule(&vk.ShaderModuleCreateInfo{Code: cfg.Shader})
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module: %w", err)
	}

	s.pipeline, err = dev.CreateComputePipeline(&vk.ComputePipelineCreateInfo{
		Stage: vk.PipelineShaderStageCreateInfo{
			Stage:  vk.SHADER_STAGE_COMPUTE_BIT,
			Module: module,
			Name:   "main",
		},
		Layout: s.pipelineLayout,
	})
	dev.DestroyShaderModule(module)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute pipeline: %w", err)
	}

	// The canvas starts as opaque black so a read before the first dispatch
	// is well defined.
	err = dev.SubmitOnce(func(cmd gpu.Commands) error {
		canvas := layout.NewTracker(s.image, layout.Undefined)
		if err := canvas.Transition(cmd, layout.TransferDst); err != nil {
			return err
		}
		cmd.ClearColorImage(s.image, vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL, ClearColor, []vk.ImageSubresourceRange{layout.ColorRange})
		return canvas.Transition(cmd, layout.General)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize canvas: %w", err)
	}

	logging.Logger().Debug("compute stage ready", "width", cfg.Width, "height", cfg.Height)

	ready = true
	return s, nil
}

// GroupCounts is the dispatch size covering a w by h image with 16x16
// workgroups.
func GroupCounts(w, h uint32) (x, y uint32) {
	return (w + WorkgroupSize - 1) / WorkgroupSize, (h + WorkgroupSize - 1) / WorkgroupSize
}

// RecordDispatch records one kernel invocation at time t. It only records;
// the canvas must be in GENERAL when the commands execute.
func (s *Stage) RecordDispatch(cmd gpu.Commands, t float32) {
	cmd.BindPipeline(vk.PIPELINE_BIND_POINT_COMPUTE, s.pipeline)
	cmd.BindDescriptorSets(vk.PIPELINE_BIND_POINT_COMPUTE, s.pipelineLayout, 0, []vk.DescriptorSet{s.set}, nil)
	cmd.CmdPushConstants(s.pipelineLayout, vk.SHADER_STAGE_COMPUTE_BIT, 0, 4, unsafe.Pointer(&t))

	x, y := GroupCounts(s.extent.Width, s.extent.Height)
	cmd.Dispatch(x, y, 1)
}

func (s *Stage) Canvas() vk.Image { return s.image }

func (s *Stage) View() vk.ImageView { return s.view }

func (s *Stage) Extent() vk.Extent2D { return s.extent }

// Destroy releases the stage in reverse dependency order. The device must be
// idle. Calling it again does nothing.
func (s *Stage) Destroy() {
	if s.pipeline != (vk.Pipeline{}) {
		s.dev.DestroyPipeline(s.pipeline)
		s.pipeline = vk.Pipeline{}
	}
	if s.pipelineLayout != (vk.PipelineLayout{}) {
		s.dev.DestroyPipelineLayout(s.pipelineLayout)
		s.pipelineLayout = vk.PipelineLayout{}
	}
	if s.pool != (vk.DescriptorPool{}) {
		s.dev.DestroyDescriptorPool(s.pool)
		s.pool = vk.DescriptorPool{}
		s.set = vk.DescriptorSet{}
	}
	if s.setLayout != (vk.DescriptorSetLayout{}) {
		s.dev.DestroyDescriptorSetLayout(s.setLayout)
		s.setLayout = vk.DescriptorSetLayout{}
	}
	if s.view != (vk.ImageView{}) {
		s.dev.DestroyImageView(s.view)
		s.view = vk.ImageView{}
	}
	if s.image != (vk.Image{}) {
		s.dev.DestroyImage(s.image)
		s.image = vk.Image{}
	}
	if s.memory != (vk.DeviceMemory{}) {
		s.dev.FreeMemory(s.memory)
		s.memory = vk.DeviceMemory{}
	}
}
