// Package gputest has recording fakes for code that drives the GPU through
// gpu.Commands and the device calls of the compute stage.
package gputest

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/NOT-REAL-GAMES/videogen/gpu"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

// Handle returns a fresh non-nil pointer for building fake handles. Every
// call returns a distinct value that stays valid for the whole test binary.
func Handle() unsafe.Pointer {
	return vk.SentinelHandle()
}

func Image() vk.Image { return vk.NewImage(Handle()) }

func Buffer() vk.Buffer { return vk.NewBuffer(Handle()) }

func Memory() vk.DeviceMemory { return vk.NewDeviceMemory(Handle()) }

// Call is one recorded command. Only the fields relevant to Op are set.
type Call struct {
	Op string

	SrcStage, DstStage vk.PipelineStageFlags
	Barriers           []vk.ImageMemoryBarrier

	Src, Dst               vk.Image
	SrcLayout, DstLayout   vk.ImageLayout
	Buffer                 vk.Buffer
	ImageCopies            []vk.ImageCopy
	BufferCopies           []vk.BufferImageCopy
	Pipeline               vk.Pipeline
	PipelineLayout         vk.PipelineLayout
	Sets                   []vk.DescriptorSet
	Push                   []byte
	Color                  vk.ClearColorValue
	GroupX, GroupY, GroupZ uint32
}

// PushFloat decodes a 4-byte push constant.
func (c Call) PushFloat() float32 {
	if len(c.Push) < 4 {
		return 0
	}
	return *(*float32)(unsafe.Pointer(&c.Push[0]))
}

// Recorder implements gpu.Commands and keeps every call in order.
type Recorder struct {
	Calls []Call

	BeginErr error
	EndErr   error
}

var _ gpu.Commands = (*Recorder)(nil)

func (r *Recorder) Begin(*vk.CommandBufferBeginInfo) error {
	r.Calls = append(r.Calls, Call{Op: "begin"})
	return r.BeginErr
}

func (r *Recorder) End() error {
	r.Calls = append(r.Calls, Call{Op: "end"})
	return r.EndErr
}

func (r *Recorder) Reset(uint32) error {
	r.Calls = append(r.Calls, Call{Op: "reset"})
	return nil
}

func (r *Recorder) PipelineBarrier(src, dst vk.PipelineStageFlags, _ uint32, barriers []vk.ImageMemoryBarrier) {
	r.Calls = append(r.Calls, Call{
		Op:       "barrier",
		SrcStage: src,
		DstStage: dst,
		Barriers: append([]vk.ImageMemoryBarrier(nil), barriers...),
	})
}

func (r *Recorder) CopyImage(src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageCopy) {
	r.Calls = append(r.Calls, Call{
		Op:          "copy_image",
		Src:         src,
		SrcLayout:   srcLayout,
		Dst:         dst,
		DstLayout:   dstLayout,
		ImageCopies: append([]vk.ImageCopy(nil), regions...),
	})
}

func (r *Recorder) CopyImageToBuffer(src vk.Image, srcLayout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy) {
	r.Calls = append(r.Calls, Call{
		Op:           "copy_image_to_buffer",
		Src:          src,
		SrcLayout:    srcLayout,
		Buffer:       dst,
		BufferCopies: append([]vk.BufferImageCopy(nil), regions...),
	})
}

func (r *Recorder) ClearColorImage(image vk.Image, imageLayout vk.ImageLayout, color vk.ClearColorValue, _ []vk.ImageSubresourceRange) {
	r.Calls = append(r.Calls, Call{Op: "clear", Dst: image, DstLayout: imageLayout, Color: color})
}

func (r *Recorder) BindPipeline(_ vk.PipelineBindPoint, pipeline vk.Pipeline) {
	r.Calls = append(r.Calls, Call{Op: "bind_pipeline", Pipeline: pipeline})
}

func (r *Recorder) BindDescriptorSets(_ vk.PipelineBindPoint, layout vk.PipelineLayout, _ uint32, sets []vk.DescriptorSet, _ []uint32) {
	r.Calls = append(r.Calls, Call{
		Op:             "bind_descriptor_sets",
		PipelineLayout: layout,
		Sets:           append([]vk.DescriptorSet(nil), sets...),
	})
}

func (r *Recorder) CmdPushConstants(layout vk.PipelineLayout, _ vk.ShaderStageFlags, _, size uint32, values unsafe.Pointer) {
	push := make([]byte, size)
	copy(push, unsafe.Slice((*byte)(values), size))
	r.Calls = append(r.Calls, Call{Op: "push_constants", PipelineLayout: layout, Push: push})
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	r.Calls = append(r.Calls, Call{Op: "dispatch", GroupX: x, GroupY: y, GroupZ: z})
}

// Ops lists the recorded operation names in order.
func (r *Recorder) Ops() []string {
	ops := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		ops[i] = c.Op
	}
	return ops
}

// Barriers lists each recorded barrier as "image:OLD->NEW" using names as
// the image labels. Unknown images are labelled "?".
func (r *Recorder) Barriers(names map[vk.Image]string) []string {
	var out []string
	for _, c := range r.Calls {
		if c.Op != "barrier" {
			continue
		}
		for _, b := range c.Barriers {
			name, ok := names[b.Image]
			if !ok {
				name = "?"
			}
			out = append(out, fmt.Sprintf("%s:%d->%d", name, b.OldLayout, b.NewLayout))
		}
	}
	return out
}

func (r *Recorder) Clear() {
	r.Calls = nil
}

// ErrInjected is what Device returns from the call named in FailOn.
var ErrInjected = errors.New("injected failure")

// Device fakes the device calls the compute stage makes. Log records
// create and destroy calls by name; one-shot submissions record into
// OneShot.
type Device struct {
	Log     []string
	FailOn  string
	OneShot Recorder

	SubmitErr error
}

func (d *Device) call(op string) error {
	d.Log = append(d.Log, op)
	if d.FailOn == op {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

// Count returns how many times op was logged.
func (d *Device) Count(op string) int {
	n := 0
	for _, l := range d.Log {
		if l == op {
			n++
		}
	}
	return n
}

func (d *Device) CreateDeviceImage(vk.Extent2D, vk.Format, vk.ImageUsageFlags) (vk.Image, vk.DeviceMemory, error) {
	if err := d.call("create_image"); err != nil {
		return vk.Image{}, vk.DeviceMemory{}, err
	}
	return Image(), Memory(), nil
}

func (d *Device) CreateImageView(*vk.ImageViewCreateInfo) (vk.ImageView, error) {
	if err := d.call("create_image_view"); err != nil {
		return vk.ImageView{}, err
	}
	return vk.NewImageView(Handle()), nil
}

func (d *Device) CreateDescriptorSetLayout(*vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	if err := d.call("create_descriptor_set_layout"); err != nil {
		return vk.DescriptorSetLayout{}, err
	}
	return vk.NewDescriptorSetLayout(Handle()), nil
}

func (d *Device) CreateDescriptorPool(*vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	if err := d.call("create_descriptor_pool"); err != nil {
		return vk.DescriptorPool{}, err
	}
	return vk.NewDescriptorPool(Handle()), nil
}

func (d *Device) AllocateDescriptorSets(info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error) {
	if err := d.call("allocate_descriptor_sets"); err != nil {
		return nil, err
	}
	sets := make([]vk.DescriptorSet, len(info.SetLayouts))
	for i := range sets {
		sets[i] = vk.NewDescriptorSet(Handle())
	}
	return sets, nil
}

func (d *Device) UpdateDescriptorSets([]vk.WriteDescriptorSet) {
	d.Log = append(d.Log, "update_descriptor_sets")
}

func (d *Device) CreatePipelineLayout(*vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	if err := d.call("create_pipeline_layout"); err != nil {
		return vk.PipelineLayout{}, err
	}
	return vk.NewPipelineLayout(Handle()), nil
}

func (d *Device) CreateShaderModule(*vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	if err := d.call("create_shader_module"); err != nil {
		return vk.ShaderModule{}, err
	}
	return vk.NewShaderModule(Handle()), nil
}

func (d *Device) DestroyShaderModule(vk.ShaderModule) {
	d.Log = append(d.Log, "destroy_shader_module")
}

func (d *Device) CreateComputePipeline(*vk.ComputePipelineCreateInfo) (vk.Pipeline, error) {
	if err := d.call("create_compute_pipeline"); err != nil {
		return vk.Pipeline{}, err
	}
	return vk.NewPipeline(Handle()), nil
}

func (d *Device) SubmitOnce(record func(cmd gpu.Commands) error) error {
	if err := d.call("submit_once"); err != nil {
		return err
	}
	if err := record(&d.OneShot); err != nil {
		return err
	}
	return d.SubmitErr
}

func (d *Device) DestroyPipeline(vk.Pipeline) { d.Log = append(d.Log, "destroy_pipeline") }

func (d *Device) DestroyPipelineLayout(vk.PipelineLayout) {
	d.Log = append(d.Log, "destroy_pipeline_layout")
}

func (d *Device) DestroyDescriptorPool(vk.DescriptorPool) {
	d.Log = append(d.Log, "destroy_descriptor_pool")
}

func (d *Device) DestroyDescriptorSetLayout(vk.DescriptorSetLayout) {
	d.Log = append(d.Log, "destroy_descriptor_set_layout")
}

func (d *Device) DestroyImageView(vk.ImageView) { d.Log = append(d.Log, "destroy_image_view") }

func (d *Device) DestroyImage(vk.Image) { d.Log = append(d.Log, "destroy_image") }

func (d *Device) FreeMemory(vk.DeviceMemory) { d.Log = append(d.Log, "free_memory") }

// Destroys returns the destroy and free calls in order.
func (d *Device) Destroys() []string {
	var out []string
	for _, l := range d.Log {
		if strings.HasPrefix(l, "destroy_") || l == "free_memory" {
			out = append(out, l)
		}
	}
	return out
}
