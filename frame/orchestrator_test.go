package frame

import (
	"errors"
	"fmt"
	"testing"
	"unsafe"

	"github.com/NOT-REAL-GAMES/videogen/gpu"
	"github.com/NOT-REAL-GAMES/videogen/gpu/gputest"
	"github.com/NOT-REAL-GAMES/videogen/layout"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fenceState struct {
	name      string
	signaled  bool
	submitted bool
	waited    bool
}

// fakeGPU is both the device and the queue. Submitted work completes at
// once unless hang is set: the fence signals and the recorded staging copy
// fills the staging memory with the submission number.
type fakeGPU struct {
	t *testing.T

	log    []string
	fences map[vk.Fence]*fenceState
	memory map[vk.DeviceMemory][]byte
	bufMem map[vk.Buffer]vk.DeviceMemory
	live   map[string]int
	pool   vk.CommandPool

	recorders map[vk.CommandBuffer]*gputest.Recorder
	frames    []*gputest.Recorder

	images      int
	nextImage   uint32
	acquires    int
	presents    int
	submits     int
	acquireErrs map[int]error
	presentErrs map[int]error
	failOn      string
	hang        bool

	outstanding    int
	maxOutstanding int
	lastSubmit     vk.SubmitInfo
	lastPresent    vk.PresentInfoKHR
	stagingSizes   []uint64
	waitIdles      int
}

func newFakeGPU(t *testing.T, images int) *fakeGPU {
	return &fakeGPU{
		t:           t,
		fences:      map[vk.Fence]*fenceState{},
		memory:      map[vk.DeviceMemory][]byte{},
		bufMem:      map[vk.Buffer]vk.DeviceMemory{},
		live:        map[string]int{},
		pool:        vk.NewCommandPool(gputest.Handle()),
		recorders:   map[vk.CommandBuffer]*gputest.Recorder{},
		images:      images,
		acquireErrs: map[int]error{},
		presentErrs: map[int]error{},
	}
}

func (f *fakeGPU) fail(op string) error {
	if f.failOn == op {
		return fmt.Errorf("%s: %w", op, gputest.ErrInjected)
	}
	return nil
}

func (f *fakeGPU) CreateSemaphore(*vk.SemaphoreCreateInfo) (vk.Semaphore, error) {
	if err := f.fail("create_semaphore"); err != nil {
		return vk.Semaphore{}, err
	}
	f.live["semaphore"]++
	return vk.NewSemaphore(gputest.Handle()), nil
}

func (f *fakeGPU) DestroySemaphore(vk.Semaphore) { f.live["semaphore"]-- }

func (f *fakeGPU) CreateFence(info *vk.FenceCreateInfo) (vk.Fence, error) {
	if err := f.fail("create_fence"); err != nil {
		return vk.Fence{}, err
	}
	fence := vk.NewFence(gputest.Handle())
	f.fences[fence] = &fenceState{
		name:     fmt.Sprintf("F%d", len(f.fences)),
		signaled: info.Flags&vk.FENCE_CREATE_SIGNALED_BIT != 0,
	}
	f.live["fence"]++
	return fence, nil
}

func (f *fakeGPU) DestroyFence(vk.Fence) { f.live["fence"]-- }

func (f *fakeGPU) WaitForFences(fences []vk.Fence, _ bool, _ uint64) error {
	for _, fence := range fences {
		st := f.fences[fence]
		if !st.signaled {
			return vk.TIMEOUT
		}
		f.log = append(f.log, "wait:"+st.name)
		if st.submitted && !st.waited {
			st.waited = true
			f.outstanding--
		}
	}
	return nil
}

func (f *fakeGPU) ResetFences(fences []vk.Fence) error {
	for _, fence := range fences {
		st := f.fences[fence]
		if st.submitted && !st.waited {
			f.t.Errorf("fence %s reset before its submission was waited on", st.name)
		}
		st.signaled = false
		f.log = append(f.log, "reset:"+st.name)
	}
	return nil
}

func (f *fakeGPU) AcquireNextImageKHR(_ vk.SwapchainKHR, _ uint64, sem vk.Semaphore, _ vk.Fence) (uint32, error) {
	f.acquires++
	f.log = append(f.log, "acquire")
	if sem == (vk.Semaphore{}) {
		f.t.Errorf("acquire without a semaphore")
	}
	if err, ok := f.acquireErrs[f.acquires]; ok {
		return 0, err
	}
	idx := f.nextImage % uint32(f.images)
	f.nextImage++
	return idx, nil
}

func (f *fakeGPU) CommandPool() vk.CommandPool { return f.pool }

func (f *fakeGPU) AllocateCommandBuffers(info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, error) {
	if err := f.fail("allocate_command_buffers"); err != nil {
		return nil, err
	}
	cmds := make([]vk.CommandBuffer, info.CommandBufferCount)
	for i := range cmds {
		cmds[i] = vk.NewCommandBuffer(gputest.Handle())
	}
	f.live["command_buffer"] += len(cmds)
	return cmds, nil
}

func (f *fakeGPU) FreeCommandBuffers(_ vk.CommandPool, cmds []vk.CommandBuffer) {
	f.live["command_buffer"] -= len(cmds)
}

func (f *fakeGPU) CreateHostBuffer(size uint64, _ vk.BufferUsageFlags) (vk.Buffer, vk.DeviceMemory, error) {
	if err := f.fail("create_host_buffer"); err != nil {
		return vk.Buffer{}, vk.DeviceMemory{}, err
	}
	buf, mem := gputest.Buffer(), gputest.Memory()
	f.memory[mem] = make([]byte, size)
	f.bufMem[buf] = mem
	f.stagingSizes = append(f.stagingSizes, size)
	f.live["buffer"]++
	f.live["memory"]++
	return buf, mem, nil
}

func (f *fakeGPU) MapMemory(mem vk.DeviceMemory, _, _ uint64) (unsafe.Pointer, error) {
	if err := f.fail("map_memory"); err != nil {
		return nil, err
	}
	f.live["mapped"]++
	return unsafe.Pointer(&f.memory[mem][0]), nil
}

func (f *fakeGPU) UnmapMemory(vk.DeviceMemory) { f.live["mapped"]-- }
func (f *fakeGPU) DestroyBuffer(vk.Buffer)     { f.live["buffer"]-- }
func (f *fakeGPU) FreeMemory(vk.DeviceMemory)  { f.live["memory"]-- }

func (f *fakeGPU) WaitIdle() error {
	f.waitIdles++
	return nil
}

func (f *fakeGPU) Submit(submits []vk.SubmitInfo, fence vk.Fence) error {
	f.submits++
	for _, s := range submits {
		assert.NoError(f.t, s.Validate())
	}
	st := f.fences[fence]
	f.log = append(f.log, "submit:"+st.name)
	f.lastSubmit = submits[0]

	st.submitted = true
	st.waited = false
	f.outstanding++
	f.maxOutstanding = max(f.maxOutstanding, f.outstanding)

	if f.hang {
		return nil
	}

	rec := f.recorders[submits[0].CommandBuffers[0]]
	for _, c := range rec.Calls {
		if c.Op == "copy_image_to_buffer" {
			data := f.memory[f.bufMem[c.Buffer]]
			for i := range data {
				data[i] = byte(f.submits)
			}
		}
	}
	st.signaled = true
	return nil
}

func (f *fakeGPU) PresentKHR(info *vk.PresentInfoKHR) error {
	f.presents++
	f.log = append(f.log, fmt.Sprintf("present:%d", info.ImageIndices[0]))
	f.lastPresent = *info
	return f.presentErrs[f.presents]
}

func (f *fakeGPU) commands(cb vk.CommandBuffer) gpu.Commands {
	rec := &gputest.Recorder{}
	f.recorders[cb] = rec
	f.frames = append(f.frames, rec)
	return rec
}

// leaks lists resource kinds whose create and destroy counts differ.
func (f *fakeGPU) leaks() map[string]int {
	out := map[string]int{}
	for k, v := range f.live {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

func (f *fakeGPU) indexAfter(start int, entry string) int {
	for i := start + 1; i < len(f.log); i++ {
		if f.log[i] == entry {
			return i
		}
	}
	return -1
}

type fakeStage struct {
	canvas vk.Image
	extent vk.Extent2D
	times  []float32
}

func (s *fakeStage) Canvas() vk.Image    { return s.canvas }
func (s *fakeStage) Extent() vk.Extent2D { return s.extent }

func (s *fakeStage) RecordDispatch(cmd gpu.Commands, t float32) {
	s.times = append(s.times, t)
	x, y := s.extent.Width/16, s.extent.Height/16
	cmd.Dispatch(x, y, 1)
}

type harness struct {
	gpu       *fakeGPU
	stage     *fakeStage
	swapchain vk.SwapchainInfo
	orch      *Orchestrator
	frames    []Frame
}

func newHarness(t *testing.T, width, height uint32, slots, images int, consumer Consumer) *harness {
	t.Helper()

	h := &harness{
		gpu:   newFakeGPU(t, images),
		stage: &fakeStage{canvas: gputest.Image(), extent: vk.Extent2D{Width: width, Height: height}},
	}
	h.swapchain = vk.SwapchainInfo{
		Swapchain: vk.NewSwapchainKHR(gputest.Handle()),
		Format:    vk.FORMAT_B8G8R8A8_UNORM,
		Extent:    vk.Extent2D{Width: width, Height: height},
	}
	for i := 0; i < images; i++ {
		h.swapchain.Images = append(h.swapchain.Images, gputest.Image())
	}

	if consumer == nil {
		consumer = ConsumerFunc(func(f Frame) error {
			f.Pixels = append([]byte(nil), f.Pixels[:8]...)
			h.frames = append(h.frames, f)
			return nil
		})
	}

	orch, err := New(h.gpu, h.gpu, h.stage, h.swapchain, Config{
		MaxFramesInFlight: slots,
		Consumer:          consumer,
	})
	require.NoError(t, err)
	orch.commands = h.gpu.commands
	h.orch = orch
	return h
}

func TestStagingSize(t *testing.T) {
	tests := []struct {
		w, h uint32
		want uint64
	}{
		{512, 512, 1048576},
		{1, 1, 4},
		{1920, 1080, 8294400},
		{0, 100, 0},
		{65535, 65535, 17179344900},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StagingSize(tt.w, tt.h), "%dx%d", tt.w, tt.h)
	}
}

func TestEndToEndFiveFrames(t *testing.T) {
	h := newHarness(t, 512, 512, 2, 3, nil)

	for i := 0; i < 5; i++ {
		ok, err := h.orch.RenderFrame(float32(i) / 30)
		require.NoError(t, err)
		assert.True(t, ok, "frame %d", i)
		assert.Equal(t, layout.General, h.orch.CanvasLayout())
	}

	assert.Equal(t, []uint64{1048576, 1048576}, h.gpu.stagingSizes)
	for _, rec := range h.gpu.frames {
		for _, c := range rec.Calls {
			if c.Op == "copy_image_to_buffer" {
				assert.Equal(t, uint32(512), c.BufferCopies[0].ImageExtent.Width)
				assert.Equal(t, uint32(512), c.BufferCopies[0].ImageExtent.Height)
			}
		}
	}

	// Frame 3 reuses slot 0, so it must be submitted after frame 1's fence
	// was waited on.
	first := h.gpu.indexAfter(-1, "submit:F0")
	wait := h.gpu.indexAfter(first, "wait:F0")
	third := h.gpu.indexAfter(first, "submit:F0")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, third)
	assert.Less(t, first, wait)
	assert.Less(t, wait, third)

	assert.Len(t, h.frames, 3, "two frames are still in flight")
	require.NoError(t, h.orch.Flush())
	require.Len(t, h.frames, 5)
	for i, f := range h.frames {
		assert.Equal(t, uint64(i), f.Seq)
		assert.Equal(t, i%2, f.Slot)
		assert.Equal(t, float32(i)/30, f.Time)
	}

	assert.Equal(t, Stats{Rendered: 5, Delivered: 5}, h.orch.Stats())

	h.orch.Destroy()
	assert.Empty(t, h.gpu.leaks())
}

func TestFenceDiscipline(t *testing.T) {
	for _, slots := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("slots=%d", slots), func(t *testing.T) {
			h := newHarness(t, 64, 64, slots, 3, nil)

			for i := 0; i < 10; i++ {
				_, err := h.orch.RenderFrame(float32(i))
				require.NoError(t, err)
			}

			assert.LessOrEqual(t, h.gpu.maxOutstanding, slots)
			assert.Equal(t, slots, h.gpu.maxOutstanding)

			// Every reset is preceded by a wait on the same fence.
			for i, entry := range h.gpu.log {
				if len(entry) > 6 && entry[:6] == "reset:" {
					name := entry[6:]
					found := false
					for j := i - 1; j >= 0; j-- {
						if h.gpu.log[j] == "reset:"+name || h.gpu.log[j] == "submit:"+name {
							break
						}
						if h.gpu.log[j] == "wait:"+name {
							found = true
							break
						}
					}
					assert.True(t, found, "reset of %s at %d without a wait", name, i)
				}
			}

			require.NoError(t, h.orch.Flush())
			assert.Equal(t, 0, h.gpu.outstanding)
			h.orch.Destroy()
		})
	}
}

func TestCanvasLayoutInvariant(t *testing.T) {
	h := newHarness(t, 32, 32, 2, 2, nil)
	assert.Equal(t, layout.General, h.orch.CanvasLayout())

	for i := 0; i < 4; i++ {
		_, err := h.orch.RenderFrame(float32(i))
		require.NoError(t, err)
		assert.Equal(t, layout.General, h.orch.CanvasLayout())

		var canvas []vk.ImageMemoryBarrier
		for _, c := range h.gpu.frames[i].Calls {
			for _, b := range c.Barriers {
				if b.Image == h.stage.canvas {
					canvas = append(canvas, b)
				}
			}
		}
		require.Len(t, canvas, 2)
		assert.Equal(t, vk.IMAGE_LAYOUT_GENERAL, canvas[0].OldLayout)
		assert.Equal(t, vk.IMAGE_LAYOUT_GENERAL, canvas[1].NewLayout)
	}

	h.orch.canvas.Assume(layout.TransferSrc)
	ok, err := h.orch.RenderFrame(9)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCanvasLayout)

	h.orch.Destroy()
}

func TestDestroyIdempotent(t *testing.T) {
	h := newHarness(t, 16, 16, 2, 2, nil)
	_, err := h.orch.RenderFrame(0)
	require.NoError(t, err)

	h.orch.Destroy()
	assert.Empty(t, h.gpu.leaks())
	assert.Equal(t, 1, h.gpu.waitIdles)

	h.orch.Destroy()
	assert.Empty(t, h.gpu.leaks())
	assert.Equal(t, 1, h.gpu.waitIdles, "second Destroy is a no-op")

	_, err = h.orch.RenderFrame(1)
	assert.Error(t, err)
}

func TestNewReleasesOnFailure(t *testing.T) {
	for _, op := range []string{"allocate_command_buffers", "create_semaphore", "create_fence", "create_host_buffer", "map_memory"} {
		t.Run(op, func(t *testing.T) {
			g := newFakeGPU(t, 2)
			g.failOn = op
			stage := &fakeStage{canvas: gputest.Image(), extent: vk.Extent2D{Width: 8, Height: 8}}
			sc := vk.SwapchainInfo{Images: []vk.Image{gputest.Image(), gputest.Image()}}

			orch, err := New(g, g, stage, sc, Config{})
			assert.ErrorIs(t, err, gputest.ErrInjected)
			assert.Nil(t, orch)
			assert.Empty(t, g.leaks())
		})
	}

	g := newFakeGPU(t, 0)
	stage := &fakeStage{canvas: gputest.Image(), extent: vk.Extent2D{Width: 8, Height: 8}}
	_, err := New(g, g, stage, vk.SwapchainInfo{}, Config{})
	assert.Error(t, err)
}

func TestStaleAcquire(t *testing.T) {
	h := newHarness(t, 64, 64, 2, 3, nil)
	h.gpu.acquireErrs[2] = vk.OUT_OF_DATE

	ok, err := h.orch.RenderFrame(0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.orch.RenderFrame(1)
	require.NoError(t, err)
	assert.False(t, ok, "stale acquire abandons the frame")

	ok, err = h.orch.RenderFrame(2)
	require.NoError(t, err)
	assert.True(t, ok)

	// Slot 1 skipped its reset, so its fence is still signaled and the
	// next frame on it does not hang.
	assert.Equal(t, -1, h.gpu.indexAfter(-1, "reset:F1"))
	ok, err = h.orch.RenderFrame(3)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, Stats{Rendered: 3, Skipped: 1, Delivered: 1}, h.orch.Stats())

	require.NoError(t, h.orch.Flush())
	assert.Len(t, h.frames, 3)
	h.orch.Destroy()
	assert.Empty(t, h.gpu.leaks())
}

func TestAcquireTimeoutIsGPUHang(t *testing.T) {
	for _, res := range []vk.Result{vk.TIMEOUT, vk.NOT_READY} {
		h := newHarness(t, 16, 16, 2, 2, nil)
		h.gpu.acquireErrs[1] = res

		ok, err := h.orch.RenderFrame(0)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrGPUHang)
		h.orch.Destroy()
	}

	h := newHarness(t, 16, 16, 2, 2, nil)
	h.gpu.acquireErrs[1] = vk.SURFACE_LOST
	_, err := h.orch.RenderFrame(0)
	assert.ErrorIs(t, err, vk.SURFACE_LOST)
	assert.NotErrorIs(t, err, ErrGPUHang)
	h.orch.Destroy()
}

func TestFenceTimeoutIsGPUHang(t *testing.T) {
	h := newHarness(t, 16, 16, 1, 2, nil)
	h.gpu.hang = true

	_, err := h.orch.RenderFrame(0)
	require.NoError(t, err)

	ok, err := h.orch.RenderFrame(1)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrGPUHang)
	assert.Contains(t, err.Error(), "slot 0")
}

func TestPresentResults(t *testing.T) {
	h := newHarness(t, 16, 16, 2, 2, nil)
	h.gpu.presentErrs[1] = vk.SUBOPTIMAL
	h.gpu.presentErrs[2] = vk.OUT_OF_DATE
	h.gpu.presentErrs[3] = vk.DEVICE_LOST

	for i := 0; i < 2; i++ {
		ok, err := h.orch.RenderFrame(float32(i))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, uint64(2), h.orch.Stats().StalePresents)
	assert.Equal(t, uint64(2), h.orch.Stats().Rendered)

	ok, err := h.orch.RenderFrame(2)
	assert.False(t, ok)
	assert.ErrorIs(t, err, vk.DEVICE_LOST)
	h.orch.Destroy()
}

func TestRecordOrder(t *testing.T) {
	h := newHarness(t, 512, 512, 2, 3, nil)
	h.gpu.nextImage = 1

	_, err := h.orch.RenderFrame(0.5)
	require.NoError(t, err)

	rec := h.gpu.frames[0]
	assert.Equal(t, []string{
		"reset", "begin",
		"dispatch",
		"barrier", "barrier",
		"copy_image", "copy_image_to_buffer",
		"barrier", "barrier",
		"end",
	}, rec.Ops())
	assert.Equal(t, []float32{0.5}, h.stage.times)

	target := h.swapchain.Images[1]
	canvas := h.stage.canvas
	type step struct {
		img      vk.Image
		from, to vk.ImageLayout
	}
	var steps []step
	for _, c := range rec.Calls {
		for _, b := range c.Barriers {
			steps = append(steps, step{b.Image, b.OldLayout, b.NewLayout})
		}
	}
	assert.Equal(t, []step{
		{canvas, vk.IMAGE_LAYOUT_GENERAL, vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL},
		{target, vk.IMAGE_LAYOUT_UNDEFINED, vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL},
		{target, vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL, vk.IMAGE_LAYOUT_PRESENT_SRC_KHR},
		{canvas, vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL, vk.IMAGE_LAYOUT_GENERAL},
	}, steps)

	imgCopy := rec.Calls[5]
	assert.Equal(t, canvas, imgCopy.Src)
	assert.Equal(t, target, imgCopy.Dst)
	assert.Equal(t, vk.Extent3D{Width: 512, Height: 512, Depth: 1}, imgCopy.ImageCopies[0].Extent)

	bufCopy := rec.Calls[6].BufferCopies[0]
	assert.Equal(t, uint32(0), bufCopy.BufferRowLength)
	assert.Equal(t, uint32(0), bufCopy.BufferImageHeight)
	assert.Equal(t, h.orch.slots[0].staging, rec.Calls[6].Buffer)

	s := h.orch.slots[0]
	assert.Equal(t, []vk.Semaphore{s.available}, h.gpu.lastSubmit.WaitSemaphores)
	assert.Equal(t, []vk.PipelineStageFlags{vk.PIPELINE_STAGE_COMPUTE_SHADER_BIT}, h.gpu.lastSubmit.WaitDstStageMask)
	assert.Equal(t, []vk.Semaphore{s.finished}, h.gpu.lastSubmit.SignalSemaphores)
	assert.Equal(t, []vk.Semaphore{s.finished}, h.gpu.lastPresent.WaitSemaphores)
	assert.Equal(t, []uint32{1}, h.gpu.lastPresent.ImageIndices)

	assert.Equal(t, []string{"wait:F0", "acquire", "reset:F0", "submit:F0", "present:1"}, h.gpu.log)
	h.orch.Destroy()
}

func TestCopyUsesSmallerExtent(t *testing.T) {
	h := newHarness(t, 512, 512, 2, 2, nil)
	h.orch.swapchain.Extent = vk.Extent2D{Width: 300, Height: 600}

	_, err := h.orch.RenderFrame(0)
	require.NoError(t, err)

	for _, c := range h.gpu.frames[0].Calls {
		switch c.Op {
		case "copy_image":
			assert.Equal(t, vk.Extent3D{Width: 300, Height: 512, Depth: 1}, c.ImageCopies[0].Extent)
		case "copy_image_to_buffer":
			assert.Equal(t, vk.Extent3D{Width: 512, Height: 512, Depth: 1}, c.BufferCopies[0].ImageExtent)
		}
	}
	h.orch.Destroy()
}

func TestConsumerSeesCompletedFramesInOrder(t *testing.T) {
	var h *harness
	var seen []uint64
	consumer := ConsumerFunc(func(f Frame) error {
		st := h.gpu.fences[h.orch.slots[f.Slot].inFlight]
		assert.True(t, st.signaled && st.waited, "frame %d delivered before its fence", f.Seq)

		// The fake writes the 1-based submission number into staging, so
		// a later copy into the same slot would show up here.
		want := byte(f.Seq + 1)
		assert.Equal(t, want, f.Pixels[0], "frame %d", f.Seq)
		assert.Equal(t, want, f.Pixels[len(f.Pixels)-1], "frame %d", f.Seq)
		assert.Len(t, f.Pixels, int(StagingSize(64, 32)))

		seen = append(seen, f.Seq)
		return nil
	})
	h = newHarness(t, 64, 32, 2, 3, consumer)

	for i := 0; i < 6; i++ {
		_, err := h.orch.RenderFrame(float32(i))
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{0, 1, 2, 3}, seen)

	require.NoError(t, h.orch.Flush())
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5}, seen)

	require.NoError(t, h.orch.Flush())
	assert.Len(t, seen, 6, "flush delivers each frame once")
	h.orch.Destroy()
}

func TestConsumerErrorIsFatal(t *testing.T) {
	boom := errors.New("sink closed")
	h := newHarness(t, 16, 16, 1, 2, ConsumerFunc(func(Frame) error { return boom }))

	_, err := h.orch.RenderFrame(0)
	require.NoError(t, err)

	_, err = h.orch.RenderFrame(1)
	assert.ErrorIs(t, err, boom)
	h.orch.Destroy()
}
