// Package layout tracks image layouts and derives the pipeline barrier for
// each legal transition.
package layout

import (
	"errors"
	"fmt"

	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

// State is the layout an image is known to be in.
type State int

const (
	Undefined State = iota
	General
	TransferSrc
	TransferDst
	Present
)

func (s State) String() string {
	switch s {
	case Undefined:
		return "UNDEFINED"
	case General:
		return "GENERAL"
	case TransferSrc:
		return "TRANSFER_SRC"
	case TransferDst:
		return "TRANSFER_DST"
	case Present:
		return "PRESENT"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Vulkan maps the state onto the driver layout.
func (s State) Vulkan() vk.ImageLayout {
	switch s {
	case General:
		return vk.IMAGE_LAYOUT_GENERAL
	case TransferSrc:
		return vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL
	case TransferDst:
		return vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL
	case Present:
		return vk.IMAGE_LAYOUT_PRESENT_SRC_KHR
	default:
		return vk.IMAGE_LAYOUT_UNDEFINED
	}
}

var ErrNoTransition = errors.New("no transition defined")

// Barrier is a single image barrier plus the stages it sits between.
type Barrier struct {
	SrcStage vk.PipelineStageFlags
	DstStage vk.PipelineStageFlags
	Image    vk.ImageMemoryBarrier
}

type transition struct {
	from, to State
}

type masks struct {
	srcStage  vk.PipelineStageFlags
	srcAccess vk.AccessFlags
	dstStage  vk.PipelineStageFlags
	dstAccess vk.AccessFlags
}

var shaderRW = vk.ACCESS_SHADER_READ_BIT | vk.ACCESS_SHADER_WRITE_BIT

var transitions = map[transition]masks{
	{Undefined, General}: {
		vk.PIPELINE_STAGE_TOP_OF_PIPE_BIT, vk.ACCESS_NONE,
		vk.PIPELINE_STAGE_COMPUTE_SHADER_BIT, shaderRW,
	},
	{General, TransferSrc}: {
		vk.PIPELINE_STAGE_COMPUTE_SHADER_BIT, vk.ACCESS_SHADER_WRITE_BIT,
		vk.PIPELINE_STAGE_TRANSFER_BIT, vk.ACCESS_TRANSFER_READ_BIT,
	},
	// Source stage is where the acquire semaphore wait lands, so the
	// layout change happens after the presentation engine lets go.
	{Undefined, TransferDst}: {
		vk.PIPELINE_STAGE_COMPUTE_SHADER_BIT, vk.ACCESS_NONE,
		vk.PIPELINE_STAGE_TRANSFER_BIT, vk.ACCESS_TRANSFER_WRITE_BIT,
	},
	{TransferDst, Present}: {
		vk.PIPELINE_STAGE_TRANSFER_BIT, vk.ACCESS_TRANSFER_WRITE_BIT,
		vk.PIPELINE_STAGE_BOTTOM_OF_PIPE_BIT, vk.ACCESS_NONE,
	},
	{TransferDst, General}: {
		vk.PIPELINE_STAGE_TRANSFER_BIT, vk.ACCESS_TRANSFER_WRITE_BIT,
		vk.PIPELINE_STAGE_COMPUTE_SHADER_BIT, shaderRW,
	},
	{TransferSrc, General}: {
		vk.PIPELINE_STAGE_TRANSFER_BIT, vk.ACCESS_TRANSFER_READ_BIT,
		vk.PIPELINE_STAGE_COMPUTE_SHADER_BIT, shaderRW,
	},
}

// ColorRange covers the single mip and layer every image here has.
var ColorRange = vk.ImageSubresourceRange{
	AspectMask:     vk.IMAGE_ASPECT_COLOR_BIT,
	BaseMipLevel:   0,
	LevelCount:     1,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

// BarrierFor returns the barrier moving img from one state to another.
// ok is false when from == to and nothing needs recording.
func BarrierFor(img vk.Image, from, to State) (b Barrier, ok bool, err error) {
	if from == to {
		return Barrier{}, false, nil
	}

	m, found := transitions[transition{from, to}]
	if !found {
		return Barrier{}, false, fmt.Errorf("%w: %s -> %s", ErrNoTransition, from, to)
	}

	return Barrier{
		SrcStage: m.srcStage,
		DstStage: m.dstStage,
		Image: vk.ImageMemoryBarrier{
			SrcAccessMask:       m.srcAccess,
			DstAccessMask:       m.dstAccess,
			OldLayout:           from.Vulkan(),
			NewLayout:           to.Vulkan(),
			SrcQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			DstQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			Image:               img,
			SubresourceRange:    ColorRange,
		},
	}, true, nil
}

// Recorder is the part of a command buffer a barrier needs.
type Recorder interface {
	PipelineBarrier(srcStageMask, dstStageMask vk.PipelineStageFlags, dependencyFlags uint32, imageMemoryBarriers []vk.ImageMemoryBarrier)
}

// Tracker remembers one image's layout across recorded transitions.
type Tracker struct {
	img   vk.Image
	state State
}

func NewTracker(img vk.Image, initial State) *Tracker {
	return &Tracker{img: img, state: initial}
}

func (t *Tracker) State() State { return t.state }

// Transition records the barrier to move the image into to. The tracked
// state only changes when a barrier was recorded or none was needed.
func (t *Tracker) Transition(rec Recorder, to State) error {
	b, ok, err := BarrierFor(t.img, t.state, to)
	if err != nil {
		return err
	}
	if ok {
		rec.PipelineBarrier(b.SrcStage, b.DstStage, 0, []vk.ImageMemoryBarrier{b.Image})
	}
	t.state = to
	return nil
}

// Assume overrides the tracked state without recording anything. Used when
// the image's content is discarded, as with swapchain images on acquire.
func (t *Tracker) Assume(s State) {
	t.state = s
}
