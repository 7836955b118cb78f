package frame

import (
	"fmt"

	"github.com/NOT-REAL-GAMES/videogen/layout"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

var colorLayer = vk.ImageSubresourceLayers{
	AspectMask: vk.IMAGE_ASPECT_COLOR_BIT,
	LayerCount: 1,
}

// record fills the slot command buffer for one frame:
//
//	dispatch
//	canvas GENERAL -> TRANSFER_SRC
//	target UNDEFINED -> TRANSFER_DST
//	copy canvas -> target
//	copy canvas -> staging
//	target TRANSFER_DST -> PRESENT
//	canvas TRANSFER_SRC -> GENERAL
func (o *Orchestrator) record(s *slot, imageIndex uint32, t float32) error {
	cmd := o.commands(s.cmd)
	if err := cmd.Reset(0); err != nil {
		return fmt.Errorf("failed to reset command buffer: %w", err)
	}
	if err := cmd.Begin(&vk.CommandBufferBeginInfo{Flags: vk.COMMAND_BUFFER_USAGE_ONE_TIME_SUBMIT_BIT}); err != nil {
		return fmt.Errorf("failed to begin command buffer: %w", err)
	}

	o.stage.RecordDispatch(cmd, t)

	canvas := o.stage.Canvas()
	target := o.targets[imageIndex]
	// Whatever the image held after its last present is discarded.
	target.Assume(layout.Undefined)

	if err := o.canvas.Transition(cmd, layout.TransferSrc); err != nil {
		return err
	}
	if err := target.Transition(cmd, layout.TransferDst); err != nil {
		return err
	}

	src := o.stage.Extent()
	copyExtent := vk.Extent3D{
		Width:  min(src.Width, o.swapchain.Extent.Width),
		Height: min(src.Height, o.swapchain.Extent.Height),
		Depth:  1,
	}
	cmd.CopyImage(canvas, vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL, o.swapchain.Images[imageIndex], vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL, []vk.ImageCopy{
		{
			SrcSubresource: colorLayer,
			DstSubresource: colorLayer,
			Extent:         copyExtent,
		},
	})

	cmd.CopyImageToBuffer(canvas, vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL, s.staging, []vk.BufferImageCopy{
		{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,
			ImageSubresource:  colorLayer,
			ImageExtent:       vk.Extent3D{Width: src.Width, Height: src.Height, Depth: 1},
		},
	})

	if err := target.Transition(cmd, layout.Present); err != nil {
		return err
	}
	if err := o.canvas.Transition(cmd, layout.General); err != nil {
		return err
	}

	if err := cmd.End(); err != nil {
		return fmt.Errorf("failed to end command buffer: %w", err)
	}
	return nil
}
