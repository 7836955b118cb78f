package gpu

import (
	"fmt"

	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

// BeginSingleTimeCommands allocates a primary command buffer from the pool
// and begins it for one submission.
func (c *Context) BeginSingleTimeCommands() (vk.CommandBuffer, error) {
	cmds, err := c.AllocateCommandBuffers(&vk.CommandBufferAllocateInfo{
		CommandPool:        c.pool,
		Level:              vk.COMMAND_BUFFER_LEVEL_PRIMARY,
		CommandBufferCount: 1,
	})
	if err != nil {
		return vk.CommandBuffer{}, fmt.Errorf("failed to allocate command buffer: %w", err)
	}

	if err := cmds[0].Begin(&vk.CommandBufferBeginInfo{
		Flags: vk.COMMAND_BUFFER_USAGE_ONE_TIME_SUBMIT_BIT,
	}); err != nil {
		c.FreeCommandBuffers(c.pool, cmds)
		return vk.CommandBuffer{}, fmt.Errorf("failed to begin command buffer: %w", err)
	}

	return cmds[0], nil
}

// EndSingleTimeCommands ends cmd, submits it, waits for the queue to drain
// and frees it. The buffer is freed on every path.
func (c *Context) EndSingleTimeCommands(cmd vk.CommandBuffer) error {
	defer c.FreeCommandBuffers(c.pool, []vk.CommandBuffer{cmd})

	if err := cmd.End(); err != nil {
		return fmt.Errorf("failed to end command buffer: %w", err)
	}

	err := c.Queue.Submit([]vk.SubmitInfo{
		{CommandBuffers: []vk.CommandBuffer{cmd}},
	}, vk.Fence{})
	if err != nil {
		return fmt.Errorf("failed to submit command buffer: %w", err)
	}

	if err := c.Queue.WaitIdle(); err != nil {
		return fmt.Errorf("failed to wait for queue: %w", err)
	}

	return nil
}

// SubmitOnce records through record and runs the result to completion.
func (c *Context) SubmitOnce(record func(cmd Commands) error) error {
	cmd, err := c.BeginSingleTimeCommands()
	if err != nil {
		return err
	}

	if err := record(cmd); err != nil {
		c.FreeCommandBuffers(c.pool, []vk.CommandBuffer{cmd})
		return err
	}

	return c.EndSingleTimeCommands(cmd)
}
