package vulkan

import (
	"fmt"
	"math"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type timelinePoint struct {
	value uint64
	fence *VulkanFence
}

// VulkanQueue emulates a monotonically increasing fence with one VkFence per
// signaled value.
type VulkanQueue struct {
	context *VulkanContext
	kind    rhi.QueueKind
	handle  vk.Queue
	family  uint32

	mu        sync.Mutex
	pending   []timelinePoint
	completed uint64
	free      []*VulkanFence

	// the swapchain hands these over between acquire and the next submit
	imageAvailable vk.Semaphore
	renderComplete vk.Semaphore
	presentReady   bool
}

func newQueue(context *VulkanContext, kind rhi.QueueKind) *VulkanQueue {
	// copy lists also transition images into shader read layouts, which a
	// transfer-only family cannot do
	return &VulkanQueue{
		context: context,
		kind:    kind,
		handle:  context.Device.GraphicsQueue,
		family:  uint32(context.Device.GraphicsQueueIndex),
	}
}

func (q *VulkanQueue) Submit(lists []rhi.NativeCommandList) error {
	handles := make([]vk.CommandBuffer, 0, len(lists))
	for _, l := range lists {
		cl, ok := l.(*VulkanCommandList)
		if !ok {
			return fmt.Errorf("command list was not created by the vulkan backend")
		}
		if cl.buffer.State != COMMAND_BUFFER_STATE_RECORDING_ENDED {
			return fmt.Errorf("command list submitted while %d", cl.buffer.State)
		}
		handles = append(handles, cl.buffer.Handle)
	}

	q.mu.Lock()
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(handles)),
		PCommandBuffers:    handles,
	}
	if q.imageAvailable != nil {
		// Wait semaphore ensures that the operation cannot begin until the image is available.
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{q.imageAvailable}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{q.renderComplete}
		q.imageAvailable = nil
		q.presentReady = true
	}
	q.mu.Unlock()

	err := q.context.locks.SafeQueueCall(q.family, func() error {
		return check(vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence), "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	for _, l := range lists {
		l.(*VulkanCommandList).buffer.UpdateSubmitted()
	}
	return nil
}

func (q *VulkanQueue) Signal(value uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	last := q.completed
	if n := len(q.pending); n > 0 {
		last = q.pending[n-1].value
	}
	if value <= last {
		return fmt.Errorf("%s queue signal %d does not increase past %d", q.kind, value, last)
	}

	var fence *VulkanFence
	if n := len(q.free); n > 0 {
		fence, q.free = q.free[n-1], q.free[:n-1]
		if err := fence.FenceReset(q.context); err != nil {
			return err
		}
	} else {
		f, err := NewFence(q.context, false)
		if err != nil {
			return err
		}
		fence = f
	}

	// an empty submission signals the fence once all prior work is done
	err := q.context.locks.SafeQueueCall(q.family, func() error {
		return check(vk.QueueSubmit(q.handle, 0, nil, fence.Handle), "vkQueueSubmit")
	})
	if err != nil {
		q.free = append(q.free, fence)
		return err
	}
	q.pending = append(q.pending, timelinePoint{value: value, fence: fence})
	return nil
}

// retire drops every leading point whose fence has signaled. Callers hold mu.
func (q *VulkanQueue) retire() error {
	for len(q.pending) > 0 {
		point := q.pending[0]
		done, err := point.fence.FenceStatus(q.context)
		if err != nil {
			return err
		}
		if !done {
			return nil
		}
		q.completed = point.value
		q.free = append(q.free, point.fence)
		q.pending = q.pending[1:]
	}
	return nil
}

func (q *VulkanQueue) CompletedValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	_ = q.retire()
	return q.completed
}

func (q *VulkanQueue) Wait(value uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.completed < value {
		if len(q.pending) == 0 {
			return fmt.Errorf("%s queue waits for %d which was never signaled", q.kind, value)
		}
		if err := q.pending[0].fence.FenceWait(q.context, math.MaxUint64); err != nil {
			return err
		}
		if err := q.retire(); err != nil {
			return err
		}
	}
	return nil
}

func (q *VulkanQueue) waitIdle() error {
	return q.context.locks.SafeQueueCall(q.family, func() error {
		return check(vk.QueueWaitIdle(q.handle), "vkQueueWaitIdle")
	})
}

// usePresentSemaphores makes the next submission wait for the acquired image
// and signal renderComplete for the present.
func (q *VulkanQueue) usePresentSemaphores(imageAvailable, renderComplete vk.Semaphore) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.imageAvailable = imageAvailable
	q.renderComplete = renderComplete
	q.presentReady = false
}

// takePresentReady reports whether a submission signaled renderComplete since
// the last acquire.
func (q *VulkanQueue) takePresentReady() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	ready := q.presentReady
	q.presentReady = false
	return ready
}

func (q *VulkanQueue) Destroy() {
	_ = q.waitIdle()
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.pending {
		p.fence.FenceDestroy(q.context)
	}
	for _, f := range q.free {
		f.FenceDestroy(q.context)
	}
	q.pending, q.free = nil, nil
}
