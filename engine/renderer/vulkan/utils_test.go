package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

func TestCheck(t *testing.T) {
	assert.NoError(t, check(vk.Success, "vkQueueSubmit"))
	assert.NoError(t, check(vk.Suboptimal, "vkQueuePresentKHR"))

	err := check(vk.ErrorOutOfDeviceMemory, "vkAllocateMemory")
	assert.EqualError(t, err, "vkAllocateMemory failed with VK_ERROR_OUT_OF_DEVICE_MEMORY A device memory allocation has failed.")
	assert.NotErrorIs(t, err, rhi.ErrDeviceLost)

	err = check(vk.ErrorDeviceLost, "vkQueueSubmit")
	assert.ErrorIs(t, err, rhi.ErrDeviceLost)
	assert.EqualError(t, err, "vkQueueSubmit: device lost")
}
