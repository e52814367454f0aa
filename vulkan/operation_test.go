// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vulkan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cnotch/vkenc/vulkan"
	"github.com/cnotch/vkenc/vulkan/vulkantest"
)

func newTestOperation(t *testing.T, device *vulkantest.Device) *vulkan.Operation {
	queue := vulkantest.NewQueue(device)
	pool, err := queue.CreateCommandPool()
	assert.NoError(t, err)
	return vulkan.NewOperation(pool)
}

func TestOperationBeginEndWait(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	op := newTestOperation(t, device)

	assert.True(t, op.UseSync2())

	assert.NoError(t, op.Begin())
	assert.NotNil(t, op.CommandBuffer())
	assert.NoError(t, op.End())
	assert.NoError(t, op.Wait())
	assert.Nil(t, op.CommandBuffer())
	assert.Equal(t, 1, device.Submits)
}

func TestOperationEndWithoutBegin(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	op := newTestOperation(t, device)
	assert.Equal(t, vulkan.ErrNoCommandBuffer, op.End())
}

func TestOperationFrameBarrier(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	op := newTestOperation(t, device)
	frame := vulkantest.NewImageBuffer()

	assert.NoError(t, op.Begin())
	assert.NoError(t, op.AddFrameBarrier(frame, vulkan.StageVideoEncode,
		vulkan.AccessVideoEncodeRead, vulkan.ImageLayoutVideoEncodeSrc,
		vulkan.QueueFamilyIgnored))
	assert.NoError(t, op.End())
	assert.NoError(t, op.Wait())

	// 每个平面一条屏障
	if assert.Len(t, device.Barriers, 1) {
		assert.Len(t, device.Barriers[0], len(frame.Planes))
		assert.Equal(t, vulkan.ImageLayoutUndefined, device.Barriers[0][0].OldLayout)
		assert.Equal(t, vulkan.ImageLayoutVideoEncodeSrc, device.Barriers[0][0].NewLayout)
	}

	// 提交后屏障状态写回图像
	for _, mem := range frame.Planes {
		assert.Equal(t, vulkan.ImageLayoutVideoEncodeSrc, mem.Barrier.Layout)
		assert.Equal(t, vulkan.AccessVideoEncodeRead, mem.Barrier.Access)
		assert.Equal(t, vulkan.StageVideoEncode, mem.Barrier.Stages)
	}
}

func TestOperationDependencyFrameAdvancesTimeline(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	op := newTestOperation(t, device)
	frame := vulkantest.NewImageBuffer()

	assert.NoError(t, op.Begin())
	assert.True(t, op.AddDependencyFrame(frame, vulkan.StageVideoEncode, vulkan.StageVideoEncode))
	assert.NoError(t, op.End())

	// 时间线值在提交成功后前进
	for _, mem := range frame.Planes {
		assert.Equal(t, uint64(1), mem.Barrier.SemaphoreValue)
	}

	assert.NoError(t, op.Wait())

	// 第二次操作等待新值
	assert.NoError(t, op.Begin())
	assert.True(t, op.AddDependencyFrame(frame, vulkan.StageVideoEncode, vulkan.StageVideoEncode))
	assert.NoError(t, op.End())
	assert.NoError(t, op.Wait())

	for _, mem := range frame.Planes {
		assert.Equal(t, uint64(2), mem.Barrier.SemaphoreValue)
	}
}

func TestOperationDependencyWithoutTimeline(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	device.Extensions[vulkan.ExtTimelineSemaphore] = false
	op := newTestOperation(t, device)
	frame := vulkantest.NewImageBuffer()

	assert.NoError(t, op.Begin())
	assert.False(t, op.AddDependencyFrame(frame, vulkan.StageVideoEncode, vulkan.StageVideoEncode))
	assert.NoError(t, op.End())
	assert.NoError(t, op.Wait())
}

func TestOperationSubmit1Path(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	device.Extensions[vulkan.ExtSynchronization2] = false
	op := newTestOperation(t, device)
	frame := vulkantest.NewImageBuffer()

	assert.False(t, op.UseSync2())

	assert.NoError(t, op.Begin())
	assert.True(t, op.AddDependencyFrame(frame, vulkan.StageVideoEncode, vulkan.StageVideoEncode))
	assert.NoError(t, op.End())
	assert.NoError(t, op.Wait())
	assert.Equal(t, 1, device.Submits)
}

func TestOperationQuery(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	op := newTestOperation(t, device)

	profile := &vulkan.VideoProfile{Op: vulkan.CodecOperationEncodeH264}
	assert.NoError(t, op.EnableQuery(vulkan.QueryTypeVideoEncodeFeedback, 1, profile,
		vulkan.EncodeFeedbackBitstreamBufferOffset|vulkan.EncodeFeedbackBitstreamBytesWritten))

	// 未编码时查询为空
	fb, err := op.GetQuery()
	assert.NoError(t, err)
	assert.Equal(t, vulkan.QueryResultStatusNotReady, fb.Status)
}

func TestOperationQueryDisabled(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	op := newTestOperation(t, device)
	_, err := op.GetQuery()
	assert.Equal(t, vulkan.ErrQueryUnsupported, err)
}
