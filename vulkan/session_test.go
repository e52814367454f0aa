// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vulkan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cnotch/vkenc/av/codec/h264"
	"github.com/cnotch/vkenc/vulkan"
	"github.com/cnotch/vkenc/vulkan/vulkantest"
)

func h264Profile() *vulkan.VideoProfile {
	return &vulkan.VideoProfile{
		Op:                vulkan.CodecOperationEncodeH264,
		ChromaSubsampling: vulkan.ChromaSubsampling420,
		LumaBitDepth:      vulkan.ComponentBitDepth8,
		ChromaBitDepth:    vulkan.ComponentBitDepth8,
		Codec:             &h264.ProfileInfo{StdProfileIdc: h264.ProfileMain},
	}
}

func h264SessionParams() *h264.SessionParametersCreateInfo {
	return &h264.SessionParametersCreateInfo{
		MaxStdSPSCount: 1,
		MaxStdPPSCount: 1,
		AddInfo: &h264.SessionParametersAddInfo{
			SPSs: []*h264.SPS{{}},
			PPSs: []*h264.PPS{{}},
		},
	}
}

func newStartedEncoder(t *testing.T, device *vulkantest.Device) *vulkan.Encoder {
	enc := vulkan.NewEncoder(vulkantest.NewQueue(device), vulkan.CodecOperationEncodeH264)
	assert.NoError(t, enc.Start(h264Profile(), h264SessionParams()))
	return enc
}

func TestEncoderStartStop(t *testing.T) {
	device := vulkantest.NewDevice(&h264.Capabilities{MaxPPictureL0ReferenceCount: 16})
	enc := newStartedEncoder(t, device)

	caps, ok := enc.Caps()
	assert.True(t, ok)
	assert.Equal(t, uint32(16), caps.MaxDpbSlots)

	// 启动时冲刷会话状态：一轮带复位的空编码上下文
	assert.Equal(t, 1, device.Submits)
	if assert.NotEmpty(t, device.ControlInfos) {
		assert.NotZero(t, device.ControlInfos[0].Flags&vulkan.CodingControlReset)
	}

	assert.Equal(t, 1, device.SessionsAlive)
	assert.Equal(t, 1, device.ParamsAlive)

	enc.Stop()
	assert.Equal(t, 0, device.SessionsAlive)
	assert.Equal(t, 0, device.ParamsAlive)

	// 重复 Stop 与单次等价
	enc.Stop()
	assert.Equal(t, 0, device.SessionsAlive)

	_, ok = enc.Caps()
	assert.False(t, ok)
}

func TestEncoderStartInvalidProfile(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	enc := vulkan.NewEncoder(vulkantest.NewQueue(device), vulkan.CodecOperationEncodeH264)

	profile := h264Profile()
	profile.Op = vulkan.CodecOperationEncodeH265
	assert.Equal(t, vulkan.ErrInvalidProfile, enc.Start(profile, h264SessionParams()))

	// 失败后 Stop 仍然安全
	enc.Stop()
}

func TestEncoderStartDriverNeedsNewerHeaders(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	device.Caps.StdHeaderVersion.SpecVersion = vulkan.MakeVersion(2, 0, 0)
	enc := vulkan.NewEncoder(vulkantest.NewQueue(device), vulkan.CodecOperationEncodeH264)

	err := enc.Start(h264Profile(), h264SessionParams())
	assert.Error(t, err)
	assert.Equal(t, 0, device.SessionsAlive)
}

func TestEncoderStartNoFormat(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	device.Formats = []vulkan.FormatProperties{{Format: 7, ComponentLayout: "AYUV"}}
	enc := vulkan.NewEncoder(vulkantest.NewQueue(device), vulkan.CodecOperationEncodeH264)

	assert.Equal(t, vulkan.ErrNoOutputFormat, enc.Start(h264Profile(), h264SessionParams()))
	enc.Stop()
}

func TestEncoderSessionParamsTwoCall(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	enc := newStartedEncoder(t, device)
	defer enc.Stop()

	data, err := enc.SessionParams(&h264.SessionParametersGetInfo{
		WriteStdSPS: true,
		WriteStdPPS: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, vulkantest.DefaultSessionParams, data)
}

func TestEncoderReconfigure(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	enc := newStartedEncoder(t, device)
	defer enc.Stop()

	assert.NoError(t, enc.Reconfigure(h264SessionParams()))
	// 旧参数对象销毁，新对象存活
	assert.Equal(t, 1, device.ParamsAlive)
}

func TestEncoderEncodeFeedback(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	device.OnEncode = func(info *vulkan.EncodeInfo) (uint32, uint32) {
		data := info.DstBuffer.Bytes()
		for i := 32; i < 32+200; i++ {
			data[i] = 0x5a
		}
		return 32, 200
	}
	enc := newStartedEncoder(t, device)
	defer enc.Stop()

	pic := vulkan.NewEncodePicture(vulkantest.NewImageBuffer(), 320, 240, true, 0)
	assert.NoError(t, enc.Encode(pic, nil))

	assert.Equal(t, uint32(32), pic.Feedback.Offset)
	assert.Equal(t, uint32(200), pic.Feedback.Size)
	assert.Equal(t, vulkan.QueryResultStatusComplete, pic.Feedback.Status)
	assert.NotEqual(t, int32(-1), pic.SlotIndex)

	// 输出缓冲按对齐取整的 3MiB 上限分配
	assert.Equal(t, uint64(3*1024*1024), pic.OutBuffer.Size())
}

func TestEncoderSlotRecycling(t *testing.T) {
	device := vulkantest.NewDevice(nil)
	device.Caps.MaxDpbSlots = 2
	enc := newStartedEncoder(t, device)
	defer enc.Stop()

	pic1 := vulkan.NewEncodePicture(vulkantest.NewImageBuffer(), 320, 240, true, 0)
	assert.NoError(t, enc.Encode(pic1, nil))
	pic2 := vulkan.NewEncodePicture(vulkantest.NewImageBuffer(), 320, 240, true, 0)
	assert.NoError(t, enc.Encode(pic2, nil))
	assert.Equal(t, 2, enc.NRefSlots())

	// 槽位耗尽
	pic3 := vulkan.NewEncodePicture(vulkantest.NewImageBuffer(), 320, 240, true, 0)
	assert.Equal(t, vulkan.ErrDpbSlotsExhausted, enc.Encode(pic3, nil))

	// 释放后可复用
	enc.ReleaseSlot(pic1.SlotIndex)
	assert.Equal(t, 1, enc.NRefSlots())
	pic4 := vulkan.NewEncodePicture(vulkantest.NewImageBuffer(), 320, 240, true, 0)
	assert.NoError(t, enc.Encode(pic4, nil))
	assert.Equal(t, pic1.SlotIndex, pic4.SlotIndex)
}
