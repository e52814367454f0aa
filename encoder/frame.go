// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"github.com/cnotch/vkenc/vulkan"
)

// SliceType 帧的切片类型
type SliceType int

// 切片类型常量
const (
	SliceP SliceType = iota
	SliceB
	SliceI
)

// String .
func (t SliceType) String() string {
	switch t {
	case SliceP:
		return "P"
	case SliceB:
		return "B"
	case SliceI:
		return "I"
	default:
		return "?"
	}
}

// Frame 按显示序接纳的一帧
type Frame struct {
	// Input GPU 上的 YUV 图像
	Input *vulkan.ImageBuffer
	// SystemFrameNumber 接纳时分配的系统帧号
	SystemFrameNumber uint32
	// ForceKeyframe 强制升级为 IDR
	ForceKeyframe bool
	// Captions CEA-708 原始字幕数据，每条为 cc_data 三元组序列
	Captions [][]byte

	// 由 GOP 表在接纳时填充
	typ             SliceType
	isRef           bool
	pyramidLevel    uint32
	leftRefPocDiff  int
	rightRefPocDiff int

	poc      int
	frameNum int
	gopIndex int

	// unusedRefPicNum 本帧显式替换出 DPB 的参考的 frame_num；
	// -1 表示无需显式标记
	unusedRefPicNum int

	// totalFrameCount 接纳序号，用于 PTS 推导
	totalFrameCount uint32
	quality         uint32
	syncPoint       bool
	lastFrame       bool
	emitted         bool

	picture *vulkan.EncodePicture
}

// NewFrame 创建待接纳的帧
func NewFrame(in *vulkan.ImageBuffer, systemFrameNumber uint32) *Frame {
	return newFrame(in, systemFrameNumber)
}

func newFrame(in *vulkan.ImageBuffer, systemFrameNumber uint32) *Frame {
	return &Frame{
		Input:             in,
		SystemFrameNumber: systemFrameNumber,
		typ:               SliceI,
		isRef:             true,
		unusedRefPicNum:   -1,
	}
}

// Poc 帧的图像顺序号
func (f *Frame) Poc() int { return f.poc }

// FrameNum 帧的解码序号（仅参考帧递增）
func (f *Frame) FrameNum() int { return f.frameNum }

// SliceType 帧的切片类型
func (f *Frame) SliceType() SliceType { return f.typ }

// IsReference 是否参考帧
func (f *Frame) IsReference() bool { return f.isRef }

// SyncPoint 是否同步点
func (f *Frame) SyncPoint() bool { return f.syncPoint }

// release 释放帧持有的 GPU 资源
func (f *Frame) release() {
	if f.picture != nil {
		f.picture.Free()
		f.picture = nil
	}
}
