// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

// Nal单元类型
const (
	NalUnspecified = iota
	NalSlice
	NalDpa
	NalDpb
	NalDpc
	NalIdrSlice
	NalSei
	NalSps
	NalPps
	NalAud
	NalEndSequence
	NalEndStream
	NalFillerData
	NalSpsExt
	NalPrefix
)

// 切片类型（ITU-T H.264 表 7-6，仅取 0..2 的基本形式）
const (
	SliceTypeP = 0
	SliceTypeB = 1
	SliceTypeI = 2
)

// 图像类型（GPU 描述符中的 primary_pic_type）
const (
	PictureTypeP = iota
	PictureTypeB
	PictureTypeI
	PictureTypeIdr
)

// DPB 及参考队列限制
const (
	// MaxDpbFrames 规范 A.3.1 规定的最大 DPB 帧数
	MaxDpbFrames = 16
	// MaxNumListRef 参考列表的最大长度
	MaxNumListRef = 16
	// NoReferencePicture 参考列表中的空槽哨兵值
	// 对应 codec 头的 STD_VIDEO_H264_NO_REFERENCE_PICTURE
	NoReferencePicture = 0xFF
)

// Profile H264 profile_idc
type Profile uint8

// 常用 profile 值
const (
	ProfileBaseline Profile = 66
	ProfileMain     Profile = 77
	ProfileExtended Profile = 88
	ProfileHigh     Profile = 100
	ProfileHigh10   Profile = 110
	ProfileHigh422  Profile = 122
	ProfileHigh444  Profile = 244
)

var profileNames = map[string]Profile{
	"baseline":  ProfileBaseline,
	"main":      ProfileMain,
	"extended":  ProfileExtended,
	"high":      ProfileHigh,
	"high-10":   ProfileHigh10,
	"high-4:2:2": ProfileHigh422,
	"high-4:4:4": ProfileHigh444,
}

// ProfileFromName 按名称查 profile；未知返回 false
func ProfileFromName(name string) (Profile, bool) {
	p, ok := profileNames[name]
	return p, ok
}

// Name profile 名称
func (p Profile) Name() string {
	for n, v := range profileNames {
		if v == p {
			return n
		}
	}
	return "undefined"
}

// SliceTypeName 切片类型名，用于日志
func SliceTypeName(sliceType int) string {
	switch sliceType {
	case SliceTypeP:
		return "P"
	case SliceTypeB:
		return "B"
	case SliceTypeI:
		return "I"
	default:
		return "?"
	}
}
