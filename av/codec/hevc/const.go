// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

// Nal单元类型（ITU-T H.265 表 7-1 中本编码器涉及的部分）
const (
	NalTrailN = iota
	NalTrailR
	NalTsaN
	NalTsaR
	NalStsaN
	NalStsaR
	NalRadlN
	NalRadlR
	NalRaslN
	NalRaslR
)

// 其余使用到的 NAL 类型
const (
	NalIdrWRadl = 19
	NalIdrNLp   = 20
	NalCraNut   = 21
	NalVps      = 32
	NalSps      = 33
	NalPps      = 34
	NalAud      = 35
	NalSeiPrefix = 39
)

// 切片类型（ITU-T H.265 表 7-7）
const (
	SliceTypeB = 0
	SliceTypeP = 1
	SliceTypeI = 2
)

// 图像类型（GPU 描述符中的 pic_type）
const (
	PictureTypeP = iota
	PictureTypeB
	PictureTypeI
	PictureTypeIdr
)

// DPB 及参考队列限制
const (
	// MaxDpbSize 规范 A.4.2 规定的最大 DPB 容量
	MaxDpbSize = 16
	// MaxNumListRef 参考列表的最大长度
	MaxNumListRef = 15
	// NoReferencePicture 参考列表中的空槽哨兵值
	// 对应 codec 头的 STD_VIDEO_H265_NO_REFERENCE_PICTURE
	NoReferencePicture = 0xFF
)

// Profile H265 profile_idc
type Profile uint8

// 常用 profile 值
const (
	ProfileMain             Profile = 1
	ProfileMain10           Profile = 2
	ProfileMainStillPicture Profile = 3
	ProfileRangeExtensions  Profile = 4
)

var profileNames = map[string]Profile{
	"main":               ProfileMain,
	"main-10":            ProfileMain10,
	"main-still-picture": ProfileMainStillPicture,
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
