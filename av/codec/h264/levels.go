// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import "errors"

// ErrUnsupportedLevel 没有满足编码配置的级别
var ErrUnsupportedLevel = errors.New("h264: no level matching codec config")

// LevelLimit 级别限制（ITU-T H.264 表 A-1）
type LevelLimit struct {
	Name      string
	Idc       uint8
	MaxMBPS   uint32 // 每秒最大宏块数
	MaxFS     uint32 // 单帧最大宏块数
	MaxDpbMbs uint32
	MaxBR     uint32 // kbit/s，按 cpbBrNalFactor 缩放
	MaxCPB    uint32
	MinCR     uint32
}

// 级别表按限制升序排列，选择时取第一个满足的行
var levelLimits = []LevelLimit{
	{"1", 10, 1485, 99, 396, 64, 175, 2},
	{"1b", 9, 1485, 99, 396, 128, 350, 2},
	{"1.1", 11, 3000, 396, 900, 192, 500, 2},
	{"1.2", 12, 6000, 396, 2376, 384, 1000, 2},
	{"1.3", 13, 11880, 396, 2376, 768, 2000, 2},
	{"2", 20, 11880, 396, 2376, 2000, 2000, 2},
	{"2.1", 21, 19800, 792, 4752, 4000, 4000, 2},
	{"2.2", 22, 20250, 1620, 8100, 4000, 4000, 2},
	{"3", 30, 40500, 1620, 8100, 10000, 10000, 2},
	{"3.1", 31, 108000, 3600, 18000, 14000, 14000, 4},
	{"3.2", 32, 216000, 5120, 20480, 20000, 20000, 4},
	{"4", 40, 245760, 8192, 32768, 20000, 25000, 4},
	{"4.1", 41, 245760, 8192, 32768, 50000, 62500, 2},
	{"4.2", 42, 522240, 8704, 34816, 50000, 62500, 2},
	{"5", 50, 589824, 22080, 110400, 135000, 135000, 2},
	{"5.1", 51, 983040, 36864, 184320, 240000, 240000, 2},
	{"5.2", 52, 2073600, 36864, 184320, 240000, 240000, 2},
	{"6", 60, 4177920, 139264, 696320, 240000, 240000, 2},
	{"6.1", 61, 8355840, 139264, 696320, 480000, 480000, 2},
	{"6.2", 62, 16711680, 139264, 696320, 800000, 800000, 2},
}

// CpbBrNalFactor 表 A-2 的 cpbBrNalFactor
func CpbBrNalFactor(profile Profile) uint32 {
	switch profile {
	case ProfileHigh:
		return 1500
	case ProfileHigh10:
		return 3600
	case ProfileHigh422, ProfileHigh444:
		return 4800
	case ProfileBaseline, ProfileMain:
		return 1200
	default:
		return 1200
	}
}

// SelectLevel 依据宏块量、帧率和码率选择最低可用级别。
// maxBitrateBits 和 cpbLengthBits 为 0 时不参与判定。
func SelectLevel(picSizeMbs, maxDpbMbs, maxMBPS uint32,
	maxBitrateBits, cpbLengthBits uint64, profile Profile) (*LevelLimit, error) {
	cpbFactor := uint64(CpbBrNalFactor(profile))

	for i := range levelLimits {
		level := &levelLimits[i]
		if picSizeMbs <= level.MaxFS && maxDpbMbs <= level.MaxDpbMbs &&
			maxMBPS <= level.MaxMBPS &&
			(maxBitrateBits == 0 ||
				maxBitrateBits <= uint64(level.MaxBR)*1000*cpbFactor) &&
			(cpbLengthBits == 0 ||
				cpbLengthBits <= uint64(level.MaxCPB)*1000*cpbFactor) {
			return level, nil
		}
	}

	return nil, ErrUnsupportedLevel
}
