// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

import "errors"

// ErrUnsupportedLevel 没有满足编码配置的级别
var ErrUnsupportedLevel = errors.New("hevc: no level matching codec config")

// LevelLimit 级别限制（ITU-T H.265 表 A.8/A.9）
type LevelLimit struct {
	Name          string
	Idc           uint8 // general_level_idc = 级别号 × 30
	MaxLumaPs     uint32
	MaxCPBTierMain uint32
	MaxCPBTierHigh uint32
	MaxSliceSegPic uint32
	MaxTileRows    uint32
	MaxTileColumns uint32
	MaxLumaSr      uint32
	MaxBRTierMain  uint32 // kbit/s
	MaxBRTierHigh  uint32 // kbit/s，0 表示该级别无 high tier
	MinCr          uint32
}

// 级别表按限制升序排列
var levelLimits = []LevelLimit{
	{"1", 30, 36864, 350, 0, 16, 1, 1, 552960, 128, 0, 2},
	{"2", 60, 122880, 1500, 0, 16, 1, 1, 3686400, 1500, 0, 2},
	{"2.1", 63, 245760, 3000, 0, 20, 1, 1, 7372800, 3000, 0, 2},
	{"3", 90, 552960, 6000, 0, 30, 2, 2, 16588800, 6000, 0, 2},
	{"3.1", 93, 983040, 10000, 0, 40, 3, 3, 33177600, 10000, 0, 2},
	{"4", 120, 2228224, 12000, 30000, 75, 5, 5, 66846720, 12000, 30000, 4},
	{"4.1", 123, 2228224, 20000, 50000, 75, 5, 5, 133693440, 20000, 50000, 4},
	{"5", 150, 8912896, 25000, 100000, 200, 11, 10, 267386880, 25000, 100000, 6},
	{"5.1", 153, 8912896, 40000, 160000, 200, 11, 10, 534773760, 40000, 160000, 8},
	{"5.2", 156, 8912896, 60000, 240000, 200, 11, 10, 1069547520, 60000, 240000, 8},
	{"6", 180, 35651584, 60000, 240000, 600, 22, 20, 1069547520, 60000, 240000, 8},
	{"6.1", 183, 35651584, 120000, 480000, 600, 22, 20, 2139095040, 120000, 480000, 8},
	{"6.2", 186, 35651584, 240000, 800000, 600, 22, 20, 4278190080, 240000, 800000, 6},
}

// SelectLevel 依据亮度样点量和采样率选择最低可用级别，并推导 tier。
// maxBitrate 单位为 kbit/s；tier 为 high 仅当码率超出 main tier 上限
// 且该级别存在 high tier。
func SelectLevel(picSizeInSamplesY, lumaSr uint32, maxBitrate uint32) (level *LevelLimit, highTier bool, err error) {
	for i := range levelLimits {
		l := &levelLimits[i]
		// 按亮度图像尺寸和亮度采样率选择级别
		if picSizeInSamplesY <= l.MaxLumaPs && lumaSr <= l.MaxLumaSr {
			level = l
			break
		}
	}

	if level == nil {
		return nil, false, ErrUnsupportedLevel
	}

	if level.MaxBRTierHigh == 0 || maxBitrate <= level.MaxBRTierMain {
		highTier = false
	} else {
		highTier = true
	}

	return level, highTier, nil
}

// TierMaxBitrate 级别在指定 tier 下的码率上限（kbit/s）
func (l *LevelLimit) TierMaxBitrate(highTier bool) uint32 {
	if highTier {
		return l.MaxBRTierHigh
	}
	return l.MaxBRTierMain
}
