// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import "github.com/cnotch/vkenc/vulkan"

// 码控透传。模式与下发内容的对应关系：
//
//	default  | 不带码控结构
//	disabled | mode=disabled，无层
//	cbr      | 单层，maxBitrate 压成 averageBitrate
//	vbr      | 单层，average ≤ max
//
// 会话的第一帧还会附带复位控制和质量级别控制（如配置），
// 之后的帧仅在 begin coding 上挂码控信息。
// 时序由 vulkan.Encoder 执行，这里只负责把配置交给会话。
func (e *Encoder) applyRateControl() {
	e.venc.SetRateControl(e.cfg.RateControl, uint64(e.cfg.AverageBitrate), e.cfg.QualityLevel)
}

// maxBitrateBits 参与级别判定的码率上限（bit）；
// 未启用码控时不参与
func (e *Encoder) maxBitrateBits() uint64 {
	if e.cfg.RateControl == vulkan.RateControlModeCBR ||
		e.cfg.RateControl == vulkan.RateControlModeVBR {
		return uint64(e.cfg.AverageBitrate)
	}
	return 0
}
