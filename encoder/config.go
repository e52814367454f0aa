// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"github.com/cnotch/vkenc/vulkan"
)

// 配置的取值边界
const (
	MaxIdrPeriod = 1024
	MaxNumSlices = 200
	MaxQpValue   = 51
	MaxRefFrames = 15
)

// Config 编码器配置；启动后不可变，变更请求在下一个
// GOP 边界生效
type Config struct {
	// Profile 编码 profile 名称，空串取各编码的默认值
	Profile string `json:"profile,omitempty"`

	// IdrPeriod IDR 帧间隔；0 表示约每秒一个
	IdrPeriod uint32 `json:"idr_period"`
	// NumBFrames 两个参考帧之间的 B 帧数
	NumBFrames uint32 `json:"num_bframes"`
	// BPyramid 启用分层 B 帧
	BPyramid bool `json:"b_pyramid"`
	// NumIFrames GOP 内除 IDR 外插入的 I 帧数
	NumIFrames uint32 `json:"num_iframes"`
	// NumRefFrames DPB 深度，含前向和后向
	NumRefFrames uint32 `json:"ref_frames"`

	// NumSlices 每帧切片数
	NumSlices uint32 `json:"num_slices"`

	// MinQp/MaxQp 码控的量化边界
	MinQp uint32 `json:"min_qp"`
	MaxQp uint32 `json:"max_qp"`
	// QpI/QpP/QpB 按帧类型的量化值，作为质量级别的首选常量 QP 下发。
	// 逐帧量化值不分帧类型：以 QpI 为初值，按码率反馈调整
	QpI uint32 `json:"qp_i"`
	QpP uint32 `json:"qp_p"`
	QpB uint32 `json:"qp_b"`

	// AUD 每帧前插入访问单元分隔符
	AUD bool `json:"aud"`
	// CC 插入 CEA-708 字幕 SEI
	CC bool `json:"cc_insert"`

	// RateControl 码率控制模式
	RateControl vulkan.RateControlMode `json:"rate_control"`
	// AverageBitrate 目标平均码率（bps）
	AverageBitrate uint32 `json:"average_bitrate"`
	// QualityLevel 实现相关的质量提示，0 不下发
	QualityLevel uint32 `json:"quality_level"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		IdrPeriod:      30,
		NumRefFrames:   3,
		NumSlices:      1,
		MinQp:          1,
		MaxQp:          51,
		QpI:            26,
		QpP:            26,
		QpB:            26,
		RateControl:    vulkan.RateControlModeDefault,
		AverageBitrate: 10_000_000,
	}
}

// normalize 把配置收敛到合法区间
func (c *Config) normalize() {
	if c.IdrPeriod > MaxIdrPeriod {
		c.IdrPeriod = MaxIdrPeriod
	}
	if c.NumSlices == 0 {
		c.NumSlices = 1
	}
	if c.NumSlices > MaxNumSlices {
		c.NumSlices = MaxNumSlices
	}
	if c.NumRefFrames > MaxRefFrames {
		c.NumRefFrames = MaxRefFrames
	}
	if c.MinQp > MaxQpValue {
		c.MinQp = MaxQpValue
	}
	if c.MaxQp > MaxQpValue {
		c.MaxQp = MaxQpValue
	}
	if c.MaxQp < c.MinQp {
		c.MaxQp = c.MinQp
	}
	clampQp := func(qp *uint32) {
		if *qp < c.MinQp {
			*qp = c.MinQp
		}
		if *qp > c.MaxQp {
			*qp = c.MaxQp
		}
	}
	clampQp(&c.QpI)
	clampQp(&c.QpP)
	clampQp(&c.QpB)
}
