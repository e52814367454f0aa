// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
)

// config 进程配置
type config struct {
	IdrPeriod      uint      `json:"idr_period"`      // IDR 帧间隔，0 表示约每秒一个
	RefFrames      uint      `json:"ref_frames"`      // DPB 深度
	NumBFrames     uint      `json:"num_bframes"`     // 两参考间的 B 帧数
	BPyramid       bool      `json:"b_pyramid"`       // 分层 B 帧
	RateControl    string    `json:"rate_control"`    // default/disabled/cbr/vbr
	AverageBitrate uint      `json:"average_bitrate"` // 目标码率(bps)
	QualityLevel   uint      `json:"quality_level"`   // 质量提示
	AUD            bool      `json:"aud"`             // 插入访问单元分隔符
	CCInsert       bool      `json:"cc_insert"`       // 插入 CEA-708 字幕 SEI
	StatsPeriod    int       `json:"stats_period"`    // 统计输出周期（分钟），0 关闭
	Log            LogConfig `json:"log"`             // 日志配置
}

func (c *config) initFlags() {
	flag.UintVar(&c.IdrPeriod, "idr-period", 30,
		"Set the interval between IDR frames (0 means one per second)")
	flag.UintVar(&c.RefFrames, "ref-frames", 3,
		"Set the number of reference frames, including both the forward and the backward")
	flag.UintVar(&c.NumBFrames, "bframes", 0,
		"Set the number of B frames between two reference frames")
	flag.BoolVar(&c.BPyramid, "b-pyramid", false,
		"Determines if B frames can be used as references")
	flag.StringVar(&c.RateControl, "rate-control", "default",
		"Set the rate control mode: default/disabled/cbr/vbr")
	flag.UintVar(&c.AverageBitrate, "average-bitrate", 10000000,
		"Set the target bitrate in bps")
	flag.UintVar(&c.QualityLevel, "quality-level", 0,
		"Set the implementation quality hint")
	flag.BoolVar(&c.AUD, "aud", false,
		"Determines if AU (Access Unit) delimiter should be inserted for each frame")
	flag.BoolVar(&c.CCInsert, "cc-insert", false,
		"Determines if CEA-708 closed captions should be inserted")
	flag.IntVar(&c.StatsPeriod, "stats-period", 5,
		"Set the period in minutes of statistics output (0 disables it)")

	// 初始化日志配置
	c.Log.initFlags()
}
