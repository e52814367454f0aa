// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package vkenc 提供 Vulkan 后端的 H.264/H.265 视频编码核心。
// 子包 encoder 是编码流水线，vulkan 是 GPU 会话与队列操作，
// av/codec 是编码侧的码流语法层。
package vkenc

import (
	"github.com/cnotch/vkenc/config"
	"github.com/cnotch/vkenc/encoder"
	"github.com/cnotch/vkenc/stats"
	"github.com/cnotch/vkenc/vulkan"
)

// Init 加载进程配置（配置文件/环境变量/命令行）、初始化日志，
// 并按配置启动统计输出。嵌入方在创建编码器前调用一次。
func Init() {
	config.InitConfig()

	if period := config.StatsPeriod(); period > 0 {
		stats.StartReporter(period)
	}
}

// DefaultEncoderConfig 用进程配置的值组装编码器配置
func DefaultEncoderConfig() encoder.Config {
	cfg := encoder.DefaultConfig()

	cfg.IdrPeriod = config.IdrPeriod()
	cfg.NumRefFrames = config.RefFrames()
	cfg.NumBFrames = config.NumBFrames()
	cfg.BPyramid = config.BPyramid()
	cfg.AverageBitrate = config.AverageBitrate()
	cfg.QualityLevel = config.QualityLevel()
	cfg.AUD = config.AUD()
	cfg.CC = config.CCInsert()

	var mode vulkan.RateControlMode
	mode.UnmarshalText([]byte(config.RateControl()))
	cfg.RateControl = mode

	return cfg
}
