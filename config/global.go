// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	cfg "github.com/cnotch/loader"
	"github.com/cnotch/xlog"
)

// 服务名
const (
	Vendor  = "CAOHONGJU"
	Name    = "vkenc"
	Version = "V1.0.0"
)

var globalC *config

// InitConfig 初始化 Config
func InitConfig() {
	exe, err := os.Executable()
	if err != nil {
		xlog.Panic(err.Error())
	}

	configPath := filepath.Join(filepath.Dir(exe), Name+".conf")

	globalC = new(config)
	globalC.initFlags()

	// 创建或加载配置文件
	if err := cfg.Load(globalC,
		&cfg.JSONLoader{Path: configPath, CreatedIfNonExsit: true},
		&cfg.EnvLoader{Prefix: strings.ToUpper(Name)},
		&cfg.FlagLoader{}); err != nil {
		// 异常，直接退出
		xlog.Panic(err.Error())
	}

	// 初始化日志
	globalC.Log.initLogger()
}

// IdrPeriod IDR 帧间隔
func IdrPeriod() uint32 {
	if globalC == nil {
		return 30
	}
	return uint32(globalC.IdrPeriod)
}

// RefFrames DPB 深度
func RefFrames() uint32 {
	if globalC == nil {
		return 3
	}
	return uint32(globalC.RefFrames)
}

// NumBFrames 两参考间的 B 帧数
func NumBFrames() uint32 {
	if globalC == nil {
		return 0
	}
	return uint32(globalC.NumBFrames)
}

// BPyramid 是否启用分层 B 帧
func BPyramid() bool {
	if globalC == nil {
		return false
	}
	return globalC.BPyramid
}

// RateControl 码率控制模式名
func RateControl() string {
	if globalC == nil {
		return "default"
	}
	return globalC.RateControl
}

// AverageBitrate 目标码率（bps）
func AverageBitrate() uint32 {
	if globalC == nil {
		return 10000000
	}
	return uint32(globalC.AverageBitrate)
}

// QualityLevel 质量提示
func QualityLevel() uint32 {
	if globalC == nil {
		return 0
	}
	return uint32(globalC.QualityLevel)
}

// AUD 是否插入访问单元分隔符
func AUD() bool {
	if globalC == nil {
		return false
	}
	return globalC.AUD
}

// CCInsert 是否插入字幕 SEI
func CCInsert() bool {
	if globalC == nil {
		return false
	}
	return globalC.CCInsert
}

// StatsPeriod 统计输出周期
func StatsPeriod() time.Duration {
	if globalC == nil || globalC.StatsPeriod < 0 {
		return 0
	}
	return time.Duration(globalC.StatsPeriod) * time.Minute
}
