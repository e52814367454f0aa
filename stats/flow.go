// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"sync/atomic"
)

// EncodeFlow 进程内所有编码器的总流量
var EncodeFlow = NewFlow()

// FlowSample 流量统计采样
type FlowSample struct {
	InBytes   int64 `json:"inbytes"`  // 接纳的原始字节
	OutBytes  int64 `json:"outbytes"` // 产出的压缩字节
	InFrames  int64 `json:"inframes"`
	OutFrames int64 `json:"outframes"`
}

// Flow 流量统计接口
type Flow interface {
	AddIn(size int64)      // 增加输入
	AddOut(size int64)     // 增加输出
	GetSample() FlowSample // 获取当前时点采样
}

func (fs *FlowSample) clone() FlowSample {
	return FlowSample{
		InBytes:   atomic.LoadInt64(&fs.InBytes),
		OutBytes:  atomic.LoadInt64(&fs.OutBytes),
		InFrames:  atomic.LoadInt64(&fs.InFrames),
		OutFrames: atomic.LoadInt64(&fs.OutFrames),
	}
}

// Add 采样累加
func (fs *FlowSample) Add(f FlowSample) {
	fs.InBytes = fs.InBytes + f.InBytes
	fs.OutBytes = fs.OutBytes + f.OutBytes
	fs.InFrames = fs.InFrames + f.InFrames
	fs.OutFrames = fs.OutFrames + f.OutFrames
}

type flow struct {
	sample FlowSample
}

// NewFlow 创建流量统计
func NewFlow() Flow {
	return &flow{}
}

func (r *flow) AddIn(size int64) {
	atomic.AddInt64(&r.sample.InBytes, size)
	atomic.AddInt64(&r.sample.InFrames, 1)
}

func (r *flow) AddOut(size int64) {
	atomic.AddInt64(&r.sample.OutBytes, size)
	atomic.AddInt64(&r.sample.OutFrames, 1)
}

func (r *flow) GetSample() FlowSample {
	return r.sample.clone()
}

type childFlow struct {
	parent Flow
	sample FlowSample
}

// NewChildFlow 创建子流量计数，它会把自己的计数Add到parent上
func NewChildFlow(parent Flow) Flow {
	return &childFlow{
		parent: parent,
	}
}

func (r *childFlow) AddIn(size int64) {
	atomic.AddInt64(&r.sample.InBytes, size)
	atomic.AddInt64(&r.sample.InFrames, 1)
	r.parent.AddIn(size)
}

func (r *childFlow) AddOut(size int64) {
	atomic.AddInt64(&r.sample.OutBytes, size)
	atomic.AddInt64(&r.sample.OutFrames, 1)
	r.parent.AddOut(size)
}

func (r *childFlow) GetSample() FlowSample {
	return r.sample.clone()
}
