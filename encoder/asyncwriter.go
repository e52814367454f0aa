// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"runtime/debug"

	"github.com/cnotch/queue"
	"github.com/cnotch/xlog"

	"github.com/cnotch/vkenc/av/codec"
)

// AsyncWriter 把产出帧转交给后台协程消费，使编码循环不被
// 慢速下游阻塞。实现 codec.FrameWriter。
type AsyncWriter struct {
	recvQueue *queue.SyncQueue
	w         codec.FrameWriter
	logger    *xlog.Logger
	closed    bool
}

// NewAsyncWriter 创建异步输出并启动消费协程
func NewAsyncWriter(w codec.FrameWriter) *AsyncWriter {
	aw := &AsyncWriter{
		recvQueue: queue.NewSyncQueue(),
		w:         w,
		logger:    xlog.L(),
	}
	go aw.consume()
	return aw
}

// WriteFrame 入列一帧
func (aw *AsyncWriter) WriteFrame(frame *codec.Frame) error {
	aw.recvQueue.Push(frame)
	return nil
}

func (aw *AsyncWriter) consume() {
	defer func() {
		defer func() { // 避免 handler 再 panic
			recover()
		}()

		if r := recover(); r != nil {
			aw.logger.Errorf("asyncwriter routine panic；r = %v \n %s", r, debug.Stack())
		}

		// 尽早通知GC，回收内存
		aw.recvQueue.Reset()
	}()

	for !aw.closed {
		f := aw.recvQueue.Pop()
		if f == nil {
			if !aw.closed {
				aw.logger.Warn("asyncwriter: receive nil frame")
			}
			continue
		}

		if err := aw.w.WriteFrame(f.(*codec.Frame)); err != nil {
			aw.logger.Errorf("asyncwriter: write frame error: %s", err.Error())
		}
	}
}

// Close 关闭异步输出
func (aw *AsyncWriter) Close() error {
	if aw.closed {
		return nil
	}

	aw.closed = true
	aw.recvQueue.Signal()
	return nil
}
