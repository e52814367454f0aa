// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

// Frame 编码输出的完整帧，按解码序产出
type Frame struct {
	SystemFrameNumber uint32 // 接纳时分配的系统帧号
	Dts               int64  // DTS，单位为 ns
	Pts               int64  // PTS，单位为 ns
	Duration          int64  // 帧时长，单位为 ns
	SyncPoint         bool   // 是否同步点(IDR)
	Payload           []byte // 压缩后的字节流（NAL 序列）
}

// FrameWriter 包装 WriteFrame 方法的接口
type FrameWriter interface {
	WriteFrame(frame *Frame) error
}
