// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package encoder 实现 Vulkan 后端的 H.264/H.265 视频编码核心：
// 按显示序接纳原始帧，按解码序产出压缩帧。
package encoder

import (
	"errors"
	"fmt"

	"github.com/cnotch/queue"
	"github.com/cnotch/xlog"

	"github.com/cnotch/vkenc/av/codec"
	"github.com/cnotch/vkenc/stats"
	"github.com/cnotch/vkenc/vulkan"
)

// 错误定义
var (
	// ErrNotConfigured 尚未 SetFormat
	ErrNotConfigured = errors.New("encoder: not configured")
	// ErrInternal 内部不变量被破坏
	ErrInternal = errors.New("encoder: internal error")
)

// codecOps 编码相关的能力集，H.264 和 H.265 各有一个实现
type codecOps interface {
	codecType() codec.Type
	// supportsBFrames H.264 路径尚未实现 B 帧
	supportsBFrames() bool
	// accumulatesUsedBytes 是否把输出字节计入自适应 QP 反馈
	accumulatesUsedBytes() bool
	// start 依据编码器格式启动 GPU 会话
	start() error
	stop()
	// maxNumReference GPU 对 list0/list1 的参考能力
	maxNumReference() (list0, list1 uint32, ok bool)
	// encodeFrame 填充 GPU 描述符与打包头并提交单帧编码
	encodeFrame(f *Frame, list0, list1 []*Frame) error
}

// Encoder 编码器核心。单实例内协作式单线程：
// 接纳、重排、DPB 更新、命令录制与提交全部串行。
type Encoder struct {
	logger *xlog.Logger
	cfg    Config

	ops  codecOps
	venc *vulkan.Encoder
	out  codec.FrameWriter
	flow stats.Flow

	width      int
	height     int
	lumaWidth  int
	lumaHeight int
	mbWidth    int
	mbHeight   int
	format     codec.PixelFormat
	frameRate  codec.Rational

	frameDuration int64
	startPts      int64
	rawFrameSize  int64

	inputFrameCount  uint32
	outputFrameCount uint32

	gop         gopState
	reorderList []*Frame
	refList     []*Frame
	outputQueue queue.Queue

	currentQuality uint32
	usedBytes      uint64
	nbFrames       uint64

	pendingCfg *Config

	started bool
}

func newEncoder(ops codecOps, venc *vulkan.Encoder, out codec.FrameWriter, cfg Config) *Encoder {
	cfg.normalize()
	e := &Encoder{
		logger: xlog.L().With(xlog.Fields(xlog.F("codec", ops.codecType().String()))),
		cfg:    cfg,
		ops:    ops,
		venc:   venc,
		out:    out,
		flow:   stats.NewChildFlow(stats.EncodeFlow),
	}
	e.currentQuality = cfg.QpI
	return e
}

// Config 当前配置
func (e *Encoder) Config() Config { return e.cfg }

// Flow 本实例的流量计数
func (e *Encoder) Flow() stats.Flow { return e.flow }

// SetConfig 请求变更配置；在下一个 GOP 边界生效。
// 分辨率与编码类型不在变更范围内。
func (e *Encoder) SetConfig(cfg Config) {
	cfg.normalize()
	e.pendingCfg = &cfg
}

// SetFormat 设定输入格式并启动会话。重复调用会重建 GOP 结构。
func (e *Encoder) SetFormat(width, height int, frameRate codec.Rational, format codec.PixelFormat) error {
	if width <= 0 || height <= 0 || frameRate.Num == 0 || frameRate.Den == 0 {
		return fmt.Errorf("encoder: invalid format %dx%d@%d/%d",
			width, height, frameRate.Num, frameRate.Den)
	}

	e.width = width
	e.height = height
	e.lumaWidth = (width + 15) &^ 15
	e.lumaHeight = (height + 15) &^ 15
	e.mbWidth = e.lumaWidth / 16
	e.mbHeight = e.lumaHeight / 16
	e.format = format
	e.frameRate = frameRate
	e.frameDuration = int64(1e9) * int64(frameRate.Den) / int64(frameRate.Num)
	// 4:2:0 的原始帧字节估算，流量统计用
	_, lumaDepth, _, _ := format.ChromaInfo()
	e.rawFrameSize = int64(e.lumaWidth) * int64(e.lumaHeight) * 3 / 2 * int64((lumaDepth+7)/8)

	e.gop.prepare(&e.cfg, frameRate, e.ops.supportsBFrames(), e.logger)

	if err := e.ops.start(); err != nil {
		return err
	}

	list0, list1, ok := e.ops.maxNumReference()
	if !ok {
		e.logger.Info("failed to get the max num reference")
		list0, list1 = 1, 0
	}
	e.gop.generate(list0, list1, e.logger)

	e.started = true
	return nil
}

// HandleFrame 接纳一帧并驱动编码循环；就绪的输出按解码序
// 经 FrameWriter 产出
func (e *Encoder) HandleFrame(f *Frame) error {
	if !e.started {
		return ErrNotConfigured
	}

	e.setQuality(f)

	// 接纳时的规划字段复位，调用方只填公开字段
	f.unusedRefPicNum = -1
	f.totalFrameCount = e.inputFrameCount
	e.inputFrameCount++
	e.flow.AddIn(e.rawFrameSize)

	if err := e.push(f, false); err != nil {
		return err
	}

	return e.encodeReady()
}

// Drain 冲刷所有缓冲帧；结束后 GOP 计数复位，
// 下一帧将开启新 GOP
func (e *Encoder) Drain() error {
	if !e.started {
		return ErrNotConfigured
	}

	if err := e.push(nil, true); err != nil {
		return err
	}
	if err := e.encodeReady(); err != nil {
		return err
	}

	if len(e.reorderList) != 0 {
		return ErrInternal
	}

	// flush 后从 IDR 重新开始
	e.gop.curFrameIndex = 0
	e.gop.curFrameNum = 0
	return nil
}

// Stop 停止编码器并释放资源；重复调用等价一次
func (e *Encoder) Stop() error {
	if !e.started {
		return nil
	}

	for _, f := range e.reorderList {
		f.release()
	}
	e.reorderList = nil
	e.clearRefList()
	e.drainOutputs()

	e.ops.stop()
	e.started = false
	return nil
}

// encodeReady 编码所有已就绪的帧并排出输出
func (e *Encoder) encodeReady() error {
	for {
		f := e.pop()
		if f == nil {
			break
		}

		if err := e.encodeOne(f); err != nil {
			e.logger.Errorf("failed to encode frame, system_frame_number %d: %v",
				f.SystemFrameNumber, err)
			if f.picture != nil {
				e.venc.ReleaseSlot(f.picture.SlotIndex)
			}
			f.release()
			// 帧级失败：空输出放行
			e.outputQueue.Push(f)
			e.drainOutputs()

			// 不变量被破坏说明存在缺陷，停止编码器
			if err == ErrInternal {
				e.Stop()
				return err
			}
			continue
		}
		e.markFrame(f)
		e.drainOutputs()
	}
	return nil
}

// encodeOne 编码单帧：占坑、建列表、提交、更新 DPB
func (e *Encoder) encodeOne(f *Frame) error {
	if f.picture != nil {
		return ErrInternal
	}

	nbRefs := 0
	if f.typ != SliceI {
		nbRefs = 1
	}
	f.picture = vulkan.NewEncodePicture(f.Input, e.width, e.height, f.isRef, nbRefs)
	f.picture.PicOrderCnt = int32(f.poc)
	f.picture.PicNum = uint32(f.frameNum)
	f.picture.FpsN = e.frameRate.Num
	f.picture.FpsD = e.frameRate.Den

	var unusedRef *Frame
	if f.isRef {
		unusedRef = e.findUnusedReference(f)

		// 参考队列不能超过配置深度
		next := len(e.refList) + 1
		if unusedRef != nil {
			next--
		}
		if e.gop.numRefFrames > 0 && next > int(e.gop.numRefFrames) {
			return ErrInternal
		}
	}

	list0, list1 := e.referenceLists(f)
	f.picture.NbRefs = len(list0) + len(list1)

	if err := e.ops.encodeFrame(f, list0, list1); err != nil {
		return err
	}

	e.outputQueue.Push(f)

	// 纯 I 流不维护参考队列
	if f.isRef && e.gop.numRefFrames > 0 {
		if unusedRef != nil {
			e.removeRef(unusedRef)
		}

		// 插入参考队列并按 frame_num 保持有序
		e.refList = append(e.refList, f)
		for i := len(e.refList) - 1; i > 0; i-- {
			if e.refList[i-1].frameNum <= e.refList[i].frameNum {
				break
			}
			e.refList[i-1], e.refList[i] = e.refList[i], e.refList[i-1]
		}
	}

	return nil
}

// setQuality 依据已输出码率微调量化值
func (e *Encoder) setQuality(f *Frame) {
	qp := e.currentQuality

	if e.nbFrames > 0 && e.frameRate.Den != 0 {
		bitrate := e.usedBytes * 8 * uint64(e.frameRate.Num) /
			(e.nbFrames * uint64(e.frameRate.Den))
		if bitrate > uint64(e.cfg.AverageBitrate) {
			qp++
		}
		if bitrate < uint64(e.cfg.AverageBitrate) && qp > 0 {
			qp--
		}
	}

	if qp > e.cfg.MaxQp {
		qp = e.cfg.MaxQp
	}
	if qp < e.cfg.MinQp {
		qp = e.cfg.MinQp
	}

	f.quality = qp
}

// markFrame 编码完成后回写质量反馈
func (e *Encoder) markFrame(f *Frame) {
	e.currentQuality = f.quality

	if e.ops.accumulatesUsedBytes() && f.picture != nil {
		e.usedBytes += uint64(f.picture.Feedback.Size) + uint64(f.picture.PackedHeaderBytes())
	}

	e.nbFrames++
}

// drainOutputs 按解码序排出全部就绪输出
func (e *Encoder) drainOutputs() {
	if e.outputQueue.Len() == 0 {
		return
	}
	elems := e.outputQueue.Elems()
	for _, el := range elems {
		e.emitOutput(el.(*Frame))
	}
	e.outputQueue.Reset()
}

// emitOutput 组装码流并推给下游
func (e *Encoder) emitOutput(f *Frame) {
	payload := assembleOutput(f.picture)

	pts := e.startPts + e.frameDuration*int64(f.totalFrameCount)
	// PTS 不早于 DTS
	dts := e.startPts + e.frameDuration*
		(int64(e.outputFrameCount)-int64(e.gop.numReorderFrames))
	e.outputFrameCount++

	out := &codec.Frame{
		SystemFrameNumber: f.SystemFrameNumber,
		Pts:               pts,
		Dts:               dts,
		Duration:          e.frameDuration,
		SyncPoint:         f.syncPoint,
		Payload:           payload,
	}

	e.logger.Debugf("push to downstream: system_frame_number %d, pts %d, dts %d, size %d",
		f.SystemFrameNumber, pts, dts, len(payload))

	if err := e.out.WriteFrame(out); err != nil {
		e.logger.Errorf("fails to push one buffer, system_frame_number %d: %v",
			f.SystemFrameNumber, err)
	}

	e.flow.AddOut(int64(len(payload)))

	f.emitted = true
	if !e.inRefList(f) {
		f.release()
	}
}

func (e *Encoder) inRefList(f *Frame) bool {
	for _, r := range e.refList {
		if r == f {
			return true
		}
	}
	return false
}

// removeRef 把参考帧移出 DPB，并释放其槽位
func (e *Encoder) removeRef(f *Frame) {
	for i, r := range e.refList {
		if r != f {
			continue
		}
		e.refList = append(e.refList[:i], e.refList[i+1:]...)
		break
	}

	if f.picture != nil {
		e.venc.ReleaseSlot(f.picture.SlotIndex)
	}
	if f.emitted {
		f.release()
	}
}

func (e *Encoder) clearRefList() {
	for i := len(e.refList) - 1; i >= 0; i-- {
		e.removeRef(e.refList[i])
	}
}

// applyPendingConfig GOP 边界上应用变更请求
func (e *Encoder) applyPendingConfig() {
	if e.pendingCfg == nil {
		return
	}
	cfg := *e.pendingCfg
	e.pendingCfg = nil

	// 分辨率和编码类型保持原值
	e.cfg = cfg
	e.gop.prepare(&e.cfg, e.frameRate, e.ops.supportsBFrames(), e.logger)
	list0, list1, ok := e.ops.maxNumReference()
	if !ok {
		list0, list1 = 1, 0
	}
	e.gop.generate(list0, list1, e.logger)

	e.logger.Info("configuration change applied at GOP boundary")
}
