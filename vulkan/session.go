// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vulkan

import (
	"errors"
	"fmt"

	"github.com/cnotch/xlog"
)

// 错误定义
var (
	// ErrNotStarted 会话未启动
	ErrNotStarted = errors.New("vulkan: encoder session not started")
	// ErrInvalidProfile profile 与编码操作不匹配
	ErrInvalidProfile = errors.New("vulkan: invalid video profile")
	// ErrNoOutputFormat profile 没有可用的图像格式
	ErrNoOutputFormat = errors.New("vulkan: profile doesn't have an output format")
	// ErrDpbSlotsExhausted DPB 槽位耗尽
	ErrDpbSlotsExhausted = errors.New("vulkan: no free dpb slot")
	// ErrQueryIncomplete 编码反馈查询未完成
	ErrQueryIncomplete = errors.New("vulkan: encode feedback query incomplete")
)

// 单帧码流缓冲的保守上限，按对齐要求取整
const bitstreamBufferCeiling = 3 * 1024 * 1024

// 可识别的分量布局
var knownComponentLayouts = map[string]bool{
	"NV12": true,
	"P010": true,
}

// Encoder 视频编码会话：管理会话与参数对象的生命周期，
// 驱动单帧的 begin/control/encode/end 命令序列
type Encoder struct {
	logger *xlog.Logger
	queue  Queue
	op     CodecOperation

	profile VideoProfile
	caps    *VideoCapabilities

	format    FormatProperties // 输入图像格式
	dpbFormat FormatProperties // DPB 图像格式

	session       VideoSession
	sessionParams VideoSessionParameters
	exec          *Operation

	maxDpbSlots      int
	refSlots         []ReferenceSlotInfo
	slotOccupied     []bool
	currentSlotIndex int

	rateControlInfo RateControlInfo

	started       bool
	encodingSetup bool

	prop struct {
		rateControl    RateControlMode
		averageBitrate uint64
		qualityLevel   uint32
	}
}

// Option 配置 Encoder 的选项
type Option interface {
	apply(*Encoder)
}

type optionFunc func(*Encoder)

func (f optionFunc) apply(e *Encoder) { f(e) }

// WithRateControl 设置码率控制模式
func WithRateControl(mode RateControlMode) Option {
	return optionFunc(func(e *Encoder) { e.prop.rateControl = mode })
}

// WithAverageBitrate 设置平均码率（bps）
func WithAverageBitrate(bps uint64) Option {
	return optionFunc(func(e *Encoder) { e.prop.averageBitrate = bps })
}

// WithQualityLevel 设置实现相关的质量级别
func WithQualityLevel(level uint32) Option {
	return optionFunc(func(e *Encoder) { e.prop.qualityLevel = level })
}

// NewEncoder 创建编码会话
func NewEncoder(queue Queue, op CodecOperation, options ...Option) *Encoder {
	e := &Encoder{
		logger: xlog.L().With(xlog.Fields(xlog.F("codec", op.String()))),
		queue:  queue,
		op:     op,
	}
	for _, option := range options {
		option.apply(e)
	}
	return e
}

// SetRateControl 更新码控参数；下一次 Start 前生效
func (e *Encoder) SetRateControl(mode RateControlMode, averageBitrate uint64, qualityLevel uint32) {
	e.prop.rateControl = mode
	e.prop.averageBitrate = averageBitrate
	e.prop.qualityLevel = qualityLevel
}

// Caps 会话能力；未启动返回 false
func (e *Encoder) Caps() (*VideoCapabilities, bool) {
	if !e.started {
		return nil, false
	}
	return e.caps, true
}

// PictureFormat 输入图像格式
func (e *Encoder) PictureFormat() FormatProperties { return e.format }

// DpbFormat 参考图像格式
func (e *Encoder) DpbFormat() FormatProperties { return e.dpbFormat }

// NRefSlots 当前活动的参考槽位数
func (e *Encoder) NRefSlots() int {
	n := 0
	for _, occupied := range e.slotOccupied {
		if occupied {
			n++
		}
	}
	return n
}

// activeSlots 所有占用中的槽位，作为 begin coding 的绑定集
func (e *Encoder) activeSlots() []ReferenceSlotInfo {
	var slots []ReferenceSlotInfo
	for idx, occupied := range e.slotOccupied {
		if occupied {
			slots = append(slots, e.refSlots[idx])
		}
	}
	return slots
}

func (e *Encoder) selectFormat(usage ImageUsageFlags) (FormatProperties, error) {
	fmts, err := e.queue.Device().VideoFormatProperties(&e.profile, usage)
	if err != nil {
		return FormatProperties{}, err
	}
	if len(fmts) == 0 {
		return FormatProperties{}, ErrNoOutputFormat
	}

	// 取第一个可识别分量布局的格式
	for _, f := range fmts {
		if f.Format == FormatUndefined {
			continue
		}
		if knownComponentLayouts[f.ComponentLayout] {
			return f, nil
		}
		e.logger.Warnf("unknown component layout %q", f.ComponentLayout)
	}

	return FormatProperties{}, ErrNoOutputFormat
}

// Start 启动会话：查询能力、校验标准头版本、选择图像格式、
// 创建会话与参数对象、启用编码反馈查询池并提交一轮复位。
// 失败时状态保持一致，Stop 仍然安全。
func (e *Encoder) Start(profile *VideoProfile, codecParams interface{}) (err error) {
	if e.started {
		return nil
	}

	if profile.Op != e.op || profile.Codec == nil {
		return ErrInvalidProfile
	}
	e.profile = *profile

	device := e.queue.Device()

	e.caps, err = device.VideoCapabilities(&e.profile)
	if err != nil {
		return err
	}

	ext := codecExtensions[e.op]
	if ext.SpecVersion < codecSupportedVersions[e.op] {
		return fmt.Errorf("vulkan: std headers %d.%d.%d not supported, need at least %d.%d.%d",
			ext.SpecVersion.Major(), ext.SpecVersion.Minor(), ext.SpecVersion.Patch(),
			codecSupportedVersions[e.op].Major(), codecSupportedVersions[e.op].Minor(),
			codecSupportedVersions[e.op].Patch())
	}
	if ext.SpecVersion < e.caps.StdHeaderVersion.SpecVersion {
		return fmt.Errorf("vulkan: driver needs newer std headers %d.%d.%d, current %d.%d.%d",
			e.caps.StdHeaderVersion.SpecVersion.Major(),
			e.caps.StdHeaderVersion.SpecVersion.Minor(),
			e.caps.StdHeaderVersion.SpecVersion.Patch(),
			ext.SpecVersion.Major(), ext.SpecVersion.Minor(), ext.SpecVersion.Patch())
	}

	if e.format, err = e.selectFormat(ImageUsageVideoEncodeSrc); err != nil {
		return err
	}
	if e.dpbFormat, err = e.selectFormat(ImageUsageVideoEncodeDpb); err != nil {
		return err
	}

	e.session, err = device.CreateVideoSession(&VideoSessionCreateInfo{
		QueueFamily:                e.queue.Family(),
		Profile:                    &e.profile,
		PictureFormat:              e.format.Format,
		MaxCodedExtent:             e.caps.MaxCodedExtent,
		ReferencePictureFormat:     e.dpbFormat.Format,
		MaxDpbSlots:                e.caps.MaxDpbSlots,
		MaxActiveReferencePictures: e.caps.MaxActiveReferencePictures,
		StdHeaderVersion:           &ext,
	})
	if err != nil {
		return err
	}

	e.sessionParams, err = device.CreateVideoSessionParameters(&VideoSessionParametersCreateInfo{
		Session: e.session,
		Codec:   codecParams,
	})
	if err != nil {
		e.session.Destroy()
		e.session = nil
		return err
	}

	cmdPool, err := e.queue.CreateCommandPool()
	if err != nil {
		e.stopSession()
		return err
	}
	e.exec = NewOperation(cmdPool)

	if err = e.exec.EnableQuery(QueryTypeVideoEncodeFeedback, 1, &e.profile,
		EncodeFeedbackBitstreamBufferOffset|EncodeFeedbackBitstreamBytesWritten); err != nil {
		e.stopSession()
		return err
	}

	e.maxDpbSlots = int(e.caps.MaxDpbSlots)
	if e.maxDpbSlots > 16 {
		e.maxDpbSlots = 16
	}
	e.refSlots = make([]ReferenceSlotInfo, e.maxDpbSlots)
	e.slotOccupied = make([]bool, e.maxDpbSlots)

	if err = e.Flush(); err != nil {
		e.stopSession()
		return err
	}

	e.started = true
	e.logger.Infof("session started, maxDpbSlots %d, maxActiveRefs %d",
		e.caps.MaxDpbSlots, e.caps.MaxActiveReferencePictures)
	return nil
}

func (e *Encoder) stopSession() {
	if e.exec != nil {
		e.exec.Close()
		e.exec = nil
	}
	if e.sessionParams != nil {
		e.sessionParams.Destroy()
		e.sessionParams = nil
	}
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
}

// Stop 关闭会话；重复调用等价一次
func (e *Encoder) Stop() {
	if !e.started {
		e.stopSession()
		return
	}

	e.stopSession()

	e.refSlots = nil
	e.slotOccupied = nil
	e.currentSlotIndex = 0
	e.encodingSetup = false
	e.started = false
}

// Reconfigure 重建会话参数对象；分辨率不变时无需重建会话
func (e *Encoder) Reconfigure(codecParams interface{}) error {
	if e.session == nil {
		return ErrNotStarted
	}

	params, err := e.queue.Device().CreateVideoSessionParameters(&VideoSessionParametersCreateInfo{
		Session: e.session,
		Codec:   codecParams,
	})
	if err != nil {
		return err
	}

	if e.sessionParams != nil {
		e.sessionParams.Destroy()
	}
	e.sessionParams = params
	return nil
}

// Flush 提交一轮带复位标志的空编码上下文，冲刷会话状态
func (e *Encoder) Flush() error {
	if e.sessionParams == nil || e.exec == nil {
		return ErrNotStarted
	}

	if err := e.exec.Begin(); err != nil {
		return err
	}

	cmd := e.exec.CommandBuffer()
	cmd.BeginVideoCoding(&BeginCodingInfo{
		Session:    e.session,
		Parameters: e.sessionParams,
	})
	cmd.ControlVideoCoding(&CodingControlInfo{Flags: CodingControlReset})
	cmd.EndVideoCoding()

	if err := e.exec.End(); err != nil {
		return err
	}
	return e.exec.Wait()
}

// SessionParams 取回 GPU 生成的参数集字节（SPS/PPS/VPS）。
// 两段式：先询问长度，再读取数据。
func (e *Encoder) SessionParams(codecGetInfo interface{}) ([]byte, error) {
	if e.sessionParams == nil {
		return nil, ErrNotStarted
	}

	info := &VideoSessionParametersGetInfo{
		Parameters: e.sessionParams,
		Codec:      codecGetInfo,
	}

	size, err := e.queue.Device().GetEncodedVideoSessionParameters(info, nil)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, errors.New("vulkan: empty session params")
	}

	data := make([]byte, size)
	if _, err = e.queue.Device().GetEncodedVideoSessionParameters(info, data); err != nil {
		return nil, err
	}
	return data, nil
}

// acquireSlot 从 currentSlotIndex 起循环扫描第一个空闲槽位
func (e *Encoder) acquireSlot() (int, error) {
	for i := 0; i < e.maxDpbSlots; i++ {
		idx := (e.currentSlotIndex + i) % e.maxDpbSlots
		if !e.slotOccupied[idx] {
			e.slotOccupied[idx] = true
			e.currentSlotIndex = (idx + 1) % e.maxDpbSlots
			return idx, nil
		}
	}
	return -1, ErrDpbSlotsExhausted
}

// ReleaseSlot 释放参考离开 DPB 后的槽位
func (e *Encoder) ReleaseSlot(idx int32) {
	if idx < 0 || int(idx) >= e.maxDpbSlots {
		return
	}
	e.slotOccupied[idx] = false
}

func roundUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// Encode 编码一帧。refPics 为参考帧的编码图像，必须已各自
// 占有 DPB 槽位。成功后 pic.Feedback 持有码流偏移和长度。
func (e *Encoder) Encode(pic *EncodePicture, refPics []*EncodePicture) error {
	if !e.started {
		return ErrNotStarted
	}

	device := e.queue.Device()

	rateControlLayer := RateControlLayerInfo{
		AverageBitrate:       e.prop.averageBitrate,
		MaxBitrate:           e.caps.Encode.MaxBitrate,
		FrameRateNumerator:   pic.FpsN,
		FrameRateDenominator: pic.FpsD,
		Codec:                pic.CodecRateControlLayerInfo,
	}
	if rateControlLayer.AverageBitrate > e.caps.Encode.MaxBitrate {
		rateControlLayer.AverageBitrate = e.caps.Encode.MaxBitrate
	}

	pic.dpbResource = PictureResourceInfo{
		CodedExtent:      Extent2D{uint32(pic.Width), uint32(pic.Height)},
		ImageViewBinding: pic.InBuffer.View,
	}

	resetCctrl := false
	if !e.encodingSetup {
		for i := range e.slotOccupied {
			e.slotOccupied[i] = false
		}
		e.currentSlotIndex = 0
		resetCctrl = true

		e.rateControlInfo = RateControlInfo{
			Mode:  e.prop.rateControl,
			Codec: pic.CodecRateControlInfo,
		}
		switch e.prop.rateControl {
		case RateControlModeCBR:
			rateControlLayer.MaxBitrate = rateControlLayer.AverageBitrate
			fallthrough
		case RateControlModeVBR:
			e.rateControlInfo.Layers = []RateControlLayerInfo{rateControlLayer}
			e.rateControlInfo.VirtualBufferSizeInMs = 1
		}
	}

	if err := e.exec.Begin(); err != nil {
		return err
	}

	// 输入图像迁移到编码源布局，并依赖其时间线信号量
	if err := e.exec.AddFrameBarrier(pic.InBuffer, StageVideoEncode,
		AccessVideoEncodeRead, ImageLayoutVideoEncodeSrc, QueueFamilyIgnored); err != nil {
		return err
	}
	e.exec.AddDependencyFrame(pic.InBuffer, StageVideoEncode, StageVideoEncode)

	// 参考图像的编码写入必须先于本帧读取
	for _, ref := range refPics {
		e.exec.AddDependencyFrame(ref.InBuffer, StageVideoEncode, StageVideoEncode)
	}

	if pic.IsRef {
		slot, err := e.acquireSlot()
		if err != nil {
			return err
		}
		e.refSlots[slot] = ReferenceSlotInfo{
			SlotIndex:       -1, // begin 时尚未激活
			PictureResource: &pic.dpbResource,
			Codec:           pic.CodecDpbSlotInfo,
		}
		pic.SlotIndex = int32(slot)
	}

	beginCoding := &BeginCodingInfo{
		Session:        e.session,
		Parameters:     e.sessionParams,
		ReferenceSlots: e.activeSlots(),
	}
	if e.encodingSetup {
		switch e.prop.rateControl {
		case RateControlModeDisabled, RateControlModeCBR, RateControlModeVBR:
			beginCoding.RateControl = &e.rateControlInfo
		}
	}

	cmd := e.exec.CommandBuffer()
	cmd.BeginVideoCoding(beginCoding)

	// 对当前绑定的会话应用动态控制
	if resetCctrl {
		cmd.ControlVideoCoding(&CodingControlInfo{Flags: CodingControlReset})

		if e.prop.qualityLevel > 0 && e.prop.qualityLevel <= e.caps.Encode.MaxQualityLevels {
			cmd.ControlVideoCoding(&CodingControlInfo{
				Flags:        CodingControlEncodeQualityLevel,
				QualityLevel: &QualityLevelInfo{QualityLevel: e.prop.qualityLevel},
			})
		}
		if e.prop.rateControl != RateControlModeDefault {
			e.logger.Infof("rate control mode %s", e.prop.rateControl)
			cmd.ControlVideoCoding(&CodingControlInfo{
				Flags:       CodingControlEncodeRateControl,
				RateControl: &e.rateControlInfo,
			})
		}

		e.encodingSetup = true
	}

	if pic.IsRef {
		e.refSlots[pic.SlotIndex].SlotIndex = pic.SlotIndex
	}

	outputSize := roundUp(bitstreamBufferCeiling, e.caps.MinBitstreamBufferSizeAlignment)
	outBuffer, err := device.CreateBitstreamBuffer(&e.profile, outputSize)
	if err != nil {
		cmd.EndVideoCoding()
		return err
	}
	pic.OutBuffer = outBuffer

	encodeInfo := &EncodeInfo{
		DstBuffer:       pic.OutBuffer,
		DstBufferOffset: 0,
		DstBufferRange:  outputSize,
		SrcPictureResource: PictureResourceInfo{
			CodedExtent:      Extent2D{uint32(pic.Width), uint32(pic.Height)},
			ImageViewBinding: pic.InBuffer.View,
		},
		Codec: pic.CodecPictureInfo,
	}
	if pic.IsRef {
		encodeInfo.SetupReferenceSlot = &e.refSlots[pic.SlotIndex]
	}
	for _, ref := range refPics {
		encodeInfo.ReferenceSlots = append(encodeInfo.ReferenceSlots, e.refSlots[ref.SlotIndex])
	}

	e.exec.BeginQuery(0)
	cmd.EncodeVideo(encodeInfo)
	e.exec.EndQuery(0)

	cmd.EndVideoCoding()

	if err := e.exec.End(); err != nil {
		return err
	}
	if err := e.exec.Wait(); err != nil {
		return err
	}

	feedback, err := e.exec.GetQuery()
	if err != nil {
		return err
	}
	if feedback.Status != QueryResultStatusComplete {
		e.logger.Errorf("encode query status = %d", feedback.Status)
		return ErrQueryIncomplete
	}
	pic.Feedback = feedback

	e.logger.Debugf("frame %d encoded, offset %d size %d",
		pic.PicNum, feedback.Offset, feedback.Size)
	return nil
}
