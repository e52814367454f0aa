// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
//
// GPU 编码接口使用的 h265 描述符，对应 Vulkan Video 的
// StdVideoEncodeH265* 与 VkVideoEncodeH265*EXT 结构。
package hevc

// ProfileInfo 会话 profile 信息
type ProfileInfo struct {
	StdProfileIdc Profile
}

// Capabilities GPU 对 h265 编码的能力
type Capabilities struct {
	MaxPPictureL0ReferenceCount uint32
	MaxBPictureL0ReferenceCount uint32
	MaxL1ReferenceCount         uint32
}

// Qp 按帧类型的量化参数三元组
type Qp struct {
	QpI uint32
	QpP uint32
	QpB uint32
}

// WeightTable 加权预测表；本编码器全部置零
type WeightTable struct {
	LumaWeightL0Flag   uint8
	ChromaWeightL0Flag uint8
	LumaWeightL1Flag   uint8
	ChromaWeightL1Flag uint8

	LumaLog2WeightDenom        uint8
	DeltaChromaLog2WeightDenom int8
}

// EncodeSliceSegmentHeader GPU 描述符中的切片段头
type EncodeSliceSegmentHeader struct {
	FirstSliceSegmentInPicFlag  uint8
	NumRefIdxActiveOverrideFlag uint8

	SliceType           uint8
	SliceSegmentAddress uint32

	SliceCbQpOffset     int8
	SliceCrQpOffset     int8
	SliceBetaOffsetDiv2 int8
	SliceTcOffsetDiv2   int8
	SliceQpDelta        int8
	WeightTable         *WeightTable
}

// ReferenceListsInfo 参考列表描述符
type ReferenceListsInfo struct {
	RefPicListModificationFlagL0 uint8
	RefPicListModificationFlagL1 uint8

	NumRefIdxL0ActiveMinus1 uint8
	NumRefIdxL1ActiveMinus1 uint8
	RefPicList0             [MaxNumListRef]uint8
	RefPicList1             [MaxNumListRef]uint8
	ListEntryL0             [MaxNumListRef]uint8
	ListEntryL1             [MaxNumListRef]uint8
}

// PictureInfo 单帧编码的图像描述符
type PictureInfo struct {
	IsReference              uint8
	IrapPicFlag              uint8
	UsedForLongTermReference uint8
	DiscardableFlag          uint8
	PicOutputFlag            uint8
	NoOutputOfPriorPicsFlag  uint8
	ShortTermRefPicSetSpsFlag uint8
	SliceTemporalMvpEnabledFlag uint8

	PicType               uint8
	SpsVideoParameterSetID uint8
	PpsSeqParameterSetID   uint8
	PpsPicParameterSetID   uint8
	PicOrderCntVal         int32
	TemporalID             uint8

	RefLists *ReferenceListsInfo
}

// ReferenceInfo DPB 槽位中的参考帧描述
type ReferenceInfo struct {
	UsedForLongTermReference uint8
	PicType                  uint8
	PicOrderCntVal           int32
	TemporalID               uint8
}

// NaluSliceSegmentInfo 一条切片段的 GPU 参数
type NaluSliceSegmentInfo struct {
	ConstantQp            uint32
	StdSliceSegmentHeader *EncodeSliceSegmentHeader
}

// EncodePictureInfo 帧级 GPU 图像参数
type EncodePictureInfo struct {
	NaluSliceSegmentEntries []NaluSliceSegmentInfo
	StdPictureInfo          *PictureInfo
}

// DpbSlotInfo DPB 槽位参数
type DpbSlotInfo struct {
	StdReferenceInfo *ReferenceInfo
}

// FrameSize 按帧类型的最大帧尺寸
type FrameSize struct {
	FrameISize uint32
	FramePSize uint32
	FrameBSize uint32
}

// RateControlInfo 码控的 h265 层参数
type RateControlInfo struct {
	GopFrameCount          uint32
	IdrPeriod              uint32
	ConsecutiveBFrameCount uint32
	SubLayerCount          uint32
}

// RateControlLayerInfo 码控层的 h265 参数
type RateControlLayerInfo struct {
	UseMinQp        bool
	MinQp           Qp
	UseMaxQp        bool
	MaxQp           Qp
	UseMaxFrameSize bool
	MaxFrameSize    FrameSize
}

// 质量级别的 preferred 码控标志
const (
	RateControlRegularGop uint32 = 1 << iota
	RateControlTemporalSubLayerPatternDyadic
)

// QualityLevelProperties 质量级别参数
type QualityLevelProperties struct {
	PreferredRateControlFlags       uint32
	PreferredGopFrameCount          uint32
	PreferredIdrPeriod              uint32
	PreferredConsecutiveBFrameCount uint32
	PreferredConstantQp             Qp
	PreferredMaxL0ReferenceCount    uint32
	PreferredMaxL1ReferenceCount    uint32
}

// SessionParametersAddInfo 会话参数对象的 VPS/SPS/PPS 集
type SessionParametersAddInfo struct {
	VPSs []*VPS
	SPSs []*SPS
	PPSs []*PPS
}

// SessionParametersCreateInfo 会话参数对象的创建参数
type SessionParametersCreateInfo struct {
	MaxStdVPSCount uint32
	MaxStdSPSCount uint32
	MaxStdPPSCount uint32
	AddInfo        *SessionParametersAddInfo
}

// SessionParametersGetInfo 取回已编码参数集的请求
type SessionParametersGetInfo struct {
	WriteStdVPS bool
	WriteStdSPS bool
	WriteStdPPS bool
	StdVPSID    int32
	StdSPSID    int32
	StdPPSID    int32
}
