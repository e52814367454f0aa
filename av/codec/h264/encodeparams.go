// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
//
// GPU 编码接口使用的 h264 描述符，对应 Vulkan Video 的
// StdVideoEncodeH264* 与 VkVideoEncodeH264*EXT 结构。
package h264

// ProfileInfo 会话 profile 信息
type ProfileInfo struct {
	StdProfileIdc Profile
}

// Capabilities GPU 对 h264 编码的能力
type Capabilities struct {
	MaxPPictureL0ReferenceCount uint32
	MaxBPictureL0ReferenceCount uint32
	MaxL1ReferenceCount         uint32
	GeneratePrefixNalu          bool
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

	LumaLog2WeightDenom   uint8
	ChromaLog2WeightDenom uint8
}

// EncodeSliceHeader GPU 描述符中的切片头
type EncodeSliceHeader struct {
	DirectSpatialMvPredFlag     uint8
	NumRefIdxActiveOverrideFlag uint8

	FirstMbInSlice             uint32
	SliceType                  uint8
	CabacInitIdc               uint8
	DisableDeblockingFilterIdc uint8
	SliceAlphaC0OffsetDiv2     int8
	SliceBetaOffsetDiv2        int8
	SliceQpDelta               int8
	WeightTable                *WeightTable
}

// ReferenceListsInfo 参考列表描述符
type ReferenceListsInfo struct {
	RefPicListModificationFlagL0 uint8
	RefPicListModificationFlagL1 uint8

	NumRefIdxL0ActiveMinus1 uint8
	NumRefIdxL1ActiveMinus1 uint8
	RefPicList0             [MaxNumListRef]uint8
	RefPicList1             [MaxNumListRef]uint8

	RefList0ModOperations  []RefPicListModification
	RefList1ModOperations  []RefPicListModification
	RefPicMarkingOperations []RefPicMarking
}

// PictureInfo 单帧编码的图像描述符
type PictureInfo struct {
	IdrPicFlag                    uint8
	IsReference                   uint8
	NoOutputOfPriorPicsFlag       uint8
	LongTermReferenceFlag         uint8
	AdaptiveRefPicMarkingModeFlag uint8

	SeqParameterSetID uint8
	PicParameterSetID uint8
	IdrPicID          uint16
	PrimaryPicType    uint8
	FrameNum          uint32
	PicOrderCnt       int32

	RefLists *ReferenceListsInfo
}

// ReferenceInfo DPB 槽位中的参考帧描述
type ReferenceInfo struct {
	UsedForLongTermReference uint8
	PrimaryPicType           uint8
	FrameNum                 uint32
	PicOrderCnt              int32
	TemporalID               uint8
}

// NaluSliceInfo 一条切片的 GPU 参数
type NaluSliceInfo struct {
	ConstantQp     uint32
	StdSliceHeader *EncodeSliceHeader
}

// EncodePictureInfo 帧级 GPU 图像参数
type EncodePictureInfo struct {
	NaluSliceEntries   []NaluSliceInfo
	StdPictureInfo     *PictureInfo
	GeneratePrefixNalu bool
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

// RateControlInfo 码控的 h264 层参数
type RateControlInfo struct {
	GopFrameCount          uint32
	IdrPeriod              uint32
	ConsecutiveBFrameCount uint32
	TemporalLayerCount     uint32
}

// RateControlLayerInfo 码控层的 h264 参数
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
	RateControlTemporalLayerPatternDyadic
)

// QualityLevelProperties 质量级别参数
type QualityLevelProperties struct {
	PreferredRateControlFlags      uint32
	PreferredGopFrameCount         uint32
	PreferredIdrPeriod             uint32
	PreferredConsecutiveBFrameCount uint32
	PreferredConstantQp            Qp
	PreferredMaxL0ReferenceCount   uint32
	PreferredMaxL1ReferenceCount   uint32
}

// SessionParametersAddInfo 会话参数对象的 SPS/PPS 集
type SessionParametersAddInfo struct {
	SPSs []*SPS
	PPSs []*PPS
}

// SessionParametersCreateInfo 会话参数对象的创建参数
type SessionParametersCreateInfo struct {
	MaxStdSPSCount uint32
	MaxStdPPSCount uint32
	AddInfo        *SessionParametersAddInfo
}

// SessionParametersGetInfo 取回已编码参数集的请求
type SessionParametersGetInfo struct {
	WriteStdSPS bool
	WriteStdPPS bool
	StdSPSID    int32
	StdPPSID    int32
}
