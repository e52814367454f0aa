// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
//
// 编码侧的 h264 语法结构，仅覆盖本编码器写出的子集。
// 字段命名与 ITU-T H.264 句法元素一致。
package h264

// VUI 编码侧 VUI 参数子集
type VUI struct {
	AspectRatioInfoPresentFlag uint8
	AspectRatioIdc             uint8
	SarWidth                   uint16
	SarHeight                  uint16

	TimingInfoPresentFlag uint8
	NumUnitsInTick        uint32
	TimeScale             uint32
	FixedFrameRateFlag    uint8

	PicStructPresentFlag uint8

	BitstreamRestrictionFlag uint8
	MaxBytesPerPicDenom      uint8
	MaxBitsPerMbDenom        uint8
	NumReorderFrames         uint8
	MaxDecFrameBuffering     uint8
}

// SPS 编码侧序列参数集
type SPS struct {
	ID                 uint8
	ProfileIdc         Profile
	ConstraintSet0Flag uint8
	ConstraintSet1Flag uint8
	ConstraintSet2Flag uint8
	ConstraintSet3Flag uint8
	LevelIdc           uint8

	ChromaFormatIdc      uint8
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8

	Log2MaxFrameNumMinus4       uint8
	PicOrderCntType             uint8
	Log2MaxPicOrderCntLsbMinus4 uint8

	NumRefFrames              uint8
	GapsInFrameNumAllowedFlag uint8

	PicWidthInMbsMinus1       uint16
	PicHeightInMapUnitsMinus1 uint16
	FrameMbsOnlyFlag          uint8
	Direct8x8InferenceFlag    uint8

	FrameCroppingFlag     uint8
	FrameCropLeftOffset   uint16
	FrameCropRightOffset  uint16
	FrameCropTopOffset    uint16
	FrameCropBottomOffset uint16

	VuiParametersPresentFlag uint8
	Vui                      VUI
}

// PPS 编码侧图像参数集
type PPS struct {
	ID       uint8
	Sequence *SPS

	EntropyCodingModeFlag uint8

	NumRefIdxL0ActiveMinus1 uint8
	NumRefIdxL1ActiveMinus1 uint8

	WeightedPredFlag  uint8
	WeightedBipredIdc uint8

	PicInitQpMinus26     int8
	ChromaQpIndexOffset  int8
	DeblockingFilterControlPresentFlag uint8
	ConstrainedIntraPredFlag           uint8
	RedundantPicCntPresentFlag         uint8
	Transform8x8ModeFlag               uint8
	SecondChromaQpIndexOffset          int8
}

// RefPicListModification 参考图像列表重排操作（8.2.4.3）
type RefPicListModification struct {
	ModificationOfPicNumsIdc uint8 // 0/1: 按 pic_num 差值；3: 结束
	AbsDiffPicNumMinus1      uint32
}

// RefPicMarking 解码参考图像标记操作（8.2.5.4）
type RefPicMarking struct {
	MemoryManagementControlOperation uint8
	DifferenceOfPicNumsMinus1        uint32
}

// DecRefPicMarking 切片头中的参考标记段
type DecRefPicMarking struct {
	NoOutputOfPriorPicsFlag       uint8
	LongTermReferenceFlag         uint8
	AdaptiveRefPicMarkingModeFlag uint8
	RefPicMarking                 []RefPicMarking
}

// SliceHeader 编码侧切片头
type SliceHeader struct {
	FirstMbInSlice uint32
	Type           uint8
	PPS            *PPS
	FrameNum       uint16
	IdrPicID       uint16
	PicOrderCntLsb uint16

	DirectSpatialMvPredFlag uint8

	NumRefIdxActiveOverrideFlag uint8
	NumRefIdxL0ActiveMinus1     uint8
	NumRefIdxL1ActiveMinus1     uint8

	RefPicListModificationFlagL0 uint8
	RefPicListModificationL0     []RefPicListModification
	RefPicListModificationFlagL1 uint8
	RefPicListModificationL1     []RefPicListModification

	DecRefPicMarking DecRefPicMarking

	CabacInitIdc uint8
	SliceQpDelta int8

	DisableDeblockingFilterIdc uint8
	SliceAlphaC0OffsetDiv2     int8
	SliceBetaOffsetDiv2        int8
}

// SEIRegisteredUserData ITU-T T.35 注册用户数据 SEI
type SEIRegisteredUserData struct {
	CountryCode uint8
	Data        []byte
}

// SEIMessage SEI 消息；本编码器只写注册用户数据
type SEIMessage struct {
	RegisteredUserData *SEIRegisteredUserData
}

// BitWriter h264 码流写出接口，由外部的 codec bit-writer 提供
type BitWriter interface {
	// WriteSPS 生成带起始码的 SPS NAL
	WriteSPS(sps *SPS) ([]byte, error)
	// WritePPS 生成带起始码的 PPS NAL
	WritePPS(pps *PPS) ([]byte, error)
	// WriteSliceHeader 生成切片头；返回字节和尾部的比特数
	WriteSliceHeader(hdr *SliceHeader, nalType uint8, isRef bool) ([]byte, uint, error)
	// WriteAUD 生成访问单元分隔符 NAL
	WriteAUD(primaryPicType uint8) ([]byte, error)
	// WriteSEI 生成 SEI NAL
	WriteSEI(messages []SEIMessage) ([]byte, error)
}
