// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
//
// 编码侧的 h265 语法结构，仅覆盖本编码器写出的子集。
package hevc

// ProfileTierLevel profile_tier_level() 语法段
type ProfileTierLevel struct {
	GeneralTierFlag               uint8
	GeneralProgressiveSourceFlag  uint8
	GeneralInterlacedSourceFlag   uint8
	GeneralNonPackedConstraintFlag uint8
	GeneralFrameOnlyConstraintFlag uint8

	GeneralProfileIdc Profile
	GeneralLevelIdc   uint8
}

// VUI 编码侧 VUI 参数子集
type VUI struct {
	VideoSignalTypePresentFlag uint8
	VideoFormat                uint8
	VideoFullRangeFlag         uint8

	AspectRatioIdc uint8
	SarWidth       uint16
	SarHeight      uint16

	VuiTimingInfoPresentFlag uint8
	VuiNumUnitsInTick        uint32
	VuiTimeScale             uint32
}

// VPS 编码侧视频参数集
type VPS struct {
	ID uint8

	VpsTemporalIdNestingFlag            uint8
	VpsSubLayerOrderingInfoPresentFlag  uint8
	VpsMaxSubLayersMinus1               uint8

	ProfileTierLevel *ProfileTierLevel
}

// SPS 编码侧序列参数集
type SPS struct {
	VpsID uint8
	ID    uint8

	SpsTemporalIdNestingFlag           uint8
	SpsSubLayerOrderingInfoPresentFlag uint8
	SampleAdaptiveOffsetEnabledFlag    uint8
	SpsTemporalMvpEnabledFlag          uint8
	StrongIntraSmoothingEnabledFlag    uint8

	ChromaFormatIdc      uint8
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8

	PicWidthInLumaSamples  uint32
	PicHeightInLumaSamples uint32

	Log2MaxPicOrderCntLsbMinus4          uint8
	Log2DiffMaxMinLumaCodingBlockSize    uint8
	Log2DiffMaxMinLumaTransformBlockSize uint8

	SpsMaxDecPicBufferingMinus1 [7]uint8

	ProfileTierLevel *ProfileTierLevel

	VuiParametersPresentFlag uint8
	Vui                      *VUI
}

// PPS 编码侧图像参数集
type PPS struct {
	VpsID uint8
	SpsID uint8
	ID    uint8

	CuQpDeltaEnabledFlag                  uint8
	DeblockingFilterControlPresentFlag    uint8
	PpsLoopFilterAcrossSlicesEnabledFlag  uint8

	NumRefIdxL0DefaultActiveMinus1 uint8
	NumRefIdxL1DefaultActiveMinus1 uint8

	InitQpMinus26 int8
}

// RefPicListModification 参考图像列表重排；与 h264 同构，
// 结束操作码同为 3
type RefPicListModification struct {
	ModificationIdc uint8
	ListEntry       uint32
}

// SliceSegmentHeader 编码侧切片段头
type SliceSegmentHeader struct {
	FirstSliceSegmentInPicFlag uint8
	Type                       uint8
	PPS                        *PPS
	SlicePicOrderCntLsb        uint16

	NumRefIdxActiveOverrideFlag uint8
	NumRefIdxL0ActiveMinus1     uint8
	NumRefIdxL1ActiveMinus1     uint8

	RefPicListModificationFlagL0 uint8
	RefPicListModificationL0     []RefPicListModification
	RefPicListModificationFlagL1 uint8
	RefPicListModificationL1     []RefPicListModification

	SliceSaoLumaFlag   uint8
	SliceSaoChromaFlag uint8
	CabacInitFlag      uint8

	SliceQpDelta        int8
	SliceBetaOffsetDiv2 int8
	SliceTcOffsetDiv2   int8
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

// BitWriter h265 码流写出接口，由外部的 codec bit-writer 提供
type BitWriter interface {
	// WriteVPS 生成带起始码的 VPS NAL
	WriteVPS(vps *VPS) ([]byte, error)
	// WriteSPS 生成带起始码的 SPS NAL
	WriteSPS(sps *SPS) ([]byte, error)
	// WritePPS 生成带起始码的 PPS NAL
	WritePPS(pps *PPS) ([]byte, error)
	// WriteSliceHeader 生成切片段头；返回字节和尾部的比特数
	WriteSliceHeader(hdr *SliceSegmentHeader, nalType uint8, isRef bool) ([]byte, uint, error)
	// WriteAUD 生成访问单元分隔符 NAL
	WriteAUD(primaryPicType uint8) ([]byte, error)
	// WriteSEI 生成 SEI NAL
	WriteSEI(messages []SEIMessage, nalType uint8) ([]byte, error)
}
