// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"fmt"
	"sort"

	"github.com/cnotch/vkenc/av/codec"
	"github.com/cnotch/vkenc/av/codec/hevc"
	"github.com/cnotch/vkenc/vulkan"
)

// hevcOps H.265 的编码能力集
type hevcOps struct {
	enc *Encoder
	bw  hevc.BitWriter

	profile  hevc.Profile
	levelIdc uint8
	highTier bool
	minCr    uint32

	ptl hevc.ProfileTierLevel
	vps hevc.VPS
	sps hevc.SPS
	pps hevc.PPS
	vui hevc.VUI
}

// NewH265 创建 H.265 编码器。bw 由外部的 codec bit-writer
// 提供，out 接收按解码序产出的压缩帧。
func NewH265(queue vulkan.Queue, bw hevc.BitWriter, out codec.FrameWriter, cfg Config) *Encoder {
	ops := &hevcOps{bw: bw}
	venc := vulkan.NewEncoder(queue, vulkan.CodecOperationEncodeH265)
	enc := newEncoder(ops, venc, out, cfg)
	ops.enc = enc
	return enc
}

func (o *hevcOps) codecType() codec.Type { return codec.TypeH265 }

func (o *hevcOps) supportsBFrames() bool { return true }

func (o *hevcOps) accumulatesUsedBytes() bool { return true }

func (o *hevcOps) stop() {
	o.enc.venc.Stop()
}

func (o *hevcOps) maxNumReference() (uint32, uint32, bool) {
	caps, ok := o.enc.venc.Caps()
	if !ok {
		return 0, 0, false
	}
	codecCaps, ok := caps.Codec.(*hevc.Capabilities)
	if !ok {
		return 0, 0, false
	}
	return codecCaps.MaxPPictureL0ReferenceCount, codecCaps.MaxL1ReferenceCount, true
}

func (o *hevcOps) start() error {
	e := o.enc

	chroma, lumaDepth, chromaDepth, ok := e.format.ChromaInfo()
	if !ok {
		return ErrUnsupportedFormat
	}

	profileName := e.cfg.Profile
	if profileName == "" {
		profileName = "main"
	}
	o.profile, ok = hevc.ProfileFromName(profileName)
	if !ok {
		return fmt.Errorf("encoder: unknown hevc profile %q", profileName)
	}

	// 按亮度样点和采样率选级别并推导 tier
	picSizeInSamplesY := uint32(e.lumaWidth * e.lumaHeight)
	lumaSr := uint32((uint64(picSizeInSamplesY)*uint64(e.frameRate.Num) +
		uint64(e.frameRate.Den) - 1) / uint64(e.frameRate.Den))
	maxBitrateKbps := uint32(e.maxBitrateBits() / 1000)

	level, highTier, err := hevc.SelectLevel(picSizeInSamplesY, lumaSr, maxBitrateKbps)
	if err != nil {
		return err
	}
	o.levelIdc = level.Idc
	o.highTier = highTier
	o.minCr = level.MinCr

	if maxBitrateKbps > level.TierMaxBitrate(highTier) {
		e.logger.Infof("the max bitrate of the stream is %d kbps, still larger than "+
			"profile %s level %s tier's max bit rate %d kbps", maxBitrateKbps,
			o.profile.Name(), level.Name, level.TierMaxBitrate(highTier))
	}
	e.logger.Debugf("profile: %s, level: %s, tier: %v, MinCr: %d",
		o.profile.Name(), level.Name, highTier, o.minCr)

	o.fillVPS(0)
	o.fillSPS(0, 0)
	o.fillPPS(0, 0, 0)

	e.applyRateControl()

	profile := &vulkan.VideoProfile{
		Op:                vulkan.CodecOperationEncodeH265,
		ChromaSubsampling: chromaSubsampling(chroma),
		LumaBitDepth:      componentBitDepth(lumaDepth),
		ChromaBitDepth:    componentBitDepth(chromaDepth),
		Codec:             &hevc.ProfileInfo{StdProfileIdc: o.profile},
	}
	params := &hevc.SessionParametersCreateInfo{
		MaxStdVPSCount: 1,
		MaxStdSPSCount: 1,
		MaxStdPPSCount: 1,
		AddInfo: &hevc.SessionParametersAddInfo{
			VPSs: []*hevc.VPS{&o.vps},
			SPSs: []*hevc.SPS{&o.sps},
			PPSs: []*hevc.PPS{&o.pps},
		},
	}

	return e.venc.Start(profile, params)
}

func (o *hevcOps) fillVPS(vpsID uint8) {
	o.ptl = hevc.ProfileTierLevel{
		GeneralTierFlag:                boolToUint8(o.highTier),
		GeneralProgressiveSourceFlag:   1,
		GeneralFrameOnlyConstraintFlag: 1,
		GeneralProfileIdc:              o.profile,
		GeneralLevelIdc:                o.levelIdc,
	}

	o.vps = hevc.VPS{
		ID:                                 vpsID,
		VpsTemporalIdNestingFlag:           1,
		VpsSubLayerOrderingInfoPresentFlag: 1,
		ProfileTierLevel:                   &o.ptl,
	}
}

func (o *hevcOps) fillSPS(vpsID, spsID uint8) {
	e := o.enc
	chroma, lumaDepth, chromaDepth, _ := e.format.ChromaInfo()

	log2Poc := e.gop.log2MaxPicOrderCnt
	if log2Poc > 16 {
		log2Poc = 16
	}

	o.vui = hevc.VUI{
		VideoSignalTypePresentFlag: 1,
		VideoFormat:                1, // PAL，表 E.2
		VuiTimingInfoPresentFlag:   1,
		VuiNumUnitsInTick:          e.frameRate.Den,
		VuiTimeScale:               e.frameRate.Num * 2,
	}

	o.sps = hevc.SPS{
		VpsID: vpsID,
		ID:    spsID,

		SpsTemporalIdNestingFlag:           1,
		SpsSubLayerOrderingInfoPresentFlag: 1,
		SampleAdaptiveOffsetEnabledFlag:    1,
		SpsTemporalMvpEnabledFlag:          1,
		StrongIntraSmoothingEnabledFlag:    1,

		ChromaFormatIdc:      uint8(chroma),
		BitDepthLumaMinus8:   uint8(lumaDepth - 8),
		BitDepthChromaMinus8: uint8(chromaDepth - 8),

		PicWidthInLumaSamples:  uint32(e.lumaWidth),
		PicHeightInLumaSamples: uint32(e.lumaHeight),

		Log2MaxPicOrderCntLsbMinus4:          uint8(log2Poc - 4),
		Log2DiffMaxMinLumaCodingBlockSize:    2,
		Log2DiffMaxMinLumaTransformBlockSize: 2,

		ProfileTierLevel: &o.ptl,

		VuiParametersPresentFlag: 1,
		Vui:                      &o.vui,
	}

	maxDecPicBuffering := e.gop.numRefFrames + 1
	if maxDecPicBuffering > hevc.MaxDpbSize {
		maxDecPicBuffering = hevc.MaxDpbSize
	}
	o.sps.SpsMaxDecPicBufferingMinus1[0] = uint8(maxDecPicBuffering - 1)
}

func (o *hevcOps) fillPPS(vpsID, spsID, ppsID uint8) {
	o.pps = hevc.PPS{
		VpsID: vpsID,
		SpsID: spsID,
		ID:    ppsID,

		PpsLoopFilterAcrossSlicesEnabledFlag: 1,
	}
}

func hevcStdSliceType(t SliceType) uint8 {
	switch t {
	case SliceP:
		return hevc.SliceTypeP
	case SliceB:
		return hevc.SliceTypeB
	default:
		return hevc.SliceTypeI
	}
}

func hevcStdPictureType(t SliceType, gopIndex int) uint8 {
	switch t {
	case SliceP:
		return hevc.PictureTypeP
	case SliceB:
		return hevc.PictureTypeB
	default:
		if gopIndex == 0 {
			return hevc.PictureTypeIdr
		}
		return hevc.PictureTypeI
	}
}

// listEntries 把选择的列表表达成对隐式序的索引映射
func listEntries(list []*Frame, asc bool) [hevc.MaxNumListRef]uint8 {
	var entries [hevc.MaxNumListRef]uint8

	implicit := make([]*Frame, len(list))
	copy(implicit, list)
	if asc {
		sort.SliceStable(implicit, func(i, j int) bool {
			return implicit[i].frameNum < implicit[j].frameNum
		})
	} else {
		sort.SliceStable(implicit, func(i, j int) bool {
			return implicit[i].frameNum > implicit[j].frameNum
		})
	}

	for i, f := range list {
		for j, g := range implicit {
			if f == g {
				entries[i] = uint8(j)
				break
			}
		}
	}
	return entries
}

// addSEICC 打包 CEA-708 字幕 SEI；失败不致命
func (o *hevcOps) addSEICC(f *Frame) {
	var messages []hevc.SEIMessage
	for _, cc := range f.Captions {
		if len(cc) == 0 {
			continue
		}
		messages = append(messages, hevc.SEIMessage{
			RegisteredUserData: &hevc.SEIRegisteredUserData{
				CountryCode: ccCountryCode,
				Data:        buildCCUserData(cc),
			},
		})
	}
	if len(messages) == 0 {
		return
	}

	nalType := uint8(hevc.NalTrailR)
	if f.gopIndex == 0 {
		nalType = hevc.NalIdrWRadl
	}
	data, err := o.bw.WriteSEI(messages, nalType)
	if err != nil {
		o.enc.logger.Warnf("failed to write the SEI CC data: %v", err)
		return
	}
	f.picture.AddPackedHeader(data)
}

func (o *hevcOps) encodeFrame(f *Frame, list0, list1 []*Frame) error {
	e := o.enc
	pic := f.picture

	if e.cfg.AUD {
		aud, err := o.bw.WriteAUD(audPrimaryPicType(f.typ))
		if err != nil {
			return err
		}
		pic.AddPackedHeader(aud)
	}

	// IDR 帧重复 VPS/SPS/PPS
	if f.poc == 0 {
		params, err := e.venc.SessionParams(&hevc.SessionParametersGetInfo{
			WriteStdVPS: true,
			WriteStdSPS: true,
			WriteStdPPS: true,
		})
		if err != nil {
			return err
		}
		pic.AddPackedHeader(params)
	}

	if e.cfg.CC && len(f.Captions) > 0 {
		o.addSEICC(f)
	}

	o.fillDescriptors(f, list0, list1)

	refPics := make([]*vulkan.EncodePicture, 0, len(list0)+len(list1))
	for _, r := range list0 {
		refPics = append(refPics, r.picture)
	}
	for _, r := range list1 {
		refPics = append(refPics, r.picture)
	}

	return e.venc.Encode(pic, refPics)
}

// fillDescriptors 填充单帧的 GPU 描述符
func (o *hevcOps) fillDescriptors(f *Frame, list0, list1 []*Frame) {
	e := o.enc
	pic := f.picture

	sliceHdr := &hevc.EncodeSliceSegmentHeader{
		FirstSliceSegmentInPicFlag: 1,
		SliceType:                  hevcStdSliceType(f.typ),
		WeightTable:                &hevc.WeightTable{},
	}
	if f.typ != SliceI {
		sliceHdr.NumRefIdxActiveOverrideFlag = 1
	}

	picInfo := &hevc.PictureInfo{
		IsReference:            boolToUint8(f.isRef),
		PicType:                hevcStdPictureType(f.typ, f.gopIndex),
		SpsVideoParameterSetID: o.sps.VpsID,
		PpsSeqParameterSetID:   o.pps.SpsID,
		PpsPicParameterSetID:   o.pps.ID,
		PicOrderCntVal:         int32(f.poc),
	}
	if f.gopIndex == 0 {
		picInfo.IrapPicFlag = 1
	}

	if e.venc.NRefSlots() > 0 {
		refLists := &hevc.ReferenceListsInfo{}
		for i := range refLists.RefPicList0 {
			refLists.RefPicList0[i] = hevc.NoReferencePicture
			refLists.RefPicList1[i] = hevc.NoReferencePicture
		}

		for i, r := range list0 {
			refLists.RefPicList0[i] = uint8(r.picture.SlotIndex)
		}
		for i, r := range list1 {
			refLists.RefPicList1[i] = uint8(r.picture.SlotIndex)
		}
		if len(list0) > 0 {
			refLists.NumRefIdxL0ActiveMinus1 = uint8(len(list0) - 1)
		}
		if len(list1) > 0 {
			refLists.NumRefIdxL1ActiveMinus1 = uint8(len(list1) - 1)
		}

		// 与隐式序不同才发 list_entry
		if refListNeedReorder(list0, false) {
			refLists.RefPicListModificationFlagL0 = 1
			refLists.ListEntryL0 = listEntries(list0, false)
		}
		if refListNeedReorder(list1, true) {
			refLists.RefPicListModificationFlagL1 = 1
			refLists.ListEntryL1 = listEntries(list1, true)
		}

		picInfo.RefLists = refLists
	}

	pic.CodecPictureInfo = &hevc.EncodePictureInfo{
		NaluSliceSegmentEntries: []hevc.NaluSliceSegmentInfo{
			{ConstantQp: f.quality, StdSliceSegmentHeader: sliceHdr},
		},
		StdPictureInfo: picInfo,
	}

	pic.CodecRateControlInfo = &hevc.RateControlInfo{
		SubLayerCount: 1,
	}
	pic.CodecRateControlLayerInfo = &hevc.RateControlLayerInfo{
		UseMinQp: true,
		MinQp:    hevc.Qp{QpI: e.cfg.MinQp, QpP: e.cfg.MinQp, QpB: e.cfg.MinQp},
		UseMaxQp: true,
		MaxQp:    hevc.Qp{QpI: e.cfg.MaxQp, QpP: e.cfg.MaxQp, QpB: e.cfg.MaxQp},
	}
	pic.CodecQualityLevel = &hevc.QualityLevelProperties{
		PreferredRateControlFlags: hevc.RateControlRegularGop,
		PreferredConstantQp:       hevc.Qp{QpI: e.cfg.QpI, QpP: e.cfg.QpP, QpB: e.cfg.QpB},
	}
	pic.CodecDpbSlotInfo = &hevc.DpbSlotInfo{
		StdReferenceInfo: &hevc.ReferenceInfo{
			PicType:        hevcStdPictureType(f.typ, f.gopIndex),
			PicOrderCntVal: int32(f.poc),
			TemporalID:     0,
		},
	}
}
