// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"errors"
	"fmt"

	"github.com/cnotch/vkenc/av/codec"
	"github.com/cnotch/vkenc/av/codec/h264"
	"github.com/cnotch/vkenc/vulkan"
)

// ErrUnsupportedFormat 输入像素格式不被支持
var ErrUnsupportedFormat = errors.New("encoder: unsupported pixel format")

// h264Ops H.264 的编码能力集
type h264Ops struct {
	enc *Encoder
	bw  h264.BitWriter

	profile  h264.Profile
	levelIdc uint8

	sps h264.SPS
	pps h264.PPS
}

// NewH264 创建 H.264 编码器。bw 由外部的 codec bit-writer
// 提供，out 接收按解码序产出的压缩帧。
func NewH264(queue vulkan.Queue, bw h264.BitWriter, out codec.FrameWriter, cfg Config) *Encoder {
	ops := &h264Ops{bw: bw}
	venc := vulkan.NewEncoder(queue, vulkan.CodecOperationEncodeH264)
	enc := newEncoder(ops, venc, out, cfg)
	ops.enc = enc
	return enc
}

func (o *h264Ops) codecType() codec.Type { return codec.TypeH264 }

// B 帧尚未实现
// TODO: 对齐 hevc 路径补上 B 帧支持
func (o *h264Ops) supportsBFrames() bool { return false }

// 自适应 QP 反馈暂不累计输出字节，见 DESIGN.md 的未决项
func (o *h264Ops) accumulatesUsedBytes() bool { return false }

func (o *h264Ops) stop() {
	o.enc.venc.Stop()
}

func (o *h264Ops) maxNumReference() (uint32, uint32, bool) {
	caps, ok := o.enc.venc.Caps()
	if !ok {
		return 0, 0, false
	}
	codecCaps, ok := caps.Codec.(*h264.Capabilities)
	if !ok {
		return 0, 0, false
	}
	return codecCaps.MaxPPictureL0ReferenceCount, codecCaps.MaxL1ReferenceCount, true
}

func (o *h264Ops) start() error {
	e := o.enc

	chroma, lumaDepth, chromaDepth, ok := e.format.ChromaInfo()
	if !ok {
		return ErrUnsupportedFormat
	}

	profileName := e.cfg.Profile
	if profileName == "" {
		profileName = "main"
	}
	o.profile, ok = h264.ProfileFromName(profileName)
	if !ok {
		return fmt.Errorf("encoder: unknown h264 profile %q", profileName)
	}

	picSizeMbs := uint32(e.mbWidth * e.mbHeight)
	maxDpbMbs := picSizeMbs * (e.gop.numRefFrames + 1)
	maxMBPS := uint32((uint64(picSizeMbs)*uint64(e.frameRate.Num) +
		uint64(e.frameRate.Den) - 1) / uint64(e.frameRate.Den))

	level, err := h264.SelectLevel(picSizeMbs, maxDpbMbs, maxMBPS,
		e.maxBitrateBits(), 0, o.profile)
	if err != nil {
		return err
	}
	o.levelIdc = level.Idc
	e.logger.Debugf("profile: %s, level: %s", o.profile.Name(), level.Name)

	o.fillSPS()
	o.fillPPS()

	e.applyRateControl()

	profile := &vulkan.VideoProfile{
		Op:                vulkan.CodecOperationEncodeH264,
		ChromaSubsampling: chromaSubsampling(chroma),
		LumaBitDepth:      componentBitDepth(lumaDepth),
		ChromaBitDepth:    componentBitDepth(chromaDepth),
		Codec:             &h264.ProfileInfo{StdProfileIdc: o.profile},
	}
	params := &h264.SessionParametersCreateInfo{
		MaxStdSPSCount: 1,
		MaxStdPPSCount: 1,
		AddInfo: &h264.SessionParametersAddInfo{
			SPSs: []*h264.SPS{&o.sps},
			PPSs: []*h264.PPS{&o.pps},
		},
	}

	return e.venc.Start(profile, params)
}

func (o *h264Ops) fillSPS() {
	e := o.enc
	chroma, lumaDepth, chromaDepth, _ := e.format.ChromaInfo()

	// 让 max_dec_frame_buffering 不超过 MaxDpbFrames
	maxDecFrameBuffering := e.gop.numRefFrames + 1 // 含出队前的最后一帧
	if maxDecFrameBuffering > h264.MaxDpbFrames {
		maxDecFrameBuffering = h264.MaxDpbFrames
	}

	var constraintSet0, constraintSet1 uint8
	switch o.profile {
	case h264.ProfileBaseline:
		// A.2.1
		constraintSet0 = 1
		constraintSet1 = 1
	case h264.ProfileMain:
		// A.2.2
		constraintSet1 = 1
	}

	log2Poc := e.gop.log2MaxPicOrderCnt
	if log2Poc > 16 {
		log2Poc = 16
	}

	o.sps = h264.SPS{
		ID:                 0,
		ProfileIdc:         o.profile,
		ConstraintSet0Flag: constraintSet0,
		ConstraintSet1Flag: constraintSet1,
		LevelIdc:           o.levelIdc,

		ChromaFormatIdc:      uint8(chroma),
		BitDepthLumaMinus8:   uint8(lumaDepth - 8),
		BitDepthChromaMinus8: uint8(chromaDepth - 8),

		Log2MaxFrameNumMinus4:       uint8(e.gop.log2MaxFrameNum - 4),
		PicOrderCntType:             0,
		Log2MaxPicOrderCntLsbMinus4: uint8(log2Poc - 4),

		NumRefFrames: uint8(e.gop.numRefFrames),

		PicWidthInMbsMinus1:       uint16(e.mbWidth - 1),
		PicHeightInMapUnitsMinus1: uint16(e.mbHeight - 1),
		FrameMbsOnlyFlag:          1,
		Direct8x8InferenceFlag:    1,

		VuiParametersPresentFlag: 1,
		Vui: h264.VUI{
			TimingInfoPresentFlag: 1,
			NumUnitsInTick:        e.frameRate.Den,
			TimeScale:             e.frameRate.Num * 2,
			FixedFrameRateFlag:    1,

			PicStructPresentFlag: 1,

			BitstreamRestrictionFlag: 1,
			MaxBytesPerPicDenom:      2,
			MaxBitsPerMbDenom:        1,
			NumReorderFrames:         uint8(e.gop.numReorderFrames),
			MaxDecFrameBuffering:     uint8(maxDecFrameBuffering),
		},
	}

	if e.lumaWidth != e.width || e.lumaHeight != e.height {
		// 4:2:0 的裁剪单位是 2 个亮度样点
		o.sps.FrameCroppingFlag = 1
		o.sps.FrameCropRightOffset = uint16((e.lumaWidth - e.width) / 2)
		o.sps.FrameCropBottomOffset = uint16((e.lumaHeight - e.height) / 2)
	}
}

func (o *h264Ops) fillPPS() {
	o.pps = h264.PPS{
		ID:       0,
		Sequence: &o.sps,
	}
	// baseline 无 CABAC
	if o.profile != h264.ProfileBaseline {
		o.pps.EntropyCodingModeFlag = 1
	}
}

func stdSliceType(t SliceType) uint8 {
	switch t {
	case SliceP:
		return h264.SliceTypeP
	case SliceB:
		return h264.SliceTypeB
	default:
		return h264.SliceTypeI
	}
}

func stdPictureType(t SliceType, gopIndex int) uint8 {
	switch t {
	case SliceP:
		return h264.PictureTypeP
	case SliceB:
		return h264.PictureTypeB
	default:
		if gopIndex == 0 {
			return h264.PictureTypeIdr
		}
		return h264.PictureTypeI
	}
}

func chromaSubsampling(c codec.ChromaFormat) vulkan.ChromaSubsampling {
	switch c {
	case codec.ChromaMonochrome:
		return vulkan.ChromaSubsamplingMonochrome
	case codec.Chroma422:
		return vulkan.ChromaSubsampling422
	case codec.Chroma444:
		return vulkan.ChromaSubsampling444
	default:
		return vulkan.ChromaSubsampling420
	}
}

func componentBitDepth(depth int) vulkan.ComponentBitDepth {
	switch depth {
	case 10:
		return vulkan.ComponentBitDepth10
	case 12:
		return vulkan.ComponentBitDepth12
	default:
		return vulkan.ComponentBitDepth8
	}
}

// toH264Modifications 中立重排操作转成 h264 语法
func toH264Modifications(ops []refListModification) []h264.RefPicListModification {
	mods := make([]h264.RefPicListModification, len(ops))
	for i, op := range ops {
		mods[i] = h264.RefPicListModification{
			ModificationOfPicNumsIdc: op.idc,
			AbsDiffPicNumMinus1:      op.absDiffMinus1,
		}
	}
	return mods
}

// addSliceHeaders 生成并追加每条切片的打包切片头。
// 宏块均分到 num_slices 条切片，余数逐条摊一个。
func (o *h264Ops) addSliceHeaders(f *Frame, list0, list1 []*Frame) error {
	e := o.enc

	nalType := uint8(h264.NalSlice)
	if f.gopIndex == 0 {
		nalType = h264.NalIdrSlice
	}

	sliceHdr := h264.SliceHeader{
		Type:           stdSliceType(f.typ),
		PPS:            &o.pps,
		FrameNum:       uint16(f.frameNum),
		PicOrderCntLsb: uint16(f.poc),
	}
	if f.gopIndex == 0 {
		sliceHdr.IdrPicID = uint16(e.gop.totalIdrCount)
	}

	if f.typ == SliceB {
		sliceHdr.DirectSpatialMvPredFlag = 1
	}
	if len(list0) > 0 || len(list1) > 0 {
		sliceHdr.NumRefIdxActiveOverrideFlag = 1
		if len(list0) > 0 {
			sliceHdr.NumRefIdxL0ActiveMinus1 = uint8(len(list0) - 1)
		}
		if f.typ == SliceB && len(list1) > 0 {
			sliceHdr.NumRefIdxL1ActiveMinus1 = uint8(len(list1) - 1)
		}
	}

	// 需要时发列表重排操作
	if refListNeedReorder(list0, false) {
		sliceHdr.RefPicListModificationFlagL0 = 1
		sliceHdr.RefPicListModificationL0 =
			toH264Modifications(refListModifications(f.frameNum, list0, false))
	}
	if refListNeedReorder(list1, true) {
		sliceHdr.RefPicListModificationFlagL1 = 1
		sliceHdr.RefPicListModificationL1 =
			toH264Modifications(refListModifications(f.frameNum, list1, true))
	}

	// 显式标记本帧替换掉的参考
	if f.unusedRefPicNum >= 0 {
		sliceHdr.DecRefPicMarking.AdaptiveRefPicMarkingModeFlag = 1
		sliceHdr.DecRefPicMarking.RefPicMarking = []h264.RefPicMarking{
			{
				MemoryManagementControlOperation: 1,
				DifferenceOfPicNumsMinus1:        uint32(f.frameNum - f.unusedRefPicNum - 1),
			},
			{MemoryManagementControlOperation: 0},
		}
	}

	totalMbs := e.mbWidth * e.mbHeight
	sliceOfMbs := totalMbs / int(e.cfg.NumSlices)
	sliceModMbs := totalMbs % int(e.cfg.NumSlices)
	startMb := 0
	for i := 0; i < int(e.cfg.NumSlices); i++ {
		sliceMbs := sliceOfMbs
		// 余数均摊
		if sliceModMbs > 0 {
			sliceMbs++
			sliceModMbs--
		}

		hdr := sliceHdr
		hdr.FirstMbInSlice = uint32(startMb)

		data, _, err := o.bw.WriteSliceHeader(&hdr, nalType, f.isRef)
		if err != nil {
			return err
		}
		f.picture.AddPackedHeader(data)

		startMb += sliceMbs
	}

	return nil
}

// addSEICC 打包 CEA-708 字幕 SEI；失败不致命
func (o *h264Ops) addSEICC(f *Frame) {
	var messages []h264.SEIMessage
	for _, cc := range f.Captions {
		if len(cc) == 0 {
			continue
		}
		messages = append(messages, h264.SEIMessage{
			RegisteredUserData: &h264.SEIRegisteredUserData{
				CountryCode: ccCountryCode,
				Data:        buildCCUserData(cc),
			},
		})
	}
	if len(messages) == 0 {
		return
	}

	data, err := o.bw.WriteSEI(messages)
	if err != nil {
		o.enc.logger.Warnf("failed to write the SEI CC data: %v", err)
		return
	}
	f.picture.AddPackedHeader(data)
}

func (o *h264Ops) encodeFrame(f *Frame, list0, list1 []*Frame) error {
	e := o.enc
	pic := f.picture

	if e.cfg.AUD {
		aud, err := o.bw.WriteAUD(audPrimaryPicType(f.typ))
		if err != nil {
			return err
		}
		pic.AddPackedHeader(aud)
	}

	// IDR 帧重复 SPS/PPS
	if f.poc == 0 {
		params, err := e.venc.SessionParams(&h264.SessionParametersGetInfo{
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

	if err := o.addSliceHeaders(f, list0, list1); err != nil {
		return err
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
func (o *h264Ops) fillDescriptors(f *Frame, list0, list1 []*Frame) {
	e := o.enc
	pic := f.picture

	sliceHdr := &h264.EncodeSliceHeader{
		SliceType:   stdSliceType(f.typ),
		WeightTable: &h264.WeightTable{},
	}

	picInfo := &h264.PictureInfo{
		IsReference:       boolToUint8(f.isRef),
		PrimaryPicType:    stdPictureType(f.typ, f.gopIndex),
		FrameNum:          uint32(f.frameNum),
		PicOrderCnt:       int32(f.poc),
		SeqParameterSetID: o.sps.ID,
		PicParameterSetID: o.pps.ID,
	}
	if f.gopIndex == 0 {
		picInfo.IdrPicFlag = 1
		picInfo.IdrPicID = uint16(e.gop.totalIdrCount)
	}

	if e.venc.NRefSlots() > 0 {
		refLists := &h264.ReferenceListsInfo{}
		for i := range refLists.RefPicList0 {
			refLists.RefPicList0[i] = h264.NoReferencePicture
			refLists.RefPicList1[i] = h264.NoReferencePicture
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

		if refListNeedReorder(list0, false) {
			refLists.RefPicListModificationFlagL0 = 1
			refLists.RefList0ModOperations =
				toH264Modifications(refListModifications(f.frameNum, list0, false))
		}
		if refListNeedReorder(list1, true) {
			refLists.RefPicListModificationFlagL1 = 1
			refLists.RefList1ModOperations =
				toH264Modifications(refListModifications(f.frameNum, list1, true))
		}
		if f.unusedRefPicNum >= 0 {
			refLists.RefPicMarkingOperations = []h264.RefPicMarking{
				{
					MemoryManagementControlOperation: 1,
					DifferenceOfPicNumsMinus1:        uint32(f.frameNum - f.unusedRefPicNum - 1),
				},
				{MemoryManagementControlOperation: 0},
			}
		}

		picInfo.RefLists = refLists
	}

	pic.CodecPictureInfo = &h264.EncodePictureInfo{
		NaluSliceEntries: []h264.NaluSliceInfo{
			{ConstantQp: f.quality, StdSliceHeader: sliceHdr},
		},
		StdPictureInfo: picInfo,
	}

	pic.CodecRateControlInfo = &h264.RateControlInfo{
		TemporalLayerCount: 1,
	}
	pic.CodecRateControlLayerInfo = &h264.RateControlLayerInfo{
		UseMinQp: true,
		MinQp:    h264.Qp{QpI: e.cfg.MinQp, QpP: e.cfg.MinQp, QpB: e.cfg.MinQp},
		UseMaxQp: true,
		MaxQp:    h264.Qp{QpI: e.cfg.MaxQp, QpP: e.cfg.MaxQp, QpB: e.cfg.MaxQp},
	}
	pic.CodecQualityLevel = &h264.QualityLevelProperties{
		PreferredRateControlFlags: h264.RateControlRegularGop,
		PreferredConstantQp:       h264.Qp{QpI: e.cfg.QpI, QpP: e.cfg.QpP, QpB: e.cfg.QpB},
	}
	pic.CodecDpbSlotInfo = &h264.DpbSlotInfo{
		StdReferenceInfo: &h264.ReferenceInfo{
			PrimaryPicType: stdPictureType(f.typ, f.gopIndex),
			FrameNum:       uint32(f.frameNum),
			PicOrderCnt:    int32(f.poc),
			TemporalID:     0,
		},
	}
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
