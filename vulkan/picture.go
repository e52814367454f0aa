// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vulkan

// EncodePicture 一次编码的图像及其 GPU 参数。
// Codec* 字段由具体编码器在提交前填充。
type EncodePicture struct {
	InBuffer *ImageBuffer
	Width    int
	Height   int

	IsRef  bool
	NbRefs int

	SlotIndex   int32
	PicOrderCnt int32
	PicNum      uint32

	FpsN uint32
	FpsD uint32

	// PackedHeaders 在 GPU 码流前拼接的 NAL（SPS/PPS/AUD/SEI 等），
	// 按加入顺序排列
	PackedHeaders [][]byte

	// OutBuffer GPU 写入的码流缓冲
	OutBuffer BitstreamBuffer
	// Feedback 编码反馈（offset/size/status）
	Feedback EncodeFeedback

	dpbResource PictureResourceInfo

	CodecPictureInfo     interface{}
	CodecRateControlInfo interface{}
	CodecRateControlLayerInfo interface{}
	CodecDpbSlotInfo     interface{}
	CodecQualityLevel    interface{}
}

// NewEncodePicture 从输入图像创建编码图像
func NewEncodePicture(in *ImageBuffer, width, height int, isRef bool, nbRefs int) *EncodePicture {
	return &EncodePicture{
		InBuffer:  in,
		Width:     width,
		Height:    height,
		IsRef:     isRef,
		NbRefs:    nbRefs,
		SlotIndex: -1,
	}
}

// AddPackedHeader 追加一个打包头；切片头追加在最后
func (pic *EncodePicture) AddPackedHeader(data []byte) {
	pic.PackedHeaders = append(pic.PackedHeaders, data)
}

// PackedHeaderBytes 所有打包头的总字节数
func (pic *EncodePicture) PackedHeaderBytes() int {
	n := 0
	for _, h := range pic.PackedHeaders {
		n += len(h)
	}
	return n
}

// Free 释放图像持有的 GPU 资源
func (pic *EncodePicture) Free() {
	if pic.OutBuffer != nil {
		pic.OutBuffer.Destroy()
		pic.OutBuffer = nil
	}
	pic.InBuffer = nil
	pic.PackedHeaders = nil
}
