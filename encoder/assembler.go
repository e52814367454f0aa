// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"github.com/cnotch/vkenc/vulkan"
)

// assembleOutput 产出一帧的最终字节序列：先是打包头
// （SPS/PPS/VPS/AUD/SEI/切片头），随后是 GPU 写出的切片数据
// [offset, offset+size)。picture 为空返回 nil。
func assembleOutput(pic *vulkan.EncodePicture) []byte {
	if pic == nil || pic.OutBuffer == nil {
		return nil
	}

	fb := pic.Feedback
	data := pic.OutBuffer.Bytes()

	begin := int(fb.Offset)
	end := begin + int(fb.Size)
	if begin > len(data) {
		begin = len(data)
	}
	if end > len(data) {
		end = len(data)
	}

	out := make([]byte, 0, pic.PackedHeaderBytes()+(end-begin))
	for _, h := range pic.PackedHeaders {
		out = append(out, h...)
	}
	out = append(out, data[begin:end]...)

	return out
}

// audPrimaryPicType AUD 的 primary_pic_type：I 0，P 1，B 2
func audPrimaryPicType(t SliceType) uint8 {
	switch t {
	case SliceI:
		return 0
	case SliceP:
		return 1
	default:
		return 2
	}
}

// CEA-708 注册用户数据的 ITU-T T.35 国家码
const ccCountryCode = 181

// buildCCUserData 构造一条 CEA-708 字幕的注册用户数据载荷：
// provider code 49，ATSC 标识 "GA94"，type code 3，
// cc_count 带 process_cc_data 标记，em_data 与尾部标记 0xFF。
func buildCCUserData(cc []byte) []byte {
	size := 10 + len(cc)
	data := make([]byte, size)

	// 16 位 itu_t_t35_provider_code
	data[0] = 0
	data[1] = 49
	// 32 位 ATSC_user_identifier
	data[2] = 'G'
	data[3] = 'A'
	data[4] = '9'
	data[5] = '4'
	// 8 位 ATSC1_data_user_data_type_code
	data[6] = 3
	// 1 位 process_em_data_flag (0)
	// 1 位 process_cc_data_flag (1)
	// 1 位 additional_data_flag (0)
	// 5 位 cc_count
	data[7] = byte(len(cc)/3)&0x1f | 0x40
	// 8 位 em_data，未使用
	data[8] = 255

	copy(data[9:], cc)

	// 8 位结尾标记
	data[size-1] = 255

	return data
}
