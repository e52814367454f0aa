// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"fmt"
	"strings"
)

// Type 视频编码类型
type Type int

// 视频编码类型常量
const (
	TypeUnknown Type = iota - 1
	TypeH264
	TypeH265
)

// String returns a lower-case ASCII representation of the codec type.
func (t Type) String() string {
	switch t {
	case TypeH264:
		return "h264"
	case TypeH265:
		return "h265"
	default:
		return ""
	}
}

// MarshalText marshals the Type to text.
func (t *Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText unmarshals text to a Type.
func (t *Type) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "h264", "avc":
		*t = TypeH264
	case "h265", "hevc":
		*t = TypeH265
	default:
		return fmt.Errorf("unrecognized codec type: %q", text)
	}
	return nil
}

// Rational 有理数，用于帧率等
type Rational struct {
	Num uint32 `json:"num"`
	Den uint32 `json:"den"`
}

// Float 浮点值
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// ChromaFormat 色度采样格式
type ChromaFormat int

// 色度采样常量（与 chroma_format_idc 对应）
const (
	ChromaMonochrome ChromaFormat = iota
	Chroma420
	Chroma422
	Chroma444
)

// PixelFormat 输入图像的像素格式
type PixelFormat int

// 支持的像素格式
const (
	PixelFormatUnknown PixelFormat = iota - 1
	PixelFormatNV12
	PixelFormatP010
)

// ChromaInfo 返回像素格式对应的色度采样和位深
func (f PixelFormat) ChromaInfo() (chroma ChromaFormat, lumaDepth, chromaDepth int, ok bool) {
	switch f {
	case PixelFormatNV12:
		return Chroma420, 8, 8, true
	case PixelFormatP010:
		return Chroma420, 10, 10, true
	}
	return Chroma420, 0, 0, false
}

// PlaneCount 像素格式的平面数
func (f PixelFormat) PlaneCount() int {
	switch f {
	case PixelFormatNV12, PixelFormatP010:
		return 2
	}
	return 0
}
