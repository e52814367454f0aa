// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
//
// vulkan 封装视频编码会话和队列操作；实际的设备、队列与
// 命令缓冲由外部的 Vulkan 运行时通过本包的接口提供。
package vulkan

// Handle 后端资源的不透明句柄
type Handle interface{}

// Extent2D 二维尺寸
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Offset2D 二维偏移
type Offset2D struct {
	X int32
	Y int32
}

// Format 图像格式号，取值由后端定义
type Format int32

// FormatUndefined 未定义格式
const FormatUndefined Format = 0

// CodecOperation 视频编码操作类型
type CodecOperation int32

// 编码操作常量
const (
	CodecOperationEncodeH264 CodecOperation = iota + 1
	CodecOperationEncodeH265
)

// String .
func (op CodecOperation) String() string {
	switch op {
	case CodecOperationEncodeH264:
		return "encode-h264"
	case CodecOperationEncodeH265:
		return "encode-h265"
	default:
		return "unknown"
	}
}

// ChromaSubsampling 色度下采样标志
type ChromaSubsampling uint32

// 色度下采样常量
const (
	ChromaSubsamplingMonochrome ChromaSubsampling = 1 << iota
	ChromaSubsampling420
	ChromaSubsampling422
	ChromaSubsampling444
)

// ComponentBitDepth 分量位深标志
type ComponentBitDepth uint32

// 分量位深常量
const (
	ComponentBitDepth8 ComponentBitDepth = 1 << (iota * 2)
	ComponentBitDepth10
	ComponentBitDepth12
)

// Depth 位深数值
func (d ComponentBitDepth) Depth() int {
	switch d {
	case ComponentBitDepth8:
		return 8
	case ComponentBitDepth10:
		return 10
	case ComponentBitDepth12:
		return 12
	default:
		return 0
	}
}

// ImageLayout 图像布局
type ImageLayout int32

// 图像布局常量
const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	ImageLayoutTransferDst
	ImageLayoutVideoEncodeSrc
	ImageLayoutVideoEncodeDpb
)

// PipelineStageFlags 管线阶段掩码
type PipelineStageFlags uint64

// 管线阶段常量
const (
	StageNone           PipelineStageFlags = 0
	StageTopOfPipe      PipelineStageFlags = 1 << 0
	StageBottomOfPipe   PipelineStageFlags = 1 << 1
	StageAllCommands    PipelineStageFlags = 1 << 2
	StageVideoEncode    PipelineStageFlags = 1 << 3
)

// AccessFlags 访存掩码
type AccessFlags uint64

// 访存常量
const (
	AccessNone             AccessFlags = 0
	AccessVideoEncodeRead  AccessFlags = 1 << 0
	AccessVideoEncodeWrite AccessFlags = 1 << 1
)

// ImageUsageFlags 图像用途掩码
type ImageUsageFlags uint32

// 图像用途常量
const (
	ImageUsageTransferDst ImageUsageFlags = 1 << iota
	ImageUsageVideoEncodeSrc
	ImageUsageVideoEncodeDpb
)

// QueryType 查询池类型
type QueryType int32

// 查询池类型常量
const (
	QueryTypeResultStatusOnly QueryType = iota + 1
	QueryTypeVideoEncodeFeedback
)

// QueryResultStatus 查询状态
type QueryResultStatus int32

// 查询状态常量
const (
	QueryResultStatusError    QueryResultStatus = -1
	QueryResultStatusNotReady QueryResultStatus = 0
	QueryResultStatusComplete QueryResultStatus = 1
)

// EncodeFeedbackFlags 编码反馈内容掩码
type EncodeFeedbackFlags uint32

// 编码反馈内容常量
const (
	EncodeFeedbackBitstreamBufferOffset EncodeFeedbackFlags = 1 << iota
	EncodeFeedbackBitstreamBytesWritten
	EncodeFeedbackBitstreamHasOverrides
)

// RateControlMode 码率控制模式
type RateControlMode int32

// 码率控制模式常量
const (
	RateControlModeDefault  RateControlMode = 0
	RateControlModeDisabled RateControlMode = 1
	RateControlModeCBR      RateControlMode = 2
	RateControlModeVBR      RateControlMode = 4
)

// String .
func (m RateControlMode) String() string {
	switch m {
	case RateControlModeDefault:
		return "default"
	case RateControlModeDisabled:
		return "disabled"
	case RateControlModeCBR:
		return "cbr"
	case RateControlModeVBR:
		return "vbr"
	default:
		return "unknown"
	}
}

// UnmarshalText unmarshals text to a RateControlMode.
func (m *RateControlMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "default", "":
		*m = RateControlModeDefault
	case "disabled":
		*m = RateControlModeDisabled
	case "cbr":
		*m = RateControlModeCBR
	case "vbr":
		*m = RateControlModeVBR
	default:
		*m = RateControlModeDefault
	}
	return nil
}

// MarshalText marshals the RateControlMode to text.
func (m *RateControlMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// CodingControlFlags 编码控制命令标志
type CodingControlFlags uint32

// 编码控制命令常量
const (
	CodingControlReset CodingControlFlags = 1 << iota
	CodingControlEncodeRateControl
	CodingControlEncodeQualityLevel
)

// 后端扩展名称
const (
	ExtSynchronization2  = "VK_KHR_synchronization2"
	ExtTimelineSemaphore = "VK_KHR_timeline_semaphore"
	ExtVideoQueue        = "VK_KHR_video_queue"
)

// Version 打包的版本号
type Version uint32

// MakeVersion 组合版本号
func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

// Major .
func (v Version) Major() uint32 { return uint32(v) >> 22 }

// Minor .
func (v Version) Minor() uint32 { return (uint32(v) >> 12) & 0x3ff }

// Patch .
func (v Version) Patch() uint32 { return uint32(v) & 0xfff }

// ExtensionProperties 扩展名和版本
type ExtensionProperties struct {
	Name        string
	SpecVersion Version
}

// 本实现随 codec 头编译支持的标准头版本；
// 驱动要求高于此版本时拒绝启动会话
var codecExtensions = map[CodecOperation]ExtensionProperties{
	CodecOperationEncodeH264: {"VK_STD_vulkan_video_codec_h264_encode", MakeVersion(1, 0, 0)},
	CodecOperationEncodeH265: {"VK_STD_vulkan_video_codec_h265_encode", MakeVersion(1, 0, 0)},
}

var codecSupportedVersions = map[CodecOperation]Version{
	CodecOperationEncodeH264: MakeVersion(0, 9, 11),
	CodecOperationEncodeH265: MakeVersion(0, 9, 11),
}
