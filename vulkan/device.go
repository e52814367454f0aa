// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vulkan

import "time"

// VideoProfile 视频会话 profile
type VideoProfile struct {
	Op                CodecOperation
	ChromaSubsampling ChromaSubsampling
	LumaBitDepth      ComponentBitDepth
	ChromaBitDepth    ComponentBitDepth
	// Codec 编码相关的 profile 信息
	// (*h264.ProfileInfo 或 *hevc.ProfileInfo)
	Codec interface{}
}

// EncodeCapabilities 编码能力
type EncodeCapabilities struct {
	MaxBitrate                   uint64
	MaxQualityLevels             uint32
	SupportedEncodeFeedbackFlags EncodeFeedbackFlags
}

// VideoCapabilities 会话能力，由设备按 profile 查询
type VideoCapabilities struct {
	MaxCodedExtent                    Extent2D
	MinCodedExtent                    Extent2D
	MaxDpbSlots                       uint32
	MaxActiveReferencePictures        uint32
	MinBitstreamBufferOffsetAlignment uint64
	MinBitstreamBufferSizeAlignment   uint64
	StdHeaderVersion                  ExtensionProperties

	Encode EncodeCapabilities
	// Codec 编码相关能力 (*h264.Capabilities 或 *hevc.Capabilities)
	Codec interface{}
}

// FormatProperties 按用途枚举得到的图像格式
type FormatProperties struct {
	Format Format
	// ComponentLayout 分量布局名，如 "NV12"；会话挑选
	// 第一个可识别的布局
	ComponentLayout string
}

// VideoSessionCreateInfo 视频会话创建参数
type VideoSessionCreateInfo struct {
	QueueFamily                uint32
	Profile                    *VideoProfile
	PictureFormat              Format
	MaxCodedExtent             Extent2D
	ReferencePictureFormat     Format
	MaxDpbSlots                uint32
	MaxActiveReferencePictures uint32
	StdHeaderVersion           *ExtensionProperties
}

// VideoSessionParametersCreateInfo 会话参数对象创建参数
type VideoSessionParametersCreateInfo struct {
	Session VideoSession
	// Codec 编码相关参数集
	// (*h264.SessionParametersCreateInfo 或 *hevc.SessionParametersCreateInfo)
	Codec interface{}
}

// VideoSessionParametersGetInfo 取回已编码参数集的请求
type VideoSessionParametersGetInfo struct {
	Parameters VideoSessionParameters
	// Codec 编码相关请求
	// (*h264.SessionParametersGetInfo 或 *hevc.SessionParametersGetInfo)
	Codec interface{}
}

// QueryPoolCreateInfo 查询池创建参数
type QueryPoolCreateInfo struct {
	Type                QueryType
	Count               uint32
	Profile             *VideoProfile
	EncodeFeedbackFlags EncodeFeedbackFlags
}

// EncodeFeedback 编码反馈查询结果，
// 元素布局为 {offset u32, size u32, status i32}
type EncodeFeedback struct {
	Offset uint32
	Size   uint32
	Status QueryResultStatus
}

// ImageSubresourceRange 图像子资源范围
type ImageSubresourceRange struct {
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// BarrierState 单平面图像的同步状态
type BarrierState struct {
	Stages         PipelineStageFlags
	Access         AccessFlags
	Layout         ImageLayout
	QueueFamily    uint32
	Semaphore      Handle // timeline 信号量，可为 nil
	SemaphoreValue uint64
	Subresource    ImageSubresourceRange
}

// ImageMemory GPU 图像的单个平面
type ImageMemory struct {
	Image   Handle
	Barrier BarrierState
}

// ImageBuffer 多平面 GPU 图像（一帧 YUV）
type ImageBuffer struct {
	Planes []*ImageMemory
	View   Handle // image view 句柄
}

// ImageMemoryBarrier 图像内存屏障（每平面一条）
type ImageMemoryBarrier struct {
	SrcStage       PipelineStageFlags // 仅 synchronization2 路径使用
	DstStage       PipelineStageFlags // 仅 synchronization2 路径使用
	SrcAccess      AccessFlags
	DstAccess      AccessFlags
	OldLayout      ImageLayout
	NewLayout      ImageLayout
	SrcQueueFamily uint32
	DstQueueFamily uint32
	Image          Handle
	Subresource    ImageSubresourceRange
}

// QueueFamilyIgnored 不做队列族迁移
const QueueFamilyIgnored = ^uint32(0)

// SemaphoreSubmitInfo 提交时的信号量及其时间线值
type SemaphoreSubmitInfo struct {
	Semaphore Handle
	Value     uint64
	Stage     PipelineStageFlags
}

// SubmitInfo 传统 vkQueueSubmit 形式的提交参数。
// 时间线扩展可用时填充 wait/signal 值数组。
type SubmitInfo struct {
	CommandBuffers        []CommandBuffer
	WaitSemaphores        []Handle
	WaitDstStageMask      []PipelineStageFlags
	SignalSemaphores      []Handle
	WaitSemaphoreValues   []uint64
	SignalSemaphoreValues []uint64
}

// SubmitInfo2 synchronization2 形式的提交参数
type SubmitInfo2 struct {
	CommandBuffers   []CommandBuffer
	WaitSemaphores   []SemaphoreSubmitInfo
	SignalSemaphores []SemaphoreSubmitInfo
}

// PictureResourceInfo 编码图像资源
type PictureResourceInfo struct {
	CodedOffset      Offset2D
	CodedExtent      Extent2D
	BaseArrayLayer   uint32
	ImageViewBinding Handle
}

// ReferenceSlotInfo DPB 槽位
type ReferenceSlotInfo struct {
	SlotIndex       int32
	PictureResource *PictureResourceInfo
	// Codec 编码相关槽位信息 (*h264.DpbSlotInfo 或 *hevc.DpbSlotInfo)
	Codec interface{}
}

// RateControlLayerInfo 码控层
type RateControlLayerInfo struct {
	AverageBitrate       uint64
	MaxBitrate           uint64
	FrameRateNumerator   uint32
	FrameRateDenominator uint32
	// Codec 编码相关层参数
	// (*h264.RateControlLayerInfo 或 *hevc.RateControlLayerInfo)
	Codec interface{}
}

// RateControlInfo 码控参数
type RateControlInfo struct {
	Mode                         RateControlMode
	Layers                       []RateControlLayerInfo
	VirtualBufferSizeInMs        uint32
	InitialVirtualBufferSizeInMs uint32
	// Codec 编码相关码控参数
	// (*h264.RateControlInfo 或 *hevc.RateControlInfo)
	Codec interface{}
}

// QualityLevelInfo 质量级别控制
type QualityLevelInfo struct {
	QualityLevel uint32
}

// BeginCodingInfo 视频编码上下文的开始参数
type BeginCodingInfo struct {
	Session        VideoSession
	Parameters     VideoSessionParameters
	ReferenceSlots []ReferenceSlotInfo
	RateControl    *RateControlInfo
}

// CodingControlInfo 视频编码上下文的动态控制
type CodingControlInfo struct {
	Flags        CodingControlFlags
	RateControl  *RateControlInfo
	QualityLevel *QualityLevelInfo
}

// EncodeInfo 单帧编码命令参数
type EncodeInfo struct {
	DstBuffer          BitstreamBuffer
	DstBufferOffset    uint64
	DstBufferRange     uint64
	SrcPictureResource PictureResourceInfo
	SetupReferenceSlot *ReferenceSlotInfo
	ReferenceSlots     []ReferenceSlotInfo
	PrecedingExternallyEncodedBytes uint32
	// Codec 编码相关图像参数
	// (*h264.EncodePictureInfo 或 *hevc.EncodePictureInfo)
	Codec interface{}
}

// Device 外部 Vulkan 运行时提供的设备能力
type Device interface {
	// IsExtensionEnabled 设备扩展是否可用
	IsExtensionEnabled(name string) bool
	// VideoCapabilities 按 profile 查询会话能力
	VideoCapabilities(profile *VideoProfile) (*VideoCapabilities, error)
	// VideoFormatProperties 按用途枚举支持的图像格式
	VideoFormatProperties(profile *VideoProfile, usage ImageUsageFlags) ([]FormatProperties, error)
	// CreateVideoSession 创建视频会话
	CreateVideoSession(info *VideoSessionCreateInfo) (VideoSession, error)
	// CreateVideoSessionParameters 创建会话参数对象
	CreateVideoSessionParameters(info *VideoSessionParametersCreateInfo) (VideoSessionParameters, error)
	// GetEncodedVideoSessionParameters 取回已编码参数集。
	// data 为 nil 时只返回所需长度（两段式调用协议）。
	GetEncodedVideoSessionParameters(info *VideoSessionParametersGetInfo, data []byte) (int, error)
	// CreateQueryPool 创建查询池
	CreateQueryPool(info *QueryPoolCreateInfo) (QueryPool, error)
	// CreateFence 创建栅栏
	CreateFence() (Fence, error)
	// CreateBitstreamBuffer 创建码流输出缓冲
	CreateBitstreamBuffer(profile *VideoProfile, size uint64) (BitstreamBuffer, error)
}

// Queue 视频编码队列
type Queue interface {
	Device() Device
	Family() uint32
	// Submit 传统提交；调用方负责串行化
	Submit(info *SubmitInfo, fence Fence) error
	// Submit2 synchronization2 提交
	Submit2(info *SubmitInfo2, fence Fence) error
	// CreateCommandPool 创建命令池
	CreateCommandPool() (CommandPool, error)
}

// CommandPool 命令池
type CommandPool interface {
	Queue() Queue
	// Alloc 分配一个命令缓冲
	Alloc() (CommandBuffer, error)
}

// CommandBuffer 命令缓冲。Lock/Unlock 界定录制临界区
type CommandBuffer interface {
	Lock()
	Unlock()
	Begin(oneTimeSubmit bool) error
	End() error
	// Release 归还命令池
	Release()

	PipelineBarrier(barriers []ImageMemoryBarrier)
	// PipelineBarrier2 synchronization2 形式（带阶段掩码）
	PipelineBarrier2(barriers []ImageMemoryBarrier)

	ResetQueryPool(pool QueryPool, first, count uint32)
	BeginQuery(pool QueryPool, id uint32)
	EndQuery(pool QueryPool, id uint32)

	BeginVideoCoding(info *BeginCodingInfo)
	ControlVideoCoding(info *CodingControlInfo)
	EncodeVideo(info *EncodeInfo)
	EndVideoCoding()
}

// Fence 栅栏
type Fence interface {
	// Wait 等待信号；timeout 为 0 表示无限等待，超时返回错误
	Wait(timeout time.Duration) error
	Destroy()
}

// QueryPool 查询池
type QueryPool interface {
	// FeedbackResults 读取编码反馈元素
	FeedbackResults(first, count uint32) ([]EncodeFeedback, error)
	Destroy()
}

// VideoSession 视频会话对象
type VideoSession interface {
	Destroy()
}

// VideoSessionParameters 会话参数对象
type VideoSessionParameters interface {
	Destroy()
}

// BitstreamBuffer 码流输出缓冲
type BitstreamBuffer interface {
	Bytes() []byte
	Size() uint64
	Destroy()
}
