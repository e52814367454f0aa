// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package vulkantest 提供纯软件实现的假 Vulkan 后端，
// 供编码核心的测试在没有 GPU 的环境下运行。
package vulkantest

import (
	"errors"
	"sync"
	"time"

	"github.com/cnotch/vkenc/vulkan"
)

// DefaultSessionParams 假设备返回的参数集字节
var DefaultSessionParams = []byte{
	0x00, 0x00, 0x00, 0x01, 0x67, 0x64, 0x00, 0x1f, // 假 SPS
	0x00, 0x00, 0x00, 0x01, 0x68, 0xee, 0x3c, 0x80, // 假 PPS
}

// Device 假设备。字段在 NewDevice 后、会话启动前可调
type Device struct {
	Extensions map[string]bool
	Caps       vulkan.VideoCapabilities
	Formats    []vulkan.FormatProperties

	// SessionParamsData GetEncodedVideoSessionParameters 返回的数据
	SessionParamsData []byte

	// OnEncode 每次 EncodeVideo 的行为；返回写入的偏移与长度。
	// 为 nil 时写入 128 字节的固定图样。
	OnEncode func(info *vulkan.EncodeInfo) (offset, size uint32)

	// 执行记录，断言用
	BeginInfos   []vulkan.BeginCodingInfo
	ControlInfos []vulkan.CodingControlInfo
	EncodeInfos  []vulkan.EncodeInfo
	Barriers     [][]vulkan.ImageMemoryBarrier
	Submits      int

	SessionsAlive int
	ParamsAlive   int

	queryResult vulkan.EncodeFeedback
	l           sync.Mutex
}

// NewDevice 创建带默认能力的假设备
func NewDevice(codecCaps interface{}) *Device {
	return &Device{
		Extensions: map[string]bool{
			vulkan.ExtSynchronization2:  true,
			vulkan.ExtTimelineSemaphore: true,
			vulkan.ExtVideoQueue:        true,
		},
		Caps: vulkan.VideoCapabilities{
			MaxCodedExtent:                  vulkan.Extent2D{Width: 4096, Height: 4096},
			MaxDpbSlots:                     16,
			MaxActiveReferencePictures:      16,
			MinBitstreamBufferSizeAlignment: 256,
			StdHeaderVersion: vulkan.ExtensionProperties{
				Name:        "VK_STD_vulkan_video_codec",
				SpecVersion: vulkan.MakeVersion(0, 9, 11),
			},
			Encode: vulkan.EncodeCapabilities{
				MaxBitrate:       800_000_000,
				MaxQualityLevels: 4,
			},
			Codec: codecCaps,
		},
		Formats: []vulkan.FormatProperties{
			{Format: 23, ComponentLayout: "NV12"},
		},
		SessionParamsData: DefaultSessionParams,
	}
}

// NewQueue 在假设备上创建队列
func NewQueue(d *Device) vulkan.Queue {
	return &queue{device: d, family: 1}
}

// NewImageBuffer 创建带时间线信号量的双平面假图像
func NewImageBuffer() *vulkan.ImageBuffer {
	mkPlane := func() *vulkan.ImageMemory {
		return &vulkan.ImageMemory{
			Image: new(int),
			Barrier: vulkan.BarrierState{
				Semaphore: new(int),
			},
		}
	}
	return &vulkan.ImageBuffer{
		Planes: []*vulkan.ImageMemory{mkPlane(), mkPlane()},
		View:   new(int),
	}
}

// IsExtensionEnabled .
func (d *Device) IsExtensionEnabled(name string) bool { return d.Extensions[name] }

// VideoCapabilities .
func (d *Device) VideoCapabilities(profile *vulkan.VideoProfile) (*vulkan.VideoCapabilities, error) {
	caps := d.Caps
	return &caps, nil
}

// VideoFormatProperties .
func (d *Device) VideoFormatProperties(profile *vulkan.VideoProfile,
	usage vulkan.ImageUsageFlags) ([]vulkan.FormatProperties, error) {
	return d.Formats, nil
}

// CreateVideoSession .
func (d *Device) CreateVideoSession(info *vulkan.VideoSessionCreateInfo) (vulkan.VideoSession, error) {
	d.SessionsAlive++
	return &session{device: d}, nil
}

// CreateVideoSessionParameters .
func (d *Device) CreateVideoSessionParameters(
	info *vulkan.VideoSessionParametersCreateInfo) (vulkan.VideoSessionParameters, error) {
	d.ParamsAlive++
	return &sessionParams{device: d}, nil
}

// GetEncodedVideoSessionParameters 两段式协议
func (d *Device) GetEncodedVideoSessionParameters(
	info *vulkan.VideoSessionParametersGetInfo, data []byte) (int, error) {
	if data == nil {
		return len(d.SessionParamsData), nil
	}
	return copy(data, d.SessionParamsData), nil
}

// CreateQueryPool .
func (d *Device) CreateQueryPool(info *vulkan.QueryPoolCreateInfo) (vulkan.QueryPool, error) {
	if info.Type != vulkan.QueryTypeVideoEncodeFeedback {
		return nil, errors.New("vulkantest: unsupported query type")
	}
	return &queryPool{device: d}, nil
}

// CreateFence .
func (d *Device) CreateFence() (vulkan.Fence, error) {
	return &fence{}, nil
}

// CreateBitstreamBuffer .
func (d *Device) CreateBitstreamBuffer(profile *vulkan.VideoProfile,
	size uint64) (vulkan.BitstreamBuffer, error) {
	return &bitstreamBuffer{data: make([]byte, size)}, nil
}

type session struct{ device *Device }

func (s *session) Destroy() { s.device.SessionsAlive-- }

type sessionParams struct{ device *Device }

func (s *sessionParams) Destroy() { s.device.ParamsAlive-- }

type queryPool struct{ device *Device }

func (q *queryPool) FeedbackResults(first, count uint32) ([]vulkan.EncodeFeedback, error) {
	q.device.l.Lock()
	defer q.device.l.Unlock()
	return []vulkan.EncodeFeedback{q.device.queryResult}, nil
}

func (q *queryPool) Destroy() {}

type fence struct {
	l        sync.Mutex
	signaled bool
}

func (f *fence) signal() {
	f.l.Lock()
	f.signaled = true
	f.l.Unlock()
}

func (f *fence) Wait(timeout time.Duration) error {
	f.l.Lock()
	defer f.l.Unlock()
	if !f.signaled {
		return errors.New("vulkantest: fence timeout")
	}
	return nil
}

func (f *fence) Destroy() {}

type bitstreamBuffer struct{ data []byte }

func (b *bitstreamBuffer) Bytes() []byte { return b.data }
func (b *bitstreamBuffer) Size() uint64  { return uint64(len(b.data)) }
func (b *bitstreamBuffer) Destroy()      {}

type queue struct {
	device *Device
	family uint32
	l      sync.Mutex
}

func (q *queue) Device() vulkan.Device { return q.device }
func (q *queue) Family() uint32        { return q.family }

func (q *queue) CreateCommandPool() (vulkan.CommandPool, error) {
	return &commandPool{queue: q}, nil
}

func (q *queue) submit(cmdBufs []vulkan.CommandBuffer, fc vulkan.Fence) error {
	q.l.Lock()
	defer q.l.Unlock()

	for _, cb := range cmdBufs {
		if err := cb.(*commandBuffer).execute(); err != nil {
			return err
		}
	}
	q.device.Submits++

	if fc != nil {
		fc.(*fence).signal()
	}
	return nil
}

// Submit 同步执行全部已录制命令并触发栅栏
func (q *queue) Submit(info *vulkan.SubmitInfo, fc vulkan.Fence) error {
	return q.submit(info.CommandBuffers, fc)
}

// Submit2 .
func (q *queue) Submit2(info *vulkan.SubmitInfo2, fc vulkan.Fence) error {
	return q.submit(info.CommandBuffers, fc)
}

type commandPool struct{ queue *queue }

func (p *commandPool) Queue() vulkan.Queue { return p.queue }

func (p *commandPool) Alloc() (vulkan.CommandBuffer, error) {
	return &commandBuffer{pool: p}, nil
}

type commandBuffer struct {
	pool  *commandPool
	l     sync.Mutex
	ops   []func() error
	began bool
}

func (c *commandBuffer) Lock()   { c.l.Lock() }
func (c *commandBuffer) Unlock() { c.l.Unlock() }

func (c *commandBuffer) Begin(oneTimeSubmit bool) error {
	c.ops = nil
	c.began = true
	return nil
}

func (c *commandBuffer) End() error {
	if !c.began {
		return errors.New("vulkantest: command buffer not began")
	}
	return nil
}

func (c *commandBuffer) Release() {}

func (c *commandBuffer) execute() error {
	for _, op := range c.ops {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

func (c *commandBuffer) record(op func() error) {
	c.ops = append(c.ops, op)
}

func (c *commandBuffer) PipelineBarrier(barriers []vulkan.ImageMemoryBarrier) {
	d := c.pool.queue.device
	bs := append([]vulkan.ImageMemoryBarrier(nil), barriers...)
	c.record(func() error {
		d.Barriers = append(d.Barriers, bs)
		return nil
	})
}

func (c *commandBuffer) PipelineBarrier2(barriers []vulkan.ImageMemoryBarrier) {
	c.PipelineBarrier(barriers)
}

func (c *commandBuffer) ResetQueryPool(pool vulkan.QueryPool, first, count uint32) {
	d := c.pool.queue.device
	c.record(func() error {
		d.l.Lock()
		d.queryResult = vulkan.EncodeFeedback{}
		d.l.Unlock()
		return nil
	})
}

func (c *commandBuffer) BeginQuery(pool vulkan.QueryPool, id uint32) {}
func (c *commandBuffer) EndQuery(pool vulkan.QueryPool, id uint32)   {}

func (c *commandBuffer) BeginVideoCoding(info *vulkan.BeginCodingInfo) {
	d := c.pool.queue.device
	cp := *info
	c.record(func() error {
		d.BeginInfos = append(d.BeginInfos, cp)
		return nil
	})
}

func (c *commandBuffer) ControlVideoCoding(info *vulkan.CodingControlInfo) {
	d := c.pool.queue.device
	cp := *info
	c.record(func() error {
		d.ControlInfos = append(d.ControlInfos, cp)
		return nil
	})
}

func (c *commandBuffer) EncodeVideo(info *vulkan.EncodeInfo) {
	d := c.pool.queue.device
	cp := *info
	c.record(func() error {
		offset, size := uint32(0), uint32(128)
		if d.OnEncode != nil {
			offset, size = d.OnEncode(&cp)
		} else if cp.DstBuffer != nil {
			data := cp.DstBuffer.Bytes()
			for i := uint32(0); i < size && int(offset+i) < len(data); i++ {
				data[offset+i] = 0xab
			}
		}

		d.EncodeInfos = append(d.EncodeInfos, cp)
		d.l.Lock()
		d.queryResult = vulkan.EncodeFeedback{
			Offset: offset,
			Size:   size,
			Status: vulkan.QueryResultStatusComplete,
		}
		d.l.Unlock()
		return nil
	})
}

func (c *commandBuffer) EndVideoCoding() {}
