// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vulkan

import (
	"errors"
	"sync"
	"time"

	"github.com/cnotch/xlog"
)

// 错误定义
var (
	// ErrNoCommandBuffer 操作未 Begin
	ErrNoCommandBuffer = errors.New("vulkan: operation has no command buffer")
	// ErrQueryUnsupported 队列不支持查询池
	ErrQueryUnsupported = errors.New("vulkan: query pool unsupported on this queue")
)

// dependencyFrame 记录一帧图像在提交后要写回的同步状态
type dependencyFrame struct {
	frame      *ImageBuffer
	updated    bool
	semaphored bool

	dstStage    PipelineStageFlags
	newAccess   AccessFlags
	newLayout   ImageLayout
	queueFamily uint32
}

type trashEntry struct {
	fence  Fence
	cmdBuf CommandBuffer
}

// Operation 包装一次队列操作：自动处理图像屏障、时间线
// 信号量与查询池。构造时按设备扩展选定同步路径：
// synchronization2 > timeline semaphore > 仅二值信号量。
type Operation struct {
	logger  *xlog.Logger
	cmdPool CommandPool
	queue   Queue

	submitLock sync.Mutex // 串行化队列提交

	hasSync2    bool
	hasTimeline bool
	hasVideo    bool

	cmdBuf CommandBuffer
	trash  []trashEntry

	queryPool QueryPool
	queryType QueryType

	deps struct {
		frames []dependencyFrame

		waitSemaphores   []SemaphoreSubmitInfo
		signalSemaphores []SemaphoreSubmitInfo
	}
}

// NewOperation 创建队列操作
func NewOperation(cmdPool CommandPool) *Operation {
	queue := cmdPool.Queue()
	device := queue.Device()

	op := &Operation{
		logger:  xlog.L().With(xlog.Fields(xlog.F("queue", queue.Family()))),
		cmdPool: cmdPool,
		queue:   queue,

		hasSync2:    device.IsExtensionEnabled(ExtSynchronization2),
		hasTimeline: device.IsExtensionEnabled(ExtTimelineSemaphore),
		hasVideo:    device.IsExtensionEnabled(ExtVideoQueue),
	}
	return op
}

// UseSync2 是否走 synchronization2 提交路径
func (op *Operation) UseSync2() bool { return op.hasSync2 }

// CommandBuffer 当前录制中的命令缓冲
func (op *Operation) CommandBuffer() CommandBuffer { return op.cmdBuf }

// Begin 准备好命令缓冲开始录制。
// 如果上一次操作仍在执行，先等它结束。
func (op *Operation) Begin() error {
	if op.cmdBuf != nil {
		if err := op.Wait(); err != nil {
			op.logger.Warnf("previous operation timed-out: %v", err)
		}
	}

	cmdBuf, err := op.cmdPool.Alloc()
	if err != nil {
		return err
	}
	op.cmdBuf = cmdBuf

	op.cmdBuf.Lock()
	if err := op.cmdBuf.Begin(true); err != nil {
		op.cmdBuf.Unlock()
		op.cmdBuf.Release()
		op.cmdBuf = nil
		return err
	}

	if op.queryPool != nil {
		op.cmdBuf.ResetQueryPool(op.queryPool, 0, 1)
	}

	return nil
}

func (op *Operation) findFrame(frame *ImageBuffer) *dependencyFrame {
	for i := range op.deps.frames {
		if op.deps.frames[i].frame == frame {
			return &op.deps.frames[i]
		}
	}
	return nil
}

// UpdateFrame 登记 frame 在提交后的同步状态；End 成功后自动写回
func (op *Operation) UpdateFrame(frame *ImageBuffer, dstStage PipelineStageFlags,
	newAccess AccessFlags, newLayout ImageLayout, queueFamily uint32) {
	dep := op.findFrame(frame)
	if dep == nil {
		op.deps.frames = append(op.deps.frames, dependencyFrame{frame: frame})
		dep = &op.deps.frames[len(op.deps.frames)-1]
	}

	dep.updated = true
	dep.dstStage = dstStage
	dep.newAccess = newAccess
	dep.newLayout = newLayout
	dep.queueFamily = queueFamily
}

// AddFrameBarrier 为 frame 的每个平面录制一条图像内存屏障，
// 并登记其提交后状态
func (op *Operation) AddFrameBarrier(frame *ImageBuffer, dstStage PipelineStageFlags,
	newAccess AccessFlags, newLayout ImageLayout, queueFamily uint32) error {
	if op.cmdBuf == nil {
		return ErrNoCommandBuffer
	}

	var barriers []ImageMemoryBarrier

	dep := op.findFrame(frame)
	if dep != nil && !dep.updated {
		dep = nil
	}

	for _, mem := range frame.Planes {
		srcQueueFamily := QueueFamilyIgnored
		if dep != nil && dep.queueFamily != QueueFamilyIgnored {
			srcQueueFamily = dep.queueFamily
		} else if mem.Barrier.QueueFamily != 0 {
			srcQueueFamily = mem.Barrier.QueueFamily
		}

		barrier := ImageMemoryBarrier{
			DstStage:       dstStage,
			DstAccess:      newAccess,
			NewLayout:      newLayout,
			SrcQueueFamily: srcQueueFamily,
			DstQueueFamily: queueFamily,
			Image:          mem.Image,
			Subresource:    mem.Barrier.Subresource,
		}
		if dep != nil {
			barrier.SrcStage = dep.dstStage
			barrier.SrcAccess = dep.newAccess
			barrier.OldLayout = dep.newLayout
		} else {
			barrier.SrcStage = mem.Barrier.Stages
			barrier.SrcAccess = mem.Barrier.Access
			barrier.OldLayout = mem.Barrier.Layout
		}

		barriers = append(barriers, barrier)
	}

	if op.hasSync2 {
		op.cmdBuf.PipelineBarrier2(barriers)
	} else {
		op.cmdBuf.PipelineBarrier(barriers)
	}

	op.UpdateFrame(frame, dstStage, newAccess, newLayout, queueFamily)
	return nil
}

// AddDependencyFrame 把 frame 每个平面的时间线信号量加入
// 等待数组（当前值）和信号数组（当前值 +1）
func (op *Operation) AddDependencyFrame(frame *ImageBuffer,
	waitStage, signalStage PipelineStageFlags) bool {
	if !op.hasTimeline {
		return false
	}

	dep := op.findFrame(frame)
	if dep != nil && dep.semaphored {
		return true
	}
	if dep == nil {
		op.deps.frames = append(op.deps.frames, dependencyFrame{frame: frame, semaphored: true})
	} else {
		dep.semaphored = true
	}

	for _, mem := range frame.Planes {
		if mem.Barrier.Semaphore == nil {
			break
		}

		op.deps.waitSemaphores = append(op.deps.waitSemaphores, SemaphoreSubmitInfo{
			Semaphore: mem.Barrier.Semaphore,
			Value:     mem.Barrier.SemaphoreValue,
			Stage:     waitStage,
		})
		op.deps.signalSemaphores = append(op.deps.signalSemaphores, SemaphoreSubmitInfo{
			Semaphore: mem.Barrier.Semaphore,
			Value:     mem.Barrier.SemaphoreValue + 1,
			Stage:     signalStage,
		})
	}

	return true
}

// DiscardDependencies 丢弃所有依赖帧与信号量数组
func (op *Operation) DiscardDependencies() {
	op.deps.frames = nil
	op.deps.waitSemaphores = nil
	op.deps.signalSemaphores = nil
}

func (op *Operation) submit2(fence Fence) error {
	info := &SubmitInfo2{
		CommandBuffers:   []CommandBuffer{op.cmdBuf},
		WaitSemaphores:   op.deps.waitSemaphores,
		SignalSemaphores: op.deps.signalSemaphores,
	}

	op.submitLock.Lock()
	defer op.submitLock.Unlock()
	return op.queue.Submit2(info, fence)
}

func (op *Operation) submit1(fence Fence) error {
	info := &SubmitInfo{
		CommandBuffers: []CommandBuffer{op.cmdBuf},
	}
	for _, s := range op.deps.waitSemaphores {
		info.WaitSemaphores = append(info.WaitSemaphores, s.Semaphore)
		info.WaitDstStageMask = append(info.WaitDstStageMask, s.Stage)
		if op.hasTimeline {
			info.WaitSemaphoreValues = append(info.WaitSemaphoreValues, s.Value)
		}
	}
	for _, s := range op.deps.signalSemaphores {
		info.SignalSemaphores = append(info.SignalSemaphores, s.Semaphore)
		if op.hasTimeline {
			info.SignalSemaphoreValues = append(info.SignalSemaphoreValues, s.Value)
		}
	}

	op.submitLock.Lock()
	defer op.submitLock.Unlock()
	return op.queue.Submit(info, fence)
}

// End 结束录制并提交。提交成功后：
//   - (fence, 命令缓冲) 进入回收列表；
//   - updated 的帧写回登记的屏障状态；
//   - semaphored 的帧时间线值 +1。
func (op *Operation) End() error {
	if op.cmdBuf == nil {
		return ErrNoCommandBuffer
	}

	err := op.cmdBuf.End()
	op.cmdBuf.Unlock()
	if err != nil {
		return err
	}

	fence, err := op.queue.Device().CreateFence()
	if err != nil {
		return err
	}

	if op.hasSync2 {
		err = op.submit2(fence)
	} else {
		err = op.submit1(fence)
	}
	if err != nil {
		fence.Destroy()
		return err
	}

	op.trash = append(op.trash, trashEntry{fence: fence, cmdBuf: op.cmdBuf})

	for i := range op.deps.frames {
		dep := &op.deps.frames[i]
		for _, mem := range dep.frame.Planes {
			if dep.updated {
				mem.Barrier.Stages = dep.dstStage
				mem.Barrier.Access = dep.newAccess
				mem.Barrier.Layout = dep.newLayout
				mem.Barrier.QueueFamily = dep.queueFamily
			}
			if dep.semaphored {
				mem.Barrier.SemaphoreValue++
			}
		}
		dep.updated = false
		dep.semaphored = false
	}

	return nil
}

// Wait 等待回收列表中的所有栅栏并清理状态
func (op *Operation) Wait() error {
	return op.WaitTimeout(time.Duration(0))
}

// WaitTimeout 带超时的 Wait；timeout 为 0 表示无限等待。
// 超时返回错误，命令缓冲留在回收列表中待下次回收。
func (op *Operation) WaitTimeout(timeout time.Duration) error {
	var firstErr error
	remain := op.trash[:0]
	for _, entry := range op.trash {
		if err := entry.fence.Wait(timeout); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			remain = append(remain, entry)
			continue
		}
		entry.fence.Destroy()
		entry.cmdBuf.Release()
	}
	op.trash = remain

	op.DiscardDependencies()
	op.cmdBuf = nil

	return firstErr
}

// EnableQuery 为操作启用查询池
func (op *Operation) EnableQuery(queryType QueryType, count uint32,
	profile *VideoProfile, flags EncodeFeedbackFlags) error {
	if op.queryPool != nil {
		return nil
	}

	pool, err := op.queue.Device().CreateQueryPool(&QueryPoolCreateInfo{
		Type:                queryType,
		Count:               count,
		Profile:             profile,
		EncodeFeedbackFlags: flags,
	})
	if err != nil {
		return err
	}

	op.queryPool = pool
	op.queryType = queryType
	return nil
}

// BeginQuery 录制查询开始命令
func (op *Operation) BeginQuery(id uint32) error {
	if op.queryPool == nil {
		return nil
	}
	if op.cmdBuf == nil {
		return ErrNoCommandBuffer
	}
	op.cmdBuf.BeginQuery(op.queryPool, id)
	return nil
}

// EndQuery 录制查询结束命令
func (op *Operation) EndQuery(id uint32) error {
	if op.queryPool == nil {
		return nil
	}
	if op.cmdBuf == nil {
		return ErrNoCommandBuffer
	}
	op.cmdBuf.EndQuery(op.queryPool, id)
	return nil
}

// GetQuery 读取编码反馈结果；status 为 complete 时
// offset 和 size 有效
func (op *Operation) GetQuery() (EncodeFeedback, error) {
	if op.queryPool == nil {
		return EncodeFeedback{}, ErrQueryUnsupported
	}

	results, err := op.queryPool.FeedbackResults(0, 1)
	if err != nil {
		return EncodeFeedback{}, err
	}
	return results[0], nil
}

// Reset 把操作恢复到干净状态；未就绪的栅栏留待下次回收
func (op *Operation) Reset() {
	remain := op.trash[:0]
	for _, entry := range op.trash {
		if entry.fence.Wait(time.Nanosecond) != nil {
			remain = append(remain, entry)
			continue
		}
		entry.fence.Destroy()
		entry.cmdBuf.Release()
	}
	op.trash = remain
	op.DiscardDependencies()
	op.cmdBuf = nil
}

// Close 销毁查询池并回收
func (op *Operation) Close() {
	op.Reset()
	if op.queryPool != nil {
		op.queryPool.Destroy()
		op.queryPool = nil
	}
}
