// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

// push 把一帧压入重排队列。f 为 nil 仅处理 last。
// last 为真时把缓冲尾部的 B 提升为 P，干净地终止 GOP，
// 并保证下一次 push 开启新 GOP。
func (e *Encoder) push(f *Frame, last bool) error {
	if e.gop.curFrameIndex > e.gop.idrPeriod {
		return ErrInternal
	}

	if f != nil {
		// 强制关键帧：当前 GOP 提前终止，从 IDR 重新开始
		if f.ForceKeyframe && e.gop.curFrameIndex != 0 {
			if n := len(e.reorderList); n > 0 {
				tail := e.reorderList[n-1]
				if tail.typ == SliceB {
					tail.typ = SliceP
					tail.isRef = true
				}
			}
			e.gop.curFrameIndex = e.gop.idrPeriod
			// 先编码缓冲的帧，再接纳关键帧
			if err := e.encodeReady(); err != nil {
				return err
			}
		}

		// 新 GOP，重排队列应当已空
		if e.gop.curFrameIndex == e.gop.idrPeriod {
			if len(e.reorderList) != 0 {
				return ErrInternal
			}
			e.gop.curFrameIndex = 0
			e.gop.curFrameNum = 0
			e.applyPendingConfig()
		}

		f.poc = int((e.gop.curFrameIndex * 2) % e.gop.maxPicOrderCnt)
		f.gopIndex = int(e.gop.curFrameIndex)

		if e.gop.curFrameIndex == 0 {
			e.logger.Debugf("system_frame_number: %d, an IDR frame, starts a new GOP",
				f.SystemFrameNumber)

			e.clearRefList()
			f.syncPoint = true
		}

		entry := &e.gop.frameTypes[e.gop.curFrameIndex]
		f.typ = entry.sliceType
		f.isRef = entry.isRef
		f.pyramidLevel = entry.pyramidLevel
		f.leftRefPocDiff = entry.leftRefPocDiff
		f.rightRefPocDiff = entry.rightRefPocDiff

		if f.ForceKeyframe {
			e.logger.Debugf("system_frame_number: %d, a force key frame, promote its type from %s to %s",
				f.SystemFrameNumber, f.typ, SliceI)
			f.typ = SliceI
			f.isRef = true
		}

		e.logger.Debugf("push frame, system_frame_number: %d, poc %d, frame type %s",
			f.SystemFrameNumber, f.poc, f.typ)

		e.gop.curFrameIndex++
		e.reorderList = append(e.reorderList, f)
	}

	// 确保最后一帧是非 B 并终止 GOP
	if last && e.gop.curFrameIndex < e.gop.idrPeriod {
		// 下一次 push 开启新 GOP
		e.gop.curFrameIndex = e.gop.idrPeriod

		if n := len(e.reorderList); n > 0 {
			tail := e.reorderList[n-1]
			if tail.typ == SliceB {
				tail.typ = SliceP
				tail.isRef = true
			}
		}
	}

	return nil
}

// countBackwardRefs 参考队列中 poc 大于给定值的帧数
func (e *Encoder) countBackwardRefs(poc int) uint32 {
	var n uint32
	for _, r := range e.refList {
		if r.poc > poc {
			n++
		}
	}
	return n
}

func (e *Encoder) removeReorderAt(idx int) *Frame {
	f := e.reorderList[idx]
	e.reorderList = append(e.reorderList[:idx], e.reorderList[idx+1:]...)
	return f
}

// popPyramidB 选出可以编码的分层 B 帧：
// 先取层级最低（平局取 poc 最小）的候选，再检查其锚点
// 是否仍在缓冲——锚点必须先出队
func (e *Encoder) popPyramidB() *Frame {
	if e.gop.refNumList1 != 1 {
		return nil
	}

	bestIdx := -1
	var best *Frame
	for i, f := range e.reorderList {
		if best == nil ||
			f.pyramidLevel < best.pyramidLevel ||
			(f.pyramidLevel == best.pyramidLevel && f.poc < best.poc) {
			best = f
			bestIdx = i
		}
	}
	if best == nil {
		return nil
	}

again:
	for i, f := range e.reorderList {
		if f == best {
			continue
		}
		if f.poc == best.poc+best.leftRefPocDiff ||
			f.poc == best.poc+best.rightRefPocDiff {
			best = f
			bestIdx = i
			goto again
		}
	}

	// 后向参考必须已经就位
	if e.countBackwardRefs(best.poc) >= e.gop.refNumList1 {
		return e.removeReorderAt(bestIdx)
	}
	return nil
}

// pop 取出下一个可以编码的帧；没有就绪的返回 nil。
// 出队时赋 frame_num，参考帧使计数递增。
func (e *Encoder) pop() *Frame {
	if e.gop.curFrameIndex > e.gop.idrPeriod {
		return nil
	}

	if len(e.reorderList) == 0 {
		return nil
	}

	var f *Frame

	// 尾部的非 B 立即出队
	tail := e.reorderList[len(e.reorderList)-1]
	switch {
	case tail.typ != SliceB:
		f = e.removeReorderAt(len(e.reorderList) - 1)
	case e.gop.bPyramid:
		f = e.popPyramidB()
	case e.gop.curFrameIndex == e.gop.idrPeriod:
		// GOP 结束，无条件弹出队首
		f = e.removeReorderAt(0)
	default:
		head := e.reorderList[0]
		if e.countBackwardRefs(head.poc) >= e.gop.refNumList1 {
			f = e.removeReorderAt(0)
		}
	}

	if f == nil {
		return nil
	}

	if e.gop.curFrameNum >= e.gop.maxFrameNum {
		e.logger.Errorf("frame_num overflow, cur %d, max %d",
			e.gop.curFrameNum, e.gop.maxFrameNum)
		e.gop.curFrameNum %= e.gop.maxFrameNum
	}

	f.frameNum = int(e.gop.curFrameNum)
	// 仅参考帧递增
	if f.isRef {
		e.gop.curFrameNum++
	}

	if f.frameNum == 0 {
		e.gop.totalIdrCount++
	}

	if e.gop.bPyramid && f.typ == SliceB {
		e.logger.Debugf("pop a pyramid B frame with system_frame_number: %d, poc: %d, "+
			"frame num: %d, is_ref: %v, level %d",
			f.SystemFrameNumber, f.poc, f.frameNum, f.isRef, f.pyramidLevel)
	} else {
		e.logger.Debugf("pop a frame with system_frame_number: %d, frame type: %s, "+
			"poc: %d, frame num: %d, is_ref: %v",
			f.SystemFrameNumber, f.typ, f.poc, f.frameNum, f.isRef)
	}

	return f
}
