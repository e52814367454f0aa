// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import "sort"

// findUnusedReference 选出本帧入队后要被替换出 DPB 的参考。
//   - 容量未满：无需替换；
//   - 非 b_pyramid：滑动窗口（最老的 frame_num）；
//   - b_pyramid 且当前是 B：替换 poc 最小的 B 参考，若它不是
//     队首则登记 unused_reference_pic_num，切片头显式发 MMCO；
//   - 当前是 I/P：滑动窗口。
func (e *Encoder) findUnusedReference(f *Frame) *Frame {
	if len(e.refList) < int(e.gop.numRefFrames) {
		return nil
	}
	if len(e.refList) == 0 {
		return nil
	}

	if !e.gop.bPyramid {
		return e.refList[0]
	}

	if f.typ != SliceB {
		return e.refList[0]
	}

	// 选 poc 最小的 B 参考
	var b *Frame
	for _, r := range e.refList {
		if r.typ != SliceB {
			continue
		}
		if b == nil || r.poc < b.poc {
			b = r
		}
	}

	// 没有 B 参考
	if b == nil {
		return e.refList[0]
	}

	if b != e.refList[0] {
		f.unusedRefPicNum = b.frameNum
		e.logger.Debugf("the frame with POC: %d, pic_num %d will be replaced by the frame "+
			"with POC: %d, pic_num %d explicitly by using memory_management_control_operation=1",
			b.poc, b.frameNum, f.poc, f.frameNum)
	}

	return b
}

// referenceLists 为当前帧构造 list0/list1：
// list0 取 poc 不大于当前帧的参考按 poc 降序（最近的在前），
// list1 取 poc 大于当前帧的参考按 poc 升序，各自截断到配置上限。
// I 帧两者皆空。
func (e *Encoder) referenceLists(f *Frame) (list0, list1 []*Frame) {
	if f.typ == SliceI {
		return nil, nil
	}

	for i := len(e.refList) - 1; i >= 0; i-- {
		r := e.refList[i]
		if r.poc > f.poc {
			continue
		}
		list0 = append(list0, r)
	}
	// 选最近的前向参考
	sort.SliceStable(list0, func(i, j int) bool { return list0[i].poc > list0[j].poc })
	if len(list0) > int(e.gop.refNumList0) {
		list0 = list0[:e.gop.refNumList0]
	}

	if f.typ == SliceB {
		for _, r := range e.refList {
			if r.poc <= f.poc {
				continue
			}
			list1 = append(list1, r)
		}
		// 选最近的后向参考
		sort.SliceStable(list1, func(i, j int) bool { return list1[i].poc < list1[j].poc })
		if len(list1) > int(e.gop.refNumList1) {
			list1 = list1[:e.gop.refNumList1]
		}
	}

	return list0, list1
}

// refListNeedReorder 选择的列表与按 frame_num 的隐式序不同时
// 需要发重排操作
func refListNeedReorder(list []*Frame, asc bool) bool {
	if len(list) <= 1 {
		return false
	}

	for i := 1; i < len(list); i++ {
		diff := list[i].frameNum - list[i-1].frameNum
		if diff > 0 && !asc {
			return true
		}
		if diff < 0 && asc {
			return true
		}
	}

	return false
}

// refListModification 中立的重排操作，由各编码转成自己的语法
type refListModification struct {
	// idc 0: 差值为负；1: 差值为正；3: 列表结束
	idc         uint8
	absDiffMinus1 uint32
}

// refListModifications 生成把隐式序变换成 list 的操作序列，
// 以结束操作码 3 收尾
func refListModifications(curFrameNum int, list []*Frame, asc bool) []refListModification {
	byPicNum := make([]*Frame, len(list))
	copy(byPicNum, list)
	if asc {
		sort.SliceStable(byPicNum, func(i, j int) bool {
			return byPicNum[i].frameNum < byPicNum[j].frameNum
		})
	} else {
		sort.SliceStable(byPicNum, func(i, j int) bool {
			return byPicNum[i].frameNum > byPicNum[j].frameNum
		})
	}

	modificationNum := 0
	for i := range list {
		if byPicNum[i].poc != list[i].poc {
			modificationNum = i + 1
		}
	}

	ops := make([]refListModification, 0, modificationNum+1)
	picNumLxPred := curFrameNum
	for i := 0; i < modificationNum; i++ {
		diff := list[i].frameNum - picNumLxPred
		// 下一轮的预测值
		picNumLxPred = list[i].frameNum

		if diff > 0 {
			ops = append(ops, refListModification{idc: 1, absDiffMinus1: uint32(diff - 1)})
		} else {
			ops = append(ops, refListModification{idc: 0, absDiffMinus1: uint32(-diff - 1)})
		}
	}

	ops = append(ops, refListModification{idc: 3})
	return ops
}
