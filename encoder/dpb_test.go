// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"testing"

	"github.com/cnotch/xlog"
	"github.com/stretchr/testify/assert"
)

func testLogger() *xlog.Logger { return xlog.L() }

func refFrame(poc, frameNum int, typ SliceType) *Frame {
	return &Frame{poc: poc, frameNum: frameNum, typ: typ, isRef: true, unusedRefPicNum: -1}
}

func TestRefListNeedReorder(t *testing.T) {
	tests := []struct {
		name string
		list []*Frame
		asc  bool
		want bool
	}{
		{"empty", nil, false, false},
		{"single", []*Frame{refFrame(0, 0, SliceI)}, false, false},
		{"desc-ok", []*Frame{refFrame(8, 3, SliceP), refFrame(4, 2, SliceB)}, false, false},
		{"desc-reordered", []*Frame{refFrame(4, 2, SliceB), refFrame(8, 3, SliceP)}, false, true},
		{"asc-ok", []*Frame{refFrame(4, 2, SliceB), refFrame(8, 3, SliceP)}, true, false},
		{"asc-reordered", []*Frame{refFrame(8, 3, SliceP), refFrame(4, 2, SliceB)}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, refListNeedReorder(tt.list, tt.asc))
		})
	}
}

func TestRefListModifications(t *testing.T) {
	// 隐式序（frame_num 降序）是 [fn3, fn1]，选择的顺序是 [fn1, fn3]
	list := []*Frame{refFrame(2, 1, SliceP), refFrame(8, 3, SliceP)}
	ops := refListModifications(4, list, false)

	// 两个重排操作加一个结束操作
	if assert.Len(t, ops, 3) {
		// fn1 相对当前 frame_num 4 的差值 -3
		assert.Equal(t, uint8(0), ops[0].idc)
		assert.Equal(t, uint32(2), ops[0].absDiffMinus1)
		// fn3 相对前值 1 的差值 +2
		assert.Equal(t, uint8(1), ops[1].idc)
		assert.Equal(t, uint32(1), ops[1].absDiffMinus1)
		// 结束操作码固定为 3
		assert.Equal(t, uint8(3), ops[2].idc)
	}
}

func TestRefListModificationsNoTailChange(t *testing.T) {
	// 只有前两个位置与隐式序不同，末位相同
	list := []*Frame{
		refFrame(8, 3, SliceP),
		refFrame(10, 4, SliceP),
		refFrame(2, 1, SliceP),
	}
	ops := refListModifications(5, list, false)
	// 实际上整个前缀都要重发：位置 0/1 不同，2 相同
	assert.Equal(t, uint8(3), ops[len(ops)-1].idc)
}

func TestFindUnusedReferenceSlidingWindow(t *testing.T) {
	e := &Encoder{}
	e.gop.numRefFrames = 2
	e.gop.bPyramid = false
	e.logger = testLogger()

	a := refFrame(0, 0, SliceI)
	b := refFrame(2, 1, SliceP)
	e.refList = []*Frame{a, b}

	f := refFrame(4, 2, SliceP)
	assert.Equal(t, a, e.findUnusedReference(f))
	assert.Equal(t, -1, f.unusedRefPicNum)
}

func TestFindUnusedReferencePyramid(t *testing.T) {
	e := &Encoder{}
	e.gop.numRefFrames = 3
	e.gop.bPyramid = true
	e.logger = testLogger()

	p0 := refFrame(0, 0, SliceI)
	p1 := refFrame(8, 1, SliceP)
	bref := refFrame(4, 2, SliceB)
	e.refList = []*Frame{p0, p1, bref}

	// B 帧替换 poc 最小的 B 参考，非队首则登记显式标记
	f := &Frame{poc: 6, frameNum: 3, typ: SliceB, isRef: true, unusedRefPicNum: -1}
	assert.Equal(t, bref, e.findUnusedReference(f))
	assert.Equal(t, 2, f.unusedRefPicNum)

	// I/P 帧仍走滑动窗口
	g := &Frame{poc: 16, frameNum: 4, typ: SliceP, isRef: true, unusedRefPicNum: -1}
	assert.Equal(t, p0, e.findUnusedReference(g))
	assert.Equal(t, -1, g.unusedRefPicNum)
}

func TestReferenceLists(t *testing.T) {
	e := &Encoder{}
	e.gop.numRefFrames = 4
	e.gop.refNumList0 = 2
	e.gop.refNumList1 = 1
	e.logger = testLogger()

	e.refList = []*Frame{
		refFrame(0, 0, SliceI),
		refFrame(4, 1, SliceP),
		refFrame(8, 2, SliceP),
		refFrame(12, 3, SliceP),
	}

	f := &Frame{poc: 6, typ: SliceB}
	list0, list1 := e.referenceLists(f)

	// list0 按 poc 降序取最近的前向参考
	if assert.Len(t, list0, 2) {
		assert.Equal(t, 4, list0[0].poc)
		assert.Equal(t, 0, list0[1].poc)
	}
	// list1 按 poc 升序取最近的后向参考
	if assert.Len(t, list1, 1) {
		assert.Equal(t, 8, list1[0].poc)
	}

	// I 帧两者皆空
	i := &Frame{poc: 0, typ: SliceI}
	list0, list1 = e.referenceLists(i)
	assert.Empty(t, list0)
	assert.Empty(t, list1)
}
