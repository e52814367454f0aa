// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"testing"

	"github.com/cnotch/xlog"
	"github.com/stretchr/testify/assert"

	"github.com/cnotch/vkenc/av/codec"
)

func testGop(cfg Config, fps codec.Rational, list0, list1 uint32, supportsB bool) *gopState {
	cfg2 := cfg
	cfg2.normalize()
	g := &gopState{}
	g.prepare(&cfg2, fps, supportsB, xlog.L())
	g.generate(list0, list1, xlog.L())
	return g
}

func TestGopLog2MaxNum(t *testing.T) {
	tests := []struct {
		num  uint32
		want uint32
	}{
		{0, 4}, {1, 4}, {15, 4}, {16, 5}, {30, 5}, {256, 9}, {1024, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, log2MaxNum(tt.num), "num=%d", tt.num)
	}
}

func TestGopDerivedFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdrPeriod = 30
	g := testGop(cfg, codec.Rational{Num: 30, Den: 1}, 16, 1, true)

	assert.Equal(t, uint32(5), g.log2MaxFrameNum)
	assert.Equal(t, uint32(32), g.maxFrameNum)
	assert.Equal(t, uint32(6), g.log2MaxPicOrderCnt)
	assert.Equal(t, uint32(64), g.maxPicOrderCnt)
	// GOP 内不能出现 POC 折返
	assert.True(t, g.maxPicOrderCnt > 2*g.idrPeriod)
}

func TestGopDefaultIdrPeriodFromFps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdrPeriod = 0
	g := testGop(cfg, codec.Rational{Num: 30000, Den: 1001}, 16, 1, true)
	assert.Equal(t, uint32(30), g.idrPeriod)
}

func TestGopIntraOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdrPeriod = 10
	cfg.NumRefFrames = 0
	g := testGop(cfg, codec.Rational{Num: 30, Den: 1}, 0, 0, true)

	assert.Equal(t, uint32(0), g.ipPeriod)
	assert.Equal(t, uint32(0), g.numBFrames)
	assert.Equal(t, uint32(9), g.numIFrames)

	assert.Equal(t, SliceI, g.frameTypes[0].sliceType)
	assert.True(t, g.frameTypes[0].isRef)
	for i := uint32(1); i < g.idrPeriod; i++ {
		assert.Equal(t, SliceI, g.frameTypes[i].sliceType)
		assert.False(t, g.frameTypes[i].isRef)
	}
}

func TestGopIPOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdrPeriod = 33
	cfg.NumRefFrames = 1
	g := testGop(cfg, codec.Rational{Num: 30, Den: 1}, 16, 1, true)

	assert.Equal(t, uint32(1), g.ipPeriod)
	assert.Equal(t, uint32(1), g.refNumList0)
	assert.Equal(t, uint32(0), g.refNumList1)
	assert.Equal(t, uint32(0), g.numReorderFrames)

	assert.Equal(t, SliceI, g.frameTypes[0].sliceType)
	for i := uint32(1); i < g.idrPeriod; i++ {
		assert.Equal(t, SliceP, g.frameTypes[i].sliceType, "pos %d", i)
		assert.True(t, g.frameTypes[i].isRef)
	}
}

func TestGopBFramesClamp(t *testing.T) {
	// 小 GOP：首尾必须是参考
	cfg := DefaultConfig()
	cfg.IdrPeriod = 4
	cfg.NumBFrames = 7
	cfg.NumRefFrames = 3
	g := testGop(cfg, codec.Rational{Num: 30, Den: 1}, 8, 2, true)
	assert.Equal(t, uint32(2), g.numBFrames)

	// 大 GOP：至少一半非 B
	cfg = DefaultConfig()
	cfg.IdrPeriod = 30
	cfg.NumBFrames = 20
	cfg.NumRefFrames = 3
	g = testGop(cfg, codec.Rational{Num: 30, Den: 1}, 8, 2, true)
	assert.Equal(t, uint32(14), g.numBFrames)
}

func TestGopNoBFramesWithoutCodecSupport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdrPeriod = 30
	cfg.NumBFrames = 3
	cfg.BPyramid = true
	g := testGop(cfg, codec.Rational{Num: 30, Den: 1}, 8, 2, false)
	assert.Equal(t, uint32(0), g.numBFrames)
	assert.False(t, g.bPyramid)
}

func TestGopPyramid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdrPeriod = 8
	cfg.NumBFrames = 3
	cfg.BPyramid = true
	cfg.NumRefFrames = 3
	g := testGop(cfg, codec.Rational{Num: 30, Den: 1}, 8, 2, true)

	assert.True(t, g.bPyramid)
	assert.Equal(t, uint32(1), g.highestPyramidLevel)
	assert.Equal(t, uint32(1), g.refNumList1)
	assert.Equal(t, uint32(2), g.refNumList0)
	assert.Equal(t, uint32(4), g.ipPeriod)
	assert.Equal(t, uint32(2), g.numReorderFrames)

	// [IDR, B(L1), B(L0,ref), B(L1), P, B(L1), B(L0,ref), P]
	wantTypes := []SliceType{SliceI, SliceB, SliceB, SliceB, SliceP, SliceB, SliceB, SliceP}
	for i, want := range wantTypes {
		assert.Equal(t, want, g.frameTypes[i].sliceType, "pos %d", i)
	}

	assert.Equal(t, uint32(1), g.frameTypes[1].pyramidLevel)
	assert.False(t, g.frameTypes[1].isRef)
	assert.Equal(t, -2, g.frameTypes[1].leftRefPocDiff)
	assert.Equal(t, 2, g.frameTypes[1].rightRefPocDiff)

	assert.Equal(t, uint32(0), g.frameTypes[2].pyramidLevel)
	assert.True(t, g.frameTypes[2].isRef)
	assert.Equal(t, -4, g.frameTypes[2].leftRefPocDiff)
	assert.Equal(t, 4, g.frameTypes[2].rightRefPocDiff)

	assert.Equal(t, uint32(1), g.frameTypes[3].pyramidLevel)
	assert.False(t, g.frameTypes[3].isRef)

	// 最后一帧强制 P 参考
	assert.Equal(t, SliceP, g.frameTypes[7].sliceType)
	assert.True(t, g.frameTypes[7].isRef)
}

func TestGopPyramidDisabledWithFewRefs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdrPeriod = 8
	cfg.NumBFrames = 3
	cfg.BPyramid = true
	cfg.NumRefFrames = 2
	g := testGop(cfg, codec.Rational{Num: 30, Den: 1}, 8, 2, true)
	assert.False(t, g.bPyramid)
	assert.Equal(t, uint32(0), g.highestPyramidLevel)
}

func TestGopIFrameInsertion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdrPeriod = 30
	cfg.NumBFrames = 0
	cfg.NumIFrames = 2
	cfg.NumRefFrames = 2
	g := testGop(cfg, codec.Rational{Num: 30, Den: 1}, 8, 2, true)

	assert.Equal(t, uint32(10), g.iPeriod)

	// I 帧数等于 1 + num_iframes，间隔 i_period
	var iPositions []uint32
	for i := uint32(0); i < g.idrPeriod; i++ {
		if g.frameTypes[i].sliceType == SliceI {
			iPositions = append(iPositions, i)
		}
	}
	assert.Equal(t, []uint32{0, 10, 20}, iPositions)
}

func TestSetPyramidInfo(t *testing.T) {
	info := make([]pyramidInfo, 3)
	setPyramidInfo(info, 0, 1)

	assert.Equal(t, uint32(1), info[0].level)
	assert.Equal(t, uint32(0), info[1].level)
	assert.Equal(t, uint32(1), info[2].level)

	// 中间 B 跨整段
	assert.Equal(t, -4, info[1].leftRefPocDiff)
	assert.Equal(t, 4, info[1].rightRefPocDiff)
	// 两侧各自贴着锚点
	assert.Equal(t, -2, info[0].leftRefPocDiff)
	assert.Equal(t, 2, info[0].rightRefPocDiff)
	assert.Equal(t, -2, info[2].leftRefPocDiff)
	assert.Equal(t, 2, info[2].rightRefPocDiff)
}
