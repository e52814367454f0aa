// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"strconv"

	"github.com/cnotch/xlog"

	"github.com/cnotch/vkenc/av/codec"
)

// gopEntry GOP 表中一个位置的帧角色
type gopEntry struct {
	sliceType       SliceType
	isRef           bool
	pyramidLevel    uint32
	leftRefPocDiff  int
	rightRefPocDiff int
}

// gopState GOP 结构及其运行计数
type gopState struct {
	idrPeriod uint32
	ipPeriod  uint32
	iPeriod   uint32

	numBFrames   uint32
	numIFrames   uint32
	numRefFrames uint32

	bPyramid            bool
	highestPyramidLevel uint32

	refNumList0 uint32
	refNumList1 uint32

	numReorderFrames uint32

	log2MaxFrameNum    uint32
	maxFrameNum        uint32
	log2MaxPicOrderCnt uint32
	maxPicOrderCnt     uint32

	curFrameIndex uint32
	curFrameNum   uint32
	totalIdrCount uint32

	frameTypes []gopEntry
}

// log2 取值范围 [4, 16]
func log2MaxNum(num uint32) uint32 {
	var ret uint32
	for num != 0 {
		ret++
		num >>= 1
	}

	if ret < 4 {
		ret = 4
	} else if ret > 16 {
		ret = 16
	}
	return ret
}

// prepare 收敛基础参数并推导 POC 位宽。
// 不依赖 GPU 能力，会话启动前即可调用。
func (g *gopState) prepare(cfg *Config, frameRate codec.Rational, supportsBFrames bool, logger *xlog.Logger) {
	g.idrPeriod = cfg.IdrPeriod
	g.numBFrames = cfg.NumBFrames
	g.numIFrames = cfg.NumIFrames
	g.numRefFrames = cfg.NumRefFrames
	g.bPyramid = cfg.BPyramid
	g.highestPyramidLevel = 0
	g.curFrameIndex = 0
	g.curFrameNum = 0
	g.totalIdrCount = 0

	if !supportsBFrames {
		g.numBFrames = 0
		g.bPyramid = false
	}

	// 未设置时约每秒一个 IDR
	if g.idrPeriod == 0 && frameRate.Den != 0 {
		g.idrPeriod = (frameRate.Num + frameRate.Den - 1) / frameRate.Den
	}
	if g.idrPeriod == 0 {
		g.idrPeriod = 1
	}
	if g.idrPeriod > MaxIdrPeriod {
		g.idrPeriod = MaxIdrPeriod
		logger.Infof("lowering the GOP size to %d", g.idrPeriod)
	}

	if g.idrPeriod > 8 {
		if g.numBFrames > (g.idrPeriod-1)/2 {
			g.numBFrames = (g.idrPeriod - 1) / 2
			logger.Infof("lowering num_bframes to %d", g.numBFrames)
		}
	} else {
		// 首尾都要是参考
		if g.numBFrames > g.idrPeriod-1-1 {
			if g.idrPeriod > 1 {
				g.numBFrames = g.idrPeriod - 1 - 1
			} else {
				g.numBFrames = 0
			}
			logger.Infof("lowering num_bframes to %d", g.numBFrames)
		}
	}

	g.log2MaxFrameNum = log2MaxNum(g.idrPeriod)
	g.maxFrameNum = 1 << g.log2MaxFrameNum
	g.log2MaxPicOrderCnt = g.log2MaxFrameNum + 1
	g.maxPicOrderCnt = 1 << g.log2MaxPicOrderCnt
}

// generate 按 GPU 的参考能力生成完整 GOP 结构和帧类型表
func (g *gopState) generate(list0, list1 uint32, logger *xlog.Logger) {
	if list0 > g.numRefFrames {
		list0 = g.numRefFrames
	}
	if list1 > g.numRefFrames {
		list1 = g.numRefFrames
	}

	if list0 == 0 {
		logger.Info("no reference support, fallback to intra only stream")

		g.numRefFrames = 0
		g.ipPeriod = 0
		g.numBFrames = 0
		g.bPyramid = false
		g.highestPyramidLevel = 0
		g.numIFrames = g.idrPeriod - 1
		g.refNumList0 = 0
		g.refNumList1 = 0
		g.finish(logger)
		return
	}

	if g.numRefFrames <= 1 {
		logger.Infof("only %d reference frames, no B frame allowed, fallback to I/P mode",
			g.numRefFrames)
		g.numBFrames = 0
		list1 = 0
	}

	// b_pyramid 除首尾 I/P 外还需要至少一个 B 参考
	if g.bPyramid && g.numRefFrames <= 2 {
		logger.Infof("only %d reference frames, not enough for b_pyramid", g.numRefFrames)
		g.bPyramid = false
	}

	if list1 == 0 && g.numBFrames > 0 {
		logger.Info("no hw reference support for list1, fallback to I/P mode")
		g.numBFrames = 0
		g.bPyramid = false
	}

	// I/P 模式不需要 list1
	if g.numBFrames == 0 {
		list1 = 0
	}

	// B 帧太少，无需 b_pyramid
	if g.numBFrames <= 1 {
		g.bPyramid = false
	}

	// b_pyramid 只有一个后向参考
	if g.bPyramid {
		list1 = 1
	}

	if g.numRefFrames > list0+list1 {
		g.numRefFrames = list0 + list1
		logger.Infof("hw limits, lowering the number of reference frames to %d", g.numRefFrames)
	}

	// GOP 内可能的参考数
	gopRefNum := (g.idrPeriod + g.numBFrames) / (g.numBFrames + 1)
	// GOP 没有恰好结束在 P 槽位时补上末参考
	if g.numBFrames > 0 && g.idrPeriod%(g.numBFrames+1) != 1 {
		gopRefNum++
	}

	switch {
	case g.numBFrames == 0:
		g.bPyramid = false
		g.refNumList0 = g.numRefFrames
		g.refNumList1 = 0
	case g.bPyramid:
		g.refNumList1 = 1
		g.refNumList0 = g.numRefFrames - g.refNumList1

		bFrames := g.numBFrames / 2
		bRefs := uint32(0)
		for bFrames != 0 {
			// 每层至少一个 B 参考，另加首尾两个 I/P
			bRefs++
			if bRefs+2 > g.numRefFrames {
				break
			}
			g.highestPyramidLevel++
			bFrames /= 2
		}
		logger.Infof("pyramid level is %d", g.highestPyramidLevel)
	default:
		// 优先 list0，后向参考延迟更大
		g.refNumList1 = 1
		g.refNumList0 = g.numRefFrames - g.refNumList1
		for g.numBFrames*g.refNumList1 <= 16 &&
			g.refNumList1 <= gopRefNum &&
			g.refNumList1 < list1 &&
			g.refNumList0/g.refNumList1 > 4 {
			g.refNumList0--
			g.refNumList1++
		}

		if g.refNumList0 > list0 {
			g.refNumList0 = list0
		}
	}

	// 含参考图像自身
	g.ipPeriod = 1 + g.numBFrames

	pFrames := int32(gopRefNum) - 1
	if pFrames < 0 {
		pFrames = 0
	}
	if g.numIFrames > uint32(pFrames) {
		g.numIFrames = uint32(pFrames)
		logger.Infof("too many I frames insertion, lowering it to %d", g.numIFrames)
	}

	if g.numIFrames > 0 {
		totalIFrames := g.numIFrames + 1
		g.iPeriod = (gopRefNum / totalIFrames) * (g.numBFrames + 1)
	} else {
		g.iPeriod = 0
	}

	g.finish(logger)
}

func (g *gopState) finish(logger *xlog.Logger) {
	switch {
	case g.numBFrames == 0:
		g.numReorderFrames = 0
	case g.bPyramid:
		g.numReorderFrames = g.highestPyramidLevel + 1
	default:
		g.numReorderFrames = 1
	}

	g.createFrameTypes()

	if logger.LevelEnabled(xlog.InfoLevel) {
		logger.Infof("GOP size: %d, forward reference %d, backward reference %d, "+
			"GOP structure: %s", g.idrPeriod, g.refNumList0, g.refNumList1, g.structureString())
	}
}

// pyramidInfo 一段 B 帧的层级和锚点距离
type pyramidInfo struct {
	level           uint32
	leftRefPocDiff  int
	rightRefPocDiff int
}

// setPyramidInfo 给长度 length 的 B 帧串递归分层：
// 中间的 B 取当前层，左右两段在下一层继续，
// 到达最高层后剩余的平铺在最深层
func setPyramidInfo(info []pyramidInfo, currentLevel, highestLevel uint32) {
	length := len(info)
	if length == 0 {
		return
	}

	if currentLevel == highestLevel || length == 1 {
		for i := range info {
			info[i].level = currentLevel
			info[i].leftRefPocDiff = (i + 1) * -2
			info[i].rightRefPocDiff = (length - i) * 2
		}
		return
	}

	index := length / 2
	info[index].level = currentLevel
	info[index].leftRefPocDiff = (index + 1) * -2
	info[index].rightRefPocDiff = (length - index) * 2

	currentLevel++

	if index > 0 {
		setPyramidInfo(info[:index], currentLevel, highestLevel)
	}
	if index+1 < length {
		setPyramidInfo(info[index+1:], currentLevel, highestLevel)
	}
}

func (g *gopState) createFrameTypes() {
	iFrames := g.numIFrames
	var pyramid []pyramidInfo

	if g.highestPyramidLevel > 0 {
		pyramid = make([]pyramidInfo, g.numBFrames)
		setPyramidInfo(pyramid, 0, g.highestPyramidLevel)
	}

	g.frameTypes = make([]gopEntry, g.idrPeriod)
	for i := uint32(0); i < g.idrPeriod; i++ {
		if i == 0 {
			g.frameTypes[i] = gopEntry{sliceType: SliceI, isRef: true}
			continue
		}

		// 纯 I 流
		if g.ipPeriod == 0 {
			g.frameTypes[i] = gopEntry{sliceType: SliceI, isRef: false}
			continue
		}

		if i%g.ipPeriod != 0 {
			// 本段内的序号，0 是第一个 P 或 IDR 之后的 B
			pyramidIndex := i%g.ipPeriod - 1

			entry := gopEntry{sliceType: SliceB}
			if pyramid != nil {
				entry.pyramidLevel = pyramid[pyramidIndex].level
				entry.isRef = entry.pyramidLevel < g.highestPyramidLevel
				entry.leftRefPocDiff = pyramid[pyramidIndex].leftRefPocDiff
				entry.rightRefPocDiff = pyramid[pyramidIndex].rightRefPocDiff
			}
			g.frameTypes[i] = entry
			continue
		}

		if g.iPeriod != 0 && i%g.iPeriod == 0 && iFrames > 0 {
			// P 替换成 I
			g.frameTypes[i] = gopEntry{sliceType: SliceI, isRef: true}
			iFrames--
			continue
		}

		g.frameTypes[i] = gopEntry{sliceType: SliceP, isRef: true}
	}

	// 最后一帧强制为 P，干净地终止 GOP
	if g.idrPeriod > 1 && g.ipPeriod > 0 {
		g.frameTypes[g.idrPeriod-1] = gopEntry{sliceType: SliceP, isRef: true}
	}
}

func (g *gopState) structureString() string {
	s := "[ IDR"
	for i := uint32(1); i < g.idrPeriod; i++ {
		entry := &g.frameTypes[i]
		s += ", " + entry.sliceType.String()
		if g.bPyramid && entry.sliceType == SliceB {
			s += "<L" + strconv.Itoa(int(entry.pyramidLevel)) +
				" (" + strconv.Itoa(entry.leftRefPocDiff) + ", " + strconv.Itoa(entry.rightRefPocDiff) + ")>"
		}
		if entry.isRef {
			s += "(ref)"
		}
	}
	return s + " ]"
}
