// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"time"

	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
)

// StartReporter 启动周期性的统计输出：进程占用和编码流量
func StartReporter(period time.Duration) {
	if period <= 0 {
		period = time.Minute * 5
	}

	scheduler.PeriodFunc(period, period, func() {
		proc := MeasureRuntime()
		sample := EncodeFlow.GetSample()
		xlog.Infof("stats: cpu %.1f%%, priv %dKB, uptime %ds, "+
			"encode in %d frames/%dKB, out %d frames/%dKB",
			proc.CPU, proc.Priv, proc.Uptime,
			sample.InFrames, sample.InBytes/1024,
			sample.OutFrames, sample.OutBytes/1024)
	}, "The task of periodic output of encoder statistics")
}
