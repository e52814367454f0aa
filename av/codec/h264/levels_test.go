// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectLevel(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		fpsN, fpsD uint32
		numRef     uint32
		bitrate    uint64 // bits
		wantName   string
		wantErr    bool
	}{
		{"qcif-15", 176, 144, 15, 1, 1, 0, "1", false},
		{"cif-30", 352, 288, 30, 1, 1, 0, "1.3", false},
		{"720p-30", 1280, 720, 30, 1, 1, 0, "3.1", false},
		{"1080p-30", 1920, 1080, 30, 1, 3, 0, "4", false},
		{"1080p-60", 1920, 1080, 60, 1, 3, 0, "4.2", false},
		{"4k-60", 3840, 2160, 60, 1, 3, 0, "5.2", false},
		{"8k-120", 7680, 4320, 120, 1, 1, 0, "6.2", false},
		{"too-big", 16384, 16384, 120, 1, 16, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mbW := uint32((tt.width + 15) / 16)
			mbH := uint32((tt.height + 15) / 16)
			picSizeMbs := mbW * mbH
			maxDpbMbs := picSizeMbs * (tt.numRef + 1)
			mbps := uint32((uint64(picSizeMbs)*uint64(tt.fpsN) + uint64(tt.fpsD) - 1) / uint64(tt.fpsD))

			level, err := SelectLevel(picSizeMbs, maxDpbMbs, mbps, tt.bitrate, 0, ProfileMain)
			if tt.wantErr {
				assert.Equal(t, ErrUnsupportedLevel, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantName, level.Name)
		})
	}
}

func TestSelectLevel_BitrateBound(t *testing.T) {
	// 720p30 按像素是 3.1，码率抬高后应上移级别
	picSizeMbs := uint32(80 * 45)
	mbps := picSizeMbs * 30
	maxDpbMbs := picSizeMbs * 2

	level, err := SelectLevel(picSizeMbs, maxDpbMbs, mbps,
		uint64(20000)*1000*1200, 0, ProfileMain)
	assert.NoError(t, err)
	assert.Equal(t, "3.2", level.Name)
}

func TestCpbBrNalFactor(t *testing.T) {
	assert.Equal(t, uint32(1200), CpbBrNalFactor(ProfileBaseline))
	assert.Equal(t, uint32(1200), CpbBrNalFactor(ProfileMain))
	assert.Equal(t, uint32(1500), CpbBrNalFactor(ProfileHigh))
}
