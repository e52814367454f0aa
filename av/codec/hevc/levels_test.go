// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectLevel(t *testing.T) {
	tests := []struct {
		name       string
		width      uint32
		height     uint32
		fpsN, fpsD uint32
		bitrate    uint32 // kbit/s
		wantName   string
		wantTier   bool
		wantErr    bool
	}{
		{"qcif-15", 176, 144, 15, 1, 0, "1", false, false},
		{"720p-30", 1280, 720, 30, 1, 0, "3.1", false, false},
		{"1080p-30", 1920, 1080, 30, 1, 0, "4", false, false},
		{"1080p-60", 1920, 1080, 60, 1, 0, "4.1", false, false},
		{"1080p-60-high-tier", 1920, 1080, 60, 1, 30000, "4.1", true, false},
		{"4k-60", 3840, 2160, 60, 1, 0, "5.1", false, false},
		{"8k-120", 7680, 4320, 120, 1, 0, "6.2", false, false},
		{"too-big", 16384, 16384, 120, 1, 0, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			picSize := tt.width * tt.height
			lumaSr := uint32((uint64(picSize)*uint64(tt.fpsN) + uint64(tt.fpsD) - 1) / uint64(tt.fpsD))

			level, highTier, err := SelectLevel(picSize, lumaSr, tt.bitrate)
			if tt.wantErr {
				assert.Equal(t, ErrUnsupportedLevel, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantName, level.Name)
			assert.Equal(t, tt.wantTier, highTier)
		})
	}
}

func TestLevelTierMaxBitrate(t *testing.T) {
	level, highTier, err := SelectLevel(1920*1080, 1920*1080*30, 0)
	assert.NoError(t, err)
	assert.False(t, highTier)
	assert.Equal(t, uint32(12000), level.TierMaxBitrate(false))
	assert.Equal(t, uint32(30000), level.TierMaxBitrate(true))
}
