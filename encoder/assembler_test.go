// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cnotch/vkenc/vulkan"
)

type memBuffer struct{ data []byte }

func (b *memBuffer) Bytes() []byte { return b.data }
func (b *memBuffer) Size() uint64  { return uint64(len(b.data)) }
func (b *memBuffer) Destroy()      {}

func TestAssembleOutput(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}

	pic := &vulkan.EncodePicture{
		OutBuffer: &memBuffer{data: data},
		Feedback:  vulkan.EncodeFeedback{Offset: 16, Size: 8},
	}
	pic.AddPackedHeader([]byte{0xaa, 0xbb})
	pic.AddPackedHeader([]byte{0xcc})

	out := assembleOutput(pic)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 16, 17, 18, 19, 20, 21, 22, 23}, out)
}

func TestAssembleOutputClamp(t *testing.T) {
	pic := &vulkan.EncodePicture{
		OutBuffer: &memBuffer{data: make([]byte, 8)},
		Feedback:  vulkan.EncodeFeedback{Offset: 4, Size: 100},
	}
	out := assembleOutput(pic)
	assert.Len(t, out, 4)
}

func TestAssembleOutputNil(t *testing.T) {
	assert.Nil(t, assembleOutput(nil))
	assert.Nil(t, assembleOutput(&vulkan.EncodePicture{}))
}

func TestAudPrimaryPicType(t *testing.T) {
	assert.Equal(t, uint8(0), audPrimaryPicType(SliceI))
	assert.Equal(t, uint8(1), audPrimaryPicType(SliceP))
	assert.Equal(t, uint8(2), audPrimaryPicType(SliceB))
}

func TestBuildCCUserData(t *testing.T) {
	cc := []byte{0xfc, 0x94, 0x2c}
	data := buildCCUserData(cc)

	assert.Len(t, data, 13)
	assert.Equal(t, byte(0), data[0])
	assert.Equal(t, byte(49), data[1])
	assert.Equal(t, "GA94", string(data[2:6]))
	assert.Equal(t, byte(3), data[6])
	assert.Equal(t, byte(1|0x40), data[7])
	assert.Equal(t, byte(255), data[8])
	assert.Equal(t, cc, data[9:12])
	assert.Equal(t, byte(255), data[12])
}
