// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cnotch/vkenc/av/codec"
)

type syncSink struct {
	l      sync.Mutex
	frames []*codec.Frame
}

func (s *syncSink) WriteFrame(frame *codec.Frame) error {
	s.l.Lock()
	s.frames = append(s.frames, frame)
	s.l.Unlock()
	return nil
}

func (s *syncSink) count() int {
	s.l.Lock()
	defer s.l.Unlock()
	return len(s.frames)
}

func TestAsyncWriter(t *testing.T) {
	sink := &syncSink{}
	aw := NewAsyncWriter(sink)

	for i := 0; i < 100; i++ {
		assert.NoError(t, aw.WriteFrame(&codec.Frame{SystemFrameNumber: uint32(i)}))
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() < 100 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 100, sink.count())

	assert.NoError(t, aw.Close())
	assert.NoError(t, aw.Close())
}
