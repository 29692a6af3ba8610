// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encode

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// maxPooledBuffer is the largest buffer capacity returned to bufferPool. Larger buffers are left to
// the garbage collector so one oversized batch doesn't pin memory.
const maxPooledBuffer = 1 << 20

var (
	bufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 64*1024))
		},
	}

	gzipPool = sync.Pool{
		New: func() any {
			return gzip.NewWriter(nil)
		},
	}
)

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= maxPooledBuffer {
		buf.Reset()
		bufferPool.Put(buf)
	}
}

func getGzipWriter(buf *bytes.Buffer) *gzip.Writer {
	gz := gzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)
	return gz
}
