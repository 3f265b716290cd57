// Package encoding is the single msgpack entry point for record payloads,
// feed events and publish log entries.
//
// Thread Safety: Marshal and Unmarshal are safe for concurrent use.
//
// When decoding into interface{}, msgpack strings decode as Go strings (not
// []byte) so objects stored with the msgpack serializer read back with the
// same dynamic types they were written with.
package encoding

import (
	"bytes"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

type encoderPoolEntry struct {
	buf *bytes.Buffer
	enc *msgpack.Encoder
}

var encoderPool = sync.Pool{
	New: func() interface{} {
		buf := new(bytes.Buffer)
		enc := msgpack.NewEncoder(buf)
		return &encoderPoolEntry{buf: buf, enc: enc}
	},
}

// Marshal encodes a value to msgpack format using a pooled encoder.
func Marshal(v interface{}) ([]byte, error) {
	entry := encoderPool.Get().(*encoderPoolEntry)
	entry.buf.Reset()

	if err := entry.enc.Encode(v); err != nil {
		encoderPool.Put(entry)
		return nil, err
	}

	// Copy result before returning to pool
	result := make([]byte, entry.buf.Len())
	copy(result, entry.buf.Bytes())
	encoderPool.Put(entry)

	return result, nil
}

// Unmarshal decodes msgpack data using loose interface decoding.
func Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	return dec.Decode(v)
}
