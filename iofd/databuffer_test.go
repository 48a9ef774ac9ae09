package iofd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataBufferWriteConsume(t *testing.T) {
	var d DataBuffer
	assert.True(t, d.Empty())

	d.Write([]byte("hello"))
	assert.Equal(t, 5, d.Len())
	assert.Equal(t, "hello", string(d.Bytes()))

	d.Consume(2)
	assert.Equal(t, "llo", string(d.Bytes()))
	assert.False(t, d.Empty())
}

func TestDataBufferCompactsPastHalfConsumed(t *testing.T) {
	var d DataBuffer
	d.Write([]byte("abcdefgh"))
	d.Consume(5) // more than half of 8 consumed -> triggers compaction
	assert.Equal(t, "fgh", string(d.Bytes()))
	d.Write([]byte("ij"))
	assert.Equal(t, "fghij", string(d.Bytes()))
}

func TestDataBufferFullConsumeEmpties(t *testing.T) {
	var d DataBuffer
	d.Write([]byte("xy"))
	d.Consume(2)
	assert.True(t, d.Empty())
	assert.Equal(t, 0, d.Len())
}
