package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUTF8DecodesWin1252(t *testing.T) {
	// "Río" in WIN1252: 0xED is í
	assert.Equal(t, "Río", ToUTF8([]byte{'R', 0xED, 'o'}))
}

func TestToUTF8TrimsPadding(t *testing.T) {
	// Firebird CHAR columns are space-padded
	assert.Equal(t, "Flood", ToUTF8([]byte("Flood   ")))
}

func TestToUTF8Empty(t *testing.T) {
	assert.Equal(t, "", ToUTF8(nil))
	assert.Equal(t, "", ToUTF8([]byte{}))
}

func TestToUTF8PassesASCIIThrough(t *testing.T) {
	assert.Equal(t, "Main St bridge", ToUTF8([]byte("Main St bridge")))
}
