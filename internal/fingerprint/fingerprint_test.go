package fingerprint

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDeterministic(t *testing.T) {
	content := []byte("%PDF-1.4 sample document body")
	a := Compute(content)
	b := Compute(content)
	assert.Equal(t, a, b)
	assert.Len(t, a.String(), 64)
}

func TestComputeDiffersOnAnyByteChange(t *testing.T) {
	content := []byte("%PDF-1.4 sample document body")
	mutated := append([]byte{}, content...)
	mutated[len(mutated)-1]++
	assert.NotEqual(t, Compute(content), Compute(mutated))
}

func TestComputeReaderMatchesCompute(t *testing.T) {
	content := []byte("stream and slice must agree")
	got, n, err := ComputeReader(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, Compute(content), got)
}
