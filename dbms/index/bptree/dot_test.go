package bptree

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDOT(t *testing.T) {
	tr := openStrings(t, testConfig(t, 3))
	defer tr.Close()

	for k := int64(1); k <= 5; k++ {
		require.NoError(t, tr.Insert(k, "<v>"+val(k)))
	}
	s, err := tr.Stats()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tr.WriteDOT(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph BPlusTree {"))
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Equal(t, s.Leaves+s.InternalNodes, strings.Count(out, " [label=<<TABLE"))
	assert.Equal(t, s.Leaves-1, strings.Count(out, "style=dashed"))
	assert.Contains(t, out, "n0 [label=")
	assert.Contains(t, out, "(INTERNAL)")
	// Values are escaped and cut.
	assert.Contains(t, out, "[&lt;v&gt;..]")
	assert.NotContains(t, out, "<v>")
}

func TestWriteDOTSingleLeaf(t *testing.T) {
	tr := openStrings(t, testConfig(t, 5))
	defer tr.Close()
	require.NoError(t, tr.Insert(7, "x"))

	var buf bytes.Buffer
	require.NoError(t, tr.WriteDOT(&buf))
	assert.Contains(t, buf.String(), "NODE 0 (LEAF)")
	assert.Contains(t, buf.String(), "Next: NULL")
	assert.NotContains(t, buf.String(), "rank=same")
}

func TestWriteDOTClosed(t *testing.T) {
	tr := openStrings(t, testConfig(t, 3))
	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.WriteDOT(&bytes.Buffer{}), ErrNotInitialized)
}
