package lsm

import (
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGetDelete(t *testing.T) {
	l, err := Open("lsm", vfs.NewMem(), false)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Insert(1, []byte("one")))
	require.NoError(t, l.Insert(1, []byte("uno")))
	v, err := l.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), v)

	require.NoError(t, l.Delete(1))
	v, err = l.Get(1)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRangeOrdersNegativeKeys(t *testing.T) {
	l, err := Open("lsm", vfs.NewMem(), false)
	require.NoError(t, err)
	defer l.Close()

	for _, k := range []int64{5, -3, 0, 9, -10, 2} {
		require.NoError(t, l.Insert(k, []byte{byte(k)}))
	}

	it, err := l.Range(-5, 5)
	require.NoError(t, err)
	var keys []int64
	for it.Next() {
		keys = append(keys, it.Key())
	}
	require.NoError(t, it.Error())
	require.NoError(t, it.Close())
	assert.Equal(t, []int64{-3, 0, 2, 5}, keys)
}
