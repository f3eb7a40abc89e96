package filter

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestLoadMessageReflectsWatchedItems(t *testing.T) {
	fs := New(wire.BloomUpdateAll)
	fs.Watch([]byte("script-a"))
	fs.Watch([]byte("script-b"))

	msg := fs.LoadMessage()
	require.Equal(t, wire.CmdFilterLoad, msg.Command())
	require.NotEmpty(t, msg.Filter)
}

func TestLoadMessageOnEmptySetStillProducesAFilter(t *testing.T) {
	fs := New(wire.BloomUpdateNone)

	msg := fs.LoadMessage()
	require.NotNil(t, msg)
	require.NotEmpty(t, msg.Filter)
}

func TestWatchOutpointAddsDistinctEntries(t *testing.T) {
	fs := New(wire.BloomUpdateAll)

	var hash [32]byte
	hash[0] = 0xAB

	fs.WatchOutpoint(wire.OutPoint{Hash: hash, Index: 0})
	fs.WatchOutpoint(wire.OutPoint{Hash: hash, Index: 1})

	require.Len(t, fs.items, 2)
	require.NotEqual(t, fs.items[0], fs.items[1])
}
