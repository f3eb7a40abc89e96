package p2p

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestFramingIndependentOfChunking is property P2: splitting a stream
// of N messages into arbitrary Feed-sized chunks must yield exactly
// the same sequence of decoded messages as feeding it all at once.
func TestFramingIndependentOfChunking(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		count := rapid.IntRange(1, 8).Draw(tt, "count")
		nonces := make([]uint64, count)
		var stream []byte
		for i := range nonces {
			nonces[i] = rapid.Uint64().Draw(tt, "nonce")
			raw, err := Encode(testMagic, &wire.MsgPing{Nonce: nonces[i]})
			require.NoError(tt, err)
			stream = append(stream, raw...)
		}

		chunkSizes := rapid.SliceOfN(rapid.IntRange(1, 7), 1, 40).Draw(tt, "chunks")

		f := NewFramer(testMagic, DefaultMaxPayloadLength)
		var got []uint64
		idx := 0
		for _, size := range chunkSizes {
			if idx >= len(stream) {
				break
			}
			end := idx + size
			if end > len(stream) {
				end = len(stream)
			}
			f.Feed(stream[idx:end])
			idx = end

			for {
				msg, ok, err := f.Next()
				require.NoError(tt, err)
				if !ok {
					break
				}
				got = append(got, msg.(*wire.MsgPing).Nonce)
			}
		}
		if idx < len(stream) {
			f.Feed(stream[idx:])
		}
		for {
			msg, ok, err := f.Next()
			require.NoError(tt, err)
			if !ok {
				break
			}
			got = append(got, msg.(*wire.MsgPing).Nonce)
		}

		require.Equal(tt, nonces, got)
	})
}

func TestNextReturnsFalseOnPartialMessage(t *testing.T) {
	raw, err := Encode(testMagic, &wire.MsgPing{Nonce: 99})
	require.NoError(t, err)

	f := NewFramer(testMagic, DefaultMaxPayloadLength)
	f.Feed(raw[:HeaderSize+2])

	msg, ok, err := f.Next()
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, msg)

	f.Feed(raw[HeaderSize+2:])
	msg, ok, err = f.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(99), msg.(*wire.MsgPing).Nonce)
}

func TestNextReturnsFalseOnPartialHeader(t *testing.T) {
	raw, err := Encode(testMagic, &wire.MsgPing{Nonce: 1})
	require.NoError(t, err)

	f := NewFramer(testMagic, DefaultMaxPayloadLength)
	f.Feed(raw[:HeaderSize-1])

	_, ok, err := f.Next()
	require.NoError(t, err)
	require.False(t, ok)
}
