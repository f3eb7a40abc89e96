package p2p

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const testMagic = wire.TestNet3

// TestEncodeDecodeRoundTrip is property P1 for Ping messages: encode
// followed by decode reproduces the original nonce for any value.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		nonce := rapid.Uint64().Draw(tt, "nonce")
		msg := &wire.MsgPing{Nonce: nonce}

		raw, err := Encode(testMagic, msg)
		require.NoError(tt, err)

		f := NewFramer(testMagic, DefaultMaxPayloadLength)
		f.Feed(raw)
		decoded, ok, err := f.Next()
		require.NoError(tt, err)
		require.True(tt, ok)

		got, ok := decoded.(*wire.MsgPing)
		require.True(tt, ok)
		require.Equal(tt, nonce, got.Nonce)
	})
}

func TestEncodeDecodeOther(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Uint8(), 0, 64).Draw(tt, "payload")
		msg := &Other{Kind: "mempool", Payload: payload}

		raw, err := Encode(testMagic, msg)
		require.NoError(tt, err)

		f := NewFramer(testMagic, DefaultMaxPayloadLength)
		f.Feed(raw)
		decoded, ok, err := f.Next()
		require.NoError(tt, err)
		require.True(tt, ok)

		got, ok := decoded.(*Other)
		require.True(tt, ok)
		require.Equal(tt, "mempool", got.Kind)
		require.Equal(tt, payload, got.Payload)
	})
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	msg := &wire.MsgPing{Nonce: 42}
	raw, err := Encode(testMagic, msg)
	require.NoError(t, err)

	// Corrupt a payload byte without touching the checksum.
	raw[HeaderSize] ^= 0xff

	f := NewFramer(testMagic, DefaultMaxPayloadLength)
	f.Feed(raw)
	_, _, err = f.Next()
	require.Error(t, err)

	var framingErr *FramingError
	require.ErrorAs(t, err, &framingErr)
}

func TestDecodeRejectsWrongMagic(t *testing.T) {
	msg := &wire.MsgPing{Nonce: 7}
	raw, err := Encode(wire.MainNet, msg)
	require.NoError(t, err)

	f := NewFramer(testMagic, DefaultMaxPayloadLength)
	f.Feed(raw)
	_, _, err = f.Next()
	require.Error(t, err)

	var frameErr *FramingError
	require.ErrorAs(t, err, &frameErr)
}

func TestDecodeRejectsOversizedLength(t *testing.T) {
	msg := &Other{Kind: "tx", Payload: make([]byte, 64)}
	raw, err := Encode(testMagic, msg)
	require.NoError(t, err)

	f := NewFramer(testMagic, 32)
	f.Feed(raw)
	_, _, err = f.Next()
	require.Error(t, err)

	var frameErr *FramingError
	require.ErrorAs(t, err, &frameErr)
}
