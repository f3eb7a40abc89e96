package wallet

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/coinkeep/walletd/keychain"
	"github.com/stretchr/testify/require"
)

var byteOrder = binary.BigEndian

// fakeKeyRing is a deterministic, in-memory keychain.SecretKeyRing for
// exercising TxBuilder without a real btcwallet waddrmgr database
// behind it: every KeyLocator maps to a private key derived by
// hashing its fields, so the same locator always yields the same key
// within a single test run and across fakeKeyRing instances.
type fakeKeyRing struct {
	nextChangeIndex uint32
}

func locatorKey(loc keychain.KeyLocator) *btcec.PrivateKey {
	var buf [16]byte
	byteOrder.PutUint32(buf[0:4], uint32(loc.Scope))
	byteOrder.PutUint32(buf[4:8], loc.Account)
	byteOrder.PutUint32(buf[8:12], loc.Branch)
	byteOrder.PutUint32(buf[12:16], loc.Index)

	h := sha256.Sum256(buf[:])
	return btcec.PrivKeyFromBytes(h[:])
}

func (f *fakeKeyRing) DeriveNextKey(scope keychain.KeyScope) (keychain.KeyDescriptor, error) {
	loc := keychain.KeyLocator{Scope: scope, Branch: 0, Index: 0}
	return keychain.KeyDescriptor{KeyLocator: loc, PubKey: locatorKey(loc).PubKey()}, nil
}

func (f *fakeKeyRing) DeriveNextChangeKey(scope keychain.KeyScope) (keychain.KeyDescriptor, error) {
	loc := keychain.KeyLocator{Scope: scope, Branch: 1, Index: f.nextChangeIndex}
	f.nextChangeIndex++
	return keychain.KeyDescriptor{KeyLocator: loc, PubKey: locatorKey(loc).PubKey()}, nil
}

func (f *fakeKeyRing) DeriveKey(loc keychain.KeyLocator) (keychain.KeyDescriptor, error) {
	return keychain.KeyDescriptor{KeyLocator: loc, PubKey: locatorKey(loc).PubKey()}, nil
}

func (f *fakeKeyRing) DerivePrivKey(desc keychain.KeyDescriptor) (*btcec.PrivateKey, error) {
	return locatorKey(desc.KeyLocator), nil
}

func (f *fakeKeyRing) ECDH(desc keychain.KeyDescriptor, pub *btcec.PublicKey) ([32]byte, error) {
	return [32]byte{}, nil
}

func (f *fakeKeyRing) SignMessage(loc keychain.KeyLocator, msg []byte, doubleHash bool) (*ecdsa.Signature, error) {
	return ecdsa.Sign(locatorKey(loc), msg), nil
}

func (f *fakeKeyRing) SignMessageCompact(loc keychain.KeyLocator, msg []byte, doubleHash bool) ([]byte, error) {
	return ecdsa.SignCompact(locatorKey(loc), msg, true), nil
}

func (f *fakeKeyRing) SignMessageSchnorr(loc keychain.KeyLocator, msg []byte,
	doubleHash bool, taprootTweak []byte, tag []byte) (*schnorr.Signature, error) {

	return schnorr.Sign(locatorKey(loc), msg)
}

func p2wpkhScript(t *testing.T, key *btcec.PrivateKey) []byte {
	t.Helper()
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(key.PubKey().SerializeCompressed())).
		Script()
	require.NoError(t, err)
	return script
}

func TestTxBuilderBuildAndSignSpendsP2WPKHCoin(t *testing.T) {
	kr := &fakeKeyRing{}
	coinLoc := keychain.KeyLocator{Scope: keychain.KeyScopeBIP84, Branch: 0, Index: 0}
	coinKey := locatorKey(coinLoc)

	const coinValue = 100000

	coin := Coin{
		OutPoint: wire.OutPoint{Index: 0},
		TxOut: wire.TxOut{
			Value:    coinValue,
			PkScript: p2wpkhScript(t, coinKey),
		},
		KeyLoc: coinLoc,
	}

	destScript := p2wpkhScript(t, locatorKey(
		keychain.KeyLocator{Scope: keychain.KeyScopeBIP84, Index: 1},
	))
	outputs := []*wire.TxOut{wire.NewTxOut(50000, destScript)}

	builder := NewTxBuilder(kr, keychain.KeyScopeBIP84)
	authored, used, err := builder.Build(outputs, []Coin{coin}, 1000)
	require.NoError(t, err)
	require.Len(t, authored.Tx.TxIn, 1)

	require.NoError(t, builder.Sign(authored, used))

	require.NotEmpty(t, authored.Tx.TxIn[0].Witness)

	hashCache := txscript.NewTxSigHashes(authored.Tx, txscript.NewCannedPrevOutputFetcher(
		coin.TxOut.PkScript, coinValue,
	))
	vm, err := txscript.NewEngine(
		coin.TxOut.PkScript, authored.Tx, 0, txscript.StandardVerifyFlags,
		nil, hashCache, coinValue, txscript.NewCannedPrevOutputFetcher(
			coin.TxOut.PkScript, coinValue,
		),
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

func TestIsDustFlagsTinyOutput(t *testing.T) {
	script := p2wpkhScript(t, locatorKey(keychain.KeyLocator{}))
	require.True(t, IsDust(1, script, 1000))
	require.False(t, IsDust(50000, script, 1000))
}
