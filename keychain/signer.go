package keychain

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// hashForSigning applies single or double SHA256 to msg, matching the
// doubleHash flag the MessageSignerRing interface exposes to callers
// signing Bitcoin-style ("double") versus single-hashed application
// messages.
func hashForSigning(msg []byte, doubleHash bool) []byte {
	if doubleHash {
		return chainhash.DoubleHashB(msg)
	}
	h := sha256.Sum256(msg)
	return h[:]
}

// SignMessage signs the given message, single or double SHA256 hashing
// it first, with the private key described in the key locator.
//
// NOTE: This is part of the keychain.MessageSignerRing interface.
func (b *BtcWalletKeyRing) SignMessage(keyLoc KeyLocator, msg []byte,
	doubleHash bool) (*ecdsa.Signature, error) {

	privKey, err := b.DerivePrivKey(KeyDescriptor{KeyLocator: keyLoc})
	if err != nil {
		return nil, err
	}

	digest := hashForSigning(msg, doubleHash)
	return ecdsa.Sign(privKey, digest), nil
}

// SignMessageCompact signs the given message, single or double SHA256
// hashing it first, with the private key described in the key locator
// and returns the signature in the compact, public key recoverable
// format.
//
// NOTE: This is part of the keychain.MessageSignerRing interface.
func (b *BtcWalletKeyRing) SignMessageCompact(keyLoc KeyLocator, msg []byte,
	doubleHash bool) ([]byte, error) {

	privKey, err := b.DerivePrivKey(KeyDescriptor{KeyLocator: keyLoc})
	if err != nil {
		return nil, err
	}

	digest := hashForSigning(msg, doubleHash)
	return ecdsa.SignCompact(privKey, digest, true), nil
}

// SignMessageSchnorr signs the given message, single or double SHA256
// hashing it first, with the private key described in the key locator
// and an optional additive tweak applied to the private key first.
// This wallet doesn't construct Taproot outputs, so tag is unused;
// it's kept in the signature to satisfy MessageSignerRing without
// narrowing the interface every other key ring backend implements.
//
// NOTE: This is part of the keychain.MessageSignerRing interface.
func (b *BtcWalletKeyRing) SignMessageSchnorr(keyLoc KeyLocator, msg []byte,
	doubleHash bool, taprootTweak []byte,
	_ []byte) (*schnorr.Signature, error) {

	privKey, err := b.DerivePrivKey(KeyDescriptor{KeyLocator: keyLoc})
	if err != nil {
		return nil, err
	}

	if len(taprootTweak) > 0 {
		privKey, err = tweakPrivKey(privKey, taprootTweak)
		if err != nil {
			return nil, err
		}
	}

	digest := hashForSigning(msg, doubleHash)
	return schnorr.Sign(privKey, digest)
}

// tweakPrivKey adds tweak to key modulo the curve order and returns
// the resulting private key.
func tweakPrivKey(key *btcec.PrivateKey, tweak []byte) (*btcec.PrivateKey, error) {
	var tweakScalar btcec.ModNScalar
	if overflow := tweakScalar.SetByteSlice(tweak); overflow {
		return nil, ErrCannotDerivePrivKey
	}

	sum := key.Key
	sum.Add(&tweakScalar)

	tweaked := sum.Bytes()
	return btcec.PrivKeyFromBytes(tweaked[:]), nil
}
