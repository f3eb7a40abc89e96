package keychain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

var (
	// MaxKeyRangeScan is a bound for scanning the key set for a public
	// key whose KeyLocator is unknown. No DerivePrivKey implementation in
	// this package performs such a scan or reads this value.
	MaxKeyRangeScan = 100000

	// ErrCannotDerivePrivKey is returned when a private key cannot be
	// derived. tweakPrivKey returns it when a taproot tweak overflows the
	// curve order.
	ErrCannotDerivePrivKey = fmt.Errorf("unable to derive private key")
)

// KeyScope identifies which BIP32 purpose branch a key is derived
// under. Each value is the BIP32 purpose number of the standard it
// names, so it doubles as the hardened purpose component of the
// derivation path m/purpose'/coinType'/account'/branch/index.
type KeyScope uint32

const (
	// KeyScopeMultisig derives keys used directly within multisig
	// redeem scripts rather than for a wallet account in the usual
	// sense. The value 0 is kept from the family-based scheme this
	// replaces, where family 0 meant the same thing.
	KeyScopeMultisig KeyScope = 0

	// KeyScopeBIP44 derives legacy P2PKH addresses.
	KeyScopeBIP44 KeyScope = 44

	// KeyScopeBIP49 derives P2SH-nested segwit (P2WPKH-in-P2SH)
	// addresses.
	KeyScopeBIP49 KeyScope = 49

	// KeyScopeBIP84 derives native segwit (P2WPKH) addresses. This is
	// the scope a freshly-initialized wallet derives its default
	// receive addresses from.
	KeyScopeBIP84 KeyScope = 84
)

// KnownScopes is every scope this wallet derives addresses under.
var KnownScopes = []KeyScope{
	KeyScopeMultisig,
	KeyScopeBIP44,
	KeyScopeBIP49,
	KeyScopeBIP84,
}

// DefaultScope is the scope a freshly-initialized wallet derives its
// receive and change addresses from. BIP44/49 remain available for
// watch-only imports of legacy wallets, but nothing in this wallet
// picks them automatically.
const DefaultScope = KeyScopeBIP84

// KeyLocator is a tuple that can be used to derive any key ever used
// under this wallet's derivation scheme:
//
//	m/scope'/coinType'/account'/branch/index
//
// Branch 0 is the external (receive) chain, branch 1 is internal
// (change), matching BIP44's convention across all scopes this
// package uses.
type KeyLocator struct {
	// Scope is the BIP32 purpose this key was derived under.
	Scope KeyScope

	// Account is the account index within Scope. Most callers use the
	// default account (0); a distinct account number is used to keep
	// cosigner key material segregated per multisig wallet.
	Account uint32

	// Branch is 0 for external (receive) addresses, 1 for internal
	// (change) addresses.
	Branch uint32

	// Index is the precise index of the key being identified.
	Index uint32
}

// IsEmpty returns true if a KeyLocator is "empty", i.e. has no
// information about where to derive the target key.
func (k KeyLocator) IsEmpty() bool {
	return k.Scope == 0 && k.Account == 0 && k.Branch == 0 && k.Index == 0
}

// KeyDescriptor wraps a KeyLocator and also optionally includes a public key.
// Either the KeyLocator must be non-empty, or the public key pointer be
// non-nil. This will be used by the KeyRing interface to lookup arbitrary
// private keys, and also within the SignDescriptor struct to locate precisely
// which keys should be used for signing.
type KeyDescriptor struct {
	// KeyLocator is the internal KeyLocator of the descriptor.
	KeyLocator

	// PubKey is an optional public key that fully describes a target key.
	// If this is nil, the KeyLocator MUST NOT be empty.
	PubKey *btcec.PublicKey
}

// KeyRing is the primary interface used to perform public derivation
// of the wallet's addresses and multisig cosigner keys. All
// derivation required by the KeyRing is based off of public
// derivation, so a system with only an extended public key (for the
// particular scope+account) can derive this set of keys.
type KeyRing interface {
	// DeriveNextKey attempts to derive the *next* external (receive)
	// key within the default account of the scope specified.
	DeriveNextKey(scope KeyScope) (KeyDescriptor, error)

	// DeriveNextChangeKey attempts to derive the *next* internal
	// (change) key within the default account of the scope specified.
	DeriveNextChangeKey(scope KeyScope) (KeyDescriptor, error)

	// DeriveKey attempts to derive an arbitrary key specified by the
	// passed KeyLocator. This may be used in several recovery
	// scenarios, or when manually rotating a specific key.
	DeriveKey(keyLoc KeyLocator) (KeyDescriptor, error)
}

// SecretKeyRing is a ring similar to the regular KeyRing interface, but it is
// also able to derive *private keys*. As this is a super-set of the regular
// KeyRing, we also expect the SecretKeyRing to implement the fully KeyRing
// interface. The methods in this struct may be used to sign transactions or
// to do manual signing for recovery purposes.
type SecretKeyRing interface {
	KeyRing

	ECDHRing

	MessageSignerRing

	// DerivePrivKey attempts to derive the private key that corresponds to
	// the passed key descriptor. The key is derived from the descriptor's
	// KeyLocator (scope, account, branch, index); the PubKey field is not
	// used, and no scan over the key set is made to find it.
	DerivePrivKey(keyDesc KeyDescriptor) (*btcec.PrivateKey, error)
}

// MessageSignerRing is an interface that abstracts away basic low-level ECDSA
// signing on keys within a key ring.
type MessageSignerRing interface {
	// SignMessage signs the given message, single or double SHA256 hashing
	// it first, with the private key described in the key locator.
	SignMessage(keyLoc KeyLocator, msg []byte,
		doubleHash bool) (*ecdsa.Signature, error)

	// SignMessageCompact signs the given message, single or double SHA256
	// hashing it first, with the private key described in the key locator
	// and returns the signature in the compact, public key recoverable
	// format.
	SignMessageCompact(keyLoc KeyLocator, msg []byte,
		doubleHash bool) ([]byte, error)

	// SignMessageSchnorr signs the given message, single or double SHA256
	// hashing it first, with the private key described in the key locator
	// and the optional Taproot tweak applied to the private key.
	SignMessageSchnorr(keyLoc KeyLocator, msg []byte,
		doubleHash bool, taprootTweak []byte,
		tag []byte) (*schnorr.Signature, error)
}

// SingleKeyMessageSigner is an abstraction interface that hides the
// implementation of the low-level ECDSA signing operations by wrapping a
// single, specific private key.
type SingleKeyMessageSigner interface {
	// PubKey returns the public key of the wrapped private key.
	PubKey() *btcec.PublicKey

	// KeyLocator returns the locator that describes the wrapped private
	// key.
	KeyLocator() KeyLocator

	// SignMessage signs the given message, single or double SHA256 hashing
	// it first, with the wrapped private key.
	SignMessage(message []byte, doubleHash bool) (*ecdsa.Signature, error)

	// SignMessageCompact signs the given message, single or double SHA256
	// hashing it first, with the wrapped private key and returns the
	// signature in the compact, public key recoverable format.
	SignMessageCompact(message []byte, doubleHash bool) ([]byte, error)
}

// ECDHRing is an interface that abstracts away basic low-level ECDH shared key
// generation on keys within a key ring.
type ECDHRing interface {
	// ECDH performs a scalar multiplication (ECDH-like operation) between
	// the target key descriptor and remote public key. The output
	// returned will be the sha256 of the resulting shared point serialized
	// in compressed format. If k is our private key, and P is the public
	// key, we perform the following operation:
	//
	//  sx := k*P
	//  s := sha256(sx.SerializeCompressed())
	ECDH(keyDesc KeyDescriptor, pubKey *btcec.PublicKey) ([32]byte, error)
}

// SingleKeyECDH is an abstraction interface that hides the implementation of an
// ECDH operation by wrapping a single, specific private key.
type SingleKeyECDH interface {
	// PubKey returns the public key of the wrapped private key.
	PubKey() *btcec.PublicKey

	// ECDH performs a scalar multiplication (ECDH-like operation) between
	// the wrapped private key and remote public key. The output returned
	// will be the sha256 of the resulting shared point serialized in
	// compressed format.
	ECDH(pubKey *btcec.PublicKey) ([32]byte, error)
}
