package keychain

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcwallet/waddrmgr"
	"github.com/btcsuite/btcwallet/wallet"
	"github.com/btcsuite/btcwallet/walletdb"
)

const (
	// CoinTypeBitcoin specifies the BIP44 coin type for Bitcoin key
	// derivation.
	CoinTypeBitcoin uint32 = 0

	// CoinTypeTestnet specifies the BIP44 coin type for all testnet key
	// derivation.
	CoinTypeTestnet = 1
)

// walletAddrSchema maps each scope to the address type btcwallet's
// scoped key manager should use for both its external and internal
// branches. Multisig keys are never turned into a managed wallet
// address by themselves (they only ever appear inside a redeem
// script), but the scoped key manager still needs a schema to create
// the scope's default account, so it's given the same witness schema
// as BIP84.
var walletAddrSchema = map[KeyScope]waddrmgr.ScopeAddrSchema{
	KeyScopeMultisig: {
		ExternalAddrType: waddrmgr.WitnessPubKey,
		InternalAddrType: waddrmgr.WitnessPubKey,
	},
	KeyScopeBIP44: {
		ExternalAddrType: waddrmgr.PubKeyHash,
		InternalAddrType: waddrmgr.PubKeyHash,
	},
	KeyScopeBIP49: {
		ExternalAddrType: waddrmgr.NestedWitnessPubKey,
		InternalAddrType: waddrmgr.NestedWitnessPubKey,
	},
	KeyScopeBIP84: {
		ExternalAddrType: waddrmgr.WitnessPubKey,
		InternalAddrType: waddrmgr.WitnessPubKey,
	},
}

// waddrmgrNamespaceKey is the namespace key that the waddrmgr state is
// stored within the top-level walletdb buckets of btcwallet.
var waddrmgrNamespaceKey = []byte("waddrmgr")

// BtcWalletKeyRing is an implementation of both the KeyRing and
// SecretKeyRing interfaces backed by btcwallet's internal root
// waddrmgr. Internally it uses one ScopedKeyManager per KeyScope,
// lazily fetched and cached the first time that scope is used, so
// each derived key is fully deterministic from the wallet's root
// seed.
type BtcWalletKeyRing struct {
	wallet *wallet.Wallet

	coinType uint32

	scopes map[KeyScope]*waddrmgr.ScopedKeyManager
}

// NewBtcWalletKeyRing creates a new implementation of the
// keychain.SecretKeyRing interface backed by btcwallet.
//
// NOTE: The passed wallet's waddrmgr.Manager MUST be unlocked in
// order for the keychain to function.
func NewBtcWalletKeyRing(w *wallet.Wallet, coinType uint32) SecretKeyRing {
	return &BtcWalletKeyRing{
		wallet:   w,
		coinType: coinType,
		scopes:   make(map[KeyScope]*waddrmgr.ScopedKeyManager),
	}
}

// keyScope returns the ScopedKeyManager for scope, fetching and
// caching it from the wallet's root manager if this is the first time
// scope has been used.
func (b *BtcWalletKeyRing) keyScope(scope KeyScope) (*waddrmgr.ScopedKeyManager, error) {
	if mgr, ok := b.scopes[scope]; ok {
		return mgr, nil
	}

	if b.wallet.Manager.IsLocked() {
		return nil, fmt.Errorf("cannot use BtcWalletKeyRing with " +
			"locked waddrmgr.Manager")
	}

	waScope := waddrmgr.KeyScope{
		Purpose: uint32(scope),
		Coin:    b.coinType,
	}

	mgr, err := b.wallet.Manager.FetchScopedKeyManager(waScope)
	if err != nil {
		return nil, err
	}

	b.scopes[scope] = mgr
	return mgr, nil
}

// createAccountIfNotExists will create the given account within scope
// if it doesn't already exist in the database.
func (b *BtcWalletKeyRing) createAccountIfNotExists(
	addrmgrNs walletdb.ReadWriteBucket, account uint32,
	scope *waddrmgr.ScopedKeyManager) error {

	_, err := scope.AccountName(addrmgrNs, account)
	if err == nil {
		return nil
	}

	return scope.NewRawAccount(addrmgrNs, account)
}

// DeriveNextKey attempts to derive the *next* external (receive) key
// within the default account of the scope specified.
//
// NOTE: This is part of the keychain.KeyRing interface.
func (b *BtcWalletKeyRing) DeriveNextKey(scope KeyScope) (KeyDescriptor, error) {
	var (
		pubKey *btcec.PublicKey
		keyLoc KeyLocator
	)

	db := b.wallet.Database()
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		addrmgrNs := tx.ReadWriteBucket(waddrmgrNamespaceKey)

		mgr, err := b.keyScope(scope)
		if err != nil {
			return err
		}

		const defaultAccount = 0
		if err := b.createAccountIfNotExists(addrmgrNs, defaultAccount, mgr); err != nil {
			return err
		}

		addrs, err := mgr.NextExternalAddresses(addrmgrNs, defaultAccount, 1)
		if err != nil {
			return err
		}

		addr, ok := addrs[0].(waddrmgr.ManagedPubKeyAddress)
		if !ok {
			return fmt.Errorf("address is not a managed pubkey addr")
		}

		pubKey = addr.PubKey()

		_, pathInfo, _ := addr.DerivationInfo()
		keyLoc = KeyLocator{
			Scope:   scope,
			Account: defaultAccount,
			Branch:  pathInfo.Branch,
			Index:   pathInfo.Index,
		}

		return nil
	})
	if err != nil {
		return KeyDescriptor{}, err
	}

	return KeyDescriptor{
		PubKey:     pubKey,
		KeyLocator: keyLoc,
	}, nil
}

// DeriveNextChangeKey attempts to derive the *next* internal (change)
// key within the default account of the scope specified.
//
// NOTE: This is part of the keychain.KeyRing interface.
func (b *BtcWalletKeyRing) DeriveNextChangeKey(scope KeyScope) (KeyDescriptor, error) {
	var (
		pubKey *btcec.PublicKey
		keyLoc KeyLocator
	)

	db := b.wallet.Database()
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		addrmgrNs := tx.ReadWriteBucket(waddrmgrNamespaceKey)

		mgr, err := b.keyScope(scope)
		if err != nil {
			return err
		}

		const defaultAccount = 0
		if err := b.createAccountIfNotExists(addrmgrNs, defaultAccount, mgr); err != nil {
			return err
		}

		addrs, err := mgr.NextInternalAddresses(addrmgrNs, defaultAccount, 1)
		if err != nil {
			return err
		}

		addr, ok := addrs[0].(waddrmgr.ManagedPubKeyAddress)
		if !ok {
			return fmt.Errorf("address is not a managed pubkey addr")
		}

		pubKey = addr.PubKey()

		_, pathInfo, _ := addr.DerivationInfo()
		keyLoc = KeyLocator{
			Scope:   scope,
			Account: defaultAccount,
			Branch:  pathInfo.Branch,
			Index:   pathInfo.Index,
		}

		return nil
	})
	if err != nil {
		return KeyDescriptor{}, err
	}

	return KeyDescriptor{
		PubKey:     pubKey,
		KeyLocator: keyLoc,
	}, nil
}

// DeriveKey attempts to derive an arbitrary key specified by the passed
// KeyLocator. This may be used in several recovery scenarios, or when
// manually rotating a specific key.
//
// NOTE: This is part of the keychain.KeyRing interface.
func (b *BtcWalletKeyRing) DeriveKey(keyLoc KeyLocator) (KeyDescriptor, error) {
	var keyDesc KeyDescriptor

	db := b.wallet.Database()
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		addrmgrNs := tx.ReadWriteBucket(waddrmgrNamespaceKey)

		mgr, err := b.keyScope(keyLoc.Scope)
		if err != nil {
			return err
		}

		if err := b.createAccountIfNotExists(addrmgrNs, keyLoc.Account, mgr); err != nil {
			return err
		}

		path := waddrmgr.DerivationPath{
			Account: keyLoc.Account,
			Branch:  keyLoc.Branch,
			Index:   keyLoc.Index,
		}
		addr, err := mgr.DeriveFromKeyPath(addrmgrNs, path)
		if err != nil {
			return err
		}

		keyDesc.KeyLocator = keyLoc
		keyDesc.PubKey = addr.(waddrmgr.ManagedPubKeyAddress).PubKey()

		return nil
	})
	if err != nil {
		return keyDesc, err
	}

	return keyDesc, nil
}

// DerivePrivKey attempts to derive the private key that corresponds to the
// passed key descriptor.
//
// NOTE: This is part of the keychain.SecretKeyRing interface.
func (b *BtcWalletKeyRing) DerivePrivKey(keyDesc KeyDescriptor) (*btcec.PrivateKey, error) {
	var key *btcec.PrivateKey

	db := b.wallet.Database()
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		addrmgrNs := tx.ReadWriteBucket(waddrmgrNamespaceKey)

		mgr, err := b.keyScope(keyDesc.Scope)
		if err != nil {
			return err
		}

		if err := b.createAccountIfNotExists(addrmgrNs, keyDesc.Account, mgr); err != nil {
			return err
		}

		path := waddrmgr.DerivationPath{
			Account: keyDesc.Account,
			Branch:  keyDesc.Branch,
			Index:   keyDesc.Index,
		}
		addr, err := mgr.DeriveFromKeyPath(addrmgrNs, path)
		if err != nil {
			return err
		}

		key, err = addr.(waddrmgr.ManagedPubKeyAddress).PrivKey()
		return err
	})
	if err != nil {
		return nil, err
	}

	return key, nil
}

// ECDH performs a scalar multiplication (ECDH-like operation) between
// the target key descriptor and remote public key. The output
// returned will be the sha256 of the resulting shared point
// serialized in compressed format. Implemented against btcec/v2's
// constant-time Jacobian scalar multiplication rather than the
// package-level affine ScalarMult this replaces, which operated on
// the retired v1 btcec API.
//
// NOTE: This is part of the keychain.ECDHRing interface.
func (b *BtcWalletKeyRing) ECDH(keyDesc KeyDescriptor,
	pub *btcec.PublicKey) ([32]byte, error) {

	privKey, err := b.DerivePrivKey(keyDesc)
	if err != nil {
		return [32]byte{}, err
	}

	var (
		pubJacobian btcec.JacobianPoint
		s           btcec.JacobianPoint
	)
	pub.AsJacobian(&pubJacobian)

	btcec.ScalarMultNonConst(&privKey.Key, &pubJacobian, &s)
	s.ToAffine()
	sPubKey := btcec.NewPublicKey(&s.X, &s.Y)

	return sha256.Sum256(sPubKey.SerializeCompressed()), nil
}
