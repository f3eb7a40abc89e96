package wallet

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/coinkeep/walletd/keychain"
)

// MultisigScript is a bare M-of-N redeem script together with the
// sorted public keys that make it up. Cosigner keys are sorted by
// serialized pubkey (BIP67) so independently constructed wallets
// given the same key set always agree on the resulting script,
// whatever order their cosigners were configured in locally.
type MultisigScript struct {
	M            int
	PubKeys      []*btcec.PublicKey
	RedeemScript []byte
}

// NewMultisigScript builds the bare M-of-N redeem script for pubKeys,
// sorted per BIP67. Grounded on the teacher's signing helpers in
// uspv/sortsignsend.go generalized from a single-key spend to an
// arbitrary cosigner set: it applies the BIP67 ordering the teacher
// never needed, then hands the sorted keys to multiSigScript for the
// OP_m <keys...> OP_n OP_CHECKMULTISIG assembly.
func NewMultisigScript(m int, pubKeys []*btcec.PublicKey) (*MultisigScript, error) {
	if m <= 0 || m > len(pubKeys) {
		return nil, fmt.Errorf("invalid threshold %d of %d keys", m, len(pubKeys))
	}

	sorted := make([]*btcec.PublicKey, len(pubKeys))
	copy(sorted, pubKeys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(
			sorted[i].SerializeCompressed(),
			sorted[j].SerializeCompressed(),
		) < 0
	})

	script, err := multiSigScript(m, sorted)
	if err != nil {
		return nil, err
	}

	return &MultisigScript{M: m, PubKeys: sorted, RedeemScript: script}, nil
}

// multiSigScript builds the OP_m <keys> OP_n OP_CHECKMULTISIG script
// by hand rather than through txscript.MultiSigScript, which takes
// btcutil.AddressPubKey values tied to a *chaincfg.Params; a
// multisig cosigner set has no single address/network of its own
// until it's wrapped in P2SH/P2WSH, so building the script straight
// from raw serialized pubkeys avoids threading a throwaway params
// value through just to satisfy that constructor.
func multiSigScript(m int, pubKeys []*btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(m))
	for _, pk := range pubKeys {
		builder.AddData(pk.SerializeCompressed())
	}
	builder.AddInt64(int64(len(pubKeys)))
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	return builder.Script()
}

// WitnessProgram returns the scriptPubKey for the native segwit
// (P2WSH) address of this multisig redeem script: OP_0
// <sha256(redeemScript)>.
func (s *MultisigScript) WitnessProgram() ([]byte, error) {
	h := sha256.Sum256(s.RedeemScript)
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[:]).
		Script()
}

// P2SHScript returns the scriptPubKey that pays to the P2SH hash of
// the redeem script, for wallets that need legacy nested multisig
// rather than native P2WSH.
func (s *MultisigScript) P2SHScript() ([]byte, error) {
	h := btcutil.Hash160(s.RedeemScript)
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(h).
		AddOp(txscript.OP_EQUAL).
		Script()
}

// SignMultisigInput produces this cosigner's partial witness
// signature for a single P2WSH multisig input. The caller is
// responsible for collecting every cosigner's signature and ordering
// them per the redeem script's pubkey order before assembling the
// final witness (see AssembleWitness).
func SignMultisigInput(keyRing keychain.SecretKeyRing, keyLoc keychain.KeyLocator,
	tx *wire.MsgTx, idx int, amt int64, redeemScript []byte) ([]byte, error) {

	privKey, err := keyRing.DerivePrivKey(keychain.KeyDescriptor{KeyLocator: keyLoc})
	if err != nil {
		return nil, err
	}

	hashCache := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(
		redeemScript, amt,
	))
	return txscript.RawTxInWitnessSignature(
		tx, hashCache, idx, amt, redeemScript, txscript.SigHashAll, privKey,
	)
}

// AssembleWitness builds the final witness stack for a P2WSH
// multisig input given the cosigner signatures collected so far.
// sigs must already be ordered to match s.PubKeys; a nil entry marks
// a cosigner that hasn't signed yet and is skipped, matching
// CHECKMULTISIG's tolerance for providing fewer signatures than
// there are keys as long as at least M are present.
//
// The leading empty element works around the famous CHECKMULTISIG
// off-by-one bug, which pops one extra stack item it never uses.
func (s *MultisigScript) AssembleWitness(sigs [][]byte) (wire.TxWitness, error) {
	present := 0
	for _, sig := range sigs {
		if sig != nil {
			present++
		}
	}
	if present < s.M {
		return nil, fmt.Errorf(
			"have %d of %d required signatures", present, s.M)
	}

	witness := make(wire.TxWitness, 0, len(sigs)+2)
	witness = append(witness, nil)
	for _, sig := range sigs {
		if sig == nil {
			continue
		}
		witness = append(witness, sig)
	}
	witness = append(witness, s.RedeemScript)
	return witness, nil
}

// ExportPSBT wraps an unsigned multisig spend into a PSBT so it can
// be handed off to cosigners who hold the remaining keys, each adding
// their own partial signature via a compatible PSBT-aware signer
// before the packet is finalized and broadcast.
func ExportPSBT(tx *wire.MsgTx, redeemScripts [][]byte,
	prevOuts []*wire.TxOut) (*psbt.Packet, error) {

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	for i := range packet.Inputs {
		packet.Inputs[i].WitnessUtxo = prevOuts[i]
		packet.Inputs[i].WitnessScript = redeemScripts[i]
	}

	return packet, nil
}
