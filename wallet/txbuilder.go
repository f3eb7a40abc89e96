package wallet

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/coinkeep/walletd/keychain"
)

// Coin is a single spendable output this wallet knows the private key
// for, identified by its KeyLocator rather than a live database
// handle so a TxBuilder can be driven from a plain in-memory UTXO
// snapshot.
type Coin struct {
	OutPoint wire.OutPoint
	TxOut    wire.TxOut
	KeyLoc   keychain.KeyLocator
}

// TxBuilder assembles and signs transactions spending this wallet's
// coins. Coin selection and fee application are delegated to
// txauthor.NewUnsignedTransaction; this type supplies the InputSource
// and ChangeSource callbacks that function needs, plus the signing
// step txauthor leaves to the caller.
type TxBuilder struct {
	keyRing  keychain.SecretKeyRing
	keyScope keychain.KeyScope
}

// NewTxBuilder returns a TxBuilder that derives change addresses (and
// resolves input signing keys) under the given scope.
func NewTxBuilder(keyRing keychain.SecretKeyRing, scope keychain.KeyScope) *TxBuilder {
	return &TxBuilder{keyRing: keyRing, keyScope: scope}
}

// changeSource builds the txauthor.ChangeSource the unsigned
// transaction uses if the selected inputs overshoot the requested
// outputs by more than dust. ScriptSize assumes a native segwit
// change output; a BIP49/BIP44 wallet spending its own change back to
// itself just pays a few extra bytes of fee, which isn't worth a
// second code path.
func (b *TxBuilder) changeSource() *txauthor.ChangeSource {
	return &txauthor.ChangeSource{
		NewScript: func() ([]byte, error) {
			desc, err := b.keyRing.DeriveNextChangeKey(b.keyScope)
			if err != nil {
				return nil, err
			}
			return txscript.NewScriptBuilder().
				AddOp(txscript.OP_0).
				AddData(btcutil.Hash160(desc.PubKey.SerializeCompressed())).
				Script()
		},
		ScriptSize: txsizes.P2WPKHPkScriptSize,
	}
}

// selectCoins sorts coins largest-first and returns a
// txauthor.InputSource that greedily accumulates just enough of them
// to cover whatever target txauthor asks for, matching
// uspv/sortsignsend.go's SendCoins accumulation pattern but expressed
// as the callback txauthor.NewUnsignedTransaction expects instead of
// a hand-rolled fee-then-change loop.
func selectCoins(coins []Coin) txauthor.InputSource {
	sorted := make([]Coin, len(coins))
	copy(sorted, coins)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TxOut.Value > sorted[j].TxOut.Value
	})

	return func(target btcutil.Amount) (btcutil.Amount, []*wire.TxIn,
		[]btcutil.Amount, [][]byte, error) {

		var (
			total   btcutil.Amount
			inputs  []*wire.TxIn
			values  []btcutil.Amount
			scripts [][]byte
		)
		for _, c := range sorted {
			if total >= target {
				break
			}
			total += btcutil.Amount(c.TxOut.Value)
			inputs = append(inputs, wire.NewTxIn(&c.OutPoint, nil, nil))
			values = append(values, btcutil.Amount(c.TxOut.Value))
			scripts = append(scripts, c.TxOut.PkScript)
		}
		if total < target {
			return 0, nil, nil, nil, fmt.Errorf(
				"insufficient funds: have %v, need %v", total, target)
		}
		return total, inputs, values, scripts, nil
	}
}

// Build selects coins covering outputs plus a feeRate-implied fee,
// attaches a change output if the leftover amount clears the dust
// threshold, and returns the unsigned result. Signing is a separate
// step (see Sign) so a caller assembling a multisig or PSBT-shared
// spend can inspect or pass around the unsigned transaction first.
func (b *TxBuilder) Build(outputs []*wire.TxOut, coins []Coin,
	feeRate btcutil.Amount) (*txauthor.AuthoredTx, []Coin, error) {

	authored, err := txauthor.NewUnsignedTransaction(
		outputs, feeRate, selectCoins(coins), b.changeSource(),
	)
	if err != nil {
		return nil, nil, err
	}

	used := make([]Coin, len(authored.Tx.TxIn))
	for i, txIn := range authored.Tx.TxIn {
		for _, c := range coins {
			if c.OutPoint == txIn.PreviousOutPoint {
				used[i] = c
				break
			}
		}
	}

	return authored, used, nil
}

// Sign fills in the SignatureScript/Witness of every input in an
// AuthoredTx built by Build, deriving each input's private key from
// the Coin that was selected for it. Both legacy and native/nested
// segwit inputs are handled, dispatched on the prevout script's class
// the same way a manual per-input switch in uspv/sortsignsend.go
// chose between SignatureScript and WitnessScript, but driven by the
// modern txscript signature-hash API instead of that file's retired
// one.
func (b *TxBuilder) Sign(authored *txauthor.AuthoredTx, used []Coin) error {
	tx := authored.Tx

	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(used))
	for i, txIn := range tx.TxIn {
		prevOuts[txIn.PreviousOutPoint] = &used[i].TxOut
	}
	hashCache := txscript.NewTxSigHashes(
		tx, txscript.NewMultiPrevOutFetcher(prevOuts),
	)

	for i, txIn := range tx.TxIn {
		coin := used[i]
		privKey, err := b.keyRing.DerivePrivKey(keychain.KeyDescriptor{
			KeyLocator: coin.KeyLoc,
		})
		if err != nil {
			return fmt.Errorf("deriving signing key for input %d: %w", i, err)
		}

		prevScript := coin.TxOut.PkScript
		switch {
		case txscript.IsPayToWitnessPubKeyHash(prevScript):
			sig, err := txscript.WitnessSignature(
				tx, hashCache, i, coin.TxOut.Value, prevScript,
				txscript.SigHashAll, privKey, true,
			)
			if err != nil {
				return fmt.Errorf("witness-signing input %d: %w", i, err)
			}
			txIn.Witness = sig

		case txscript.IsPayToScriptHash(prevScript):
			witnessProgram, err := txscript.NewScriptBuilder().
				AddOp(txscript.OP_0).
				AddData(btcutil.Hash160(privKey.PubKey().SerializeCompressed())).
				Script()
			if err != nil {
				return err
			}
			sig, err := txscript.WitnessSignature(
				tx, hashCache, i, coin.TxOut.Value, witnessProgram,
				txscript.SigHashAll, privKey, true,
			)
			if err != nil {
				return fmt.Errorf("nested witness-signing input %d: %w", i, err)
			}
			txIn.Witness = sig
			txIn.SignatureScript, err = txscript.NewScriptBuilder().
				AddData(witnessProgram).Script()
			if err != nil {
				return err
			}

		default:
			sigScript, err := txscript.SignatureScript(
				tx, i, prevScript, txscript.SigHashAll, privKey, true,
			)
			if err != nil {
				return fmt.Errorf("signing input %d: %w", i, err)
			}
			txIn.SignatureScript = sigScript
		}
	}

	return nil
}

// IsDust reports whether amount would be considered a dust output for
// the given pkScript at the current relay fee rate, the same check
// Build's change-output decision relies on internally via
// txauthor.NewUnsignedTransaction.
func IsDust(amount btcutil.Amount, pkScript []byte, relayFeePerKb btcutil.Amount) bool {
	return txrules.IsDustAmount(amount, len(pkScript), relayFeePerKb)
}
