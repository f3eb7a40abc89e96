package wallet

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func randPrivKeys(t *testing.T, n int) []*btcec.PrivateKey {
	t.Helper()
	keys := make([]*btcec.PrivateKey, n)
	for i := range keys {
		key, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		keys[i] = key
	}
	return keys
}

func TestNewMultisigScriptSortsKeysDeterministically(t *testing.T) {
	privKeys := randPrivKeys(t, 3)
	pubKeys := []*btcec.PublicKey{
		privKeys[0].PubKey(), privKeys[1].PubKey(), privKeys[2].PubKey(),
	}

	a, err := NewMultisigScript(2, pubKeys)
	require.NoError(t, err)

	reversed := []*btcec.PublicKey{pubKeys[2], pubKeys[1], pubKeys[0]}
	b, err := NewMultisigScript(2, reversed)
	require.NoError(t, err)

	require.Equal(t, a.RedeemScript, b.RedeemScript)
}

func TestNewMultisigScriptRejectsThresholdAboveKeyCount(t *testing.T) {
	privKeys := randPrivKeys(t, 2)
	pubKeys := []*btcec.PublicKey{privKeys[0].PubKey(), privKeys[1].PubKey()}

	_, err := NewMultisigScript(3, pubKeys)
	require.Error(t, err)
}

func TestAssembleWitnessRequiresThreshold(t *testing.T) {
	privKeys := randPrivKeys(t, 3)
	pubKeys := []*btcec.PublicKey{
		privKeys[0].PubKey(), privKeys[1].PubKey(), privKeys[2].PubKey(),
	}
	ms, err := NewMultisigScript(2, pubKeys)
	require.NoError(t, err)

	_, err = ms.AssembleWitness([][]byte{nil, nil, nil})
	require.Error(t, err)

	_, err = ms.AssembleWitness([][]byte{{0x01}, nil, {0x02}})
	require.NoError(t, err)
}

// TestMultisigSpendVerifies builds a 2-of-3 P2WSH output, signs it with
// two of the three cosigners, and checks the assembled witness against
// the redeem script using the standard script-verification engine, the
// same sanity check uspv's own signing helpers lean on informally by
// round-tripping a real broadcast instead.
func TestMultisigSpendVerifies(t *testing.T) {
	privKeys := randPrivKeys(t, 3)
	pubKeys := []*btcec.PublicKey{
		privKeys[0].PubKey(), privKeys[1].PubKey(), privKeys[2].PubKey(),
	}

	ms, err := NewMultisigScript(2, pubKeys)
	require.NoError(t, err)

	witnessProgram, err := ms.WitnessProgram()
	require.NoError(t, err)

	const fundingValue = 100000

	fundingTx := wire.NewMsgTx(wire.TxVersion)
	fundingTx.AddTxOut(wire.NewTxOut(fundingValue, witnessProgram))

	spendTx := wire.NewMsgTx(wire.TxVersion)
	spendTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{
		Hash:  fundingTx.TxHash(),
		Index: 0,
	}, nil, nil))
	spendTx.AddTxOut(wire.NewTxOut(fundingValue-1000, witnessProgram))

	hashCache := txscript.NewTxSigHashes(spendTx, txscript.NewCannedPrevOutputFetcher(
		ms.RedeemScript, fundingValue,
	))

	var sigs [][]byte
	for _, pk := range ms.PubKeys {
		var signingKey *btcec.PrivateKey
		for _, k := range privKeys {
			if k.PubKey().IsEqual(pk) {
				signingKey = k
				break
			}
		}
		if signingKey == nil || signingKey == privKeys[2] {
			sigs = append(sigs, nil)
			continue
		}

		sig, err := txscript.RawTxInWitnessSignature(
			spendTx, hashCache, 0, fundingValue, ms.RedeemScript,
			txscript.SigHashAll, signingKey,
		)
		require.NoError(t, err)
		sigs = append(sigs, sig)
	}

	witness, err := ms.AssembleWitness(sigs)
	require.NoError(t, err)
	spendTx.TxIn[0].Witness = witness

	vm, err := txscript.NewEngine(
		witnessProgram, spendTx, 0, txscript.StandardVerifyFlags, nil,
		hashCache, fundingValue, txscript.NewCannedPrevOutputFetcher(
			witnessProgram, fundingValue,
		),
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}
