package txbuilder

import (
	"testing"

	"github.com/lwk-go/lwk/store"
	"github.com/lwk-go/lwk/unblind"
	"github.com/stretchr/testify/require"
)

func utxo(txidByte byte, vout uint32, asset [32]byte, value uint64) UTXO {
	return UTXO{
		OutPoint: store.OutPoint{Txid: [32]byte{txidByte}, Vout: vout},
		Secrets:  unblind.TxOutSecrets{Asset: asset, Value: value},
	}
}

func TestSelectGreedyStopsAtFirstCover(t *testing.T) {
	asset := [32]byte{1}
	utxos := []UTXO{
		utxo(1, 0, asset, 10_000),
		utxo(2, 0, asset, 70_000),
		utxo(3, 0, asset, 30_000),
	}

	got, total, err := selectGreedy(utxos, asset, 50_000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, uint64(70_000), got[0].Secrets.Value)
	require.Equal(t, uint64(70_000), total)
}

func TestSelectGreedyCombinesWhenNoSingleUtxoCovers(t *testing.T) {
	asset := [32]byte{1}
	utxos := []UTXO{
		utxo(1, 0, asset, 10_000),
		utxo(2, 0, asset, 20_000),
		utxo(3, 0, asset, 5_000),
	}

	got, total, err := selectGreedy(utxos, asset, 25_000)
	require.NoError(t, err)
	require.Equal(t, uint64(30_000), total)
	require.Len(t, got, 2)
}

func TestSelectGreedyInsufficientFunds(t *testing.T) {
	asset := [32]byte{1}
	utxos := []UTXO{utxo(1, 0, asset, 1_000)}

	_, _, err := selectGreedy(utxos, asset, 5_000)
	require.Error(t, err)

	insufficient, ok := err.(*ErrInsufficientFunds)
	require.True(t, ok, "expected *ErrInsufficientFunds, got %T", err)
	require.Equal(t, uint64(4_000), insufficient.MissingSat)
}

func TestSelectGreedyIgnoresOtherAssets(t *testing.T) {
	asset := [32]byte{1}
	other := [32]byte{2}
	utxos := []UTXO{
		utxo(1, 0, other, 1_000_000),
		utxo(2, 0, asset, 500),
	}

	got, total, err := selectGreedy(utxos, asset, 500)
	require.NoError(t, err)
	require.Equal(t, uint64(500), total)
	require.Len(t, got, 1)
}

func TestFilterAssetAndSumAsset(t *testing.T) {
	asset := [32]byte{1}
	other := [32]byte{2}
	utxos := []UTXO{
		utxo(1, 0, asset, 100),
		utxo(2, 0, other, 200),
		utxo(3, 0, asset, 300),
	}

	require.Len(t, filterAsset(utxos, asset), 2)
	require.Equal(t, uint64(400), sumAsset(utxos, asset))
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	asset := [32]byte{1}
	a := utxo(1, 0, asset, 100)
	b := utxo(1, 0, asset, 999) // same outpoint, different (impossible) value
	c := utxo(2, 0, asset, 200)

	out := dedupe([]UTXO{a, b, c})
	require.Len(t, out, 2)
	require.Equal(t, uint64(100), out[0].Secrets.Value)
}
