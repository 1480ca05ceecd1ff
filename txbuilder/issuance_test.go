package txbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssetAndTokenTagsDifferForSameEntropy(t *testing.T) {
	var entropy [32]byte
	for i := range entropy {
		entropy[i] = byte(i)
	}
	require.NotEqual(t, assetTagFromEntropy(entropy), tokenTagFromEntropy(entropy))
}

func TestEntropyFromPrevoutIsDeterministic(t *testing.T) {
	var txid [32]byte
	txid[0] = 0xaa
	a := entropyFromPrevout(txid, 3, nil)
	b := entropyFromPrevout(txid, 3, nil)
	require.Equal(t, a, b)

	c := entropyFromPrevout(txid, 4, nil)
	require.NotEqual(t, a, c)
}

func TestEntropyFromPrevoutDiffersWithContract(t *testing.T) {
	var txid [32]byte
	txid[0] = 0xbb
	withoutContract := entropyFromPrevout(txid, 0, nil)
	withContract := entropyFromPrevout(txid, 0, []byte{1, 2, 3, 4})
	require.NotEqual(t, withoutContract, withContract)
}

func TestAppendCompactSizeEncodesLengths(t *testing.T) {
	cases := []struct {
		n    uint64
		want int
	}{
		{0, 1},
		{252, 1},
		{253, 3},
		{65535, 3},
		{65536, 5},
	}
	for _, c := range cases {
		require.Len(t, appendCompactSize(nil, c.n), c.want, "n=%d", c.n)
	}
}
