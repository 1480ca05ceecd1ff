package txbuilder

import (
	"testing"

	"github.com/lwk-go/lwk/descriptor"
	"github.com/stretchr/testify/require"
)

func newTestBuilder() *Builder {
	return New(descriptor.LiquidTestnet, descriptor.LiquidTestnet.Params())
}

func TestFinishRejectsEmptyRequest(t *testing.T) {
	b := newTestBuilder()
	_, err := b.Finish(nil)
	require.Error(t, err)
}

func TestFinishRejectsZeroAmountRecipient(t *testing.T) {
	b := newTestBuilder().AddRecipient(Recipient{Address: "addr", Asset: [32]byte{1}, Satoshi: 0})
	_, err := b.Finish(nil)
	require.Error(t, err)
}

func TestFinishRejectsOversizedIssuance(t *testing.T) {
	b := newTestBuilder().Issuance(IssuanceRequest{
		SatoshiAsset: MaxIssuanceSatoshi + 1,
		AddressAsset: "addr",
	})
	_, err := b.Finish(nil)
	require.Error(t, err)
	require.IsType(t, &ErrIssuanceAmountGreaterThanBtcMax{}, err)
}

func TestFinishRejectsOversizedReissuance(t *testing.T) {
	b := newTestBuilder().Reissuance(ReissuanceRequest{
		Asset:        [32]byte{1},
		SatoshiAsset: MaxIssuanceSatoshi + 1,
		AddressAsset: "addr",
	})
	_, err := b.Finish(nil)
	require.Error(t, err)
	require.IsType(t, &ErrIssuanceAmountGreaterThanBtcMax{}, err)
}

func TestFluentMethodsReturnSameBuilder(t *testing.T) {
	b := newTestBuilder()
	got := b.AddRecipient(Recipient{Address: "a", Asset: [32]byte{1}, Satoshi: 1})
	require.Same(t, b, got)
}
