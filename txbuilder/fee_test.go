package txbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimatedWitnessWeightScalesWithInputCount(t *testing.T) {
	inputs := []UTXO{{}, {}, {}}
	require.Equal(t, uint64(3*estimatedWitnessWeightPerInput), estimatedWitnessWeight(inputs))
}

func TestEstimatedWitnessWeightZeroInputs(t *testing.T) {
	require.Zero(t, estimatedWitnessWeight(nil))
}
