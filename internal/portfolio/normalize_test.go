package portfolio

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"Wonderland/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func targets(pcts map[string]float64, order ...string) []models.TargetAllocation {
	out := make([]models.TargetAllocation, 0, len(order))
	for _, ct := range order {
		out = append(out, models.TargetAllocation{CoinType: ct, CoinSymbol: ct, TargetPercentage: pcts[ct]})
	}
	return out
}

func TestNormalizeLeavesExactTargetsUntouched(t *testing.T) {
	in := targets(map[string]float64{"A": 33, "B": 33, "C": 34}, "A", "B", "C")
	out, err := Normalize(in, 5)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNormalizeSumsToHundredInQuantumSteps(t *testing.T) {
	cases := []map[string]float64{
		{"A": 10, "B": 10, "C": 10},
		{"A": 70, "B": 20, "C": 30},
		{"A": 1, "B": 2, "C": 3},
		{"A": 12.5, "B": 40, "C": 80},
		{"A": 0, "B": 45, "C": 45},
	}
	for _, pcts := range cases {
		out, err := Normalize(targets(pcts, "A", "B", "C"), 5)
		require.NoError(t, err, "input %v", pcts)

		var sum float64
		for _, o := range out {
			sum += o.TargetPercentage
			assert.InDelta(t, 0, math.Mod(o.TargetPercentage+1e-9, 5), 1e-6, "%v not a multiple of 5", o.TargetPercentage)
		}
		assert.InDelta(t, 100, sum, 1e-9, "input %v", pcts)
	}
}

func TestNormalizeResidualGoesToLastEntry(t *testing.T) {
	// 33.3 each rounds to 35, leaving -5 for the last entry.
	out, err := Normalize(targets(map[string]float64{"A": 1, "B": 1, "C": 1}, "A", "B", "C"), 5)
	require.NoError(t, err)
	assert.Equal(t, 35.0, out[0].TargetPercentage)
	assert.Equal(t, 35.0, out[1].TargetPercentage)
	assert.Equal(t, 30.0, out[2].TargetPercentage)
}

func TestNormalizeNegativeResidualSpillsBackwards(t *testing.T) {
	// 30/30/30/0 rescales to 35/35/35/0; the last entry cannot give up 5.
	out, err := Normalize(targets(map[string]float64{"A": 30, "B": 30, "C": 30, "USDC": 0}, "A", "B", "C", "USDC"), 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{35, 35, 30, 0}, weightsOf(out))

	order := make([]string, 13)
	pcts := make(map[string]float64, 13)
	for i := range order {
		order[i] = fmt.Sprintf("T%02d", i)
		pcts[order[i]] = 1
	}
	out, err = Normalize(targets(pcts, order...), 5)
	require.NoError(t, err)
	got := weightsOf(out)
	assert.Equal(t, []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 0, 0, 0}, got)
}

func TestNormalizeAlwaysProducesValidWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 5000; n++ {
		size := 2 + rng.Intn(12)
		order := make([]string, size)
		pcts := make(map[string]float64, size)
		for i := range order {
			order[i] = fmt.Sprintf("T%d", i)
			if rng.Intn(4) > 0 {
				pcts[order[i]] = float64(rng.Intn(100))
			}
		}
		pcts[order[0]]++

		out, err := Normalize(targets(pcts, order...), 5)
		require.NoError(t, err, "input %v", pcts)
		var sum float64
		for _, o := range out {
			assert.GreaterOrEqual(t, o.TargetPercentage, 0.0, "input %v", pcts)
			sum += o.TargetPercentage
		}
		require.InDelta(t, 100, sum, 1e-9, "input %v", pcts)
	}
}

func weightsOf(out []models.TargetAllocation) []float64 {
	w := make([]float64, len(out))
	for i, o := range out {
		w[i] = o.TargetPercentage
	}
	return w
}

func TestNormalizeRejectsUnusableWeights(t *testing.T) {
	_, err := Normalize(targets(map[string]float64{"A": 0, "B": 0}, "A", "B"), 5)
	assert.True(t, errors.Is(err, ErrInvalidTarget))

	_, err = Normalize(targets(map[string]float64{"A": -10, "B": 50}, "A", "B"), 5)
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestCheckCompleteness(t *testing.T) {
	holdings := []models.TokenHolding{{CoinType: "A"}, {CoinType: "B"}}

	assert.NoError(t, CheckCompleteness(holdings, targets(map[string]float64{"A": 50, "B": 50}, "B", "A")))

	err := CheckCompleteness(holdings, targets(map[string]float64{"A": 100}, "A"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncomplete))
	assert.Contains(t, err.Error(), "missing target for B")

	err = CheckCompleteness(holdings, targets(map[string]float64{"A": 40, "B": 40, "C": 20}, "A", "B", "C"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no holding for C")
}
