package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"Wonderland/internal/domain/models"
	"Wonderland/pkg/util"
)

var (
	// ErrIncomplete is returned when the target and the holdings do not
	// name the same set of assets.
	ErrIncomplete = errors.New("portfolio: target does not match holdings")
	// ErrInvalidTarget is returned for targets that cannot be normalized.
	ErrInvalidTarget = errors.New("portfolio: invalid target weights")
)

const sumTolerance = 1e-9

// CheckCompleteness verifies both directions: every held asset has a
// target and every target names a held asset.
func CheckCompleteness(holdings []models.TokenHolding, target []models.TargetAllocation) error {
	held := make(map[string]struct{}, len(holdings))
	for _, h := range holdings {
		held[h.CoinType] = struct{}{}
	}
	wanted := make(map[string]struct{}, len(target))
	for _, t := range target {
		wanted[t.CoinType] = struct{}{}
	}

	var missing, extra []string
	for ct := range held {
		if _, ok := wanted[ct]; !ok {
			missing = append(missing, ct)
		}
	}
	for ct := range wanted {
		if _, ok := held[ct]; !ok {
			extra = append(extra, ct)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing target for "+strings.Join(missing, ","))
	}
	if len(extra) > 0 {
		parts = append(parts, "no holding for "+strings.Join(extra, ","))
	}
	return fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(parts, "; "))
}

// Normalize rescales target weights so they sum to 100 with every weight a
// multiple of quantum. Targets that already sum to 100 are returned as-is.
// The rounding residual is added to the last entry. A negative residual the
// last entry cannot absorb without dropping below zero spills onto the
// entries before it, walking backwards.
func Normalize(target []models.TargetAllocation, quantum float64) ([]models.TargetAllocation, error) {
	out := make([]models.TargetAllocation, len(target))
	copy(out, target)
	if len(out) == 0 {
		return out, nil
	}

	var sum float64
	for _, t := range out {
		if t.TargetPercentage < 0 || math.IsNaN(t.TargetPercentage) {
			return nil, fmt.Errorf("%w: %s weight %v", ErrInvalidTarget, t.CoinType, t.TargetPercentage)
		}
		sum += t.TargetPercentage
	}
	if math.Abs(sum-100) < sumTolerance {
		return out, nil
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidTarget)
	}
	if quantum <= 0 {
		quantum = 5
	}

	var rounded float64
	for i := range out {
		scaled := out[i].TargetPercentage / sum * 100
		out[i].TargetPercentage = util.RoundToStep(scaled, quantum)
		rounded += out[i].TargetPercentage
	}
	residual := 100 - rounded
	if residual >= 0 {
		out[len(out)-1].TargetPercentage += residual
		return out, nil
	}
	for i := len(out) - 1; i >= 0 && residual < -sumTolerance; i-- {
		take := math.Min(out[i].TargetPercentage, -residual)
		out[i].TargetPercentage -= take
		residual += take
	}
	return out, nil
}
