package amendment

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/contract-cli/internal/model"
)

const percentEpsilon = 1e-6

// Reconcile reports a Conflict for every amendment whose original value is
// still present in the baseline while its revised value is not. Only tier
// rate and date changes are compared; payment term changes have no baseline
// counterpart and never conflict.
func Reconcile(amendments []model.Amendment, baseline model.Baseline) []model.Conflict {
	conflicts := []model.Conflict{}
	for _, a := range amendments {
		switch a.AmendmentType {
		case model.AmendmentTierRateChange:
			if c, ok := reconcileTier(a, baseline); ok {
				conflicts = append(conflicts, c)
			}
		case model.AmendmentDateChange:
			if c, ok := reconcileDate(a, baseline); ok {
				conflicts = append(conflicts, c)
			}
		}
	}
	return conflicts
}

func reconcileTier(a model.Amendment, baseline model.Baseline) (model.Conflict, bool) {
	orig, ok1 := asFloat(a.OriginalValue)
	rev, ok2 := asFloat(a.RevisedValue)
	if !ok1 || !ok2 {
		return model.Conflict{}, false
	}
	var hasOrig, hasRev bool
	for _, p := range baseline.TierPercentages() {
		if math.Abs(p-orig) < percentEpsilon {
			hasOrig = true
		}
		if math.Abs(p-rev) < percentEpsilon {
			hasRev = true
		}
	}
	if !hasOrig || hasRev {
		return model.Conflict{}, false
	}
	return model.Conflict{
		Amendment: a,
		ConflictDescription: fmt.Sprintf(
			"Baseline rebate tiers still show %s%% (%s), but amendment %d revised it to %s%%",
			formatNumber(orig), a.AffectedField, a.AmendmentNumber, formatNumber(rev)),
	}, true
}

func reconcileDate(a model.Amendment, baseline model.Baseline) (model.Conflict, bool) {
	orig, ok1 := a.OriginalValue.(string)
	rev, ok2 := a.RevisedValue.(string)
	if !ok1 || !ok2 || orig == "" {
		return model.Conflict{}, false
	}
	orig, rev = NormalizeDate(orig), NormalizeDate(rev)

	var hasOrig, hasRev bool
	for _, d := range baseline.ContractDates() {
		n := NormalizeDate(d)
		if n == orig {
			hasOrig = true
		}
		if n == rev {
			hasRev = true
		}
	}
	if !hasOrig || hasRev {
		return model.Conflict{}, false
	}
	return model.Conflict{
		Amendment: a,
		ConflictDescription: fmt.Sprintf(
			"Baseline contract dates still show %s (%s), but amendment %d revised it to %s",
			orig, a.AffectedField, a.AmendmentNumber, rev),
	}, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
		return f, err == nil
	}
	return 0, false
}
