package coda

import "math/rand/v2"

// resampleEpsilon keeps the ratio finite for classes with no records.
const resampleEpsilon = 1e-3

// classMembers groups record positions by class. A record joins every class
// it has at least one object of; records without annotations join none.
func classMembers(infos []InfoRecord, classNames []string) map[string][]int {
	members := make(map[string][]int, len(classNames))
	for _, name := range classNames {
		members[name] = nil
	}
	for i := range infos {
		annos := infos[i].Annos
		if annos == nil {
			continue
		}
		for name := range members {
			if annos.HasClass(name) {
				members[name] = append(members[name], i)
			}
		}
	}
	return members
}

// ClassRecordCounts returns how many records contain each class.
func ClassRecordCounts(infos []InfoRecord, classNames []string) map[string]int {
	counts := make(map[string]int, len(classNames))
	for name, recs := range classMembers(infos, classNames) {
		counts[name] = len(recs)
	}
	return counts
}

// BalanceRatios returns each class's sampling ratio
// (1/numClasses) / (share + 1e-3), where share is the class's fraction of
// all class memberships. It returns nil when no record has any class.
func BalanceRatios(counts map[string]int, classNames []string) map[string]float64 {
	total := 0
	for _, name := range classNames {
		total += counts[name]
	}
	if total == 0 {
		return nil
	}

	frac := 1.0 / float64(len(classNames))
	ratios := make(map[string]float64, len(classNames))
	for _, name := range classNames {
		share := float64(counts[name]) / float64(total)
		ratios[name] = frac / (share + resampleEpsilon)
	}
	return ratios
}

// BalancedResample draws, for each class in order, int(len(records) * ratio)
// records with replacement from the records containing that class and
// concatenates the draws. The result only approximates a uniform class
// distribution and its size generally differs from len(infos).
//
// A nil rng uses a freshly seeded source.
func BalancedResample(infos []InfoRecord, classNames []string, rng *rand.Rand) []InfoRecord {
	if len(classNames) == 0 {
		return infos
	}

	members := classMembers(infos, classNames)
	counts := make(map[string]int, len(members))
	for name, recs := range members {
		counts[name] = len(recs)
	}
	ratios := BalanceRatios(counts, classNames)
	if ratios == nil {
		opsf("balanced resampling: no record contains any of %d classes, keeping %d records", len(classNames), len(infos))
		return infos
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	out := make([]InfoRecord, 0, len(infos))
	for _, name := range classNames {
		recs := members[name]
		n := int(float64(len(recs)) * ratios[name])
		for range n {
			out = append(out, infos[recs[rng.IntN(len(recs))]])
		}
	}
	diagf("Total samples after balanced resampling: %d", len(out))
	return out
}
