package usecase

import (
	"math"
	"sort"

	"jobsee-orchestrator/internal/domain/model"
)

// Allocate splits granted headroom across plans by their weights. Weights are
// normalized over the given plans, shares are floored and the leftover units
// go to the largest fractional parts. Every share is capped by the plan's
// hard maximum; capped units are not redistributed.
func Allocate(granted int, plans []PlatformPlan) model.Allocation {
	alloc := model.Allocation{PerPlatform: make(map[string]int, len(plans))}
	for _, p := range plans {
		alloc.Order = append(alloc.Order, p.Driver.Name())
		alloc.PerPlatform[p.Driver.Name()] = 0
	}
	if granted <= 0 || len(plans) == 0 {
		return alloc
	}

	var sum float64
	for _, p := range plans {
		if p.Weight > 0 {
			sum += p.Weight
		}
	}
	if sum == 0 {
		return alloc
	}

	type share struct {
		idx  int
		frac float64
	}
	shares := make([]share, 0, len(plans))
	floors := make([]int, len(plans))
	used := 0
	for i, p := range plans {
		if p.Weight <= 0 {
			continue
		}
		exact := float64(granted) * p.Weight / sum
		floors[i] = int(math.Floor(exact))
		used += floors[i]
		shares = append(shares, share{idx: i, frac: exact - float64(floors[i])})
	}
	sort.SliceStable(shares, func(a, b int) bool { return shares[a].frac > shares[b].frac })
	for left := granted - used; left > 0 && len(shares) > 0; left-- {
		floors[shares[0].idx]++
		shares = shares[1:]
	}

	for i, p := range plans {
		n := floors[i]
		if p.HardCap > 0 && n > p.HardCap {
			n = p.HardCap
		}
		alloc.PerPlatform[p.Driver.Name()] = n
		alloc.Granted += n
	}
	return alloc
}

// targetApplications is the most a single run could submit across plans.
func targetApplications(plans []PlatformPlan) int {
	n := 0
	for _, p := range plans {
		if p.HardCap <= 0 {
			return math.MaxInt32
		}
		n += p.HardCap
	}
	return n
}
