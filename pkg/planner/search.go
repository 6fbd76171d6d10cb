package planner

import (
	"container/heap"
	"context"
	"slices"
	"sort"
	"time"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
	"golang.org/x/sync/errgroup"
)

// Config bounds the combination search. The search space is the product of
// each group's best TopK plans over every subset of groups, so results are the
// best within that pruned space, not a global optimum.
type Config struct {
	// TopK is how many plans each group keeps after ranking.
	TopK int `yaml:"top_k"`
	// MaxResults is how many combinations are returned.
	MaxResults int `yaml:"max_results"`
	// MaxGroups caps the groups entering subset enumeration (2^G - 1 subsets).
	// It is clamped to MaxGroupsLimit.
	MaxGroups int `yaml:"max_groups"`
	// Workers splits subsets across goroutines. Results do not depend on it.
	Workers int `yaml:"workers"`
	// Timeout bounds the whole enumeration; on expiry the best so far is returned.
	Timeout time.Duration `yaml:"timeout"`
}

// MaxGroupsLimit is the largest accepted MaxGroups.
const MaxGroupsLimit = 20

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{TopK: 10, MaxResults: 100, MaxGroups: 12, Workers: 1, Timeout: 30 * time.Second}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.MaxGroups <= 0 {
		c.MaxGroups = d.MaxGroups
	}
	c.MaxGroups = min(c.MaxGroups, MaxGroupsLimit)
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// Combination is one itinerary: day plans with distinct dates and distinct cuisines.
type Combination struct {
	Plans  []DayPlan
	Weight float64
}

// Result is the outcome of a search.
type Result struct {
	Combinations  []Combination
	DroppedGroups []string
	Evaluated     int64
	Valid         int64
	// Truncated is set when the timeout or cancellation stopped enumeration early.
	Truncated bool
}

// Prune groups plans by group key, in order of first appearance, and keeps each
// group's topK plans by descending weight. Ties keep input order.
func Prune(plans []DayPlan, topK int) (keys []string, lists [][]DayPlan) {
	index := make(map[string]int)
	for _, p := range plans {
		i, ok := index[p.Group]
		if !ok {
			i = len(keys)
			index[p.Group] = i
			keys = append(keys, p.Group)
			lists = append(lists, nil)
		}
		lists[i] = append(lists[i], p)
	}
	for i := range lists {
		sort.SliceStable(lists[i], func(a, b int) bool { return lists[i][a].Weight > lists[i][b].Weight })
		if topK > 0 && len(lists[i]) > topK {
			lists[i] = lists[i][:topK]
		}
	}
	return keys, lists
}

// capGroups keeps the max groups whose best plan weighs most, preserving order.
func capGroups(keys []string, lists [][]DayPlan, max int) ([]string, [][]DayPlan, []string) {
	if len(keys) <= max {
		return keys, lists, nil
	}
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return lists[order[a]][0].Weight > lists[order[b]][0].Weight })
	keep := make([]bool, len(keys))
	for _, i := range order[:max] {
		keep[i] = true
	}
	var (
		k       []string
		l       [][]DayPlan
		dropped []string
	)
	for i := range keys {
		if keep[i] {
			k = append(k, keys[i])
			l = append(l, lists[i])
		} else {
			dropped = append(dropped, keys[i])
		}
	}
	return k, l, dropped
}

// subsetIter walks the non-empty subsets of n indices by size and then in
// lexicographic order without materializing them.
type subsetIter struct {
	n   int
	idx []int
}

func (it *subsetIter) next() bool {
	r := len(it.idx)
	if r == 0 {
		if it.n == 0 {
			return false
		}
		it.idx = append(it.idx, 0)
		return true
	}
	i := r - 1
	for i >= 0 && it.idx[i] == it.n-r+i {
		i--
	}
	if i < 0 {
		if r == it.n {
			return false
		}
		it.idx = append(it.idx, 0)
		for j := range it.idx {
			it.idx[j] = j
		}
		return true
	}
	it.idx[i]++
	for j := i + 1; j < r; j++ {
		it.idx[j] = it.idx[j-1] + 1
	}
	return true
}

// Search finds the best combinations of day plans. A date may appear at most
// once per combination, and a food type at most once across all of its lunch
// and dinner legs. Empty input gives an empty result.
func Search(ctx context.Context, plans []DayPlan, cfg Config) Result {
	cfg = cfg.normalized()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	keys, lists := Prune(plans, cfg.TopK)
	var res Result
	keys, lists, res.DroppedGroups = capGroups(keys, lists, cfg.MaxGroups)
	if len(keys) == 0 {
		return res
	}

	walkers := make([]*walker, cfg.Workers)
	for i := range walkers {
		walkers[i] = &walker{ctx: ctx, lists: lists, top: &topN{limit: cfg.MaxResults}}
	}

	if len(walkers) == 1 {
		walkers[0].run(len(keys), 0, 1)
	} else {
		var g errgroup.Group
		for w, wk := range walkers {
			g.Go(func() error {
				wk.run(len(keys), w, len(walkers))
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // walkers never return errors
	}

	var all []entry
	for _, wk := range walkers {
		res.Evaluated += wk.evaluated
		res.Valid += wk.valid
		res.Truncated = res.Truncated || wk.stopped
		all = append(all, wk.top.items...)
	}
	sort.Slice(all, func(i, j int) bool { return all[j].worse(all[i]) })
	if len(all) > cfg.MaxResults {
		all = all[:cfg.MaxResults]
	}
	res.Combinations = make([]Combination, len(all))
	for i, e := range all {
		res.Combinations[i] = e.combo
	}
	return res
}

// Plan runs candidate generation and search over a snapshot.
func Plan(ctx context.Context, src Source, groups []restaurant.LocationGroup, dates []string, s Scorer, cfg Config) Result {
	return Search(ctx, DayPlans(src, groups, dates, s), cfg)
}

const checkEvery = 1 << 12

type walker struct {
	ctx       context.Context
	top       *topN
	lists     [][]DayPlan
	idx       []int
	chosen    []*DayPlan
	evaluated int64
	valid     int64
	stopped   bool
}

// run walks every step-th subset of n groups starting at offset.
func (w *walker) run(n, offset, step int) {
	it := subsetIter{n: n}
	for s := 0; it.next(); s++ {
		if w.ctx.Err() != nil {
			w.stopped = true
			return
		}
		if s%step != offset {
			continue
		}
		if !w.walk(s, it.idx) {
			return
		}
	}
}

// walk enumerates the product of the member lists depth first, last list
// fastest, skipping every completion of an invalid prefix. It reports false
// once the context is done.
func (w *walker) walk(subset int, members []int) bool {
	k := len(members)
	if cap(w.idx) < k {
		w.idx = make([]int, k)
		w.chosen = make([]*DayPlan, k)
	}
	idx, chosen := w.idx[:k], w.chosen[:k]
	clear(idx)

	level := 0
	for level >= 0 {
		list := w.lists[members[level]]
		if idx[level] >= len(list) {
			idx[level] = 0
			level--
			if level >= 0 {
				idx[level]++
			}
			continue
		}

		w.evaluated++
		if w.evaluated%checkEvery == 0 && w.ctx.Err() != nil {
			w.stopped = true
			return false
		}

		p := &list[idx[level]]
		if !compatible(p, chosen[:level]) {
			idx[level]++
			continue
		}
		chosen[level] = p
		if level < k-1 {
			level++
			continue
		}

		w.valid++
		var weight float64
		for _, c := range chosen {
			weight += c.Weight
		}
		w.top.offer(weight, subset, idx, chosen)
		idx[level]++
	}
	return true
}

// compatible reports whether p can join prefix without repeating a date or a food type.
func compatible(p *DayPlan, prefix []*DayPlan) bool {
	lunch, dinner := p.Lunch.Restaurant.FoodType, p.Dinner.Restaurant.FoodType
	if lunch == dinner {
		return false
	}
	for _, q := range prefix {
		if q.Date == p.Date {
			return false
		}
		ql, qd := q.Lunch.Restaurant.FoodType, q.Dinner.Restaurant.FoodType
		if lunch == ql || lunch == qd || dinner == ql || dinner == qd {
			return false
		}
	}
	return true
}

type entry struct {
	combo  Combination
	subset int
	// choice holds the index picked from each member list, which orders
	// combinations within a subset.
	choice []int
}

// worse orders entries by weight, then by enumeration order, so truncation
// matches a stable sort of every valid combination.
func (e entry) worse(o entry) bool {
	if e.combo.Weight != o.combo.Weight {
		return e.combo.Weight < o.combo.Weight
	}
	if e.subset != o.subset {
		return e.subset > o.subset
	}
	return slices.Compare(e.choice, o.choice) > 0
}

// topN is a min-heap holding the best limit entries, worst on top.
type topN struct {
	items []entry
	limit int
}

func (t *topN) Len() int           { return len(t.items) }
func (t *topN) Less(i, j int) bool { return t.items[i].worse(t.items[j]) }
func (t *topN) Swap(i, j int)      { t.items[i], t.items[j] = t.items[j], t.items[i] }
func (t *topN) Push(x any)         { t.items = append(t.items, x.(entry)) }
func (t *topN) Pop() any {
	n := len(t.items)
	e := t.items[n-1]
	t.items = t.items[:n-1]
	return e
}

func (t *topN) offer(weight float64, subset int, choice []int, chosen []*DayPlan) {
	e := entry{combo: Combination{Weight: weight}, subset: subset, choice: choice}
	if len(t.items) >= t.limit && !t.items[0].worse(e) {
		return
	}
	e.choice = slices.Clone(choice)
	e.combo.Plans = make([]DayPlan, len(chosen))
	for i, p := range chosen {
		e.combo.Plans[i] = *p
	}
	if len(t.items) < t.limit {
		heap.Push(t, e)
		return
	}
	t.items[0] = e
	heap.Fix(t, 0)
}
