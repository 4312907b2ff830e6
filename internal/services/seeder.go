package services

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"langvote/internal/errs"
	"langvote/internal/metrics"
	"langvote/internal/models"
	"langvote/internal/notify"
	"langvote/internal/store"
	"langvote/internal/utils"
)

const (
	// 每个语言至少生成的票数
	SeedVoteFloor = 5
	// 目标票数上下浮动 ±20%
	SeedJitter = 0.2
)

// Candidate 候选语言及其热度权重，权重决定播种后的票数占比
type Candidate struct {
	Name   string
	Weight float64
}

var CandidatePool = []Candidate{
	{"Python", 30}, {"JavaScript", 28}, {"TypeScript", 22}, {"Java", 20},
	{"Go", 16}, {"Rust", 15}, {"C#", 14}, {"C++", 12}, {"PHP", 10},
	{"Kotlin", 8}, {"Ruby", 8}, {"Swift", 7}, {"Dart", 5}, {"Elixir", 5},
	{"Scala", 4}, {"Haskell", 3}, {"Lua", 3}, {"Zig", 2}, {"Clojure", 2}, {"OCaml", 2},
}

type SeedParams struct {
	NumLanguages int `json:"num_languages" validate:"min=1"`
	TotalVotes   int `json:"total_votes" validate:"min=0,max=1000000"`
	HoursBack    int `json:"hours_back" validate:"min=1,max=8760"`
}

// DefaultSeedParams 未指定参数时的播种规模
var DefaultSeedParams = SeedParams{NumLanguages: 8, TotalVotes: 1000, HoursBack: 24}

type SeedResult struct {
	Options   []models.Option `json:"options"`
	Events    int             `json:"events"`
	Timestamp time.Time       `json:"timestamp"`
}

// Seeder wipes the ledger and replaces it with a synthetic history.
type Seeder struct {
	store    store.Store
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewSeeder uses rng for every random choice; nil seeds one from the clock.
func NewSeeder(st store.Store, notifier notify.Notifier, logger *zap.Logger, m *metrics.Metrics, rng *rand.Rand) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Seeder{
		store:    st,
		notifier: notifier,
		logger:   logger.Named("seeder"),
		metrics:  m,
		validate: validator.New(),
		now:      time.Now,
		rng:      rng,
	}
}

func (s *Seeder) WithClock(now func() time.Time) *Seeder {
	s.now = now
	return s
}

type seedPlan struct {
	options []models.Option
	totals  []int64
	// events reference options by index until ids are known
	events []plannedEvent
}

type plannedEvent struct {
	option int
	at     time.Time
}

// Generate 在一个事务里清空所有数据并批量写入合成的历史投票
func (s *Seeder) Generate(ctx context.Context, p SeedParams) (SeedResult, error) {
	if err := s.validate.Struct(p); err != nil {
		return SeedResult{}, &errs.ValidationError{Field: "seed params", Reason: err.Error()}
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	plan := s.plan(p, now)
	start := time.Now()

	var options []models.Option
	var events []models.VoteEvent
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		if err := tx.LockOptions(ctx); err != nil {
			return err
		}
		if err := tx.DeleteAllEvents(ctx); err != nil {
			return err
		}
		if err := tx.DeleteAllOptions(ctx); err != nil {
			return err
		}

		options = append([]models.Option(nil), plan.options...)
		if err := tx.CreateOptions(ctx, options); err != nil {
			return err
		}

		events = materialize(plan, options)
		if err := tx.AppendEvents(ctx, events); err != nil {
			return err
		}

		for i := range options {
			if err := tx.SetVotes(ctx, options[i].ID, plan.totals[i]); err != nil {
				return err
			}
			options[i].Votes = plan.totals[i]
		}
		return nil
	})
	if err != nil {
		err = errs.Aborted("seed", err)
		s.logger.Error("seed failed", zap.Error(err))
		return SeedResult{}, err
	}

	metrics.ObserveSince(s.metrics.SeedDuration, start)
	s.metrics.SeededEvents.Add(float64(len(events)))
	s.logger.Info("seed committed",
		zap.Int("languages", len(options)),
		zap.Int("events", len(events)),
		zap.Duration("took", time.Since(start)),
	)

	notify.Emit(ctx, s.notifier, s.logger, notify.Event{Kind: notify.KindDataSeeded, Timestamp: now})
	return SeedResult{Options: options, Events: len(events), Timestamp: now}, nil
}

// plan draws every random value up front so the transaction itself is deterministic.
func (s *Seeder) plan(p SeedParams, now time.Time) seedPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := p.NumLanguages
	if n > len(CandidatePool) {
		n = len(CandidatePool)
	}
	picked := make([]Candidate, n)
	for i, idx := range s.rng.Perm(len(CandidatePool))[:n] {
		picked[i] = CandidatePool[idx]
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Weight > picked[j].Weight })

	var weightSum float64
	for _, c := range picked {
		weightSum += c.Weight
	}
	raw := make([]float64, n)
	for i, c := range picked {
		jitter := 1 - SeedJitter + 2*SeedJitter*s.rng.Float64()
		raw[i] = c.Weight / weightSum * float64(p.TotalVotes) * jitter
	}
	totals := apportion(raw, int64(p.TotalVotes), SeedVoteFloor)

	plan := seedPlan{options: make([]models.Option, n), totals: totals}
	span := int64(time.Duration(p.HoursBack) * time.Hour)
	for i, c := range picked {
		name := utils.NormalizeName(c.Name)
		plan.options[i] = models.Option{Name: name, NameKey: utils.NameKey(name), CreatedAt: now.Add(-time.Duration(span))}
		for k := int64(0); k < totals[i]; k++ {
			at := now.Add(-time.Duration(s.rng.Int63n(span))).Truncate(time.Microsecond)
			plan.events = append(plan.events, plannedEvent{option: i, at: at})
		}
	}

	sort.SliceStable(plan.events, func(i, j int) bool {
		return plan.events[i].at.Before(plan.events[j].at)
	})
	return plan
}

// materialize assigns option ids and running totals in timestamp order, so
// votes_after grows strictly per option.
func materialize(plan seedPlan, options []models.Option) []models.VoteEvent {
	running := make([]int64, len(options))
	events := make([]models.VoteEvent, len(plan.events))
	for i, pe := range plan.events {
		running[pe.option]++
		events[i] = models.VoteEvent{
			OptionID:   options[pe.option].ID,
			Language:   options[pe.option].Name,
			VotesAfter: running[pe.option],
			EventType:  models.EventTypeSeed,
			CreatedAt:  pe.at,
		}
	}
	return events
}

// apportion turns raw shares into integers that sum to total, none below floor.
// If total cannot cover floor for everyone, every entry gets floor.
func apportion(raw []float64, total, floor int64) []int64 {
	n := len(raw)
	out := make([]int64, n)
	if n == 0 {
		return out
	}
	if total <= floor*int64(n) {
		for i := range out {
			out[i] = floor
		}
		return out
	}

	fixed := make([]bool, n)
	remaining := total
	for {
		free := freeIndexes(fixed)
		if len(free) == 0 {
			break
		}
		var sum float64
		for _, i := range free {
			sum += raw[i]
		}
		// 先找出本轮所有低于下限的项，再统一固定，避免同一轮内用到已缩小的 remaining
		var below []int
		for _, i := range free {
			if share(raw[i], sum, remaining, len(free)) < float64(floor) {
				below = append(below, i)
			}
		}
		if len(below) == 0 {
			break
		}
		for _, i := range below {
			fixed[i] = true
			out[i] = floor
			remaining -= floor
		}
	}

	// 剩余票数按最大余数法分给未固定的项；全部固定时分给所有项
	idx := freeIndexes(fixed)
	if len(idx) == 0 {
		idx = make([]int, n)
		for i := range idx {
			idx[i] = i
		}
	}
	for k, extra := range largestRemainder(raw, idx, remaining) {
		out[idx[k]] += extra
	}
	return out
}

func freeIndexes(fixed []bool) []int {
	var idx []int
	for i, f := range fixed {
		if !f {
			idx = append(idx, i)
		}
	}
	return idx
}

func share(r, sum float64, amount int64, count int) float64 {
	if sum > 0 {
		return r / sum * float64(amount)
	}
	return float64(amount) / float64(count)
}

// largestRemainder splits amount over raw[idx...] in proportion to the raw values.
// The result is aligned with idx and always sums to amount.
func largestRemainder(raw []float64, idx []int, amount int64) []int64 {
	shares := make([]int64, len(idx))
	if len(idx) == 0 || amount <= 0 {
		return shares
	}
	var sum float64
	for _, i := range idx {
		sum += raw[i]
	}

	type frac struct {
		k int
		f float64
	}
	fracs := make([]frac, len(idx))
	var assigned int64
	for k, i := range idx {
		exact := share(raw[i], sum, amount, len(idx))
		shares[k] = int64(math.Floor(exact))
		assigned += shares[k]
		fracs[k] = frac{k, exact - math.Floor(exact)}
	}
	sort.SliceStable(fracs, func(a, b int) bool { return fracs[a].f > fracs[b].f })

	for j := 0; assigned < amount; j++ {
		shares[fracs[j%len(fracs)].k]++
		assigned++
	}
	// float rounding can overshoot by one
	for j := len(fracs) - 1; assigned > amount; j-- {
		k := fracs[(j%len(fracs)+len(fracs))%len(fracs)].k
		if shares[k] > 0 {
			shares[k]--
			assigned--
		}
	}
	return shares
}
