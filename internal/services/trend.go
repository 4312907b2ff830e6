package services

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"langvote/internal/metrics"
	"langvote/internal/models"
	"langvote/internal/store"
)

// Step 窗口长度对应的桶宽和最大快照数
type Step struct {
	Window       time.Duration
	Bucket       time.Duration
	MaxSnapshots int
}

// StepTable keeps the snapshot count bounded whatever the event volume.
var StepTable = []Step{
	{Window: time.Minute, Bucket: 2 * time.Second, MaxSnapshots: 31},
	{Window: 5 * time.Minute, Bucket: 5 * time.Second, MaxSnapshots: 61},
	{Window: 15 * time.Minute, Bucket: 15 * time.Second, MaxSnapshots: 61},
	{Window: time.Hour, Bucket: 30 * time.Second, MaxSnapshots: 150},
	{Window: 6 * time.Hour, Bucket: 3 * time.Minute, MaxSnapshots: 121},
	{Window: 24 * time.Hour, Bucket: 10 * time.Minute, MaxSnapshots: 145},
	{Window: 7 * 24 * time.Hour, Bucket: 80 * time.Minute, MaxSnapshots: 127},
}

// DefaultStep is used for windows that are not in StepTable.
var DefaultStep = Step{Bucket: time.Minute, MaxSnapshots: 120}

func StepFor(window time.Duration) Step {
	for _, s := range StepTable {
		if s.Window == window {
			return s
		}
	}
	step := DefaultStep
	step.Window = window
	return step
}

// TrendAggregator builds vote share time series from the event log. It only reads.
type TrendAggregator struct {
	store   store.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTrendAggregator(st store.Store, logger *zap.Logger, m *metrics.Metrics) *TrendAggregator {
	return &TrendAggregator{store: st, logger: logger.Named("trend"), metrics: m, now: time.Now}
}

func (a *TrendAggregator) WithClock(now func() time.Time) *TrendAggregator {
	a.now = now
	return a
}

// CalculateTrend 返回最近 window 内的快照序列
// 窗口内没有事件时，退化为一个基于当前计数器的快照，保证图表总能显示现状
func (a *TrendAggregator) CalculateTrend(ctx context.Context, window time.Duration) ([]models.TrendSnapshot, error) {
	start := time.Now()
	label := windowLabel(window)
	defer metrics.ObserveSince(a.metrics.TrendDuration.WithLabelValues(label), start)

	now := a.now().UTC()
	cutoff := now.Add(-window)

	events, err := a.store.EventsSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var snapshots []models.TrendSnapshot
	if len(events) == 0 {
		options, err := a.store.ListOptions(ctx)
		if err != nil {
			return nil, err
		}
		snapshots = []models.TrendSnapshot{CurrentSnapshot(options, now)}
	} else {
		snapshots = BuildSnapshots(events, cutoff, now, StepFor(window))
	}

	a.metrics.TrendSnapshots.WithLabelValues(label).Set(float64(len(snapshots)))
	a.logger.Debug("trend calculated",
		zap.Duration("window", window),
		zap.Int("events", len(events)),
		zap.Int("snapshots", len(snapshots)),
	)
	return snapshots, nil
}

// CurrentSnapshot values a single snapshot from the live option counters.
func CurrentSnapshot(options []models.Option, now time.Time) models.TrendSnapshot {
	state := make(map[string]int64, len(options))
	names := make([]string, 0, len(options))
	for _, o := range options {
		state[o.Name] = o.Votes
		names = append(names, o.Name)
	}
	return snapshotOf(now.Truncate(time.Second), state, names)
}

// BuildSnapshots folds an ascending event stream into contiguous buckets from
// floor(cutoff) to floor(now). Within a bucket the last votes_after per language
// wins; an empty bucket repeats the previous state. Only the newest
// step.MaxSnapshots buckets are returned.
func BuildSnapshots(events []models.VoteEvent, cutoff, now time.Time, step Step) []models.TrendSnapshot {
	if len(events) == 0 {
		return nil
	}
	if !sort.SliceIsSorted(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) }) {
		events = append([]models.VoteEvent(nil), events...)
		sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	}

	width := int64(step.Bucket / time.Second)
	if width < 1 {
		width = 1
	}
	first := floorBucket(cutoff.Unix(), width)
	last := floorBucket(now.Unix(), width)
	// 日志可能略微领先于 now
	if tail := floorBucket(events[len(events)-1].CreatedAt.Unix(), width); tail > last {
		last = tail
	}
	if last < first {
		last = first
	}

	updates := bucketUpdates(events, first, width)
	languages := languageUniverse(events, first, width)

	total := int((last-first)/width) + 1
	skip := 0
	if step.MaxSnapshots > 0 && total > step.MaxSnapshots {
		skip = total - step.MaxSnapshots
	}

	// 被截掉的桶不生成快照，但其中的事件仍要折叠进初始状态
	emitFrom := first + int64(skip)*width
	state := map[string]int64{}
	for _, b := range sortedBuckets(updates) {
		if b < emitFrom {
			state = carryForward(state, updates[b])
		}
	}

	snapshots := make([]models.TrendSnapshot, 0, total-skip)
	for bucket := emitFrom; bucket <= last; bucket += width {
		if u, ok := updates[bucket]; ok {
			state = carryForward(state, u)
		}
		snapshots = append(snapshots, snapshotOf(time.Unix(bucket, 0).UTC(), state, languages))
	}
	return snapshots
}

func sortedBuckets(updates map[int64]map[string]int64) []int64 {
	buckets := make([]int64, 0, len(updates))
	for b := range updates {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	return buckets
}

// bucketUpdates maps each bucket to the last votes_after per language seen in it.
func bucketUpdates(events []models.VoteEvent, first, width int64) map[int64]map[string]int64 {
	updates := make(map[int64]map[string]int64)
	for _, e := range events {
		b := floorBucket(e.CreatedAt.Unix(), width)
		if b < first {
			continue
		}
		u, ok := updates[b]
		if !ok {
			u = make(map[string]int64)
			updates[b] = u
		}
		u[e.Language] = e.VotesAfter
	}
	return updates
}

// carryForward returns a new state; prev is never modified.
func carryForward(prev, update map[string]int64) map[string]int64 {
	next := make(map[string]int64, len(prev)+len(update))
	for k, v := range prev {
		next[k] = v
	}
	for k, v := range update {
		next[k] = v
	}
	return next
}

func languageUniverse(events []models.VoteEvent, first, width int64) []string {
	seen := make(map[string]struct{})
	var languages []string
	for _, e := range events {
		if floorBucket(e.CreatedAt.Unix(), width) < first {
			continue
		}
		if _, ok := seen[e.Language]; !ok {
			seen[e.Language] = struct{}{}
			languages = append(languages, e.Language)
		}
	}
	sort.Strings(languages)
	return languages
}

func snapshotOf(ts time.Time, state map[string]int64, languages []string) models.TrendSnapshot {
	var total int64
	for _, lang := range languages {
		total += state[lang]
	}

	counts := make(map[string]int64, len(languages))
	percentages := make(map[string]float64, len(languages))
	for _, lang := range languages {
		v := state[lang]
		counts[lang] = v
		if total > 0 {
			percentages[lang] = roundTenth(float64(v) / float64(total) * 100)
		} else {
			percentages[lang] = 0
		}
	}
	return models.TrendSnapshot{Timestamp: ts, Counts: counts, Percentages: percentages}
}

// windowLabel keeps the metric label set bounded to the step table.
func windowLabel(window time.Duration) string {
	for _, s := range StepTable {
		if s.Window == window {
			return strconv.FormatInt(int64(window/time.Second), 10)
		}
	}
	return "other"
}

func floorBucket(sec, width int64) int64 {
	b := sec / width * width
	if sec < 0 && sec%width != 0 {
		b -= width
	}
	return b
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
