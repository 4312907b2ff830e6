package services

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"langvote/internal/models"
	"langvote/internal/notify"
)

// TrendUpdate 是 trend-updated 事件的负载
type TrendUpdate struct {
	WindowSeconds int64                  `json:"window_seconds"`
	Snapshots     []models.TrendSnapshot `json:"snapshots"`
}

// TrendPublisher 按固定节奏重新计算趋势并广播 trend-updated
// 它同时实现 notify.Notifier：收到写入类事件时合并成一次提前刷新
type TrendPublisher struct {
	trend      *TrendAggregator
	downstream notify.Notifier
	logger     *zap.Logger
	windows    []time.Duration

	cron     *cron.Cron
	debounce time.Duration
	queue    chan struct{}
	pending  bool
	mu       sync.Mutex

	stop chan struct{}
	done chan struct{}
}

func NewTrendPublisher(trend *TrendAggregator, downstream notify.Notifier, logger *zap.Logger, windows ...time.Duration) *TrendPublisher {
	if len(windows) == 0 {
		windows = []time.Duration{time.Hour}
	}
	return &TrendPublisher{
		trend:      trend,
		downstream: downstream,
		logger:     logger.Named("trend_publisher"),
		windows:    windows,
		cron:       cron.New(),
		debounce:   500 * time.Millisecond,
		queue:      make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// WithDebounce sets how long early refresh requests are collected before publishing.
func (p *TrendPublisher) WithDebounce(d time.Duration) *TrendPublisher {
	p.debounce = d
	return p
}

// Start schedules periodic publishing with a cron spec such as "@every 5s" and
// starts the refresh worker.
func (p *TrendPublisher) Start(spec string) error {
	if spec != "" {
		if _, err := p.cron.AddFunc(spec, func() { p.PublishNow(context.Background()) }); err != nil {
			return err
		}
	}
	p.cron.Start()
	go p.worker()
	return nil
}

// Stop waits for the running job and the worker to finish.
func (p *TrendPublisher) Stop() {
	<-p.cron.Stop().Done()
	close(p.stop)
	<-p.done
}

// Notify implements notify.Notifier. Writes schedule a refresh, everything else is ignored.
func (p *TrendPublisher) Notify(_ context.Context, event notify.Event) error {
	switch event.Kind {
	case notify.KindVoteRecorded, notify.KindDataReset, notify.KindDataSeeded, notify.KindLanguageAdded:
		p.ScheduleRefresh()
	}
	return nil
}

// ScheduleRefresh 请求一次提前刷新，已有待处理请求时直接跳过
func (p *TrendPublisher) ScheduleRefresh() {
	p.mu.Lock()
	if p.pending {
		p.mu.Unlock()
		return
	}
	p.pending = true
	p.mu.Unlock()

	select {
	case p.queue <- struct{}{}:
	default:
		p.mu.Lock()
		p.pending = false
		p.mu.Unlock()
	}
}

func (p *TrendPublisher) worker() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case <-p.queue:
			// 合并 debounce 时间内的所有请求
			timer := time.NewTimer(p.debounce)
			select {
			case <-p.stop:
				timer.Stop()
				return
			case <-timer.C:
			}
			p.mu.Lock()
			p.pending = false
			p.mu.Unlock()
			p.PublishNow(context.Background())
		}
	}
}

// PublishNow computes every configured window and sends one trend-updated per window.
func (p *TrendPublisher) PublishNow(ctx context.Context) {
	for _, window := range p.windows {
		snapshots, err := p.trend.CalculateTrend(ctx, window)
		if err != nil {
			p.logger.Warn("trend calculation failed", zap.Duration("window", window), zap.Error(err))
			continue
		}
		notify.Emit(ctx, p.downstream, p.logger, notify.Event{
			Kind:      notify.KindTrendUpdated,
			Timestamp: time.Now().UTC(),
			Payload: TrendUpdate{
				WindowSeconds: int64(window / time.Second),
				Snapshots:     snapshots,
			},
		})
	}
}
