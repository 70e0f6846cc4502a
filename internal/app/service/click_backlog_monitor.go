package service

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/DealLink/internal/app/model"
	infraPrometheus "github.com/sifan077/DealLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ConsumerInfoSource is the slice of nats.JetStreamContext the monitor needs.
type ConsumerInfoSource interface {
	ConsumerInfo(stream, name string, opts ...nats.JSOpt) (*nats.ConsumerInfo, error)
}

// ClickBacklogMonitor periodically exports how many click messages are still
// waiting to be persisted.
type ClickBacklogMonitor struct {
	logger   *zap.Logger
	source   ConsumerInfoSource
	interval time.Duration
	stopChan chan struct{}
}

// NewClickBacklogMonitor creates a monitor; a non-positive interval means 30s.
func NewClickBacklogMonitor(logger *zap.Logger, source ConsumerInfoSource, interval time.Duration) *ClickBacklogMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ClickBacklogMonitor{
		logger:   logger,
		source:   source,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic check.
func (m *ClickBacklogMonitor) Start() {
	go m.run()
}

// Stop stops the periodic check.
func (m *ClickBacklogMonitor) Stop() {
	close(m.stopChan)
}

func (m *ClickBacklogMonitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			m.logger.Info("click backlog monitor stopped")
			return
		}
	}
}

// check reads the consumer state once and returns the backlog it exported.
func (m *ClickBacklogMonitor) check() (uint64, error) {
	info, err := m.source.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName)
	if err != nil {
		m.logger.Error("failed to read click consumer info", zap.Error(err))
		return 0, err
	}

	backlog := info.NumPending + uint64(info.NumAckPending)
	infraPrometheus.ClickStreamPending.Set(float64(backlog))
	if backlog > 0 {
		m.logger.Debug("click stream backlog",
			zap.Uint64("pending", info.NumPending),
			zap.Int("ack_pending", info.NumAckPending),
		)
	}
	return backlog, nil
}
