package publisher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const publishTimeout = 3 * time.Second

// Publisher 异步把读取事件转发到各个输出端
//
// Enqueue 永不阻塞调用方；队列满时丢弃并告警。
type Publisher struct {
	sinks  []Sink
	queue  chan SightingEvent
	logger *zap.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	stopped  bool
}

// New 创建发布器，sinks 为空时 Enqueue 直接丢弃
func New(sinks []Sink, bufferSize int, logger *zap.Logger) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Publisher{
		sinks:  sinks,
		queue:  make(chan SightingEvent, bufferSize),
		logger: logger,
	}
}

// Enabled 是否配置了输出端
func (p *Publisher) Enabled() bool {
	return len(p.sinks) > 0
}

// Start 启动后台 worker
func (p *Publisher) Start(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	p.wg.Add(1)
	go p.run(ctx)

	names := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		names = append(names, s.Name())
	}
	p.logger.Info("Sighting publisher started", zap.Strings("sinks", names))
}

// Enqueue 投递事件
func (p *Publisher) Enqueue(evt SightingEvent) bool {
	if !p.Enabled() {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.queue <- evt:
		return true
	default:
		p.logger.Warn("Publisher queue full, dropping sighting",
			zap.String("tid", evt.TID),
			zap.Int("sequence_id", evt.SequenceID),
		)
		return false
	}
}

// Stop 关闭队列并等待剩余事件发送完毕
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		p.logger.Info("Sighting publisher stopped")
	})
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()

	for evt := range p.queue {
		for _, sink := range p.sinks {
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := sink.Publish(pubCtx, evt)
			cancel()
			if err != nil {
				p.logger.Error("Failed to publish sighting",
					zap.String("sink", sink.Name()),
					zap.String("tid", evt.TID),
					zap.Error(err),
				)
			}
		}
	}
}
