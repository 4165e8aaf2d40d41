package reader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	inventoryTimeout = 5 * time.Second
	stopTimeout      = 2 * time.Second
)

// Session 读写器会话
//
// 管理连接生命周期和后台扫描循环，只通过事件对外输出，不持有任何台账状态。
// 同一时刻只有一个订阅者，Subscribe 原子替换。
type Session struct {
	opener   Opener
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	subscriber atomic.Pointer[Subscriber]

	mu       sync.Mutex
	driver   Driver
	desc     Descriptor
	scanning bool
	stopCh   chan struct{}
	stopOnce *sync.Once
	done     chan struct{}
}

// NewSession 创建会话，interval 为两轮盘点之间的休眠
func NewSession(opener Opener, interval time.Duration, logger *zap.Logger) *Session {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Session{
		opener:   opener,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Subscribe 设置唯一的事件订阅者，返回之前的订阅者（可能为 nil）
func (s *Session) Subscribe(sub Subscriber) Subscriber {
	var next *Subscriber
	if sub != nil {
		next = &sub
	}
	prev := s.subscriber.Swap(next)
	if prev == nil {
		return nil
	}
	return *prev
}

func (s *Session) emit(evt Event) {
	if sub := s.subscriber.Load(); sub != nil {
		(*sub)(evt)
	}
}

// Connected 是否已连接
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver != nil
}

// Scanning 是否正在扫描
func (s *Session) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// Descriptor 当前连接参数
func (s *Session) Descriptor() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

// Connect 打开读写器，已连接时直接返回
func (s *Session) Connect(desc Descriptor) error {
	s.mu.Lock()
	if s.driver != nil {
		s.mu.Unlock()
		s.logger.Info("Reader already connected", zap.String("descriptor", s.desc.String()))
		return nil
	}
	s.mu.Unlock()

	drv, err := s.opener(desc)
	if err != nil {
		var ce *ConnectionError
		if !errors.As(err, &ce) {
			err = &ConnectionError{Kind: ProtocolError, Port: desc.Port, Err: err}
		}
		s.logger.Warn("Reader connect failed",
			zap.String("descriptor", desc.String()),
			zap.Error(err),
		)
		return err
	}

	s.mu.Lock()
	if s.driver != nil {
		// 并发 Connect，保留先到者
		s.mu.Unlock()
		drv.Close()
		return nil
	}
	s.driver = drv
	s.desc = desc
	s.mu.Unlock()

	s.logger.Info("Reader connected", zap.String("descriptor", desc.String()))
	s.emit(Connected{Descriptor: desc})
	return nil
}

// Disconnect 断开连接，扫描中先停止扫描；可重复调用
func (s *Session) Disconnect() {
	s.StopScan()
	s.waitScan()

	s.mu.Lock()
	drv := s.driver
	s.driver = nil
	s.mu.Unlock()

	if drv == nil {
		return
	}
	if err := drv.Close(); err != nil {
		s.logger.Warn("Failed to close reader", zap.Error(err))
	}
	s.logger.Info("Reader disconnected")
	s.emit(Disconnected{})
}

// StartScan 启动后台扫描循环，已在扫描时不做任何事
func (s *Session) StartScan(modeHint string) error {
	s.mu.Lock()
	if s.driver == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.scanning {
		s.mu.Unlock()
		return nil
	}
	s.scanning = true
	s.stopCh = make(chan struct{})
	s.stopOnce = &sync.Once{}
	s.done = make(chan struct{})
	drv, stop, done := s.driver, s.stopCh, s.done
	s.mu.Unlock()

	s.logger.Info("Scan started", zap.String("mode", modeHint))
	s.emit(ScanStarted{Mode: modeHint})
	go s.scanLoop(drv, stop, done)
	return nil
}

// StopScan 通知扫描循环在当前一轮结束后退出，不等待
func (s *Session) StopScan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanning {
		return
	}
	stop := s.stopCh
	s.stopOnce.Do(func() { close(stop) })
}

// waitScan 等待扫描循环退出
func (s *Session) waitScan() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Session) scanLoop(drv Driver, stop <-chan struct{}, done chan struct{}) {
	defer close(done)

	var fatal error
loop:
	for {
		select {
		case <-stop:
			break loop
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), inventoryTimeout)
		reports, err := drv.Inventory(ctx)
		cancel()

		at := s.now()
		for _, r := range reports {
			if r.TID == "" {
				continue
			}
			s.emit(TagSighted{TID: r.TID, Timestamp: at, Antenna: r.Antenna, RSSI: r.RSSI})
		}

		if err != nil {
			isFatal := errors.Is(err, ErrTransportLost)
			s.logger.Warn("Inventory cycle failed", zap.Bool("fatal", isFatal), zap.Error(err))
			s.emit(ScanFailed{Err: err, Fatal: isFatal})
			if isFatal {
				fatal = err
				break loop
			}
		} else {
			s.emit(ScanCycleComplete{Tags: len(reports)})
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-stop:
			timer.Stop()
			break loop
		case <-timer.C:
		}
	}

	if fatal == nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		if err := drv.Stop(ctx); err != nil {
			s.logger.Warn("Failed to send stop command", zap.Error(err))
		}
		cancel()
	}

	s.mu.Lock()
	s.scanning = false
	lost := fatal != nil && s.driver == drv
	if lost {
		s.driver = nil
	}
	s.mu.Unlock()

	s.logger.Info("Scan stopped", zap.Error(fatal))
	s.emit(ScanStopped{Err: fatal})

	if lost {
		drv.Close()
		s.emit(Disconnected{Err: fatal})
	}
}

// ListPorts 刷新可用串口列表
func (s *Session) ListPorts() ([]string, error) {
	ports, err := ListPorts()
	if err != nil {
		s.logger.Warn("Failed to list serial ports", zap.Error(err))
		return nil, err
	}
	return ports, nil
}
