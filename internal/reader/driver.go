package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// Driver 读写器底层驱动
type Driver interface {
	// Inventory 执行一轮盘点，阻塞直到设备上报盘点结束
	Inventory(ctx context.Context) ([]TagReport, error)
	// Stop 通知设备停止当前操作
	Stop(ctx context.Context) error
	Close() error
}

// Opener 按描述打开驱动
type Opener func(Descriptor) (Driver, error)

var errResponseTimeout = errors.New("reader response timeout")

// SerialOptions 串口驱动参数
type SerialOptions struct {
	TIDWords        int
	AntennaMask     uint32
	ReadTimeout     time.Duration
	ResponseTimeout time.Duration
}

// DefaultSerialOptions 默认: 天线1，TID 6 字
func DefaultSerialOptions() SerialOptions {
	return SerialOptions{
		TIDWords:        6,
		AntennaMask:     defaultAntenna,
		ReadTimeout:     50 * time.Millisecond,
		ResponseTimeout: 2 * time.Second,
	}
}

// NewSerialOpener 基于 go.bug.st/serial 的 Opener
func NewSerialOpener(opts SerialOptions, logger *zap.Logger) Opener {
	return func(desc Descriptor) (Driver, error) {
		return openSerial(desc, opts, logger)
	}
}

func openSerial(desc Descriptor, opts SerialOptions, logger *zap.Logger) (Driver, error) {
	if err := desc.Validate(); err != nil {
		return nil, &ConnectionError{Kind: PortUnavailable, Port: desc.Port, Err: err}
	}

	name := desc.Port
	if desc.Transport == TransportUSB && name == "" {
		found, err := discoverUSB()
		if err != nil {
			return nil, err
		}
		name = found
	}
	baud := desc.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, &ConnectionError{Kind: PortUnavailable, Port: name, Err: err}
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, &ConnectionError{Kind: PortUnavailable, Port: name, Err: err}
	}

	drv := newSerialDriver(port, name, opts, logger)
	if err := drv.handshake(); err != nil {
		port.Close()
		return nil, &ConnectionError{Kind: ProtocolError, Port: name, Err: err}
	}

	logger.Info("Reader port opened", zap.String("port", name), zap.Int("baud_rate", baud))
	return drv, nil
}

// discoverUSB 返回第一个 USB 串口
func discoverUSB() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", &ConnectionError{Kind: NoDeviceFound, Err: err}
	}
	for _, p := range ports {
		if p.IsUSB {
			return p.Name, nil
		}
	}
	return "", &ConnectionError{Kind: NoDeviceFound}
}

// ListPorts 可用串口列表
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// serialDriver 请求-应答式驱动
//
// port.Read 在读超时后返回 (0, nil)，由 ResponseTimeout 控制整体等待时间。
type serialDriver struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	name   string
	opts   SerialOptions
	dec    frameDecoder
	buf    []byte
	logger *zap.Logger
}

func newSerialDriver(port io.ReadWriteCloser, name string, opts SerialOptions, logger *zap.Logger) *serialDriver {
	if opts.TIDWords <= 0 {
		opts.TIDWords = 6
	}
	if opts.AntennaMask == 0 {
		opts.AntennaMask = defaultAntenna
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = 2 * time.Second
	}
	return &serialDriver{
		port:   port,
		name:   name,
		opts:   opts,
		buf:    make([]byte, 512),
		logger: logger,
	}
}

func (d *serialDriver) handshake() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req := readerInfoRequest()
	return d.roundTrip(context.Background(), req, func(f Frame) (bool, error) {
		return f.isResponseTo(req), nil
	})
}

func (d *serialDriver) Inventory(ctx context.Context) ([]TagReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	req := inventoryRequest(d.opts.AntennaMask, d.opts.TIDWords)
	var reports []TagReport
	err := d.roundTrip(ctx, req, func(f Frame) (bool, error) {
		switch {
		case f.isResponseTo(req):
			if code := f.result(); code != 0 {
				return true, fmt.Errorf("inventory rejected: result %d", code)
			}
		case f.isTagUpload():
			r, err := parseTagReport(f.Data)
			if err != nil {
				d.logger.Warn("Dropping malformed tag upload", zap.String("port", d.name), zap.Error(err))
				return false, nil
			}
			reports = append(reports, r)
		case f.isReadOver():
			return true, nil
		}
		return false, nil
	})
	return reports, err
}

func (d *serialDriver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req := stopRequest()
	return d.roundTrip(ctx, req, func(f Frame) (bool, error) {
		if !f.isResponseTo(req) {
			return false, nil
		}
		if code := f.result(); code != 0 {
			return true, fmt.Errorf("stop rejected: result %d", code)
		}
		return true, nil
	})
}

func (d *serialDriver) Close() error {
	return d.port.Close()
}

// roundTrip 发送请求后持续读帧，直到 handle 返回 finished
func (d *serialDriver) roundTrip(ctx context.Context, req Frame, handle func(Frame) (bool, error)) error {
	if _, err := d.port.Write(req.Encode()); err != nil {
		return fmt.Errorf("%w: write: %w", ErrTransportLost, err)
	}

	deadline := time.Now().Add(d.opts.ResponseTimeout)
	for {
		for {
			f, ok := d.dec.next()
			if !ok {
				break
			}
			finished, err := handle(f)
			if err != nil {
				return err
			}
			if finished {
				return nil
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return errResponseTimeout
		}

		n, err := d.port.Read(d.buf)
		if err != nil {
			return fmt.Errorf("%w: read: %w", ErrTransportLost, err)
		}
		d.dec.feed(d.buf[:n])
	}
}
