package reader

import (
	"fmt"
	"strings"
)

// Transport 连接方式
type Transport string

const (
	TransportUSB    Transport = "usb"
	TransportSerial Transport = "serial"
)

// 常用波特率
var BaudRates = []int{9600, 19200, 38400, 57600, 115200}

// DefaultBaudRate 默认波特率
const DefaultBaudRate = 115200

// Descriptor 读写器连接参数
//
// USB 方式自动发现端口，Port 为空；串口方式必须指定 Port 和 BaudRate。
type Descriptor struct {
	Transport Transport
	Port      string
	BaudRate  int
}

// USB 自动发现的 USB 描述
func USB() Descriptor {
	return Descriptor{Transport: TransportUSB, BaudRate: DefaultBaudRate}
}

// Serial 串口描述
func Serial(port string, baud int) Descriptor {
	return Descriptor{Transport: TransportSerial, Port: port, BaudRate: baud}
}

// ParseTransport 解析连接方式
func ParseTransport(s string) (Transport, error) {
	switch Transport(strings.ToLower(strings.TrimSpace(s))) {
	case TransportUSB, "":
		return TransportUSB, nil
	case TransportSerial, "rs232":
		return TransportSerial, nil
	}
	return "", fmt.Errorf("unknown reader transport: %s", s)
}

// Validate 检查参数
func (d Descriptor) Validate() error {
	switch d.Transport {
	case TransportUSB:
		return nil
	case TransportSerial:
		if d.Port == "" {
			return fmt.Errorf("serial port is required")
		}
		if d.BaudRate <= 0 {
			return fmt.Errorf("invalid baud rate: %d", d.BaudRate)
		}
		return nil
	}
	return fmt.Errorf("unknown reader transport: %s", d.Transport)
}

func (d Descriptor) String() string {
	if d.Transport == TransportSerial {
		return fmt.Sprintf("%s@%dbps", d.Port, d.BaudRate)
	}
	if d.Port != "" {
		return "USB(" + d.Port + ")"
	}
	return "USB"
}
