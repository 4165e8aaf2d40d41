package reader

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// 帧格式: 0x5A | PCW(4) | LEN(2) | DATA | CRC16(2)
//
// PCW: 协议类型(1) | 协议版本(1) | 标志+类别(1) | MID(1)
// CRC 覆盖 PCW 到 DATA。
const (
	frameHead     byte = 0x5A
	protoType     byte = 0x00
	protoVersion  byte = 0x01
	flagUpload    byte = 0x10
	categoryMask  byte = 0x0F
	frameOverhead      = 1 + 4 + 2 + 2
	maxDataLen         = 4096
)

// 消息类别
const (
	CategoryOP   byte = 0x01
	CategoryRFID byte = 0x02
)

// MID
const (
	midReaderInfo byte = 0x00 // OP: 查询读写器信息
	midStop       byte = 0xFF // OP: 停止
	midInventory  byte = 0x10 // RFID: 盘点请求
	midTagUpload  byte = 0x00 // RFID 上传: 标签数据
	midReadOver   byte = 0x01 // RFID 上传: 盘点结束
)

// 盘点参数 PID
const (
	pidReadTID byte = 0x02
	pidRSSI    byte = 0x01
	pidTID     byte = 0x03
)

const (
	inventorySingle byte = 0x00
	tidModeAuto     byte = 0x00
	defaultAntenna       = 0x00000001
)

var (
	errIncomplete = errors.New("incomplete frame")
	errBadCRC     = errors.New("frame crc mismatch")
)

// Frame 协议帧
type Frame struct {
	Category byte
	MID      byte
	Upload   bool
	Data     []byte
}

// Encode 编码为字节流
func (f Frame) Encode() []byte {
	buf := make([]byte, 0, frameOverhead+len(f.Data))
	ctrl := f.Category & categoryMask
	if f.Upload {
		ctrl |= flagUpload
	}
	buf = append(buf, frameHead, protoType, protoVersion, ctrl, f.MID)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.Data)))
	buf = append(buf, f.Data...)
	return binary.BigEndian.AppendUint16(buf, crc16(buf[1:]))
}

// decodeFrame 从 buf 头部解析一帧，返回消耗的字节数
//
// 头部不是 0x5A 或 CRC 错误时返回 consumed=1，调用方丢弃一个字节后重新同步。
func decodeFrame(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, errIncomplete
	}
	if buf[0] != frameHead {
		return Frame{}, 1, fmt.Errorf("unexpected frame head 0x%02X", buf[0])
	}
	if len(buf) < 7 {
		return Frame{}, 0, errIncomplete
	}
	n := int(binary.BigEndian.Uint16(buf[5:7]))
	if n > maxDataLen {
		return Frame{}, 1, fmt.Errorf("frame length %d exceeds limit", n)
	}
	total := frameOverhead + n
	if len(buf) < total {
		return Frame{}, 0, errIncomplete
	}
	if got, want := binary.BigEndian.Uint16(buf[total-2:total]), crc16(buf[1:total-2]); got != want {
		return Frame{}, 1, errBadCRC
	}

	ctrl := buf[3]
	data := make([]byte, n)
	copy(data, buf[7:7+n])
	return Frame{
		Category: ctrl & categoryMask,
		MID:      buf[4],
		Upload:   ctrl&flagUpload != 0,
		Data:     data,
	}, total, nil
}

// crc16 CRC-16/CCITT (poly 0x1021, init 0x0000)
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// frameDecoder 累积串口数据并切分帧
type frameDecoder struct {
	buf []byte
}

func (d *frameDecoder) feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// next 取下一帧，数据不足时 ok=false
func (d *frameDecoder) next() (Frame, bool) {
	for len(d.buf) > 0 {
		f, consumed, err := decodeFrame(d.buf)
		if errors.Is(err, errIncomplete) {
			return Frame{}, false
		}
		d.buf = d.buf[consumed:]
		if err == nil {
			return f, true
		}
	}
	return Frame{}, false
}

func (d *frameDecoder) reset() {
	d.buf = d.buf[:0]
}

// inventoryRequest 单次盘点 EPC 并附带读取 TID
func inventoryRequest(antennaMask uint32, tidWords int) Frame {
	data := binary.BigEndian.AppendUint32(nil, antennaMask)
	data = append(data, inventorySingle, pidReadTID, tidModeAuto, byte(tidWords))
	return Frame{Category: CategoryRFID, MID: midInventory, Data: data}
}

func stopRequest() Frame {
	return Frame{Category: CategoryOP, MID: midStop}
}

func readerInfoRequest() Frame {
	return Frame{Category: CategoryOP, MID: midReaderInfo}
}

// isResponseTo 是否为请求的应答帧
func (f Frame) isResponseTo(req Frame) bool {
	return !f.Upload && f.Category == req.Category && f.MID == req.MID
}

// result 应答帧的结果码，0 表示成功
func (f Frame) result() byte {
	if len(f.Data) == 0 {
		return 0xFF
	}
	return f.Data[0]
}

func (f Frame) isTagUpload() bool {
	return f.Upload && f.Category == CategoryRFID && f.MID == midTagUpload
}

func (f Frame) isReadOver() bool {
	return f.Upload && f.Category == CategoryRFID && f.MID == midReadOver
}

// TagReport 单个标签上报
type TagReport struct {
	EPC     string
	PC      uint16
	TID     string
	Antenna int
	RSSI    int
}

// parseTagReport 解析标签上传数据:
// EPC长度(2) | EPC | PC(2) | 天线(1) | 可选参数 [PID | 值]...
func parseTagReport(data []byte) (TagReport, error) {
	if len(data) < 2 {
		return TagReport{}, fmt.Errorf("tag upload too short: %d bytes", len(data))
	}
	epcLen := int(binary.BigEndian.Uint16(data[0:2]))
	pos := 2
	if len(data) < pos+epcLen+3 {
		return TagReport{}, fmt.Errorf("tag upload truncated: epc length %d", epcLen)
	}

	r := TagReport{EPC: strings.ToUpper(hex.EncodeToString(data[pos : pos+epcLen]))}
	pos += epcLen
	r.PC = binary.BigEndian.Uint16(data[pos : pos+2])
	pos += 2
	r.Antenna = int(data[pos])
	pos++

	for pos < len(data) {
		pid := data[pos]
		pos++
		switch pid {
		case pidRSSI:
			if pos >= len(data) {
				return r, fmt.Errorf("truncated rssi param")
			}
			r.RSSI = int(data[pos])
			pos++
		case pidTID:
			if pos+2 > len(data) {
				return r, fmt.Errorf("truncated tid param")
			}
			n := int(binary.BigEndian.Uint16(data[pos : pos+2]))
			pos += 2
			if pos+n > len(data) {
				return r, fmt.Errorf("truncated tid param: length %d", n)
			}
			r.TID = strings.ToUpper(hex.EncodeToString(data[pos : pos+n]))
			pos += n
		default:
			// 未知参数无法确定长度，忽略剩余部分
			return r, nil
		}
	}
	return r, nil
}
