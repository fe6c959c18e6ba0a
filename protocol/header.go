package protocol

import (
	"encoding/binary"
	"errors"
)

// 批量帧：Magic(1B) + LenFlags 头 + body
//
// LenFlags 短头（2B，BE）：
//   bit15: Compressed
//   bit14: 保留
//   bit13: Ext=0
//   bit12..0: Len13 (0..8191)
// 长头（4B，BE）：
//   bit31: Compressed
//   bit30: 保留
//   bit29: Ext=1
//   bit28..0: Len29
//
// Magic 不是可打印字符，不会与文本行的首字节冲突。

const (
	Magic byte = 0xB7

	shortHeadMaxLen = (1 << 13) - 1
	longHeadMaxLen  = (1 << 29) - 1
)

var (
	errHeaderTooShort   = errors.New("protocol: header too short")
	errLengthOutOfRange = errors.New("protocol: length out of range")
)

// AppendLenFlags 追加 2 或 4 字节头部
func AppendLenFlags(dst []byte, length int, compressed bool) ([]byte, error) {
	if length < 0 || length > longHeadMaxLen {
		return dst, errLengthOutOfRange
	}
	if length <= shortHeadMaxLen {
		v := uint16(length) & 0x1FFF
		if compressed {
			v |= 1 << 15
		}
		return binary.BigEndian.AppendUint16(dst, v), nil
	}
	var v uint32 = 1 << 29
	if compressed {
		v |= 1 << 31
	}
	v |= uint32(length) & 0x1FFFFFFF
	return binary.BigEndian.AppendUint32(dst, v), nil
}

// DecodeLenFlags 返回头部字节数、body 长度和压缩标志
func DecodeLenFlags(b []byte) (consumed, length int, compressed bool, _ error) {
	if len(b) < 2 {
		return 0, 0, false, errHeaderTooShort
	}
	v16 := binary.BigEndian.Uint16(b[:2])
	if (v16>>13)&0x1 == 0 {
		return 2, int(v16 & 0x1FFF), v16>>15 == 1, nil
	}
	if len(b) < 4 {
		return 0, 0, false, errHeaderTooShort
	}
	v32 := binary.BigEndian.Uint32(b[:4])
	return 4, int(v32 & 0x1FFFFFFF), v32>>31 == 1, nil
}
