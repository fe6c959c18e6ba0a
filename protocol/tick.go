// Package protocol 定义行情 tick 的线格式：单行文本 "TICK|SYM|PRICE\n"，
// 以及把多行打成一帧的批量格式（可选 zstd 压缩）。
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

const (
	tickTag = "TICK"
	sep     = '|'
)

var ErrMalformed = errors.New("protocol: malformed tick")

type Tick struct {
	Symbol string
	Price  float64
}

func (t Tick) String() string { return string(AppendTick(nil, t)) }

// AppendTick 追加 "TICK|SYM|PRICE\n"，价格保留两位小数
func AppendTick(dst []byte, t Tick) []byte {
	dst = append(dst, tickTag...)
	dst = append(dst, sep)
	dst = append(dst, t.Symbol...)
	dst = append(dst, sep)
	dst = strconv.AppendFloat(dst, t.Price, 'f', 2, 64)
	return append(dst, '\n')
}

// ParseTick 解析一行，末尾换行可有可无
func ParseTick(line []byte) (Tick, error) {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	parts := bytes.Split(line, []byte{sep})
	if len(parts) != 3 || string(parts[0]) != tickTag || len(parts[1]) == 0 {
		return Tick{}, fmt.Errorf("%q: %w", line, ErrMalformed)
	}
	price, err := strconv.ParseFloat(string(parts[2]), 64)
	if err != nil {
		return Tick{}, fmt.Errorf("%q: %w", line, ErrMalformed)
	}
	return Tick{Symbol: string(parts[1]), Price: price}, nil
}
