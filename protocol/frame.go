package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

var ErrCorrupt = errors.New("protocol: corrupt batch frame")

// EncodeBatch 把 ticks 编码为一个批量帧，body 为逐行文本，compressed 时 zstd 压缩
func EncodeBatch(dst []byte, ticks []Tick, compressed bool) ([]byte, error) {
	var body []byte
	for _, t := range ticks {
		body = AppendTick(body, t)
	}
	if compressed {
		body = compress(nil, body)
	}
	dst = append(dst, Magic)
	dst, err := AppendLenFlags(dst, len(body), compressed)
	if err != nil {
		return dst[:len(dst)-1], err
	}
	return append(dst, body...), nil
}

// Decode 从 buf 中解析尽可能多的完整 tick（文本行或批量帧），返回已消费字节数。
// 不完整的尾部不计入 consumed，调用方应保留到下次接收。
// fn 返回错误时立即停止，consumed 不包含当前行或帧。
func Decode(buf []byte, fn func(Tick) error) (consumed int, _ error) {
	for consumed < len(buf) {
		rest := buf[consumed:]
		if rest[0] == Magic {
			n, err := decodeBatch(rest, fn)
			if err != nil || n == 0 {
				return consumed, err
			}
			consumed += n
			continue
		}
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			return consumed, nil
		}
		t, err := ParseTick(rest[:i])
		if err != nil {
			return consumed, err
		}
		if err := fn(t); err != nil {
			return consumed, err
		}
		consumed += i + 1
	}
	return consumed, nil
}

// decodeBatch 返回 0, nil 表示帧不完整
func decodeBatch(b []byte, fn func(Tick) error) (int, error) {
	if len(b) < 3 {
		return 0, nil
	}
	c, length, compressed, err := DecodeLenFlags(b[1:])
	if err != nil {
		if errors.Is(err, errHeaderTooShort) {
			return 0, nil
		}
		return 0, err
	}
	total := 1 + c + length
	if len(b) < total {
		return 0, nil
	}
	body := b[1+c : total]
	if compressed {
		if body, err = decompress(body); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	for len(body) > 0 {
		i := bytes.IndexByte(body, '\n')
		if i < 0 {
			return 0, ErrCorrupt
		}
		t, err := ParseTick(body[:i])
		if err != nil {
			return 0, err
		}
		if err := fn(t); err != nil {
			return 0, err
		}
		body = body[i+1:]
	}
	return total, nil
}
