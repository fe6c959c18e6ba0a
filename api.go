// Package llsock 提供低延迟消息应用使用的非阻塞 socket 原语：
// 点对点连接（tcp）、多路复用接入（server）与组播（mcast）。
//
// 三者共享同一种模型：数据先进入定长缓冲，由调用方驱动的
// SendAndRecv 在同一执行上下文中回调业务逻辑。核心内部不启动 goroutine，也不加锁。
package llsock

import (
	"fmt"
	"log"
)

const (
	DefaultBufferSize = 1 << 20 // 每个 socket 的收/发缓冲（1 MiB）
	DefaultBacklog    = 1024
)

// Logger 为日志协作者：一行一个事件
// *log.Logger 与 *logging.Logger 均满足
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerOrDefault 在 l 为 nil 时返回标准库默认 logger
func LoggerOrDefault(l Logger) Logger {
	if l == nil {
		return log.Default()
	}
	return l
}

// Config 描述 descriptor 的构造方式，创建后不可变
type Config struct {
	IP        string // 远端地址或组播组地址
	Iface     string // 网卡名，如 "lo"；空表示任意网卡
	Port      int
	Multicast bool
	Listening bool
	Blocking  bool
}

func (c Config) String() string {
	return fmt.Sprintf("<ip=%s iface=%s port=%d multicast=%t listening=%t blocking=%t>",
		c.IP, c.Iface, c.Port, c.Multicast, c.Listening, c.Blocking)
}

// BufferedSocket 是 tcp.Socket 与 mcast.Socket 共有的能力集合
type BufferedSocket interface {
	Send(p []byte)
	SendAndRecv() bool
	FD() int
	Close() error
}
