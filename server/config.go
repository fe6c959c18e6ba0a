package server

import (
	"time"

	"github.com/legamerdc/llsock/poller"
	"github.com/legamerdc/llsock/tcp"
)

// Handler 的所有方法都在 Poll/SendAndRecv 的调用上下文中同步执行
type Handler interface {
	OnOpen(s *tcp.Socket)
	// OnRecv 由所有 peer 共享，负责消费 s.Inbound() 并 ResetRecvSize
	OnRecv(s *tcp.Socket, rx time.Time)
	// OnClose 之后 s 已被关闭并移出集合
	OnClose(s *tcp.Socket, err error)
	// OnCycleDone 在一轮 SendAndRecv 有数据收到时调用一次
	OnCycleDone()
}

// HandlerFuncs 以可选函数字段实现 Handler，nil 字段忽略
type HandlerFuncs struct {
	Open      func(s *tcp.Socket)
	Recv      func(s *tcp.Socket, rx time.Time)
	Close     func(s *tcp.Socket, err error)
	CycleDone func()
}

func (h HandlerFuncs) OnOpen(s *tcp.Socket) {
	if h.Open != nil {
		h.Open(s)
	}
}

func (h HandlerFuncs) OnRecv(s *tcp.Socket, rx time.Time) {
	if h.Recv != nil {
		h.Recv(s, rx)
	}
}

func (h HandlerFuncs) OnClose(s *tcp.Socket, err error) {
	if h.Close != nil {
		h.Close(s, err)
	}
}

func (h HandlerFuncs) OnCycleDone() {
	if h.CycleDone != nil {
		h.CycleDone()
	}
}

type Option func(*Server)

// WithPoller 将监听 fd 与每个 peer 注册到 p，调用方可以用 p.Wait 代替固定 sleep
func WithPoller(p poller.Poller) Option {
	return func(s *Server) { s.pl = p }
}

// WithBufferSize 设置监听 socket 及其 accept 出的 peer 的缓冲大小
func WithBufferSize(n int) Option {
	return func(s *Server) { s.bufSize = n }
}
