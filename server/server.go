// Package server 实现连接多路复用：一个监听 socket 扇出到多个 peer。
//
// 广播策略不在这里：调用方遍历 Sockets() 自行 Send。
package server

import (
	"errors"

	"github.com/legamerdc/llsock"
	"github.com/legamerdc/llsock/poller"
	"github.com/legamerdc/llsock/tcp"
)

const listenerBufSize = 64

type Server struct {
	log     llsock.Logger
	h       Handler
	pl      poller.Poller
	bufSize int

	ln    *tcp.Socket
	peers []*tcp.Socket // accept 顺序

	cycling bool
}

func New(logger llsock.Logger, h Handler, opts ...Option) *Server {
	if h == nil {
		h = HandlerFuncs{}
	}
	s := &Server{
		log:     llsock.LoggerOrDefault(logger),
		h:       h,
		bufSize: llsock.DefaultBufferSize,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Listen 在 iface（空表示任意网卡）的 port 上建立非阻塞监听
func (s *Server) Listen(iface string, port int) error {
	if s.ln != nil {
		return &llsock.SetupError{Op: "listen", Config: s.ln.Config(), Err: llsock.ErrInvalidArgument}
	}
	// 监听 socket 不收发数据，缓冲只需最小容量
	ln := tcp.NewSize(s.log, listenerBufSize)
	if _, err := ln.Connect("", iface, port, true); err != nil {
		s.log.Printf("server: listen iface=%s port=%d failed: %v", iface, port, err)
		return err
	}
	if s.pl != nil {
		if err := s.pl.Register(ln.FD()); err != nil {
			ln.Close()
			return &llsock.SetupError{Op: "register", Config: ln.Config(), Err: err}
		}
	}
	s.ln = ln
	s.log.Printf("server: listening fd=%d iface=%s port=%d", ln.FD(), iface, ln.LocalPort())
	return nil
}

// Poll 做一次非阻塞 accept，新 peer 追加到集合末尾
func (s *Server) Poll() {
	if s.ln == nil {
		return
	}
	peer, err := s.ln.AcceptSize(s.bufSize)
	if err != nil {
		if !errors.Is(err, llsock.ErrWouldBlock) {
			s.log.Printf("server: accept failed: %v", err)
		}
		return
	}
	if s.pl != nil {
		if err := s.pl.Register(peer.FD()); err != nil {
			s.log.Printf("server: register fd=%d failed: %v", peer.FD(), err)
			peer.Close()
			return
		}
	}
	peer.SetHandler(s.h)
	s.peers = append(s.peers, peer)
	s.log.Printf("server: added peer fd=%d peers=%d", peer.FD(), len(s.peers))
	s.h.OnOpen(peer)
}

// SendAndRecv 按集合顺序驱动每个 peer；整轮结束后移除断开的 peer，
// 有数据收到时调用一次 OnCycleDone。任何回调内的重入调用直接返回 false。
func (s *Server) SendAndRecv() bool {
	if s.cycling {
		return false
	}
	s.cycling = true
	defer func() { s.cycling = false }()

	recv := false
	for _, p := range s.peers {
		if p.SendAndRecv() {
			recv = true
		}
	}

	// 回调中对其他 peer 的 SendAndRecv 也可能发现断开，整轮结束后统一扫描
	s.removeDead()
	if recv {
		s.h.OnCycleDone()
		// OnCycleDone 内的发送同样可能发现断开
		s.removeDead()
	}
	return recv
}

// removeDead 反复扫描直到没有新的断开 peer：OnClose 内的发送可能让其他 peer 断开
func (s *Server) removeDead() {
	for {
		var dead []*tcp.Socket
		n := 0
		for _, p := range s.peers {
			if p.Alive() {
				s.peers[n] = p
				n++
				continue
			}
			dead = append(dead, p)
		}
		if len(dead) == 0 {
			return
		}
		for i := n; i < len(s.peers); i++ {
			s.peers[i] = nil
		}
		s.peers = s.peers[:n]

		for _, p := range dead {
			fd, cause := p.FD(), p.Err()
			if s.pl != nil && fd >= 0 {
				_ = s.pl.Unregister(fd)
			}
			p.Close()
			s.log.Printf("server: removed peer fd=%d err=%v peers=%d", fd, cause, len(s.peers))
			s.h.OnClose(p, cause)
		}
	}
}

// Sockets 返回当前存活的 peer（accept 顺序），供调用方遍历广播。
// 返回的切片在下一次 Poll/SendAndRecv 前有效，调用方不应修改。
func (s *Server) Sockets() []*tcp.Socket { return s.peers }

func (s *Server) Len() int { return len(s.peers) }

// LocalPort 返回监听端口
func (s *Server) LocalPort() int {
	if s.ln == nil {
		return 0
	}
	return s.ln.LocalPort()
}

// Close 关闭所有 peer 与监听 socket
func (s *Server) Close() error {
	for _, p := range s.peers {
		if s.pl != nil {
			_ = s.pl.Unregister(p.FD())
		}
		p.Close()
	}
	s.peers = nil
	if s.ln == nil {
		return nil
	}
	if s.pl != nil {
		_ = s.pl.Unregister(s.ln.FD())
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}
