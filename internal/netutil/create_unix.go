//go:build linux || darwin

package netutil

import (
	"fmt"
	"net"

	"github.com/legamerdc/llsock"
	"golang.org/x/sys/unix"
)

// CreateSocket 按 cfg 创建 descriptor：
//   - TCP 监听：SO_REUSEADDR，绑定 ip/网卡地址后 listen
//   - TCP 连接：TCP_NODELAY，connect（非阻塞下接受 EINPROGRESS）
//   - 组播接收：SO_REUSEADDR|SO_REUSEPORT，绑定组地址，入组另行调用 Join
//   - 组播发送：设置出口网卡与回环，connect 到组地址
//
// 失败时关闭 fd，返回 *llsock.SetupError。
func CreateSocket(cfg llsock.Config) (int, error) {
	fail := func(fd int, op string, err error) (int, error) {
		if fd >= 0 {
			unix.Close(fd)
		}
		return -1, &llsock.SetupError{Op: op, Config: cfg, Err: err}
	}

	sa, err := sockaddr(cfg)
	if err != nil {
		return fail(-1, "resolve", err)
	}

	typ, proto := unix.SOCK_STREAM, unix.IPPROTO_TCP
	if cfg.Multicast {
		typ, proto = unix.SOCK_DGRAM, unix.IPPROTO_UDP
	}
	fd, err := unix.Socket(unix.AF_INET, typ, proto)
	if err != nil {
		return fail(-1, "socket", err)
	}
	unix.CloseOnExec(fd)
	if !cfg.Blocking {
		if err := SetNonblock(fd, true); err != nil {
			return fail(fd, "nonblock", err)
		}
	}
	_ = setNoSigpipe(fd)

	if cfg.Listening {
		if err := SetReuseAddr(fd, true); err != nil {
			return fail(fd, "reuseaddr", err)
		}
		if cfg.Multicast {
			// 允许同机多个订阅者绑定同一组地址
			if err := SetReusePort(fd, true); err != nil {
				return fail(fd, "reuseport", err)
			}
		}
		if err := unix.Bind(fd, sa); err != nil {
			return fail(fd, "bind", err)
		}
		if !cfg.Multicast {
			if err := unix.Listen(fd, llsock.DefaultBacklog); err != nil {
				return fail(fd, "listen", err)
			}
		}
		return fd, nil
	}

	if cfg.Multicast {
		_ = SetMulticastLoop(fd, true)
		if cfg.Iface != "" {
			addr, err := IfaceAddr(cfg.Iface)
			if err != nil {
				return fail(fd, "iface", err)
			}
			if err := SetMulticastIface(fd, addr); err != nil {
				return fail(fd, "multicast_if", err)
			}
		}
	} else {
		_ = SetNoDelay(fd, true)
	}
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		return fail(fd, "connect", err)
	}
	return fd, nil
}

// Join 在 fd 上申请加入组播组，iface 为空时由内核选择网卡
func Join(fd int, group, iface string) error {
	g, err := ParseIPv4(group)
	if err != nil {
		return err
	}
	mreq := &unix.IPMreq{Multiaddr: g}
	if iface != "" {
		if mreq.Interface, err = IfaceAddr(iface); err != nil {
			return err
		}
	}
	return unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq)
}

func sockaddr(cfg llsock.Config) (*unix.SockaddrInet4, error) {
	if cfg.Port < 0 || cfg.Port > 0xFFFF {
		return nil, fmt.Errorf("port %d: %w", cfg.Port, llsock.ErrInvalidArgument)
	}
	sa := &unix.SockaddrInet4{Port: cfg.Port}
	var err error
	switch {
	case cfg.IP != "":
		sa.Addr, err = ParseIPv4(cfg.IP)
	case !cfg.Listening:
		err = fmt.Errorf("remote address required: %w", llsock.ErrInvalidArgument)
	case cfg.Iface != "":
		sa.Addr, err = IfaceAddr(cfg.Iface)
	}
	if err != nil {
		return nil, err
	}
	return sa, nil
}

// ParseIPv4 解析点分地址或主机名
func ParseIPv4(host string) ([4]byte, error) {
	var out [4]byte
	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return out, err
	}
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return out, fmt.Errorf("%s is not ipv4: %w", host, llsock.ErrInvalidArgument)
	}
	copy(out[:], ip4)
	return out, nil
}

// IfaceAddr 返回网卡的第一个 IPv4 地址
func IfaceAddr(name string) ([4]byte, error) {
	var out [4]byte
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return out, err
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return out, err
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil {
			copy(out[:], ip4)
			return out, nil
		}
	}
	return out, fmt.Errorf("iface %s has no ipv4 address: %w", name, llsock.ErrInvalidArgument)
}
