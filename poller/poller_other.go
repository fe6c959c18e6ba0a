//go:build !linux && !darwin

package poller

import "time"

// sleepPoller 在没有 epoll/kqueue 的平台上退化为定时轮询
type sleepPoller struct {
	wake chan struct{}
}

func New() (Poller, error) {
	return &sleepPoller{wake: make(chan struct{}, 1)}, nil
}

func (p *sleepPoller) Register(fd FD) error   { return nil }
func (p *sleepPoller) Unregister(fd FD) error { return nil }

func (p *sleepPoller) Wait(timeout time.Duration) (int, error) {
	if timeout < 0 {
		<-p.wake
		return 0, nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.wake:
	}
	return 0, nil
}

func (p *sleepPoller) Wake() error {
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

func (p *sleepPoller) Close() error { return nil }
