//go:build linux

// Package reactor implements the single-threaded epoll loop that ties the
// graph, its signal ingesters and the control socket together: ingesters run
// first, the evaluator runs at most once per wakeup, subscribers are
// notified at most once and only after the evaluator.
package reactor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/routerwrt/lnmgr/internal/control"
	"github.com/routerwrt/lnmgr/internal/graph"
	"github.com/routerwrt/lnmgr/internal/ingest"
	"github.com/routerwrt/lnmgr/internal/lnlog"
)

const maxEvents = 16

// Reactor owns the epoll instance and every fd it multiplexes: the self-pipe
// used for cooperative shutdown, each signal ingester in priority order, and
// the control socket listener.
type Reactor struct {
	epfd      int
	pipeRead  int
	pipeWrite int

	g         *graph.Graph
	caps      graph.CapabilityChecker
	ingesters []ingest.Ingester
	ctrl      *control.Server

	log zerolog.Logger
}

// New creates the epoll instance, the self-pipe, and registers every fd for
// EPOLLIN. ingesters is consulted in order on every wakeup (rtnetlink before
// nl80211, matching the priority the protocol document requires).
func New(g *graph.Graph, caps graph.CapabilityChecker, ctrl *control.Server, ingesters []ingest.Ingester) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("create self-pipe: %w", err)
	}

	r := &Reactor{
		epfd:      epfd,
		pipeRead:  fds[0],
		pipeWrite: fds[1],
		g:         g,
		caps:      caps,
		ingesters: ingesters,
		ctrl:      ctrl,
		log:       lnlog.Named("reactor"),
	}

	if err := r.register(r.pipeRead); err != nil {
		r.Close()
		return nil, err
	}
	for _, ing := range ingesters {
		if err := r.register(ing.FD()); err != nil {
			r.Close()
			return nil, err
		}
	}
	if err := r.register(ctrl.FD()); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

func (r *Reactor) register(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

// Close tears down every owned fd: the control socket (which also unlinks
// its path), every ingester, the self-pipe and the epoll instance itself.
func (r *Reactor) Close() {
	r.ctrl.Close()
	for _, ing := range r.ingesters {
		_ = ing.Close()
	}
	unix.Close(r.pipeRead)
	unix.Close(r.pipeWrite)
	unix.Close(r.epfd)
}

// Run blocks until SIGINT/SIGTERM is delivered (or ctx is canceled), driving
// the wakeup discipline described in the package doc. It performs an initial
// full sync of every ingester before entering the poll loop.
func (r *Reactor) Run(ctx context.Context) error {
	for _, ing := range r.ingesters {
		if err := ing.Sync(r.g); err != nil {
			return fmt.Errorf("initial sync: %w", err)
		}
	}
	if err := r.g.Prepare(r.caps); err != nil {
		r.log.Warn().Err(err).Msg("initial prepare failed")
	}
	r.g.Evaluate(ctx)
	r.ctrl.Notify()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go r.forwardSignals(sigCh, done)
	go r.forwardCancel(ctx, done)
	defer close(done)

	events := make([]unix.EpollEvent, maxEvents)

	for {
		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		ready := make(map[int]uint32, n)
		for i := 0; i < n; i++ {
			ready[int(events[i].Fd)] = events[i].Events
		}

		if ev, ok := ready[r.pipeRead]; ok && ev&unix.EPOLLIN != 0 {
			r.drainPipe()
			r.log.Info().Msg("shutdown signal received")
			return nil
		}

		changed := false

		for _, ing := range r.ingesters {
			ev, ok := ready[ing.FD()]
			if !ok {
				continue
			}
			if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				if err := ing.Sync(r.g); err != nil {
					r.log.Warn().Err(err).Msg("ingester resync on error event failed")
				}
				changed = true
				continue
			}
			if ev&unix.EPOLLIN == 0 {
				continue
			}
			c, err := ing.Handle(r.g)
			if err != nil {
				r.log.Warn().Err(err).Msg("ingester handle failed")
			}
			if c {
				changed = true
			}
		}

		if ev, ok := ready[r.ctrl.FD()]; ok && ev&unix.EPOLLIN != 0 {
			mutated, err := r.ctrl.AcceptOne()
			if err != nil {
				r.log.Warn().Err(err).Msg("control accept failed")
			}
			if mutated {
				changed = true
			}
		}

		if changed {
			if err := r.g.Prepare(r.caps); err != nil {
				r.log.Warn().Err(err).Msg("prepare failed after change")
			}
			r.g.Evaluate(ctx)
			r.ctrl.Notify()
		}
	}
}

func (r *Reactor) drainPipe() {
	buf := make([]byte, 64)
	for {
		_, err := unix.Read(r.pipeRead, buf)
		if err != nil {
			return
		}
	}
}

// wake writes one byte to the self-pipe, the same mechanism a signal handler
// would use, so a canceled context unblocks an in-progress epoll_wait.
func (r *Reactor) wake() {
	_, _ = unix.Write(r.pipeWrite, []byte{0})
}

func (r *Reactor) forwardSignals(sigCh chan os.Signal, done chan struct{}) {
	select {
	case <-sigCh:
		r.wake()
	case <-done:
	}
}

func (r *Reactor) forwardCancel(ctx context.Context, done chan struct{}) {
	select {
	case <-ctx.Done():
		r.wake()
	case <-done:
	}
}
