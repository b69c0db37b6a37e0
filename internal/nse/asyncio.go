package nse

// Adapted from internal/scan/worker_pool.go: the same bounded
// goroutine-pool-plus-channel shape, but each unit of work is a single
// wait request instead of a whole IP scan, and completions flow back
// through a single channel the Scheduler drains (§4.11 "Async I/O
// Layer", C11).

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// wakeMsg is what the Async I/O layer reports back for one completed
// wait: the task to resume and the arguments to hand to its resume call.
type wakeMsg struct {
	taskID int64
	args   []interface{}
}

// dialer is the seam tests substitute to avoid opening real sockets,
// mirroring the teacher's `var Scan = scanImpl` testability idiom.
type dialer interface {
	DialTimeout(network, address string, timeout time.Duration) (net.Conn, error)
}

type netDialer struct{}

func (netDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// AsyncIO is the bounded worker pool that actually performs the network
// waits tasks suspend on. It has no knowledge of the Scheduler's
// internal sets; it only ever produces wakeMsg values on outCh.
type AsyncIO struct {
	numWorkers int
	in         chan asyncJob
	outCh      chan wakeMsg
	dial       dialer
	wg         sync.WaitGroup
}

type asyncJob struct {
	taskID int64
	req    WaitRequest
}

// NewAsyncIO creates a pool with numWorkers goroutines draining jobs and
// publishing completions on a shared channel.
func NewAsyncIO(numWorkers int) *AsyncIO {
	return &AsyncIO{
		numWorkers: numWorkers,
		in:         make(chan asyncJob, 1024),
		outCh:      make(chan wakeMsg, 1024),
		dial:       netDialer{},
	}
}

// Start launches the worker goroutines. Call Stop when the scan is done.
func (a *AsyncIO) Start(ctx context.Context) {
	for i := 0; i < a.numWorkers; i++ {
		a.wg.Add(1)
		go a.worker(ctx)
	}
}

// Stop closes the job queue and waits for in-flight jobs to drain.
func (a *AsyncIO) Stop() {
	close(a.in)
	a.wg.Wait()
	close(a.outCh)
}

// submit hands one task's wait request to the pool. Never blocks the
// Scheduler: the channel is buffered generously and jobs are cheap.
func (a *AsyncIO) submit(taskID int64, req WaitRequest) {
	a.in <- asyncJob{taskID: taskID, req: req}
}

func (a *AsyncIO) worker(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case job, ok := <-a.in:
			if !ok {
				return
			}
			a.outCh <- a.perform(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (a *AsyncIO) perform(ctx context.Context, job asyncJob) wakeMsg {
	timeout := time.Duration(job.req.MillisTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	switch job.req.Kind {
	case WaitTimer:
		select {
		case <-time.After(timeout):
		case <-ctx.Done():
		}
		return wakeMsg{taskID: job.taskID}

	case WaitTCP:
		addr := fmt.Sprintf("%s:%d", job.req.Host.IP, job.req.Port.ID)
		conn, err := a.dial.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return wakeMsg{taskID: job.taskID, args: []interface{}{nil, err}}
		}
		conn.Close()
		return wakeMsg{taskID: job.taskID, args: []interface{}{[]byte{}, nil}}

	case WaitRead:
		addr := fmt.Sprintf("%s:%d", job.req.Host.IP, job.req.Port.ID)
		conn, err := a.dial.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return wakeMsg{taskID: job.taskID, args: []interface{}{nil, err}}
		}
		defer conn.Close()

		if len(job.req.Payload) > 0 {
			conn.SetWriteDeadline(time.Now().Add(timeout))
			if _, err := conn.Write(job.req.Payload); err != nil {
				return wakeMsg{taskID: job.taskID, args: []interface{}{nil, err}}
			}
		}

		conn.SetReadDeadline(time.Now().Add(timeout))
		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		if err != nil && err != io.EOF {
			return wakeMsg{taskID: job.taskID, args: []interface{}{nil, err}}
		}
		return wakeMsg{taskID: job.taskID, args: []interface{}{buf[:n], nil}}

	case WaitTLSCert:
		addr := fmt.Sprintf("%s:%d", job.req.Host.IP, job.req.Port.ID)
		rawConn, err := a.dial.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return wakeMsg{taskID: job.taskID, args: []interface{}{nil, err}}
		}
		defer rawConn.Close()

		tlsConn := tls.Client(rawConn, &tls.Config{InsecureSkipVerify: true, ServerName: job.req.Host.IP})
		tlsConn.SetDeadline(time.Now().Add(timeout))
		if err := tlsConn.Handshake(); err != nil {
			return wakeMsg{taskID: job.taskID, args: []interface{}{nil, err}}
		}

		certs := tlsConn.ConnectionState().PeerCertificates
		if len(certs) == 0 {
			return wakeMsg{taskID: job.taskID, args: []interface{}{nil, fmt.Errorf("no certificate presented by %s", addr)}}
		}
		return wakeMsg{taskID: job.taskID, args: []interface{}{[]byte(certs[0].Subject.CommonName), nil}}

	default:
		return wakeMsg{taskID: job.taskID, args: []interface{}{nil, fmt.Errorf("unknown wait kind %d", job.req.Kind)}}
	}
}
