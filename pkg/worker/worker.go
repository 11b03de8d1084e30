// Package worker drives the request loop: it reads requests from the input
// stream, runs them one at a time and writes one response per request.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/guregu/null.v3"

	"github.com/entrhq/browserd/pkg/logging"
	"github.com/entrhq/browserd/pkg/protocol"
	"github.com/entrhq/browserd/pkg/sandbox"
	"github.com/entrhq/browserd/pkg/sequencer"
)

// Session is closed when the worker shuts down.
type Session interface {
	Close()
}

// Executor runs exec requests.
type Executor interface {
	Exec(args []string, env map[string]*string) (*sandbox.Result, error)
}

// PingState is the state reported by ping.
type PingState struct {
	Alive bool `json:"alive"`
}

// ExecState is the state reported after every exec.
type ExecState struct {
	PageURL null.String `json:"pageUrl"`
}

// Worker answers ping, exec and close requests.
type Worker struct {
	session Session
	exec    Executor
	enc     *protocol.Encoder
	seq     *sequencer.Sequencer

	closeOnce sync.Once
	logger    *logging.Logger
}

// New creates a worker writing responses to out.
func New(session Session, exec Executor, out io.Writer) *Worker {
	return &Worker{
		session: session,
		exec:    exec,
		enc:     protocol.NewEncoder(out),
		seq:     sequencer.New(sequencer.DefaultQueueSize),
		logger:  logging.NewLogger("worker"),
	}
}

// Serve reads requests from in until the stream ends, a close request is
// handled, or ctx is cancelled. Requests already queued when the stream ends
// are still answered. The session is closed before Serve returns.
func (w *Worker) Serve(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	requests := make(chan *protocol.Request)
	readErr := make(chan error, 1)
	go w.scan(ctx, in, requests, readErr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return w.seq.Run(gctx)
	})
	g.Go(func() error {
		defer w.seq.CloseInput()
		return w.dispatch(gctx, requests, readErr)
	})

	err := g.Wait()
	w.closeSession()
	if errors.Is(err, context.Canceled) {
		w.logger.Infof("request loop stopped")
		return nil
	}
	return err
}

// scan decodes requests until the stream ends. It may outlive Serve while
// blocked on a read; it exits once the stream is closed.
func (w *Worker) scan(ctx context.Context, in io.Reader, out chan<- *protocol.Request, errc chan<- error) {
	defer close(out)
	dec := protocol.NewDecoder(bufio.NewReader(in))
	for {
		req, err := dec.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				errc <- err
			}
			return
		}
		select {
		case out <- req:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, requests <-chan *protocol.Request, readErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-requests:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
				}
				w.logger.Debugf("input closed, draining queued requests")
				return nil
			}
			if err := w.seq.Submit(ctx, w.task(req)); err != nil {
				if errors.Is(err, sequencer.ErrClosed) || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

func (w *Worker) task(req *protocol.Request) sequencer.Task {
	return func(context.Context) bool {
		resp, stop := w.Handle(req)
		if err := w.enc.Encode(resp); err != nil {
			w.logger.Errorf("failed to write response %s: %v", req.IDString(), err)
		}
		return stop
	}
}

// Handle answers one request. stop reports whether the worker should stop
// taking requests.
func (w *Worker) Handle(req *protocol.Request) (resp *protocol.Response, stop bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorf("request %s panicked: %v", req.IDString(), r)
			resp, stop = protocol.Failure(req, fmt.Sprintf("panic: %v", r)), false
		}
	}()

	w.logger.Debugf("request %s: %s", req.IDString(), req.Method)

	if req.Invalid != nil {
		return protocol.Failure(req, req.Invalid.Error()), false
	}

	switch req.Method {
	case protocol.MethodPing:
		resp = protocol.Success(req)
		resp.State = PingState{Alive: true}
		return resp, false
	case protocol.MethodExec:
		return w.handleExec(req), false
	case protocol.MethodClose:
		w.closeSession()
		return protocol.Success(req), true
	default:
		return protocol.Rejected(req, "Unknown method: "+req.Method), false
	}
}

func (w *Worker) handleExec(req *protocol.Request) *protocol.Response {
	params, err := req.ParseExecParams()
	if err != nil {
		return protocol.Failure(req, err.Error())
	}

	res, err := w.exec.Exec(params.Args, params.Env)
	switch {
	case errors.Is(err, sandbox.ErrNoCode):
		return protocol.Rejected(req, err.Error())
	case err != nil:
		w.logger.Warnf("exec %s failed before running: %v", req.IDString(), err)
		return protocol.Failure(req, err.Error())
	}

	return &protocol.Response{
		ID:     req.ID,
		OK:     res.OK,
		Stdout: res.Stdout,
		Stderr: res.Stderr,
		Error:  res.Error,
		State:  ExecState{PageURL: res.PageURL},
	}
}

func (w *Worker) closeSession() {
	w.closeOnce.Do(func() {
		w.logger.Infof("closing browser session")
		w.session.Close()
	})
}
