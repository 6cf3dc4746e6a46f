package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ormasoftchile/padawan/pkg/fragment"
	"github.com/ormasoftchile/padawan/pkg/loop"
)

// Default channel settings.
const (
	DefaultBase     = "padawan_test"
	DefaultInterval = 10 * time.Millisecond
)

// Config locates the pipe pair and sets the poll cadence.
type Config struct {
	Dir              string        // directory holding the pipes; os.TempDir() when empty
	Base             string        // file name stem; DefaultBase when empty
	Interval         time.Duration // poll interval; DefaultInterval when zero
	HandshakeTimeout time.Duration // bound on waiting for the peer; zero waits forever
}

func (c Config) withDefaults() Config {
	if c.Dir == "" {
		c.Dir = os.TempDir()
	}
	if c.Base == "" {
		c.Base = DefaultBase
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// InPath is the pipe the workbench reads requests from.
func (c Config) InPath() string {
	c = c.withDefaults()
	return filepath.Join(c.Dir, c.Base+"_in")
}

// OutPath is the pipe the workbench writes responses to.
func (c Config) OutPath() string {
	c = c.withDefaults()
	return filepath.Join(c.Dir, c.Base+"_out")
}

// State of a Bridge.
type State int32

const (
	Uninitialized State = iota
	Listening
	Processing
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Bridge serves driver requests from the workbench's event loop. All
// methods except State must be called from the loop goroutine, or before
// Start and after the loop has stopped.
type Bridge struct {
	cfg    Config
	interp fragment.Interpreter
	self   fragment.Host
	logger *slog.Logger

	state atomic.Int32
	inFD  int
	out   *os.File
	buf   [1]byte

	ctx  context.Context
	loop *loop.Loop
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// New returns an uninitialized bridge that runs requests with interp and
// exposes self to them.
func New(cfg Config, interp fragment.Interpreter, self fragment.Host, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:    cfg.withDefaults(),
		interp: interp,
		self:   self,
		inFD:   -1,
	}
	for _, o := range opts {
		o(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	return b
}

// Config returns the effective configuration.
func (b *Bridge) Config() Config { return b.cfg }

// State returns the current state.
func (b *Bridge) State() State { return State(b.state.Load()) }

func (b *Bridge) setState(s State) { b.state.Store(int32(s)) }

// CreateChannels creates both pipes, replacing stale ones, and opens the
// input pipe. The output pipe is opened on the first response since the
// peer has to open its end first.
func (b *Bridge) CreateChannels() error {
	if b.State() != Uninitialized {
		return fmt.Errorf("create channels: bridge is %s", b.State())
	}
	if err := makeFIFO(b.cfg.InPath()); err != nil {
		return err
	}
	if err := makeFIFO(b.cfg.OutPath()); err != nil {
		removeIfExists(b.cfg.InPath())
		return err
	}
	fd, err := openReader(b.cfg.InPath())
	if err != nil {
		b.clean()
		return err
	}
	b.inFD = fd
	b.setState(Listening)
	b.logger.Info("test mode enabled", "in", b.cfg.InPath(), "out", b.cfg.OutPath())
	return nil
}

// Start schedules the first poll on l. Each poll schedules the next one
// until the bridge is closed.
func (b *Bridge) Start(ctx context.Context, l *loop.Loop) error {
	if b.State() != Listening {
		return fmt.Errorf("start: bridge is %s", b.State())
	}
	b.ctx = ctx
	b.loop = l
	l.After(b.cfg.Interval, b.poll)
	return nil
}

func (b *Bridge) poll() {
	defer func() {
		if b.State() != Closed && b.loop != nil {
			b.loop.After(b.cfg.Interval, b.poll)
		}
	}()
	ctx := b.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	b.Tick(ctx)
}

// Tick performs one poll: it reads at most one frame and answers it.
// Failures are logged and swallowed.
func (b *Bridge) Tick(ctx context.Context) {
	if b.State() != Listening {
		return
	}
	frame, err := b.readFrame()
	if err != nil {
		b.logger.Debug("dropping input", "error", err)
		return
	}
	if frame == nil {
		return
	}
	req, err := Decode(frame)
	if err != nil {
		b.logger.Debug("dropping frame", "error", err, "bytes", len(frame))
		return
	}

	b.setState(Processing)
	defer func() {
		if b.State() == Processing {
			b.setState(Listening)
		}
	}()
	resp := b.ProcessMessage(ctx, req)
	if err := b.WriteResponse(resp); err != nil {
		b.logger.Error("write response", "id", resp.ID, "error", err)
	}
}

// readFrame reads byte by byte until the sentinel. It returns nil when no
// data is waiting. Bytes that arrive without a sentinel before the pipe runs
// dry are discarded: a sender must write each frame in one piece.
func (b *Bridge) readFrame() ([]byte, error) {
	var frame []byte
	for {
		res, err := readOne(b.inFD, b.buf[:])
		if err != nil {
			return nil, fmt.Errorf("%w: read: %v", ErrChannelParse, err)
		}
		switch res {
		case readByte:
			if b.buf[0] == Sentinel {
				if len(frame) == 0 {
					return nil, nil
				}
				return frame, nil
			}
			frame = append(frame, b.buf[0])
		default:
			if len(frame) > 0 {
				return nil, fmt.Errorf("%w: %d bytes without sentinel", ErrChannelParse, len(frame))
			}
			return nil, nil
		}
	}
}

// ProcessMessage runs a request and builds its response. It never fails:
// errors raised by the request's code become the response's error field.
func (b *Bridge) ProcessMessage(ctx context.Context, req *Message) (resp *Message) {
	resp = NewResponse(req)
	defer func() {
		if r := recover(); r != nil {
			failed := false
			resp.Result = &failed
			resp.Output = nil
			resp.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if req.Type != TypeRequest {
		resp.Error = fmt.Sprintf("unexpected message type %q", req.Type)
		return resp
	}
	names, err := req.OutputNames()
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	start := time.Now()
	scope, err := b.interp.Exec(ctx, req.Code, req.Input, b.self)
	if err != nil {
		b.logger.Debug("request failed", "id", req.ID, "error", err)
		resp.Error = err.Error()
		return resp
	}
	out, err := scope.Pick(names)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	ok := true
	resp.Result = &ok
	resp.Output = out
	b.logger.Debug("request done", "id", req.ID, "outputs", len(out), "took", time.Since(start))
	return resp
}

// WriteResponse sends msg to the peer, opening the output pipe on first
// use. If msg cannot be encoded a minimal failure response carrying the
// encoding error is sent instead, so the peer always gets an answer.
func (b *Bridge) WriteResponse(msg *Message) error {
	if b.State() == Closed {
		return errors.New("write response: bridge is closed")
	}
	if b.out == nil {
		f, err := openWriter(b.cfg.OutPath(), b.cfg.HandshakeTimeout)
		if err != nil {
			return err
		}
		b.out = f
	}

	frame, err := Encode(msg)
	if err != nil {
		b.logger.Warn("response not encodable, sending fallback", "id", msg.ID, "error", err)
		fallback := NewResponse(msg)
		fallback.Error = err.Error()
		if frame, err = Encode(fallback); err != nil {
			return err
		}
	}

	if _, err := b.out.Write(frame); err != nil {
		// The peer went away; reopen on the next response.
		b.out.Close()
		b.out = nil
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// Close stops polling, closes both pipes and removes them from the
// filesystem. It is safe to call more than once.
func (b *Bridge) Close() error {
	if State(b.state.Swap(int32(Closed))) == Closed {
		return nil
	}
	return b.clean()
}

func (b *Bridge) clean() error {
	var errs []error
	if b.inFD >= 0 {
		if err := unix.Close(b.inFD); err != nil {
			errs = append(errs, err)
		}
		b.inFD = -1
	}
	if b.out != nil {
		if err := b.out.Close(); err != nil {
			errs = append(errs, err)
		}
		b.out = nil
	}
	for _, p := range []string{b.cfg.InPath(), b.cfg.OutPath()} {
		if err := removeIfExists(p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		b.logger.Warn("test mode teardown", "error", errors.Join(errs...))
		return errors.Join(errs...)
	}
	b.logger.Info("test mode disabled")
	return nil
}
