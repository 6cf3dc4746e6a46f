package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Driver is the peer side of the bridge: the external test process that
// sends code to a workbench running in test mode and reads the answers.
type Driver struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	in     *os.File // workbench's input pipe, written by the driver
	outFD  int      // workbench's output pipe, read by the driver
	nextID int64
	buf    [1]byte
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithDriverLogger sets the driver's logger.
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// Dial connects to a workbench whose bridge created the pipes described by
// cfg. The output pipe is opened for reading first so the workbench's first
// response does not wait on us.
func Dial(cfg Config, opts ...DriverOption) (*Driver, error) {
	cfg = cfg.withDefaults()
	d := &Driver{
		cfg:    cfg,
		outFD:  -1,
		nextID: 1_000_000_000 + rand.Int64N(9_000_000_000),
	}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}

	fd, err := openReader(cfg.OutPath())
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	in, err := openWriter(cfg.InPath(), cfg.HandshakeTimeout)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dial: %w", err)
	}
	d.outFD = fd
	d.in = in
	return d, nil
}

// Prepare builds the next request. Each prelude fragment is placed before
// code, in order, so helpers can be defined once and reused.
func (d *Driver) Prepare(code string, input map[string]any, output []string, preludes ...string) *Message {
	if len(preludes) > 0 {
		code = strings.Join(preludes, "\n") + "\n" + code
	}
	if input == nil {
		input = map[string]any{}
	}
	if output == nil {
		output = []string{}
	}
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.mu.Unlock()
	return &Message{ID: id, Type: TypeRequest, Code: code, Input: input, Output: output}
}

// Send writes msg as one frame.
func (d *Driver) Send(msg *Message) error {
	frame, err := Encode(msg)
	if err != nil {
		return err
	}
	d.logger.Debug("send", "msg", msg)
	if _, err := d.in.Write(frame); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Receive waits for the next frame on the output pipe.
func (d *Driver) Receive(ctx context.Context) (*Message, error) {
	var frame []byte
	for {
		res, err := readOne(d.outFD, d.buf[:])
		if err != nil {
			return nil, fmt.Errorf("receive: %w", err)
		}
		if res == readByte {
			if d.buf[0] == Sentinel {
				if len(frame) == 0 {
					continue
				}
				msg, err := Decode(frame)
				if err != nil {
					return nil, err
				}
				d.logger.Debug("receive", "msg", msg)
				return msg, nil
			}
			frame = append(frame, d.buf[0])
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.cfg.Interval):
		}
	}
}

// Response is a decoded answer to one request.
type Response struct {
	*Message
}

// Err returns the remote error of a failed response.
func (r *Response) Err() error {
	if r.Succeeded() {
		return nil
	}
	return &RemoteError{ID: r.ID, Msg: r.Error}
}

// Values returns the outputs named by names, in order, with nil for names
// the response does not carry.
func (r *Response) Values(names ...string) []any {
	out := r.OutputValues()
	vals := make([]any, len(names))
	for i, n := range names {
		vals[i] = out[n]
	}
	return vals
}

// RemoteError is an error raised by code running inside the workbench.
type RemoteError struct {
	ID  int64
	Msg string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("request %d: %s", e.ID, e.Msg)
}

// Call sends one request and waits for its response.
func (d *Driver) Call(ctx context.Context, code string, input map[string]any, output []string, preludes ...string) (*Response, error) {
	req := d.Prepare(code, input, output, preludes...)
	if err := d.Send(req); err != nil {
		return nil, err
	}
	msg, err := d.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if msg.ID != req.ID {
		return nil, fmt.Errorf("response id %d does not match request id %d", msg.ID, req.ID)
	}
	return &Response{Message: msg}, nil
}

// Expect runs code and returns the requested outputs in order. A remote
// failure is returned as a *RemoteError.
func (d *Driver) Expect(ctx context.Context, code string, input map[string]any, output ...string) ([]any, error) {
	resp, err := d.Call(ctx, code, input, output)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Values(output...), nil
}

// ExpectError runs code that is supposed to fail and returns the remote
// error text.
func (d *Driver) ExpectError(ctx context.Context, code string, input map[string]any) (string, error) {
	resp, err := d.Call(ctx, code, input, nil)
	if err != nil {
		return "", err
	}
	if resp.Succeeded() {
		return "", errors.New("error expected, request succeeded")
	}
	return resp.Error, nil
}

// Close releases both pipe ends.
func (d *Driver) Close() error {
	var errs []error
	if d.in != nil {
		errs = append(errs, d.in.Close())
		d.in = nil
	}
	if d.outFD >= 0 {
		errs = append(errs, unix.Close(d.outFD))
		d.outFD = -1
	}
	return errors.Join(errs...)
}
