package link

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePort mimics a serial port with a read timeout: Read returns
// (0, nil) when no data is pending.
type fakePort struct {
	lock    sync.Mutex
	pending []byte
	written []string
	closed  bool
	flushed int
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.pending) == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.written = append(p.written, string(b))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) Flush() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.flushed++
	p.pending = nil
	return nil
}

func (p *fakePort) inject(s string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.pending = append(p.pending, s...)
}

func newTestLink(t *testing.T) (*Link, *fakePort) {
	port := &fakePort{}
	l, err := New(func() (Port, error) { return port, nil })
	require.NoError(t, err)
	l.Timeout = 50 * time.Millisecond
	return l, port
}

func TestSendTerminatesLine(t *testing.T) {
	l, port := newTestLink(t)
	require.NoError(t, l.Send("w axis0.controller.input_vel 1.0000"))
	require.Equal(t, []string{"w axis0.controller.input_vel 1.0000\n"}, port.written)
}

func TestQueryReadsOneLine(t *testing.T) {
	l, port := newTestLink(t)
	go func() {
		time.Sleep(5 * time.Millisecond)
		port.inject("2027.5 -1.25\r\n")
	}()
	reply, err := l.Query("f 0")
	require.NoError(t, err)
	require.Equal(t, "2027.5 -1.25", reply)
	require.Equal(t, []string{"f 0\n"}, port.written)
}

func TestQueryDiscardsStaleInput(t *testing.T) {
	l, port := newTestLink(t)
	// A reply left over from a timed-out exchange must not be
	// consumed by the next query.
	port.inject("stale reply\n")
	go func() {
		time.Sleep(5 * time.Millisecond)
		port.inject("0\n")
	}()
	reply, err := l.Query("r axis0.error")
	require.NoError(t, err)
	require.Equal(t, "0", reply)
	require.Equal(t, 1, port.flushed)
}

func TestQueryTimeout(t *testing.T) {
	l, _ := newTestLink(t)
	start := time.Now()
	_, err := l.Query("r axis0.error")
	require.Equal(t, ErrTimeout, err)
	require.True(t, time.Since(start) >= l.Timeout)
}

// babblingPort streams bytes forever without ever sending a line
// break.
type babblingPort struct {
	fakePort
	delay time.Duration
}

func (p *babblingPort) Read(b []byte) (int, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	b[0] = 'x'
	return 1, nil
}

func TestQueryTimeoutWhileBytesKeepArriving(t *testing.T) {
	port := &babblingPort{delay: time.Millisecond}
	l, err := New(func() (Port, error) { return port, nil })
	require.NoError(t, err)
	l.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err = l.Query("r axis0.error")
	require.Equal(t, ErrTimeout, err)
	require.True(t, time.Since(start) < time.Second,
		"query did not return near its deadline")
}

func TestQueryCapsReplyLength(t *testing.T) {
	port := &babblingPort{}
	l, err := New(func() (Port, error) { return port, nil })
	require.NoError(t, err)
	l.Timeout = time.Minute

	_, err = l.Query("r axis0.error")
	garbled, ok := err.(*GarbledError)
	require.True(t, ok, "expected GarbledError, got %v", err)
	require.Len(t, garbled.Reply, maxReplyLen)
}

func TestQueryGarbledReply(t *testing.T) {
	l, port := newTestLink(t)
	go func() {
		time.Sleep(5 * time.Millisecond)
		port.inject("\xff\xfe\x00\n")
	}()
	_, err := l.Query("r axis0.error")
	require.Error(t, err)
	garbled, ok := err.(*GarbledError)
	require.True(t, ok, "expected GarbledError, got %v", err)
	require.NotEmpty(t, garbled.Error())
}

func TestReopen(t *testing.T) {
	var opened []*fakePort
	open := func() (Port, error) {
		port := &fakePort{}
		opened = append(opened, port)
		return port, nil
	}
	l, err := New(open)
	require.NoError(t, err)
	require.NoError(t, l.Reopen())
	require.Len(t, opened, 2)
	require.True(t, opened[0].closed)
	require.False(t, opened[1].closed)

	require.NoError(t, l.Close())
	require.True(t, opened[1].closed)
	require.Equal(t, ErrClosed, l.Send("sr"))
}
