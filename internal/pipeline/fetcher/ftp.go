package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"

	"symdir/config"
)

// FTPSource logs into the NASDAQ trader FTP server and reads from its
// symbol directory.
type FTPSource struct {
	cfg     config.FTPConfig
	timeout time.Duration
}

func NewFTPSource(cfg config.FTPConfig, timeout time.Duration) *FTPSource {
	return &FTPSource{cfg: cfg, timeout: timeout}
}

func (s *FTPSource) Name() string { return config.SourceFTP }

func (s *FTPSource) addr() string {
	port := s.cfg.Port
	if port == 0 {
		port = 21
	}
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
}

// Open dials through a func that pins every connection (control and data)
// to ctx: each gets ctx's deadline, and all are closed once ctx is done, so
// a server that stops answering cannot outlive the fetch timeout.
func (s *FTPSource) Open(ctx context.Context) (Session, error) {
	conns := &boundConns{}
	stop := context.AfterFunc(ctx, conns.closeAll)

	dial := func(network, address string) (net.Conn, error) {
		d := net.Dialer{Timeout: s.timeout}
		c, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			if err := c.SetDeadline(deadline); err != nil {
				c.Close()
				return nil, err
			}
		}
		if !conns.add(c) {
			return nil, net.ErrClosed
		}
		return c, nil
	}

	fail := func(conn *ftp.ServerConn, op string, err error) (Session, error) {
		if conn != nil {
			conn.Quit()
		}
		stop()
		conns.closeAll()
		return nil, fmt.Errorf("%s: %w", op, boundErr(ctx, err))
	}

	conn, err := ftp.Dial(s.addr(), ftp.DialWithDialFunc(dial))
	if err != nil {
		return fail(nil, "dial "+s.addr(), err)
	}
	if err := conn.Login(s.cfg.User, s.cfg.Password); err != nil {
		return fail(conn, "login as "+s.cfg.User, err)
	}
	if s.cfg.Dir != "" {
		if err := conn.ChangeDir(s.cfg.Dir); err != nil {
			return fail(conn, "cwd "+s.cfg.Dir, err)
		}
	}
	return &ftpSession{conn: conn, ctx: ctx, stop: stop, conns: conns}, nil
}

// boundConns tracks the connections opened for one session.
type boundConns struct {
	mu     sync.Mutex
	conns  []net.Conn
	closed bool
}

// add reports false, closing c, when the session is already torn down.
func (b *boundConns) add(c net.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		c.Close()
		return false
	}
	b.conns = append(b.conns, c)
	return true
}

func (b *boundConns) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, c := range b.conns {
		c.Close()
	}
	b.conns = nil
}

// boundErr reports a failure caused by ctx ending as a ctx error, keeping
// the network error text.
func boundErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	ctxErr := ctx.Err()
	if ctxErr == nil {
		// conn deadlines can fire just before ctx's own timer
		if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
			ctxErr = context.DeadlineExceeded
		}
	}
	if ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

type ftpSession struct {
	conn  *ftp.ServerConn
	ctx   context.Context
	stop  func() bool
	conns *boundConns
}

func (s *ftpSession) Retrieve(ctx context.Context, file string) ([]byte, error) {
	resp, err := s.conn.Retr(file)
	if err != nil {
		return nil, boundErr(ctx, err)
	}
	defer resp.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := resp.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, boundErr(ctx, err)
	}
	return data, nil
}

func (s *ftpSession) Close() error {
	err := s.conn.Quit()
	s.stop()
	s.conns.closeAll()
	return boundErr(s.ctx, err)
}
