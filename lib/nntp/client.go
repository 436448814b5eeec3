package nntp

import (
	"context"
	"net"
	"time"

	"nread/lib/bufreader"
	. "nread/lib/logx"
	"nread/lib/xdialer"
)

// Prompter resolves a suspended credential prompt, blocking until the
// user answered. Used by the synchronous ClientConn driver; async
// owners handle ActionSuspend themselves.
type Prompter interface {
	PromptNNTPCreds(key CredKey) (Credentials, error)
}

const defaultIOTimeout = 2 * time.Minute

// ClientConn owns one transport connection and drives a Session over
// it. Not safe for concurrent use; pool instances instead.
type ClientConn struct {
	cfg    SessionConfig
	log    Logger
	prompt Prompter

	d         xdialer.Dialer
	host      string
	ioTimeout time.Duration

	c    net.Conn
	src  *bufreader.LineSource
	s    *Session
	rbuf []byte

	lastUse time.Time
}

func NewClientConn(
	cfg SessionConfig, prompt Prompter) (*ClientConn, error) {

	d, _, host, err := xdialer.XDial(cfg.Server)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = NilLogger{}
	}
	cc := &ClientConn{
		cfg:       cfg,
		prompt:    prompt,
		d:         d,
		host:      host,
		ioTimeout: defaultIOTimeout,
		src:       bufreader.NewLineSource(),
		rbuf:      make([]byte, 4096),
	}
	cc.log = NewLogToX(cfg.Logger, "nntpconn")
	return cc, nil
}

func (cc *ClientConn) connected() bool {
	return cc.c != nil && cc.s != nil && !cc.s.Dead()
}

// LastUse tells when the connection last finished a request; pools use
// it for idle expiry.
func (cc *ClientConn) LastUse() time.Time { return cc.lastUse }

// Usable reports whether the connection survived its last request and
// can take another.
func (cc *ClientConn) Usable() bool { return cc.connected() }

func (cc *ClientConn) connect(ctx context.Context) error {
	type dialCtx interface {
		DialContext(ctx context.Context,
			network, addr string) (net.Conn, error)
	}
	var c net.Conn
	var err error
	if dc, ok := cc.d.(dialCtx); ok {
		c, err = dc.DialContext(ctx, "tcp", cc.host)
	} else {
		c, err = cc.d.Dial("tcp", cc.host)
	}
	if err != nil {
		return err
	}
	cc.log.LogPrintf(INFO, "connected to %s", cc.host)
	cc.c = c
	cc.src.Reset()
	cc.s = NewSession(cc.cfg)
	return nil
}

// Do runs one request to completion, connecting first if needed.
func (cc *ClientConn) Do(ctx context.Context, req *Request) (Result, error) {
	if !cc.connected() {
		cc.teardown()
		if err := cc.connect(ctx); err != nil {
			return Result{Err: err, Msg: "connect failed"}, err
		}
	}
	if err := cc.s.Begin(req); err != nil {
		return Result{Err: err}, err
	}

	var line []byte
	for {
		if err := ctx.Err(); err != nil {
			cc.teardown()
			return Result{Err: err, Msg: "cancelled"}, err
		}

		act := cc.s.Advance(line)
		line = nil

		switch act.Kind {
		case ActionSendCommand:
			if err := cc.write(ctx, act.Cmd); err != nil {
				cc.teardown()
				return Result{Err: err, Msg: "write failed"}, err
			}
		case ActionNeedMoreInput:
			l, err := cc.readLine(ctx)
			if err != nil {
				cc.teardown()
				return Result{Err: err, Msg: "read failed"}, err
			}
			line = l
		case ActionSuspend:
			if cc.prompt == nil {
				cc.s.AuthAborted()
				continue
			}
			creds, err := cc.prompt.PromptNNTPCreds(cc.s.credKey())
			if err != nil {
				cc.s.AuthAborted()
			} else {
				cc.s.SupplyCredentials(creds)
			}
		case ActionComplete:
			cc.lastUse = time.Now()
			return act.Res, act.Res.Err
		case ActionFatal:
			cc.teardown()
			return act.Res, act.Res.Err
		}
	}
}

func (cc *ClientConn) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(cc.ioTimeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		d = cd
	}
	return d
}

func (cc *ClientConn) write(ctx context.Context, p []byte) error {
	if err := cc.c.SetWriteDeadline(cc.deadline(ctx)); err != nil {
		return err
	}
	_, err := cc.c.Write(p)
	return err
}

func (cc *ClientConn) readLine(ctx context.Context) ([]byte, error) {
	for {
		line, ok, err := cc.src.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			return line, nil
		}
		if err := cc.c.SetReadDeadline(cc.deadline(ctx)); err != nil {
			return nil, err
		}
		n, err := cc.c.Read(cc.rbuf)
		if n > 0 {
			cc.src.Feed(cc.rbuf[:n])
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// Close shuts the connection down, QUITting politely when the session
// is idle.
func (cc *ClientConn) Close() error {
	if cc.c == nil {
		return nil
	}
	if cc.s != nil && cc.s.Idle() && cc.s.Quit() == nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second)
		var line []byte
		for {
			act := cc.s.Advance(line)
			line = nil
			if act.Kind == ActionSendCommand {
				if cc.write(ctx, act.Cmd) != nil {
					break
				}
				continue
			}
			if act.Kind == ActionNeedMoreInput {
				l, err := cc.readLine(ctx)
				if err != nil {
					break
				}
				line = l
				continue
			}
			break
		}
		cancel()
	}
	cc.teardown()
	return nil
}

func (cc *ClientConn) teardown() {
	if cc.c != nil {
		_ = cc.c.Close()
		cc.c = nil
	}
	if cc.s != nil {
		if !cc.s.Dead() {
			cc.s.Cancel()
		}
		cc.s = nil
	}
	cc.src.Reset()
}
