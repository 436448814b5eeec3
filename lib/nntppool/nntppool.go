// Package nntppool keeps a small stable of connections per server,
// reusing idle ones and dropping those parked for too long.
package nntppool

import (
	"context"
	"errors"
	"sync"
	"time"

	. "nread/lib/logx"
	"nread/lib/nntp"
)

var ErrPoolClosed = errors.New("nntppool: pool is closed")

type Config struct {
	Session    nntp.SessionConfig
	Prompter   nntp.Prompter
	MaxConns   int           // 0 = default 2
	IdleExpire time.Duration // 0 = default 5 min
	Logger     LoggerX
}

type Pool struct {
	cfg Config
	log Logger

	mu     sync.Mutex
	idle   []*nntp.ClientConn
	closed bool

	sem chan struct{}
}

func NewPool(cfg Config) *Pool {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 2
	}
	if cfg.IdleExpire <= 0 {
		cfg.IdleExpire = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = NilLogger{}
	}
	return &Pool{
		cfg: cfg,
		log: NewLogToX(cfg.Logger, "nntppool"),
		sem: make(chan struct{}, cfg.MaxConns),
	}
}

// Get hands out a connection, waiting for a slot when all are busy.
// Every Get must be paired with Put.
func (p *Pool) Get(ctx context.Context) (*nntp.ClientConn, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.sem
		return nil, ErrPoolClosed
	}
	now := time.Now()
	for len(p.idle) > 0 {
		cc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if now.Sub(cc.LastUse()) < p.cfg.IdleExpire {
			p.mu.Unlock()
			return cc, nil
		}
		p.log.LogPrintf(DEBUG, "dropping expired idle connection")
		cc.Close()
	}
	p.mu.Unlock()

	cc, err := nntp.NewClientConn(p.cfg.Session, p.cfg.Prompter)
	if err != nil {
		<-p.sem
		return nil, err
	}
	return cc, nil
}

// Put returns a connection. Dead ones are closed instead of pooled.
func (p *Pool) Put(cc *nntp.ClientConn) {
	if !cc.Usable() {
		p.Discard(cc)
		return
	}
	defer func() { <-p.sem }()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cc.Close()
		return
	}
	p.idle = append(p.idle, cc)
	p.mu.Unlock()
}

// Discard closes a connection that shouldn't be reused and releases
// its slot.
func (p *Pool) Discard(cc *nntp.ClientConn) {
	cc.Close()
	<-p.sem
}

// Do grabs a connection, runs one request and returns it.
func (p *Pool) Do(ctx context.Context, req *nntp.Request) (nntp.Result, error) {
	cc, err := p.Get(ctx)
	if err != nil {
		return nntp.Result{Err: err}, err
	}
	res, err := cc.Do(ctx, req)
	p.Put(cc)
	return res, err
}

// Close drops every idle connection; in-flight ones are closed by
// their Put.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, cc := range idle {
		cc.Close()
	}
}
