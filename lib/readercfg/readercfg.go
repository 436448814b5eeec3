// Package readercfg loads reader configuration: servers to talk to,
// their credentials and limits, and the group subscription patterns.
package readercfg

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	"nread/lib/logx"
	"nread/lib/nntp"
)

type ServerCfg struct {
	Addr string `toml:"addr"` // host:port, may be socks5:// chain

	Username string `toml:"username"`
	Password string `toml:"password"`

	PushAuth            bool `toml:"pushauth"`
	SingleSignOn        bool `toml:"singlesignon"`
	ServerChecksCancels bool `toml:"servercheckscancels"`
	SkipNegotiation     bool `toml:"skipnegotiation"`

	MaxConns       int    `toml:"maxconns"`
	IdleExpireSecs int    `toml:"idleexpiresecs"`
	ChunkSize      uint64 `toml:"chunksize"`
	MaxArticles    int64  `toml:"maxarticles"`
}

type Cfg struct {
	Servers       map[string]ServerCfg `toml:"servers"`
	Subscriptions []string             `toml:"subscriptions"`
	Database      string               `toml:"database"` // postgres connstr
}

func Load(r io.Reader) (cfg Cfg, err error) {
	_, err = toml.DecodeReader(r, &cfg)
	if err != nil {
		return
	}
	err = cfg.check()
	return
}

func LoadFile(path string) (cfg Cfg, err error) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	return Load(f)
}

func (c *Cfg) check() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("no servers configured")
	}
	for name, sc := range c.Servers {
		if sc.Addr == "" {
			return fmt.Errorf("server %q has no addr", name)
		}
	}
	if _, err := c.CompileSubscriptions(); err != nil {
		return err
	}
	return nil
}

// SessionConfig builds the protocol-level config for a named server.
// Credential wiring is left to the caller since prompting is a UI
// concern; Seed pushes config credentials into an AuthMgr.
func (c *Cfg) SessionConfig(
	name string, lx logx.LoggerX) (nntp.SessionConfig, error) {

	sc, ok := c.Servers[name]
	if !ok {
		return nntp.SessionConfig{}, fmt.Errorf("unknown server %q", name)
	}
	return nntp.SessionConfig{
		Server:              sc.Addr,
		PushAuth:            sc.PushAuth,
		SingleSignOn:        sc.SingleSignOn,
		ServerChecksCancels: sc.ServerChecksCancels,
		SkipNegotiation:     sc.SkipNegotiation,
		ChunkSize:           sc.ChunkSize,
		Logger:              lx,
	}, nil
}

// Seed loads configured credentials for a server into mgr.
func (c *Cfg) Seed(name string, mgr *nntp.AuthMgr) {
	sc, ok := c.Servers[name]
	if !ok || sc.Username == "" {
		return
	}
	mgr.Preload(
		nntp.CredKey{Server: sc.Addr},
		nntp.Credentials{User: sc.Username, Pass: sc.Password})
}

func (sc *ServerCfg) IdleExpire() time.Duration {
	if sc.IdleExpireSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(sc.IdleExpireSecs) * time.Second
}

// subscription patterns use glob syntax with a leading '!' for
// exclusion; later patterns win, like wildmat does it.

type subPat struct {
	g      glob.Glob
	negate bool
}

type SubMatcher struct {
	pats []subPat
}

func (c *Cfg) CompileSubscriptions() (*SubMatcher, error) {
	m := &SubMatcher{}
	for _, p := range c.Subscriptions {
		neg := false
		if len(p) > 0 && p[0] == '!' {
			neg = true
			p = p[1:]
		}
		if p == "" {
			return nil, fmt.Errorf("empty subscription pattern")
		}
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, fmt.Errorf("bad subscription %q: %v", p, err)
		}
		m.pats = append(m.pats, subPat{g: g, negate: neg})
	}
	return m, nil
}

// Subscribed reports whether the group matches the subscription set.
func (m *SubMatcher) Subscribed(group string) (result bool) {
	for _, p := range m.pats {
		if p.g.Match(group) {
			result = !p.negate
		}
	}
	return
}
