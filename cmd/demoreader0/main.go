package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	fl "nread/lib/filelogger"
	"nread/lib/groupstore"
	. "nread/lib/logx"
	"nread/lib/nntp"
	"nread/lib/nntppool"
	"nread/lib/readercfg"
)

type printSinks struct {
	store *groupstore.GroupStore
	group string
}

func (p *printSinks) OverviewLine(rec nntp.OverviewRec) error {
	fmt.Printf("%7d  %-40.40s  %-30.30s  %s\n",
		rec.Num, rec.Subject, rec.From, rec.MsgID)
	if p.store != nil {
		return p.store.AddOfflineArticle(p.group, rec)
	}
	return nil
}

func (p *printSinks) HdrLine(field string, num uint64, value string) error {
	fmt.Printf("%7d  %s: %s\n", num, field, value)
	return nil
}

func (p *printSinks) ListGroup(gi nntp.GroupInfo) error {
	fmt.Printf("%-50s %8d %8d %s\n", gi.Name, gi.Lo, gi.Hi, gi.Status)
	if p.store != nil {
		return p.store.UpsertGroup(gi)
	}
	return nil
}

func (p *printSinks) GroupDescription(name, desc string) error {
	fmt.Printf("%-50s %s\n", name, desc)
	if p.store != nil {
		return p.store.SetPrettyName(name, desc)
	}
	return nil
}

func (p *printSinks) ArticleLine(line []byte) error {
	fmt.Printf("%s\n", line)
	return nil
}

func (p *printSinks) ArticleNum(num uint64) error {
	fmt.Println(num)
	return nil
}

func (p *printSinks) SearchHit(
	t nntp.SearchTerm, num uint64, value string) error {

	fmt.Printf("%7d  %s: %s\n", num, t.Field, value)
	return nil
}

// stdinPrompter asks for credentials on the terminal.
type stdinPrompter struct{}

func (stdinPrompter) PromptNNTPCreds(
	key nntp.CredKey) (nntp.Credentials, error) {

	r := bufio.NewReader(os.Stdin)
	fmt.Printf("username for %s: ", key.Server)
	user, err := r.ReadString('\n')
	if err != nil {
		return nntp.Credentials{}, err
	}
	fmt.Printf("password: ")
	pass, err := r.ReadString('\n')
	if err != nil {
		return nntp.Credentials{}, err
	}
	return nntp.Credentials{
		User: strings.TrimSpace(user),
		Pass: strings.TrimSpace(pass),
	}, nil
}

func main() {
	cfgpath := flag.String("cfg", "reader.toml", "config file path")
	server := flag.String("server", "main", "configured server name")
	op := flag.String("op", "list",
		"operation: list, group, article, listids, newgroups, search")
	group := flag.String("group", "", "newsgroup to operate on")
	msgid := flag.String("msgid", "", "message-id for article fetch")
	field := flag.String("field", "subject", "header field for search")
	pattern := flag.String("pattern", "*", "wildmat pattern for search")
	maxarts := flag.Int64("maxarts", 0, "overview article ceiling")

	flag.Parse()

	lgr, err := fl.NewFileLogger(os.Stderr, DEBUG, fl.ColorAuto)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fl.NewFileLogger error: %v\n", err)
		return
	}
	mlg := NewLogToX(lgr, "main")

	cfg, err := readercfg.LoadFile(*cfgpath)
	if err != nil {
		mlg.LogPrintln(CRITICAL, "readercfg.LoadFile error:", err)
		return
	}

	scfg, err := cfg.SessionConfig(*server, lgr)
	if err != nil {
		mlg.LogPrintln(CRITICAL, "bad server:", err)
		return
	}
	scfg.MaxAuthAttempts = 3

	mgr := nntp.NewAuthMgr(nil, lgr)
	cfg.Seed(*server, mgr)
	scfg.Creds = mgr

	var store *groupstore.GroupStore
	if cfg.Database != "" {
		store, err = groupstore.OpenAndPrepare(groupstore.Config{
			ConnStr: cfg.Database,
			Logger:  lgr,
		})
		if err != nil {
			mlg.LogPrintln(CRITICAL, "groupstore open error:", err)
			return
		}
		defer store.Close()
	}

	srv := cfg.Servers[*server]
	pool := nntppool.NewPool(nntppool.Config{
		Session:    scfg,
		Prompter:   stdinPrompter{},
		MaxConns:   srv.MaxConns,
		IdleExpire: srv.IdleExpire(),
		Logger:     lgr,
	})
	defer pool.Close()

	sinks := &printSinks{store: store, group: *group}
	req := &nntp.Request{
		Group:  *group,
		Over:   sinks,
		Art:    sinks,
		Groups: sinks,
		Nums:   sinks,
		Search: sinks,
	}
	if store != nil {
		req.Store = store
	}

	switch *op {
	case "list":
		req.Kind = nntp.ReqListGroups
		req.Group = ""
	case "group":
		req.Kind = nntp.ReqGroup
		req.MaxArticles = *maxarts
		if srv.MaxArticles > 0 && req.MaxArticles == 0 {
			req.MaxArticles = srv.MaxArticles
		}
	case "article":
		req.Kind = nntp.ReqArticle
		req.MsgID = nntp.FullMsgIDStr(*msgid)
	case "listids":
		req.Kind = nntp.ReqListIDs
	case "newgroups":
		req.Kind = nntp.ReqNewGroups
		req.Since = time.Now().AddDate(0, 0, -7)
	case "search":
		req.Kind = nntp.ReqSearch
		req.Terms = []nntp.SearchTerm{
			{Field: *field, Pattern: *pattern},
		}
	default:
		mlg.LogPrintln(CRITICAL, "unknown op:", *op)
		return
	}

	mlg.LogPrintf(NOTICE, "starting %s against %s", *op, scfg.Server)
	res, err := pool.Do(context.Background(), req)
	if err != nil {
		mlg.LogPrintf(ERROR, "request failed: %v (%d %s)",
			err, res.Code, res.Msg)
		return
	}
	mlg.LogPrintf(NOTICE, "done: %d %s", res.Code, res.Msg)
}
