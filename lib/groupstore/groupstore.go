// Package groupstore keeps the local reader state in PostgreSQL:
// known groups with their watermarks and pretty names, plus which
// articles are stored offline.
package groupstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/luna-duclos/instrumentedsql"

	"nread/lib/hashtools"
	. "nread/lib/logx"
	"nread/lib/nntp"
)

const currentVersion = "nread-groupstore-v1"

type Config struct {
	ConnStr         string
	ConnMaxLifetime float64
	MaxIdleConns    int32
	MaxOpenConns    int32
	EnableTracing   bool
	Logger          LoggerX
}

type GroupStore struct {
	DB *sqlx.DB

	log Logger
	id  string
}

var instrumentedOnce sync.Once

func registerInstrumented(lgr Logger) {
	instrumentedOnce.Do(func() {
		logger := instrumentedsql.LoggerFunc(
			func(_ context.Context, msg string, keyvals ...interface{}) {
				lgr.LogPrintf(DEBUG, "SQL: %s %v", msg, keyvals)
			})
		sql.Register("instrumented-postgres",
			instrumentedsql.WrapDriver(&pq.Driver{},
				instrumentedsql.WithLogger(logger),
				instrumentedsql.WithOpsExcluded(instrumentedsql.OpSQLRowsNext)))
	})
}

func Open(cfg Config) (*GroupStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = NilLogger{}
	}
	drv := "postgres"
	lgr := NewLogToX(cfg.Logger, "groupstore")
	if cfg.EnableTracing {
		registerInstrumented(lgr)
		drv = "instrumented-postgres"
	}
	db, err := sqlx.Open(drv, cfg.ConnStr)
	if err != nil {
		return nil, err
	}
	if cfg.ConnMaxLifetime > 0.0 {
		db.SetConnMaxLifetime(
			time.Duration(float64(time.Second) * cfg.ConnMaxLifetime))
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(int(cfg.MaxIdleConns))
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxOpenConns))
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	g := &GroupStore{DB: db, log: lgr}
	g.id = fmt.Sprintf("groupstore.%p", g.DB)
	return g, nil
}

func (g *GroupStore) Close() error {
	return g.DB.Close()
}

func (g *GroupStore) ID() string { return g.id }

// OpenAndPrepare opens the database and initializes the schema if it
// isn't there yet.
func OpenAndPrepare(cfg Config) (g *GroupStore, err error) {
	g, err = Open(cfg)
	if err != nil {
		err = fmt.Errorf("error opening: %v", err)
		return
	}
	defer func() {
		if err != nil {
			g.Close()
			g = nil
		}
	}()

	valid, err := g.isValidDB()
	if err != nil {
		err = fmt.Errorf("error validating: %v", err)
		return
	}
	if !valid {
		g.log.LogPrint(NOTICE,
			"uninitialized groupstore db, attempting to initialize")

		if err = g.initDB(); err != nil {
			return
		}
		valid, err = g.isValidDB()
		if err != nil {
			err = fmt.Errorf("error validating (2): %v", err)
			return
		}
		if !valid {
			err = errors.New(
				"database still not valid after initialization")
			return
		}
	}
	err = g.checkVersion()
	return
}

func (g *GroupStore) isValidDB() (bool, error) {
	var exists bool
	err := g.DB.Get(&exists, `SELECT EXISTS (
		SELECT 1 FROM pg_tables
			WHERE schemaname = 'public' AND tablename = 'nr_meta')`)
	return exists, err
}

func (g *GroupStore) checkVersion() error {
	var ver string
	err := g.DB.Get(&ver,
		`SELECT val FROM nr_meta WHERE key = 'version'`)
	if err != nil {
		return fmt.Errorf("version read fail: %v", err)
	}
	if ver != currentVersion {
		return fmt.Errorf("unsupported db version %q", ver)
	}
	return nil
}

func (g *GroupStore) initDB() error {
	stmts := []string{
		`CREATE TABLE nr_meta (
			key  TEXT PRIMARY KEY,
			val  TEXT NOT NULL
		)`,
		`INSERT INTO nr_meta (key, val)
			VALUES ('version', '` + currentVersion + `')`,
		`CREATE TABLE nr_groups (
			name       TEXT PRIMARY KEY,
			hiwm       BIGINT NOT NULL DEFAULT 0,
			lowm       BIGINT NOT NULL DEFAULT 0,
			status     TEXT NOT NULL DEFAULT '',
			pretty     TEXT NOT NULL DEFAULT '',
			subscribed BOOLEAN NOT NULL DEFAULT FALSE,
			updated    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE nr_articles (
			group_name TEXT NOT NULL,
			msgid_hash TEXT NOT NULL,
			msgid      TEXT NOT NULL,
			anum       BIGINT NOT NULL DEFAULT 0,
			subject    TEXT NOT NULL DEFAULT '',
			afrom      TEXT NOT NULL DEFAULT '',
			adate      TEXT NOT NULL DEFAULT '',
			stored     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (group_name, msgid_hash)
		)`,
	}
	for _, q := range stmts {
		if _, err := g.DB.Exec(q); err != nil {
			return fmt.Errorf("schema statement failed: %v", err)
		}
	}
	return nil
}

// msgidKey hashes a message-id into the fixed-width key column so
// arbitrarily long ids don't bloat the index.
func msgidKey(msgid nntp.FullMsgIDStr) string {
	return hashtools.HashToString([]byte(msgid))
}

func (g *GroupStore) UpsertGroup(gi nntp.GroupInfo) error {
	_, err := g.DB.Exec(`INSERT INTO nr_groups (name, hiwm, lowm, status, updated)
			VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (name) DO UPDATE
			SET hiwm = EXCLUDED.hiwm, lowm = EXCLUDED.lowm,
				status = EXCLUDED.status, updated = NOW()`,
		gi.Name, int64(gi.Hi), int64(gi.Lo), gi.Status)
	return err
}

func (g *GroupStore) SetPrettyName(name, pretty string) error {
	_, err := g.DB.Exec(
		`UPDATE nr_groups SET pretty = $2 WHERE name = $1`,
		name, pretty)
	return err
}

func (g *GroupStore) SetSubscribed(name string, sub bool) error {
	_, err := g.DB.Exec(
		`UPDATE nr_groups SET subscribed = $2 WHERE name = $1`,
		name, sub)
	return err
}

type GroupRow struct {
	Name       string `db:"name"`
	HiWM       int64  `db:"hiwm"`
	LoWM       int64  `db:"lowm"`
	Status     string `db:"status"`
	Pretty     string `db:"pretty"`
	Subscribed bool   `db:"subscribed"`
}

func (g *GroupStore) GetGroup(name string) (gr GroupRow, err error) {
	err = g.DB.Get(&gr, `SELECT name, hiwm, lowm, status, pretty, subscribed
		FROM nr_groups WHERE name = $1`, name)
	return
}

func (g *GroupStore) ListKnownGroups() (grs []GroupRow, err error) {
	err = g.DB.Select(&grs,
		`SELECT name, hiwm, lowm, status, pretty, subscribed
			FROM nr_groups ORDER BY name`)
	return
}

// AddOfflineArticle records that an article summary is stored locally.
func (g *GroupStore) AddOfflineArticle(
	group string, rec nntp.OverviewRec) error {

	_, err := g.DB.Exec(`INSERT INTO nr_articles
			(group_name, msgid_hash, msgid, anum, subject, afrom, adate)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (group_name, msgid_hash) DO UPDATE
			SET anum = EXCLUDED.anum, subject = EXCLUDED.subject,
				afrom = EXCLUDED.afrom, adate = EXCLUDED.adate`,
		group, msgidKey(rec.MsgID), string(rec.MsgID),
		int64(rec.Num), rec.Subject, rec.From, rec.Date)
	return err
}

// HasArticleOffline implements nntp.Store.
func (g *GroupStore) HasArticleOffline(
	group string, msgid nntp.FullMsgIDStr) bool {

	var exists bool
	err := g.DB.Get(&exists, `SELECT EXISTS (
		SELECT 1 FROM nr_articles
			WHERE group_name = $1 AND msgid_hash = $2)`,
		group, msgidKey(msgid))
	if err != nil {
		g.log.LogPrintf(WARN, "offline lookup failed: %v", err)
		return false
	}
	return exists
}

// RemoveArticle implements nntp.Store.
func (g *GroupStore) RemoveArticle(
	group string, msgid nntp.FullMsgIDStr) error {

	_, err := g.DB.Exec(`DELETE FROM nr_articles
		WHERE group_name = $1 AND msgid_hash = $2`,
		group, msgidKey(msgid))
	return err
}

var _ nntp.Store = (*GroupStore)(nil)
