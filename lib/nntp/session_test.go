package nntp

import (
	"fmt"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

// collector implements every sink and just records what arrived.
type collector struct {
	over   []OverviewRec
	hdrs   []string
	art    []string
	groups []GroupInfo
	descs  map[string]string
	nums   []uint64
	hits   []string
}

func (c *collector) OverviewLine(rec OverviewRec) error {
	c.over = append(c.over, rec)
	return nil
}

func (c *collector) HdrLine(field string, num uint64, value string) error {
	c.hdrs = append(c.hdrs, fmt.Sprintf("%s %d %s", field, num, value))
	return nil
}

func (c *collector) ArticleLine(line []byte) error {
	c.art = append(c.art, string(line))
	return nil
}

func (c *collector) ListGroup(gi GroupInfo) error {
	c.groups = append(c.groups, gi)
	return nil
}

func (c *collector) GroupDescription(name, desc string) error {
	if c.descs == nil {
		c.descs = make(map[string]string)
	}
	c.descs[name] = desc
	return nil
}

func (c *collector) ArticleNum(num uint64) error {
	c.nums = append(c.nums, num)
	return nil
}

func (c *collector) SearchHit(t SearchTerm, num uint64, value string) error {
	c.hits = append(c.hits, fmt.Sprintf("%s %d %s", t.Field, num, value))
	return nil
}

type fakeStore struct {
	have    map[string]bool
	removed []string
}

func (f *fakeStore) key(group string, msgid FullMsgIDStr) string {
	return group + " " + string(msgid)
}

func (f *fakeStore) HasArticleOffline(
	group string, msgid FullMsgIDStr) bool {

	return f.have[f.key(group, msgid)]
}

func (f *fakeStore) RemoveArticle(
	group string, msgid FullMsgIDStr) error {

	f.removed = append(f.removed, f.key(group, msgid))
	return nil
}

type fixedCreds struct {
	c      Credentials
	forgot int
}

func (f *fixedCreds) LookupNNTPCreds(
	s *Session, key CredKey) (Credentials, error) {

	return f.c, nil
}

func (f *fixedCreds) ForgetNNTPCreds(key CredKey) { f.forgot++ }

// drive runs the session against scripted server lines, recording
// every command the session wanted sent. It stops at completion, at a
// fatal, or when the script runs dry.
func drive(
	t *testing.T, s *Session,
	server []string) (cmds []string, res Result, fatal bool) {

	t.Helper()
	var line []byte
	li := 0
	for steps := 0; steps < 100000; steps++ {
		act := s.Advance(line)
		line = nil
		switch act.Kind {
		case ActionSendCommand:
			cmds = append(cmds, act.CmdLog)
		case ActionNeedMoreInput:
			if li >= len(server) {
				t.Fatalf("script exhausted after %d lines, sent: %s",
					li, spew.Sdump(cmds))
			}
			line = []byte(server[li])
			li++
		case ActionSuspend:
			t.Fatalf("unexpected suspend")
		case ActionComplete:
			return cmds, act.Res, false
		case ActionFatal:
			return cmds, act.Res, true
		}
	}
	t.Fatalf("session did not settle")
	return
}

func testConfig() SessionConfig {
	return SessionConfig{
		Server:          "news.test:119",
		SkipNegotiation: true,
	}
}

func wantCmds(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("commands:\ngot  %v\nwant %v",
			spew.Sdump(got), spew.Sdump(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("command %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestGroupOverview(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	err := s.Begin(&Request{
		Kind:  ReqGroup,
		Group: "misc.test",
		Over:  sink,
	})
	if err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 news.test ready",
		"200 reader here",
		"211 5 100 104 misc.test",
		"224 overview follows",
		"100\tfirst post\talice <a@test>\tMon, 1 Jan\t<m100@test>\t\t500\t10",
		"101\tsecond\tbob <b@test>\tMon, 1 Jan\t<m101@test>\t<m100@test>\t600\t12",
		"102\tthird\talice <a@test>\tMon, 1 Jan\t<m102@test>\t\t700\t14",
		"103\tfourth\tcarol <c@test>\tMon, 1 Jan\t<m103@test>\t\t800\t16",
		"104\tfifth\tbob <b@test>\tMon, 1 Jan\t<m104@test>\t\t900\t18",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"GROUP misc.test",
		"XOVER 100-104",
	})
	if len(sink.over) != 5 {
		t.Fatalf("overview records: %s", spew.Sdump(sink.over))
	}
	if sink.over[0].Num != 100 || sink.over[0].Subject != "first post" ||
		sink.over[4].MsgID != "<m104@test>" {
		t.Fatalf("bad records: %s", spew.Sdump(sink.over))
	}
	if !s.Idle() {
		t.Fatal("session should be idle after completion")
	}
}

func TestAuthRedirectResumesCommand(t *testing.T) {
	cfg := testConfig()
	cfg.Creds = &fixedCreds{c: Credentials{User: "joe", Pass: "hunter2"}}
	s := NewSession(cfg)
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqArticle, MsgID: "<x@test>", Art: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"480 authentication required",
		"381 more",
		"281 welcome joe",
		"220 1 <x@test> article follows",
		"Subject: test",
		"",
		"body",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"ARTICLE <x@test>",
		"AUTHINFO user joe",
		"AUTHINFO pass *****",
		"ARTICLE <x@test>",
	})
	if len(sink.art) != 3 || sink.art[2] != "body" {
		t.Fatalf("article lines: %v", sink.art)
	}
}

func TestAuthRedirectMidOverviewResendsChunk(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 2
	cfg.Creds = &fixedCreds{c: Credentials{User: "joe", Pass: "pw"}}
	s := NewSession(cfg)
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqGroup, Group: "misc.test", Over: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"211 4 100 103 misc.test",
		"480 authenticate to read",
		"381 pass?",
		"281 ok",
		"224 overview follows",
		"100\ts\tf\td\t<m100@test>\t\t1\t1",
		"101\ts\tf\td\t<m101@test>\t\t1\t1",
		".",
		"224 overview follows",
		"102\ts\tf\td\t<m102@test>\t\t1\t1",
		"103\ts\tf\td\t<m103@test>\t\t1\t1",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	// the challenged chunk goes out again after auth, never the next one
	wantCmds(t, cmds, []string{
		"MODE READER",
		"GROUP misc.test",
		"XOVER 100-101",
		"AUTHINFO user joe",
		"AUTHINFO pass *****",
		"XOVER 100-101",
		"XOVER 102-103",
	})
	if len(sink.over) != 4 || sink.over[0].Num != 100 ||
		sink.over[3].Num != 103 {
		t.Fatalf("records: %s", spew.Sdump(sink.over))
	}
}

func TestAuthGreetingDemand(t *testing.T) {
	cfg := testConfig()
	cfg.Creds = &fixedCreds{c: Credentials{User: "joe", Pass: "pw"}}
	s := NewSession(cfg)
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqHead, MsgID: "<y@test>", Art: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"480 must authenticate first",
		"381 send pass",
		"281 ok",
		"200 hi reader",
		"221 1 <y@test> head follows",
		"Subject: hello",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"AUTHINFO user joe",
		"AUTHINFO pass *****",
		"MODE READER",
		"HEAD <y@test>",
	})
}

func TestArticleGoneIsRecoverable(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqArticle, MsgID: "<gone@test>", Art: sink,
	}); err != nil {
		t.Fatal(err)
	}

	_, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"430 no such article",
	})
	if fatal {
		t.Fatal("430 must not kill the session")
	}
	if res.OK || res.Code != 430 {
		t.Fatalf("result: %+v", res)
	}
	if !s.Idle() {
		t.Fatal("session should be reusable")
	}

	// same connection takes the next request without re-login
	if err := s.Begin(&Request{
		Kind: ReqArticle, MsgID: "<there@test>", Art: sink,
	}); err != nil {
		t.Fatal(err)
	}
	cmds, res, fatal := drive(t, s, []string{
		"220 1 <there@test> ok",
		"hi",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("second result: %+v", res)
	}
	wantCmds(t, cmds, []string{"ARTICLE <there@test>"})
}

func TestXOverFallbackToHeadIsPermanent(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqGroup, Group: "alt.old", Over: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 ancient server",
		"500 what?", // MODE READER unknown, ignored
		"211 2 1 2 alt.old",
		"500 XOVER not known here",
		"221 1 <a1@test> head follows",
		"Subject: one",
		"From: a@test",
		"Message-ID: <a1@test>",
		".",
		"423 article 2 missing",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"GROUP alt.old",
		"XOVER 1-2",
		"HEAD 1",
		"HEAD 2",
	})
	if len(sink.over) != 1 || sink.over[0].Subject != "one" ||
		sink.over[0].MsgID != "<a1@test>" {
		t.Fatalf("head-built records: %s", spew.Sdump(sink.over))
	}

	// downgrade must stick: next overview run goes straight to HEAD
	if err := s.Begin(&Request{
		Kind: ReqGroup, Group: "alt.old", Over: sink,
	}); err != nil {
		t.Fatal(err)
	}
	cmds, res, fatal = drive(t, s, []string{
		"221 1 <a1@test> head follows",
		"Subject: one",
		".",
		"423 nope",
	})
	if fatal || !res.OK {
		t.Fatalf("second result: %+v", res)
	}
	wantCmds(t, cmds, []string{"HEAD 1", "HEAD 2"})
}

func TestXHdrExtraHeaders(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind:         ReqGroup,
		Group:        "misc.test",
		Over:         sink,
		ExtraHeaders: []string{"Newsgroups"},
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"211 2 10 11 misc.test",
		"224 overview",
		"10\ts\tf\td\t<m10@test>\t\t1\t1",
		"11\ts\tf\td\t<m11@test>\t\t1\t1",
		".",
		"221 Newsgroups fields follow",
		"10 misc.test",
		"11 misc.test,alt.test",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"GROUP misc.test",
		"XOVER 10-11",
		"XHDR Newsgroups 10-11",
	})
	if len(sink.hdrs) != 2 ||
		sink.hdrs[1] != "Newsgroups 11 misc.test,alt.test" {
		t.Fatalf("hdr lines: %v", sink.hdrs)
	}
}

func TestMaxArticlesTakesNewest(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind:        ReqGroup,
		Group:       "big.group",
		Over:        sink,
		MaxArticles: 3,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"211 1000 1 1000 big.group",
		"224 overview",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"GROUP big.group",
		"XOVER 998-1000",
	})
}

func TestEmptyGroupNoFetch(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqGroup, Group: "empty.group", Over: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"211 0 4000 3999 empty.group",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{"MODE READER", "GROUP empty.group"})
	if len(sink.over) != 0 {
		t.Fatalf("no records expected: %s", spew.Sdump(sink.over))
	}
}

func TestAuthSuspendResume(t *testing.T) {
	cfg := testConfig()
	mgr := NewAuthMgr(promptRecorder{}, nil)
	cfg.Creds = mgr
	s := NewSession(cfg)
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqArticle, MsgID: "<z@test>", Art: sink,
	}); err != nil {
		t.Fatal(err)
	}

	script := []string{
		"200 hi",
		"200 reader",
		"480 who are you",
	}
	var cmds []string
	var line []byte
	li := 0
	suspended := false
	for {
		act := s.Advance(line)
		line = nil
		if act.Kind == ActionSendCommand {
			cmds = append(cmds, act.CmdLog)
			continue
		}
		if act.Kind == ActionNeedMoreInput {
			line = []byte(script[li])
			li++
			continue
		}
		if act.Kind == ActionSuspend {
			suspended = true
			break
		}
		t.Fatalf("unexpected action %v", act.Kind)
	}
	if !suspended {
		t.Fatal("expected suspension")
	}
	wantCmds(t, cmds, []string{"MODE READER", "ARTICLE <z@test>"})

	mgr.Resolve(
		CredKey{Server: cfg.Server},
		Credentials{User: "late", Pass: "pw"})

	cmds2, res, fatal := drive(t, s, []string{
		"381 pass?",
		"281 hello late",
		"220 1 <z@test> here",
		"x",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds2, []string{
		"AUTHINFO user late",
		"AUTHINFO pass *****",
		"ARTICLE <z@test>",
	})
}

type promptRecorder struct{}

func (promptRecorder) BeginNNTPPrompt(key CredKey) {}

func TestAuthRetryForgetsRejectedCreds(t *testing.T) {
	cfg := testConfig()
	fc := &fixedCreds{c: Credentials{User: "joe", Pass: "wrong"}}
	cfg.Creds = fc
	cfg.MaxAuthAttempts = 2
	s := NewSession(cfg)
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqArticle, MsgID: "<w@test>", Art: sink,
	}); err != nil {
		t.Fatal(err)
	}

	_, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"480 auth up",
		"381 pass?",
		"481 bad password",
		"381 pass?",
		"481 still bad",
	})
	if !fatal {
		t.Fatal("exhausted auth must be fatal")
	}
	if res.Err == nil {
		t.Fatal("expected error result")
	}
	if fc.forgot != 1 {
		t.Fatalf("forgot called %d times, want 1", fc.forgot)
	}
}

func TestCancelRefusedOnForeignFrom(t *testing.T) {
	s := NewSession(testConfig())
	st := &fakeStore{have: map[string]bool{
		"misc.test <c@test>": true,
	}}
	if err := s.Begin(&Request{
		Kind:       ReqCancel,
		Group:      "misc.test",
		MsgID:      "<c@test>",
		Identities: []string{"me@here.test"},
		Store:      st,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"211 3 1 3 misc.test",
		"221 0 <c@test> head follows",
		"From: Somebody Else <other@there.test>",
		"Newsgroups: misc.test",
		".",
	})
	if fatal {
		t.Fatal("refusal must not kill the session")
	}
	if res.OK {
		t.Fatal("cancel must be refused")
	}
	// no POST went out, but the local copy is still dropped so the
	// delete is not retried forever
	wantCmds(t, cmds, []string{
		"MODE READER", "GROUP misc.test", "HEAD <c@test>",
	})
	if len(st.removed) != 1 || st.removed[0] != "misc.test <c@test>" {
		t.Fatalf("removed: %v", st.removed)
	}
}

func TestCancelRejectedByServerStillClearsLocalCopy(t *testing.T) {
	s := NewSession(testConfig())
	st := &fakeStore{have: map[string]bool{
		"misc.test <c@test>": true,
	}}
	if err := s.Begin(&Request{
		Kind:       ReqCancel,
		Group:      "misc.test",
		MsgID:      "<c@test>",
		Identities: []string{"me@here.test"},
		Store:      st,
	}); err != nil {
		t.Fatal(err)
	}

	_, res, fatal := drive(t, s, []string{
		"200 hi posting ok",
		"200 reader posting ok",
		"211 3 1 3 misc.test",
		"221 0 <c@test> head",
		"From: me@here.test",
		"Newsgroups: misc.test",
		".",
		"340 send it",
		"441 cancel not permitted",
	})
	if fatal {
		t.Fatal("rejection must not kill the session")
	}
	if res.OK || res.Code != 441 {
		t.Fatalf("result: %+v", res)
	}
	if len(st.removed) != 1 || st.removed[0] != "misc.test <c@test>" {
		t.Fatalf("removed: %v", st.removed)
	}
}

func TestCancelPostsControlMessage(t *testing.T) {
	s := NewSession(testConfig())
	st := &fakeStore{have: map[string]bool{
		"misc.test <c@test>": true,
	}}
	if err := s.Begin(&Request{
		Kind:       ReqCancel,
		Group:      "misc.test",
		MsgID:      "<c@test>",
		Identities: []string{"me@here.test"},
		Store:      st,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi posting ok",
		"200 reader posting ok",
		"211 3 1 3 misc.test",
		"221 0 <c@test> head",
		"From: Me Myself <Me@Here.Test>",
		"Newsgroups: misc.test",
		".",
		"340 send it",
		"240 cancel accepted",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	if len(cmds) != 5 || cmds[3] != "POST" {
		t.Fatalf("commands: %v", cmds)
	}
	if len(st.removed) != 1 || st.removed[0] != "misc.test <c@test>" {
		t.Fatalf("removed: %v", st.removed)
	}
}

func TestSearchXPatPerTerm(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind:  ReqSearch,
		Group: "misc.test",
		Terms: []SearchTerm{
			{Field: "subject", Pattern: "*cats*"},
			{Field: "from", Pattern: "*alice*"},
		},
		Search: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"211 10 1 10 misc.test",
		"221 subject matches follow",
		"3 all about cats",
		"7 more cats",
		".",
		"221 from matches follow",
		"5 alice <a@test>",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"GROUP misc.test",
		"XPAT subject 1-10 *cats*",
		"XPAT from 1-10 *alice*",
	})
	if len(sink.hits) != 3 || sink.hits[2] != "from 5 alice <a@test>" {
		t.Fatalf("hits: %v", sink.hits)
	}
}

func TestSearchFallsBackToClientSide(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind:  ReqSearch,
		Group: "misc.test",
		Terms: []SearchTerm{
			{Field: "subject", Pattern: "*cats*"},
		},
		Search: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"211 4 1 4 misc.test",
		"500 XPAT unknown",
		"221 subject values",
		"1 dogs are fine",
		"2 but cats rule",
		"3 ferrets",
		"4 CATS again", // wildmat matching is case sensitive
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"GROUP misc.test",
		"XPAT subject 1-4 *cats*",
		"XHDR subject 1-4",
	})
	if len(sink.hits) != 1 || sink.hits[0] != "subject 2 but cats rule" {
		t.Fatalf("hits: %v", sink.hits)
	}
}

func TestListGroupNumbers(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqListIDs, Group: "misc.test", Nums: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"211 3 5 9 misc.test",
		"211 numbers follow",
		"5",
		"7",
		"9",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"GROUP misc.test",
		"LISTGROUP misc.test",
	})
	if len(sink.nums) != 3 || sink.nums[1] != 7 {
		t.Fatalf("nums: %v", sink.nums)
	}
}

func TestListGroupUnsupportedIsPermanent(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqListIDs, Group: "misc.test", Nums: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"211 3 5 9 misc.test",
		"500 LISTGROUP unknown",
	})
	if fatal {
		t.Fatal("refusal must not kill the session")
	}
	if res.OK {
		t.Fatal("first request must fail")
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"GROUP misc.test",
		"LISTGROUP misc.test",
	})

	// the downgrade sticks: nothing more goes on the wire
	if err := s.Begin(&Request{
		Kind: ReqListIDs, Group: "misc.test", Nums: sink,
	}); err != nil {
		t.Fatal(err)
	}
	cmds, res, fatal = drive(t, s, nil)
	if fatal || res.OK {
		t.Fatalf("second result: %+v", res)
	}
	wantCmds(t, cmds, nil)
}

func TestListWithXActiveAndPrettyNames(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqListGroups, Groups: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"215 list follows",
		"misc.test 104 100 y",
		"alt.garbage trailing junk here",
		"news.announce 12 1 m",
		".",
		"215 xactive follows", // for misc.test
		"misc.test 104 100 y",
		".",
		"502 no xactive for you", // second group kills the loop
		"215 prettynames follow",
		"misc.test The Test Group",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"LIST",
		"LIST XACTIVE misc.test",
		"LIST XACTIVE news.announce",
		"LIST PRETTYNAMES",
	})
	if sink.descs["misc.test"] != "The Test Group" {
		t.Fatalf("descs: %v", sink.descs)
	}
}

func TestNewGroups(t *testing.T) {
	s := NewSession(testConfig())
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind:   ReqNewGroups,
		Since:  mustTime(t, "2026-08-21T10:30:00Z"),
		Groups: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"231 new groups follow",
		"alt.fresh 5 1 y",
		"alt.newer",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"NEWGROUPS 260821 103000 GMT",
	})
	if len(sink.groups) != 2 || sink.groups[1].Name != "alt.newer" {
		t.Fatalf("groups: %s", spew.Sdump(sink.groups))
	}
}

func TestPostFlow(t *testing.T) {
	s := NewSession(testConfig())
	if err := s.Begin(&Request{
		Kind: ReqPost,
		Article: []byte("From: me@here.test\n" +
			"Newsgroups: misc.test\n" +
			"Subject: hi\n" +
			"\n" +
			".starts with dot\n" +
			"normal line\n"),
	}); err != nil {
		t.Fatal(err)
	}

	var sent [][]byte
	collectCmds := func(server []string) (cmds []string, res Result) {
		var line []byte
		li := 0
		for {
			act := s.Advance(line)
			line = nil
			switch act.Kind {
			case ActionSendCommand:
				cmds = append(cmds, act.CmdLog)
				sent = append(sent, act.Cmd)
			case ActionNeedMoreInput:
				line = []byte(server[li])
				li++
			case ActionComplete, ActionFatal:
				return cmds, act.Res
			}
		}
	}

	cmds, res := collectCmds([]string{
		"200 hi posting ok",
		"200 reader posting ok",
		"340 go ahead",
		"240 article posted",
	})
	if !res.OK {
		t.Fatalf("result: %+v", res)
	}
	if len(cmds) != 3 || cmds[1] != "POST" {
		t.Fatalf("commands: %v", cmds)
	}
	body := string(sent[2])
	if body != "From: me@here.test\r\n"+
		"Newsgroups: misc.test\r\n"+
		"Subject: hi\r\n"+
		"\r\n"+
		"..starts with dot\r\n"+
		"normal line\r\n"+
		".\r\n" {
		t.Fatalf("wire body: %q", body)
	}
}

func TestPostRefusedOnNoPostingGreeting(t *testing.T) {
	s := NewSession(testConfig())
	if err := s.Begin(&Request{
		Kind:    ReqPost,
		Article: []byte("Subject: x\n\nbody\n"),
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"201 read-only server",
		"201 still read-only",
	})
	if fatal {
		t.Fatal("refusal must not kill session")
	}
	if res.OK {
		t.Fatal("post must fail")
	}
	wantCmds(t, cmds, []string{"MODE READER"})
}

func TestNegotiationProbesOnce(t *testing.T) {
	cfg := testConfig()
	cfg.SkipNegotiation = false
	s := NewSession(cfg)
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqArticle, MsgID: "<n@test>", Art: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"202 extensions follow",
		"SEARCH",
		"SETGET",
		".",
		"215 searches follow",
		"XPAT",
		".",
		"215 fields follow",
		"subject",
		"from",
		".",
		"215 props follow",
		"version 1",
		".",
		"215 subscriptions follow",
		"news.announce.newusers",
		".",
		"220 1 <n@test> ok",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"LIST EXTENSIONS",
		"LIST SEARCHES",
		"LIST SRCHFIELDS",
		"GET",
		"LIST SUBSCRIPTIONS",
		"ARTICLE <n@test>",
	})
	if len(s.SearchFields()) != 2 || s.SearchFields()[0] != "subject" {
		t.Fatalf("search fields: %v", s.SearchFields())
	}
	if len(s.Subscriptions()) != 1 {
		t.Fatalf("subscriptions: %v", s.Subscriptions())
	}
}

func TestNegotiationRejectedStillDispatches(t *testing.T) {
	cfg := testConfig()
	cfg.SkipNegotiation = false
	s := NewSession(cfg)
	sink := &collector{}
	if err := s.Begin(&Request{
		Kind: ReqArticle, MsgID: "<n@test>", Art: sink,
	}); err != nil {
		t.Fatal(err)
	}

	cmds, res, fatal := drive(t, s, []string{
		"200 hi",
		"200 reader",
		"500 LIST EXTENSIONS unknown",
		"500 LIST SUBSCRIPTIONS unknown",
		"220 1 <n@test> ok",
		"body",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("result: %+v", res)
	}
	wantCmds(t, cmds, []string{
		"MODE READER",
		"LIST EXTENSIONS",
		"LIST SUBSCRIPTIONS",
		"ARTICLE <n@test>",
	})
	if len(sink.art) != 1 || sink.art[0] != "body" {
		t.Fatalf("article lines: %v", sink.art)
	}

	// negotiation never repeats on the same connection
	if err := s.Begin(&Request{
		Kind: ReqArticle, MsgID: "<m@test>", Art: sink,
	}); err != nil {
		t.Fatal(err)
	}
	cmds, res, fatal = drive(t, s, []string{
		"220 1 <m@test> ok",
		".",
	})
	if fatal || !res.OK {
		t.Fatalf("second result: %+v", res)
	}
	wantCmds(t, cmds, []string{"ARTICLE <m@test>"})
}

func TestChunkedOverviewNoGapsNoOverlaps(t *testing.T) {
	var r overviewRange
	r.plan(100, 250, 0)
	var next uint64 = 100
	for r.nextChunk(50) {
		if r.curLo != next {
			t.Fatalf("chunk starts at %d, want %d", r.curLo, next)
		}
		if r.curHi < r.curLo || r.curHi > 250 {
			t.Fatalf("bad chunk %d-%d", r.curLo, r.curHi)
		}
		next = r.curHi + 1
		r.chunkDone()
	}
	if next != 251 {
		t.Fatalf("window not drained, stopped at %d", next)
	}

	// an unfinished chunk is handed out again, never skipped
	r.plan(1, 10, 0)
	if !r.nextChunk(4) || r.curLo != 1 || r.curHi != 4 {
		t.Fatalf("first chunk %d-%d", r.curLo, r.curHi)
	}
	if !r.nextChunk(4) || r.curLo != 1 || r.curHi != 4 {
		t.Fatalf("repeat chunk %d-%d", r.curLo, r.curHi)
	}
	r.chunkDone()
	if !r.nextChunk(4) || r.curLo != 5 {
		t.Fatalf("chunk after done %d-%d", r.curLo, r.curHi)
	}
}
