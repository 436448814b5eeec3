package nntp

import (
	"errors"
	"fmt"
	"time"

	au "nread/lib/asciiutils"
	. "nread/lib/logx"
	"nread/lib/minimail"
)

var (
	ErrSessionBusy   = errors.New("nntp: request already running")
	ErrSessionDead   = errors.New("nntp: session is dead")
	ErrBadRequest    = errors.New("nntp: malformed request")
	ErrAuthCancelled = errors.New("nntp: authentication cancelled")
	ErrCancelled     = errors.New("nntp: cancelled by caller")
)

// sessionFlags persist across states for the lifetime of one
// connection. downgrade flags are never reset: once a server rejected
// an extension we don't probe it again.
type sessionFlags struct {
	noListExtensions bool
	noXOver          bool
	noXHdr           bool
	noListGroup      bool
	noXActive        bool
	noPrettyNames    bool
	noXPat           bool

	extSearch       bool // LIST EXTENSIONS advertised SEARCH
	extSetGet       bool // ... SETGET
	modeReaderDone  bool
	postingAllowed  bool
	authenticated   bool
	negotiationDone bool
	listSubsFetched bool
}

type SessionConfig struct {
	Server string // host:port, also the credential key

	PushAuth            bool // authenticate right after greeting
	SingleSignOn        bool // credentials keyed by server only, not group
	ServerChecksCancels bool // server verifies cancel sender itself
	SkipNegotiation     bool // don't probe LIST EXTENSIONS and friends

	MaxAuthAttempts int           // 0 = default 3
	ChunkSize       uint64        // overview slice size, 0 = default
	ListYieldCount  int           // listing lines between yields, 0 = default
	ListYieldEvery  time.Duration // max time between yields, 0 = default

	Creds   CredentialSource
	Advisor AuthAdvisor

	Logger LoggerX
}

const (
	defaultChunkSize      = 500
	defaultAuthAttempts   = 3
	defaultListYieldCount = 200
	defaultListYieldEvery = 250 * time.Millisecond
)

// Session drives one NNTP reader conversation over one connection.
// It is a pure consumer of lines: Advance is invoked from the owner's
// I/O loop and never touches the network itself.
type Session struct {
	cfg SessionConfig
	log Logger

	state    sessionState
	cmdState sessionState // state which emitted the outstanding command
	req      *Request
	flags    sessionFlags

	lastCode uint
	lastText string

	// mirrors server-side GROUP selection; authoritative for this
	// connection only
	currentGroup string
	grpNum       uint64
	grpLo, grpHi uint64

	// auth sub-flow
	authResume   sessionState // send-state to re-enter after auth
	authAttempts int
	creds        Credentials
	haveCreds    bool
	authAborted  bool

	rng overviewRange

	// xhdr / head-fallback progress
	xhdrIdx        int
	headNum        uint64
	headRec        OverviewRec
	headExtrasOnly bool

	// negotiation results
	searchFields  []string
	subscriptions []string

	// listing progress
	listCount  int
	listMark   time.Time
	listGroups []string
	xaIdx      int

	cancel cancelData

	searchIdx int
	searchWm  Wildmat

	args [][]byte // scratch for response argument parsing
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.MaxAuthAttempts <= 0 {
		cfg.MaxAuthAttempts = defaultAuthAttempts
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ListYieldCount <= 0 {
		cfg.ListYieldCount = defaultListYieldCount
	}
	if cfg.ListYieldEvery <= 0 {
		cfg.ListYieldEvery = defaultListYieldEvery
	}
	if cfg.Logger == nil {
		cfg.Logger = NilLogger{}
	}
	s := &Session{cfg: cfg, state: stClosed}
	s.log = NewLogToX(cfg.Logger, fmt.Sprintf("nntpses.%p", s))
	return s
}

// Begin installs a request. For a fresh connection the server greeting
// is consumed first; a pooled idle session dispatches immediately.
func (s *Session) Begin(req *Request) error {
	switch s.state {
	case stClosed:
		if err := validateRequest(req); err != nil {
			return err
		}
		s.req = req
		s.state = stGreeting
		// greeting has no command of ours behind it; if it demands
		// auth, resume into the login sequence
		s.cmdState = stSendModeReader
		return nil
	case stIdle:
		if err := validateRequest(req); err != nil {
			return err
		}
		s.req = req
		s.state = stDispatch
		return nil
	case stDead:
		return ErrSessionDead
	default:
		return ErrSessionBusy
	}
}

func validateRequest(req *Request) error {
	if req == nil {
		return ErrBadRequest
	}
	switch req.Kind {
	case ReqArticle, ReqHead:
		if req.MsgID == "" && req.Num == 0 {
			return ErrBadRequest
		}
		if req.MsgID != "" && !minimail.ValidMessageIDStr(req.MsgID) {
			return ErrBadRequest
		}
		if req.Art == nil {
			return ErrBadRequest
		}
	case ReqCancel:
		if req.MsgID == "" || !minimail.ValidMessageIDStr(req.MsgID) {
			return ErrBadRequest
		}
	case ReqGroup:
		if req.Group == "" || req.Over == nil {
			return ErrBadRequest
		}
	case ReqNewGroups:
		if req.Since.IsZero() || req.Groups == nil {
			return ErrBadRequest
		}
	case ReqListGroups:
		if req.Groups == nil {
			return ErrBadRequest
		}
	case ReqListIDs:
		if req.Group == "" || req.Nums == nil {
			return ErrBadRequest
		}
	case ReqPost:
		if len(req.Article) == 0 {
			return ErrBadRequest
		}
	case ReqSearch:
		if req.Group == "" || len(req.Terms) == 0 || req.Search == nil {
			return ErrBadRequest
		}
	default:
		return ErrBadRequest
	}
	return nil
}

// Cancel forcibly kills the session; any in-flight accumulator data is
// abandoned. The owner must close the transport afterwards.
func (s *Session) Cancel() {
	s.log.LogPrintf(INFO, "cancelled in state %v", s.state)
	s.state = stDead
	s.req = nil
}

// Dead reports whether the session must not be reused.
func (s *Session) Dead() bool { return s.state == stDead }

// Idle reports whether the session is parked between requests.
func (s *Session) Idle() bool { return s.state == stIdle }

// CurrentGroup returns the group this connection has selected.
func (s *Session) CurrentGroup() string { return s.currentGroup }

// LastResponse returns last parsed response code and text.
func (s *Session) LastResponse() (uint, string) {
	return s.lastCode, s.lastText
}

// PostingAllowed reflects the greeting / MODE READER posting bit.
func (s *Session) PostingAllowed() bool { return s.flags.postingAllowed }

// Advance runs state handlers until the session needs the outside
// world: a command to write, another line, a suspension, or request
// completion. line carries one reassembled input line without CRLF,
// or nil when there is none; at most one line is consumed.
func (s *Session) Advance(line []byte) Action {
	for {
		act, consumed := s.step(line)
		if consumed {
			line = nil
		}
		if act.Kind != actAgain {
			return act
		}
	}
}

func (s *Session) step(line []byte) (Action, bool) {
	switch s.state {
	case stDead:
		return Action{Kind: ActionFatal,
			Res: Result{Err: ErrSessionDead, Msg: "session is dead"}}, false
	case stIdle:
		return Action{Kind: ActionComplete, Res: Result{OK: true}}, false

	case stGreeting:
		return s.stGreeting(line)
	case stSendModeReader:
		return s.stSendModeReader()
	case stModeReaderResp:
		return s.stModeReaderResp(line)
	case stSendListExtensions:
		return s.stSendListExtensions()
	case stListExtensionsResp:
		return s.stListExtensionsResp(line)
	case stListExtensionsRead:
		return s.stListExtensionsRead(line)
	case stSendListSearches, stSendListSrchFields, stSendGetProperties,
		stSendListSubscriptions:
		return s.stSendNegotiation()
	case stListSearchesResp, stListSrchFieldsResp, stGetPropertiesResp,
		stListSubscriptionsResp:
		return s.stNegotiationResp(line)
	case stListSearchesRead, stListSrchFieldsRead, stGetPropertiesRead,
		stListSubscriptionsRead:
		return s.stNegotiationRead(line)
	case stDispatch:
		return s.stDispatch()

	case stAuthStart:
		return s.stAuthStart()
	case stAuthUserResp:
		return s.stAuthUserResp(line)
	case stAuthSendPass:
		return s.stAuthSendPass()
	case stAuthPassResp:
		return s.stAuthPassResp(line)
	case stAuthSuspended:
		return s.stAuthSuspended()

	case stSendGroup:
		return s.stSendGroup()
	case stGroupResp:
		return s.stGroupResp(line)

	case stSendArticle:
		return s.stSendArticle()
	case stArticleResp:
		return s.stArticleResp(line)
	case stArticleRead:
		return s.stArticleRead(line)

	case stOverviewPlan:
		return s.stOverviewPlan()
	case stXOverResp:
		return s.stXOverResp(line)
	case stXOverRead:
		return s.stXOverRead(line)
	case stSendXHdr:
		return s.stSendXHdr()
	case stXHdrResp:
		return s.stXHdrResp(line)
	case stXHdrRead:
		return s.stXHdrRead(line)
	case stHeadNext:
		return s.stHeadNext()
	case stHeadResp:
		return s.stHeadResp(line)
	case stHeadRead:
		return s.stHeadRead(line)

	case stSendListGroup:
		return s.stSendListGroup()
	case stListGroupResp:
		return s.stListGroupResp(line)
	case stListGroupRead:
		return s.stListGroupRead(line)

	case stSendList:
		return s.stSendList()
	case stListResp:
		return s.stListResp(line)
	case stListRead:
		return s.stListRead(line)
	case stSendXActive:
		return s.stSendXActive()
	case stXActiveResp:
		return s.stXActiveResp(line)
	case stXActiveRead:
		return s.stXActiveRead(line)
	case stSendPrettyNames:
		return s.stSendPrettyNames()
	case stPrettyNamesResp:
		return s.stPrettyNamesResp(line)
	case stPrettyNamesRead:
		return s.stPrettyNamesRead(line)
	case stSendNewGroups:
		return s.stSendNewGroups()
	case stNewGroupsResp:
		return s.stNewGroupsResp(line)
	case stNewGroupsRead:
		return s.stNewGroupsRead(line)

	case stSendPost:
		return s.stSendPost()
	case stPostResp:
		return s.stPostResp(line)
	case stPostBody:
		return s.stPostBody()
	case stPostDoneResp:
		return s.stPostDoneResp(line)

	case stCancelSendHead:
		return s.stCancelSendHead()
	case stCancelHeadResp:
		return s.stCancelHeadResp(line)
	case stCancelReadHead:
		return s.stCancelReadHead(line)
	case stCancelVerify:
		return s.stCancelVerify()
	case stCancelSendPost:
		return s.stCancelSendPost()
	case stCancelPostResp:
		return s.stCancelPostResp(line)
	case stCancelBody:
		return s.stCancelBody()
	case stCancelDoneResp:
		return s.stCancelDoneResp(line)

	case stSearchNext:
		return s.stSearchNext()
	case stXPatResp:
		return s.stXPatResp(line)
	case stXPatRead:
		return s.stXPatRead(line)

	case stSendQuit:
		return s.stSendQuit()
	case stQuitResp:
		return s.stQuitResp(line)
	}
	return s.fatalf(nil, "handler missing for state %v", s.state), false
}

// emit produces a SendCommand action and remembers which state asked
// for it, so an auth redirect can re-enter it afterwards.
func (s *Session) emit(next sessionState, cmd []byte, logStr string) Action {
	s.cmdState = s.state
	s.state = next
	s.log.LogPrintf(DEBUG, "C: %s", logStr)
	return Action{Kind: ActionSendCommand, Cmd: cmd, CmdLog: logStr}
}

func needInput() (Action, bool) {
	return Action{Kind: ActionNeedMoreInput}, false
}

func again() (Action, bool) {
	return Action{Kind: actAgain}, false
}

// resp parses a single response line. Auth-required codes redirect into
// the auth sub-flow out-of-band, whatever the current state was.
func (s *Session) resp(line []byte) (
	code uint, rest []byte, redir bool, err error) {

	code, rest, err = parseResponseCode(line)
	if err != nil {
		return
	}
	s.lastCode = code
	s.lastText = string(au.TrimWSBytes(rest))
	s.log.LogPrintf(DEBUG, "S: %d %s", code, s.lastText)

	if authRedirect(code) && !s.inAuthFlow() {
		s.log.LogPrintf(INFO,
			"auth demanded in state %v, will resume %v",
			s.state, s.cmdState)
		s.authResume = s.cmdState
		s.authAttempts = 0
		s.state = stAuthStart
		redir = true
	}
	return
}

func (s *Session) inAuthFlow() bool {
	switch s.state {
	case stAuthStart, stAuthUserResp, stAuthSendPass, stAuthPassResp,
		stAuthSuspended:
		return true
	}
	return false
}

// softResult finishes the current request with a failure but keeps the
// connection usable for the next one.
func (s *Session) softResult(err error, format string, v ...interface{}) Action {
	msg := fmt.Sprintf(format, v...)
	s.log.LogPrintf(WARN, "request failed: %s", msg)
	code := s.lastCode
	s.finishRequest()
	return Action{Kind: ActionComplete,
		Res: Result{Code: code, Msg: msg, Err: err}}
}

// complete finishes the current request successfully.
func (s *Session) complete(format string, v ...interface{}) Action {
	msg := fmt.Sprintf(format, v...)
	code := s.lastCode
	s.finishRequest()
	return Action{Kind: ActionComplete,
		Res: Result{OK: true, Code: code, Msg: msg}}
}

// fatalf kills the session; owner must drop the connection.
func (s *Session) fatalf(err error, format string, v ...interface{}) Action {
	msg := fmt.Sprintf(format, v...)
	if err == nil {
		err = errors.New(msg)
	}
	s.log.LogPrintf(ERROR, "fatal: %s", msg)
	code := s.lastCode
	s.state = stDead
	s.req = nil
	return Action{Kind: ActionFatal,
		Res: Result{Code: code, Msg: msg, Err: err}}
}

func (s *Session) finishRequest() {
	s.req = nil
	s.state = stIdle
	s.rng = overviewRange{}
	s.xhdrIdx = 0
	s.headNum = 0
	s.headRec = OverviewRec{}
	s.headExtrasOnly = false
	s.listCount = 0
	s.listGroups = nil
	s.xaIdx = 0
	s.cancel = cancelData{}
	s.searchIdx = 0
	s.searchWm = nil
	s.listMark = time.Time{}
}

// desync handles an unparseable response line: protocol state is gone,
// the connection cannot be trusted anymore.
func (s *Session) desync(err error) Action {
	return s.fatalf(err, "protocol desynchronized: %v", err)
}
