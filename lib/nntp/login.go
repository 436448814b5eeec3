package nntp

import (
	. "nread/lib/logx"
)

func (s *Session) stGreeting(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	code, _, redir, err := s.resp(line)
	if err != nil {
		return s.desync(err), true
	}
	if redir {
		a, _ := again()
		return a, true
	}
	switch {
	case code == codeGreetPostOK:
		s.flags.postingAllowed = true
	case code == codeGreetNoPost:
		// read-only server, fine
	case respClassError(code):
		return s.fatalf(nil,
			"server refused connection: %d %s", code, s.lastText), true
	}
	if s.cfg.PushAuth && !s.flags.authenticated {
		// authenticate up front; some servers want it before anything
		s.authResume = stSendModeReader
		s.state = stAuthStart
	} else {
		s.state = stSendModeReader
	}
	a, _ := again()
	return a, true
}

func (s *Session) stSendModeReader() (Action, bool) {
	cmd, logStr := encodeCmd("MODE READER")
	return s.emit(stModeReaderResp, cmd, logStr), false
}

func (s *Session) stModeReaderResp(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	code, _, redir, err := s.resp(line)
	if err != nil {
		return s.desync(err), true
	}
	if redir {
		a, _ := again()
		return a, true
	}
	switch {
	case code == codeGreetPostOK:
		s.flags.postingAllowed = true
	case code == codeGreetNoPost:
		s.flags.postingAllowed = false
	case code == codeNoPermission:
		// transit-only server won't serve readers
		return s.fatalf(nil, "reading not permitted: %d %s",
			code, s.lastText), true
	case respUnsupported(code):
		// plenty of servers never learned MODE READER, carry on
	}
	s.flags.modeReaderDone = true
	if s.cfg.SkipNegotiation || s.flags.negotiationDone {
		s.state = stDispatch
	} else {
		s.state = stSendListExtensions
	}
	a, _ := again()
	return a, true
}

func (s *Session) stSendListExtensions() (Action, bool) {
	if s.flags.noListExtensions {
		s.state = s.negotiationAfter(stSendListExtensions)
		return again()
	}
	cmd, logStr := encodeCmd("LIST EXTENSIONS")
	return s.emit(stListExtensionsResp, cmd, logStr), false
}

func (s *Session) stListExtensionsResp(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	code, _, redir, err := s.resp(line)
	if err != nil {
		return s.desync(err), true
	}
	if redir {
		a, _ := again()
		return a, true
	}
	if respClassOK(code) {
		s.state = stListExtensionsRead
	} else {
		// no extension discovery on this server, ever
		s.flags.noListExtensions = true
		s.state = s.negotiationAfter(stSendListExtensions)
	}
	a, _ := again()
	return a, true
}

func (s *Session) stListExtensionsRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	if data, end := dotUnstuffLine(line); !end {
		kl := parseKeyword(data)
		switch unsafeBytesToStr(data[:kl]) {
		case "SEARCH":
			s.flags.extSearch = true
		case "SETGET":
			s.flags.extSetGet = true
		}
		a, _ := needInput()
		return a, true
	}
	s.log.LogPrintf(DEBUG, "extensions: search=%v setget=%v",
		s.flags.extSearch, s.flags.extSetGet)
	s.state = s.negotiationAfter(stSendListExtensions)
	a, _ := again()
	return a, true
}

// negotiationAfter walks the optional probe chain, skipping steps the
// server did not advertise or which already ran this session.
func (s *Session) negotiationAfter(cur sessionState) sessionState {
	switch cur {
	case stSendListExtensions:
		if s.flags.extSearch {
			return stSendListSearches
		}
		fallthrough
	case stSendListSearches:
		if s.flags.extSearch {
			return stSendListSrchFields
		}
		fallthrough
	case stSendListSrchFields:
		if s.flags.extSetGet {
			return stSendGetProperties
		}
		fallthrough
	case stSendGetProperties:
		if !s.flags.listSubsFetched {
			return stSendListSubscriptions
		}
		fallthrough
	default:
		s.flags.negotiationDone = true
		return stDispatch
	}
}

func (s *Session) stSendNegotiation() (Action, bool) {
	var cmdStr string
	var next sessionState
	switch s.state {
	case stSendListSearches:
		cmdStr, next = "LIST SEARCHES", stListSearchesResp
	case stSendListSrchFields:
		cmdStr, next = "LIST SRCHFIELDS", stListSrchFieldsResp
	case stSendGetProperties:
		cmdStr, next = "GET", stGetPropertiesResp
	case stSendListSubscriptions:
		cmdStr, next = "LIST SUBSCRIPTIONS", stListSubscriptionsResp
	}
	cmd, logStr := encodeCmd("%s", cmdStr)
	return s.emit(next, cmd, logStr), false
}

func (s *Session) stNegotiationResp(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	code, _, redir, err := s.resp(line)
	if err != nil {
		return s.desync(err), true
	}
	if redir {
		a, _ := again()
		return a, true
	}
	sendSt := s.state - 1 // Resp directly follows its Send in the enum
	if respClassOK(code) {
		s.state = s.state + 1 // Read directly follows Resp
	} else {
		// all of these are optional niceties
		s.state = s.negotiationAfter(sendSt)
	}
	a, _ := again()
	return a, true
}

func (s *Session) stNegotiationRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	if data, end := dotUnstuffLine(line); !end {
		switch s.state {
		case stListSrchFieldsRead:
			if f := string(data); f != "" {
				s.searchFields = append(s.searchFields, f)
			}
		case stListSubscriptionsRead:
			if g := string(data); g != "" {
				s.subscriptions = append(s.subscriptions, g)
			}
		default:
			// LIST SEARCHES / GET payloads are informational only
			s.log.LogPrintf(DEBUG, "negotiation data: %q", data)
		}
		a, _ := needInput()
		return a, true
	}
	sendSt := s.state - 2
	if sendSt == stSendListSubscriptions {
		s.flags.listSubsFetched = true
	}
	s.state = s.negotiationAfter(sendSt)
	a, _ := again()
	return a, true
}

// SearchFields returns header fields the server said XPAT can match.
func (s *Session) SearchFields() []string { return s.searchFields }

// Subscriptions returns the server-recommended default group list.
func (s *Session) Subscriptions() []string { return s.subscriptions }

func (s *Session) stDispatch() (Action, bool) {
	req := s.req
	if req == nil {
		s.state = stIdle
		return again()
	}
	s.log.LogPrintf(INFO, "dispatch %v group=%q msgid=%q",
		req.Kind, req.Group, req.MsgID)

	switch req.Kind {
	case ReqPost:
		s.state = stSendPost
	case ReqNewGroups:
		s.state = stSendNewGroups
	case ReqListGroups:
		s.state = stSendList
	case ReqArticle, ReqHead:
		if req.MsgID != "" && req.Group == "" {
			// message-id fetch works without group selection
			s.state = stSendArticle
		} else {
			s.needGroup()
		}
	case ReqCancel:
		if req.Group == "" {
			s.state = stCancelSendHead
		} else {
			s.needGroup()
		}
	case ReqGroup, ReqListIDs, ReqSearch:
		s.needGroup()
	default:
		return s.softResult(ErrBadRequest,
			"unhandled request kind %v", req.Kind), false
	}
	return again()
}

// needGroup skips the GROUP roundtrip when the connection already has
// the wanted group selected.
func (s *Session) needGroup() {
	if s.currentGroup == s.req.Group && s.currentGroup != "" {
		s.state = s.afterGroupState()
	} else {
		s.state = stSendGroup
	}
}

func (s *Session) afterGroupState() sessionState {
	switch s.req.Kind {
	case ReqGroup:
		return stOverviewPlan
	case ReqListIDs:
		return stSendListGroup
	case ReqSearch:
		return stSearchNext
	case ReqCancel:
		return stCancelSendHead
	default:
		return stSendArticle
	}
}

func (s *Session) stSendGroup() (Action, bool) {
	cmd, logStr := encodeCmd("GROUP %s", s.req.Group)
	return s.emit(stGroupResp, cmd, logStr), false
}

func (s *Session) stGroupResp(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	code, rest, redir, err := s.resp(line)
	if err != nil {
		return s.desync(err), true
	}
	if redir {
		a, _ := again()
		return a, true
	}
	switch {
	case code == codeGroupOK:
		num, lo, hi, perr := s.parseGroupResponse(rest)
		if perr != nil {
			return s.desync(perr), true
		}
		if num == 0 || lo > hi {
			// empty group; normalize so range math can't misfire
			num, lo, hi = 0, 1, 0
		}
		s.currentGroup = s.req.Group
		s.grpNum, s.grpLo, s.grpHi = num, lo, hi
		s.state = s.afterGroupState()
	case code == codeNoSuchGroup:
		s.currentGroup = ""
		return s.softResult(nil, "no such group %q: %d %s",
			s.req.Group, code, s.lastText), true
	default:
		s.currentGroup = ""
		return s.softResult(nil, "group selection failed: %d %s",
			code, s.lastText), true
	}
	a, _ := again()
	return a, true
}

// Quit initiates a graceful shutdown of an idle session; drive it with
// Advance like any request.
func (s *Session) Quit() error {
	switch s.state {
	case stIdle, stClosed:
		s.state = stSendQuit
		return nil
	case stDead:
		return ErrSessionDead
	default:
		return ErrSessionBusy
	}
}

func (s *Session) stSendQuit() (Action, bool) {
	cmd, logStr := encodeCmd("QUIT")
	return s.emit(stQuitResp, cmd, logStr), false
}

func (s *Session) stQuitResp(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	code, _, _, err := s.resp(line)
	s.state = stDead
	s.req = nil
	if err != nil {
		return Action{Kind: ActionComplete,
			Res: Result{OK: true, Msg: "closed"}}, true
	}
	return Action{Kind: ActionComplete,
		Res: Result{OK: true, Code: code, Msg: s.lastText}}, true
}
