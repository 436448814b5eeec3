package nntp

import (
	. "nread/lib/logx"
)

func (s *Session) stSearchNext() (Action, bool) {
	if s.searchIdx >= len(s.req.Terms) {
		return s.complete("search done"), false
	}
	t := s.req.Terms[s.searchIdx]
	if !ValidWildmat(unsafeStrToBytes(t.Pattern)) {
		return s.softResult(nil, "bad search pattern %q", t.Pattern), false
	}
	first, last := s.grpLo, s.grpHi
	if s.req.First > 0 {
		first = s.req.First
	}
	if s.req.Last > 0 && s.req.Last < last {
		last = s.req.Last
	}
	if s.grpHi == 0 || first > last {
		return s.complete("group %q is empty", s.currentGroup), false
	}
	if s.flags.noXPat {
		// pull the raw header values and match them ourselves
		s.searchWm = CompileWildmat(unsafeStrToBytes(t.Pattern))
		cmd, logStr := encodeCmd("XHDR %s %d-%d", t.Field, first, last)
		return s.emit(stXPatResp, cmd, logStr), false
	}
	cmd, logStr := encodeCmd("XPAT %s %d-%d %s",
		t.Field, first, last, t.Pattern)
	return s.emit(stXPatResp, cmd, logStr), false
}

func (s *Session) stXPatResp(line []byte) (Action, bool) {
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
	case code == codeHeadOK:
		s.state = stXPatRead
		a, _ := needInput()
		return a, true
	case respUnsupported(code):
		if !s.flags.noXPat {
			s.log.LogPrintf(WARN,
				"XPAT unsupported, matching client-side via XHDR")
			s.flags.noXPat = true
			s.state = stSearchNext
			a, _ := again()
			return a, true
		}
		return s.softResult(nil, "search unsupported: %d %s",
			code, s.lastText), true
	default:
		// term produced nothing the server liked; try the rest
		s.log.LogPrintf(DEBUG, "XPAT term rejected: %d %s",
			code, s.lastText)
		s.searchIdx++
		s.state = stSearchNext
		a, _ := again()
		return a, true
	}
}

func (s *Session) stXPatRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		num, value, perr := parseNumValueLine(data)
		if perr != nil {
			s.log.LogPrintf(WARN, "search row skipped: %v", perr)
		} else if !s.flags.noXPat ||
			s.searchWm.CheckString(unsafeBytesToStr(value)) {

			t := s.req.Terms[s.searchIdx]
			if err := s.req.Search.SearchHit(t, num,
				string(value)); err != nil {
				return s.softResult(err, "search sink: %v", err), true
			}
		}
		a, _ := needInput()
		return a, true
	}
	s.searchIdx++
	s.state = stSearchNext
	a, _ := again()
	return a, true
}
