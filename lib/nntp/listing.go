package nntp

import (
	"errors"
	"time"

	. "nread/lib/logx"
)

var errEmptyLine = errors.New("empty line")

// listInput asks for the next listing line, flagging a yield every so
// many lines or milliseconds so a huge LIST can't starve the caller.
func (s *Session) listInput() (Action, bool) {
	s.listCount++
	now := time.Now()
	if s.listMark.IsZero() {
		s.listMark = now
	}
	if s.listCount%s.cfg.ListYieldCount == 0 ||
		now.Sub(s.listMark) >= s.cfg.ListYieldEvery {

		s.listMark = now
		return Action{Kind: ActionNeedMoreInput, Yield: true}, false
	}
	return Action{Kind: ActionNeedMoreInput}, false
}

func (s *Session) stSendList() (Action, bool) {
	cmd, logStr := encodeCmd("LIST")
	return s.emit(stListResp, cmd, logStr), false
}

func (s *Session) stListResp(line []byte) (Action, bool) {
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
	if code != codeListOK {
		return s.softResult(nil, "LIST failed: %d %s",
			code, s.lastText), true
	}
	s.state = stListRead
	a, _ := needInput()
	return a, true
}

func (s *Session) stListRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		name, hi, lo, status, perr := parseListActiveLine(data)
		if perr != nil {
			// servers emit all kinds of garbage in LIST; skip quietly
			s.log.LogPrintf(DEBUG, "LIST row skipped: %v", perr)
		} else {
			gi := GroupInfo{
				Name:   string(name),
				Hi:     hi,
				Lo:     lo,
				Status: string(status),
			}
			if serr := s.req.Groups.ListGroup(gi); serr != nil {
				return s.softResult(serr, "group sink: %v", serr), true
			}
			if !s.flags.noXActive {
				s.listGroups = append(s.listGroups, gi.Name)
			}
		}
		a, _ := s.listInput()
		return a, true
	}
	s.log.LogPrintf(INFO, "LIST done, %d lines", s.listCount)
	s.xaIdx = 0
	next := s.afterGroupListing()
	if next == stIdle {
		return s.complete("group listing done"), true
	}
	s.state = next
	a, _ := again()
	return a, true
}

func (s *Session) afterGroupListing() sessionState {
	if !s.flags.noXActive && s.xaIdx < len(s.listGroups) {
		return stSendXActive
	}
	if !s.flags.noPrettyNames {
		return stSendPrettyNames
	}
	return stIdle
}

func (s *Session) stSendXActive() (Action, bool) {
	if s.xaIdx >= len(s.listGroups) {
		next := s.afterGroupListing()
		if next == stIdle {
			return s.complete("group listing done"), false
		}
		s.state = next
		return again()
	}
	cmd, logStr := encodeCmd("LIST XACTIVE %s", s.listGroups[s.xaIdx])
	return s.emit(stXActiveResp, cmd, logStr), false
}

func (s *Session) stXActiveResp(line []byte) (Action, bool) {
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
	if code != codeListOK {
		// not an INN or INN too old; stop asking
		s.flags.noXActive = true
		s.xaIdx = len(s.listGroups)
		next := s.afterGroupListing()
		if next == stIdle {
			return s.complete("group listing done"), true
		}
		s.state = next
		a, _ := again()
		return a, true
	}
	s.state = stXActiveRead
	a, _ := needInput()
	return a, true
}

func (s *Session) stXActiveRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		name, hi, lo, status, perr := parseListActiveLine(data)
		if perr == nil {
			gi := GroupInfo{
				Name:   string(name),
				Hi:     hi,
				Lo:     lo,
				Status: string(status),
			}
			if serr := s.req.Groups.ListGroup(gi); serr != nil {
				return s.softResult(serr, "group sink: %v", serr), true
			}
		}
		a, _ := needInput()
		return a, true
	}
	s.xaIdx++
	s.state = stSendXActive
	a, _ := again()
	return a, true
}

func (s *Session) stSendPrettyNames() (Action, bool) {
	cmd, logStr := encodeCmd("LIST PRETTYNAMES")
	return s.emit(stPrettyNamesResp, cmd, logStr), false
}

func (s *Session) stPrettyNamesResp(line []byte) (Action, bool) {
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
	if code != codeListOK {
		s.flags.noPrettyNames = true
		return s.complete("group listing done"), true
	}
	s.state = stPrettyNamesRead
	a, _ := needInput()
	return a, true
}

func (s *Session) stPrettyNamesRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		// format: <group> <pretty name with spaces>
		name, pretty, perr := splitNameRest(data)
		if perr == nil {
			if serr := s.req.Groups.GroupDescription(
				name, pretty); serr != nil {

				return s.softResult(serr,
					"group sink: %v", serr), true
			}
		}
		a, _ := needInput()
		return a, true
	}
	return s.complete("group listing done"), true
}

func (s *Session) stSendListGroup() (Action, bool) {
	if s.flags.noListGroup {
		// server already told us once this session
		return s.softResult(nil, "LISTGROUP unsupported"), false
	}
	cmd, logStr := encodeCmd("LISTGROUP %s", s.req.Group)
	return s.emit(stListGroupResp, cmd, logStr), false
}

func (s *Session) stListGroupResp(line []byte) (Action, bool) {
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
	case code == codeGroupOK:
		s.state = stListGroupRead
		a, _ := needInput()
		return a, true
	case respUnsupported(code):
		s.flags.noListGroup = true
		return s.softResult(nil,
			"LISTGROUP unsupported: %d %s", code, s.lastText), true
	default:
		return s.softResult(nil, "LISTGROUP failed: %d %s",
			code, s.lastText), true
	}
}

func (s *Session) stListGroupRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		if isNumberSlice(data) {
			if err := s.req.Nums.ArticleNum(stoi64(data)); err != nil {
				return s.softResult(err, "number sink: %v", err), true
			}
		}
		a, _ := s.listInput()
		return a, true
	}
	return s.complete("listgroup done"), true
}

func (s *Session) stSendNewGroups() (Action, bool) {
	cmd, logStr := encodeNewGroups(s.req.Since)
	return s.emit(stNewGroupsResp, cmd, logStr), false
}

func (s *Session) stNewGroupsResp(line []byte) (Action, bool) {
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
	if code != codeNewGroupsOK {
		return s.softResult(nil, "NEWGROUPS failed: %d %s",
			code, s.lastText), true
	}
	s.state = stNewGroupsRead
	a, _ := needInput()
	return a, true
}

func (s *Session) stNewGroupsRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		name, hi, lo, status, perr := parseListActiveLine(data)
		if perr == nil {
			gi := GroupInfo{
				Name:   string(name),
				Hi:     hi,
				Lo:     lo,
				Status: string(status),
			}
			if serr := s.req.Groups.ListGroup(gi); serr != nil {
				return s.softResult(serr, "group sink: %v", serr), true
			}
		}
		a, _ := s.listInput()
		return a, true
	}
	return s.complete("newgroups done"), true
}

// splitNameRest splits `<word> <rest of line>`.
func splitNameRest(line []byte) (name, rest string, err error) {
	i := 0
	for i < len(line) && line[i] != ' ' && line[i] != '\t' {
		i++
	}
	if i == 0 {
		return "", "", errEmptyLine
	}
	name = string(line[:i])
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	rest = string(line[i:])
	return
}
