package nntp

import (
	"fmt"

	au "nread/lib/asciiutils"
	. "nread/lib/logx"
	"nread/lib/minimail"
)

// cancelData holds headers harvested from the article being cancelled.
type cancelData struct {
	from         string
	newsgroups   string
	distribution string
}

func (s *Session) stCancelSendHead() (Action, bool) {
	cmd, logStr := encodeCmd("HEAD %s", s.req.MsgID)
	return s.emit(stCancelHeadResp, cmd, logStr), false
}

func (s *Session) stCancelHeadResp(line []byte) (Action, bool) {
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
		s.state = stCancelReadHead
		a, _ := needInput()
		return a, true
	case respArticleGone(code):
		// nothing left to cancel on the server; still drop our copy
		s.removeCancelled()
		return s.complete("article already gone"), true
	default:
		return s.softResult(nil, "cancel head fetch failed: %d %s",
			code, s.lastText), true
	}
}

func (s *Session) stCancelReadHead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		if field, value, ok := parseHeaderLine(data); ok {
			fs := unsafeBytesToStr(field)
			switch {
			case au.EqualFoldString(fs, "From"):
				s.cancel.from = string(value)
			case au.EqualFoldString(fs, "Newsgroups"):
				s.cancel.newsgroups = string(value)
			case au.EqualFoldString(fs, "Distribution"):
				s.cancel.distribution = string(value)
			}
		}
		a, _ := needInput()
		return a, true
	}
	s.state = stCancelVerify
	a, _ := again()
	return a, true
}

func (s *Session) stCancelVerify() (Action, bool) {
	if !s.cfg.ServerChecksCancels && !s.cancelSenderMatches() {
		// not ours to cancel; still tell the store so it stops
		// retrying the delete locally
		s.removeCancelled()
		return s.softResult(nil,
			"refusing to cancel: %q is not one of our identities",
			s.cancel.from), false
	}
	if s.req.Confirm != nil &&
		!s.req.Confirm.ConfirmCancel(s.req.MsgID, s.cancel.from) {

		return s.softResult(ErrCancelled,
			"cancel aborted by user"), false
	}
	s.state = stCancelSendPost
	return again()
}

func (s *Session) cancelSenderMatches() bool {
	for _, id := range s.req.Identities {
		if minimail.AddressesEqual(id, s.cancel.from) {
			return true
		}
	}
	return false
}

func (s *Session) stCancelSendPost() (Action, bool) {
	if !s.flags.postingAllowed {
		return s.softResult(nil, "server forbids posting"), false
	}
	cmd, logStr := encodeCmd("POST")
	return s.emit(stCancelPostResp, cmd, logStr), false
}

func (s *Session) stCancelPostResp(line []byte) (Action, bool) {
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
	if code != codeSendPost {
		return s.softResult(nil, "cancel POST refused: %d %s",
			code, s.lastText), true
	}
	s.state = stCancelBody
	a, _ := again()
	return a, true
}

func (s *Session) stCancelBody() (Action, bool) {
	body := dotStuffBody(s.buildCancelMessage())
	logStr := fmt.Sprintf("(cancel message, %d bytes on wire)", len(body))
	a := s.emit(stCancelDoneResp, body, logStr)
	s.cmdState = stCancelSendPost
	return a, false
}

// buildCancelMessage renders the control article. From must match the
// original posting or most servers reject the cancel.
func (s *Session) buildCancelMessage() []byte {
	groups := s.cancel.newsgroups
	if groups == "" {
		groups = s.req.Group
	}
	var b []byte
	b = fmt.Appendf(b, "From: %s\r\n", s.cancel.from)
	b = fmt.Appendf(b, "Newsgroups: %s\r\n", groups)
	b = fmt.Appendf(b, "Subject: cancel %s\r\n", s.req.MsgID)
	b = fmt.Appendf(b, "Control: cancel %s\r\n", s.req.MsgID)
	b = fmt.Appendf(b, "References: %s\r\n", s.req.MsgID)
	if s.cancel.distribution != "" {
		b = fmt.Appendf(b, "Distribution: %s\r\n", s.cancel.distribution)
	}
	b = append(b, "\r\nThis message was cancelled from within the reader.\r\n"...)
	return b
}

func (s *Session) stCancelDoneResp(line []byte) (Action, bool) {
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
	// the store hears the outcome either way
	s.removeCancelled()
	if code == codePostOK {
		return s.complete("article cancelled"), true
	}
	return s.softResult(nil, "cancel rejected: %d %s",
		code, s.lastText), true
}

func (s *Session) removeCancelled() {
	if s.req.Store == nil {
		return
	}
	group := s.req.Group
	if group == "" {
		group = s.currentGroup
	}
	if !s.req.Store.HasArticleOffline(group, s.req.MsgID) {
		return
	}
	if err := s.req.Store.RemoveArticle(group, s.req.MsgID); err != nil {
		s.log.LogPrintf(WARN, "local copy removal failed: %v", err)
	}
}
