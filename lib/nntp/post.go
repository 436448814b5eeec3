package nntp

import (
	"fmt"
)

func (s *Session) stSendPost() (Action, bool) {
	if !s.flags.postingAllowed {
		return s.softResult(nil, "server forbids posting"), false
	}
	cmd, logStr := encodeCmd("POST")
	return s.emit(stPostResp, cmd, logStr), false
}

func (s *Session) stPostResp(line []byte) (Action, bool) {
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
		return s.softResult(nil, "POST refused: %d %s",
			code, s.lastText), true
	}
	s.state = stPostBody
	a, _ := again()
	return a, true
}

func (s *Session) stPostBody() (Action, bool) {
	body := dotStuffBody(s.req.Article)
	logStr := fmt.Sprintf("(article, %d bytes on wire)", len(body))
	a := s.emit(stPostDoneResp, body, logStr)
	// the body isn't a command; a later auth redirect must restart
	// from POST, not replay the body blind
	s.cmdState = stSendPost
	return a, false
}

func (s *Session) stPostDoneResp(line []byte) (Action, bool) {
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
	if code == codePostOK {
		return s.complete("article posted"), true
	}
	return s.softResult(nil, "posting failed: %d %s",
		code, s.lastText), true
}
