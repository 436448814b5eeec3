package nntp

func (s *Session) stSendArticle() (Action, bool) {
	verb := "ARTICLE"
	if s.req.Kind == ReqHead {
		verb = "HEAD"
	}
	var cmd []byte
	var logStr string
	if s.req.MsgID != "" {
		cmd, logStr = encodeCmd("%s %s", verb, s.req.MsgID)
	} else {
		cmd, logStr = encodeCmd("%s %d", verb, s.req.Num)
	}
	return s.emit(stArticleResp, cmd, logStr), false
}

func (s *Session) stArticleResp(line []byte) (Action, bool) {
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
	case code == codeArticleOK || code == codeHeadOK:
		s.state = stArticleRead
		a, _ := needInput()
		return a, true
	case respArticleGone(code):
		// article expired or never arrived; connection stays good
		return s.softResult(nil, "article unavailable: %d %s",
			code, s.lastText), true
	default:
		return s.softResult(nil, "fetch failed: %d %s",
			code, s.lastText), true
	}
}

func (s *Session) stArticleRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if end {
		return s.complete("article received"), true
	}
	if err := s.req.Art.ArticleLine(data); err != nil {
		return s.softResult(err, "article sink: %v", err), true
	}
	a, _ := needInput()
	return a, true
}
