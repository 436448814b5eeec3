package nntp

import (
	. "nread/lib/logx"

	au "nread/lib/asciiutils"
)

// overviewRange tracks the article-number window of one overview
// download and the chunk currently in flight.
type overviewRange struct {
	started      bool
	inFlight     bool
	lo, hi       uint64 // remaining window, inclusive; lo > hi = drained
	curLo, curHi uint64 // chunk in flight
}

func (r *overviewRange) plan(first, last, maxArts uint64) {
	r.started = true
	r.inFlight = false
	if maxArts > 0 && last-first+1 > maxArts {
		// caller wants the newest N only
		first = last - maxArts + 1
	}
	r.lo, r.hi = first, last
}

// nextChunk hands out up to chunk articles from the remaining window.
// An in-flight chunk stays current until chunkDone, so replanning after
// an interruption re-requests the same range instead of skipping it.
func (r *overviewRange) nextChunk(chunk uint64) bool {
	if r.inFlight {
		return true
	}
	if r.lo > r.hi || r.lo == 0 {
		return false
	}
	r.curLo = r.lo
	r.curHi = r.lo + chunk - 1
	if r.curHi > r.hi {
		r.curHi = r.hi
	}
	r.inFlight = true
	return true
}

// chunkDone consumes the in-flight chunk from the window.
func (r *overviewRange) chunkDone() {
	r.inFlight = false
	r.lo = r.curHi + 1
}

// stOverviewPlan picks the next chunk and decides how to fetch it.
// It reissues after auth redirects and after every finished chunk.
func (s *Session) stOverviewPlan() (Action, bool) {
	req := s.req
	if !s.rng.started {
		first, last := s.grpLo, s.grpHi
		if req.First > 0 {
			first = req.First
		}
		if req.Last > 0 && req.Last < last {
			last = req.Last
		}
		if first < s.grpLo {
			first = s.grpLo
		}
		if s.grpHi == 0 || first > last {
			return s.complete("group %q is empty", s.currentGroup), false
		}
		var maxArts uint64
		if req.MaxArticles > 0 {
			maxArts = uint64(req.MaxArticles)
		}
		s.rng.plan(first, last, maxArts)
		s.log.LogPrintf(INFO, "overview %q window %d-%d",
			s.currentGroup, s.rng.lo, s.rng.hi)
	}

	if !s.rng.nextChunk(s.cfg.ChunkSize) {
		return s.complete("overview done"), false
	}

	if s.flags.noXOver {
		s.headNum = s.rng.curLo
		s.headExtrasOnly = false
		s.state = stHeadNext
		return again()
	}
	cmd, logStr := encodeCmd("XOVER %d-%d", s.rng.curLo, s.rng.curHi)
	return s.emit(stXOverResp, cmd, logStr), false
}

func (s *Session) stXOverResp(line []byte) (Action, bool) {
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
	case code == codeXOverOK:
		s.state = stXOverRead
		a, _ := needInput()
		return a, true
	case respUnsupported(code):
		// server has no overview support at all; remember forever and
		// grind through HEAD per article instead
		s.log.LogPrintf(WARN, "XOVER unsupported, falling back to HEAD")
		s.flags.noXOver = true
		s.headNum = s.rng.curLo
		s.headExtrasOnly = false
		s.state = stHeadNext
		a, _ := again()
		return a, true
	case code == codeNoArticleNum:
		// nothing in this slice
		s.rng.chunkDone()
		s.state = stOverviewPlan
		a, _ := again()
		return a, true
	default:
		return s.softResult(nil, "overview failed: %d %s",
			code, s.lastText), true
	}
}

func (s *Session) stXOverRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		rec, perr := parseOverviewLine(data)
		if perr != nil {
			// one mangled row shouldn't sink the whole download
			s.log.LogPrintf(WARN, "overview row skipped: %v", perr)
		} else if err := s.req.Over.OverviewLine(rec); err != nil {
			return s.softResult(err, "overview sink: %v", err), true
		}
		a, _ := needInput()
		return a, true
	}
	s.state = s.afterChunkRecords()
	a, _ := again()
	return a, true
}

// afterChunkRecords decides where to go once a chunk's summary rows
// are in: extra headers next, or straight to the next chunk.
func (s *Session) afterChunkRecords() sessionState {
	if len(s.req.ExtraHeaders) == 0 {
		s.rng.chunkDone()
		return stOverviewPlan
	}
	if s.flags.noXHdr {
		s.headNum = s.rng.curLo
		s.headExtrasOnly = true
		return stHeadNext
	}
	s.xhdrIdx = 0
	return stSendXHdr
}

func (s *Session) stSendXHdr() (Action, bool) {
	if s.xhdrIdx >= len(s.req.ExtraHeaders) {
		s.rng.chunkDone()
		s.state = stOverviewPlan
		return again()
	}
	cmd, logStr := encodeCmd("XHDR %s %d-%d",
		s.req.ExtraHeaders[s.xhdrIdx], s.rng.curLo, s.rng.curHi)
	return s.emit(stXHdrResp, cmd, logStr), false
}

func (s *Session) stXHdrResp(line []byte) (Action, bool) {
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
		s.state = stXHdrRead
		a, _ := needInput()
		return a, true
	case respUnsupported(code):
		s.log.LogPrintf(WARN, "XHDR unsupported, falling back to HEAD")
		s.flags.noXHdr = true
		s.headNum = s.rng.curLo
		s.headExtrasOnly = true
		s.state = stHeadNext
		a, _ := again()
		return a, true
	default:
		// this one field won't come; try the rest
		s.xhdrIdx++
		s.state = stSendXHdr
		a, _ := again()
		return a, true
	}
}

func (s *Session) stXHdrRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		num, value, perr := parseNumValueLine(data)
		if perr != nil {
			s.log.LogPrintf(WARN, "xhdr row skipped: %v", perr)
		} else {
			field := s.req.ExtraHeaders[s.xhdrIdx]
			if err := s.req.Over.HdrLine(field, num,
				string(value)); err != nil {
				return s.softResult(err, "header sink: %v", err), true
			}
		}
		a, _ := needInput()
		return a, true
	}
	s.xhdrIdx++
	s.state = stSendXHdr
	a, _ := again()
	return a, true
}

// HEAD-per-article fallback. headExtrasOnly means summary rows already
// arrived via XOVER and only the extra fields are wanted.

func (s *Session) stHeadNext() (Action, bool) {
	if s.headNum == 0 || s.headNum > s.rng.curHi {
		s.rng.chunkDone()
		s.state = stOverviewPlan
		return again()
	}
	s.headRec = OverviewRec{Num: s.headNum}
	cmd, logStr := encodeCmd("HEAD %d", s.headNum)
	return s.emit(stHeadResp, cmd, logStr), false
}

func (s *Session) stHeadResp(line []byte) (Action, bool) {
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
		s.state = stHeadRead
		a, _ := needInput()
		return a, true
	case respArticleGone(code):
		// holes in the numbering are normal
		s.headNum++
		s.state = stHeadNext
		a, _ := again()
		return a, true
	default:
		return s.softResult(nil, "head fetch failed: %d %s",
			code, s.lastText), true
	}
}

func (s *Session) stHeadRead(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	data, end := dotUnstuffLine(line)
	if !end {
		if field, value, ok := parseHeaderLine(data); ok {
			if err := s.harvestHeadField(field, value); err != nil {
				return s.softResult(err, "header sink: %v", err), true
			}
		}
		a, _ := needInput()
		return a, true
	}
	if !s.headExtrasOnly {
		if err := s.req.Over.OverviewLine(s.headRec); err != nil {
			return s.softResult(err, "overview sink: %v", err), true
		}
	}
	s.headNum++
	s.state = stHeadNext
	a, _ := again()
	return a, true
}

func (s *Session) harvestHeadField(field, value []byte) error {
	if !s.headExtrasOnly {
		switch {
		case au.EqualFoldString(unsafeBytesToStr(field), "Subject"):
			s.headRec.Subject = string(value)
		case au.EqualFoldString(unsafeBytesToStr(field), "From"):
			s.headRec.From = string(value)
		case au.EqualFoldString(unsafeBytesToStr(field), "Date"):
			s.headRec.Date = string(value)
		case au.EqualFoldString(unsafeBytesToStr(field), "Message-ID"):
			s.headRec.MsgID = FullMsgIDStr(value)
		case au.EqualFoldString(unsafeBytesToStr(field), "References"):
			s.headRec.References = string(value)
		case au.EqualFoldString(unsafeBytesToStr(field), "Bytes"):
			if isNumberSlice(value) {
				s.headRec.Bytes = stoi64(value)
			}
		case au.EqualFoldString(unsafeBytesToStr(field), "Lines"):
			if isNumberSlice(value) {
				s.headRec.Lines = stoi64(value)
			}
		}
	}
	for _, want := range s.req.ExtraHeaders {
		if au.EqualFoldString(unsafeBytesToStr(field), want) {
			return s.req.Over.HdrLine(want, s.headNum, string(value))
		}
	}
	return nil
}
