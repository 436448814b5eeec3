package nntp

import (
	"fmt"

	au "nread/lib/asciiutils"
)

// response codes of flow-control significance.
// {RFC 977} {RFC 2980} {RFC 3977} and old INN extension docs.
const (
	codeGreetPostOK   = 200
	codeGreetNoPost   = 201
	codeListExtOK     = 202
	codeQuitOK        = 205
	codeGroupOK       = 211 // also LISTGROUP numbers follow
	codeListOK        = 215
	codeArticleOK     = 220
	codeHeadOK        = 221 // also XHDR/XPAT output follows
	codeBodyOK        = 222
	codeStatOK        = 223
	codeXOverOK       = 224
	codeNewGroupsOK   = 231
	codePostOK        = 240
	codeAuthOK        = 281
	codeSendPost      = 340
	codeAuthContinue  = 381
	codeNoSuchGroup   = 411
	codeNoGroupSel    = 412
	codeNoArticleNum  = 420 // also used for empty ranges
	codeNoArticleHere = 423
	codeNoArticleID   = 430
	codePostFailed    = 441
	codeAuthRequired  = 480
	codeAuthRejected  = 481
	codeAuthOutOfSeq  = 482
	codeAuthSimpleReq = 450 // ancient AUTHINFO SIMPLE variant
	codeNotSupported  = 500
	codeSyntaxError   = 501
	codeNoPermission  = 502
	codeNotAvailable  = 503
)

func respClassOK(code uint) bool       { return code >= 200 && code < 300 }
func respClassContinue(code uint) bool { return code >= 300 && code < 400 }
func respClassError(code uint) bool    { return code >= 400 }

// article-missing class is recoverable, not a session fault
func respArticleGone(code uint) bool {
	return code >= 420 && code < 440
}

func respUnsupported(code uint) bool {
	return code == codeNotSupported || code == codeSyntaxError
}

// authRedirect reports codes which force a jump into the auth sub-flow
// no matter what state the session is in.
func authRedirect(code uint) bool {
	return code == codeAuthRequired || code == codeAuthSimpleReq
}

// parseResponseCode extracts leading 3-digit code.
// NNTP uses exactly 3 characters always so expect that.
func parseResponseCode(line []byte) (code uint, rest []byte, err error) {
	if len(line) < 3 || !isNumberSlice(line[:3]) ||
		(len(line) > 3 && line[3] != ' ') {

		return 0, line, fmt.Errorf("response %q not understood", line)
	}
	code = uint(stoi64(line[:3]))
	if code < 100 || code >= 600 {
		err = fmt.Errorf("response code %d out of range", code)
	}
	return code, line[3:], err
}

// parseResponseArguments parses rest of response line,
// up to specified number of arguments, appending to args slice,
// returning updated args slice and unprocessed slice of line.
// If requested num is -1 it will parse as much arguments as there are.
func parseResponseArguments(
	line []byte, num int, args [][]byte) ([][]byte, []byte) {

	if len(line) == 0 || num == 0 {
		return args, nil
	}
	i := 1 // skip initial guaranteed space
	for i < len(line) && num != 0 {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		s := i
		for i < len(line) && line[i] != ' ' {
			i++
		}
		if i <= s {
			break
		}
		args = append(args, line[s:i])
		num--
	}
	return args, line[i:]
}

func (s *Session) parseGroupResponse(
	rest []byte) (num, lo, hi uint64, err error) {

	defer func() {
		s.args = s.args[:0]
	}()

	s.args, _ = parseResponseArguments(rest, 4, s.args[:0])
	if len(s.args) < 3 ||
		!isNumberSlice(s.args[0]) ||
		!isNumberSlice(s.args[1]) ||
		!isNumberSlice(s.args[2]) {

		err = fmt.Errorf(
			"bad successful group response %q",
			au.TrimWSBytes(rest))
		return
	}

	num = stoi64(s.args[0])
	lo = stoi64(s.args[1])
	hi = stoi64(s.args[2])
	return
}

// parseListActiveLine parses `<name> <high> <low> [<flags>]`.
// Real-world servers produce slightly malformed lines (extra whitespace,
// missing flags, even empty lines); be permissive about those.
func parseListActiveLine(
	line []byte) (name []byte, hiwm, lowm uint64, status []byte, err error) {

	i := 0
	skipWS := func() {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
	}
	skipNonWS := func() {
		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
	}

	skipWS()
	s := i
	skipNonWS()
	if s >= i || !ValidGroupSlice(line[s:i]) {
		err = fmt.Errorf("bad group %q", line[s:i])
		return
	}
	name = line[s:i]

	skipWS()
	s = i
	skipNonWS()
	if s >= i {
		// name-only line; NEWGROUPS output from some servers
		return
	}
	if !isNumberSlice(line[s:i]) {
		err = fmt.Errorf("bad hiwm %q", line[s:i])
		return
	}
	hiwm = stoi64(line[s:i])

	skipWS()
	s = i
	skipNonWS()
	if s >= i || !isNumberSlice(line[s:i]) {
		err = fmt.Errorf("bad lowm %q", line[s:i])
		return
	}
	lowm = stoi64(line[s:i])

	skipWS()
	s = i
	skipNonWS()
	// can be empty I guess... I don't see why not
	status = line[s:i]

	// ignore any extra junk after flags
	return
}

// parseOverviewLine parses one XOVER row. Fixed field order per {RFC 2980}:
// number, subject, author, date, message-id, references, bytes, lines.
func parseOverviewLine(line []byte) (rec OverviewRec, err error) {
	fields := make([][]byte, 0, 9)
	s := 0
	for i := 0; i <= len(line); i++ {
		if i == len(line) || line[i] == '\t' {
			fields = append(fields, line[s:i])
			s = i + 1
		}
	}
	if len(fields) < 1 {
		err = fmt.Errorf("empty overview line")
		return
	}
	snum := au.TrimWSBytes(fields[0])
	if !isNumberSlice(snum) {
		err = fmt.Errorf("bad article number %q", snum)
		return
	}
	rec.Num = stoi64(snum)
	getf := func(n int) []byte {
		if n < len(fields) {
			return fields[n]
		}
		return nil
	}
	rec.Subject = string(getf(1))
	rec.From = string(getf(2))
	rec.Date = string(getf(3))
	rec.MsgID = FullMsgIDStr(au.TrimWSBytes(getf(4)))
	rec.References = string(getf(5))
	if b := au.TrimWSBytes(getf(6)); isNumberSlice(b) {
		rec.Bytes = stoi64(b)
	}
	if l := au.TrimWSBytes(getf(7)); isNumberSlice(l) {
		rec.Lines = stoi64(l)
	}
	return
}

// parseNumValueLine parses XHDR/XPAT output: `<num> <value>`.
func parseNumValueLine(line []byte) (num uint64, value []byte, err error) {
	i := 0
	for i < len(line) && line[i] != ' ' && line[i] != '\t' {
		i++
	}
	snum := line[:i]
	if !isNumberSlice(snum) {
		err = fmt.Errorf("bad article number %q", snum)
		return
	}
	num = stoi64(snum)
	value = au.TrimWSBytes(line[i:])
	return
}

// parseHeaderLine splits `Field: value`; ok=false for continuation or
// malformed lines.
func parseHeaderLine(line []byte) (field, value []byte, ok bool) {
	if len(line) == 0 || line[0] == ' ' || line[0] == '\t' {
		return
	}
	for i := 0; i < len(line); i++ {
		if line[i] == ':' {
			return au.TrimWSBytes(line[:i]), au.TrimWSBytes(line[i+1:]), true
		}
	}
	return
}
