package nntp

import (
	"time"

	"nread/lib/minimail"
)

type FullMsgID = minimail.TFullMsgID
type CoreMsgID = minimail.TCoreMsgID
type FullMsgIDStr = minimail.TFullMsgIDStr
type CoreMsgIDStr = minimail.TCoreMsgIDStr

// ReqKind tells what the caller wants from the session.
type ReqKind int

const (
	ReqArticle ReqKind = iota // full article, by message-id or number
	ReqHead                   // headers only
	ReqCancel                 // cancel a previously posted article
	ReqGroup                  // select group + download overview
	ReqNewGroups              // NEWGROUPS since given date
	ReqListGroups             // full group listing (+XACTIVE/PRETTYNAMES)
	ReqListIDs                // LISTGROUP article number listing
	ReqPost                   // post an article
	ReqSearch                 // XPAT header search
)

var reqKindNames = [...]string{
	ReqArticle:    "article",
	ReqHead:       "head",
	ReqCancel:     "cancel",
	ReqGroup:      "group",
	ReqNewGroups:  "newgroups",
	ReqListGroups: "listgroups",
	ReqListIDs:    "listids",
	ReqPost:       "post",
	ReqSearch:     "search",
}

func (k ReqKind) String() string {
	if int(k) < len(reqKindNames) {
		return reqKindNames[k]
	}
	return "unknown"
}

type SearchTerm struct {
	Field   string // header field to match
	Pattern string // wildmat pattern
}

// OverviewRec is one summarized article row.
type OverviewRec struct {
	Num        uint64
	Subject    string
	From       string
	Date       string
	MsgID      FullMsgIDStr
	References string
	Bytes      uint64
	Lines      uint64
}

type GroupInfo struct {
	Name   string
	Hi, Lo uint64
	Status string
}

// sinks are filled incrementally while a request runs.
// a sink returning error aborts the request (soft, connection stays).

type OverviewSink interface {
	OverviewLine(rec OverviewRec) error
	// extra header values fetched via XHDR (or HEAD fallback)
	HdrLine(field string, num uint64, value string) error
}

type ArticleSink interface {
	// line is already dot-unstuffed, without CRLF. valid until return.
	ArticleLine(line []byte) error
}

type GroupListSink interface {
	ListGroup(gi GroupInfo) error
	GroupDescription(name, desc string) error
}

type NumberSink interface {
	ArticleNum(num uint64) error
}

type SearchSink interface {
	SearchHit(term SearchTerm, num uint64, value string) error
}

// Store is the local message store boundary the cancel flow talks to.
type Store interface {
	HasArticleOffline(group string, msgid FullMsgIDStr) bool
	RemoveArticle(group string, msgid FullMsgIDStr) error
}

// CancelConfirmer lets UI ask the user before a cancel is posted.
type CancelConfirmer interface {
	ConfirmCancel(msgid FullMsgIDStr, from string) bool
}

// Request describes one unit of work given to a Session.
type Request struct {
	Kind  ReqKind
	Group string       // target group; empty for by-msgid fetches
	MsgID FullMsgIDStr // for article/head/cancel by message-id
	Num   uint64       // for article/head by number

	First, Last  uint64 // explicit article range; 0 means server range
	MaxArticles  int64  // overview ceiling; <=0 means unbounded
	ExtraHeaders []string
	Terms        []SearchTerm
	Since        time.Time // NEWGROUPS threshold

	Article    []byte   // message to post, LF or CRLF lines, not dot-stuffed
	Identities []string // own addresses, for cancel From verification
	Confirm    CancelConfirmer

	Over   OverviewSink
	Art    ArticleSink
	Groups GroupListSink
	Nums   NumberSink
	Search SearchSink
	Store  Store
}

// Result is what a finished (or failed) request reports back.
type Result struct {
	OK   bool
	Code uint   // last server response code, 0 if none
	Msg  string // human-readable explanation
	Err  error
}

type ActionKind int

const (
	actAgain ActionKind = iota // internal: run next handler immediately

	// ActionSendCommand: write Cmd to the transport, then call Advance
	// again. CmdLog is the log-safe rendition (credentials masked).
	ActionSendCommand
	// ActionNeedMoreInput: feed the next line once the transport has one.
	// Yield set means the caller should let other work run first.
	ActionNeedMoreInput
	// ActionSuspend: session is parked awaiting SupplyCredentials or
	// AuthAborted; transport reads should be paused.
	ActionSuspend
	// ActionComplete: current request finished; session reusable.
	ActionComplete
	// ActionFatal: session is dead, transport must be closed.
	ActionFatal
)

type Action struct {
	Kind   ActionKind
	Cmd    []byte
	CmdLog string
	Yield  bool
	Res    Result
}
