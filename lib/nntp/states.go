package nntp

type sessionState int

// reader conversation states. one handler per state; states suffixed
// Resp expect exactly one response line, states suffixed Read consume
// dot-terminated multi-line data one line per invocation, the rest run
// without network input.
const (
	stClosed sessionState = iota // fresh, no greeting seen yet
	stGreeting
	stDead // transport gone, session unusable
	stIdle // between requests, connection alive

	// login / negotiation
	stSendModeReader
	stModeReaderResp
	stSendListExtensions
	stListExtensionsResp
	stListExtensionsRead
	stSendListSearches
	stListSearchesResp
	stListSearchesRead
	stSendListSrchFields
	stListSrchFieldsResp
	stListSrchFieldsRead
	stSendGetProperties
	stGetPropertiesResp
	stGetPropertiesRead
	stSendListSubscriptions
	stListSubscriptionsResp
	stListSubscriptionsRead
	stDispatch

	// authentication sub-flow
	stAuthStart
	stAuthUserResp
	stAuthSendPass
	stAuthPassResp
	stAuthSuspended

	// group selection
	stSendGroup
	stGroupResp

	// article / head fetch
	stSendArticle
	stArticleResp
	stArticleRead

	// overview download
	stOverviewPlan
	stXOverResp
	stXOverRead
	stSendXHdr
	stXHdrResp
	stXHdrRead
	stHeadNext
	stHeadResp
	stHeadRead

	// LISTGROUP
	stSendListGroup
	stListGroupResp
	stListGroupRead

	// listings
	stSendList
	stListResp
	stListRead
	stSendXActive
	stXActiveResp
	stXActiveRead
	stSendPrettyNames
	stPrettyNamesResp
	stPrettyNamesRead
	stSendNewGroups
	stNewGroupsResp
	stNewGroupsRead

	// posting
	stSendPost
	stPostResp
	stPostBody
	stPostDoneResp

	// cancel
	stCancelSendHead
	stCancelHeadResp
	stCancelReadHead
	stCancelVerify
	stCancelSendPost
	stCancelPostResp
	stCancelBody
	stCancelDoneResp

	// search
	stSearchNext
	stXPatResp
	stXPatRead

	// shutdown
	stSendQuit
	stQuitResp
)

var stateNames = map[sessionState]string{
	stClosed:                "closed",
	stGreeting:              "greeting",
	stDead:                  "dead",
	stIdle:                  "idle",
	stSendModeReader:        "send-mode-reader",
	stModeReaderResp:        "mode-reader-resp",
	stSendListExtensions:    "send-list-extensions",
	stListExtensionsResp:    "list-extensions-resp",
	stListExtensionsRead:    "list-extensions-read",
	stSendListSearches:      "send-list-searches",
	stListSearchesResp:      "list-searches-resp",
	stListSearchesRead:      "list-searches-read",
	stSendListSrchFields:    "send-list-srchfields",
	stListSrchFieldsResp:    "list-srchfields-resp",
	stListSrchFieldsRead:    "list-srchfields-read",
	stSendGetProperties:     "send-get-properties",
	stGetPropertiesResp:     "get-properties-resp",
	stGetPropertiesRead:     "get-properties-read",
	stSendListSubscriptions: "send-list-subscriptions",
	stListSubscriptionsResp: "list-subscriptions-resp",
	stListSubscriptionsRead: "list-subscriptions-read",
	stDispatch:              "dispatch",
	stAuthStart:             "auth-start",
	stAuthUserResp:          "auth-user-resp",
	stAuthSendPass:          "auth-send-pass",
	stAuthPassResp:          "auth-pass-resp",
	stAuthSuspended:         "auth-suspended",
	stSendGroup:             "send-group",
	stGroupResp:             "group-resp",
	stSendArticle:           "send-article",
	stArticleResp:           "article-resp",
	stArticleRead:           "article-read",
	stOverviewPlan:          "overview-plan",
	stXOverResp:             "xover-resp",
	stXOverRead:             "xover-read",
	stSendXHdr:              "send-xhdr",
	stXHdrResp:              "xhdr-resp",
	stXHdrRead:              "xhdr-read",
	stHeadNext:              "head-next",
	stHeadResp:              "head-resp",
	stHeadRead:              "head-read",
	stSendListGroup:         "send-listgroup",
	stListGroupResp:         "listgroup-resp",
	stListGroupRead:         "listgroup-read",
	stSendList:              "send-list",
	stListResp:              "list-resp",
	stListRead:              "list-read",
	stSendXActive:           "send-xactive",
	stXActiveResp:           "xactive-resp",
	stXActiveRead:           "xactive-read",
	stSendPrettyNames:       "send-prettynames",
	stPrettyNamesResp:       "prettynames-resp",
	stPrettyNamesRead:       "prettynames-read",
	stSendNewGroups:         "send-newgroups",
	stNewGroupsResp:         "newgroups-resp",
	stNewGroupsRead:         "newgroups-read",
	stSendPost:              "send-post",
	stPostResp:              "post-resp",
	stPostBody:              "post-body",
	stPostDoneResp:          "post-done-resp",
	stCancelSendHead:        "cancel-send-head",
	stCancelHeadResp:        "cancel-head-resp",
	stCancelReadHead:        "cancel-read-head",
	stCancelVerify:          "cancel-verify",
	stCancelSendPost:        "cancel-send-post",
	stCancelPostResp:        "cancel-post-resp",
	stCancelBody:            "cancel-body",
	stCancelDoneResp:        "cancel-done-resp",
	stSearchNext:            "search-next",
	stXPatResp:              "xpat-resp",
	stXPatRead:              "xpat-read",
	stSendQuit:              "send-quit",
	stQuitResp:              "quit-resp",
}

func (s sessionState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}
