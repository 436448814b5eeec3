package minimail

// message-id types live in their own small package
// so that nntp won't need to pull in whole mail handling

import (
	au "nread/lib/asciiutils"
)

type TFullMsgID []byte // msgid including < and >
type TCoreMsgID []byte // msgid excluding < and >
type TFullMsgIDStr string
type TCoreMsgIDStr string

func CutMessageIDStr(id TFullMsgIDStr) TCoreMsgIDStr {
	return TCoreMsgIDStr(id[1 : len(id)-1])
}

func ValidMessageIDStr(id TFullMsgIDStr) bool {
	return len(id) >= 3 &&
		id[0] == '<' && id[len(id)-1] == '>' && len(id) <= 250 &&
		au.IsPrintableASCIIStr(string(CutMessageIDStr(id)), '>')
}

func CutMessageID(id TFullMsgID) TCoreMsgID {
	return TCoreMsgID(id[1 : len(id)-1])
}

func ValidMessageID(id TFullMsgID) bool {
	return ValidMessageIDStr(TFullMsgIDStr(id))
}

// ExtractAddress pulls the bare addr-spec out of a From-style value:
// `Name <user@host>`, `user@host (Name)` or plain `user@host`.
func ExtractAddress(s string) string {
	s = au.TrimWSString(s)
	if i := lastIndexByte(s, '<'); i >= 0 {
		if j := indexByteFrom(s, '>', i); j > i {
			return s[i+1 : j]
		}
		return s[i+1:]
	}
	if i := indexByteFrom(s, '(', 0); i >= 0 {
		return au.TrimWSString(s[:i])
	}
	return s
}

// AddressesEqual compares addr-specs the way cancel verification needs:
// case-insensitively, ignoring surrounding display name junk.
func AddressesEqual(a, b string) bool {
	return au.EqualFoldString(ExtractAddress(a), ExtractAddress(b))
}

func lastIndexByte(s string, c byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func indexByteFrom(s string, c byte, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
