package nntp

import (
	"errors"

	. "nread/lib/logx"
)

// ErrPromptPending is returned by a CredentialSource which has to ask
// the user; the session suspends until SupplyCredentials or
// AuthAborted is called.
var ErrPromptPending = errors.New("nntp: credential prompt pending")

type Credentials struct {
	User string
	Pass string
}

// CredKey identifies a credential slot. Group is empty when the server
// is configured for single sign-on.
type CredKey struct {
	Server string
	Group  string
}

// CredentialSource resolves credentials for a session. Implementations
// may consult caches, config or the user. Returning ErrPromptPending
// parks the session; any other error fails authentication outright.
type CredentialSource interface {
	LookupNNTPCreds(s *Session, key CredKey) (Credentials, error)
	// ForgetNNTPCreds is called when the server rejected the
	// credentials, so stale cache entries don't loop forever.
	ForgetNNTPCreds(key CredKey)
}

type AuthDecision int

const (
	AuthGiveUp AuthDecision = iota
	AuthRetry               // ask the source again with the same cache
	AuthForgetAndRetry      // drop cached creds first, then re-ask
)

// AuthAdvisor decides what to do after a 481/482 rejection.
// A nil advisor forgets and retries up to MaxAuthAttempts.
type AuthAdvisor interface {
	NNTPAuthFailed(key CredKey, attempt int, code uint, msg string) AuthDecision
}

func (s *Session) credKey() CredKey {
	k := CredKey{Server: s.cfg.Server}
	if !s.cfg.SingleSignOn && s.req != nil {
		k.Group = s.req.Group
	}
	return k
}

// SupplyCredentials resumes a session suspended on a credential
// prompt. Call Advance afterwards.
func (s *Session) SupplyCredentials(c Credentials) {
	s.creds = c
	s.haveCreds = true
}

// AuthAborted resumes a suspended session with a user refusal; the
// current request will fail softly.
func (s *Session) AuthAborted() {
	s.authAborted = true
}

func (s *Session) stAuthStart() (Action, bool) {
	if s.cfg.Creds == nil {
		return s.fatalf(nil,
			"server demands authentication but no credentials configured"), false
	}
	if !s.haveCreds {
		c, err := s.cfg.Creds.LookupNNTPCreds(s, s.credKey())
		if err == ErrPromptPending {
			s.log.LogPrintf(DEBUG, "auth suspended waiting for prompt")
			s.state = stAuthSuspended
			return Action{Kind: ActionSuspend}, false
		}
		if err != nil {
			return s.fatalf(err, "credential lookup failed: %v", err), false
		}
		s.creds = c
		s.haveCreds = true
	}
	s.authAttempts++
	cmd, logStr := encodeCmd("AUTHINFO user %s", s.creds.User)
	a := s.emit(stAuthUserResp, cmd, logStr)
	// auth commands must not themselves become resume targets
	s.cmdState = stAuthStart
	return a, false
}

func (s *Session) stAuthSuspended() (Action, bool) {
	if s.authAborted {
		s.authAborted = false
		s.haveCreds = false
		return s.fatalf(ErrAuthCancelled, "authentication cancelled"), false
	}
	if s.haveCreds {
		s.state = stAuthStart
		return again()
	}
	return Action{Kind: ActionSuspend}, false
}

func (s *Session) stAuthUserResp(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	code, _, _, err := s.resp(line)
	if err != nil {
		return s.desync(err), true
	}
	switch {
	case code == codeAuthContinue:
		s.state = stAuthSendPass
		a, _ := again()
		return a, true
	case code == codeAuthOK:
		// password-less account
		return s.authDone(), true
	default:
		a := s.authRejected(code)
		return a, true
	}
}

func (s *Session) stAuthSendPass() (Action, bool) {
	cmd, logStr := encodeAuthPass(s.creds.Pass)
	a := s.emit(stAuthPassResp, cmd, logStr)
	s.cmdState = stAuthStart
	return a, false
}

func (s *Session) stAuthPassResp(line []byte) (Action, bool) {
	if line == nil {
		return needInput()
	}
	code, _, _, err := s.resp(line)
	if err != nil {
		return s.desync(err), true
	}
	if code == codeAuthOK {
		return s.authDone(), true
	}
	return s.authRejected(code), true
}

func (s *Session) authDone() Action {
	s.log.LogPrintf(INFO, "authenticated as %q", s.creds.User)
	s.flags.authenticated = true
	// rerun the interrupted send state; it reissues its command
	s.state = s.authResume
	return Action{Kind: actAgain}
}

func (s *Session) authRejected(code uint) Action {
	s.log.LogPrintf(WARN,
		"auth rejected (%d %s), attempt %d", code, s.lastText, s.authAttempts)

	key := s.credKey()
	dec := AuthForgetAndRetry
	if s.cfg.Advisor != nil {
		dec = s.cfg.Advisor.NNTPAuthFailed(key, s.authAttempts, code, s.lastText)
	}
	if s.authAttempts >= s.cfg.MaxAuthAttempts {
		dec = AuthGiveUp
	}
	switch dec {
	case AuthForgetAndRetry:
		s.cfg.Creds.ForgetNNTPCreds(key)
		fallthrough
	case AuthRetry:
		s.haveCreds = false
		s.state = stAuthStart
		return Action{Kind: actAgain}
	default:
		return s.fatalf(nil,
			"authentication failed: %d %s", code, s.lastText)
	}
}
