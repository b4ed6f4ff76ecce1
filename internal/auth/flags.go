package auth

// セッションに保存するキー
const (
	sessionKeyUsername   = "username"
	sessionKeyStatus     = "authentication_status"
	sessionKeyCookieKeys = "cookie_keys"
)

// SessionStore はブラウザセッション単位の状態を保持します。
// github.com/gin-contrib/sessions の sessions.Session はこのインターフェースを満たします。
type SessionStore interface {
	Get(key interface{}) interface{}
	Set(key interface{}, val interface{})
	Delete(key interface{})
	Save() error
}

// Status は認証状態の三値（未設定 / 認証済み / 未認証）です。
type Status int8

const (
	StatusUnset Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unset"
	}
}

// Authenticated は認証済みかどうかを返します。
func (s Status) Authenticated() bool {
	return s == StatusAuthenticated
}

// Flags はセッションフラグのスナップショットです。
type Flags struct {
	Username    string   `json:"username,omitempty"`
	HasUsername bool     `json:"-"`
	Status      Status   `json:"-"`
	CookieKeys  []string `json:"cookieKeys,omitempty"`
}

// State は 1 回の描画（リクエスト）で使うセッションと Cookie の組です。
type State struct {
	Session SessionStore
	Cookies CookieStore
}

func readFlags(session SessionStore) Flags {
	var flags Flags
	if name, ok := session.Get(sessionKeyUsername).(string); ok {
		flags.Username = name
		flags.HasUsername = true
	}
	if v, ok := session.Get(sessionKeyStatus).(bool); ok {
		if v {
			flags.Status = StatusAuthenticated
		} else {
			flags.Status = StatusUnauthenticated
		}
	}
	flags.CookieKeys = readCookieKeys(session)
	return flags
}

func readCookieKeys(session SessionStore) []string {
	keys, _ := session.Get(sessionKeyCookieKeys).([]string)
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

func setStatus(session SessionStore, authenticated bool) {
	session.Set(sessionKeyStatus, authenticated)
}

func setUsername(session SessionStore, username string) {
	session.Set(sessionKeyUsername, username)
}

func trackCookieKey(session SessionStore, key string) {
	keys := readCookieKeys(session)
	for _, k := range keys {
		if k == key {
			return
		}
	}
	session.Set(sessionKeyCookieKeys, append(keys, key))
}

func resetFlags(session SessionStore) {
	session.Delete(sessionKeyUsername)
	session.Delete(sessionKeyStatus)
	session.Delete(sessionKeyCookieKeys)
}
