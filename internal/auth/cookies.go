package auth

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieStore はブラウザ側に永続化されるキー/値（キーごとに有効期限あり）を扱います。
type CookieStore interface {
	// Get は有効期限内の値を返します。存在しない、または期限切れの場合は false です。
	Get(name string) (string, bool)
	Set(name, value string, expiresAt time.Time)
	Delete(name string)
}

type cookieEntry struct {
	value     string
	expiresAt time.Time
	deleted   bool
}

func (e cookieEntry) live(now time.Time) bool {
	return !e.deleted && now.Before(e.expiresAt)
}

// MemoryCookies はプロセス内で完結する CookieStore です。
// HTTP を経由しない呼び出し元やテストで使用します。
type MemoryCookies struct {
	now     func() time.Time
	entries map[string]cookieEntry
}

// NewMemoryCookies は MemoryCookies を作成します。now が nil の場合は time.Now を使います。
func NewMemoryCookies(now func() time.Time) *MemoryCookies {
	if now == nil {
		now = time.Now
	}
	return &MemoryCookies{
		now:     now,
		entries: make(map[string]cookieEntry),
	}
}

func (m *MemoryCookies) Get(name string) (string, bool) {
	entry, ok := m.entries[name]
	if !ok {
		return "", false
	}
	if !entry.live(m.now()) {
		delete(m.entries, name)
		return "", false
	}
	return entry.value, true
}

func (m *MemoryCookies) Set(name, value string, expiresAt time.Time) {
	m.entries[name] = cookieEntry{value: value, expiresAt: expiresAt}
}

func (m *MemoryCookies) Delete(name string) {
	delete(m.entries, name)
}

// Names は有効期限内の Cookie 名を昇順で返します。
func (m *MemoryCookies) Names() []string {
	now := m.now()
	names := make([]string, 0, len(m.entries))
	for name, entry := range m.entries {
		if entry.live(now) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CookieOptions はレスポンスに付与する Cookie 属性です。
type CookieOptions struct {
	Path     string
	Domain   string
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
}

// GinCookies は gin のリクエスト/レスポンス Cookie を CookieStore として扱うアダプターです。
// 同一リクエスト内で書き込んだ値はリクエスト Cookie より優先して読み出します。
type GinCookies struct {
	c       *gin.Context
	opts    CookieOptions
	now     func() time.Time
	pending map[string]cookieEntry
}

// NewGinCookies は GinCookies を作成します。
func NewGinCookies(c *gin.Context, opts CookieOptions) *GinCookies {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	return &GinCookies{
		c:       c,
		opts:    opts,
		now:     time.Now,
		pending: make(map[string]cookieEntry),
	}
}

func (g *GinCookies) Get(name string) (string, bool) {
	if entry, ok := g.pending[name]; ok {
		if !entry.live(g.now()) {
			return "", false
		}
		return entry.value, true
	}
	// 期限切れの Cookie はブラウザが送ってこない
	value, err := g.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return value, true
}

func (g *GinCookies) Set(name, value string, expiresAt time.Time) {
	maxAge := int(math.Ceil(expiresAt.Sub(g.now()).Seconds()))
	if maxAge <= 0 {
		g.Delete(name)
		return
	}
	g.pending[name] = cookieEntry{value: value, expiresAt: expiresAt}
	g.c.SetSameSite(g.opts.SameSite)
	g.c.SetCookie(name, value, maxAge, g.opts.Path, g.opts.Domain, g.opts.Secure, g.opts.HttpOnly)
}

func (g *GinCookies) Delete(name string) {
	g.pending[name] = cookieEntry{deleted: true}
	g.c.SetSameSite(g.opts.SameSite)
	g.c.SetCookie(name, "", -1, g.opts.Path, g.opts.Domain, g.opts.Secure, g.opts.HttpOnly)
}
