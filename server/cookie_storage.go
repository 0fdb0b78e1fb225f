package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-bridge/gotrue"
	liberrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// maxChunkSize keeps every cookie, name and attributes included, under the
	// 4096 byte limit browsers enforce.
	maxChunkSize  = 3180
	maxChunks     = 8
	cookieKeyInfo = "go-auth-bridge session cookie"
)

// cookieCodec seals session values so the cookie can be neither read nor
// forged by the client. The cookie name is bound as additional data.
type cookieCodec struct {
	key []byte
}

func newCookieCodec(secret string) (*cookieCodec, error) {
	if secret == "" {
		return nil, errors.New("[newCookieCodec] secret is required")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfo)), key); err != nil {
		return nil, errors.Wrap(err, "[newCookieCodec] derive key")
	}
	return &cookieCodec{key: key}, nil
}

func (c *cookieCodec) seal(name, value string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", errors.Wrap(err, "[cookieCodec.seal] cipher")
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "[cookieCodec.seal] nonce")
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), []byte(name))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *cookieCodec) open(name, encoded string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", liberrors.Wrapf(liberrors.ErrInvalidCookie, "decode %s", name)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", errors.Wrap(err, "[cookieCodec.open] cipher")
	}
	if len(data) < aead.NonceSize() {
		return "", liberrors.Wrapf(liberrors.ErrInvalidCookie, "short %s", name)
	}
	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(name))
	if err != nil {
		return "", liberrors.Wrapf(liberrors.ErrInvalidCookie, "open %s", name)
	}
	return string(plain), nil
}

type cookieOptions struct {
	domain string
	secure bool
	maxAge time.Duration
}

var _ gotrue.Storage = (*CookieStorage)(nil)

// CookieStorage is a gotrue.Storage bound to one request and its response.
// Reads come from the request cookies, writes become Set-Cookie headers, and
// a value written during the request is what later reads in the same request see.
// Each cookie name gets at most one Set-Cookie header, the last write.
type CookieStorage struct {
	codec   *cookieCodec
	opts    cookieOptions
	r       *http.Request
	w       http.ResponseWriter
	pending map[string]string
	written map[string]bool // names holding a value in this response
}

func newCookieStorage(w http.ResponseWriter, r *http.Request, codec *cookieCodec, opts cookieOptions) *CookieStorage {
	return &CookieStorage{
		codec:   codec,
		opts:    opts,
		r:       r,
		w:       w,
		pending: make(map[string]string),
		written: make(map[string]bool),
	}
}

// Get joins the chunks stored under key and decrypts them. A tampered or
// unreadable cookie reads as absent and is cleared.
func (c *CookieStorage) Get(ctx context.Context, key string) (string, error) {
	if value, ok := c.pending[key]; ok {
		return value, nil
	}

	encoded := c.requestValue(key)
	if encoded == "" {
		return "", nil
	}
	value, err := c.codec.open(key, encoded)
	if liberrors.Is(err, liberrors.ErrInvalidCookie) {
		log.Warn().Err(err).Str("cookie", key).Msg("clearing unreadable session cookie")
		return "", c.Remove(ctx, key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (c *CookieStorage) Set(_ context.Context, key, value string) error {
	encoded, err := c.codec.seal(key, value)
	if err != nil {
		return err
	}
	chunks := chunkString(encoded, maxChunkSize)
	if len(chunks) > maxChunks {
		return liberrors.Wrapf(liberrors.ErrCookieTooLarge, "%s needs %d chunks", key, len(chunks))
	}

	maxAge := int(c.opts.maxAge.Seconds())
	current := map[string]bool{}
	if len(chunks) == 1 {
		c.setCookie(key, chunks[0], maxAge)
		current[key] = true
	} else {
		for i, chunk := range chunks {
			name := chunkName(key, i)
			c.setCookie(name, chunk, maxAge)
			current[name] = true
		}
	}
	for _, name := range c.cookieNames(key) {
		if !current[name] {
			c.setCookie(name, "", -1)
		}
	}

	c.pending[key] = value
	return nil
}

func (c *CookieStorage) Remove(_ context.Context, key string) error {
	for _, name := range c.cookieNames(key) {
		c.setCookie(name, "", -1)
	}
	c.pending[key] = ""
	return nil
}

func (c *CookieStorage) setCookie(name, value string, maxAge int) {
	c.dropSetCookie(name)
	if maxAge < 0 {
		delete(c.written, name)
	} else {
		c.written[name] = true
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.opts.domain,
		HttpOnly: true,
		Secure:   c.opts.secure || getScheme(c.r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// requestValue returns the unchunked cookie, or the chunks key.0..key.n joined in order.
func (c *CookieStorage) requestValue(key string) string {
	if cookie, err := c.r.Cookie(key); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var b strings.Builder
	for i := 0; i < maxChunks; i++ {
		cookie, err := c.r.Cookie(chunkName(key, i))
		if err != nil {
			break
		}
		b.WriteString(cookie.Value)
	}
	return b.String()
}

// dropSetCookie removes a Set-Cookie header already queued for name.
func (c *CookieStorage) dropSetCookie(name string) {
	header := c.w.Header()
	prefix := name + "="
	var kept []string
	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		header.Del("Set-Cookie")
		return
	}
	header["Set-Cookie"] = kept
}

// cookieNames lists every cookie for key that the browser holds or will hold
// after this response: the ones the request carries and the ones set since.
func (c *CookieStorage) cookieNames(key string) []string {
	seen := map[string]bool{}
	for _, cookie := range c.r.Cookies() {
		seen[cookie.Name] = true
	}
	for name := range c.written {
		seen[name] = true
	}
	var names []string
	for name := range seen {
		if name == key || strings.HasPrefix(name, key+".") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func chunkName(key string, i int) string {
	return key + "." + strconv.Itoa(i)
}

func chunkString(s string, size int) []string {
	var chunks []string
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	return append(chunks, s)
}
