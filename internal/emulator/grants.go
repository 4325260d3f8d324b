package emulator

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Permission names accepted by the token endpoint.
const (
	PermRead   = "read"
	PermWrite  = "write"
	PermDelete = "delete"
	PermList   = "list"
)

var allPermissions = []string{PermRead, PermWrite, PermDelete, PermList}

// Authorization errors
var (
	ErrForbidden     = errors.New("token does not grant this operation")
	ErrTokenExpired  = errors.New("token expired")
	ErrBadPermission = errors.New("unknown permission")
)

// Grant is a scoped access token issued for one bucket.
type Grant struct {
	Token       string
	Bucket      string
	Prefix      string
	Permissions []string
	ExpiresAt   time.Time // zero means no expiry
}

// Allows reports whether the grant permits perm on key.
func (g *Grant) Allows(perm, key string) bool {
	if !strings.HasPrefix(key, g.Prefix) {
		return false
	}
	for _, p := range g.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Grants keeps issued tokens in memory.
type Grants struct {
	mu     sync.RWMutex
	grants map[string]*Grant
	now    func() time.Time
}

// NewGrants creates an empty grant table.
func NewGrants() *Grants {
	return &Grants{
		grants: make(map[string]*Grant),
		now:    time.Now,
	}
}

// Issue creates a token for bucket. An empty permission list grants all
// permissions; ttl <= 0 never expires.
func (g *Grants) Issue(bucket, prefix string, permissions []string, ttl time.Duration) (*Grant, error) {
	perms, err := parsePermissions(permissions)
	if err != nil {
		return nil, err
	}

	grant := &Grant{
		Token:       uuid.NewString(),
		Bucket:      bucket,
		Prefix:      prefix,
		Permissions: perms,
	}
	if ttl > 0 {
		grant.ExpiresAt = g.now().Add(ttl)
	}

	g.mu.Lock()
	g.grants[grant.Token] = grant
	g.mu.Unlock()
	return grant, nil
}

// Authorize checks token against an operation on bucket/key. Tokens the
// table never issued act as bucket master keys.
func (g *Grants) Authorize(token, bucket, perm, key string) error {
	if token == "" {
		return nil
	}

	g.mu.RLock()
	grant, ok := g.grants[token]
	g.mu.RUnlock()
	if !ok {
		return nil
	}

	if !grant.ExpiresAt.IsZero() && g.now().After(grant.ExpiresAt) {
		g.mu.Lock()
		delete(g.grants, token)
		g.mu.Unlock()
		return ErrTokenExpired
	}
	if grant.Bucket != bucket || !grant.Allows(perm, key) {
		return ErrForbidden
	}
	return nil
}

// Sweep drops every expired grant and returns how many were removed.
func (g *Grants) Sweep() int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for token, grant := range g.grants {
		if !grant.ExpiresAt.IsZero() && now.After(grant.ExpiresAt) {
			delete(g.grants, token)
			removed++
		}
	}
	return removed
}

// Scoped reports whether token was issued by this table.
func (g *Grants) Scoped(token string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.grants[token]
	return ok
}

// Len returns the number of live grants.
func (g *Grants) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.grants)
}

func parsePermissions(in []string) ([]string, error) {
	if len(in) == 0 {
		return append([]string(nil), allPermissions...), nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		switch p {
		case PermRead, PermWrite, PermDelete, PermList:
			out = append(out, p)
		default:
			return nil, ErrBadPermission
		}
	}
	return out, nil
}
