package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SetOptions contains optional parameters for Set.
type SetOptions struct {
	// ContentType is sent as the request Content-Type. When empty no
	// Content-Type header is sent and kvdb stores the value as-is.
	ContentType string
}

// ListOptions controls which keys List and ListValues return and in what
// order. Zero values are left out of the query string, so the service
// defaults apply.
//
// Example:
//
//	keys, err := bucket.List(ctx, &sdk.ListOptions{
//	    Prefix: "user:",
//	    Limit:  50,
//	    Skip:   100,
//	})
type ListOptions struct {
	// Prefix keeps only keys starting with Prefix
	Prefix string
	// Skip drops this many keys from the start of the listing
	Skip int
	// Limit caps the number of returned keys
	Limit int
	// Reverse asks for descending key order
	Reverse bool
}

// query encodes the options as kvdb list parameters. format=json is always
// present; values=true is added for value listings.
func (o *ListOptions) query(values bool) url.Values {
	q := url.Values{}
	if o != nil {
		if o.Limit > 0 {
			q.Set("limit", strconv.Itoa(o.Limit))
		}
		if o.Prefix != "" {
			q.Set("prefix", o.Prefix)
		}
		if o.Skip > 0 {
			q.Set("skip", strconv.Itoa(o.Skip))
		}
		if o.Reverse {
			q.Set("reverse", "true")
		}
	}
	if values {
		q.Set("values", "true")
	}
	q.Set("format", "json")
	return q
}

// Permission is one capability an access token can carry.
type Permission string

// Permissions understood by kvdb.
const (
	PermissionRead   Permission = "read"
	PermissionWrite  Permission = "write"
	PermissionDelete Permission = "delete"
	PermissionList   Permission = "list"
)

// TokenOptions scopes a new access token.
//
// Example:
//
//	token, err := bucket.AccessToken(ctx, &sdk.TokenOptions{
//	    Prefix:      "user:42:",
//	    Permissions: []sdk.Permission{sdk.PermissionRead, sdk.PermissionWrite},
//	    TTL:         time.Hour,
//	})
type TokenOptions struct {
	// Prefix restricts the token to keys starting with Prefix
	Prefix string
	// Permissions granted to the token; sent comma-joined
	Permissions []Permission
	// TTL is the token lifetime, sent in whole seconds
	TTL time.Duration
}

// form encodes the options as the token endpoint's form body.
func (o *TokenOptions) form() url.Values {
	f := url.Values{}
	if o == nil {
		return f
	}
	if o.Prefix != "" {
		f.Set("prefix", o.Prefix)
	}
	if len(o.Permissions) > 0 {
		perms := make([]string, len(o.Permissions))
		for i, p := range o.Permissions {
			perms[i] = string(p)
		}
		f.Set("permissions", strings.Join(perms, ","))
	}
	if secs := int64(o.TTL / time.Second); secs > 0 {
		f.Set("ttl", strconv.FormatInt(secs, 10))
	}
	return f
}

// tokenResponse is the JSON body returned by the token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Entry is one key and its value from ListValues.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts both the ["key", value] pair kvdb returns and a
// {"key": ..., "value": ...} object. A value that is not a JSON string is
// kept as its raw JSON text.
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("list entry has %d elements, want 2", len(pair))
		}
		if err := json.Unmarshal(pair[0], &e.Key); err != nil {
			return fmt.Errorf("list entry key: %w", err)
		}
		e.Value = rawText(pair[1])
		return nil
	}

	var obj struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Key = obj.Key
	e.Value = rawText(obj.Value)
	return nil
}

// rawText unquotes a JSON string, or returns any other JSON value verbatim.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
