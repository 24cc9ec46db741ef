// Package auth verifies Binance-style signed requests: a canonicalized
// query string plus an optional body, HMAC-SHA256 signed with the caller's
// API secret.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"openibank/core/errs"
)

const (
	DefaultRecvWindow = 5 * time.Second
	DefaultTolerance  = 1 * time.Second
)

// Request is the caller-supplied content of a signed request, already
// extracted from whatever transport carried it.
type Request struct {
	APIKey      string
	Query       string // raw query string, excluding the signature param
	Body        string
	TimestampMs int64
	Signature   string // hex-encoded
	RemoteIP    string
}

// Verifier checks signed requests against a set of registered API secrets.
type Verifier struct {
	secrets      map[string]string
	ipWhitelists map[string][]string
	recvWindow   time.Duration
	tolerance    time.Duration
	nowFn        func() time.Time
}

// NewVerifier constructs a Verifier. A zero recvWindow/tolerance falls back
// to the spec defaults (5s / 1s).
func NewVerifier(secrets map[string]string, recvWindow, tolerance time.Duration) *Verifier {
	cloned := make(map[string]string, len(secrets))
	for k, v := range secrets {
		cloned[k] = v
	}
	if recvWindow <= 0 {
		recvWindow = DefaultRecvWindow
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		secrets:      cloned,
		ipWhitelists: make(map[string][]string),
		recvWindow:   recvWindow,
		tolerance:    tolerance,
		nowFn:        time.Now,
	}
}

// SetIPWhitelist restricts apiKey to the given patterns: exact match,
// wildcard (e.g. "192.168.*.*"), or CIDR (e.g. "10.0.0.0/8"). An empty or
// absent whitelist allows any source IP.
func (v *Verifier) SetIPWhitelist(apiKey string, patterns []string) {
	v.ipWhitelists[apiKey] = patterns
}

// Verify checks the API key, timestamp window, HMAC signature, and (if
// configured) IP whitelist of req. On success it returns the verified API
// key as the caller's principal.
func (v *Verifier) Verify(req Request) (string, error) {
	secret, ok := v.secrets[req.APIKey]
	if !ok || secret == "" {
		return "", errs.ErrInvalidAPIKey
	}

	now := v.nowFn().UTC()
	ts := time.UnixMilli(req.TimestampMs).UTC()
	if now.Sub(ts) > v.recvWindow {
		return "", errs.ErrInvalidTimestamp
	}
	if ts.Sub(now) > v.tolerance {
		return "", errs.ErrInvalidTimestamp
	}

	expected := Sign(secret, req.Query, req.TimestampMs, req.Body)
	providedBytes, err := hex.DecodeString(strings.TrimSpace(req.Signature))
	if err != nil {
		return "", errs.ErrInvalidSignature
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return "", errs.ErrInvalidSignature
	}
	if !hmac.Equal(providedBytes, expectedBytes) {
		return "", errs.ErrInvalidSignature
	}

	if patterns, ok := v.ipWhitelists[req.APIKey]; ok && len(patterns) > 0 {
		if req.RemoteIP == "" || !ipAllowed(patterns, req.RemoteIP) {
			return "", errs.ErrUnauthorized
		}
	}

	return req.APIKey, nil
}

// Sign computes the hex-encoded HMAC-SHA256 signature a client must send
// for the given query/timestamp/body. It canonicalizes query the same way
// Verify does: appending timestamp=<ms> only if the query does not already
// carry a parameter whose key (not substring) is exactly "timestamp".
func Sign(secret, query string, timestampMs int64, body string) string {
	msg := canonicalMessage(query, timestampMs, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalMessage builds the exact byte sequence that gets signed. The key
// match for an existing "timestamp" parameter is exact, not substring — a
// query parameter named "starttimestamp" must not suppress appending the
// real timestamp.
func canonicalMessage(query string, timestampMs int64, body string) string {
	msg := query
	if !queryHasExactKey(query, "timestamp") {
		if msg != "" {
			msg += "&"
		}
		msg += fmt.Sprintf("timestamp=%d", timestampMs)
	}
	if body != "" {
		msg += "&" + body
	}
	return msg
}

func queryHasExactKey(rawQuery, key string) bool {
	if rawQuery == "" {
		return false
	}
	for _, part := range strings.Split(rawQuery, "&") {
		k := part
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			k = part[:idx]
		}
		if k == key {
			return true
		}
	}
	return false
}

func ipAllowed(patterns []string, ip string) bool {
	for _, pattern := range patterns {
		if pattern == ip {
			return true
		}
		if strings.Contains(pattern, "*") && wildcardMatch(pattern, ip) {
			return true
		}
		if strings.Contains(pattern, "/") {
			if _, cidr, err := net.ParseCIDR(pattern); err == nil {
				if parsed := net.ParseIP(ip); parsed != nil && cidr.Contains(parsed) {
					return true
				}
			}
		}
	}
	return false
}

func wildcardMatch(pattern, ip string) bool {
	pParts := strings.Split(pattern, ".")
	iParts := strings.Split(ip, ".")
	if len(pParts) != len(iParts) {
		return false
	}
	for i := range pParts {
		if pParts[i] == "*" {
			continue
		}
		if pParts[i] != iParts[i] {
			return false
		}
	}
	return true
}
