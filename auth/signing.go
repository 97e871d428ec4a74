package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-service-driver/core"
)

const (
	defaultAPIKeyHeader = "X-API-Key"
	defaultHMACHeader   = "X-Signature"
	defaultTimeHeader   = "X-Timestamp"
	defaultKeyIDHeader  = "X-Key-Id"
)

type APIKeyProfile struct {
	Header     string
	Prefix     string
	QueryParam string
}

// PATProfile is the personal access token layout: "Authorization: token <pat>".
func PATProfile() APIKeyProfile {
	return APIKeyProfile{Header: "Authorization", Prefix: "token"}
}

// APIKey returns a middleware hook that attaches key to every request, as a
// header or, when profile.QueryParam is set, as a query parameter on the
// address.
func APIKey(profile APIKeyProfile, key string) core.HookFunc {
	key = strings.TrimSpace(key)
	header := strings.TrimSpace(profile.Header)
	if header == "" {
		header = defaultAPIKeyHeader
	}
	prefix := strings.TrimSpace(profile.Prefix)
	param := strings.TrimSpace(profile.QueryParam)

	return func(_ context.Context, hc *core.HookContext) error {
		if key == "" {
			return fmt.Errorf("auth: api key is required")
		}
		hc.Locked(func() {
			if param != "" {
				hc.Address = appendQueryParam(hc.Address, param, key)
				return
			}
			value := key
			if prefix != "" {
				value = prefix + " " + key
			}
			setHeader(hc.FetchOptions, header, value)
		})
		return nil
	}
}

// TokenSource yields the bearer token for one request.
type TokenSource func(ctx context.Context) (string, error)

func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

func Bearer(source TokenSource) core.HookFunc {
	return func(ctx context.Context, hc *core.HookContext) error {
		if source == nil {
			return fmt.Errorf("auth: token source is required")
		}
		token, err := source(ctx)
		if err != nil {
			return fmt.Errorf("auth: resolve bearer token: %w", err)
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("auth: access token is required for bearer signing")
		}
		hc.Locked(func() {
			setHeader(hc.FetchOptions, "Authorization", "Bearer "+token)
		})
		return nil
	}
}

type HMACConfig struct {
	Secret          string
	KeyID           string
	SignatureHeader string
	TimestampHeader string
	KeyIDHeader     string
	// Encoding is "hex" (default) or "base64".
	Encoding string
	Now      func() time.Time
}

// HMAC returns a middleware hook signing "<unix timestamp>.<body>" with
// HMAC-SHA256. Register it after any middleware that rewrites the body.
func HMAC(cfg HMACConfig) core.HookFunc {
	secret := strings.TrimSpace(cfg.Secret)
	signatureHeader := firstNonEmpty(cfg.SignatureHeader, defaultHMACHeader)
	timestampHeader := firstNonEmpty(cfg.TimestampHeader, defaultTimeHeader)
	keyIDHeader := firstNonEmpty(cfg.KeyIDHeader, defaultKeyIDHeader)
	keyID := strings.TrimSpace(cfg.KeyID)
	encoding := strings.ToLower(strings.TrimSpace(cfg.Encoding))
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(_ context.Context, hc *core.HookContext) error {
		if secret == "" {
			return fmt.Errorf("auth: hmac secret is required")
		}
		var signErr error
		hc.Locked(func() {
			if hc.FetchOptions == nil {
				signErr = fmt.Errorf("auth: fetch options are required")
				return
			}
			// Sign the exact bytes the driver will send.
			body, err := core.EncodeBody(hc.FetchOptions.Body)
			if err != nil {
				signErr = fmt.Errorf("auth: encode body for signing: %w", err)
				return
			}
			timestamp := strconv.FormatInt(now().UTC().Unix(), 10)
			signature := Signature(secret, timestamp, body, encoding)
			setHeader(hc.FetchOptions, timestampHeader, timestamp)
			setHeader(hc.FetchOptions, signatureHeader, signature)
			if keyID != "" {
				setHeader(hc.FetchOptions, keyIDHeader, keyID)
			}
		})
		return signErr
	}
}

// Signature computes the HMAC-SHA256 of "<timestamp>.<body>".
func Signature(secret string, timestamp string, body []byte, encoding string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	sum := mac.Sum(nil)
	if encoding == "base64" {
		return base64.StdEncoding.EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}

// setHeader replaces any case variant of name. Callers hold hc.Locked.
func setHeader(opts *core.FetchOptions, name string, value string) {
	if opts == nil {
		return
	}
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	for key := range opts.Headers {
		if strings.EqualFold(key, name) {
			delete(opts.Headers, key)
		}
	}
	opts.Headers[name] = value
}

func appendQueryParam(address string, name string, value string) string {
	separator := "?"
	if strings.Contains(address, "?") {
		separator = "&"
	}
	return address + separator + url.QueryEscape(name) + "=" + url.QueryEscape(value)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
