// Package sigv4 produces presigned URLs for S3-compatible object stores using
// query-string AWS Signature Version 4 credentials.
//
// It targets Cloudflare-R2-style endpoints: the region component of the
// credential scope is the literal "auto", the service is "s3", and payloads
// are signed as UNSIGNED-PAYLOAD since the bytes travel outside the signing
// process. The signer is pure computation over its inputs plus the clock; it
// performs no network I/O and never transmits the secret key.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	algorithm       = "AWS4-HMAC-SHA256"
	region          = "auto"
	service         = "s3"
	terminator      = "aws4_request"
	unsignedPayload = "UNSIGNED-PAYLOAD"
)

var (
	// ErrNoCredentials indicates the signer is missing an access key pair
	ErrNoCredentials = errors.New("access key id and secret access key are required")

	// ErrInvalidExpiry indicates a non-positive expiry window
	ErrInvalidExpiry = errors.New("expiry seconds must be positive")
)

// Signer builds presigned URLs for a single bucket on a single endpoint.
//
// Now is the clock used for the signing timestamp; it defaults to time.Now
// and exists so tests can pin the timestamp. Two calls with the same clock
// reading produce byte-identical URLs.
type Signer struct {
	Endpoint        string // e.g. https://<account>.r2.cloudflarestorage.com
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Now             func() time.Time
}

// SignPut returns a URL granting a single PUT of the given object key until
// expiresIn seconds from now. When contentType is non-empty it is folded into
// the signature, and the client's PUT must then carry the exact same
// Content-Type header or the store rejects the request.
func (s *Signer) SignPut(key string, expiresIn int, contentType string) (string, error) {
	return s.sign(http.MethodPut, key, expiresIn, contentType)
}

// SignGet returns a URL granting a single GET of the given object key until
// expiresIn seconds from now.
func (s *Signer) SignGet(key string, expiresIn int) (string, error) {
	return s.sign(http.MethodGet, key, expiresIn, "")
}

func (s *Signer) sign(method, key string, expiresIn int, contentType string) (string, error) {
	if s.AccessKeyID == "" || s.SecretAccessKey == "" {
		return "", ErrNoCredentials
	}
	if expiresIn <= 0 {
		return "", ErrInvalidExpiry
	}

	endpoint, err := url.Parse(s.Endpoint)
	if err != nil || endpoint.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q", s.Endpoint)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now().UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	// Object keys keep their path separators verbatim; every other byte in a
	// segment gets percent-encoded so the canonical path matches the literal
	// request path the store will see.
	canonicalURI := "/" + s.Bucket + "/" + escapePath(key)

	scope := dateStamp + "/" + region + "/" + service + "/" + terminator
	credential := s.AccessKeyID + "/" + scope

	signedHeaders := "host"
	canonicalHeaders := "host:" + endpoint.Host + "\n"
	if method == http.MethodPut && contentType != "" {
		signedHeaders = "host;content-type"
		canonicalHeaders += "content-type:" + contentType + "\n"
	}

	query := strings.Join([]string{
		"X-Amz-Algorithm=" + algorithm,
		"X-Amz-Credential=" + escape(credential),
		"X-Amz-Date=" + amzDate,
		"X-Amz-Expires=" + strconv.Itoa(expiresIn),
		"X-Amz-SignedHeaders=" + escape(signedHeaders),
	}, "&")

	canonicalRequest := strings.Join([]string{
		method,
		canonicalURI,
		query,
		canonicalHeaders,
		signedHeaders,
		unsignedPayload,
	}, "\n")

	digest := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hex.EncodeToString(digest[:]),
	}, "\n")

	signingKey := deriveKey(s.SecretAccessKey, dateStamp)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	return s.Endpoint + canonicalURI + "?" + query + "&X-Amz-Signature=" + signature, nil
}

// deriveKey runs the four chained keyed hashes that scope the secret to a
// date, region, and service without ever exposing the secret itself.
func deriveKey(secret, dateStamp string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, terminator)
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// escapePath percent-encodes an object key segment by segment, leaving the
// "/" separators untouched.
func escapePath(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = escape(seg)
	}
	return strings.Join(segments, "/")
}

// escape implements the SigV4 URI-encoding rules: unreserved characters
// (A-Z, a-z, 0-9, '-', '.', '_', '~') pass through, every other byte becomes
// %XX with uppercase hex.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}
