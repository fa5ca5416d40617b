package xfyun

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/navvoice/pkg/errorsx"
)

const (
	DefaultHost = "ws-api.xfyun.cn"
	DefaultPath = "/v2/iat"

	placeholderPrefix = "your-"
)

// Credentials identify an application on the iFlytek open platform.
type Credentials struct {
	AppID     string `mapstructure:"app_id"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// Validate fails with a config_error when a field is empty or still holds a
// placeholder such as "your-xfyun-app-id".
func (c Credentials) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"app_id", c.AppID},
		{"api_key", c.APIKey},
		{"api_secret", c.APISecret},
	}
	for _, f := range fields {
		v := strings.TrimSpace(f.value)
		if v == "" {
			return errorsx.New(errorsx.ReasonConfig, "xfyun."+f.name+" is required")
		}
		if isPlaceholder(v) {
			return errorsx.New(errorsx.ReasonConfig, "xfyun."+f.name+" still holds a placeholder value")
		}
	}
	return nil
}

func isPlaceholder(v string) bool {
	lower := strings.ToLower(v)
	return strings.HasPrefix(lower, placeholderPrefix) || lower == "xxx" || strings.HasPrefix(lower, "sk-xxx")
}

// Signer builds the HMAC-signed handshake URL for the IAT endpoint.
type Signer struct {
	Scheme string
	Host   string
	Path   string
}

// NewSigner returns a signer for the public endpoint.
func NewSigner() Signer {
	return Signer{Scheme: "wss", Host: DefaultHost, Path: DefaultPath}
}

func (s Signer) withDefaults() Signer {
	if s.Scheme == "" {
		s.Scheme = "wss"
	}
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Path == "" {
		s.Path = DefaultPath
	}
	return s
}

// BuildURL signs a connection request at the instant now. The server
// recomputes the same signature, so the canonical string must be bit-exact.
func (s Signer) BuildURL(creds Credentials, now time.Time) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}
	s = s.withDefaults()

	date := now.UTC().Format(http.TimeFormat)
	signature := Sign(creds.APISecret, CanonicalString(s.Host, date, http.MethodGet, s.Path))
	authOrigin := fmt.Sprintf(`api_key="%s", algorithm="%s", headers="%s", signature="%s"`,
		creds.APIKey, "hmac-sha256", "host date request-line", signature)

	q := url.Values{}
	q.Set("authorization", base64.StdEncoding.EncodeToString([]byte(authOrigin)))
	q.Set("date", date)
	q.Set("host", s.Host)

	u := url.URL{
		Scheme:   s.Scheme,
		Host:     s.Host,
		Path:     s.Path,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

// CanonicalString is the three-line text covered by the signature.
func CanonicalString(host, date, method, path string) string {
	return "host: " + host + "\n" +
		"date: " + date + "\n" +
		method + " " + path + " HTTP/1.1"
}

// Sign returns the base64 HMAC-SHA256 of text keyed by secret.
func Sign(secret, text string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(text))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
