package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"telecom-inbound/pkg/logger"
)

const signatureHeader = "X-Twilio-Signature"

// Sign computes Twilio's request signature: HMAC-SHA1 over the full URL
// followed by every POST parameter as name+value in name order.
func Sign(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vs := append([]string(nil), params[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func ValidSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(authToken, fullURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// RequireSignature rejects webhook calls that were not signed with authToken.
// baseURL is the public origin Twilio was configured with; the request URI is
// appended to it. An empty token disables the check.
func RequireSignature(authToken, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		full := strings.TrimRight(baseURL, "/") + c.Request.URL.RequestURI()
		if !ValidSignature(authToken, full, c.Request.PostForm, c.GetHeader(signatureHeader)) {
			logger.FromGin(c).Warn("twilio signature mismatch", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}
