package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body,
// optionally prefixed with "sha256=".
const SignatureHeader = "X-Bookmeta-Signature"

const maxSignedBody = 1 << 20

// VerifySignature only lets requests through whose body was signed with
// secret. An empty secret rejects everything.
func VerifySignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			abort(c, http.StatusUnauthorized, "event signing is not configured")
			return
		}
		got, err := hex.DecodeString(strings.TrimPrefix(c.GetHeader(SignatureHeader), "sha256="))
		if err != nil || len(got) == 0 {
			abort(c, http.StatusUnauthorized, "missing or malformed signature")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignedBody+1))
		if err != nil || len(body) > maxSignedBody {
			abort(c, http.StatusBadRequest, "unreadable event body")
			return
		}
		if !hmac.Equal(got, sum(secret, body)) {
			abort(c, http.StatusUnauthorized, "signature mismatch")
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// SignPayload returns the header value for body.
func SignPayload(secret string, body []byte) string {
	return "sha256=" + hex.EncodeToString(sum(secret, body))
}

func sum(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
