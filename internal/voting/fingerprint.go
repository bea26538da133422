package voting

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

// Fingerprint derives a stable voter identity from request metadata
// without storing raw IPs: sha256(salt || client IP), hex-encoded. Proxy
// headers are trusted only when gin's TrustedProxies is configured for
// the deployment's trusted-proxy set (§9), so c.ClientIP() is the single
// source of truth here.
func Fingerprint(c *gin.Context, salt string) string {
	sum := sha256.Sum256([]byte(salt + "|" + c.ClientIP()))
	return hex.EncodeToString(sum[:])
}
