package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/CureAnalytics/internal/intelligence/pipeline"
)

const cacheKeyPrefix = "analysis:v1:"

// CacheKey derives the cache key for doc from its NFC-normalised text,
// lower-cased journal and citation count: every input the scores depend on.
func CacheKey(doc pipeline.Document) string {
	h := sha256.New()
	h.Write([]byte(norm.NFC.String(doc.Text())))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(doc.Journal))))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(doc.Citations)))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
