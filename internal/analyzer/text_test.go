package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText_StripsMarkupAndEntities(t *testing.T) {
	doc := []byte(`<html><body><p>Revenue&nbsp;grew</p><div>12% &amp; margins</div><script>alert(1)</script></body></html>`)
	got := PlainText(doc)
	assert.Contains(t, got, "Revenue grew")
	assert.Contains(t, got, "12% & margins")
	assert.NotContains(t, got, "<")
	assert.NotContains(t, got, "\u00a0")
}

func TestPlainText_BlockTagsSeparateWords(t *testing.T) {
	got := PlainText([]byte(`<td>Total</td><td>Assets</td>`))
	assert.Equal(t, "Total Assets", got)
}

func TestClip_RuneSafe(t *testing.T) {
	s := strings.Repeat("é", 10)
	assert.Equal(t, strings.Repeat("é", 4), clip(s, 4))
	assert.Equal(t, "abc", clip("abc", 10))
}

func TestCleanField(t *testing.T) {
	assert.Equal(t, "Bold & plain", cleanField(" <b>Bold</b> &amp; plain "))
	assert.Equal(t, "", cleanField("   "))
}
