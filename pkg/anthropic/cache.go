package anthropic

// CachedSystem returns a single system block with a prompt-cache
// breakpoint. The analysis instructions are identical across filings, so
// every call after the first in a batch reads them from cache.
func CachedSystem(text string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: "5m"}}}
}
