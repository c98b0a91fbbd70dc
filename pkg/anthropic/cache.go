package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint. The extraction system prompt is identical across requests, so
// every request after the first within the TTL reads it from the prompt cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "5m",
			},
		},
	}
}
