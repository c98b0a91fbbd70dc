package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotisserie/eris"
)

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 500_000,
	}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 0.001)

	assert.Zero(t, usage.EstimateCost("unknown-model"))
}

func TestEstimateCostWithCache(t *testing.T) {
	usage := TokenUsage{
		InputTokens:              100_000,
		OutputTokens:             50_000,
		CacheCreationInputTokens: 200_000,
		CacheReadInputTokens:     1_000_000,
	}
	cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
	// in 0.30 + out 0.75 + cache write 0.75 + cache read 0.30
	assert.InDelta(t, 2.10, cost, 0.001)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("system prompt")
	require.Len(t, blocks, 1)
	assert.Equal(t, "system prompt", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "5m", blocks[0].CacheControl.TTL)
}

func TestTextMessage(t *testing.T) {
	m := TextMessage("user", "こんにちは")
	assert.Equal(t, "user", m.Role)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "こんにちは", m.Content[0].Text)
}

func TestIsQuotaExceeded(t *testing.T) {
	assert.True(t, IsQuotaExceeded(eris.Wrap(ErrQuotaExceeded, "rate limited")))
	assert.False(t, IsQuotaExceeded(eris.New("some other failure")))
	assert.False(t, IsQuotaExceeded(nil))
}

func TestToSDKMessagesPDFBlock(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: []Block{
			{Text: "この決算資料から売上高を抽出してください"},
			{PDF: []byte("%PDF-1.7 dummy")},
		}},
	})
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Content, 2)
	assert.NotNil(t, msgs[0].Content[0].OfText)
	assert.NotNil(t, msgs[0].Content[1].OfDocument)
}
