package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "hello "},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "world"},
		},
	}
	assert.Equal(t, "hello world", resp.Text())
}

func TestMessageResponse_Text_Nil(t *testing.T) {
	var resp *MessageResponse
	assert.Equal(t, "", resp.Text())
}

func TestContentParts(t *testing.T) {
	txt := TextPart("describe this page")
	assert.Equal(t, "text", txt.Type)
	assert.Equal(t, "describe this page", txt.Text)

	img := ImagePart("image/png", "aGVsbG8=")
	assert.Equal(t, "image", img.Type)
	assert.Equal(t, "image/png", img.MediaType)
	assert.Equal(t, "aGVsbG8=", img.Data)
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000}
	assert.InDelta(t, 0.80+0.40, u.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
	assert.Zero(t, u.EstimateCost("unknown-model"))
}
