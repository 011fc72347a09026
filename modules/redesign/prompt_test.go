package redesign

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

func TestValidStyle(t *testing.T) {
	assert.True(t, ValidStyle(""))
	assert.True(t, ValidStyle("modern"))
	assert.True(t, ValidStyle("scandinavian"))
	assert.False(t, ValidStyle("brutalist"))
	assert.False(t, ValidStyle("MODERN"))
}

func TestBuildPrompt(t *testing.T) {
	t.Run("redesign mode", func(t *testing.T) {
		prompt := BuildPrompt(pipeline.ModeRedesign, "modern", "")
		assert.Contains(t, prompt, "Redesign this room")
		assert.Contains(t, prompt, "modern style")
	})

	t.Run("virtual staging keeps the structure", func(t *testing.T) {
		prompt := BuildPrompt(pipeline.ModeVirtualStaging, "", "")
		assert.Contains(t, prompt, "Furnish this empty room")
		assert.Contains(t, prompt, "room geometry exactly")
	})

	t.Run("paint only touches walls", func(t *testing.T) {
		prompt := BuildPrompt(pipeline.ModePaintOnly, "", "sage green walls")
		assert.Contains(t, prompt, "Repaint the walls")
		assert.Contains(t, prompt, "sage green walls")
	})

	t.Run("custom instruction is sanitized", func(t *testing.T) {
		prompt := BuildPrompt(pipeline.ModeRedesign, "", "warm\n\nlighting\x00please")
		assert.Contains(t, prompt, "warm lighting please")
		assert.NotContains(t, prompt, "\n")
		assert.NotContains(t, prompt, "\x00")
	})

	t.Run("unknown style is ignored", func(t *testing.T) {
		prompt := BuildPrompt(pipeline.ModeRedesign, "brutalist", "")
		assert.NotContains(t, prompt, "brutalist")
	})
}
