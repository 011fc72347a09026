package redesign

import (
	"fmt"
	"strings"

	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// styleDescriptions - closed set of interior style presets. Anything outside
// this map is rejected at the boundary.
var styleDescriptions = map[string]string{
	"modern":        "modern style with clean lines, neutral tones and uncluttered surfaces",
	"scandinavian":  "scandinavian style with light wood, white walls and soft natural textiles",
	"industrial":    "industrial style with exposed brick, raw metal accents and dark tones",
	"minimalist":    "minimalist style with very few furnishings and a restrained palette",
	"bohemian":      "bohemian style with layered textiles, plants and warm eclectic colors",
	"traditional":   "traditional style with classic furniture, rich wood and warm lighting",
	"mediterranean": "mediterranean style with terracotta, whitewashed walls and arched details",
}

// ValidStyle reports whether style names a known preset ("" is allowed and
// means no preset).
func ValidStyle(style string) bool {
	if style == "" {
		return true
	}
	_, ok := styleDescriptions[style]
	return ok
}

// BuildPrompt - assemble the final instruction sent to the image model for one
// generation mode. The caller-supplied free text is sanitized before it is
// embedded.
func BuildPrompt(mode pipeline.Mode, style, customPrompt string) string {
	var b strings.Builder

	switch mode {
	case pipeline.ModeVirtualStaging:
		b.WriteString("Furnish this empty room photo with realistic furniture and decor. ")
		b.WriteString("Keep the walls, windows, doors, flooring and room geometry exactly as they are. ")
	case pipeline.ModePaintOnly:
		b.WriteString("Repaint the walls of this room photo. ")
		b.WriteString("Keep all furniture, flooring, windows and the room layout exactly as they are, changing only the wall color and finish. ")
	default:
		b.WriteString("Redesign this room photo as a photorealistic interior. ")
		b.WriteString("Preserve the room geometry, windows and structural elements while replacing furniture, decor and finishes. ")
	}

	if desc, ok := styleDescriptions[style]; ok {
		b.WriteString(fmt.Sprintf("Apply a %s. ", desc))
	}

	if sanitized := pipeline.SanitizeInstruction(customPrompt); sanitized != "" {
		b.WriteString(fmt.Sprintf("Additional instructions: %s. ", sanitized))
	}

	b.WriteString("The result must look like a real estate photograph, not a rendering.")
	return b.String()
}
