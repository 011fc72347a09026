package dronetour

import (
	"fmt"
	"strings"

	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// BuildPrompt - assemble the camera-motion instruction for the video model.
func BuildPrompt(customPrompt string) string {
	var b strings.Builder

	b.WriteString("Cinematic slow drone fly-through of this interior space. ")
	b.WriteString("Smooth forward camera motion at walking height, gentle easing, no cuts. ")
	b.WriteString("Keep the room exactly as photographed: same furniture, lighting and materials. ")

	if sanitized := pipeline.SanitizeInstruction(customPrompt); sanitized != "" {
		b.WriteString(fmt.Sprintf("Additional instructions: %s. ", sanitized))
	}

	b.WriteString("Photorealistic, stable footage, no people.")
	return b.String()
}
