package mcp

// maxCropEnum caps how many catalog ids are advertised in the crop enum
const maxCropEnum = 100

// DiagnoseInputSchema builds the input schema for the diagnosis tool. When
// crops is non-empty the crop property is constrained to its first
// maxCropEnum entries.
func DiagnoseInputSchema(crops []string) map[string]any {
	crop := map[string]any{
		"type":        "string",
		"description": "Optional crop identifier (e.g. maize, rice, sweet_potato). When omitted the model identifies the crop from the image.",
	}
	if len(crops) > 0 {
		n := min(len(crops), maxCropEnum)
		enum := make([]string, n)
		copy(enum, crops[:n])
		crop["enum"] = enum
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"image": map[string]any{
				"type":        "string",
				"description": "Plant photo as a data URI: data:image/{jpeg|jpg|png|webp};base64,<payload>",
			},
			"crop": crop,
		},
		"required": []string{"image"},
	}
}
