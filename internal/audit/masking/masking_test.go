package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("1234"))
	assert.Equal(t, "****4567", MaskSecret("C0001234567"))
}

func TestMaskFields(t *testing.T) {
	out := MaskFields(map[string]any{
		"tin":    "C0001234567",
		"name":   "Kofi Traders",
		"amount": 12,
		"payer":  map[string]any{"Reference": "MOMO-998877"},
	}, "tin", "reference")

	assert.Equal(t, "****4567", out["tin"])
	assert.Equal(t, "Kofi Traders", out["name"])
	assert.Equal(t, 12, out["amount"])
	assert.Equal(t, "****8877", out["payer"].(map[string]any)["Reference"])
}
