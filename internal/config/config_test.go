package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, &Config{Variant: "stable", LogLevel: "info"}, c)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DEOLDIFY_MODELS_DIR", "/srv/models")
	t.Setenv("DEOLDIFY_VARIANT", "artistic")
	t.Setenv("DEOLDIFY_HALF", "true")
	t.Setenv("DEOLDIFY_WORKERS", "3")
	t.Setenv("DEOLDIFY_LOG_LEVEL", "debug")
	t.Setenv("DEOLDIFY_MODEL_URI", "s3://weights/deoldify")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, &Config{
		ModelsDir: "/srv/models",
		Variant:   "artistic",
		Half:      true,
		Workers:   3,
		LogLevel:  "debug",
		ModelURI:  "s3://weights/deoldify",
	}, c)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DEOLDIFY_WORKERS", "many")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DEOLDIFY_WORKERS", "-2")
	_, err = Load()
	assert.Error(t, err)
}

func TestUsage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Usage(&buf))

	out := buf.String()
	for _, name := range []string{
		"DEOLDIFY_MODELS_DIR",
		"DEOLDIFY_VARIANT",
		"DEOLDIFY_HALF",
		"DEOLDIFY_WORKERS",
		"DEOLDIFY_LOG_LEVEL",
		"DEOLDIFY_MODEL_URI",
	} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "stable or artistic")
}
