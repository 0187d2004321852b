package runspec

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderYAMLRoundTrip(t *testing.T) {
	doc := mustParse(t, minimalConfig)
	doc.ApplyDefaults()

	out, err := RenderYAML(doc)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)

	if diff := cmp.Diff(doc, again); diff != "" {
		t.Errorf("rendered document changed after re-parsing (-want +got):\n%s", diff)
	}
}

func TestRenderYAMLValidatesClean(t *testing.T) {
	doc := validDoc(t)
	doc.ApplyDefaults()

	out, err := RenderYAML(doc)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)

	report := Validate(again, ValidateOptions{})
	assert.True(t, report.OK(), "rendered output failed validation: %v", report.Errors())
}

func TestRenderYAMLCanonicalOrder(t *testing.T) {
	doc := validDoc(t)
	out, err := RenderYAML(doc)
	require.NoError(t, err)

	text := string(out)
	runName := strings.Index(text, "run_name:")
	model := strings.Index(text, "model:")
	optimizer := strings.Index(text, "optimizer:")
	precision := strings.Index(text, "precision:")

	require.NotEqual(t, -1, runName)
	require.NotEqual(t, -1, model)
	require.NotEqual(t, -1, optimizer)
	require.NotEqual(t, -1, precision)
	assert.Less(t, runName, model)
	assert.Less(t, model, optimizer)
	assert.Less(t, optimizer, precision)
}

func TestRenderYAMLOmitsUnsetSections(t *testing.T) {
	doc := mustParse(t, minimalConfig)
	out, err := RenderYAML(doc)
	require.NoError(t, err)

	text := string(out)
	assert.NotContains(t, text, "fsdp_config:")
	assert.NotContains(t, text, "load_path:")
	assert.NotContains(t, text, "algorithms:")
}

func TestRenderYAMLMicrobatchAuto(t *testing.T) {
	doc := mustParse(t, minimalConfig)
	doc.ApplyDefaults()

	out, err := RenderYAML(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "device_train_microbatch_size: auto")
}

func TestRenderJSON(t *testing.T) {
	doc := validDoc(t)
	out, err := RenderJSON(doc)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "mpt-7b-sft", decoded["run_name"])
	assert.Equal(t, float64(2048), decoded["max_seq_len"])

	model, ok := decoded["model"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hf_causal_lm", model["name"])
}
