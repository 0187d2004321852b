package presets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunekit/tunekit/pkg/runspec"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{"continued-pretrain", "sft-7b", "sft-small"}, names)
}

func TestList(t *testing.T) {
	presets := List()
	require.Len(t, presets, 3)
	for _, p := range presets {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Description, "preset %s has no description", p.Name)
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("pretrain-70b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown preset "pretrain-70b"`)
	assert.Contains(t, err.Error(), "sft-small")
}

func TestPresetsValidateClean(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			data, err := Get(name)
			require.NoError(t, err)

			doc, err := runspec.Parse(data)
			require.NoError(t, err)
			doc.ApplyDefaults()

			report := runspec.Validate(doc, runspec.ValidateOptions{Strict: true})
			assert.True(t, report.OK(), "preset %s: %v", name, report.Issues)
		})
	}
}

func TestPresetSeqLenInterpolation(t *testing.T) {
	data, err := Get("sft-7b")
	require.NoError(t, err)

	doc, err := runspec.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 2048, doc.MaxSeqLen)
	assert.Equal(t, 2048, doc.TrainLoader.Dataset.MaxSeqLen)
	assert.Equal(t, 2048, doc.Tokenizer.Kwargs["model_max_length"])
}
