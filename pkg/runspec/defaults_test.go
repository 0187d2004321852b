package runspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
run_name: tiny-sft
max_seq_len: 512
global_seed: 7

model:
  name: hf_causal_lm
  pretrained_model_name_or_path: gpt2

tokenizer:
  name: gpt2

train_loader:
  name: finetuning
  dataset:
    hf_name: tatsu-lab/alpaca
    split: train
    max_seq_len: 512

eval_loader:
  name: finetuning
  dataset:
    hf_name: tatsu-lab/alpaca
    split: test
    max_seq_len: 512

optimizer:
  name: decoupled_adamw
  lr: 1.0e-5

scheduler:
  name: constant_with_warmup
  t_warmup: 50ba

max_duration: 2ep
eval_interval: 1ep
global_train_batch_size: 32

save_folder: ./checkpoints/{run_name}
`

func TestApplyDefaults(t *testing.T) {
	doc := mustParse(t, minimalConfig)
	doc.ApplyDefaults()

	require.NotNil(t, doc.Seed)
	assert.Equal(t, 7, *doc.Seed)

	assert.Equal(t, DefaultPrecision, doc.Precision)

	require.NotNil(t, doc.DeviceTrainMicrobatchSize)
	assert.True(t, doc.DeviceTrainMicrobatchSize.Auto)

	require.NotNil(t, doc.EvalFirst)
	assert.False(t, *doc.EvalFirst)
	require.NotNil(t, doc.ProgressBar)
	assert.False(t, *doc.ProgressBar)
	require.NotNil(t, doc.LogToConsole)
	assert.True(t, *doc.LogToConsole)
	assert.Equal(t, Interval(DefaultConsoleLogInterval), doc.ConsoleLogInterval)

	require.NotNil(t, doc.Model.Pretrained)
	assert.True(t, *doc.Model.Pretrained)
	assert.Equal(t, DefaultInitDevice, doc.Model.InitDevice)

	require.NotNil(t, doc.TrainLoader.DropLast)
	assert.True(t, *doc.TrainLoader.DropLast)
	require.NotNil(t, doc.TrainLoader.Dataset.Shuffle)
	assert.True(t, *doc.TrainLoader.Dataset.Shuffle)
	require.NotNil(t, doc.TrainLoader.Dataset.AllowPadTrimming)
	assert.False(t, *doc.TrainLoader.Dataset.AllowPadTrimming)
	require.NotNil(t, doc.TrainLoader.Dataset.DecoderOnlyFormat)
	assert.True(t, *doc.TrainLoader.Dataset.DecoderOnlyFormat)

	require.NotNil(t, doc.EvalLoader.DropLast)
	assert.False(t, *doc.EvalLoader.DropLast)
	require.NotNil(t, doc.EvalLoader.Dataset.Shuffle)
	assert.False(t, *doc.EvalLoader.Dataset.Shuffle)

	assert.Equal(t, Interval(DefaultSaveInterval), doc.SaveInterval)
	require.NotNil(t, doc.SaveNumCheckpointsToKeep)
	assert.Equal(t, -1, *doc.SaveNumCheckpointsToKeep)
	require.NotNil(t, doc.SaveOverwrite)
	assert.False(t, *doc.SaveOverwrite)
	require.NotNil(t, doc.Autoresume)
	assert.False(t, *doc.Autoresume)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	doc := validDoc(t)
	doc.ApplyDefaults()

	assert.Equal(t, "amp_bf16", doc.Precision)
	require.NotNil(t, doc.DeviceTrainMicrobatchSize)
	assert.False(t, doc.DeviceTrainMicrobatchSize.Auto)
	assert.Equal(t, 8, doc.DeviceTrainMicrobatchSize.Value)
	assert.Equal(t, Interval("500ba"), doc.SaveInterval)
	require.NotNil(t, doc.SaveNumCheckpointsToKeep)
	assert.Equal(t, 1, *doc.SaveNumCheckpointsToKeep)
}

func TestApplyDefaultsSkipsCheckpointingWithoutFolder(t *testing.T) {
	doc := mustParse(t, minimalConfig)
	doc.SaveFolder = ""
	doc.ApplyDefaults()

	assert.Empty(t, doc.SaveInterval)
	assert.Nil(t, doc.SaveNumCheckpointsToKeep)
	assert.Nil(t, doc.SaveOverwrite)
	assert.Nil(t, doc.Autoresume)
}

func TestApplyDefaultsIsIdempotent(t *testing.T) {
	doc := mustParse(t, minimalConfig)
	doc.ApplyDefaults()

	first, err := RenderYAML(doc)
	require.NoError(t, err)

	doc.ApplyDefaults()
	second, err := RenderYAML(doc)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestMinimalConfigValidatesAfterDefaults(t *testing.T) {
	doc := mustParse(t, minimalConfig)
	doc.ApplyDefaults()

	report := Validate(doc, ValidateOptions{})
	assert.True(t, report.OK(), "unexpected errors: %v", report.Errors())
}
