package runspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
run_name: mpt-7b-sft
max_seq_len: 2048
global_seed: 17

model:
  name: hf_causal_lm
  pretrained_model_name_or_path: mosaicml/mpt-7b
  pretrained: true
  init_device: cpu

tokenizer:
  name: mosaicml/mpt-7b
  kwargs:
    model_max_length: ${max_seq_len}

train_loader:
  name: finetuning
  dataset:
    hf_name: mosaicml/dolly_hhrlhf
    split: train
    max_seq_len: ${max_seq_len}
    allow_pad_trimming: false
    decoder_only_format: true
    shuffle: true
  drop_last: true
  num_workers: 16
  pin_memory: true
  prefetch_factor: 2
  persistent_workers: true
  timeout: 0

eval_loader:
  name: finetuning
  dataset:
    hf_name: mosaicml/dolly_hhrlhf
    split: test
    max_seq_len: ${max_seq_len}
    shuffle: false
  drop_last: true
  num_workers: 8

optimizer:
  name: decoupled_adamw
  lr: 6.0e-4
  betas:
  - 0.9
  - 0.999
  eps: 1.0e-8
  weight_decay: 0.0

scheduler:
  name: cosine_with_warmup
  t_warmup: 100ba
  alpha_f: 0.1

algorithms:
  gradient_clipping:
    clipping_type: norm
    clipping_threshold: 1.0

max_duration: 1ep
eval_interval: 500ba
eval_first: false
global_train_batch_size: 128
device_train_microbatch_size: 8
device_eval_batch_size: 8

precision: amp_bf16

fsdp_config:
  sharding_strategy: FULL_SHARD
  mixed_precision: PURE
  activation_checkpointing: true
  activation_checkpointing_reentrant: false
  activation_cpu_offload: false
  limit_all_gathers: true
  verbose: false

progress_bar: false
log_to_console: true
console_log_interval: 1ba

callbacks:
  speed_monitor:
    window_size: 10
  lr_monitor: {}
  memory_monitor: {}
  runtime_estimator: {}

loggers:
  wandb:
    project: sft-experiments

save_interval: 500ba
save_num_checkpoints_to_keep: 1
save_overwrite: false
save_folder: s3://checkpoints/{run_name}/

dist_timeout: 600.0
`

func TestParseSampleConfig(t *testing.T) {
	doc, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "mpt-7b-sft", doc.RunName)
	assert.Equal(t, 2048, doc.MaxSeqLen)
	require.NotNil(t, doc.GlobalSeed)
	assert.Equal(t, 17, *doc.GlobalSeed)

	require.NotNil(t, doc.Model)
	assert.Equal(t, "hf_causal_lm", doc.Model.Name)
	assert.Equal(t, "mosaicml/mpt-7b", doc.Model.PretrainedPath)

	require.NotNil(t, doc.Tokenizer)
	assert.Equal(t, 2048, doc.Tokenizer.Kwargs["model_max_length"])

	require.NotNil(t, doc.TrainLoader)
	assert.Equal(t, "finetuning", doc.TrainLoader.Name)
	assert.Equal(t, 2048, doc.TrainLoader.Dataset.MaxSeqLen)
	require.NotNil(t, doc.TrainLoader.NumWorkers)
	assert.Equal(t, 16, *doc.TrainLoader.NumWorkers)
	require.NotNil(t, doc.TrainLoader.PrefetchFactor)
	assert.Equal(t, 2, *doc.TrainLoader.PrefetchFactor)

	require.NotNil(t, doc.EvalLoader)
	assert.Equal(t, "test", doc.EvalLoader.Dataset.Split)

	require.NotNil(t, doc.Optimizer)
	assert.Equal(t, "decoupled_adamw", doc.Optimizer.Name)
	assert.InDelta(t, 6.0e-4, doc.Optimizer.LR, 1e-12)
	assert.Equal(t, []float64{0.9, 0.999}, doc.Optimizer.Betas)

	require.NotNil(t, doc.Scheduler)
	assert.Equal(t, "100ba", doc.Scheduler.TWarmup)

	assert.Equal(t, "1ep", doc.MaxDuration)
	assert.Equal(t, Interval("500ba"), doc.EvalInterval)
	assert.Equal(t, 128, doc.GlobalTrainBatchSize)
	require.NotNil(t, doc.DeviceTrainMicrobatchSize)
	assert.False(t, doc.DeviceTrainMicrobatchSize.Auto)
	assert.Equal(t, 8, doc.DeviceTrainMicrobatchSize.Value)
	assert.Equal(t, "amp_bf16", doc.Precision)

	require.NotNil(t, doc.FSDPConfig)
	assert.Equal(t, "FULL_SHARD", doc.FSDPConfig.ShardingStrategy)

	assert.Contains(t, doc.Callbacks, "speed_monitor")
	assert.Contains(t, doc.Loggers, "wandb")

	assert.Equal(t, Interval("500ba"), doc.SaveInterval)
	require.NotNil(t, doc.SaveNumCheckpointsToKeep)
	assert.Equal(t, 1, *doc.SaveNumCheckpointsToKeep)
	require.NotNil(t, doc.DistTimeout)
	assert.InDelta(t, 600.0, *doc.DistTimeout, 1e-9)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte(`
max_seq_len: 2048
max_sequence_length: 4096
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_sequence_length")
}

func TestParseRejectsUnknownNestedField(t *testing.T) {
	_, err := Parse([]byte(`
optimizer:
  name: decoupled_adamw
  lr: 0.0001
  learning_rate: 0.0001
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "learning_rate")
}

func TestParseAllowsFreeFormMappings(t *testing.T) {
	doc, err := Parse([]byte(`
model:
  name: hf_causal_lm
  pretrained_model_name_or_path: mosaicml/mpt-7b
  config_overrides:
    attn_config:
      attn_impl: triton
    max_seq_len: 4096
tokenizer:
  name: mosaicml/mpt-7b
  kwargs:
    padding_side: left
`))
	require.NoError(t, err)
	assert.Contains(t, doc.Model.ConfigOverrides, "attn_config")
	assert.Equal(t, "left", doc.Tokenizer.Kwargs["padding_side"])
}

func TestParseEmptyAndNonMapping(t *testing.T) {
	_, err := Parse([]byte(""))
	require.Error(t, err)

	_, err = Parse([]byte("- a\n- b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping")
}

func TestParseBareIntInterval(t *testing.T) {
	doc, err := Parse([]byte(`
eval_interval: 1
save_interval: 2
`))
	require.NoError(t, err)

	assert.Equal(t, Interval("1ep"), doc.EvalInterval)
	assert.Equal(t, Interval("2ep"), doc.SaveInterval)
}

func TestParseMicrobatchAuto(t *testing.T) {
	doc, err := Parse([]byte(`
device_train_microbatch_size: auto
`))
	require.NoError(t, err)

	require.NotNil(t, doc.DeviceTrainMicrobatchSize)
	assert.True(t, doc.DeviceTrainMicrobatchSize.Auto)

	_, err = Parse([]byte(`
device_train_microbatch_size: sometimes
`))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mpt-7b-sft", doc.RunName)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
