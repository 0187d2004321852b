package runspec

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Document is a declarative fine-tuning run configuration. Field order
// matches the canonical section order used when rendering.
type Document struct {
	Variables map[string]interface{} `yaml:"variables,omitempty" json:"variables,omitempty"`

	RunName    string `yaml:"run_name,omitempty" json:"run_name,omitempty"`
	MaxSeqLen  int    `yaml:"max_seq_len,omitempty" json:"max_seq_len,omitempty"`
	GlobalSeed *int   `yaml:"global_seed,omitempty" json:"global_seed,omitempty"`
	Seed       *int   `yaml:"seed,omitempty" json:"seed,omitempty"`

	Model     *Model     `yaml:"model,omitempty" json:"model,omitempty"`
	Tokenizer *Tokenizer `yaml:"tokenizer,omitempty" json:"tokenizer,omitempty"`

	TrainLoader *Loader `yaml:"train_loader,omitempty" json:"train_loader,omitempty"`
	EvalLoader  *Loader `yaml:"eval_loader,omitempty" json:"eval_loader,omitempty"`

	Optimizer *Optimizer `yaml:"optimizer,omitempty" json:"optimizer,omitempty"`
	Scheduler *Scheduler `yaml:"scheduler,omitempty" json:"scheduler,omitempty"`

	Algorithms map[string]map[string]interface{} `yaml:"algorithms,omitempty" json:"algorithms,omitempty"`

	MaxDuration  string   `yaml:"max_duration,omitempty" json:"max_duration,omitempty"`
	EvalInterval Interval `yaml:"eval_interval,omitempty" json:"eval_interval,omitempty"`
	EvalFirst    *bool    `yaml:"eval_first,omitempty" json:"eval_first,omitempty"`

	GlobalTrainBatchSize      int        `yaml:"global_train_batch_size,omitempty" json:"global_train_batch_size,omitempty"`
	DeviceTrainMicrobatchSize *IntOrAuto `yaml:"device_train_microbatch_size,omitempty" json:"device_train_microbatch_size,omitempty"`
	DeviceEvalBatchSize       *int       `yaml:"device_eval_batch_size,omitempty" json:"device_eval_batch_size,omitempty"`

	Precision string `yaml:"precision,omitempty" json:"precision,omitempty"`

	FSDPConfig *FSDPConfig `yaml:"fsdp_config,omitempty" json:"fsdp_config,omitempty"`

	ProgressBar        *bool    `yaml:"progress_bar,omitempty" json:"progress_bar,omitempty"`
	LogToConsole       *bool    `yaml:"log_to_console,omitempty" json:"log_to_console,omitempty"`
	ConsoleLogInterval Interval `yaml:"console_log_interval,omitempty" json:"console_log_interval,omitempty"`

	Callbacks map[string]map[string]interface{} `yaml:"callbacks,omitempty" json:"callbacks,omitempty"`
	Loggers   map[string]map[string]interface{} `yaml:"loggers,omitempty" json:"loggers,omitempty"`

	SaveInterval             Interval `yaml:"save_interval,omitempty" json:"save_interval,omitempty"`
	SaveNumCheckpointsToKeep *int     `yaml:"save_num_checkpoints_to_keep,omitempty" json:"save_num_checkpoints_to_keep,omitempty"`
	SaveOverwrite            *bool    `yaml:"save_overwrite,omitempty" json:"save_overwrite,omitempty"`
	SaveFolder               string   `yaml:"save_folder,omitempty" json:"save_folder,omitempty"`
	LoadPath                 string   `yaml:"load_path,omitempty" json:"load_path,omitempty"`
	Autoresume               *bool    `yaml:"autoresume,omitempty" json:"autoresume,omitempty"`

	DistTimeout *float64 `yaml:"dist_timeout,omitempty" json:"dist_timeout,omitempty"`
}

type Model struct {
	Name            string                 `yaml:"name,omitempty" json:"name,omitempty"`
	PretrainedPath  string                 `yaml:"pretrained_model_name_or_path,omitempty" json:"pretrained_model_name_or_path,omitempty"`
	Pretrained      *bool                  `yaml:"pretrained,omitempty" json:"pretrained,omitempty"`
	InitDevice      string                 `yaml:"init_device,omitempty" json:"init_device,omitempty"`
	UseAuthToken    *bool                  `yaml:"use_auth_token,omitempty" json:"use_auth_token,omitempty"`
	ZLoss           *float64               `yaml:"z_loss,omitempty" json:"z_loss,omitempty"`
	ConfigOverrides map[string]interface{} `yaml:"config_overrides,omitempty" json:"config_overrides,omitempty"`
}

type Tokenizer struct {
	Name   string                 `yaml:"name,omitempty" json:"name,omitempty"`
	Kwargs map[string]interface{} `yaml:"kwargs,omitempty" json:"kwargs,omitempty"`
}

type Loader struct {
	Name              string  `yaml:"name,omitempty" json:"name,omitempty"`
	Dataset           Dataset `yaml:"dataset,omitempty" json:"dataset,omitempty"`
	DropLast          *bool   `yaml:"drop_last,omitempty" json:"drop_last,omitempty"`
	NumWorkers        *int    `yaml:"num_workers,omitempty" json:"num_workers,omitempty"`
	PinMemory         *bool   `yaml:"pin_memory,omitempty" json:"pin_memory,omitempty"`
	PrefetchFactor    *int    `yaml:"prefetch_factor,omitempty" json:"prefetch_factor,omitempty"`
	PersistentWorkers *bool   `yaml:"persistent_workers,omitempty" json:"persistent_workers,omitempty"`
	Timeout           *int    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

type Dataset struct {
	HFName            string       `yaml:"hf_name,omitempty" json:"hf_name,omitempty"`
	Split             string       `yaml:"split,omitempty" json:"split,omitempty"`
	MaxSeqLen         int          `yaml:"max_seq_len,omitempty" json:"max_seq_len,omitempty"`
	AllowPadTrimming  *bool        `yaml:"allow_pad_trimming,omitempty" json:"allow_pad_trimming,omitempty"`
	DecoderOnlyFormat *bool        `yaml:"decoder_only_format,omitempty" json:"decoder_only_format,omitempty"`
	Shuffle           *bool        `yaml:"shuffle,omitempty" json:"shuffle,omitempty"`
	PackingRatio      *FloatOrAuto `yaml:"packing_ratio,omitempty" json:"packing_ratio,omitempty"`
}

type Optimizer struct {
	Name        string    `yaml:"name,omitempty" json:"name,omitempty"`
	LR          float64   `yaml:"lr,omitempty" json:"lr,omitempty"`
	Betas       []float64 `yaml:"betas,omitempty" json:"betas,omitempty"`
	Eps         *float64  `yaml:"eps,omitempty" json:"eps,omitempty"`
	WeightDecay *float64  `yaml:"weight_decay,omitempty" json:"weight_decay,omitempty"`
	Momentum    *float64  `yaml:"momentum,omitempty" json:"momentum,omitempty"`
}

type Scheduler struct {
	Name    string   `yaml:"name,omitempty" json:"name,omitempty"`
	TWarmup string   `yaml:"t_warmup,omitempty" json:"t_warmup,omitempty"`
	TMax    string   `yaml:"t_max,omitempty" json:"t_max,omitempty"`
	AlphaF  *float64 `yaml:"alpha_f,omitempty" json:"alpha_f,omitempty"`
}

type FSDPConfig struct {
	ShardingStrategy                 string `yaml:"sharding_strategy,omitempty" json:"sharding_strategy,omitempty"`
	MixedPrecision                   string `yaml:"mixed_precision,omitempty" json:"mixed_precision,omitempty"`
	ActivationCheckpointing          bool   `yaml:"activation_checkpointing,omitempty" json:"activation_checkpointing,omitempty"`
	ActivationCheckpointingReentrant *bool  `yaml:"activation_checkpointing_reentrant,omitempty" json:"activation_checkpointing_reentrant,omitempty"`
	ActivationCPUOffload             bool   `yaml:"activation_cpu_offload,omitempty" json:"activation_cpu_offload,omitempty"`
	LimitAllGathers                  *bool  `yaml:"limit_all_gathers,omitempty" json:"limit_all_gathers,omitempty"`
	Verbose                          bool   `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// Interval is a time value that also accepts a bare integer, which the
// harness reads as a count of epochs. "1" normalizes to "1ep".
type Interval string

func (iv *Interval) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: interval must be a scalar", value.Line)
	}
	if value.Tag == "!!int" {
		*iv = Interval(value.Value + "ep")
		return nil
	}
	*iv = Interval(value.Value)
	return nil
}

func (iv Interval) String() string { return string(iv) }

// IntOrAuto holds an integer setting that accepts the literal "auto",
// deferring the choice to the harness.
type IntOrAuto struct {
	Auto  bool
	Value int
}

func (v *IntOrAuto) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!str" {
		if value.Value != "auto" {
			return fmt.Errorf("line %d: expected an integer or \"auto\", got %q", value.Line, value.Value)
		}
		v.Auto = true
		v.Value = 0
		return nil
	}
	var n int
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("expected an integer or \"auto\": %w", err)
	}
	v.Auto = false
	v.Value = n
	return nil
}

func (v IntOrAuto) MarshalYAML() (interface{}, error) {
	if v.Auto {
		return "auto", nil
	}
	return v.Value, nil
}

func (v IntOrAuto) MarshalJSON() ([]byte, error) {
	if v.Auto {
		return json.Marshal("auto")
	}
	return json.Marshal(v.Value)
}

func (v IntOrAuto) String() string {
	if v.Auto {
		return "auto"
	}
	return strconv.Itoa(v.Value)
}

// FloatOrAuto is the float counterpart of IntOrAuto, used for settings
// like packing_ratio.
type FloatOrAuto struct {
	Auto  bool
	Value float64
}

func (v *FloatOrAuto) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!str" {
		if value.Value != "auto" {
			return fmt.Errorf("line %d: expected a number or \"auto\", got %q", value.Line, value.Value)
		}
		v.Auto = true
		v.Value = 0
		return nil
	}
	var f float64
	if err := value.Decode(&f); err != nil {
		return fmt.Errorf("expected a number or \"auto\": %w", err)
	}
	v.Auto = false
	v.Value = f
	return nil
}

func (v FloatOrAuto) MarshalYAML() (interface{}, error) {
	if v.Auto {
		return "auto", nil
	}
	return v.Value, nil
}

func (v FloatOrAuto) MarshalJSON() ([]byte, error) {
	if v.Auto {
		return json.Marshal("auto")
	}
	return json.Marshal(v.Value)
}
