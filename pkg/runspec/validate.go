package runspec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tunekit/tunekit/pkg/catalog"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one schema problem, scoped to the field that caused it.
type Issue struct {
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Report collects every problem found in a single validation pass so one
// run surfaces all of them.
type Report struct {
	Issues []Issue
}

func (r *Report) errorf(field, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Field: field, Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(field, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Field: field, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) Errors() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

func (r *Report) Warnings() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			out = append(out, issue)
		}
	}
	return out
}

func (r *Report) OK() bool {
	return len(r.Errors()) == 0
}

// Err returns nil when the document passed, or an error summarizing the
// failure count.
func (r *Report) Err() error {
	n := len(r.Errors())
	if n == 0 {
		return nil
	}
	return fmt.Errorf("run config has %d validation error(s)", n)
}

// ValidateOptions control strictness. Strict promotes warnings to errors.
type ValidateOptions struct {
	Strict bool
}

var (
	runNamePattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	placeholderPattern = regexp.MustCompile(`\{([^{}]*)\}`)

	precisionValues      = []string{"fp32", "amp_fp16", "amp_bf16", "amp_fp8"}
	initDeviceValues     = []string{"cpu", "meta", "mixed", "cuda"}
	shardingStrategies   = []string{"FULL_SHARD", "SHARD_GRAD_OP", "NO_SHARD", "HYBRID_SHARD"}
	mixedPrecisionValues = []string{"PURE", "DEFAULT", "FULL"}
)

// Validate checks a resolved document against everything the training
// harness would reject, plus the cross-field consistency rules. Issues
// are sorted by field.
func Validate(d *Document, opts ValidateOptions) *Report {
	r := &Report{}

	validateTopLevel(d, r)
	validateModel(d, r)
	validateTokenizer(d, r)
	validateLoaders(d, r)
	validateOptimizer(d, r)
	validateScheduler(d, r)
	validateComponents(d, r)
	validateFSDP(d, r)
	validateCheckpointing(d, r)

	if opts.Strict {
		for i := range r.Issues {
			r.Issues[i].Severity = SeverityError
		}
	}

	sort.SliceStable(r.Issues, func(i, j int) bool {
		if r.Issues[i].Field != r.Issues[j].Field {
			return r.Issues[i].Field < r.Issues[j].Field
		}
		return r.Issues[i].Message < r.Issues[j].Message
	})

	return r
}

func validateTopLevel(d *Document, r *Report) {
	if d.RunName == "" {
		r.warnf("run_name", "run_name is not set; checkpoint paths and run records need one")
	} else if !runNamePattern.MatchString(d.RunName) {
		r.errorf("run_name", "run_name %q may only contain letters, digits, '.', '_' and '-'", d.RunName)
	}

	if d.MaxSeqLen <= 0 {
		r.errorf("max_seq_len", "max_seq_len must be a positive integer")
	}

	if d.GlobalSeed != nil && *d.GlobalSeed < 0 {
		r.errorf("global_seed", "global_seed cannot be negative")
	}
	if d.Seed != nil && *d.Seed < 0 {
		r.errorf("seed", "seed cannot be negative")
	}
	if d.Seed != nil && d.GlobalSeed != nil && *d.Seed != *d.GlobalSeed {
		r.warnf("seed", "seed (%d) differs from global_seed (%d)", *d.Seed, *d.GlobalSeed)
	}

	if d.MaxDuration == "" {
		r.errorf("max_duration", "max_duration is required")
	} else if t, err := ParseTime(d.MaxDuration); err != nil {
		r.errorf("max_duration", "%v", err)
	} else if t.IsZero() {
		r.errorf("max_duration", "max_duration must be positive")
	}

	if d.EvalLoader != nil && d.EvalInterval == "" {
		r.errorf("eval_interval", "eval_interval is required when eval_loader is set")
	}
	if d.EvalInterval != "" {
		if t, err := ParseTime(string(d.EvalInterval)); err != nil {
			r.errorf("eval_interval", "%v", err)
		} else if t.IsZero() {
			r.errorf("eval_interval", "eval_interval must be positive")
		}
	}
	if d.EvalFirst != nil && *d.EvalFirst && d.EvalLoader == nil {
		r.warnf("eval_first", "eval_first has no effect without eval_loader")
	}

	if d.GlobalTrainBatchSize <= 0 {
		r.errorf("global_train_batch_size", "global_train_batch_size must be a positive integer")
	}

	if mb := d.DeviceTrainMicrobatchSize; mb != nil && !mb.Auto {
		if mb.Value <= 0 {
			r.errorf("device_train_microbatch_size", "device_train_microbatch_size must be a positive integer or \"auto\"")
		} else if d.GlobalTrainBatchSize > 0 {
			if mb.Value > d.GlobalTrainBatchSize {
				r.errorf("device_train_microbatch_size", "device_train_microbatch_size (%d) cannot exceed global_train_batch_size (%d)", mb.Value, d.GlobalTrainBatchSize)
			} else if d.GlobalTrainBatchSize%mb.Value != 0 {
				r.warnf("device_train_microbatch_size", "global_train_batch_size (%d) is not a multiple of device_train_microbatch_size (%d)", d.GlobalTrainBatchSize, mb.Value)
			}
		}
	}

	if d.DeviceEvalBatchSize != nil && *d.DeviceEvalBatchSize <= 0 {
		r.errorf("device_eval_batch_size", "device_eval_batch_size must be a positive integer")
	}
	if d.EvalLoader != nil && d.DeviceEvalBatchSize == nil {
		r.warnf("device_eval_batch_size", "device_eval_batch_size is not set; the harness default applies")
	}

	if d.Precision != "" && !oneOf(d.Precision, precisionValues) {
		r.errorf("precision", "precision must be one of %s", strings.Join(precisionValues, ", "))
	}

	if d.DistTimeout != nil && *d.DistTimeout <= 0 {
		r.errorf("dist_timeout", "dist_timeout must be a positive number of seconds")
	}

	if d.ConsoleLogInterval != "" {
		if _, err := ParseTime(string(d.ConsoleLogInterval)); err != nil {
			r.errorf("console_log_interval", "%v", err)
		}
	}
}

func validateModel(d *Document, r *Report) {
	if d.Model == nil {
		r.errorf("model", "model section is required")
		return
	}
	m := d.Model

	if m.Name == "" {
		r.errorf("model.name", "model name is required")
	} else {
		for _, p := range catalog.Check(catalog.Models, m.Name, nil) {
			r.errorf("model.name", "%s", p.Message)
		}
	}

	if m.Name == "hf_causal_lm" && m.PretrainedPath == "" {
		r.errorf("model.pretrained_model_name_or_path", "pretrained_model_name_or_path is required for hf_causal_lm")
	}

	if m.InitDevice != "" && !oneOf(m.InitDevice, initDeviceValues) {
		r.errorf("model.init_device", "init_device must be one of %s", strings.Join(initDeviceValues, ", "))
	}

	if m.ZLoss != nil && *m.ZLoss < 0 {
		r.errorf("model.z_loss", "z_loss cannot be negative")
	}
}

func validateTokenizer(d *Document, r *Report) {
	if d.Tokenizer == nil {
		r.errorf("tokenizer", "tokenizer section is required")
		return
	}
	t := d.Tokenizer

	if t.Name == "" {
		r.errorf("tokenizer.name", "tokenizer name is required")
	}

	if raw, ok := t.Kwargs["model_max_length"]; ok {
		n, isInt := asInt(raw)
		if !isInt {
			r.errorf("tokenizer.kwargs.model_max_length", "model_max_length must be an integer")
		} else if d.MaxSeqLen > 0 && n != d.MaxSeqLen {
			r.errorf("tokenizer.kwargs.model_max_length", "model_max_length (%d) does not match max_seq_len (%d)", n, d.MaxSeqLen)
		}
	}
}

func validateLoaders(d *Document, r *Report) {
	if d.TrainLoader == nil {
		r.errorf("train_loader", "train_loader section is required")
	} else {
		validateLoader("train_loader", d.TrainLoader, d, r)
	}
	if d.EvalLoader != nil {
		validateLoader("eval_loader", d.EvalLoader, d, r)
	}
}

func validateLoader(section string, l *Loader, d *Document, r *Report) {
	if l.Name == "" {
		r.errorf(section+".name", "dataloader name is required")
	} else {
		for _, p := range catalog.Check(catalog.Loaders, l.Name, nil) {
			r.errorf(section+".name", "%s", p.Message)
		}
	}

	ds := section + ".dataset"
	if l.Dataset.HFName == "" {
		r.errorf(ds+".hf_name", "hf_name is required")
	}
	if l.Dataset.Split == "" {
		r.errorf(ds+".split", "split is required")
	}
	if l.Dataset.MaxSeqLen <= 0 {
		r.errorf(ds+".max_seq_len", "max_seq_len must be a positive integer")
	} else if d.MaxSeqLen > 0 && l.Dataset.MaxSeqLen != d.MaxSeqLen {
		r.errorf(ds+".max_seq_len", "dataset max_seq_len (%d) does not match top-level max_seq_len (%d)", l.Dataset.MaxSeqLen, d.MaxSeqLen)
	}
	if pr := l.Dataset.PackingRatio; pr != nil && !pr.Auto && pr.Value <= 0 {
		r.errorf(ds+".packing_ratio", "packing_ratio must be a positive number or \"auto\"")
	}

	if l.NumWorkers != nil && *l.NumWorkers < 0 {
		r.errorf(section+".num_workers", "num_workers cannot be negative")
	}
	workers := 0
	if l.NumWorkers != nil {
		workers = *l.NumWorkers
	}
	if l.PrefetchFactor != nil {
		if *l.PrefetchFactor < 1 {
			r.errorf(section+".prefetch_factor", "prefetch_factor must be at least 1")
		}
		if l.NumWorkers != nil && workers == 0 {
			r.errorf(section+".prefetch_factor", "prefetch_factor requires num_workers > 0")
		}
	}
	if l.PersistentWorkers != nil && *l.PersistentWorkers && l.NumWorkers != nil && workers == 0 {
		r.errorf(section+".persistent_workers", "persistent_workers requires num_workers > 0")
	}
	if l.Timeout != nil && *l.Timeout < 0 {
		r.errorf(section+".timeout", "timeout cannot be negative")
	}
}

func validateOptimizer(d *Document, r *Report) {
	if d.Optimizer == nil {
		r.errorf("optimizer", "optimizer section is required")
		return
	}
	o := d.Optimizer

	if o.Name == "" {
		r.errorf("optimizer.name", "optimizer name is required")
		return
	}
	if problems := catalog.Check(catalog.Optimizers, o.Name, nil); len(problems) > 0 {
		for _, p := range problems {
			r.errorf("optimizer.name", "%s", p.Message)
		}
		return
	}

	if o.LR <= 0 {
		r.errorf("optimizer.lr", "lr must be a positive number")
	}

	traits, _ := catalog.OptimizerFor(o.Name)

	if o.Betas != nil {
		if !traits.Betas {
			r.errorf("optimizer.betas", "betas is not a parameter of %s", o.Name)
		} else if len(o.Betas) != 2 {
			r.errorf("optimizer.betas", "betas must hold exactly 2 values, got %d", len(o.Betas))
		} else {
			for i, b := range o.Betas {
				if b < 0 || b >= 1 {
					r.errorf("optimizer.betas", "betas[%d] must be in [0, 1)", i)
				}
			}
		}
	}

	if o.Eps != nil {
		if !traits.Eps {
			r.errorf("optimizer.eps", "eps is not a parameter of %s", o.Name)
		} else if *o.Eps <= 0 {
			r.errorf("optimizer.eps", "eps must be a positive number")
		}
	}

	if o.WeightDecay != nil && *o.WeightDecay < 0 {
		r.errorf("optimizer.weight_decay", "weight_decay cannot be negative")
	}

	if o.Momentum != nil {
		if !traits.Momentum {
			r.errorf("optimizer.momentum", "momentum is not a parameter of %s", o.Name)
		} else if *o.Momentum < 0 {
			r.errorf("optimizer.momentum", "momentum cannot be negative")
		}
	}
}

func validateScheduler(d *Document, r *Report) {
	if d.Scheduler == nil {
		r.errorf("scheduler", "scheduler section is required")
		return
	}
	s := d.Scheduler

	if s.Name == "" {
		r.errorf("scheduler.name", "scheduler name is required")
		return
	}
	if problems := catalog.Check(catalog.Schedulers, s.Name, nil); len(problems) > 0 {
		for _, p := range problems {
			r.errorf("scheduler.name", "%s", p.Message)
		}
		return
	}

	traits, _ := catalog.SchedulerFor(s.Name)

	var warmup Time
	warmupOK := false
	if s.TWarmup == "" {
		r.errorf("scheduler.t_warmup", "t_warmup is required")
	} else if t, err := ParseTime(s.TWarmup); err != nil {
		r.errorf("scheduler.t_warmup", "%v", err)
	} else {
		warmup = t
		warmupOK = true
	}

	if s.AlphaF != nil {
		if !traits.AlphaF {
			r.errorf("scheduler.alpha_f", "alpha_f is not a parameter of %s", s.Name)
		} else if *s.AlphaF < 0 || *s.AlphaF > 1 {
			r.errorf("scheduler.alpha_f", "alpha_f must be in [0, 1]")
		}
	}

	if s.TMax != "" {
		if !traits.TMax {
			r.errorf("scheduler.t_max", "t_max is not a parameter of %s", s.Name)
		} else if _, err := ParseTime(s.TMax); err != nil {
			r.errorf("scheduler.t_max", "%v", err)
		}
	}

	if warmupOK && d.MaxDuration != "" {
		if total, err := ParseTime(d.MaxDuration); err == nil && warmup.Comparable(total) {
			if c, _ := warmup.Cmp(total); c > 0 {
				r.errorf("scheduler.t_warmup", "t_warmup (%s) exceeds max_duration (%s)", warmup, total)
			}
		}
	}
}

func validateComponents(d *Document, r *Report) {
	checkKind := func(kind catalog.Kind, section string, entries map[string]map[string]interface{}) {
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, p := range catalog.Check(kind, name, entries[name]) {
				field := section + "." + name
				if p.Arg != "" {
					field += "." + p.Arg
				}
				r.errorf(field, "%s", p.Message)
			}
		}
	}

	checkKind(catalog.Algorithms, "algorithms", d.Algorithms)
	checkKind(catalog.Callbacks, "callbacks", d.Callbacks)
	checkKind(catalog.Loggers, "loggers", d.Loggers)
}

func validateFSDP(d *Document, r *Report) {
	if d.FSDPConfig == nil {
		return
	}
	f := d.FSDPConfig

	if f.ShardingStrategy != "" && !oneOf(f.ShardingStrategy, shardingStrategies) {
		r.errorf("fsdp_config.sharding_strategy", "sharding_strategy must be one of %s", strings.Join(shardingStrategies, ", "))
	}
	if f.MixedPrecision != "" && !oneOf(f.MixedPrecision, mixedPrecisionValues) {
		r.errorf("fsdp_config.mixed_precision", "mixed_precision must be one of %s", strings.Join(mixedPrecisionValues, ", "))
	}
}

func validateCheckpointing(d *Document, r *Report) {
	var saveInterval Time
	saveIntervalOK := false
	if d.SaveInterval != "" {
		if t, err := ParseTime(string(d.SaveInterval)); err != nil {
			r.errorf("save_interval", "%v", err)
		} else if t.IsZero() {
			r.errorf("save_interval", "save_interval must be positive")
		} else {
			saveInterval = t
			saveIntervalOK = true
		}
		if d.SaveFolder == "" {
			r.warnf("save_interval", "save_interval has no effect without save_folder")
		}
	}

	if d.SaveNumCheckpointsToKeep != nil && *d.SaveNumCheckpointsToKeep < -1 {
		r.errorf("save_num_checkpoints_to_keep", "save_num_checkpoints_to_keep must be -1 or greater")
	}

	if d.SaveFolder != "" {
		for _, m := range placeholderPattern.FindAllStringSubmatch(d.SaveFolder, -1) {
			if m[1] != "run_name" && m[1] != "rank" {
				r.errorf("save_folder", "unknown placeholder {%s}; only {run_name} and {rank} are expanded", m[1])
			}
		}
	}

	if d.Autoresume != nil && *d.Autoresume {
		if d.SaveFolder == "" {
			r.errorf("autoresume", "autoresume requires save_folder")
		}
		if d.RunName == "" {
			r.errorf("autoresume", "autoresume requires run_name")
		}
		if d.SaveOverwrite != nil && *d.SaveOverwrite {
			r.errorf("autoresume", "autoresume cannot be combined with save_overwrite")
		}
	}

	if saveIntervalOK && d.MaxDuration != "" {
		if total, err := ParseTime(d.MaxDuration); err == nil && saveInterval.Comparable(total) {
			if c, _ := saveInterval.Cmp(total); c > 0 {
				r.warnf("save_interval", "save_interval (%s) exceeds max_duration (%s); only the final checkpoint will be saved", saveInterval, total)
			}
		}
	}
}

func oneOf(value string, valid []string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
	}
	return 0, false
}
