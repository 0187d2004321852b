// Package plan derives the training arithmetic implied by a run
// configuration: token throughput per optimizer step, per-device batch
// sizes, warmup share, checkpoint counts and a state-memory estimate.
package plan

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/tunekit/tunekit/pkg/runspec"
)

// Options select the cluster shape the plan is computed for.
type Options struct {
	// GPUs is the device count the run would launch on. Zero leaves the
	// per-device figures out of the plan.
	GPUs int
	// ParamsB is the model parameter count in billions, from the flag or
	// a hub lookup. Zero skips the memory estimate.
	ParamsB float64
}

// Plan is the derived view of one run configuration. Zero-valued fields
// were not computable from the document alone.
type Plan struct {
	RunName             string          `json:"run_name,omitempty"`
	Model               string          `json:"model,omitempty"`
	Dataset             string          `json:"dataset,omitempty"`
	Precision           string          `json:"precision,omitempty"`
	MaxDuration         string          `json:"max_duration"`
	MaxSeqLen           int             `json:"max_seq_len"`
	GlobalBatchSize     int             `json:"global_train_batch_size"`
	Microbatch          string          `json:"device_train_microbatch_size,omitempty"`
	TokensPerStep       int64           `json:"tokens_per_step"`
	GPUs                int             `json:"gpus,omitempty"`
	PerDeviceBatch      int             `json:"per_device_batch,omitempty"`
	GradAccumSteps      int             `json:"grad_accum_steps,omitempty"`
	TotalBatches        int64           `json:"total_batches,omitempty"`
	TotalTokens         int64           `json:"total_tokens,omitempty"`
	WarmupFraction      *float64        `json:"warmup_fraction,omitempty"`
	Checkpoints         int64           `json:"checkpoints,omitempty"`
	RetainedCheckpoints int64           `json:"retained_checkpoints,omitempty"`
	Evals               int64           `json:"evals,omitempty"`
	Memory              *MemoryEstimate `json:"memory,omitempty"`
}

// MemoryEstimate approximates the training-state footprint: parameters,
// gradients and optimizer moments. Activations are workload-dependent
// and not included.
type MemoryEstimate struct {
	ParamsB       float64 `json:"params_b"`
	BytesPerParam float64 `json:"bytes_per_param"`
	TotalGB       float64 `json:"total_gb"`
	PerGPUGB      float64 `json:"per_gpu_gb"`
	Sharding      string  `json:"sharding,omitempty"`
}

// Build derives a plan from a resolved document. The document should
// already have passed validation; Build only errors on cluster-shape
// mismatches the flags introduce.
func Build(doc *runspec.Document, opts Options) (*Plan, error) {
	p := &Plan{
		RunName:         doc.RunName,
		Precision:       doc.Precision,
		MaxDuration:     doc.MaxDuration,
		MaxSeqLen:       doc.MaxSeqLen,
		GlobalBatchSize: doc.GlobalTrainBatchSize,
		TokensPerStep:   int64(doc.GlobalTrainBatchSize) * int64(doc.MaxSeqLen),
	}
	if doc.Model != nil {
		p.Model = doc.Model.PretrainedPath
		if p.Model == "" {
			p.Model = doc.Model.Name
		}
	}
	if doc.TrainLoader != nil {
		p.Dataset = doc.TrainLoader.Dataset.HFName
	}
	if mb := doc.DeviceTrainMicrobatchSize; mb != nil {
		p.Microbatch = mb.String()
	}

	if opts.GPUs > 0 {
		if err := applyCluster(doc, opts.GPUs, p); err != nil {
			return nil, err
		}
	}

	applyDuration(doc, p)
	applyCheckpoints(doc, p)

	if opts.ParamsB > 0 {
		p.Memory = estimateMemory(doc, opts)
	}

	return p, nil
}

func applyCluster(doc *runspec.Document, gpus int, p *Plan) error {
	if doc.GlobalTrainBatchSize <= 0 {
		return nil
	}
	if doc.GlobalTrainBatchSize%gpus != 0 {
		return fmt.Errorf("global_train_batch_size (%d) is not divisible by %d GPUs", doc.GlobalTrainBatchSize, gpus)
	}
	p.GPUs = gpus
	p.PerDeviceBatch = doc.GlobalTrainBatchSize / gpus

	mb := doc.DeviceTrainMicrobatchSize
	if mb == nil || mb.Auto {
		return nil
	}
	if p.PerDeviceBatch%mb.Value != 0 {
		return fmt.Errorf("per-device batch (%d) is not a multiple of device_train_microbatch_size (%d)", p.PerDeviceBatch, mb.Value)
	}
	p.GradAccumSteps = p.PerDeviceBatch / mb.Value
	return nil
}

func applyDuration(doc *runspec.Document, p *Plan) {
	total, err := runspec.ParseTime(doc.MaxDuration)
	if err != nil {
		return
	}

	switch total.Unit() {
	case runspec.UnitBatch:
		p.TotalBatches = total.Count()
		p.TotalTokens = total.Count() * p.TokensPerStep
	case runspec.UnitToken:
		p.TotalTokens = total.Count()
		if p.TokensPerStep > 0 {
			p.TotalBatches = total.Count() / p.TokensPerStep
		}
	case runspec.UnitSample:
		if doc.GlobalTrainBatchSize > 0 {
			p.TotalBatches = total.Count() / int64(doc.GlobalTrainBatchSize)
		}
		p.TotalTokens = total.Count() * int64(doc.MaxSeqLen)
	}

	if doc.Scheduler == nil || doc.Scheduler.TWarmup == "" {
		return
	}
	warmup, err := runspec.ParseTime(doc.Scheduler.TWarmup)
	if err != nil {
		return
	}
	if warmup.Unit() == runspec.UnitFraction {
		f := warmup.Fraction()
		p.WarmupFraction = &f
		return
	}
	if warmup.Comparable(total) && total.Count() > 0 {
		f := float64(warmup.Count()) / float64(total.Count())
		p.WarmupFraction = &f
	}
}

func applyCheckpoints(doc *runspec.Document, p *Plan) {
	total, err := runspec.ParseTime(doc.MaxDuration)
	if err != nil {
		return
	}

	if doc.SaveFolder != "" && doc.SaveInterval != "" {
		if interval, err := runspec.ParseTime(string(doc.SaveInterval)); err == nil &&
			interval.Comparable(total) && interval.Count() > 0 {
			p.Checkpoints = total.Count() / interval.Count()
			p.RetainedCheckpoints = p.Checkpoints
			if keep := doc.SaveNumCheckpointsToKeep; keep != nil && *keep >= 0 && int64(*keep) < p.Checkpoints {
				p.RetainedCheckpoints = int64(*keep)
			}
		}
	}

	if doc.EvalLoader != nil && doc.EvalInterval != "" {
		if interval, err := runspec.ParseTime(string(doc.EvalInterval)); err == nil &&
			interval.Comparable(total) && interval.Count() > 0 {
			p.Evals = total.Count() / interval.Count()
		}
	}
}

// Training-state bytes per parameter. Mixed precision keeps a bf16/fp16
// working copy and gradients next to fp32 master weights; adam-family
// optimizers carry two fp32 moments, lion and sgd one.
func estimateMemory(doc *runspec.Document, opts Options) *MemoryEstimate {
	paramBytes := 4.0
	masterBytes := 0.0
	switch doc.Precision {
	case "amp_fp16", "amp_bf16":
		paramBytes = 2.0
		masterBytes = 4.0
	case "amp_fp8":
		paramBytes = 1.0
		masterBytes = 4.0
	}
	gradBytes := paramBytes

	momentBytes := 8.0
	if doc.Optimizer != nil {
		switch doc.Optimizer.Name {
		case "decoupled_lionw", "lion", "sgd":
			momentBytes = 4.0
		}
	}

	perParam := paramBytes + gradBytes + masterBytes + momentBytes
	params := opts.ParamsB * 1e9
	totalGB := params * perParam / (1 << 30)

	est := &MemoryEstimate{
		ParamsB:       opts.ParamsB,
		BytesPerParam: perParam,
		TotalGB:       totalGB,
		PerGPUGB:      totalGB,
	}

	gpus := opts.GPUs
	if gpus <= 0 {
		gpus = 1
	}
	if doc.FSDPConfig != nil {
		est.Sharding = doc.FSDPConfig.ShardingStrategy
	}
	switch est.Sharding {
	case "FULL_SHARD", "HYBRID_SHARD":
		est.PerGPUGB = totalGB / float64(gpus)
	case "SHARD_GRAD_OP":
		replicated := params * paramBytes / (1 << 30)
		est.PerGPUGB = replicated + (totalGB-replicated)/float64(gpus)
	}

	return est
}

// WriteTable renders the plan as an aligned key/value listing.
func (p *Plan) WriteTable(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	row := func(key, value string) {
		fmt.Fprintf(w, "%s\t%s\n", key, value)
	}

	if p.RunName != "" {
		row("run_name", p.RunName)
	}
	if p.Model != "" {
		row("model", p.Model)
	}
	if p.Dataset != "" {
		row("dataset", p.Dataset)
	}
	if p.Precision != "" {
		row("precision", p.Precision)
	}
	row("max_duration", p.MaxDuration)
	row("max_seq_len", strconv.Itoa(p.MaxSeqLen))
	row("global_train_batch_size", strconv.Itoa(p.GlobalBatchSize))
	if p.Microbatch != "" {
		row("device_train_microbatch_size", p.Microbatch)
	}
	row("tokens_per_step", groupDigits(p.TokensPerStep))

	if p.GPUs > 0 {
		row("gpus", strconv.Itoa(p.GPUs))
		row("per_device_batch", strconv.Itoa(p.PerDeviceBatch))
		if p.GradAccumSteps > 0 {
			row("grad_accum_steps", strconv.Itoa(p.GradAccumSteps))
		}
	}
	if p.TotalBatches > 0 {
		row("total_batches", groupDigits(p.TotalBatches))
	}
	if p.TotalTokens > 0 {
		row("total_tokens", groupDigits(p.TotalTokens))
	}
	if p.WarmupFraction != nil {
		row("warmup_fraction", fmt.Sprintf("%.1f%%", *p.WarmupFraction*100))
	}
	if p.Checkpoints > 0 {
		row("checkpoints", strconv.FormatInt(p.Checkpoints, 10))
		row("checkpoints_retained", strconv.FormatInt(p.RetainedCheckpoints, 10))
	}
	if p.Evals > 0 {
		row("eval_passes", strconv.FormatInt(p.Evals, 10))
	}
	if p.Memory != nil {
		row("params", fmt.Sprintf("%.1fB", p.Memory.ParamsB))
		row("state_bytes_per_param", fmt.Sprintf("%.0f", p.Memory.BytesPerParam))
		row("state_memory_total", fmt.Sprintf("%.1f GB", p.Memory.TotalGB))
		if p.Memory.Sharding != "" {
			row("sharding", p.Memory.Sharding)
		}
		row("state_memory_per_gpu", fmt.Sprintf("%.1f GB", p.Memory.PerGPUGB))
	}

	return w.Flush()
}

func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
