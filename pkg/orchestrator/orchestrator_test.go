package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunekit/tunekit/pkg/registry"
)

const validRunConfig = `
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
device_eval_batch_size: 8

save_folder: ./checkpoints/{run_name}
`

// newTestOrchestrator builds an orchestrator against a sqlite registry
// in a temp dir, with hub lookups forced offline. extra is appended to
// the tool config verbatim.
func newTestOrchestrator(t *testing.T, withRegistry bool, extra string) *Orchestrator {
	t.Helper()
	dir := t.TempDir()

	cfg := "hub:\n  offline: true\ndefault_settings:\n  timeout: 5\n"
	if withRegistry {
		cfg += fmt.Sprintf("registry:\n  enabled: true\n  driver: sqlite\n  path: %s\n", filepath.Join(dir, "runs.db"))
	}
	cfg += extra

	configPath := filepath.Join(dir, "tunekit.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0644))

	orch, err := NewOrchestrator(configPath)
	require.NoError(t, err)
	t.Cleanup(orch.Close)
	return orch
}

func writeRunConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewOrchestratorOpensRegistry(t *testing.T) {
	orch := newTestOrchestrator(t, true, "")
	assert.NotNil(t, orch.GetStore())
	assert.True(t, orch.GetConfig().Registry.Enabled)
}

func TestNewOrchestratorWithoutRegistry(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	assert.Nil(t, orch.GetStore())
}

func TestRunCheckValidDocument(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	file := writeRunConfig(t, validRunConfig)

	result, err := orch.RunCheck(CheckOptions{File: file})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "tiny-sft", result.RunName)
	assert.Len(t, result.Fingerprint, 12)
	assert.Empty(t, result.RunID)
	assert.True(t, result.Report.OK())
}

func TestRunCheckInvalidDocument(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	broken := strings.Replace(validRunConfig, "run_name: tiny-sft", "run_name: bad name", 1)
	file := writeRunConfig(t, broken)

	result, err := orch.RunCheck(CheckOptions{File: file})
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, "run_name", result.Issues[0].Field)
}

func TestRunCheckLoadError(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")

	_, err := orch.RunCheck(CheckOptions{File: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestRunCheckRecord(t *testing.T) {
	orch := newTestOrchestrator(t, true, "")
	file := writeRunConfig(t, validRunConfig)

	result, err := orch.RunCheck(CheckOptions{File: file, Record: true})
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = uuid.Parse(result.RunID)
	require.NoError(t, err)

	records, err := orch.RunList(ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tiny-sft", records[0].Name)
	assert.Equal(t, registry.StatusValidated, records[0].Status)
	assert.Equal(t, result.Fingerprint, records[0].Fingerprint)
	assert.Equal(t, "gpt2", records[0].Model)
	assert.Equal(t, "tatsu-lab/alpaca", records[0].Dataset)
	assert.Equal(t, "2ep", records[0].MaxDuration)
}

func TestRunCheckRecordWithoutRegistry(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	file := writeRunConfig(t, validRunConfig)

	_, err := orch.RunCheck(CheckOptions{File: file, Record: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry is not configured")
}

func TestRunCheckSkipsRecordOnFailure(t *testing.T) {
	orch := newTestOrchestrator(t, true, "")
	broken := strings.Replace(validRunConfig, "max_seq_len: 512\nglobal_seed", "max_seq_len: 0\nglobal_seed", 1)
	file := writeRunConfig(t, broken)

	result, err := orch.RunCheck(CheckOptions{File: file, Record: true})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.RunID)

	records, err := orch.RunList(ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunRenderYAML(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	file := writeRunConfig(t, validRunConfig)

	rendered, report, err := orch.RunRender(RenderOptions{File: file})
	require.NoError(t, err)
	require.True(t, report.OK())

	text := string(rendered)
	assert.Contains(t, text, "run_name: tiny-sft")
	assert.Contains(t, text, "precision: amp_bf16")
	assert.Contains(t, text, "device_train_microbatch_size: auto")
}

func TestRunRenderJSON(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	file := writeRunConfig(t, validRunConfig)

	rendered, _, err := orch.RunRender(RenderOptions{File: file, JSON: true})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rendered, &decoded))
	assert.Equal(t, "tiny-sft", decoded["run_name"])
}

func TestRunRenderInvalidReturnsReport(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	broken := strings.Replace(validRunConfig, "lr: 1.0e-5", "lr: 0", 1)
	file := writeRunConfig(t, broken)

	rendered, report, err := orch.RunRender(RenderOptions{File: file})
	require.NoError(t, err)
	assert.Nil(t, rendered)
	require.NotNil(t, report)
	assert.False(t, report.OK())
}

func TestRunPlan(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	file := writeRunConfig(t, validRunConfig)

	p, report, err := orch.RunPlan(PlanOptions{File: file, GPUs: 4})
	require.NoError(t, err)
	require.True(t, report.OK())

	assert.Equal(t, 4, p.GPUs)
	assert.Equal(t, 8, p.PerDeviceBatch)
	assert.Equal(t, int64(32*512), p.TokensPerStep)
	assert.Nil(t, p.Memory)
}

func TestRunPlanWithParams(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	file := writeRunConfig(t, validRunConfig)

	p, _, err := orch.RunPlan(PlanOptions{File: file, ParamsB: 0.124})
	require.NoError(t, err)
	require.NotNil(t, p.Memory)
	assert.InDelta(t, 0.124, p.Memory.ParamsB, 1e-9)
}

func TestRunDiff(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	fileA := writeRunConfig(t, validRunConfig)
	fileB := writeRunConfig(t, strings.Replace(validRunConfig, "lr: 1.0e-5", "lr: 2.0e-5", 1))

	t.Run("different documents", func(t *testing.T) {
		result, err := orch.RunDiff(DiffOptions{FileA: fileA, FileB: fileB})
		require.NoError(t, err)
		assert.False(t, result.Equal)
		assert.NotEqual(t, result.FingerprintA, result.FingerprintB)
		assert.Contains(t, result.Diff, "LR")
	})

	t.Run("same document", func(t *testing.T) {
		result, err := orch.RunDiff(DiffOptions{FileA: fileA, FileB: fileA})
		require.NoError(t, err)
		assert.True(t, result.Equal)
		assert.Equal(t, result.FingerprintA, result.FingerprintB)
		assert.Empty(t, result.Diff)
	})
}

func TestRunSubmitRecordsAndPosts(t *testing.T) {
	var harnessBody []byte
	var harnessAuth string
	harness := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		harnessBody, _ = io.ReadAll(r.Body)
		harnessAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer harness.Close()

	t.Setenv("TUNEKIT_HARNESS_TOKEN", "harness-secret")

	orch := newTestOrchestrator(t, true, "harness:\n  endpoint: "+harness.URL+"\n")
	file := writeRunConfig(t, validRunConfig)

	result, err := orch.RunSubmit(SubmitOptions{File: file})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Submitted)
	assert.False(t, result.Indexed)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(harnessBody, &decoded))
	assert.Equal(t, "tiny-sft", decoded["run_name"])
	assert.Equal(t, "Bearer harness-secret", harnessAuth)

	records, err := orch.RunList(ListOptions{Status: registry.StatusSubmitted})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.RunID, records[0].RunID)
}

func TestRunSubmitIndexesIntoElastic(t *testing.T) {
	var bulkSeen bool
	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/_bulk") {
			bulkSeen = true
			io.WriteString(w, `{"took":1,"errors":false,"items":[{"index":{"status":201}}]}`)
			return
		}
		io.WriteString(w, `{"name":"test","version":{"number":"8.13.0"}}`)
	}))
	defer es.Close()

	orch := newTestOrchestrator(t, true, "elastic:\n  url: "+es.URL+"\n")
	file := writeRunConfig(t, validRunConfig)

	result, err := orch.RunSubmit(SubmitOptions{File: file})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Indexed)
	assert.True(t, bulkSeen)
}

func TestRunSubmitWithoutRegistry(t *testing.T) {
	orch := newTestOrchestrator(t, false, "")
	file := writeRunConfig(t, validRunConfig)

	_, err := orch.RunSubmit(SubmitOptions{File: file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry is not configured")
}

func TestRunSubmitValidationFailure(t *testing.T) {
	orch := newTestOrchestrator(t, true, "")
	broken := strings.Replace(validRunConfig, "name: constant_with_warmup", "name: cosine_warmup", 1)
	file := writeRunConfig(t, broken)

	result, err := orch.RunSubmit(SubmitOptions{File: file})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Issues)
	assert.Empty(t, result.RunID)

	records, err := orch.RunList(ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunListFilters(t *testing.T) {
	orch := newTestOrchestrator(t, true, "")

	fileA := writeRunConfig(t, validRunConfig)
	fileB := writeRunConfig(t, strings.Replace(validRunConfig, "run_name: tiny-sft", "run_name: other-sft", 1))

	_, err := orch.RunCheck(CheckOptions{File: fileA, Record: true})
	require.NoError(t, err)
	_, err = orch.RunCheck(CheckOptions{File: fileB, Record: true})
	require.NoError(t, err)

	all, err := orch.RunList(ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	named, err := orch.RunList(ListOptions{Name: "tiny-sft"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "tiny-sft", named[0].Name)
}
