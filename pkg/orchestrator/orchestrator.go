// Package orchestrator wires the run config pipeline together: load,
// resolve, validate, plan, registry, harness submission and indexing.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/tunekit/tunekit/pkg/config"
	"github.com/tunekit/tunekit/pkg/elastic"
	"github.com/tunekit/tunekit/pkg/hub"
	"github.com/tunekit/tunekit/pkg/plan"
	"github.com/tunekit/tunekit/pkg/registry"
	"github.com/tunekit/tunekit/pkg/runspec"
	"github.com/tunekit/tunekit/pkg/session"
)

var DebugLog func(string, ...interface{})

type Orchestrator struct {
	config        *config.Config
	configManager *config.Manager
	logger        *logrus.Logger
	store         registry.Store
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WARN]"
	case logrus.ErrorLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}
	return []byte(fmt.Sprintf("%s %s\n", levelText, entry.Message)), nil
}

func NewOrchestrator(configPath string) (*Orchestrator, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&customFormatter{})

	configManager := config.NewManager(configPath)
	if err := configManager.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg := configManager.GetConfig()

	var store registry.Store
	if cfg.Registry.Enabled {
		s, err := registry.Open(&cfg.Registry)
		if err != nil {
			logger.Warnf("Registry initialization failed: %v", err)
		} else {
			store = s
		}
	}

	return &Orchestrator{
		config:        cfg,
		configManager: configManager,
		logger:        logger,
		store:         store,
	}, nil
}

func (o *Orchestrator) GetConfig() *config.Config {
	return o.config
}

func (o *Orchestrator) GetStore() registry.Store {
	return o.store
}

func (o *Orchestrator) Logger() *logrus.Logger {
	return o.logger
}

// Close releases the registry connection, when one was opened.
func (o *Orchestrator) Close() {
	if o.store != nil {
		o.store.Close()
	}
}

type CheckOptions struct {
	File        string
	Strict      bool
	CheckRemote bool
	Record      bool
}

// RemoteCheck is the outcome of resolving one hub repo.
type RemoteCheck struct {
	Repo  string `json:"repo"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type CheckResult struct {
	File        string          `json:"file"`
	RunName     string          `json:"run_name,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Issues      []runspec.Issue `json:"issues,omitempty"`
	Remote      []RemoteCheck   `json:"remote,omitempty"`
	RunID       string          `json:"run_id,omitempty"`
	Success     bool            `json:"success"`
	Duration    time.Duration   `json:"-"`

	Document *runspec.Document `json:"-"`
	Report   *runspec.Report   `json:"-"`
}

// RunCheck loads a run config, applies defaults and validates it.
// Optionally resolves the model and tokenizer repos against the hub and
// records a passing document in the registry as VALIDATED.
func (o *Orchestrator) RunCheck(opts CheckOptions) (*CheckResult, error) {
	startTime := time.Now()

	doc, err := runspec.Load(opts.File)
	if err != nil {
		return nil, err
	}
	doc.ApplyDefaults()

	strict := opts.Strict || o.config.DefaultSettings.Strict
	report := runspec.Validate(doc, runspec.ValidateOptions{Strict: strict})

	result := &CheckResult{
		File:     opts.File,
		RunName:  doc.RunName,
		Issues:   report.Issues,
		Document: doc,
		Report:   report,
	}

	fp, err := runspec.Fingerprint(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint document: %w", err)
	}
	result.Fingerprint = runspec.ShortFingerprint(fp)

	if opts.CheckRemote {
		remote, err := o.checkRemote(doc)
		if err != nil {
			return nil, err
		}
		result.Remote = remote
	}

	result.Success = report.OK()
	for _, check := range result.Remote {
		if !check.OK {
			result.Success = false
		}
	}

	if opts.Record && result.Success {
		rec, err := o.recordRun(doc, result.Fingerprint, registry.StatusValidated)
		if err != nil {
			return nil, err
		}
		result.RunID = rec.RunID
		if DebugLog != nil {
			DebugLog("recorded run %s as %s", rec.RunID, rec.Status)
		}
	}

	result.Duration = time.Since(startTime)
	return result, nil
}

func (o *Orchestrator) checkRemote(doc *runspec.Document) ([]RemoteCheck, error) {
	sess, err := session.New(o.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	client := hub.NewClient(sess)

	var repos []string
	if doc.Model != nil && doc.Model.PretrainedPath != "" {
		repos = append(repos, doc.Model.PretrainedPath)
	}
	if doc.Tokenizer != nil && doc.Tokenizer.Name != "" {
		duplicate := false
		for _, repo := range repos {
			if repo == doc.Tokenizer.Name {
				duplicate = true
			}
		}
		if !duplicate {
			repos = append(repos, doc.Tokenizer.Name)
		}
	}

	checks := make([]RemoteCheck, 0, len(repos))
	for _, repo := range repos {
		check := RemoteCheck{Repo: repo, OK: true}
		if err := client.Resolve(repo); err != nil {
			check.OK = false
			check.Error = err.Error()
		}
		checks = append(checks, check)
	}
	return checks, nil
}

func (o *Orchestrator) recordRun(doc *runspec.Document, fingerprint, status string) (*registry.Record, error) {
	if o.store == nil {
		return nil, fmt.Errorf("registry is not configured; enable it in %s", o.configManager.ConfigPath())
	}

	rendered, err := runspec.RenderYAML(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}

	rec := &registry.Record{
		Name:        doc.RunName,
		Fingerprint: fingerprint,
		Status:      status,
		MaxDuration: doc.MaxDuration,
		Document:    string(rendered),
	}
	if doc.Model != nil {
		rec.Model = doc.Model.PretrainedPath
	}
	if doc.TrainLoader != nil {
		rec.Dataset = doc.TrainLoader.Dataset.HFName
	}

	if err := o.store.RecordRun(rec); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return rec, nil
}

type RenderOptions struct {
	File   string
	Strict bool
	JSON   bool
}

// RunRender validates a run config and emits the harness-ready
// document. A failed validation returns the report with nil output.
func (o *Orchestrator) RunRender(opts RenderOptions) ([]byte, *runspec.Report, error) {
	doc, err := runspec.Load(opts.File)
	if err != nil {
		return nil, nil, err
	}
	doc.ApplyDefaults()

	strict := opts.Strict || o.config.DefaultSettings.Strict
	report := runspec.Validate(doc, runspec.ValidateOptions{Strict: strict})
	if !report.OK() {
		return nil, report, nil
	}

	var rendered []byte
	if opts.JSON {
		rendered, err = runspec.RenderJSON(doc)
	} else {
		rendered, err = runspec.RenderYAML(doc)
	}
	if err != nil {
		return nil, report, fmt.Errorf("failed to render document: %w", err)
	}
	return rendered, report, nil
}

type PlanOptions struct {
	File    string
	GPUs    int
	ParamsB float64
}

// RunPlan validates a run config and derives its batching, duration,
// checkpoint and memory arithmetic. The parameter count comes from
// --params or, when absent, from the hub model config (best effort).
func (o *Orchestrator) RunPlan(opts PlanOptions) (*plan.Plan, *runspec.Report, error) {
	doc, err := runspec.Load(opts.File)
	if err != nil {
		return nil, nil, err
	}
	doc.ApplyDefaults()

	report := runspec.Validate(doc, runspec.ValidateOptions{})
	if !report.OK() {
		return nil, report, nil
	}

	gpus := opts.GPUs
	if gpus == 0 {
		gpus = o.config.DefaultSettings.GPUs
	}

	paramsB := opts.ParamsB
	if paramsB == 0 {
		paramsB = o.paramsFromHub(doc)
	}

	p, err := plan.Build(doc, plan.Options{GPUs: gpus, ParamsB: paramsB})
	if err != nil {
		return nil, report, err
	}
	return p, report, nil
}

// paramsFromHub estimates the parameter count from the model's hub
// config. Failures degrade to a zero estimate; the plan simply omits
// the memory section.
func (o *Orchestrator) paramsFromHub(doc *runspec.Document) float64 {
	if doc.Model == nil || doc.Model.PretrainedPath == "" {
		return 0
	}

	sess, err := session.New(o.config)
	if err != nil {
		return 0
	}
	client := hub.NewClient(sess)

	mc, err := client.ModelConfig(doc.Model.PretrainedPath, false)
	if err != nil {
		if DebugLog != nil {
			DebugLog("no hub model config for %s: %v", doc.Model.PretrainedPath, err)
		}
		return 0
	}
	return mc.ParamsB()
}

type DiffOptions struct {
	FileA string
	FileB string
}

type DiffResult struct {
	FileA        string `json:"file_a"`
	FileB        string `json:"file_b"`
	FingerprintA string `json:"fingerprint_a"`
	FingerprintB string `json:"fingerprint_b"`
	Equal        bool   `json:"equal"`
	Diff         string `json:"diff,omitempty"`
}

// RunDiff compares two run configs after substitution and defaults, so
// cosmetic differences (key order, comments, `${...}` spelling) vanish
// and only semantic drift remains.
func (o *Orchestrator) RunDiff(opts DiffOptions) (*DiffResult, error) {
	docA, err := runspec.Load(opts.FileA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.FileA, err)
	}
	docB, err := runspec.Load(opts.FileB)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.FileB, err)
	}
	docA.ApplyDefaults()
	docB.ApplyDefaults()

	fpA, err := runspec.Fingerprint(docA)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", opts.FileA, err)
	}
	fpB, err := runspec.Fingerprint(docB)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", opts.FileB, err)
	}

	diff := cmp.Diff(docA, docB)

	return &DiffResult{
		FileA:        opts.FileA,
		FileB:        opts.FileB,
		FingerprintA: runspec.ShortFingerprint(fpA),
		FingerprintB: runspec.ShortFingerprint(fpB),
		Equal:        diff == "",
		Diff:         diff,
	}, nil
}

type SubmitOptions struct {
	File string
}

type SubmitResult struct {
	File        string          `json:"file"`
	RunName     string          `json:"run_name,omitempty"`
	RunID       string          `json:"run_id,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Issues      []runspec.Issue `json:"issues,omitempty"`
	Submitted   bool            `json:"submitted"`
	Indexed     bool            `json:"indexed"`
	Success     bool            `json:"success"`
	Duration    time.Duration   `json:"-"`
}

// RunSubmit validates a run config strictly, records it as SUBMITTED,
// then posts the rendered JSON to the harness endpoint and indexes the
// record into Elasticsearch when those are configured. The registry is
// required; harness and indexing are optional.
func (o *Orchestrator) RunSubmit(opts SubmitOptions) (*SubmitResult, error) {
	startTime := time.Now()

	doc, err := runspec.Load(opts.File)
	if err != nil {
		return nil, err
	}
	doc.ApplyDefaults()

	report := runspec.Validate(doc, runspec.ValidateOptions{Strict: true})
	result := &SubmitResult{
		File:    opts.File,
		RunName: doc.RunName,
		Issues:  report.Issues,
	}
	if !report.OK() {
		result.Duration = time.Since(startTime)
		return result, nil
	}

	fp, err := runspec.Fingerprint(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint document: %w", err)
	}
	result.Fingerprint = runspec.ShortFingerprint(fp)

	rec, err := o.recordRun(doc, result.Fingerprint, registry.StatusSubmitted)
	if err != nil {
		return nil, err
	}
	result.RunID = rec.RunID

	if o.config.Harness.Endpoint != "" {
		if err := o.postToHarness(doc); err != nil {
			return nil, fmt.Errorf("harness submission failed: %w", err)
		}
		result.Submitted = true
	}

	if o.config.Elastic.URL != "" {
		if err := o.indexRun(rec); err != nil {
			o.logger.Warnf("Failed to index run in Elasticsearch: %v", err)
		} else {
			result.Indexed = true
		}
	}

	result.Success = true
	result.Duration = time.Since(startTime)
	return result, nil
}

func (o *Orchestrator) postToHarness(doc *runspec.Document) error {
	payload, err := runspec.RenderJSON(doc)
	if err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}

	sess, err := session.New(o.config)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, o.config.Harness.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := o.config.HarnessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := sess.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("harness returned HTTP %d", resp.StatusCode)
	}

	if DebugLog != nil {
		DebugLog("submitted run to %s: HTTP %d", o.config.Harness.Endpoint, resp.StatusCode)
	}
	return nil
}

func (o *Orchestrator) indexRun(rec *registry.Record) error {
	es, err := elastic.New(elastic.Config{
		URL:      o.config.Elastic.URL,
		Username: o.config.Elastic.Username,
		Password: o.config.Elastic.Password,
		Index:    o.config.Elastic.Index,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(o.config.DefaultSettings.Timeout)*time.Second)
	defer cancel()

	return es.IndexRun(ctx, *rec)
}

type ListOptions struct {
	Name   string
	Status string
	Limit  int
}

// RunList queries the run registry.
func (o *Orchestrator) RunList(opts ListOptions) ([]registry.Record, error) {
	if o.store == nil {
		return nil, fmt.Errorf("registry is not configured; enable it in %s", o.configManager.ConfigPath())
	}
	return o.store.QueryRuns(registry.Filter{
		Name:   opts.Name,
		Status: opts.Status,
		Limit:  opts.Limit,
	})
}
