package agents

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finsight/internal/adapters/config"
	"finsight/internal/domain/analysis"
	"finsight/internal/domain/task"
	"finsight/internal/metrics"
	"finsight/internal/providers"
	"finsight/internal/skills"
	"finsight/internal/tools"
	"finsight/internal/tools/shared"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// maxRequestedTools bounds follow-up tool calls per model round
const maxRequestedTools = 4

// ToolInvoker dispatches tools by name
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, raw map[string]interface{}) (tools.Result, error)
	List() []string
}

// SecretStore decrypts provider API keys
type SecretStore interface {
	DecryptAPIKey(ctx context.Context, providerID string) (string, error)
}

// Result is the outcome of one orchestrator run
type Result struct {
	RunID      string
	Skill      skills.ID
	Request    analysis.Request
	Input      analysis.Input
	Output     analysis.Output
	States     []State
	Warnings   []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Degraded reports whether the run ended without a model answer
func (r *Result) Degraded() bool {
	return len(r.States) > 0 && r.States[len(r.States)-1] == StateDegradedDone
}

// Orchestrator runs skills: gather tools, compose, call the model, validate
type Orchestrator struct {
	router    *skills.Router
	tools     ToolInvoker
	providers *providers.Registry
	secrets   SecretStore
	snapshots config.SnapshotSource
	cfg       config.AgentConfig
	log       *logger.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(
	router *skills.Router,
	toolInvoker ToolInvoker,
	registry *providers.Registry,
	secrets SecretStore,
	snapshots config.SnapshotSource,
	cfg config.AgentConfig,
) *Orchestrator {
	return &Orchestrator{
		router:    router,
		tools:     toolInvoker,
		providers: registry,
		secrets:   secrets,
		snapshots: snapshots,
		cfg:       cfg,
		log:       logger.Get().With("component", "orchestrator"),
	}
}

// Run executes one analysis. It returns an error only for unknown skills or providers,
// invalid requests and observed cancellation; every other failure degrades the output.
func (o *Orchestrator) Run(ctx context.Context, req analysis.Request, token *task.CancelToken) (*Result, error) {
	tr := &trace{}
	tr.enter(StateInit)
	started := time.Now().UTC()
	runID := uuid.NewString()

	req.Symbol = strings.TrimSpace(req.Symbol)
	snap := o.snapshot(ctx, tr)

	skill, err := o.resolveSkill(snap, req)
	if err != nil {
		return nil, err
	}
	if err := skill.Validate(req); err != nil {
		return nil, err
	}
	if req.Provider != "" {
		if _, ok := o.providers.Lookup(providers.KindAnalysis, req.Provider); !ok {
			return nil, errors.NotFound(string(providers.KindAnalysis)+" provider", req.Provider)
		}
	}

	log := o.log.With("run_id", runID, "skill", skill.ID, "symbol", req.Symbol)
	ctx = shared.WithInvocation(ctx, shared.Invocation{
		RunID:    runID,
		Skill:    string(skill.ID),
		Symbol:   req.Symbol,
		Snapshot: snap,
	})

	in := analysis.Input{
		Symbol:     req.Symbol,
		Skill:      string(skill.ID),
		Context:    req.Context,
		Provenance: make(map[string]string),
	}
	if err := checkpoint(ctx, token); err != nil {
		return nil, err
	}

	tr.enter(StateGathering)
	for _, group := range skill.Groups(req) {
		calls := make([]toolCall, 0, len(group))
		for _, step := range group {
			calls = append(calls, toolCall{name: step.Tool, args: step.Args(req)})
		}
		if err := o.gather(ctx, token, tr, skill, &in, calls); err != nil {
			return nil, err
		}
	}

	out, final, err := o.reason(ctx, token, tr, log, snap, skill, req, &in)
	if err != nil {
		return nil, err
	}

	if snap.EvidenceRequired && !in.HasEvidence() {
		out.Confidence = math.Min(out.Confidence, analysis.LowConfidence)
		tr.warn(WarnEvidenceMissing)
	}
	if !out.Sentiment.Valid() {
		out.Sentiment = analysis.SentimentNeutral
	}
	out.Confidence = analysis.ClampConfidence(out.Confidence)
	out.Symbol = req.Symbol
	out.Skill = string(skill.ID)
	if out.SchemaVersion == "" {
		out.SchemaVersion = skill.SchemaVersion
	}

	tr.enter(final)
	states, warnings := tr.snapshot()
	out.Warnings = warnings
	out.States = stateNames(states)
	metrics.RecordAgentRun(string(skill.ID), string(final))

	log.Infow("Analysis run finished",
		"state", final,
		"source", out.Source,
		"produced_by", out.ProducedBy,
		"warnings", len(warnings),
		"duration", time.Since(started),
	)
	return &Result{
		RunID:      runID,
		Skill:      skill.ID,
		Request:    req,
		Input:      in,
		Output:     out,
		States:     states,
		Warnings:   warnings,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}, nil
}

// reason runs the compose, model call and validate loop. Follow-up tool requests
// re-enter gathering at most MaxToolIterations times.
func (o *Orchestrator) reason(
	ctx context.Context,
	token *task.CancelToken,
	tr *trace,
	log *logger.Logger,
	snap config.Snapshot,
	skill skills.Skill,
	req analysis.Request,
	in *analysis.Input,
) (analysis.Output, State, error) {
	degrade := func(reason string) (analysis.Output, State, error) {
		tr.warn(reason)
		_, warnings := tr.snapshot()
		log.Warnw("Analysis degraded to rule-based output", "reason", reason)
		return RuleBasedOutput(*in, warnings), StateDegradedDone, nil
	}
	toolNames := o.tools.List()

	for iteration := 0; ; iteration++ {
		if err := checkpoint(ctx, token); err != nil {
			return analysis.Output{}, "", err
		}
		tr.enter(StateComposing)
		final := iteration >= o.cfg.MaxToolIterations
		_, warnings := tr.snapshot()
		prompt, err := composePrompt(skill, toolNames, req, *in, warnings, iteration, final)
		if err != nil {
			return degrade("compose_failed: " + err.Error())
		}

		if err := checkpoint(ctx, token); err != nil {
			return analysis.Output{}, "", err
		}
		tr.enter(StateModelCall)
		raw, producedBy, err := o.callModel(ctx, log, snap, req, prompt)
		if err != nil {
			if errors.Is(err, errors.ErrCancelled) {
				return analysis.Output{}, "", err
			}
			return degrade("model_call_failed: " + err.Error())
		}

		if err := checkpoint(ctx, token); err != nil {
			return analysis.Output{}, "", err
		}
		tr.enter(StateValidating)
		reply, err := parseReply(raw)
		if err != nil {
			return degrade("model_reply_invalid: " + err.Error())
		}

		if len(reply.ToolRequests) > 0 {
			if !final {
				tr.enter(StateGathering)
				if err := o.gather(ctx, token, tr, skill, in, o.requestedCalls(tr, reply.ToolRequests)); err != nil {
					return analysis.Output{}, "", err
				}
				continue
			}
			tr.warn(WarnToolIterations)
		}

		out, backfilled := coerceOutput(reply, RuleBasedOutput(*in, nil).Summary)
		tr.warn(backfilled...)
		out.ProducedBy = producedBy
		return out, StateDone, nil
	}
}

type toolCall struct {
	name string
	args map[string]interface{}
}

// gather runs one group of tool calls concurrently and merges results in call order.
// Tool failures become degraded results; only cancellation aborts.
func (o *Orchestrator) gather(
	ctx context.Context,
	token *task.CancelToken,
	tr *trace,
	skill skills.Skill,
	in *analysis.Input,
	calls []toolCall,
) error {
	results := make([]tools.Result, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			if err := checkpoint(gctx, token); err != nil {
				return err
			}
			res, err := o.tools.Invoke(gctx, call.name, call.args)
			if err != nil {
				res = tools.Result{
					Tool:     call.name,
					Source:   "unavailable",
					Degraded: true,
					Warnings: []string{call.name + ": " + err.Error()},
				}
			}
			tr.warn(res.Warnings...)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		skill.Merge(in, res)
	}
	return nil
}

func (o *Orchestrator) requestedCalls(tr *trace, requests []ToolRequest) []toolCall {
	known := make(map[string]bool)
	for _, name := range o.tools.List() {
		known[name] = true
	}

	calls := make([]toolCall, 0, len(requests))
	for _, r := range requests {
		name := strings.TrimSpace(r.Tool)
		if !known[name] {
			tr.warn("tool_request_rejected: " + name)
			continue
		}
		if len(calls) == maxRequestedTools {
			tr.warn("tool_request_dropped: " + name)
			continue
		}
		args := r.Args
		if args == nil {
			args = map[string]interface{}{}
		}
		calls = append(calls, toolCall{name: name, args: args})
	}
	return calls
}

// callModel resolves the analyzer, decrypts its key once and retries transient failures
func (o *Orchestrator) callModel(
	ctx context.Context,
	log *logger.Logger,
	snap config.Snapshot,
	req analysis.Request,
	prompt analysis.Prompt,
) (string, string, error) {
	providerID := req.Provider
	if providerID == "" {
		providerID = snap.DefaultAnalysisProvider
	}
	model := req.Model
	if model == "" {
		model = snap.DefaultAnalysisModel
	}
	if !snap.AnalysisEnabled(providerID) {
		return "", "", errors.Wrapf(errors.ErrUnavailable, "analysis provider %s is disabled", providerID)
	}

	analyzer, err := o.providers.ResolveAnalyzer(providerID)
	if err != nil {
		return "", "", err
	}

	var apiKey string
	if d, ok := o.providers.Lookup(providers.KindAnalysis, providerID); ok && d.AuthMode == providers.AuthAPIKey {
		if o.secrets == nil {
			return "", "", errors.Wrapf(errors.ErrSecretStorage, "no secret store for %s", providerID)
		}
		apiKey, err = o.secrets.DecryptAPIKey(ctx, providerID)
		if err != nil {
			return "", "", errors.Wrapf(errors.ErrSecretStorage, "decrypt key for %s: %v", providerID, err)
		}
	}

	attempts := 1 + o.cfg.MaxRetries()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, o.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
				return "", "", errors.Wrap(errors.ErrCancelled, err.Error())
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if o.cfg.ModelTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.ModelTimeout)
		}
		start := time.Now()
		raw, err := analyzer.Analyze(callCtx, prompt, model, apiKey)
		cancel()
		metrics.RecordModelCall(providerID, model, time.Since(start), err)

		if err == nil {
			return raw, providerID + "/" + model, nil
		}
		lastErr = errors.NewProviderError(providerID, "analyze", err)
		if ctx.Err() != nil || !errors.IsTransient(err) {
			break
		}
		log.Warnw("Model call failed, retrying", "provider", providerID, "model", model, "attempt", attempt+1, "error", err)
	}
	return "", "", lastErr
}

func (o *Orchestrator) snapshot(ctx context.Context, tr *trace) config.Snapshot {
	if o.snapshots != nil {
		snap, err := o.snapshots.Snapshot(ctx)
		if err == nil {
			return snap
		}
		tr.warn("config_snapshot_unavailable: " + err.Error())
		o.log.Warnw("Using default runtime settings", "error", err)
	}
	return config.NewSnapshot(config.DefaultRuntime())
}

func (o *Orchestrator) resolveSkill(snap config.Snapshot, req analysis.Request) (skills.Skill, error) {
	skillID := req.SkillID
	if skillID == "" && req.Mode == "" {
		skillID = snap.DefaultSkill
	}
	return o.router.Resolve(skillID, req.Mode)
}

// checkpoint observes the cancel token and the context between states and tool calls
func checkpoint(ctx context.Context, token *task.CancelToken) error {
	if err := token.Check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCancelled, err.Error())
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
