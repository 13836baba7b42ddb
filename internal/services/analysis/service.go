package analysis

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"finsight/internal/adapters/config"
	"finsight/internal/agents"
	"finsight/internal/domain/analysis"
	"finsight/internal/domain/task"
	"finsight/internal/providers"
	"finsight/internal/skills"
	"finsight/internal/tasks"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// Legacy modes used when a request names neither a skill nor a mode
const (
	DefaultReportMode   = "report"
	DefaultAnalysisMode = "stock"
)

// Job kinds for runs that do not go through a task manager
const KindSync = "sync"

// Runner executes one analysis run
type Runner interface {
	Run(ctx context.Context, req analysis.Request, token *task.CancelToken) (*agents.Result, error)
}

// ReportRenderer turns a finished run into Markdown
type ReportRenderer interface {
	Render(res *agents.Result) (string, error)
}

// JobResult is stored on a SUCCEEDED task record
type JobResult struct {
	RunID    string          `json:"run_id"`
	Skill    string          `json:"skill"`
	Output   analysis.Output `json:"output"`
	Report   string          `json:"report,omitempty"`
	Degraded bool            `json:"degraded"`
}

// Service is the entry point for report and analysis jobs
type Service struct {
	runner    Runner
	router    *skills.Router
	providers *providers.Registry
	snapshots config.SnapshotSource
	reports   *tasks.Manager
	analyses  *tasks.Manager
	runs      analysis.RunRepository
	renderer  ReportRenderer
	validate  *validator.Validate
	log       *logger.Logger
}

// Deps groups the collaborators of Service. Runs and Renderer are optional.
type Deps struct {
	Runner    Runner
	Router    *skills.Router
	Providers *providers.Registry
	Snapshots config.SnapshotSource
	Reports   *tasks.Manager
	Analyses  *tasks.Manager
	Runs      analysis.RunRepository
	Renderer  ReportRenderer
}

// NewService creates the facade
func NewService(deps Deps, log *logger.Logger) (*Service, error) {
	if deps.Runner == nil || deps.Router == nil || deps.Reports == nil || deps.Analyses == nil {
		return nil, errors.NewValidationError("deps", "runner, router and both task managers are required", nil)
	}
	if deps.Snapshots == nil {
		deps.Snapshots = config.NewStaticSnapshotSource(config.DefaultRuntime())
	}
	return &Service{
		runner:    deps.Runner,
		router:    deps.Router,
		providers: deps.Providers,
		snapshots: deps.Snapshots,
		reports:   deps.Reports,
		analyses:  deps.Analyses,
		runs:      deps.Runs,
		renderer:  deps.Renderer,
		validate:  validator.New(),
		log:       log,
	}, nil
}

// SubmitReportJob queues a report run and returns its task id
func (s *Service) SubmitReportJob(ctx context.Context, req analysis.Request) (string, error) {
	if req.SkillID == "" && req.Mode == "" {
		req.Mode = DefaultReportMode
	}
	return s.submit(ctx, s.reports, req)
}

// SubmitAnalysisJob queues an analysis of one symbol and returns its task id
func (s *Service) SubmitAnalysisJob(ctx context.Context, symbol string, req analysis.Request) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", errors.NewValidationError("symbol", "required", symbol)
	}
	req.Symbol = symbol
	if req.SkillID == "" && req.Mode == "" {
		req.Mode = DefaultAnalysisMode
	}
	return s.submit(ctx, s.analyses, req)
}

func (s *Service) submit(ctx context.Context, mgr *tasks.Manager, req analysis.Request) (string, error) {
	skill, err := s.preflight(ctx, req)
	if err != nil {
		return "", err
	}

	withReport := mgr == s.reports
	id, err := mgr.Submit(string(skill.ID), func(ctx context.Context, token *task.CancelToken) (interface{}, error) {
		res, err := s.runner.Run(ctx, req, token)
		if err != nil {
			return nil, err
		}
		return s.complete(ctx, mgr.Family(), res, withReport), nil
	})
	if err != nil {
		return "", err
	}

	s.log.Infow("Job submitted",
		"task_id", id,
		"family", mgr.Family(),
		"skill", skill.ID,
		"symbol", req.Symbol,
	)
	return id, nil
}

// RunSynchronously runs the same pipeline and blocks until it finishes.
// Cancelling ctx is observed at the orchestrator checkpoints.
func (s *Service) RunSynchronously(ctx context.Context, req analysis.Request) (*analysis.Output, error) {
	req.Symbol = strings.TrimSpace(req.Symbol)
	if req.SkillID == "" && req.Mode == "" && req.Symbol != "" {
		req.Mode = DefaultAnalysisMode
	}
	if _, err := s.preflight(ctx, req); err != nil {
		return nil, err
	}

	res, err := s.runner.Run(ctx, req, task.NewCancelToken())
	if err != nil {
		return nil, err
	}
	out := s.complete(ctx, KindSync, res, false)
	return &out.Output, nil
}

// preflight rejects requests the orchestrator would refuse, before a task is created
func (s *Service) preflight(ctx context.Context, req analysis.Request) (skills.Skill, error) {
	if err := s.validate.Struct(req); err != nil {
		return skills.Skill{}, validationError(err)
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.From.After(req.To) {
		return skills.Skill{}, errors.NewValidationError("from", "must not be after to", req.From)
	}

	skillID, mode := req.SkillID, req.Mode
	if skillID == "" && mode == "" {
		snap, err := s.snapshots.Snapshot(ctx)
		if err != nil {
			snap = config.NewSnapshot(config.DefaultRuntime())
		}
		skillID = snap.DefaultSkill
	}
	skill, err := s.router.Resolve(skillID, mode)
	if err != nil {
		return skills.Skill{}, err
	}
	if err := skill.Validate(req); err != nil {
		return skills.Skill{}, err
	}

	if req.Provider != "" && s.providers != nil {
		if _, ok := s.providers.Lookup(providers.KindAnalysis, req.Provider); !ok {
			return skills.Skill{}, errors.NotFound(string(providers.KindAnalysis)+" provider", req.Provider)
		}
	}
	return skill, nil
}

// complete renders the optional report and persists the run.
// Neither step can fail the job.
func (s *Service) complete(ctx context.Context, kind string, res *agents.Result, withReport bool) JobResult {
	out := JobResult{
		RunID:    res.RunID,
		Skill:    string(res.Skill),
		Output:   res.Output,
		Degraded: res.Degraded(),
	}
	if withReport && s.renderer != nil {
		report, err := s.renderer.Render(res)
		if err != nil {
			s.log.Warnw("Report rendering failed", "run_id", res.RunID, "error", err)
			out.Output.Warnings = append(out.Output.Warnings, "report_render_failed: "+err.Error())
		} else {
			out.Report = report
		}
	}
	s.saveRun(ctx, kind, res, out)
	return out
}

func (s *Service) saveRun(ctx context.Context, kind string, res *agents.Result, out JobResult) {
	if s.runs == nil {
		return
	}
	runID, err := uuid.Parse(res.RunID)
	if err != nil {
		runID = uuid.New()
	}
	run := &analysis.Run{
		ID:           runID,
		TaskID:       tasks.IDFromContext(ctx),
		Kind:         kind,
		Skill:        string(res.Skill),
		Symbol:       res.Request.Symbol,
		InputSummary: InputSummary(res.Input),
		Output:       out.Output,
		Warnings:     out.Output.Warnings,
		Report:       out.Report,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
	}
	if err := s.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		s.log.Errorw("Failed to persist run", "run_id", res.RunID, "task_id", run.TaskID, "error", err)
	}
}

// GetTask looks a task up in both job families
func (s *Service) GetTask(id string) (task.Record, error) {
	mgr, err := s.owner(id)
	if err != nil {
		return task.Record{}, err
	}
	return mgr.Get(id)
}

// ListTasks returns the tasks of both families, newest first
func (s *Service) ListTasks() []task.Record {
	records := append(s.reports.List(), s.analyses.List()...)
	tasks.SortNewestFirst(records)
	return records
}

// CancelTask requests cooperative cancellation
func (s *Service) CancelTask(id string) error {
	mgr, err := s.owner(id)
	if err != nil {
		return err
	}
	return mgr.Cancel(id)
}

// CancelAll cancels every live task and returns how many were flagged
func (s *Service) CancelAll() int {
	return s.reports.CancelAll() + s.analyses.CancelAll()
}

// Shutdown stops accepting jobs and waits for running ones
func (s *Service) Shutdown(ctx context.Context) error {
	var merr errors.MultiError
	for _, mgr := range []*tasks.Manager{s.reports, s.analyses} {
		if err := mgr.Shutdown(ctx); err != nil {
			merr.Add(errors.Wrapf(err, "shutdown %s tasks", mgr.Family()))
		}
	}
	return merr.ToError()
}

// LoadRun returns a persisted run
func (s *Service) LoadRun(ctx context.Context, id uuid.UUID) (*analysis.Run, error) {
	if s.runs == nil {
		return nil, errors.Wrap(errors.ErrBackendAbsent, "run repository not configured")
	}
	return s.runs.LoadRun(ctx, id)
}

// ListRuns lists persisted runs
func (s *Service) ListRuns(ctx context.Context, filter analysis.RunFilter) ([]*analysis.Run, error) {
	if s.runs == nil {
		return nil, errors.Wrap(errors.ErrBackendAbsent, "run repository not configured")
	}
	return s.runs.ListRuns(ctx, filter)
}

func (s *Service) owner(id string) (*tasks.Manager, error) {
	for _, mgr := range []*tasks.Manager{s.reports, s.analyses} {
		if mgr.Has(id) {
			return mgr, nil
		}
	}
	return nil, errors.NotFound("task", id)
}

// InputSummary is a compact, deterministic description of what was gathered
func InputSummary(in analysis.Input) string {
	parts := make([]string, 0, len(in.Provenance)+1)
	if in.Symbol != "" {
		parts = append(parts, "symbol="+in.Symbol)
	}
	tools := make([]string, 0, len(in.Provenance))
	for tool := range in.Provenance {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	for _, tool := range tools {
		parts = append(parts, tool+"="+in.Provenance[tool])
	}
	return strings.Join(parts, " ")
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.NewValidationError(strings.ToLower(fe.Field()), "failed "+fe.Tag()+" check", fe.Value())
	}
	return errors.Wrap(errors.ErrInvalidInput, err.Error())
}
