package agents

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/adapters/config"
	"finsight/internal/domain/analysis"
	"finsight/internal/domain/market_data"
	"finsight/internal/domain/task"
	"finsight/internal/providers"
	"finsight/internal/skills"
	"finsight/internal/tools"
	"finsight/pkg/errors"
)

type modelStep struct {
	text string
	err  error
}

type scriptedAnalyzer struct {
	mu    sync.Mutex
	steps []modelStep
	calls int
	keys  []string
}

func (a *scriptedAnalyzer) Name() string { return "fake" }

func (a *scriptedAnalyzer) Analyze(_ context.Context, _ analysis.Prompt, _ string, apiKey string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	step := a.steps[min(a.calls, len(a.steps)-1)]
	a.calls++
	a.keys = append(a.keys, apiKey)
	return step.text, step.err
}

type countingSecrets struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSecrets) DecryptAPIKey(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "sk-secret-value", nil
}

type fixture struct {
	orch      *Orchestrator
	analyzer  *scriptedAnalyzer
	secrets   *countingSecrets
	toolCalls map[string]int
	mu        *sync.Mutex
}

const validReply = `{"summary":"Uptrend intact","sentiment":"bullish","confidence":0.72,
"key_levels":{"support":[180],"resistance":[200]},"risks":["earnings"],"action_items":["watch 200"]}`

func newFixture(t *testing.T, rt config.Runtime, steps ...modelStep) *fixture {
	t.Helper()
	f := &fixture{
		analyzer:  &scriptedAnalyzer{steps: steps},
		secrets:   &countingSecrets{},
		toolCalls: map[string]int{},
		mu:        &sync.Mutex{},
	}

	count := func(name string) {
		f.mu.Lock()
		f.toolCalls[name]++
		f.mu.Unlock()
	}
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.Spec{
		Name:   tools.GetQuote,
		Params: []tools.Param{{Name: "symbol", Type: tools.TypeString, Required: true}},
		Handler: func(_ context.Context, args tools.Args) (tools.Result, error) {
			count(tools.GetQuote)
			return tools.Result{
				Source: "yahoo",
				Data: market_data.QuoteResult{
					Quote:     market_data.Quote{Symbol: args.String("symbol"), Price: 190, ChangePercent: 1.2},
					Source:    "yahoo",
					Available: true,
				},
			}, nil
		},
	}))
	require.NoError(t, reg.Register(tools.Spec{
		Name: tools.GetFundFlow,
		Handler: func(context.Context, tools.Args) (tools.Result, error) {
			count(tools.GetFundFlow)
			return tools.Result{}, errors.ErrUnavailable
		},
	}))

	router, err := skills.NewRouter(skills.Skill{
		ID:             skills.StockAnalysis,
		RequiresSymbol: true,
		Steps: []skills.Step{
			{Tool: tools.GetQuote, Args: func(req analysis.Request) map[string]interface{} {
				return map[string]interface{}{"symbol": req.Symbol}
			}},
			{Tool: tools.GetFundFlow, Args: func(analysis.Request) map[string]interface{} {
				return map[string]interface{}{}
			}},
		},
	})
	require.NoError(t, err)

	preg := providers.NewRegistry()
	preg.Register(providers.KindAnalysis, "fake", providers.Singleton(f.analyzer), providers.WithAuth(providers.AuthAPIKey))

	f.orch = NewOrchestrator(router, reg, preg, f.secrets, config.NewStaticSnapshotSource(rt), config.AgentConfig{
		MaxToolIterations:  2,
		ProviderMaxRetries: 1,
		RetryBackoff:       time.Millisecond,
		ModelTimeout:       time.Second,
	})
	return f
}

func fakeRuntime() config.Runtime {
	rt := config.DefaultRuntime()
	rt.AnalysisProviders = []string{"fake"}
	rt.DefaultAnalysisProvider = "fake"
	rt.DefaultAnalysisModel = "m1"
	return rt
}

func stockRequest() analysis.Request {
	return analysis.Request{Symbol: "AAPL", SkillID: "stock_analysis"}
}

func TestRun_ModelAnswerReachesDone(t *testing.T) {
	f := newFixture(t, fakeRuntime(), modelStep{text: "```json\n" + validReply + "\n```"})

	res, err := f.orch.Run(context.Background(), stockRequest(), task.NewCancelToken())
	require.NoError(t, err)

	assert.Equal(t, []State{StateInit, StateGathering, StateComposing, StateModelCall, StateValidating, StateDone}, res.States)
	assert.False(t, res.Degraded())
	out := res.Output
	assert.Equal(t, analysis.SourceModel, out.Source)
	assert.Equal(t, "fake/m1", out.ProducedBy)
	assert.Equal(t, analysis.SentimentPositive, out.Sentiment)
	assert.InDelta(t, 0.72, out.Confidence, 1e-9)
	assert.Equal(t, []float64{180}, out.KeyLevels.Support)
	assert.Equal(t, "AAPL", out.Symbol)

	// the failing tool only contributes a warning
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], tools.GetFundFlow)
	assert.Equal(t, "unavailable", res.Input.Provenance[tools.GetFundFlow])
	assert.Equal(t, "yahoo", res.Input.Provenance[tools.GetQuote])
	assert.Equal(t, []string{"sk-secret-value"}, f.analyzer.keys)
}

func TestRun_ProviderFailureDegrades(t *testing.T) {
	f := newFixture(t, fakeRuntime(), modelStep{err: errors.New("401 unauthorized")})

	res, err := f.orch.Run(context.Background(), stockRequest(), nil)
	require.NoError(t, err)

	assert.True(t, res.Degraded())
	assert.Equal(t, StateDegradedDone, res.States[len(res.States)-1])
	out := res.Output
	assert.Equal(t, analysis.SourceRuleBased, out.Source)
	assert.True(t, out.Sentiment.Valid())
	assert.GreaterOrEqual(t, out.Confidence, 0.0)
	assert.LessOrEqual(t, out.Confidence, analysis.LowConfidence)
	assert.NotEmpty(t, out.Summary)
	assert.Equal(t, 1, f.analyzer.calls, "non-transient failures are not retried")
}

func TestRun_TransientFailureRetriesWithOneDecrypt(t *testing.T) {
	f := newFixture(t, fakeRuntime(),
		modelStep{err: errors.ErrTimeout},
		modelStep{text: validReply},
	)

	res, err := f.orch.Run(context.Background(), stockRequest(), nil)
	require.NoError(t, err)
	assert.False(t, res.Degraded())
	assert.Equal(t, 2, f.analyzer.calls)
	assert.Equal(t, 1, f.secrets.calls)
}

func TestRun_RetriesAreBounded(t *testing.T) {
	f := newFixture(t, fakeRuntime(), modelStep{err: errors.ErrTimeout})

	res, err := f.orch.Run(context.Background(), stockRequest(), nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Equal(t, 2, f.analyzer.calls)
}

func TestRun_SecretFailureDegradesWithoutLeakingKey(t *testing.T) {
	f := newFixture(t, fakeRuntime(), modelStep{text: validReply})
	f.secrets.err = errors.New("no key stored")

	res, err := f.orch.Run(context.Background(), stockRequest(), nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Equal(t, 0, f.analyzer.calls)

	found := false
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "sk-secret-value")
		if strings.Contains(w, "model_call_failed") && strings.Contains(w, "secret") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", res.Warnings)
}

func TestRun_ToolRequestLoopIsBounded(t *testing.T) {
	f := newFixture(t, fakeRuntime(),
		modelStep{text: `{"tool_requests":[{"tool":"get_quote","args":{"symbol":"MSFT"}},{"tool":"rm_rf"}]}`},
	)

	res, err := f.orch.Run(context.Background(), stockRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.States[len(res.States)-1])
	assert.Equal(t, 3, f.analyzer.calls, "one initial call plus MaxToolIterations follow-ups")
	assert.Equal(t, 3, f.toolCalls[tools.GetQuote])
	assert.Contains(t, res.Warnings, WarnToolIterations)
	assert.Contains(t, res.Warnings, "tool_request_rejected: rm_rf")
	assert.Contains(t, res.Warnings, WarnSummaryBackfilled)
	assert.LessOrEqual(t, res.Output.Confidence, analysis.LowConfidence)
}

func TestRun_BackfillsMissingFields(t *testing.T) {
	f := newFixture(t, fakeRuntime(), modelStep{text: `{"summary":"Flat","confidence":"85%"}`})

	res, err := f.orch.Run(context.Background(), stockRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.States[len(res.States)-1])
	assert.Equal(t, analysis.SentimentNeutral, res.Output.Sentiment)
	assert.LessOrEqual(t, res.Output.Confidence, analysis.LowConfidence)
	assert.Contains(t, res.Warnings, WarnSentimentBackfilled)
}

func TestRun_MalformedReplyDegrades(t *testing.T) {
	f := newFixture(t, fakeRuntime(), modelStep{text: "I think the stock looks fine"})

	res, err := f.orch.Run(context.Background(), stockRequest(), nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Contains(t, res.States, StateValidating)
}

func TestRun_EvidenceGuardrail(t *testing.T) {
	rt := fakeRuntime()
	rt.EvidenceRequired = true
	f := newFixture(t, rt, modelStep{text: validReply})
	// unregister evidence by asking for a skill whose tools all fail
	f.orch.router, _ = skills.NewRouter(skills.Skill{
		ID: skills.NewsDigest,
		Steps: []skills.Step{{Tool: tools.GetFundFlow, Args: func(analysis.Request) map[string]interface{} {
			return map[string]interface{}{}
		}}},
	})

	res, err := f.orch.Run(context.Background(), analysis.Request{SkillID: "news_digest", Query: "apple"}, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Output.Confidence, analysis.LowConfidence)
	assert.Contains(t, res.Warnings, WarnEvidenceMissing)
}

func TestRun_CancelledBeforeFirstCheckpoint(t *testing.T) {
	f := newFixture(t, fakeRuntime(), modelStep{text: validReply})
	token := task.NewCancelToken()
	token.Cancel()

	_, err := f.orch.Run(context.Background(), stockRequest(), token)
	assert.ErrorIs(t, err, errors.ErrCancelled)
	assert.Equal(t, 0, f.toolCalls[tools.GetQuote])
	assert.Equal(t, 0, f.analyzer.calls)
}

func TestRun_BoundaryErrorsPropagate(t *testing.T) {
	f := newFixture(t, fakeRuntime(), modelStep{text: validReply})

	_, err := f.orch.Run(context.Background(), analysis.Request{SkillID: "unknown"}, nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = f.orch.Run(context.Background(), analysis.Request{SkillID: "stock_analysis"}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	req := stockRequest()
	req.Provider = "claude"
	_, err = f.orch.Run(context.Background(), req, nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRun_DisabledDefaultProviderDegrades(t *testing.T) {
	rt := fakeRuntime()
	rt.AnalysisProviders = []string{"openai"}
	f := newFixture(t, rt, modelStep{text: validReply})

	res, err := f.orch.Run(context.Background(), stockRequest(), nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Equal(t, 0, f.secrets.calls)
}
