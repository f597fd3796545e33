package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/executor"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/invariant"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/jsonvalue"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/logging"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/safety"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/strategy"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/transport"
	"github.com/mcpconform/fuzzer/pkg/telemetry"
)

// Driver wires the fuzzer's collaborators into one session lifecycle
// (spec.md §4.9): construct transport, connect, run the tools and/or
// protocol loops, then tear down in reverse order.
type Driver struct {
	Transport transport.Transport
	Blocker   *safety.CommandBlocker // non-nil only when safe mode installed PATH shims
	Reporter  Reporter
	Logger    logging.Logger
	Telemetry *telemetry.Settings
}

// NewDriver constructs the Transport named by cfg.Protocol and, when
// cfg.SafetyEnabled, a CommandBlocker guarding launcher binaries for the
// lifetime of the session (spec.md §4.7). The stdio transport owns its
// own process.Manager internally and tears it down on Close, so Driver
// itself holds no process handle.
func NewDriver(cfg Config, logger logging.Logger, tele *telemetry.Settings) (*Driver, error) {
	logger = logging.Or(logger)

	var checkRedirect func(req *http.Request, via []*http.Request) error
	if cfg.SafetyEnabled {
		checkRedirect = cfg.Network.CheckRedirect
	}

	blocker, err := safety.NewCommandBlocker(cfg.SafetyEnabled, logger)
	if err != nil {
		return nil, fmt.Errorf("session: install command blocker: %w", err)
	}

	var t transport.Transport
	switch cfg.Protocol {
	case ProtocolStdio:
		env := cfg.Env
		if blocker != nil {
			env = blocker.ChildEnv(cfg.Env)
		}
		t = transport.NewStdio(transport.StdioConfig{
			Command: cfg.Endpoint,
			Args:    cfg.Args,
			Env:     env,
			Logger:  logger,
		})
	case ProtocolSSE, ProtocolStreamableHTTP:
		t = transport.NewStreamable(transport.StreamableConfig{
			URL:           cfg.Endpoint,
			Headers:       cfg.AuthHeaders,
			Logger:        logger,
			CheckRedirect: checkRedirect,
		})
	case ProtocolHTTP, ProtocolHTTPS:
		t = transport.NewHTTP(transport.HTTPConfig{
			URL:           cfg.Endpoint,
			TimeoutMS:     int(cfg.Timeout() / time.Millisecond),
			Headers:       cfg.AuthHeaders,
			Logger:        logger,
			CheckRedirect: checkRedirect,
		})
	default:
		return nil, fmt.Errorf("session: unknown protocol %q", cfg.Protocol)
	}

	return &Driver{Transport: t, Blocker: blocker, Logger: logger, Telemetry: tele}, nil
}

// Run executes the full lifecycle of spec.md §4.9 and returns the
// terminal SessionSummary. ctx cancellation interrupts between cases; a
// case already in flight is allowed to complete or time out.
func (d *Driver) Run(ctx context.Context, cfg Config) (SessionSummary, error) {
	cfg, err := cfg.Resolve()
	if err != nil {
		return SessionSummary{}, model.NewConfigError("config", err.Error())
	}

	reporter := d.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}
	logger := logging.Or(d.Logger)

	if err := d.Transport.Connect(ctx); err != nil {
		return SessionSummary{}, fmt.Errorf("session: connect: %w", err)
	}

	builder := newSummaryBuilder()

	var filter *safety.Filter
	if cfg.SafetyEnabled {
		var sandbox *safety.Sandbox
		if cfg.FSRoot != "" {
			sandbox = safety.NewSandbox(cfg.FSRoot, true)
		}
		filter = safety.NewFilter(sandbox, &cfg.Network)
	}

	checker := invariant.NewChecker()
	exec := executor.New(executor.Config{
		MaxConcurrency:      cfg.MaxConcurrency,
		PerOperationTimeout: cfg.Timeout(),
		Retry: executor.RetryPolicy{
			Count:     cfg.RetryCount,
			BaseDelay: 200 * time.Millisecond,
			Backoff:   2.0,
			Jitter:    0.25,
		},
		Logger:    logger,
		Telemetry: d.Telemetry,
	})

	var tools []model.ToolDescriptor
	if cfg.Mode == strategy.ModeTools || cfg.Mode == strategy.ModeBoth {
		tools, err = d.discoverTools(ctx)
		if err != nil {
			return SessionSummary{}, fmt.Errorf("session: discover tools: %w", err)
		}
	}

	// No result schema source exists yet: ToolDescriptor carries only an
	// input schema, and MethodCatalog only declares request params. Schema
	// violation findings stay dormant until a result schema is wired;
	// every other invariant check in Checker.Check still runs.
	resultSchemas := map[string]*schema.Compiled{}

	mgr := strategy.NewManager(tools, cfg.Mode, cfg.Phase, cfg.RunsPerTool, cfg.Seed)

	var wg sync.WaitGroup
	var mu sync.Mutex
	inFlight := make(chan struct{}, cfg.MaxConcurrency*2)

	for {
		if ctx.Err() != nil {
			break
		}
		tc, ok := mgr.NextCase()
		if !ok {
			break
		}

		inFlight <- struct{}{}
		wg.Add(1)
		go func(tc model.TestCase) {
			defer wg.Done()
			defer func() { <-inFlight }()

			record := d.runCase(ctx, exec, filter, checker, resultSchemas, tc)

			mu.Lock()
			mgr.Record(record)
			mu.Unlock()

			isProtocol := tc.Method != ""
			name := tc.ToolName
			if isProtocol {
				name = tc.Method
			}
			builder.record(isProtocol, name, record)
			reporter.Report(record)
		}(tc)
	}
	wg.Wait()

	if err := d.Transport.Close(); err != nil {
		logger.Logf("session: transport close: %v", err)
	}
	if d.Blocker != nil {
		_ = d.Blocker.Teardown()
	}

	summary := builder.finish()
	reporter.Finish(summary)
	return summary, nil
}

// discoverTools issues tools/list and decodes its result into
// ToolDescriptors (spec.md §4.9 step 3).
func (d *Driver) discoverTools(ctx context.Context) ([]model.ToolDescriptor, error) {
	id := model.StringID(uuid.New().String())
	req := model.Request{ID: &id, Method: "tools/list", Params: json.RawMessage(`{}`)}

	resp, err := d.Transport.SendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tools/list failed: %s", resp.Error.Message)
	}

	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("tools/list: decode result: %w", err)
	}

	tools := make([]model.ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		s, err := schema.Parse(t.InputSchema)
		if err != nil {
			s = &schemaEmpty
		}
		tools = append(tools, model.ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: s})
	}
	return tools, nil
}

var schemaEmpty = schema.JsonSchema{}

// mockBlockedResponse synthesizes the {id, result: {blocked, reason}}
// response spec.md §4.6 requires for a case the safety filter blocked
// before dispatch, so a blocked RunRecord still carries a Response a
// reporter or invariant-style consumer can inspect like any other.
func mockBlockedResponse(id model.RequestID, reason string) *model.Response {
	result, _ := json.Marshal(struct {
		Blocked bool   `json:"blocked"`
		Reason  string `json:"reason"`
	}{Blocked: true, Reason: reason})
	return &model.Response{ID: id, Result: result}
}

// runCase dispatches one TestCase through the safety filter, the
// executor, and the invariant checker, producing its RunRecord.
func (d *Driver) runCase(ctx context.Context, exec *executor.Executor, filter *safety.Filter, checker *invariant.Checker, resultSchemas map[string]*schema.Compiled, tc model.TestCase) model.RunRecord {
	start := time.Now()
	method := tc.Method
	if method == "" {
		method = "tools/call"
	}

	var args jsonvalue.Value
	_ = json.Unmarshal(tc.Args, &args)

	id := model.StringID(uuid.New().String())

	if filter != nil {
		decision := filter.Check(method, args)
		switch decision.Kind {
		case safety.Blocked:
			return model.RunRecord{
				Case:     tc,
				Outcome:  model.Outcome{Kind: model.OutcomeBlocked, BlockedReason: decision.Reason, Response: mockBlockedResponse(id, decision.Reason)},
				Duration: time.Since(start),
			}
		case safety.Sanitized:
			sanitized, _ := json.Marshal(decision.Args)
			tc.Args = sanitized
		}
	}

	params := tc.Args
	if tc.Method == "" {
		callArgs := tc.Args
		if len(callArgs) == 0 {
			callArgs = json.RawMessage(`{}`)
		}
		params, _ = json.Marshal(struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}{Name: tc.ToolName, Arguments: callArgs})
	}
	req := model.Request{ID: &id, Method: method, Params: params}

	outcome := exec.Execute(ctx, func(ctx context.Context) (model.Outcome, error) {
		resp, err := d.Transport.SendRequest(ctx, req)
		if err != nil {
			if te, ok := err.(*model.TransportError); ok {
				kind := model.OutcomeTransportError
				if te.Kind == model.TransportTimeout {
					kind = model.OutcomeTimeout
				}
				return model.Outcome{Kind: kind, TransportKind: te.Kind}, nil
			}
			return model.Outcome{Kind: model.OutcomeTransportError, TransportKind: model.TransportRetryable}, nil
		}
		if resp.IsError() {
			return model.Outcome{Kind: model.OutcomeProtocolError, ProtoCode: resp.Error.Code, ProtoMessage: resp.Error.Message, Response: &resp}, nil
		}
		return model.Outcome{Kind: model.OutcomeSuccess, Response: &resp}, nil
	})

	var findings []model.Finding
	if outcome.Response != nil {
		findings = checker.Check(*outcome.Response, id, resultSchemas[method])
		if len(findings) > 0 {
			outcome.Kind = model.OutcomeInvariantViolation
		}
	}

	return model.RunRecord{Case: tc, Outcome: outcome, Duration: time.Since(start), InvariantFindings: findings}
}
