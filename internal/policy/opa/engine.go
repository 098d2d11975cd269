package opa

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

// LimitQuery is the rule every policy directory must define
const LimitQuery = "data.limitliner.limits.decision"

// Config holds OPA engine configuration
type Config struct {
	PolicyDir string
}

// Engine wraps OPA rego engine for policy evaluation
type Engine struct {
	policyDir string
	logger    zerolog.Logger

	mu         sync.RWMutex
	limitQuery rego.PreparedEvalQuery
	sources    map[string]string // file -> raw module
}

// NewEngine creates a new OPA engine
func NewEngine(config Config, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policyDir: config.PolicyDir,
		logger:    logger.With().Str("component", "opa").Logger(),
	}

	sources, err := e.loadPolicies()
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	query, err := e.prepareLimitQuery(sources)
	if err != nil {
		return nil, err
	}

	e.sources = sources
	e.limitQuery = query

	e.logger.Info().Str("policy_dir", config.PolicyDir).Msg("OPA engine initialized")

	return e, nil
}

// loadPolicies loads and parses all .rego files from the policy directory
func (e *Engine) loadPolicies() (map[string]string, error) {
	files, err := filepath.Glob(filepath.Join(e.policyDir, "*.rego"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob policy files: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found in %s", e.policyDir)
	}

	e.logger.Info().Int("count", len(files)).Msg("Loading policy files")

	sources := make(map[string]string, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", file, err)
		}

		// Parse early so a broken file is reported by name
		module, err := ast.ParseModule(file, string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy file %s: %w", file, err)
		}

		sources[file] = string(content)
		e.logger.Debug().Str("file", file).Str("package", module.Package.Path.String()).Msg("Loaded policy module")
	}

	return sources, nil
}

// prepareLimitQuery prepares the limit decision query
func (e *Engine) prepareLimitQuery(sources map[string]string) (rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){rego.Query(LimitQuery)}
	for file, content := range sources {
		opts = append(opts, rego.Module(file, content))
	}

	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to prepare limit query: %w", err)
	}

	e.logger.Debug().Msg("Limit query prepared")
	return query, nil
}

// LimitDecision represents a limit policy decision
type LimitDecision struct {
	LimitMillis int64  `json:"limit_ms"`
	Notify      bool   `json:"notify"`
	Reason      string `json:"reason,omitempty"`
}

// EvaluateLimit evaluates the limit decision of one app
func (e *Engine) EvaluateLimit(ctx context.Context, input map[string]interface{}) (*LimitDecision, error) {
	startTime := time.Now()

	e.mu.RLock()
	query := e.limitQuery
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("limit query evaluation failed: %w", err)
	}

	e.logger.Debug().Dur("duration_ms", time.Since(startTime)).Msg("Limit query evaluated")

	if len(results) == 0 {
		return nil, fmt.Errorf("no results from limit query")
	}

	if len(results[0].Expressions) == 0 {
		return nil, fmt.Errorf("no expressions in limit query result")
	}

	// Convert result to LimitDecision
	resultBytes, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal limit decision: %w", err)
	}

	var decision LimitDecision
	if err := json.Unmarshal(resultBytes, &decision); err != nil {
		return nil, fmt.Errorf("failed to unmarshal limit decision: %w", err)
	}

	return &decision, nil
}

// Modules returns the loaded policy files
func (e *Engine) Modules() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	files := make([]string, 0, len(e.sources))
	for file := range e.sources {
		files = append(files, file)
	}
	return files
}

// Reload reloads all policies from disk. The previous policies stay active
// when the new set fails to load.
func (e *Engine) Reload() error {
	e.logger.Info().Msg("Reloading OPA policies")

	sources, err := e.loadPolicies()
	if err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}

	query, err := e.prepareLimitQuery(sources)
	if err != nil {
		return fmt.Errorf("failed to re-prepare limit query: %w", err)
	}

	e.mu.Lock()
	e.sources = sources
	e.limitQuery = query
	e.mu.Unlock()

	e.logger.Info().Msg("OPA policies reloaded successfully")

	return nil
}
