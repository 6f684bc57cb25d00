package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/phenotype-mcp/internal/matcher"
	"github.com/dshills/phenotype-mcp/internal/metrics"
	"github.com/dshills/phenotype-mcp/internal/workflow"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
)

// toolFunc runs one tool against decoded arguments and returns the
// response body plus the metrics outcome
type toolFunc func(ctx context.Context, args map[string]interface{}) (interface{}, string, error)

// handle adapts fn to the mcp-go handler signature. Invalid parameters come
// back as a tool error result; everything else is JSON text.
func (s *Server) handle(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			if request.Params.Arguments != nil {
				s.app.Metrics.ObserveTool(name, metrics.OutcomeError, time.Since(start))
				return mcp.NewToolResultError("invalid arguments: expected an object"), nil
			}
			args = map[string]interface{}{}
		}

		body, outcome, err := fn(ctx, args)
		s.app.Metrics.ObserveTool(name, outcome, time.Since(start))
		if err != nil {
			var mcpErr *MCPError
			if errors.As(err, &mcpErr) && mcpErr.Code == ErrorCodeInvalidParams {
				return mcp.NewToolResultError(mcpErr.Message), nil
			}
			s.app.Log.Error("tool failed", "tool", name, "error", err)
			return nil, err
		}
		return mcp.NewToolResultText(formatJSON(body)), nil
	}
}

func (s *Server) handleGenesByHPO(ctx context.Context, args map[string]interface{}) (interface{}, string, error) {
	id, err := requireString(args, paramHPOID)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	res := s.app.Relations.GenesByTerm(ctx, id)
	return res, lookupOutcome(res.Found, res.Error), nil
}

func (s *Server) handleHPOByGene(ctx context.Context, args map[string]interface{}) (interface{}, string, error) {
	id, err := requireString(args, paramGeneID)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	res := s.app.Relations.TermsByGene(ctx, id)
	return res, lookupOutcome(res.Found, res.Error), nil
}

func (s *Server) handleDiseasesByGene(ctx context.Context, args map[string]interface{}) (interface{}, string, error) {
	id, err := requireString(args, paramGeneID)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	res := s.app.Relations.DiseasesByGene(ctx, id)
	return res, lookupOutcome(res.Found, res.Error), nil
}

func (s *Server) handleGenesByDisease(ctx context.Context, args map[string]interface{}) (interface{}, string, error) {
	id, err := requireString(args, paramDiseaseID)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	res := s.app.Relations.GenesByDisease(ctx, id)
	return res, lookupOutcome(res.Found, res.Error), nil
}

func (s *Server) handleDiseasesByHPO(ctx context.Context, args map[string]interface{}) (interface{}, string, error) {
	id, err := requireString(args, paramHPOID)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	res := s.app.Relations.DiseasesByTerm(ctx, id)
	return res, lookupOutcome(res.Found, res.Error), nil
}

func (s *Server) handleHPOByDisease(ctx context.Context, args map[string]interface{}) (interface{}, string, error) {
	id, err := requireString(args, paramDiseaseID)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	res := s.app.Relations.TermsByDisease(ctx, id)
	return res, lookupOutcome(res.Found, res.Error), nil
}

// handleHPONameByID resolves a single term name. Store failures still
// return the sentinel name, with the error reported alongside.
func (s *Server) handleHPONameByID(ctx context.Context, args map[string]interface{}) (interface{}, string, error) {
	id, err := requireString(args, paramHPOID)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}

	res, err := s.app.Resolver.Resolve(ctx, id)
	if err != nil {
		s.app.Log.Warn("term name lookup failed", "hpo_id", id, "error", err)
		return map[string]interface{}{
			"hpo_id":   res.HPOID,
			"hpo_name": res.HPOName,
			"found":    false,
			"error":    err.Error(),
		}, metrics.OutcomeError, nil
	}
	return res, lookupOutcome(res.Found, ""), nil
}

func (s *Server) handleSearchSymptom(ctx context.Context, args map[string]interface{}) (interface{}, string, error) {
	symptom, err := requireString(args, paramEnglishSymptom)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	k := getIntDefault(args, paramK, matcher.DefaultK)

	res := s.app.Matcher.Match(ctx, symptom, k)
	s.app.Metrics.ObserveSearch(res.Status, res.Reason, res.CacheHit)
	if res.Status == matcher.StatusUnavailable {
		return res, metrics.OutcomeUnavailable, nil
	}
	return res, metrics.OutcomeOK, nil
}

func (s *Server) handleEnglishWorkflow(context.Context, map[string]interface{}) (interface{}, string, error) {
	return workflow.English(), metrics.OutcomeOK, nil
}

func (s *Server) handleChineseWorkflow(context.Context, map[string]interface{}) (interface{}, string, error) {
	return workflow.Chinese(), metrics.OutcomeOK, nil
}

func (s *Server) handleGetServerStatus(ctx context.Context, _ map[string]interface{}) (interface{}, string, error) {
	return s.app.Health.Report(ctx), metrics.OutcomeOK, nil
}

// lookupOutcome maps a lookup result onto a metrics outcome
func lookupOutcome(found bool, errMsg string) string {
	switch {
	case errMsg != "":
		return metrics.OutcomeError
	case !found:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeOK
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireString returns a required string argument. Values are passed
// through untouched: an empty or unknown identifier is a lookup miss, not a
// parameter error.
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or not a string",
		})
	}
	return val, nil
}

// formatJSON formats data as indented JSON. Unencodable data becomes a JSON
// error object.
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		bytes, _ = json.Marshal(map[string]string{"error": "failed to encode result: " + err.Error()})
	}
	return string(bytes)
}

// getIntDefault reads an integer argument. JSON numbers decode as float64;
// some clients send numbers as strings.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultValue
}
