package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/jmapc/internal/cli"
	"github.com/roach88/jmapc/internal/dispatch"
)

// Scenario pairs a batch with the responses a server is pretended to send
// back, and the assertions that must hold once they are dispatched.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Account fills in calls without an accountId and is the default
	// account for cache assertions.
	Account string `yaml:"account,omitempty"`

	// Batch is built exactly like a jmapc batch file.
	Batch cli.BatchFile `yaml:"batch"`

	// Responses are returned in this order as methodResponses.
	Responses []ResponseStep `yaml:"responses"`

	// Assertions validate the dispatched results and the cache.
	Assertions []Assertion `yaml:"assertions"`
}

// ResponseStep is one fabricated [name, args, clientId] triple.
type ResponseStep struct {
	Method string         `yaml:"method"`
	Args   map[string]any `yaml:"args"`
	ID     string         `yaml:"id"`
}

// Assertion validates the trace or the cache after dispatch.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Call is the client id the assertion is about.
	Call string `yaml:"call,omitempty"`

	// Calls is the expected result order (result_order).
	Calls []string `yaml:"calls,omitempty"`

	// IDs overrides the requested ids of a get_partition.
	IDs []string `yaml:"ids,omitempty"`

	// ErrorType is the expected method error type (result_error).
	// Integrity failures use their code, e.g. MISSING_RESPONSE.
	ErrorType string `yaml:"error_type,omitempty"`

	// Account, Entity and ID locate a cached record or state.
	Account string `yaml:"account,omitempty"`
	Entity  string `yaml:"entity,omitempty"`
	ID      string `yaml:"id,omitempty"`

	// State is the expected cached state (cache_state).
	State string `yaml:"state,omitempty"`

	// Absent expects the record not to be cached (cache_entity).
	Absent bool `yaml:"absent,omitempty"`

	// Expect holds fields the cached record must have (subset match).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertGetPartition = "get_partition"
	AssertSetPartition = "set_partition"
	AssertResultOrder  = "result_order"
	AssertResultOK     = "result_ok"
	AssertResultError  = "result_error"
	AssertCacheEntity  = "cache_entity"
	AssertCacheState   = "cache_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict fields catch typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Batch.Calls) == 0 {
		return fmt.Errorf("batch.calls is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Responses {
		if step.Method == "" {
			return fmt.Errorf("responses[%d]: method is required", i)
		}
		if step.ID == "" {
			return fmt.Errorf("responses[%d]: id is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertGetPartition, AssertSetPartition, AssertResultOK, AssertResultError:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for %s", index, a.Type)
		}
	case AssertResultOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for result_order", index)
		}
	case AssertCacheEntity:
		if a.Entity == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: entity and id are required for cache_entity", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for cache_entity", index)
		}
	case AssertCacheState:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for cache_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// envelope renders the fabricated responses as a decoded response body.
func (s *Scenario) envelope() (*dispatch.ResponseEnvelope, error) {
	env := &dispatch.ResponseEnvelope{
		MethodResponses: make([]dispatch.RawResponse, len(s.Responses)),
		SessionState:    "harness",
	}
	for i, step := range s.Responses {
		args := step.Args
		if args == nil {
			args = map[string]any{}
		}
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("responses[%d]: %w", i, err)
		}
		env.MethodResponses[i] = dispatch.RawResponse{Name: step.Method, Args: data, ClientID: step.ID}
	}
	return env, nil
}
