package cli

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/request"
)

//go:embed schema.cue
var batchSchema string

// BatchFile is the on-disk description of a request.
type BatchFile struct {
	Using    []string   `json:"using,omitempty" yaml:"using"`
	IDPrefix string     `json:"idPrefix,omitempty" yaml:"idPrefix"`
	Calls    []CallSpec `json:"calls" yaml:"calls"`
}

// CallSpec is one method call. Args decode into the method's registered
// call type; Refs map argument names to earlier results.
type CallSpec struct {
	ID     string             `json:"id,omitempty" yaml:"id"`
	Method string             `json:"method" yaml:"method"`
	Args   map[string]any     `json:"args" yaml:"args"`
	Refs   map[string]RefSpec `json:"refs,omitempty" yaml:"refs"`
}

// RefSpec names the call and JSON pointer a reference reads.
type RefSpec struct {
	From string `json:"from" yaml:"from"`
	Path string `json:"path" yaml:"path"`
}

// LoadError represents an error that occurred while loading a batch file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants, shared by all commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // Batch file unreadable
	ErrCodeParseFailed = "E003" // YAML or CUE syntax error
	ErrCodeSchema      = "E004" // Batch file does not match the schema
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeFormat      = "E006" // Unsupported file extension

	// Build errors
	ErrCodeUnknownMethod = "E101" // Method not registered
	ErrCodeBadArgs       = "E102" // Arguments do not fit the call type
	ErrCodeBuildFailed   = "E103" // Builder rejected the batch

	// Submission errors
	ErrCodeConfig    = "E201" // Environment configuration invalid
	ErrCodeTransport = "E202" // Transport failure
	ErrCodeCache     = "E203" // Cache could not be opened
	ErrCodeMethod    = "E204" // At least one invocation failed
)

// LoadBatchFile reads a .yaml, .yml or .cue batch file.
func LoadBatchFile(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("batch file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error()}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return parseYAMLBatch(data)
	case ".cue":
		return parseCUEBatch(path, data)
	default:
		return nil, &LoadError{Code: ErrCodeFormat, Message: fmt.Sprintf("unsupported batch file extension %q (want .yaml, .yml or .cue)", ext)}
	}
}

func parseYAMLBatch(data []byte) (*BatchFile, error) {
	var b BatchFile
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error()}
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	return &b, nil
}

// parseCUEBatch unifies the file with the embedded #Batch schema.
func parseCUEBatch(path string, data []byte) (*BatchFile, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(batchSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("batch schema: %v", err)}
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(path, ErrCodeParseFailed, err)
	}

	v = schema.LookupPath(cue.ParsePath("#Batch")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, ErrCodeSchema, err)
	}

	var b BatchFile
	if err := v.Decode(&b); err != nil {
		return nil, cueLoadError(path, ErrCodeSchema, err)
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	return &b, nil
}

// cueLoadError reports the first error with a position in the batch file.
// Errors found while unifying with #Batch also point into schema.cue; that
// position is only used when nothing points at the user's file.
func cueLoadError(path, code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: cueerrors.Details(err, nil)}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return le
	}
	for _, e := range errs {
		for _, pos := range cueerrors.Positions(e) {
			if pos.Filename() == path {
				le.Message = e.Error()
				le.Pos = pos
				return le
			}
		}
	}
	le.Message = errs[0].Error()
	if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// check applies the schema rules YAML files cannot express.
func (b *BatchFile) check() error {
	if len(b.Calls) == 0 {
		return &LoadError{Code: ErrCodeSchema, Message: "batch has no calls"}
	}
	for i, c := range b.Calls {
		if c.Method == "" {
			return &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("calls[%d]: method is required", i)}
		}
		for key := range c.Args {
			if strings.HasPrefix(key, request.ReferenceMarker) {
				return &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("calls[%d]: argument %q: write references under refs", i, key)}
			}
		}
		for field, ref := range c.Refs {
			if ref.From == "" || !strings.HasPrefix(ref.Path, "/") {
				return &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("calls[%d].refs.%s: from and an absolute path are required", i, field)}
			}
		}
	}
	return nil
}

// BuildRequest turns b into a Request. Calls without an accountId get
// defaultAccount when it is set.
func BuildRequest(b *BatchFile, r *method.Registry, defaultAccount string) (*request.Request, error) {
	opts := []request.Option{request.WithRegistry(r), request.WithUsing(b.Using...)}
	if b.IDPrefix != "" {
		opts = append(opts, request.WithIDPrefix(b.IDPrefix))
	}
	builder := request.NewBuilder(opts...)

	ids := make([]string, len(b.Calls))
	typed := make([]map[string]bool, len(b.Calls))
	for i, spec := range b.Calls {
		call, err := decodeCall(r, spec, defaultAccount)
		if err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}
		typed[i] = setTypedRefs(call, spec.Refs)
		if spec.ID != "" {
			err = builder.AddWithID(spec.ID, call)
			ids[i] = spec.ID
		} else {
			ids[i], err = builder.Add(call)
		}
		if err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}
	}

	for i, spec := range b.Calls {
		fields := make([]string, 0, len(spec.Refs))
		for field := range spec.Refs {
			if !typed[i][field] {
				fields = append(fields, field)
			}
		}
		slices.Sort(fields)
		for _, field := range fields {
			ref := spec.Refs[field]
			if err := builder.AddReference(ids[i], field, ref.From, ref.Path); err != nil {
				return nil, fmt.Errorf("calls[%d].refs.%s: %w", i, field, err)
			}
		}
	}

	return builder.Build()
}

// setTypedRefs moves refs the call has typed fields for onto the call,
// so its own argument rules (such as a set that only destroys referenced
// ids) see them. The rest are attached with AddReference after all calls
// are added.
func setTypedRefs(call method.Call, refs map[string]RefSpec) map[string]bool {
	setter, ok := call.(request.ReferenceSetter)
	if !ok {
		return nil
	}
	done := make(map[string]bool, len(refs))
	for field, ref := range refs {
		if setter.SetReference(field, request.Ref(ref.From, ref.Path)) {
			done[field] = true
		}
	}
	return done
}

// decodeCall builds a value of the method's registered call type from args.
func decodeCall(r *method.Registry, spec CallSpec, defaultAccount string) (method.Call, error) {
	callType, _, err := r.ResolveTypes(spec.Method)
	if err != nil {
		return nil, err
	}

	args := spec.Args
	if args == nil {
		args = map[string]any{}
	}
	if _, ok := args["accountId"]; !ok && defaultAccount != "" && hasAccountField(callType) {
		args = maps.Clone(args)
		args["accountId"] = defaultAccount
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBadArgs, Message: fmt.Sprintf("%s args: %v", spec.Method, err)}
	}
	ptr := reflect.New(callType)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, &LoadError{Code: ErrCodeBadArgs, Message: fmt.Sprintf("%s args: %v", spec.Method, err)}
	}
	call, ok := ptr.Interface().(method.Call)
	if !ok {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%s: %s is not a method call", spec.Method, callType)}
	}
	return call, nil
}

func hasAccountField(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "accountId" {
			return true
		}
	}
	return false
}
