package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError lists every schema violation found in a config.
type ValidationError struct {
	Issues []Issue
}

// Issue is a single schema violation.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid config: " + e.Issues[0].String()
	}
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("invalid config: %d issues: %s", len(e.Issues), strings.Join(parts, "; "))
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// schema is compiled once; a cue.Context is not safe for concurrent use, so
// validation holds schemaMu.
var (
	schemaOnce sync.Once
	schemaMu   sync.Mutex
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func loadSchema() {
	schemaCtx = cuecontext.New()
	v := schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		schemaErr = fmt.Errorf("compile schema: %w", err)
		return
	}
	schemaDef = v.LookupPath(cue.ParsePath("#Config"))
	if err := schemaDef.Err(); err != nil {
		schemaErr = fmt.Errorf("lookup #Config: %w", err)
	}
}

// Validate checks cfg against the embedded CUE schema.
// Returns a *ValidationError describing every violation.
func Validate(cfg *Config) error {
	schemaOnce.Do(loadSchema)
	if schemaErr != nil {
		return schemaErr
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	doc := schemaCtx.CompileBytes(data, cue.Filename("config.json"))
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schemaDef.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toValidationError(err)
	}
	return nil
}

// toValidationError flattens a CUE error list into issues.
func toValidationError(err error) *ValidationError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Issues: []Issue{{Message: err.Error()}}}
	}

	out := &ValidationError{}
	seen := make(map[Issue]bool)
	for _, e := range errs {
		format, args := e.Msg()
		is := Issue{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		if seen[is] {
			continue
		}
		seen[is] = true
		out.Issues = append(out.Issues, is)
	}
	return out
}
