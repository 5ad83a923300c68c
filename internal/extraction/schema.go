package extraction

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/xaenox/mailsift/internal/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator checks extracted fields against the JSON schema of each record
// variant and decodes them into typed records.
type Validator struct {
	schemas map[models.RecordKind]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[models.RecordKind]*jsonschema.Schema)}
	for kind, file := range map[models.RecordKind]string{
		models.KindProject:  "schemas/project.json",
		models.KindEngineer: "schemas/engineer.json",
	} {
		data, err := schemaFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(file, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", file, err)
		}
		compiled, err := compiler.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		v.schemas[kind] = compiled
	}
	return v, nil
}

// Check holds the outcome of building a record.
type Check struct {
	Record           models.Record
	MissingFields    []string
	ValidationErrors []string
}

func (c Check) Valid() bool {
	return len(c.MissingFields) == 0 && len(c.ValidationErrors) == 0
}

// Build repairs, normalizes and validates provider fields. It never fails;
// problems are reported in the returned Check.
func (v *Validator) Build(kind models.RecordKind, fields map[string]any, today time.Time) Check {
	fixed := coerce(fields, fieldsOf(kind))
	switch kind {
	case models.KindProject:
		normalizeProjectDates(fixed, today)
	case models.KindEngineer:
		normalizeEngineerFields(fixed)
	}

	var record models.Record = &models.ProjectRecord{}
	if kind == models.KindEngineer {
		record = &models.EngineerRecord{}
	}

	var check Check
	check.Record = record
	for _, f := range record.RequiredFields() {
		if s, ok := fixed[f].(string); !ok || s == "" {
			check.MissingFields = append(check.MissingFields, f)
		}
	}

	data, err := json.Marshal(fixed)
	if err != nil {
		check.ValidationErrors = append(check.ValidationErrors, err.Error())
		return check
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		check.ValidationErrors = append(check.ValidationErrors, err.Error())
		return check
	}
	if err := v.schemas[kind].Validate(doc); err != nil {
		check.ValidationErrors = append(check.ValidationErrors, flatten(err)...)
	}
	// type mismatches leave the offending field zero and keep the rest
	_ = json.Unmarshal(data, record)

	return check
}

func normalizeProjectDates(fields map[string]any, today time.Time) {
	start, _ := fields["start_date"].(string)
	if d, ok := normalizeDate(start, today); ok {
		fields["start_date"] = d
	} else {
		fields["start_date"] = today.Format(dateLayout)
	}

	if deadline, ok := fields["application_deadline"].(string); ok {
		if d, ok := normalizeDate(deadline, today); ok {
			fields["application_deadline"] = d
		} else {
			delete(fields, "application_deadline")
		}
	}
}

func flatten(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			// required fields are reported as missing fields
			if strings.HasSuffix(e.KeywordLocation, "/required") {
				return
			}
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return out
}
