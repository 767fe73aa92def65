package handlers

import (
	"bytes"
	"errors"
	"fmt"

	"todoManager/internal/mcp"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	errNotObject = errors.New("arguments must be a JSON object")
	errNoSchema  = errors.New("no input schema registered")
)

// SchemaValidator проверяет аргументы вызова по inputSchema инструмента
type SchemaValidator struct {
	schemas map[string]*jsonschema.Schema
}

func NewSchemaValidator(tools []mcp.Tool) (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	v := &SchemaValidator{schemas: make(map[string]*jsonschema.Schema, len(tools))}

	for _, tool := range tools {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(tool.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("parse schema of %s: %w", tool.Name, err)
		}
		url := tool.Name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema of %s: %w", tool.Name, err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema of %s: %w", tool.Name, err)
		}
		v.schemas[tool.Name] = sch
	}
	return v, nil
}

func (v *SchemaValidator) Validate(tool string, args map[string]any) error {
	sch, ok := v.schemas[tool]
	if !ok {
		return fmt.Errorf("%s: %w", tool, errNoSchema)
	}
	return sch.Validate(args)
}

// decodeArguments разбирает аргументы с json.Number, как того ждёт валидатор.
// Отсутствующие аргументы и null - пустой объект.
func decodeArguments(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(trimmed))
	if err != nil {
		return nil, err
	}
	args, ok := doc.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return args, nil
}

// isBlank - отсутствующее или пустое значение параметра
func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
