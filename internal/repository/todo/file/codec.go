package file

import (
	"bytes"
	"fmt"
	"strings"

	"todoManager/internal/models/todo"
	repo "todoManager/internal/repository"

	"gopkg.in/yaml.v3"
)

// Codec переводит байты файла в коллекцию и обратно
type Codec interface {
	Decode(data []byte) ([]*todo.Todo, error)
	Encode(todos []*todo.Todo) ([]byte, error)
}

type document struct {
	Todos []*todo.Todo `yaml:"todos"`
}

// теги базовой схемы YAML; всё остальное (например !!python/object) отвергается до типизированного декодирования
var allowedTags = map[string]bool{
	"!!map":       true,
	"!!seq":       true,
	"!!str":       true,
	"!!null":      true,
	"!!bool":      true,
	"!!int":       true,
	"!!float":     true,
	"!!timestamp": true,
}

type YAMLCodec struct{}

func (YAMLCodec) Decode(data []byte) ([]*todo.Todo, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []*todo.Todo{}, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", repo.ErrCorrupted, err)
	}
	// только комментарии
	if root.Kind == 0 {
		return []*todo.Todo{}, nil
	}
	if err := checkNode(&root); err != nil {
		return nil, fmt.Errorf("%w: %w", repo.ErrCorrupted, err)
	}

	body := &root
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return []*todo.Todo{}, nil
		}
		body = root.Content[0]
	}
	if body.Kind == yaml.ScalarNode && body.ShortTag() == "!!null" {
		return []*todo.Todo{}, nil
	}
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: top level must be a mapping with key 'todos'", repo.ErrCorrupted, body.Line)
	}

	var doc document
	if err := body.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode todos: %v", repo.ErrCorrupted, err)
	}
	if doc.Todos == nil {
		return []*todo.Todo{}, nil
	}
	if err := todo.ValidateCollection(doc.Todos); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrCorrupted, err)
	}
	return doc.Todos, nil
}

func (YAMLCodec) Encode(todos []*todo.Todo) ([]byte, error) {
	if todos == nil {
		todos = []*todo.Todo{}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(document{Todos: todos}); err != nil {
		return nil, fmt.Errorf("encode todos: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode todos: %w", err)
	}
	return buf.Bytes(), nil
}

// checkNode обходит дерево и пропускает только чистые данные: без алиасов, якорей, merge-ключей и чужих тегов
func checkNode(n *yaml.Node) error {
	switch n.Kind {
	case yaml.AliasNode:
		return fmt.Errorf("%w: line %d: aliases are not allowed", repo.ErrUnsafeContent, n.Line)
	case yaml.DocumentNode:
	default:
		if n.Anchor != "" {
			return fmt.Errorf("%w: line %d: anchor %q is not allowed", repo.ErrUnsafeContent, n.Line, n.Anchor)
		}
		tag := n.ShortTag()
		if tag == "!!merge" {
			return fmt.Errorf("%w: line %d: merge keys are not allowed", repo.ErrUnsafeContent, n.Line)
		}
		if !allowedTags[tag] {
			return fmt.Errorf("%w: line %d: tag %q is not allowed", repo.ErrUnsafeContent, n.Line, strings.TrimSpace(n.Tag))
		}
	}

	for _, child := range n.Content {
		if err := checkNode(child); err != nil {
			return err
		}
	}
	return nil
}
