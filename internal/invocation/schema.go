package invocation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

type reflectedSchema struct {
	name string
	raw  []byte
}

var schemaCache sync.Map // reflect.Type -> reflectedSchema

// ReflectSchema builds a strict JSON schema for the Go value v. Schemas are
// cached per type.
func ReflectSchema(v interface{}) (string, []byte, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return "", nil, fmt.Errorf("cannot reflect schema from nil value")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if cached, ok := schemaCache.Load(t); ok {
		s := cached.(reflectedSchema)
		return s.name, s.raw, nil
	}

	reflector := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.ReflectFromType(t)
	schema.Version = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal schema for %s: %w", t, err)
	}

	s := reflectedSchema{name: schemaName(t), raw: raw}
	schemaCache.Store(t, s)
	return s.name, s.raw, nil
}

func schemaName(t reflect.Type) string {
	name := t.Name()
	if name == "" {
		return "response"
	}
	return strings.ToLower(name[:1]) + name[1:]
}
