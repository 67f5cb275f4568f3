package mapping

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Model is an instance of a named spec definition. Properties holds every
// declared property (nil when absent from the payload) plus any additional
// properties the schema allows.
type Model struct {
	Name       string
	Properties map[string]any
}

// NewModel returns an empty instance of the named definition.
func NewModel(name string) *Model {
	return &Model{Name: name, Properties: make(map[string]any)}
}

// Get returns a property value and whether the property exists on the model.
func (m *Model) Get(name string) (any, bool) {
	v, ok := m.Properties[name]
	return v, ok
}

// Set assigns a property value.
func (m *Model) Set(name string, value any) {
	if m.Properties == nil {
		m.Properties = make(map[string]any)
	}
	m.Properties[name] = value
}

// MarshalJSON encodes the model as its properties, skipping nil values.
func (m *Model) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Properties))
	for k, v := range m.Properties {
		if v != nil {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

func (m *Model) String() string {
	keys := make([]string, 0, len(m.Properties))
	for k := range m.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m.Properties[k]))
	}
	return fmt.Sprintf("%s(%s)", m.Name, strings.Join(parts, ", "))
}
