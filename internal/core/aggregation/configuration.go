package aggregation

import (
	"sort"
	"sync"
)

// FieldConfig is the reduction policy registered for one field.
type FieldConfig struct {
	Field   string
	Method  Method
	Reducer Reducer // set only when Method is MethodCustom
}

// Configuration binds a reduction policy to the fields of a record schema.
//
// Field names are not checked against any schema when configured; use Validate
// once both sides are known. Exclusion is one-way: an excluded field is never
// reduced again by this configuration, even if a method is registered for it later.
type Configuration struct {
	mu       sync.RWMutex
	fields   map[string]FieldConfig
	excluded map[string]struct{}
	key      []string
}

// NewConfiguration returns an empty configuration: every field sums, no key.
func NewConfiguration() *Configuration {
	return &Configuration{
		fields:   make(map[string]FieldConfig),
		excluded: make(map[string]struct{}),
	}
}

// SetKey declares a simple key, replacing any previous key declaration.
func (c *Configuration) SetKey(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = []string{field}
}

// SetCompositeKey declares an ordered composite key, replacing any previous key
// declaration. It fails with a *ConfigurationError when no fields are given.
func (c *Configuration) SetCompositeKey(fields ...string) error {
	if len(fields) == 0 {
		return &ConfigurationError{Op: "set composite key", Err: ErrEmptyKey}
	}
	key := make([]string, len(fields))
	copy(key, fields)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	return nil
}

// SetMethod registers or overwrites the method for a field. Use SetReducer for
// MethodCustom; registering MethodCustom here leaves the field without a reducer.
// Excluded fields are ignored.
func (c *Configuration) SetMethod(field string, method Method) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(FieldConfig{Field: field, Method: method})
}

// SetReducer registers a custom reducer for a field, replacing any prior method.
// Excluded fields are ignored.
func (c *Configuration) SetReducer(field string, reducer Reducer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(FieldConfig{Field: field, Method: MethodCustom, Reducer: reducer})
}

// SetMethodFor registers the same method for several fields.
func (c *Configuration) SetMethodFor(method Method, fields ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fields {
		c.setLocked(FieldConfig{Field: f, Method: method})
	}
}

// setLocked records fc unless its field is excluded. Callers hold c.mu.
func (c *Configuration) setLocked(fc FieldConfig) {
	if _, ok := c.excluded[fc.Field]; ok {
		return
	}
	c.fields[fc.Field] = fc
}

// Exclude drops any registered policy for the fields and marks them excluded.
func (c *Configuration) Exclude(fields ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fields {
		delete(c.fields, f)
		c.excluded[f] = struct{}{}
	}
}

// Method returns the method for a field, MethodSum when unconfigured.
func (c *Configuration) Method(field string) Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if fc, ok := c.fields[field]; ok {
		return fc.Method
	}
	return MethodSum
}

// Reducer returns the custom reducer for a field, or nil.
func (c *Configuration) Reducer(field string) Reducer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields[field].Reducer
}

// IsExcluded reports whether the field has been excluded.
func (c *Configuration) IsExcluded(field string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.excluded[field]
	return ok
}

// ExcludedFields returns the excluded field names, sorted.
func (c *Configuration) ExcludedFields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.excluded))
	for f := range c.excluded {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// FieldConfigs returns the explicitly configured fields, sorted by name.
func (c *Configuration) FieldConfigs() []FieldConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]FieldConfig, 0, len(c.fields))
	for _, fc := range c.fields {
		out = append(out, fc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// KeyFields returns a copy of the declared key, empty when none.
func (c *Configuration) KeyFields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.key))
	copy(out, c.key)
	return out
}

// IsCompositeKey reports whether the key spans more than one field.
func (c *Configuration) IsCompositeKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.key) > 1
}

// fieldSet is the subset of a schema Validate needs.
type fieldSet interface {
	Has(name string) bool
}

// Validate checks every field named by the configuration against a schema.
// Unknown names yield a *ConfigurationError wrapping ErrUnknownField.
func (c *Configuration) Validate(schema fieldSet) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	check := func(op, name string) error {
		if !schema.Has(name) {
			return &ConfigurationError{Op: op, Field: name, Err: ErrUnknownField}
		}
		return nil
	}

	names := make([]string, 0, len(c.fields))
	for name := range c.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := check("field method", name); err != nil {
			return err
		}
	}
	for _, name := range c.key {
		if err := check("key", name); err != nil {
			return err
		}
	}
	return nil
}
