package core

// Secret holds an API key. Formatting, JSON and text marshaling all print a
// placeholder; only Expose returns the value.
//
//	key := NewSecret("app-abc123")
//	fmt.Println(key)       // [REDACTED]
//	fmt.Printf("%#v", key) // core.Secret{[REDACTED]}
type Secret struct {
	value string
}

// NewSecret wraps value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// String implements fmt.Stringer.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer.
func (s Secret) GoString() string {
	return "core.Secret{[REDACTED]}"
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalText implements encoding.TextMarshaler, which also covers YAML.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// Expose returns the key. Do not log the result.
func (s Secret) Expose() string {
	return s.value
}

// Bearer returns the Authorization header value for the key.
func (s Secret) Bearer() string {
	return "Bearer " + s.value
}

// IsEmpty reports whether no key was configured.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}
