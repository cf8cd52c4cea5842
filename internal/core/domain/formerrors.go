// Package domain defines the core domain models for tokpass.
package domain

import "sort"

// Form field names.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
	// NonFieldKey holds messages not tied to a single field.
	NonFieldKey = "non_field"
)

// FormErrors maps a field name to its ordered validation messages.
// An empty map means no errors.
type FormErrors map[string][]string

// NonField returns FormErrors holding a single non-field message.
func NonField(msg string) FormErrors {
	return FormErrors{NonFieldKey: {msg}}
}

// Add appends a message to a field.
func (f FormErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Empty reports whether there are no messages at all.
func (f FormErrors) Empty() bool {
	for _, msgs := range f {
		if len(msgs) > 0 {
			return false
		}
	}
	return true
}

// Messages returns the messages for a field.
func (f FormErrors) Messages(field string) []string {
	return f[field]
}

// Fields returns field names in display order: email, password, any
// server-supplied fields alphabetically, then non_field last.
func (f FormErrors) Fields() []string {
	rank := func(k string) int {
		switch k {
		case FieldEmail:
			return 0
		case FieldPassword:
			return 1
		case NonFieldKey:
			return 3
		default:
			return 2
		}
	}

	fields := make([]string, 0, len(f))
	for k, msgs := range f {
		if len(msgs) > 0 {
			fields = append(fields, k)
		}
	}
	sort.Slice(fields, func(i, j int) bool {
		ri, rj := rank(fields[i]), rank(fields[j])
		if ri != rj {
			return ri < rj
		}
		return fields[i] < fields[j]
	})
	return fields
}

// Clone returns a deep copy.
func (f FormErrors) Clone() FormErrors {
	out := make(FormErrors, len(f))
	for k, msgs := range f {
		out[k] = append([]string(nil), msgs...)
	}
	return out
}
