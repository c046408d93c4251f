package models

import (
	"encoding/json"
	"fmt"
)

// Employee represents an employee record as held by the store.
// Attributes carries any extra fields the store keeps for the record; they are passed through untouched.
type Employee struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	EmployeeNumber string         `json:"employeeNumber"`
	Attributes     map[string]any `json:"-"`
}

// Draft is an employee that has not been stored yet and therefore has no identifier.
type Draft struct {
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	EmployeeNumber string         `json:"employeeNumber"`
	Attributes     map[string]any `json:"-"`
}

// Patch holds the fields to change on an existing employee. Nil fields are left as they are,
// attributes are merged key by key.
type Patch struct {
	Name           *string        `json:"name,omitempty"`
	Email          *string        `json:"email,omitempty"`
	EmployeeNumber *string        `json:"employeeNumber,omitempty"`
	Attributes     map[string]any `json:"-"`
}

// Notification is the payload sent to the email webhook.
type Notification struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	EmployeeNumber string `json:"employeeNumber"`
}

// knownFields are the JSON keys that map onto struct fields rather than attributes.
var knownFields = map[string]struct{}{
	"id":             {},
	"name":           {},
	"email":          {},
	"employeeNumber": {},
}

// Notification builds the webhook payload for the employee.
func (e Employee) Notification() Notification {
	return Notification{Name: e.Name, Email: e.Email, EmployeeNumber: e.EmployeeNumber}
}

// Clone returns a copy that shares no attribute map with the receiver.
func (e Employee) Clone() Employee {
	e.Attributes = cloneAttributes(e.Attributes)
	return e
}

func (e Employee) MarshalJSON() ([]byte, error) {
	type plain Employee
	return marshalFlat(plain(e), e.Attributes)
}

func (e *Employee) UnmarshalJSON(data []byte) error {
	type plain Employee
	var out plain
	attrs, err := unmarshalFlat(data, &out)
	if err != nil {
		return err
	}
	*e = Employee(out)
	e.Attributes = attrs
	return nil
}

func (d Draft) MarshalJSON() ([]byte, error) {
	type plain Draft
	return marshalFlat(plain(d), d.Attributes)
}

func (d *Draft) UnmarshalJSON(data []byte) error {
	type plain Draft
	var out plain
	attrs, err := unmarshalFlat(data, &out)
	if err != nil {
		return err
	}
	*d = Draft(out)
	d.Attributes = attrs
	return nil
}

func (p *Patch) UnmarshalJSON(data []byte) error {
	type plain Patch
	var out plain
	attrs, err := unmarshalFlat(data, &out)
	if err != nil {
		return err
	}
	*p = Patch(out)
	p.Attributes = attrs
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.EmployeeNumber == nil && len(p.Attributes) == 0
}

// EncodeAttributes renders attributes as a JSON object, "{}" when there are none.
func EncodeAttributes(attrs map[string]any) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to encode attributes: %w", err)
	}
	return string(raw), nil
}

// DecodeAttributes parses a JSON object produced by the store. Empty input and "{}" give nil.
func DecodeAttributes(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs, nil
}

func marshalFlat(known any, attrs map[string]any) ([]byte, error) {
	raw, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return raw, nil
	}

	merged := make(map[string]json.RawMessage, len(attrs)+len(knownFields))
	for key, value := range attrs {
		if _, ok := knownFields[key]; ok {
			continue
		}
		encoded, encErr := json.Marshal(value)
		if encErr != nil {
			return nil, fmt.Errorf("failed to encode attribute %q: %w", key, encErr)
		}
		merged[key] = encoded
	}
	// struct fields win over attributes with the same key
	if err = json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}

	return json.Marshal(merged)
}

func unmarshalFlat(data []byte, known any) (map[string]any, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	var attrs map[string]any
	for key, value := range all {
		if _, ok := knownFields[key]; ok {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]any)
		}
		attrs[key] = value
	}

	return attrs, nil
}

func cloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for key, value := range attrs {
		out[key] = value
	}
	return out
}
