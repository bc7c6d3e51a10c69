package models

import "fmt"

// MPetRecord is one pet as listed by the service.
type MPetRecord map[string]any

// ID looks up the pet id under the keys the service has been seen to use.
func (p MPetRecord) ID() (int64, bool) {
	for _, key := range []string{"PetId", "Id", "id"} {
		if v, ok := p[key]; ok && v != nil {
			if id, ok := AsInt64(v); ok {
				return id, true
			}
		}
	}
	return 0, false
}

// Name returns the display name, falling back to "Pet <id>".
func (p MPetRecord) Name() string {
	for _, key := range []string{"PetName", "Name"} {
		if s, ok := p[key].(string); ok && s != "" {
			return s
		}
	}
	if id, ok := p.ID(); ok {
		return fmt.Sprintf("Pet %d", id)
	}
	return "Unnamed"
}

// MLoginResult is the outcome of a successful login request. Token is empty
// when the body carried no access token.
type MLoginResult struct {
	Body   map[string]any `json:"body"`
	Token  string         `json:"-"`
	UserID *int64         `json:"user_id,omitempty"`
}
