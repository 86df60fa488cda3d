package model

import "time"

// DashboardDocument is a dashboard's full configuration as returned by the
// external API. It is kept as a generic JSON object so fields this system
// does not interpret survive a backup/restore round trip untouched.
type DashboardDocument map[string]any

// Clone returns a deep copy of the document. Mutating the copy never
// affects the original.
func (d DashboardDocument) Clone() DashboardDocument {
	if d == nil {
		return nil
	}
	return deepCopyMap(d)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		// JSON scalars (string, float64, bool, nil) are immutable.
		return v
	}
}

// String returns the named field if it is a string, otherwise "".
func (d DashboardDocument) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// DashboardSummary identifies one dashboard in an account listing.
type DashboardSummary struct {
	GUID      string
	Name      string
	AccountID string
	UpdatedAt time.Time
}

// DashboardDetail is a dashboard's full state as fetched from the external
// API: identifying metadata plus the complete configuration document.
type DashboardDetail struct {
	GUID        string
	Name        string
	AccountID   string
	AccountName string
	OwnerEmail  string
	UpdatedAt   time.Time
	Document    DashboardDocument
}

// CredentialValidation is the outcome of checking an API key against the
// external platform.
type CredentialValidation struct {
	Valid    bool
	Accounts []Account
}
