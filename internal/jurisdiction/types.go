package jurisdiction

// Type identifies the level of a local-government jurisdiction.
type Type string

const (
	TypeBarangay     Type = "barangay"
	TypeCity         Type = "city"
	TypeMunicipality Type = "municipality"
)

// Valid reports whether t is a known jurisdiction type.
func (t Type) Valid() bool {
	switch t {
	case TypeBarangay, TypeCity, TypeMunicipality:
		return true
	}
	return false
}

// Jurisdiction is one directory record.
type Jurisdiction struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      Type   `json:"type"`
	ParentID  string `json:"parent_id,omitempty"`
	Published bool   `json:"published"`
}
