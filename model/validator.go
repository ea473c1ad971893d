package model

// Validator holds the HTTP cache validators captured from a previous
// successful download. An empty field means the server did not send that
// header; a fully empty Validator means "fetch unconditionally".
type Validator struct {
	ETag         string `json:"etag"`
	LastModified string `json:"last_modified"`
}

// IsZero reports whether no validator field is present.
func (v Validator) IsZero() bool {
	return v.ETag == "" && v.LastModified == ""
}

// Normalize maps values that mean "absent" in the stored form (the empty
// string and the literal token "null") to the empty string.
func (v Validator) Normalize() Validator {
	return Validator{
		ETag:         normalizeValidatorValue(v.ETag),
		LastModified: normalizeValidatorValue(v.LastModified),
	}
}

func normalizeValidatorValue(s string) string {
	if s == "" || s == "null" {
		return ""
	}
	return s
}
