package model

// Document references the binary currently attached to a Signature.
// The bytes live in object storage under StoragePath; Filename is the
// user-facing name, kept across replacements.
type Document struct {
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// IsZero reports whether no document is attached.
func (d Document) IsZero() bool {
	return d.StoragePath == ""
}
