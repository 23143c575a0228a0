package model

// CheckoutResult represents the result of a source zipball download and
// extraction into a job workspace
type CheckoutResult struct {
	Dir   string   // Path to the extracted source root
	Files []string // List of extracted files
	Size  int64    // Total size in bytes
}
