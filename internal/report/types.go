package report

// Report describes one export run: what went into the archive and what was
// dropped on the way.
type Report struct {
	Version     int       `json:"version"`
	GeneratedAt string    `json:"generated_at"`
	Archive     string    `json:"archive"`
	Entries     []Entry   `json:"entries"`
	Failures    []Failure `json:"failures,omitempty"`
	Stats       Stats     `json:"stats"`
}

// Entry is one file stored in the archive.
type Entry struct {
	Path   string `json:"path"`
	Source string `json:"source"` // abbreviated for data URLs
	Size   int64  `json:"size"`
	Hash   string `json:"hash"` // xxhash64, 16 hex chars
}

// Failure is an asset that could not be fetched.
type Failure struct {
	Filename string `json:"filename"`
	Source   string `json:"source"`
	Error    string `json:"error"`
}

// Stats aggregates the run.
type Stats struct {
	TotalEntries  int            `json:"total_entries"`
	TotalFailures int            `json:"total_failures"`
	TotalBytes    int64          `json:"total_bytes"`
	ArchiveBytes  int64          `json:"archive_bytes"`
	ByFolder      map[string]int `json:"by_folder,omitempty"`
}

// SupportedVersion is the current schema version.
const SupportedVersion = 1
