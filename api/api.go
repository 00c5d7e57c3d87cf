package api

// FileEntry is one published source file in the file-listing endpoint.
type FileEntry struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Timestamp string `json:"timestamp"`
}

// LoadedFile is one fetched source file on the consumer path.
type LoadedFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type MergeReq struct {
	FullRebuild bool `json:"full_rebuild"`
}

type MergeSummary struct {
	RunID                 string            `json:"run_id"`
	UpToDate              bool              `json:"up_to_date"`
	FilesDiscovered       int               `json:"files_discovered"`
	FilesAlreadyProcessed int               `json:"files_already_processed"`
	NewFilesProcessed     int               `json:"new_files_processed"`
	NewRecordsAdded       int               `json:"new_records_added"`
	DuplicatesRejected    int               `json:"duplicates_rejected"`
	ExpiredRejected       int               `json:"expired_rejected"`
	ExpiredPruned         int               `json:"expired_pruned"`
	TotalRecords          int               `json:"total_records"`
	FileStats             []FileIngestStats `json:"file_stats,omitempty"`
	Error                 string            `json:"error,omitempty"`
}

// FileIngestStats is the per-file breakdown reported after every run.
type FileIngestStats struct {
	FileName      string `json:"file_name"`
	RowsAttempted int    `json:"rows_attempted"`
	Expired       int    `json:"expired"`
	Duplicates    int    `json:"duplicates"`
	NewUnique     int    `json:"new_unique"`
}
