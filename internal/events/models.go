package events

// DocumentEvent reports a lifecycle change of one document.
type DocumentEvent struct {
	BatchID    string `json:"batch_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	StatusInfo string `json:"status_info,omitempty"`
}

// BatchEvent reports a batch-level outcome, currently only termination.
type BatchEvent struct {
	BatchID           string `json:"batch_id"`
	TotalDocuments    int    `json:"total_documents"`
	KeptCompleted     int    `json:"kept_completed"`
	DeletedIncomplete int    `json:"deleted_incomplete"`
}
