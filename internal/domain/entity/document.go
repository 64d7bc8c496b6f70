package entity

import "time"

// DocumentInfo is the metadata the document store supplies when a
// submission is created. The workflow core never touches file bytes.
type DocumentInfo struct {
	DocumentID string    `json:"document_id"`
	FileName   string    `json:"file_name"`
	Department string    `json:"department"`
	UploadedBy string    `json:"uploaded_by"`
	UploadDate time.Time `json:"upload_date"`
	PageCount  int       `json:"page_count,omitempty"`
}

// User is the identity/session view of the acting user.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}
