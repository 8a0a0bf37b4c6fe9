package models

import "time"

// FileMetadata describes a file managed by the file transfer collaborator.
// Entities store the ID, DownloadURL and ExpiresAt as ordinary fields.
type FileMetadata struct {
	ID          string     `json:"_id,omitempty"`
	FileName    string     `json:"_filename,omitempty"`
	MimeType    string     `json:"mimeType,omitempty"`
	Size        int64      `json:"size,omitempty"`
	Public      bool       `json:"_public,omitempty"`
	DownloadURL string     `json:"_downloadURL,omitempty"`
	ExpiresAt   *time.Time `json:"_expiresAt,omitempty"`
	UploadURL   string     `json:"_uploadURL,omitempty"`

	// ResumeToken identifies an interrupted upload session. It is persisted by
	// the caller and passed back to resume.
	ResumeToken string `json:"-"`
	// Offset is the number of bytes already transferred for ResumeToken.
	Offset int64 `json:"-"`
}

// Progress receives the number of bytes transferred so far and the total
// size (or -1 when unknown).
type Progress func(done, total int64)

// FileValue returns a map value suitable for storing the file in an entity.
func (f FileMetadata) FileValue() Value {
	fields := map[string]Value{
		"_type": String("File"),
		"_id":   String(f.ID),
	}
	if f.DownloadURL != "" {
		fields["_downloadURL"] = String(f.DownloadURL)
	}
	if f.ExpiresAt != nil {
		fields["_expiresAt"] = String(f.ExpiresAt.UTC().Format(TimeLayout))
	}
	return Map(fields)
}
