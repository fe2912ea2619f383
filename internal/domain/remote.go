package domain

import (
	"context"
	"time"
)

const (
	MimeFolder      = "application/vnd.google-apps.folder"
	MimeShortcut    = "application/vnd.google-apps.shortcut"
	MimeImagePrefix = "image/"
)

// Credentials is the OAuth token bundle of one signed-in user. It is passed
// explicitly to every remote call; nothing reads it from ambient state.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// FileMetadata is what the Remote File Store knows about one file.
// PreviewLink is empty when the store has no thumbnail for the file.
type FileMetadata struct {
	ID               string
	MimeType         string
	PreviewLink      string
	ShortcutTargetID string
}

// RemoteFileStore looks up files in the user's cloud storage.
// Errors match ErrNotFound, ErrTimeout or ErrRemote.
type RemoteFileStore interface {
	GetMetadata(ctx context.Context, creds *Credentials, fileID string) (*FileMetadata, error)
	ListChildren(ctx context.Context, creds *Credentials, folderID string) ([]FileMetadata, error)
}
