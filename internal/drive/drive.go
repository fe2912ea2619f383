// Package drive adapts the Google Drive v3 API to domain.RemoteFileStore.
package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/msomdec/drive-tagger/internal/domain"
	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	metadataFields = "id, mimeType, thumbnailLink, shortcutDetails"
	childrenFields = "nextPageToken, files(id, mimeType, thumbnailLink, shortcutDetails)"
)

// Client is a RemoteFileStore backed by Google Drive. It holds no user
// state: every call builds its API client from the credentials it is given.
type Client struct {
	oauth *oauth2.Config
	opts  []option.ClientOption
}

// New creates a Client. oauthCfg refreshes expired access tokens; opts are
// appended to every API client (tests point them at a fake endpoint).
func New(oauthCfg *oauth2.Config, opts ...option.ClientOption) *Client {
	return &Client{oauth: oauthCfg, opts: opts}
}

func (c *Client) service(ctx context.Context, creds *domain.Credentials) (*drivev3.Service, error) {
	if creds == nil {
		return nil, fmt.Errorf("%w: no credentials", domain.ErrRemote)
	}
	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
		Expiry:       creds.Expiry,
	}

	var ts oauth2.TokenSource = oauth2.StaticTokenSource(tok)
	if c.oauth != nil {
		ts = c.oauth.TokenSource(ctx, tok)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, c.opts...)
	srv, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create drive service: %w", domain.ErrRemote, err)
	}
	return srv, nil
}

// GetMetadata returns the id, mime type, thumbnail link and shortcut target
// of fileID.
func (c *Client) GetMetadata(ctx context.Context, creds *domain.Credentials, fileID string) (*domain.FileMetadata, error) {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	f, err := srv.Files.Get(fileID).
		Fields(googleapi.Field(metadataFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyError(ctx, fmt.Sprintf("get file %s", fileID), err)
	}
	meta := toMetadata(f)
	return &meta, nil
}

// ListChildren returns the non-trashed direct children of folderID, following
// pagination.
func (c *Client) ListChildren(ctx context.Context, creds *domain.Credentials, folderID string) ([]domain.FileMetadata, error) {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	var children []domain.FileMetadata
	pageToken := ""
	for {
		call := srv.Files.List().
			Q(query).
			Fields(googleapi.Field(childrenFields)).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, classifyError(ctx, fmt.Sprintf("list folder %s", folderID), err)
		}
		for _, f := range list.Files {
			children = append(children, toMetadata(f))
		}
		if list.NextPageToken == "" {
			return children, nil
		}
		pageToken = list.NextPageToken
	}
}

func toMetadata(f *drivev3.File) domain.FileMetadata {
	meta := domain.FileMetadata{
		ID:          f.Id,
		MimeType:    f.MimeType,
		PreviewLink: f.ThumbnailLink,
	}
	if f.ShortcutDetails != nil {
		meta.ShortcutTargetID = f.ShortcutDetails.TargetId
	}
	return meta
}

// classifyError maps API errors onto the domain taxonomy.
func classifyError(ctx context.Context, op string, err error) error {
	var apiErr *googleapi.Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrRemote, err)
	}
}
