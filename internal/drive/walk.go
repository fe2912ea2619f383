package drive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/msomdec/drive-tagger/internal/domain"
)

// CollectImages returns the ids of every image below folderID.
//
// Folders are walked with an explicit stack and each folder is listed at
// most once, so a folder shortcut pointing back at an ancestor cannot loop.
// Shortcuts are resolved to their targets; unresolvable shortcuts and
// unlistable subfolders are skipped. Only a failure to list folderID
// itself is returned.
func CollectImages(ctx context.Context, store domain.RemoteFileStore, creds *domain.Credentials, folderID string) ([]string, error) {
	var (
		images    []string
		seenImage = make(map[string]bool)
		visited   = map[string]bool{folderID: true}
		stack     = []string{folderID}
	)

	addImage := func(id string) {
		if id != "" && !seenImage[id] {
			seenImage[id] = true
			images = append(images, id)
		}
	}
	pushFolder := func(id string) {
		if id != "" && !visited[id] {
			visited[id] = true
			stack = append(stack, id)
		}
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := store.ListChildren(ctx, creds, current)
		if err != nil {
			if current == folderID {
				return nil, fmt.Errorf("list folder %s: %w", folderID, err)
			}
			slog.Warn("skipping unlistable folder", "folder", current, "error", err)
			continue
		}

		for _, child := range children {
			switch {
			case child.MimeType == domain.MimeShortcut:
				if child.ShortcutTargetID == "" {
					continue
				}
				target, err := store.GetMetadata(ctx, creds, child.ShortcutTargetID)
				if err != nil {
					slog.Warn("skipping unresolvable shortcut", "shortcut", child.ID, "error", err)
					continue
				}
				if isImage(target.MimeType) {
					addImage(target.ID)
				} else if target.MimeType == domain.MimeFolder {
					pushFolder(target.ID)
				}
			case isImage(child.MimeType):
				addImage(child.ID)
			case child.MimeType == domain.MimeFolder:
				pushFolder(child.ID)
			}
		}
	}
	return images, nil
}

func isImage(mime string) bool {
	return strings.HasPrefix(mime, domain.MimeImagePrefix)
}
