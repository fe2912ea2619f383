package handler

import (
	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/service"
	"github.com/msomdec/drive-tagger/internal/thumbnail"
)

// ImageDTO is the JSON representation of an image record. Thumbnail is
// always displayable: unknown thumbnails are sent as the placeholder.
type ImageDTO struct {
	ID        string   `json:"id"`
	Tags      []string `json:"tags"`
	Thumbnail string   `json:"thumbnail"`
	ViewURL   string   `json:"viewUrl"`
}

func toImageDTO(r domain.ImageRecord) ImageDTO {
	thumb := r.Thumbnail
	if thumb == "" {
		thumb = thumbnail.Placeholder
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return ImageDTO{
		ID:        r.ID,
		Tags:      tags,
		Thumbnail: thumb,
		ViewURL:   "https://drive.google.com/file/d/" + r.ID + "/view",
	}
}

func toImageDTOs(records []domain.ImageRecord) []ImageDTO {
	dtos := make([]ImageDTO, len(records))
	for i, r := range records {
		dtos[i] = toImageDTO(r)
	}
	return dtos
}

// RefreshDTO summarises a thumbnail refresh.
type RefreshDTO struct {
	Status    string `json:"status"`
	Refreshed int    `json:"refreshed"`
	Failed    int    `json:"failed"`
}

func toRefreshDTO(r *service.RefreshResult) *RefreshDTO {
	if r == nil {
		return nil
	}
	return &RefreshDTO{Status: string(r.Status), Refreshed: r.Refreshed, Failed: r.Failed}
}

// PageDTO is the JSON representation of a listing page.
type PageDTO struct {
	Items      []ImageDTO  `json:"items"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	Total      int         `json:"total"`
	TotalPages int         `json:"totalPages"`
	Query      string      `json:"query"`
	Refresh    *RefreshDTO `json:"refresh"`
}

func toPageDTO(p *service.Page) PageDTO {
	return PageDTO{
		Items:      toImageDTOs(p.Items),
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		Query:      p.Query,
		Refresh:    toRefreshDTO(p.Refresh),
	}
}

// SnapshotDTO is the JSON representation of a snapshot summary.
type SnapshotDTO struct {
	ID     int64  `json:"id"`
	Label  string `json:"label"`
	Images *int   `json:"images,omitempty"`
}

func toSnapshotDTOs(list []domain.SnapshotSummary) []SnapshotDTO {
	dtos := make([]SnapshotDTO, len(list))
	for i, s := range list {
		dtos[i] = SnapshotDTO{ID: s.ID, Label: s.Label}
	}
	return dtos
}

// RestoreDTO reports a restore.
type RestoreDTO struct {
	SnapshotID    int64  `json:"snapshotId"`
	Label         string `json:"label"`
	Restored      int    `json:"restored"`
	CarriedOver   int    `json:"carriedOver"`
	Refreshed     int    `json:"refreshed"`
	Unresolved    int    `json:"unresolved"`
	RefreshStatus string `json:"refreshStatus"`
}

func toRestoreDTO(r *service.RestoreResult) RestoreDTO {
	return RestoreDTO{
		SnapshotID:    r.SnapshotID,
		Label:         r.Label,
		Restored:      r.Restored,
		CarriedOver:   r.CarriedOver(),
		Refreshed:     r.Refreshed,
		Unresolved:    r.Unresolved,
		RefreshStatus: string(r.RefreshStatus),
	}
}
