package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/msomdec/drive-tagger/internal/domain"
)

const DefaultPageSize = 40

// ListingService pages and searches the Tag Store and refreshes the
// thumbnails of the page it returns.
type ListingService struct {
	access  *AccessPolicy
	images  domain.ImageRepository
	refresh *RefreshEngine
}

// NewListingService creates a new ListingService.
func NewListingService(access *AccessPolicy, images domain.ImageRepository, refresh *RefreshEngine) *ListingService {
	return &ListingService{access: access, images: images, refresh: refresh}
}

// Page is one page of the (possibly filtered) image list.
type Page struct {
	Items      []domain.ImageRecord
	Page       int
	PageSize   int
	Total      int
	TotalPages int
	Query      string
	Refresh    *RefreshResult
}

// ListPage returns page (1-based) of the store. With a non-empty query the
// whole store is filtered first and the filtered set is paginated, so the
// page count reflects the matches. Only the returned page is refreshed.
func (s *ListingService) ListPage(ctx context.Context, caller string, creds *domain.Credentials, page, pageSize int, query string) (*Page, error) {
	if err := s.access.Check(caller); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	result := &Page{Page: page, PageSize: pageSize, Query: strings.TrimSpace(query)}

	terms := ParseSearchTerms(query)
	if len(terms) == 0 {
		total, err := s.images.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count images: %w", err)
		}
		items, err := s.images.GetPage(ctx, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("get page: %w", err)
		}
		result.Total, result.Items = total, items
	} else {
		all, err := s.images.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list images: %w", err)
		}
		matched := Search(all, terms)
		result.Total = len(matched)
		result.Items = paginate(matched, page, pageSize)
	}
	result.TotalPages = domain.TotalPages(result.Total, pageSize)

	refreshed, err := s.refresh.Refresh(ctx, creds, staleIDs(result.Items))
	if err != nil {
		return nil, fmt.Errorf("refresh page thumbnails: %w", err)
	}
	for i := range result.Items {
		if url, ok := refreshed.Resolved[result.Items[i].ID]; ok {
			result.Items[i].Thumbnail = url
		}
	}
	result.Refresh = refreshed
	return result, nil
}

// ParseSearchTerms splits a comma-separated query into lowercase terms.
func ParseSearchTerms(query string) []string {
	var terms []string
	for _, t := range strings.Split(strings.ToLower(query), ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// Search keeps the records matching every term. A term matches when it is a
// case-insensitive substring of the id or of at least one tag.
func Search(records []domain.ImageRecord, terms []string) []domain.ImageRecord {
	matched := []domain.ImageRecord{}
	for _, r := range records {
		if matchesAll(r, terms) {
			matched = append(matched, r)
		}
	}
	return matched
}

func matchesAll(r domain.ImageRecord, terms []string) bool {
	id := strings.ToLower(r.ID)
	for _, term := range terms {
		if strings.Contains(id, term) {
			continue
		}
		found := false
		for _, tag := range r.Tags {
			if strings.Contains(strings.ToLower(tag), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func paginate(records []domain.ImageRecord, page, pageSize int) []domain.ImageRecord {
	start := (page - 1) * pageSize
	if start >= len(records) {
		return []domain.ImageRecord{}
	}
	end := min(start+pageSize, len(records))
	return records[start:end]
}
