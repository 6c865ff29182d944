package feed

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"pkg.aura.care/moodfeed/internal/storage"
)

// FetchFeed returns up to limit of the most recent entries, newest first,
// each annotated with whether viewer likes it. Anonymous viewers see every
// item as not liked and cause no membership lookups.
func (s *Service) FetchFeed(ctx context.Context, viewer Viewer, limit int) (items []FeedItem, err error) {
	defer s.track("fetch_feed")(&err)
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	snaps, err := s.store.Query(ctx, storage.Query{
		Collection: EntriesCollection,
		OrderBy:    fieldCreatedAt,
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, storeErr("query feed", err)
	}

	items = make([]FeedItem, 0, len(snaps))
	for _, snap := range snaps {
		e, err := decodeEntry(snap.ID, snap.Data)
		if err != nil {
			s.logger.Warn("Skipping malformed entry.", zap.String("id", snap.ID), zap.Error(err))
			s.metrics.RecordSkipped()
			continue
		}
		items = append(items, FeedItem{Entry: e})
	}
	if viewer.Anonymous() || len(items) == 0 {
		return items, nil
	}

	var g errgroup.Group
	g.SetLimit(s.lookupConcurrency)
	for i := range items {
		i := i
		g.Go(func() error {
			liked, err := s.hasLiked(ctx, items[i].Entry.ID, viewer.UserID)
			if err != nil {
				s.logger.Warn("Couldn't look up like, reporting as not liked.",
					zap.String("entry", items[i].Entry.ID), zap.String("user", viewer.UserID), zap.Error(err))
				s.metrics.LookupDegraded()
				return nil
			}
			items[i].ViewerHasLiked = liked
			return nil
		})
	}
	_ = g.Wait()

	return items, nil
}

// GetEntry returns a single entry with the viewer's like state.
func (s *Service) GetEntry(ctx context.Context, viewer Viewer, id string) (item FeedItem, err error) {
	defer s.track("get_entry")(&err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := s.store.Get(ctx, EntriesCollection, id)
	if errors.Is(err, storage.ErrNotFound) {
		return FeedItem{}, ErrEntryNotFound
	}
	if err != nil {
		return FeedItem{}, storeErr("get entry", err)
	}
	e, err := decodeEntry(id, doc)
	if err != nil {
		return FeedItem{}, err
	}
	item.Entry = e
	if viewer.Anonymous() {
		return item, nil
	}
	if item.ViewerHasLiked, err = s.hasLiked(ctx, id, viewer.UserID); err != nil {
		return FeedItem{}, storeErr("get like", err)
	}
	return item, nil
}

func (s *Service) hasLiked(ctx context.Context, entryID, userID string) (bool, error) {
	_, err := s.store.Get(ctx, LikesCollection(entryID), userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
