package feed

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/storage"
)

// SetLiked makes viewer's like on an entry match liked. The membership and
// the entry's counter change in one transaction, so after it returns the
// counter equals the number of memberships. Repeating a request that already
// holds is a no-op with Changed set to false. The returned count is the
// committed value.
func (s *Service) SetLiked(ctx context.Context, entryID string, viewer Viewer, liked bool) (res LikeResult, err error) {
	defer s.track("set_liked")(&err)
	if viewer.Anonymous() {
		return LikeResult{}, ErrUnauthenticated
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
		res = LikeResult{EntryID: entryID, Liked: liked}

		doc, err := tx.Get(ctx, EntriesCollection, entryID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		entry, err := decodeEntry(entryID, doc)
		if err != nil {
			return err
		}

		likes := LikesCollection(entryID)
		member := true
		if _, err := tx.Get(ctx, likes, viewer.UserID); errors.Is(err, storage.ErrNotFound) {
			member = false
		} else if err != nil {
			return err
		}

		res.LikeCount = entry.LikeCount
		if member == liked {
			return nil
		}

		if liked {
			tx.Put(likes, viewer.UserID, storage.Document{})
			res.LikeCount++
		} else {
			tx.Delete(likes, viewer.UserID)
			if res.LikeCount > 0 {
				res.LikeCount--
			}
		}
		doc = storage.Clone(doc)
		doc[fieldLikeCount] = res.LikeCount
		tx.Put(EntriesCollection, entryID, doc)
		res.Changed = true
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrMalformedRecord):
		return LikeResult{}, err
	default:
		s.logger.Error("Couldn't commit like.",
			zap.String("entry", entryID), zap.String("user", viewer.UserID), zap.Bool("liked", liked), zap.Error(err))
		return LikeResult{}, storeErr("set liked", err)
	}

	if res.Changed {
		s.metrics.LikeChanged(liked)
	}
	s.logger.Debug("Set like.",
		zap.String("entry", entryID), zap.String("user", viewer.UserID),
		zap.Bool("liked", liked), zap.Bool("changed", res.Changed), zap.Int64("count", res.LikeCount))
	return res, nil
}
