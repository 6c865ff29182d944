package feed

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/storage"
)

// Publish stores a new entry authored by viewer with no likes.
//
// Publishing an id that already exists fails with ErrAlreadyPublished
// instead of overwriting it, including when two publishes of the same id
// race.
func (s *Service) Publish(ctx context.Context, viewer Viewer, d Draft) (e Entry, err error) {
	defer s.track("publish")(&err)
	if viewer.Anonymous() {
		return Entry{}, ErrUnauthenticated
	}
	if e, err = s.prepare(viewer, d); err != nil {
		return Entry{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
		_, err := tx.Get(ctx, EntriesCollection, e.ID)
		switch {
		case err == nil:
			return ErrAlreadyPublished
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		tx.Create(EntriesCollection, e.ID, encodeEntry(e))
		return nil
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		err = ErrAlreadyPublished
	}
	if errors.Is(err, ErrAlreadyPublished) {
		return Entry{}, err
	}
	if err != nil {
		s.logger.Error("Couldn't publish entry.", zap.String("id", e.ID), zap.Error(err))
		return Entry{}, storeErr("publish", err)
	}

	s.logger.Debug("Published entry.", zap.String("id", e.ID), zap.String("author", e.AuthorID), zap.String("mood", string(e.Mood)))
	return e, nil
}

func (s *Service) prepare(viewer Viewer, d Draft) (Entry, error) {
	if !d.Mood.Valid() {
		return Entry{}, ErrInvalidMood
	}
	note := strings.TrimSpace(d.Note)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return Entry{}, ErrNoteTooLong
	}
	if note != "" && s.noteFilter != nil && s.noteFilter.MatchString(note) {
		return Entry{}, ErrNoteRejected
	}

	e := Entry{
		ID:         d.ID,
		AuthorID:   viewer.UserID,
		AuthorName: strings.TrimSpace(d.AuthorName),
		Mood:       d.Mood,
		Note:       note,
		CreatedAt:  d.CreatedAt,
	}
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	// stored with millisecond precision
	e.CreatedAt = time.UnixMilli(e.CreatedAt.UnixMilli()).UTC()
	return e, nil
}
