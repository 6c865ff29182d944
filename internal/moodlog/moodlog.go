// Package moodlog keeps each user's private mood history and lets them share
// a logged mood to the community feed.
package moodlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/feed"
	"pkg.aura.care/moodfeed/internal/storage"
)

const DefaultLimit = 50

// Collection returns the mood log collection of one user.
func Collection(userID string) string {
	return "users/" + userID + "/mood_logs"
}

type Log struct {
	ID        string    `json:"id"`
	Mood      feed.Mood `json:"mood"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Publisher is the part of the feed a shared log is published to.
type Publisher interface {
	Publish(ctx context.Context, viewer feed.Viewer, d feed.Draft) (feed.Entry, error)
}

type Service struct {
	store     storage.Store
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(store storage.Store, publisher Publisher, l *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: publisher,
		logger:    l,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add records a mood for viewer.
func (s *Service) Add(ctx context.Context, viewer feed.Viewer, mood feed.Mood, note string) (Log, error) {
	if viewer.Anonymous() {
		return Log{}, feed.ErrUnauthenticated
	}
	if !mood.Valid() {
		return Log{}, feed.ErrInvalidMood
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > feed.MaxNoteLength {
		return Log{}, feed.ErrNoteTooLong
	}

	l := Log{
		ID:        s.newID(),
		Mood:      mood,
		Note:      note,
		CreatedAt: time.UnixMilli(s.now().UnixMilli()).UTC(),
	}
	doc := storage.Document{
		"mood":      string(l.Mood),
		"createdAt": l.CreatedAt.UnixMilli(),
	}
	if l.Note != "" {
		doc["note"] = l.Note
	}
	if err := s.store.Put(ctx, Collection(viewer.UserID), l.ID, doc); err != nil {
		return Log{}, fmt.Errorf("%w: add mood: %v", feed.ErrStoreUnavailable, err)
	}
	s.logger.Debug("Logged mood.", zap.String("user", viewer.UserID), zap.String("id", l.ID))
	return l, nil
}

// Recent returns viewer's latest logs, newest first. Unreadable logs are skipped.
func (s *Service) Recent(ctx context.Context, viewer feed.Viewer, limit int) ([]Log, error) {
	if viewer.Anonymous() {
		return nil, feed.ErrUnauthenticated
	}
	if limit <= 0 {
		return nil, feed.ErrInvalidLimit
	}
	if limit > feed.MaxFeedLimit {
		limit = feed.MaxFeedLimit
	}
	snaps, err := s.store.Query(ctx, storage.Query{
		Collection: Collection(viewer.UserID),
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recent moods: %v", feed.ErrStoreUnavailable, err)
	}
	logs := make([]Log, 0, len(snaps))
	for _, snap := range snaps {
		l, ok := decode(snap)
		if !ok {
			s.logger.Warn("Skipping malformed mood log.", zap.String("user", viewer.UserID), zap.String("id", snap.ID))
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// Share publishes one of viewer's logs to the feed under the log's id and
// timestamp.
func (s *Service) Share(ctx context.Context, viewer feed.Viewer, logID, authorName string) (feed.Entry, error) {
	if viewer.Anonymous() {
		return feed.Entry{}, feed.ErrUnauthenticated
	}
	doc, err := s.store.Get(ctx, Collection(viewer.UserID), logID)
	if errors.Is(err, storage.ErrNotFound) {
		return feed.Entry{}, feed.ErrEntryNotFound
	}
	if err != nil {
		return feed.Entry{}, fmt.Errorf("%w: get mood: %v", feed.ErrStoreUnavailable, err)
	}
	l, ok := decode(storage.Snapshot{ID: logID, Data: doc})
	if !ok {
		return feed.Entry{}, fmt.Errorf("%w: mood log %s", feed.ErrMalformedRecord, logID)
	}
	return s.publisher.Publish(ctx, viewer, feed.Draft{
		ID:         l.ID,
		Mood:       l.Mood,
		Note:       l.Note,
		AuthorName: authorName,
		CreatedAt:  l.CreatedAt,
	})
}

func decode(snap storage.Snapshot) (Log, bool) {
	raw, _ := snap.Data["mood"].(string)
	mood, err := feed.ParseMood(raw)
	if err != nil {
		return Log{}, false
	}
	createdAt, ok := feed.DecodeTime(snap.Data["createdAt"])
	if !ok {
		return Log{}, false
	}
	note, _ := snap.Data["note"].(string)
	return Log{ID: snap.ID, Mood: mood, Note: note, CreatedAt: createdAt}, true
}
