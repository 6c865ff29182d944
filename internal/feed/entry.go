package feed

import (
	"fmt"
	"time"

	"pkg.aura.care/moodfeed/internal/storage"
)

// EntriesCollection holds every published entry.
const EntriesCollection = "public_mood_logs"

const (
	fieldAuthorID   = "authorId"
	fieldAuthorName = "authorName"
	fieldMood       = "mood"
	fieldNote       = "note"
	fieldCreatedAt  = "createdAt"
	fieldLikeCount  = "likeCount"
)

// LikesCollection is the membership collection of one entry. Each document
// id is the id of a user who likes the entry; the body is empty.
func LikesCollection(entryID string) string {
	return EntriesCollection + "/" + entryID + "/likes"
}

// Viewer identifies who is calling. The zero value is anonymous.
type Viewer struct {
	UserID string
}

func (v Viewer) Anonymous() bool {
	return v.UserID == ""
}

type Entry struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Mood       Mood      `json:"mood"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LikeCount  int64     `json:"likeCount"`
}

type FeedItem struct {
	Entry          Entry `json:"entry"`
	ViewerHasLiked bool  `json:"likedByMe"`
}

// Draft is what a user submits to publish. ID and CreatedAt are filled in
// when left zero.
type Draft struct {
	ID         string
	Mood       Mood
	Note       string
	AuthorName string
	CreatedAt  time.Time
}

type LikeResult struct {
	EntryID   string `json:"entryId"`
	Liked     bool   `json:"liked"`
	LikeCount int64  `json:"likeCount"`
	// Changed is false when the membership already matched the request.
	Changed bool `json:"changed"`
}

func encodeEntry(e Entry) storage.Document {
	doc := storage.Document{
		fieldAuthorID:  e.AuthorID,
		fieldMood:      string(e.Mood),
		fieldCreatedAt: e.CreatedAt.UnixMilli(),
		fieldLikeCount: e.LikeCount,
	}
	if e.AuthorName != "" {
		doc[fieldAuthorName] = e.AuthorName
	}
	if e.Note != "" {
		doc[fieldNote] = e.Note
	}
	return doc
}

func decodeEntry(id string, doc storage.Document) (Entry, error) {
	e := Entry{ID: id}

	var ok bool
	if e.AuthorID, ok = doc[fieldAuthorID].(string); !ok || e.AuthorID == "" {
		return Entry{}, malformed(id, fieldAuthorID)
	}
	mood, _ := doc[fieldMood].(string)
	if e.Mood = Mood(mood); !e.Mood.Valid() {
		return Entry{}, malformed(id, fieldMood)
	}
	if e.CreatedAt, ok = DecodeTime(doc[fieldCreatedAt]); !ok {
		return Entry{}, malformed(id, fieldCreatedAt)
	}
	if v, present := doc[fieldLikeCount]; present && v != nil {
		if e.LikeCount, ok = toInt64(v); !ok || e.LikeCount < 0 {
			return Entry{}, malformed(id, fieldLikeCount)
		}
	}
	e.AuthorName, _ = doc[fieldAuthorName].(string)
	e.Note, _ = doc[fieldNote].(string)
	return e, nil
}

func malformed(id, field string) error {
	return fmt.Errorf("%w: %s: bad or missing %q", ErrMalformedRecord, id, field)
}

// DecodeTime reads a timestamp stored as Unix milliseconds. Other
// representations are rejected because they would not order correctly next
// to numeric ones.
func DecodeTime(v interface{}) (time.Time, bool) {
	ms, ok := toInt64(v)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), float32(int64(n)) == n
	case float64:
		return int64(n), float64(int64(n)) == n
	}
	return 0, false
}
