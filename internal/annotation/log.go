// Package annotation keeps an append-only log of comments anchored to
// positions on a media timeline.
//
// A log belongs to one media identity and is stored as a single value:
// every append rewrites the whole log, and the last writer wins. It is
// meant for one writer at a time.
package annotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultAuthor is used for comments submitted without a name.
const DefaultAuthor = "Guest"

// ErrCommentNotFound is returned when activating an unknown comment id.
var ErrCommentNotFound = errors.New("comment not found")

// Comment is a message pinned to a timeline position.
type Comment struct {
	ID         string    `json:"id"`
	Author     string    `json:"author"`
	Message    string    `json:"message"`
	AnchorTime float64   `json:"anchorTime"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Timeline is the clock comments are anchored to and activated on.
type Timeline interface {
	CurrentTime() float64
	Seek(t float64)
}

// Key returns the store key holding the log for mediaID.
func Key(mediaID string) string {
	return "comments/" + mediaID
}

// Decode parses a stored log. Callers that must not fail treat an error
// as an empty log.
func Decode(data []byte) ([]Comment, error) {
	var comments []Comment
	if err := json.Unmarshal(data, &comments); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return comments, nil
}

// Options configures a Log.
type Options struct {
	Logger *slog.Logger
	// Now stamps CreatedAt. Default time.Now.
	Now func() time.Time
	// NewID generates comment ids. Default uuid.NewString.
	NewID func() string
}

// Log is the comment log of one media identity.
type Log struct {
	mu       sync.Mutex
	key      string
	store    Store
	timeline Timeline
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	comments []Comment
}

// Open loads the log for mediaID once. Missing, unreadable or malformed
// data yields an empty log; Open never fails.
func Open(ctx context.Context, store Store, mediaID string, timeline Timeline, opts Options) *Log {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	l := &Log{
		key:      Key(mediaID),
		store:    store,
		timeline: timeline,
		log:      opts.Logger,
		now:      opts.Now,
		newID:    opts.NewID,
	}

	data, ok, err := store.Get(ctx, l.key)
	switch {
	case err != nil:
		l.log.Warn("comment log unreadable, starting empty",
			slog.String("media_id", mediaID),
			slog.String("error", err.Error()))
	case !ok:
	default:
		comments, err := Decode(data)
		if err != nil {
			l.log.Warn("comment log malformed, starting empty",
				slog.String("media_id", mediaID),
				slog.String("error", err.Error()))
			break
		}
		l.comments = comments
	}
	return l
}

// Add appends a comment anchored at the timeline's current position and
// persists the whole log. A blank message is ignored and added is false.
// A blank author becomes DefaultAuthor. When persisting fails the comment
// stays in the in-memory log and the error is returned.
func (l *Log) Add(ctx context.Context, author, message string) (c Comment, added bool, err error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Comment{}, false, nil
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = DefaultAuthor
	}

	c = Comment{
		ID:         l.newID(),
		Author:     author,
		Message:    message,
		AnchorTime: l.timeline.CurrentTime(),
		CreatedAt:  l.now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.comments = append(l.comments, c)
	if err := l.persistLocked(ctx); err != nil {
		return c, true, err
	}
	return c, true, nil
}

// Activate seeks the timeline to the comment's anchor. Play state is left
// as it was.
func (l *Log) Activate(c Comment) {
	l.timeline.Seek(c.AnchorTime)
}

// ActivateByID activates the comment with the given id.
func (l *Log) ActivateByID(id string) (Comment, error) {
	l.mu.Lock()
	var found *Comment
	for i := range l.comments {
		if l.comments[i].ID == id {
			c := l.comments[i]
			found = &c
			break
		}
	}
	l.mu.Unlock()

	if found == nil {
		return Comment{}, ErrCommentNotFound
	}
	l.Activate(*found)
	return *found, nil
}

// Comments returns the log in creation order.
func (l *Log) Comments() []Comment {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Comment, len(l.comments))
	copy(out, l.comments)
	return out
}

// Len returns the number of comments.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.comments)
}

func (l *Log) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(l.comments)
	if err != nil {
		return fmt.Errorf("encode comments: %w", err)
	}
	if err := l.store.Put(ctx, l.key, data); err != nil {
		return fmt.Errorf("persist comments: %w", err)
	}
	return nil
}
