package store

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/quillapp/quill-server/internal/domain"
)

// Key prefixes for display entity projections. These are denormalized copies
// of the records tags can point at, used to enrich search results.
const (
	userPrefix   = "user:"   // user:{id} → UserProfile JSON
	authorPrefix = "author:" // author:{id} → Author JSON
	bookPrefix   = "book:"   // book:{id} → Book JSON
	groupPrefix  = "group:"  // group:{id} → Group JSON
	eventPrefix  = "event:"  // event:{id} → Event JSON
)

// PutUserProfile stores a user display projection.
func (s *Store) PutUserProfile(ctx context.Context, u *domain.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set([]byte(userPrefix+u.UserID), u)
}

// GetUserProfile retrieves a user display projection.
func (s *Store) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var u domain.UserProfile
	if err := s.get([]byte(userPrefix+userID), &u); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	return &u, nil
}

// PutAuthor stores an author display projection.
func (s *Store) PutAuthor(ctx context.Context, a *domain.Author) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set([]byte(authorPrefix+a.ID), a)
}

// GetAuthor retrieves an author display projection.
func (s *Store) GetAuthor(ctx context.Context, authorID string) (*domain.Author, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var a domain.Author
	if err := s.get([]byte(authorPrefix+authorID), &a); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	return &a, nil
}

// PutBook stores a book display projection.
func (s *Store) PutBook(ctx context.Context, b *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set([]byte(bookPrefix+b.ID), b)
}

// GetBook retrieves a book display projection.
func (s *Store) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var b domain.Book
	if err := s.get([]byte(bookPrefix+bookID), &b); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	return &b, nil
}

// PutGroup stores a group display projection.
func (s *Store) PutGroup(ctx context.Context, g *domain.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set([]byte(groupPrefix+g.ID), g)
}

// GetGroup retrieves a group display projection.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var g domain.Group
	if err := s.get([]byte(groupPrefix+groupID), &g); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	return &g, nil
}

// PutEvent stores an event display projection.
func (s *Store) PutEvent(ctx context.Context, e *domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set([]byte(eventPrefix+e.ID), e)
}

// GetEvent retrieves an event display projection.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var e domain.Event
	if err := s.get([]byte(eventPrefix+eventID), &e); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	return &e, nil
}
