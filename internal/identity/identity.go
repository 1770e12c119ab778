package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"trivia-quiz-service/internal/domain"
)

// Fixed always reports the same user.
type Fixed struct {
	id string
}

func NewFixed(id string) *Fixed {
	return &Fixed{id: id}
}

func (f *Fixed) CurrentUser(context.Context) (domain.User, error) {
	if f.id == "" {
		return domain.User{}, domain.ErrMissingUser
	}
	return domain.User{ID: f.id}, nil
}

// Anonymous signs in lazily: the first call mints a random user id and every
// later call returns the same one.
type Anonymous struct {
	once sync.Once
	user domain.User
}

func NewAnonymous() *Anonymous {
	return &Anonymous{}
}

func (a *Anonymous) CurrentUser(ctx context.Context) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	a.once.Do(func() {
		a.user = domain.User{ID: uuid.NewString()}
	})
	return a.user, nil
}
