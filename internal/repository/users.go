package repository

import (
	"time"

	"github.com/medidesk/clinic-server/internal/errs"
	"github.com/medidesk/clinic-server/internal/models"
	"github.com/medidesk/clinic-server/internal/storage"
)

const usersCollection = "Users"

// Users enforces username uniqueness. Passwords arrive here already hashed;
// this repository never sees plaintext.
type Users struct {
	store *storage.Store
}

// NewUsers creates a users repository over the store.
func NewUsers(store *storage.Store) *Users {
	return &Users{store: store}
}

// Create persists a new user with an already-hashed password.
func (r *Users) Create(username, passwordHash string) (*models.User, error) {
	var user models.User

	// the uniqueness check and the insert must run as one step
	err := r.store.WithLock(func() error {
		existing, err := r.FindByUsername(username)
		if err != nil {
			return err
		}
		if existing != nil {
			return &errs.ConflictError{Reason: "this username already exists"}
		}

		user = models.User{
			ID:        nextID(),
			Username:  username,
			Password:  passwordHash,
			CreatedAt: time.Now().UTC(),
		}
		rec, err := storage.Encode(user)
		if err != nil {
			return err
		}
		return r.store.Insert(usersCollection, rec)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns all users in insertion order.
func (r *Users) List() []models.User {
	return decodeAll[models.User](r.store.List(usersCollection))
}

// FindByUsername returns the user with the given username, or nil when no
// such user exists.
func (r *Users) FindByUsername(username string) (*models.User, error) {
	for _, u := range r.List() {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

// FindByCredentials returns the user whose username and password hash both
// match, or nil. Callers must not reveal which of the two was wrong.
func (r *Users) FindByCredentials(username, passwordHash string) (*models.User, error) {
	for _, u := range r.List() {
		if u.Username == username && u.Password == passwordHash {
			return &u, nil
		}
	}
	return nil, nil
}
