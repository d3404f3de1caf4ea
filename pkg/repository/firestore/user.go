package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type userDoc struct {
	ID         string    `firestore:"ID"`
	Email      string    `firestore:"Email"`
	EmailLower string    `firestore:"EmailLower"`
	FullName   string    `firestore:"FullName"`
	IsActive   bool      `firestore:"IsActive"`
	CreatedAt  time.Time `firestore:"CreatedAt"`
	UpdatedAt  time.Time `firestore:"UpdatedAt"`
}

func toUserDoc(u *model.User) *userDoc {
	return &userDoc{
		ID:         string(u.ID),
		Email:      u.Email,
		EmailLower: strings.ToLower(u.Email),
		FullName:   u.FullName,
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func docToUser(doc *firestore.DocumentSnapshot) (*model.User, error) {
	var d userDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return &model.User{
		ID:        model.UserID(d.ID),
		Email:     d.Email,
		FullName:  d.FullName,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type userRepository struct {
	client *firestore.Client
	prefix string
}

func (r *userRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.prefix, CollectionUsers))
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if user.ID == "" {
		user.ID = model.NewUserID()
	}

	if user.Email != "" {
		existing, err := r.GetByEmail(ctx, user.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, goerr.Wrap(model.ErrConflict, "email already registered", goerr.V("id", user.ID))
		}
	}

	now := time.Now().UTC()
	created := *user
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.collection().Doc(string(created.ID)).Create(ctx, toUserDoc(&created)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(model.ErrConflict, "user already exists", goerr.V("id", created.ID))
		}
		return nil, goerr.Wrap(err, "failed to create user", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *userRepository) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}

	u, err := docToUser(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode user", goerr.V("id", id))
	}
	return u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	iter := r.collection().Where("EmailLower", "==", strings.ToLower(email)).Limit(1).Documents(ctx)
	users, err := collect(iter, docToUser)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query user by email")
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	_, err := r.collection().Doc(string(user.ID)).Update(ctx, []firestore.Update{
		{Path: "Email", Value: user.Email},
		{Path: "EmailLower", Value: strings.ToLower(user.Email)},
		{Path: "FullName", Value: user.FullName},
		{Path: "IsActive", Value: user.IsActive},
		{Path: "UpdatedAt", Value: now},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to update user", goerr.V("id", user.ID))
	}

	return r.Get(ctx, user.ID)
}
