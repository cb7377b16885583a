package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/virtuallab/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
	ErrNIMExists   = errors.New("a user with this NIM already exists")
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, nim, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)

		RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
		IsTokenRevoked(ctx context.Context, jti string) (bool, error)
		PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, nim, email string, exclUsers ...User) error
		Register(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id int64) (User, error)
		GetByNIM(ctx context.Context, nim string) (User, error)
		GetByNIMOrEmail(ctx context.Context, nimOrEmail string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)

		RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
		IsTokenRevoked(ctx context.Context, jti string) (bool, error)
		PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func now() time.Time {
	return NowFunc().UTC().Truncate(time.Microsecond)
}

func (svc *service) CheckUniqueness(ctx context.Context, nim, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, nim, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrNIMExists:
			field = "nim"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.CheckUniqueness(ctx, nu.NIM, nu.Email); err != nil {
		return User{}, err
	}

	now := now()
	usr := User{
		NIM:       nu.NIM,
		FullName:  nu.FullName,
		Email:     nu.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByNIM(ctx context.Context, nim string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{NIM: core.CleanString(nim)})
}

func (svc *service) GetByNIMOrEmail(ctx context.Context, nimOrEmail string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{NIMOrEmail: core.CleanString(nimOrEmail)})
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin.SetValid(now())
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	return svc.repo.RevokeToken(ctx, jti, expiresAt.UTC())
}

func (svc *service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return svc.repo.IsTokenRevoked(ctx, jti)
}

func (svc *service) PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error) {
	return svc.repo.PurgeRevokedTokens(ctx, before.UTC())
}
