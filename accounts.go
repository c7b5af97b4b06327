package officehours

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Raytar/officehours/database"
	"github.com/Raytar/officehours/models"
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies secrets.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(secret, digest string) bool
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h BcryptHasher) Compare(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

type SignUpRequest struct {
	StudentNumber int64  `json:"student_number" validate:"gt=0"`
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=4"`
}

type StaffRequest struct {
	StaffNumber int64  `json:"staff_number" validate:"gt=0"`
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=4"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Staff    bool   `json:"staff"`
}

// Identity is a signed-in student or staff member.
type Identity struct {
	Number int64  `json:"number"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Staff  bool   `json:"staff"`
}

// Accounts registers students and staff and verifies their credentials.
type Accounts struct {
	db      *database.Database
	hasher  Hasher
	timeout time.Duration
}

func NewAccounts(db *database.Database, hasher Hasher, timeout time.Duration) *Accounts {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Accounts{db: db, hasher: hasher, timeout: timeout}
}

// SignUp registers a student. The email and student number must be unused.
func (a *Accounts) SignUp(ctx context.Context, req SignUpRequest) (*models.Student, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	digest, err := a.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("sign up: hash password: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	student := &models.Student{
		Number:       req.StudentNumber,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: digest,
	}
	if err := a.db.CreateStudent(ctx, student); err != nil {
		return nil, fail(ctx, "sign up", err)
	}
	return student, nil
}

// AddStaff registers a staff member.
func (a *Accounts) AddStaff(ctx context.Context, req StaffRequest) (*models.Staff, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("add staff: %w", err)
	}
	digest, err := a.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("add staff: hash password: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	staff := &models.Staff{
		Number:       req.StaffNumber,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: digest,
	}
	if err := a.db.CreateStaff(ctx, staff); err != nil {
		return nil, fail(ctx, "add staff", err)
	}
	return staff, nil
}

// SignIn verifies a student's or staff member's credentials. An unknown email
// and a wrong password are both reported as models.ErrBadCredentials.
func (a *Accounts) SignIn(ctx context.Context, req SignInRequest) (*Identity, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var (
		id     Identity
		digest string
	)
	if req.Staff {
		staff, err := a.db.StaffByEmail(ctx, req.Email)
		if err != nil {
			return nil, a.signInError(ctx, err)
		}
		id = Identity{Number: staff.Number, Name: staff.Name, Email: staff.Email, Staff: true}
		digest = staff.PasswordHash
	} else {
		student, err := a.db.StudentByEmail(ctx, req.Email)
		if err != nil {
			return nil, a.signInError(ctx, err)
		}
		id = Identity{Number: student.Number, Name: student.Name, Email: student.Email}
		digest = student.PasswordHash
	}
	if !a.hasher.Compare(req.Password, digest) {
		return nil, fmt.Errorf("sign in: %w", models.ErrBadCredentials)
	}
	return &id, nil
}

func (a *Accounts) signInError(ctx context.Context, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("sign in: %w", models.ErrBadCredentials)
	}
	return fail(ctx, "sign in", err)
}
