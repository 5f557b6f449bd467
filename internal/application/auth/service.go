package auth

import (
	"errors"

	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/pkg/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginInput for login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionUserShape is the object stored in session and returned by /me.
// ContractorID is set only for users that own a contractor account.
type SessionUserShape struct {
	UserID       string  `json:"user_id"`
	Fullname     string  `json:"fullname"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	ContractorID *string `json:"contractor_id"`
}

// LoggedIn is a verified user plus the contractor account it owns, if any.
type LoggedIn struct {
	User         *domain.User
	ContractorID *string
}

// UserFinder abstracts user lookup by email+password (for production GORM or test doubles).
type UserFinder interface {
	FindByEmailAndPassword(email, password string) (*LoggedIn, error)
}

// GormUserFinder implements UserFinder using GORM and bcrypt.
type GormUserFinder struct{ DB *gorm.DB }

func (g *GormUserFinder) FindByEmailAndPassword(email, password string) (*LoggedIn, error) {
	u, err := LoginUser(g.DB, LoginInput{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	out := &LoggedIn{User: u}
	var acct domain.ContractorAccount
	err = g.DB.Select("contractor_id").Where("user_id = ?", u.UserID).Take(&acct).Error
	switch {
	case err == nil:
		id := acct.ContractorID.String()
		out.ContractorID = &id
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return out, nil
}

// LoginUser finds user by email and verifies password. Returns user for session or error.
func LoginUser(db *gorm.DB, input LoginInput) (*domain.User, error) {
	email := validation.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrCredentialsRequired
	}
	var u domain.User
	if err := db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownEmail
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrUnknownEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrWrongPassword
	}
	return &u, nil
}

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyUser validates session user and returns the shape for /me.
func VerifyUser(sessionUser interface{}) (*SessionUserShape, error) {
	if sessionUser == nil {
		return nil, ErrNotAuthenticated
	}
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return nil, ErrNotAuthenticated
	}
	userID, _ := m["user_id"].(string)
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	out := &SessionUserShape{
		UserID:   userID,
		Fullname: str(m["fullname"]),
		Email:    str(m["email"]),
		Role:     str(m["role"]),
	}
	if c, ok := m["contractor_id"]; ok && c != nil {
		if s, ok := c.(string); ok && s != "" {
			out.ContractorID = &s
		}
	}
	return out, nil
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
