package auth

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"groupcart/internal/model"
	"groupcart/internal/repository"
	"groupcart/internal/utils"
	"groupcart/pkg/log"
	pkgutils "groupcart/pkg/utils"
)

// SignupRequest signup request
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse token response
type TokenResponse struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

// AuthService authentication service interface
type AuthService interface {
	// Signup registers a user and signs them in
	Signup(ctx context.Context, req *SignupRequest) (*TokenResponse, error)

	// Login verifies credentials and issues a token
	Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error)

	// ValidateToken validates a token
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)

	// Restore replaces the user table with a loaded snapshot
	Restore(users []model.User)
}

// authService authentication service implementation
type authService struct {
	mu         sync.RWMutex
	users      map[string]*model.User
	order      []string
	jwtManager *utils.JWTManager
	persister  repository.Persister
	cost       int
}

// NewAuthService creates an authentication service
func NewAuthService(jwtManager *utils.JWTManager, persister repository.Persister) AuthService {
	return &authService{
		users:      make(map[string]*model.User),
		jwtManager: jwtManager,
		persister:  persister,
		cost:       bcrypt.DefaultCost,
	}
}

// Signup registers a user
func (s *authService) Signup(ctx context.Context, req *SignupRequest) (*TokenResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, pkgutils.Validation("All fields required")
	}

	// hash outside the lock, bcrypt is slow by construction
	passwordHash, err := s.hashPassword(req.Password)
	if err != nil {
		log.WithError(err).Error("Failed to hash password")
		return nil, pkgutils.WrapError(err, pkgutils.CodeInternalError, "Signup failed")
	}

	user := &model.User{Name: name, Email: email, PasswordHash: passwordHash}

	s.mu.Lock()
	if _, exists := s.users[email]; exists {
		s.mu.Unlock()
		return nil, pkgutils.Duplicate("Email already exists")
	}
	s.users[email] = user
	s.order = append(s.order, email)
	s.persistLocked()
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"email": pkgutils.MaskEmail(email),
	}).Info("User signed up")

	return s.issue(user)
}

// Login logs in a user
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	email := normalizeEmail(req.Email)

	s.mu.RLock()
	user, ok := s.users[email]
	s.mu.RUnlock()

	if !ok || !s.verifyPassword(req.Password, user.PasswordHash) {
		log.WithField("email", pkgutils.MaskEmail(email)).Warn("Login rejected")
		return nil, pkgutils.Validation("Invalid credentials")
	}

	log.WithField("email", pkgutils.MaskEmail(email)).Info("User logged in")
	return s.issue(user)
}

// ValidateToken validates a token
func (s *authService) ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, pkgutils.WrapError(err, pkgutils.CodeUnauthorized, "Invalid token")
	}
	return claims, nil
}

func (s *authService) Restore(users []model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]*model.User, len(users))
	s.order = s.order[:0]
	for i := range users {
		u := users[i]
		u.Email = normalizeEmail(u.Email)
		if u.Email == "" {
			continue
		}
		if _, dup := s.users[u.Email]; dup {
			continue
		}
		s.users[u.Email] = &u
		s.order = append(s.order, u.Email)
	}
}

// Helper methods

func (s *authService) issue(user *model.User) (*TokenResponse, error) {
	token, err := s.jwtManager.GenerateToken(user.Name, user.Email)
	if err != nil {
		log.WithError(err).Error("Failed to generate token")
		return nil, pkgutils.WrapError(err, pkgutils.CodeInternalError, "Failed to generate token")
	}
	return &TokenResponse{Token: token, User: user.Public()}, nil
}

func (s *authService) persistLocked() {
	if s.persister == nil {
		return
	}
	users := make([]model.User, 0, len(s.order))
	for _, email := range s.order {
		users = append(users, *s.users[email])
	}
	s.persister.Persist(repository.SnapshotUsers, users)
}

// hashPassword hashes a password
func (s *authService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyPassword verifies a password
func (s *authService) verifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
