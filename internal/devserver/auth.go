package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nebulaglass/nebula-client/pkg/types"
)

const userKey = "user"

// claims are the access token claims, the subject being the user's email
type claims struct {
	jwt.RegisteredClaims
}

func (s *Server) issueToken(email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
		},
	})
	return token.SignedString([]byte(s.config.JWTSecret))
}

func (s *Server) validateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return "", errors.New("invalid token claims")
	}
	return c.Subject, nil
}

func bindCredentials(c *gin.Context) (types.Credentials, bool) {
	var creds types.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return creds, false
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		detail(c, http.StatusUnprocessableEntity, "Email and password are required")
		return creds, false
	}
	return creds, true
}

func (s *Server) register(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		_ = c.Error(err)
		detail(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	if _, err := s.store.createUser(creds.Email, hash); err != nil {
		detail(c, http.StatusConflict, "Email already in use")
		return
	}
	s.logger.Info("User registered", zap.String("email", creds.Email))
	s.respondWithToken(c, creds.Email)
}

func (s *Server) login(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		return
	}

	u, found := s.store.userByEmail(creds.Email)
	if !found || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(creds.Password)) != nil {
		detail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.respondWithToken(c, creds.Email)
}

func (s *Server) respondWithToken(c *gin.Context, email string) {
	token, err := s.issueToken(email)
	if err != nil {
		_ = c.Error(err)
		detail(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	c.JSON(http.StatusOK, types.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// authRequired resolves the bearer token to a user
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, tokenString, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			c.Header("WWW-Authenticate", "Bearer")
			detail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}

		email, err := s.validateToken(tokenString)
		if err != nil {
			detail(c, http.StatusUnauthorized, "Invalid authentication")
			return
		}
		u, ok := s.store.userByEmail(email)
		if !ok {
			detail(c, http.StatusUnauthorized, "User not found")
			return
		}

		c.Set(userKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *user {
	return c.MustGet(userKey).(*user)
}
