package api

import (
	"alcyxob/equipment-app/internal/service"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Constants for context keys
const (
	ContextOperatorKey = "operator"
	OperatorHeader     = "X-Operator"
)

// operatorClaims is the payload of an operator attribution token.
type operatorClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// OperatorMiddleware records who is submitting the request. With a secret it
// requires a valid HS256 bearer token and takes the operator from its claims;
// without one it trusts the X-Operator header, which may be empty.
func OperatorMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSecret == "" {
			c.Set(ContextOperatorKey, strings.TrimSpace(c.GetHeader(OperatorHeader)))
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims := &operatorClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Token has expired")
			} else {
				abortWithError(c, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
			}
			return
		}

		operator := claims.Name
		if operator == "" {
			operator = claims.Subject
		}
		if !token.Valid || operator == "" {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}

		c.Set(ContextOperatorKey, operator)
		c.Next()
	}
}

// IssueOperatorToken signs a token accepted by OperatorMiddleware.
func IssueOperatorToken(jwtSecret, operator string, ttl time.Duration) (string, error) {
	if jwtSecret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	if strings.TrimSpace(operator) == "" {
		return "", errors.New("operator name is required")
	}
	now := time.Now()
	claims := operatorClaims{
		Name: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

func getOperatorFromContext(c *gin.Context) string {
	operator, _ := c.Get(ContextOperatorKey)
	name, _ := operator.(string)
	return name
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// abortWithServiceError maps a service error to its HTTP status and wire code.
func abortWithServiceError(c *gin.Context, err error) {
	status, body := serviceErrorResponse(c, err)
	c.AbortWithStatusJSON(status, body)
}

func serviceErrorResponse(c *gin.Context, err error) (int, gin.H) {
	code := service.ErrorCode(err)
	status := http.StatusInternalServerError
	switch {
	case service.IsValidation(err):
		status = http.StatusBadRequest
	case code == service.CodeNotFound:
		status = http.StatusNotFound
	case service.IsStateConflict(err), code == service.CodeConflict:
		status = http.StatusConflict
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		message = "An unexpected error occurred"
	}
	return status, gin.H{"error": message, "code": code}
}

// parseObjectIDParam reads a hex ObjectID path parameter, aborting with 400 if malformed.
func parseObjectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", name))
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// An empty string is the zero time so the service can report the field as missing.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", service.ErrInvalidField, field)
	}
	return t, nil
}
