package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"gorm.io/gorm"

	"github.com/targetspro/adwatch/internal/models"
)

type Claims struct {
	UserID uint
	OrgID  uint
	Role   models.Role
	jwt.StandardClaims
}

// Auth issues and verifies API tokens. The signing secret comes from
// configuration so deployments can rotate it.
type Auth struct {
	db     *gorm.DB
	secret []byte
}

func New(db *gorm.DB, secret string) *Auth {
	return &Auth{db: db, secret: []byte(secret)}
}

func (a *Auth) GenerateToken(user *models.User) (string, error) {
	claims := Claims{
		UserID: user.ID,
		OrgID:  user.OrgID,
		Role:   user.Role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims := &Claims{}

		tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return a.secret, nil
		})

		if err != nil || !tkn.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		var user models.User
		if err := a.db.First(&user, claims.UserID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			c.Abort()
			return
		}

		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "user is inactive"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Set("org_id", user.OrgID)
		c.Set("role", user.Role)
		c.Next()
	}
}

func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("role")
		if exists {
			userRole, _ := value.(models.Role)
			for _, role := range roles {
				if role == userRole {
					c.Next()
					return
				}
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		c.Abort()
	}
}

// OrgID returns the caller's organization set by Middleware.
func OrgID(c *gin.Context) uint {
	if value, exists := c.Get("org_id"); exists {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}
