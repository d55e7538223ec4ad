package auth

import (
	"net/http"

	"trivia-lab/domain"
	"trivia-lab/errors"
	"trivia-lab/infrastructure/http/wire"

	"github.com/gin-gonic/gin"
)

const (
	AuthorizationHeader = "Authorization"
	HandleHeader        = "X-Participant-Handle"
	authorityKey        = "authority"
)

// Identify resolves the caller when credentials are present.
// Requests without credentials go through as anonymous visitors.
func Identify(resolver *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader(AuthorizationHeader)
		handle := c.GetHeader(HandleHeader)
		if authorization == "" && handle == "" {
			c.Next()
			return
		}
		authority, err := resolver.Resolve(authorization, handle)
		if err != nil {
			abortUnauthenticated(c, err)
			return
		}
		c.Set(authorityKey, authority)
		c.Next()
	}
}

// RequirePrincipal rejects callers without a valid access token.
func RequirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := domain.PrincipalOf(AuthorityFrom(c)); !ok {
			abortUnauthenticated(c, errors.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

// abortUnauthenticated always answers with the unauthenticated code,
// whatever credential check failed.
func abortUnauthenticated(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, wire.ErrorResponse{
		Error: err.Error(),
		Code:  errors.Code(errors.ErrUnauthenticated),
	})
}

// AuthorityFrom returns the authority set by Identify, or nil.
func AuthorityFrom(c *gin.Context) domain.Authority {
	v, ok := c.Get(authorityKey)
	if !ok {
		return nil
	}
	authority, _ := v.(domain.Authority)
	return authority
}
