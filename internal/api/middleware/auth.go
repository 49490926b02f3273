// auth.go — JWT middleware каталога. Валидирует Bearer token подписью
// из JWKS, извлекает идентификатор пользователя и группы и помещает
// их в контекст запроса как service.Principal.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/prodstore/internal/api/errors"
	"github.com/bigkaa/prodstore/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyPrincipal — аутентифицированный вызывающий в контексте запроса.
const ContextKeyPrincipal contextKey = "principal"

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks        keyfunc.Keyfunc
	issuer      string
	groupsClaim string
	logger      *slog.Logger
}

// NewJWTAuth создаёт JWT middleware с JWKS по указанному URL.
// issuer — ожидаемый issuer JWT (пустой — не проверяется).
// groupsClaim — имя claim со списком групп пользователя.
func NewJWTAuth(jwksURL, issuer, groupsClaim string, logger *slog.Logger) (*JWTAuth, error) {
	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           time.Hour,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:        k,
		issuer:      issuer,
		groupsClaim: groupsClaim,
		logger:      logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256) и помещает
// service.Principal в контекст запроса.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims := jwt.MapClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(30 * time.Second),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			principal, err := j.buildPrincipal(claims)
			if err != nil {
				apierrors.Unauthorized(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// buildPrincipal формирует Principal из claims токена.
// Идентификатор — preferred_username, при отсутствии — sub.
func (j *JWTAuth) buildPrincipal(claims jwt.MapClaims) (service.Principal, error) {
	name, _ := claims["preferred_username"].(string)
	if name == "" {
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return service.Principal{}, fmt.Errorf("отсутствует sub в токене")
		}
		name = sub
	}

	var groups []string
	if raw, ok := claims[j.groupsClaim].([]any); ok {
		for _, g := range raw {
			if s, ok := g.(string); ok {
				groups = append(groups, s)
			}
		}
	}

	return service.Principal{Name: name, Groups: groups}, nil
}

// PrincipalFromContext извлекает Principal из контекста запроса.
// Второе значение — false, если аутентификация не выполнялась.
func PrincipalFromContext(ctx context.Context) (service.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(service.Principal)
	return p, ok
}
