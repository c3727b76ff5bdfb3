package middlewares

import (
	"context"
	"errors"
	"time"

	vd "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofrs/uuid"
	jwtlib "github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/singleflight"

	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/repository"
	"github.com/quartzchat/quartz/router/consts"
	"github.com/quartzchat/quartz/router/extension/ctxkey"
	"github.com/quartzchat/quartz/router/extension/herror"
	"github.com/quartzchat/quartz/service/cache"
	"github.com/quartzchat/quartz/utils/jwt"
)

const (
	authScheme   = "Bearer"
	userCacheTTL = 5 * time.Minute
)

var json = jsoniter.ConfigFastest

// AccessClaims 接続トークンのクレーム
type AccessClaims struct {
	jwtlib.RegisteredClaims
}

// Validate 構造体を検証します
func (c AccessClaims) Validate() error {
	return vd.ValidateStruct(&c,
		vd.Field(&c.Subject, vd.Required, vd.By(func(v interface{}) error {
			if _, err := uuid.FromString(v.(string)); err != nil {
				return errors.New("invalid subject")
			}
			return nil
		})),
	)
}

// UserAuthenticate リクエスト認証ミドルウェア
//
// AuthorizationヘッダーのBearerトークン、またはtokenクエリパラメータ
// (WebSocketクライアント向け)でJWTを受け取り検証します。
// ユーザーの実体はキャッシュ経由で取得し、ミスした場合のみ
// singleflightでリポジトリへ問い合わせます。
func UserAuthenticate(repo repository.Repository, userCache *cache.Cache) echo.MiddlewareFunc {
	var sfUser singleflight.Group

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var raw string
			if ah := c.Request().Header.Get(echo.HeaderAuthorization); len(ah) > 0 {
				l := len(authScheme)
				if !(len(ah) > l+1 && ah[:l] == authScheme) {
					return herror.Unauthorized("invalid authorization scheme")
				}
				raw = ah[l+1:]
			} else if t := c.QueryParam("token"); len(t) > 0 {
				raw = t
			} else {
				return herror.Unauthorized("missing credential")
			}

			var claims AccessClaims
			if err := jwt.Verify(raw, &claims); err != nil {
				return herror.Unauthorized("invalid token")
			}
			if err := claims.Validate(); err != nil {
				return herror.Unauthorized("invalid token")
			}
			uid := uuid.FromStringOrNil(claims.Subject)

			user, err := getUser(c.Request().Context(), repo, userCache, &sfUser, uid)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return herror.Unauthorized("invalid token")
				}
				return herror.InternalServerError(err)
			}

			c.Set(consts.KeyUser, user)
			c.Set(consts.KeyUserID, user.ID)

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, ctxkey.UserID, user.ID)
			ctx = context.WithValue(ctx, ctxkey.UserDisplayName, user.GetResponseDisplayName())
			ctx = context.WithValue(ctx, ctxkey.UserIconURL, user.IconURL)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func getUser(ctx context.Context, repo repository.Repository, userCache *cache.Cache, sf *singleflight.Group, uid uuid.UUID) (*model.User, error) {
	key := "user:" + uid.String()
	if b, ok := userCache.Get(ctx, key); ok {
		user := &model.User{}
		if err := json.Unmarshal(b, user); err == nil {
			return user, nil
		}
	}

	uI, err, _ := sf.Do(uid.String(), func() (interface{}, error) {
		user, err := repo.GetUser(ctx, uid)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(user); err == nil {
			// セッション同様アクセスのたびに寿命を延ばす
			_ = userCache.Set(ctx, key, b, userCacheTTL, cache.Sliding)
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return uI.(*model.User), nil
}
