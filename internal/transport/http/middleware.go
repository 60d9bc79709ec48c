package http

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/domain"
)

// Заголовки аутентификации. Проверку подписи выполняет внешний шлюз,
// сюда приходят уже проверенные идентификаторы.
const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

type contextKey string

const actorContextKey contextKey = "actor"

// requireActor извлекает пользователя из заголовков запроса.
// Запросы без идентификатора или с неизвестной ролью отклоняются с 401.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+headerUserID+" header")
			return
		}

		role, err := domain.ParseRole(r.Header.Get(headerUserRole))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown role in "+headerUserRole+" header")
			return
		}

		actor := domain.Actor{ID: userID, Role: role}
		ctx := context.WithValue(r.Context(), actorContextKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(domain.Actor)
	return actor, ok
}

// requestLogger пишет структурированную запись на каждый запрос.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  chimw.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}
