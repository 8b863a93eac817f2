package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keisuke/tabegoro/internal/manageview"
	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/role"
	"github.com/keisuke/tabegoro/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// Prometheusスクレイプ用。nilの場合は/metricsを公開しない。
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	Registrar   UserRegistrar
	AuthConfig  AuthHandlerConfig

	// 権限
	RoleResolver *role.Resolver

	// メニュー・管理ビュー
	MenuService MenuServiceInterface
	ManageStore *manageview.Store
	Sanitizer   security.ContentSanitizerService
	Images      ImageResolver

	// 注文まわり
	CartService    CartServiceInterface
	BookingService BookingServiceInterface
	PaymentService PaymentServiceInterface
	Reviews        ReviewCreator

	// ユーザー
	UserService  UserServiceInterface
	AdminService AdminServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit(General) → SessionLoader
//
// セッションローダーはパススルー: セッションの有無はガードが判定する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))
	r.Use(deps.RateLimiter.GeneralMiddleware())
	r.Use(middleware.NewSessionLoader(deps.SessionFinder))

	authHandler := NewAuthHandler(deps.AuthService, deps.Registrar, deps.ManageStore, deps.AuthConfig)
	menuHandler := NewMenuHandler(deps.MenuService, deps.Sanitizer, deps.Images)
	cartHandler := NewCartHandler(deps.CartService)
	bookingHandler := NewBookingHandler(deps.BookingService)
	paymentHandler := NewPaymentHandler(deps.PaymentService, deps.Reviews, deps.Sanitizer)
	userHandler := NewUserHandler(deps.UserService)
	adminHandler := NewAdminHandler(deps.AdminService, deps.RoleResolver)
	manageHandler := NewManageHandler(deps.ManageStore)

	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// メニュー閲覧は公開
	r.Get("/api/menu", menuHandler.ListMenu)
	r.Get("/api/menu/all", menuHandler.ListAllMenu)

	// サインイン・サインアップ（ブルートフォース対策の専用レート制限を追加）
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.SignInMiddleware())
		r.Use(csrf)
		r.Post("/api/auth/signup", authHandler.SignUp)
		r.Post("/api/auth/signin", authHandler.SignIn)
	})
	r.With(csrf).Post("/api/auth/signout", authHandler.SignOut)

	// --- サインインが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSignIn())
		r.Use(csrf)

		r.Get("/api/auth/me", authHandler.Me)
		r.Put("/api/auth/profile", authHandler.UpdateProfile)
		r.Get("/api/auth/role", adminHandler.RoleState)

		r.Route("/api/carts", func(r chi.Router) {
			r.Get("/", cartHandler.ListCarts)
			r.Post("/", cartHandler.AddCartEntry)
			r.Delete("/{id}", cartHandler.DeleteCartEntry)
		})

		r.Route("/api/bookings", func(r chi.Router) {
			r.Get("/", bookingHandler.ListBookings)
			r.Post("/", bookingHandler.CreateBooking)
			r.Delete("/{id}", bookingHandler.DeleteBooking)
		})

		r.Route("/api/payments", func(r chi.Router) {
			r.Get("/", paymentHandler.ListPayments)
			r.Post("/", paymentHandler.RecordPayment)
			r.Post("/intent", paymentHandler.CreateIntent)
		})

		r.Post("/api/reviews", paymentHandler.CreateReview)

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/profile", userHandler.Profile)
			r.Get("/stats", userHandler.Stats)
		})
	})

	// --- 管理者権限が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSignIn())
		r.Use(middleware.RequireAdmin(deps.RoleResolver))
		r.Use(csrf)

		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/menu", menuHandler.CreateMenuItem)
			r.Patch("/menu/{id}", menuHandler.UpdateMenuItem)

			r.Route("/manage", func(r chi.Router) {
				r.Get("/", manageHandler.Snapshot)
				r.Post("/reload", manageHandler.Reload)
				r.Post("/page", manageHandler.SetPage)
				r.Post("/page-size", manageHandler.SetPageSize)
				r.Post("/search", manageHandler.Search)
				r.Delete("/items/{id}", manageHandler.DeleteItem)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", adminHandler.ListUsers)
				r.Delete("/{id}", adminHandler.DeleteUser)
				r.Patch("/{id}/role", adminHandler.UpdateUserRole)
			})

			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", adminHandler.ListBookings)
				r.Patch("/{id}/status", adminHandler.UpdateBookingStatus)
			})

			r.Get("/stats", adminHandler.Stats)
			r.Get("/order-stats", adminHandler.OrderStats)
		})
	})

	return r
}
