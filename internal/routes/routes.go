package routes

import (
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/zain100000/ETutor/internal/cache"
	"github.com/zain100000/ETutor/internal/config"
	"github.com/zain100000/ETutor/internal/handlers"
	"github.com/zain100000/ETutor/internal/middleware"
	"github.com/zain100000/ETutor/internal/repository"
	"github.com/zain100000/ETutor/internal/services"
	chatws "github.com/zain100000/ETutor/internal/websocket"
)

// RegisterRoutes wires repositories, services and handlers onto the
// app. redisClient is optional: when nil the chat history cache is
// disabled and every page is served from Postgres.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, redisClient *redisv9.Client) {
	userRepo := repository.NewUserRepository(db)
	studentProfileRepo := repository.NewStudentProfileRepository(db)
	tutorProfileRepo := repository.NewTutorProfileRepository(db)
	chatSessionRepo := repository.NewChatSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	authHandler := handlers.NewAuthHandler(
		db,
		userRepo,
		studentProfileRepo,
		tutorProfileRepo,
		cfg.JWTSecret,
	)
	profileService := services.NewProfileService(studentProfileRepo, tutorProfileRepo)
	profileHandler := handlers.NewProfileHandler(profileService, studentProfileRepo)
	searchService := services.NewTutorSearchService(tutorProfileRepo)
	tutorHandler := handlers.NewTutorHandler(tutorProfileRepo, profileService, searchService)
	subjectHandler := handlers.NewSubjectHandler(tutorProfileRepo)

	chatHub := chatws.NewHub()
	go chatHub.Run()
	chatTx := services.NewPgxChatTx(db)
	var chatService *services.ChatService
	if redisClient != nil {
		historyCache := cache.NewHistoryCache(redisClient, time.Minute)
		chatService = services.NewChatService(chatTx, chatSessionRepo, messageRepo, tutorProfileRepo, historyCache)
	} else {
		chatService = services.NewChatService(chatTx, chatSessionRepo, messageRepo, tutorProfileRepo, nil)
	}
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/forgot-password", authHandler.ForgotPassword)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	users := authProtected.Group("/users")
	users.Get("/profile", profileHandler.GetStudentProfile)
	users.Put("/profile", profileHandler.UpdateStudentProfile)

	tutors := authProtected.Group("/tutors")
	tutors.Get("", tutorHandler.ListTutors)
	tutors.Post("/profile", tutorHandler.CreateTutorProfile)
	tutors.Get("/profile", tutorHandler.GetMyTutorProfile)
	tutors.Put("/profile", tutorHandler.UpdateTutorProfile)
	tutors.Delete("/profile", tutorHandler.DeleteTutorProfile)
	tutors.Get("/recommended", tutorHandler.GetRecommendedTutors)
	tutors.Get("/:id", tutorHandler.GetTutorDetail)
	tutors.Post("/:id/rate", tutorHandler.RateTutor)

	subjects := authProtected.Group("/subjects")
	subjects.Get("", subjectHandler.ListSubjects)
	subjects.Get("/:key/tutors", subjectHandler.ListTutorsBySubject)

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListInbox)
	conversations.Post("", chatHandler.ResolveSession)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}
