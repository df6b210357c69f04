package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"shopfloor/http-server/blocking/canstart"
	"shopfloor/http-server/blocking/issues"
	schedule_excel "shopfloor/http-server/generate-report/schedule-excel"
	"shopfloor/http-server/operations/cancel"
	"shopfloor/http-server/operations/complete"
	"shopfloor/http-server/operations/generate"
	"shopfloor/http-server/operations/list"
	"shopfloor/http-server/operations/materials"
	"shopfloor/http-server/operations/skip"
	"shopfloor/http-server/operations/start"
	"shopfloor/http-server/orders/release"
	"shopfloor/http-server/products/routing"
	"shopfloor/http-server/resources/conflicts"
	resourceget "shopfloor/http-server/resources/get"
	"shopfloor/http-server/resources/schedule"
	"shopfloor/http-server/schedule/nextslot"
	scheduleop "shopfloor/http-server/schedule/operation"
	"shopfloor/internal/config"
	"shopfloor/internal/middleware/auth"
	"shopfloor/internal/service"
	generate_excel "shopfloor/internal/service/generate-excel"
)

type Services struct {
	Operations   *service.OperationService
	Scheduling   *service.SchedulingService
	Generation   *service.GenerationService
	Availability *service.AvailabilityService
	Excel        *generate_excel.GenerateExcelService
}

func routes(cfg config.Config, log *slog.Logger, s Services) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	//ip пользователя
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Route("/api/production-orders/{po_id}", func(r chi.Router) {
		r.Post("/release", release.ReleaseOrder(log, s.Generation))

		r.Get("/operations", list.ListOperations(log, s.Operations))

		r.Route("/operations/{op_id}", func(r chi.Router) {
			r.Post("/start", start.StartOperation(log, s.Operations))
			r.Post("/complete", complete.CompleteOperation(log, s.Operations))
			r.Post("/skip", skip.SkipOperation(log, s.Operations))
			r.Post("/cancel", cancel.CancelOperation(log, s.Operations))

			// материалы
			r.Get("/materials", materials.GetMaterials(log, s.Operations))
			r.Get("/can-start", canstart.CanStart(log, s.Availability))
			r.Get("/blocking-issues", issues.BlockingIssues(log, s.Availability))

			r.Post("/schedule", scheduleop.ScheduleOperation(log, s.Scheduling))
		})
	})

	router.Route("/api/resources/{id}", func(r chi.Router) {
		r.Get("/", resourceget.GetResource(log, s.Scheduling))
		r.Get("/schedule", schedule.GetResourceSchedule(log, s.Scheduling))
		r.Get("/schedule/excel", schedule_excel.GenerateScheduleExcel(log, s.Excel))
		r.Get("/conflicts", conflicts.CheckConflicts(log, s.Scheduling))
		r.Get("/next-slot", nextslot.NextSlot(log, s.Scheduling))
	})

	router.Get("/api/products/{id}/routing", routing.GetProductRouting(log, s.Generation))

	//adminPanel
	adminRouter := chi.NewRouter()
	adminRouter.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))

	adminRouter.Post("/production-orders/{po_id}/operations/generate", generate.GenerateOperations(log, s.Generation))

	router.Mount("/api/admin", adminRouter)

	if cfg.FrontendDir != "" {
		serveFrontend(router, log, cfg.FrontendDir)
	}

	return router
}

// serveFrontend отдает собранный UI: ассеты как файлы, остальное — index.html.
func serveFrontend(router *chi.Mux, log *slog.Logger, frontendDir string) {
	if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
		log.Warn("Папка фронтенда не найдена, UI не раздается", "path", frontendDir)
		return
	}

	fileServer := http.FileServer(http.Dir(frontendDir))
	router.Handle("/assets/*", fileServer)
	router.Handle("/js/*", fileServer)
	router.Handle("/css/*", fileServer)
	router.Handle("/img/*", fileServer)

	//SPA fallback: любой другой путь → index.html
	router.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(frontendDir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, r, path)
			return
		}
		http.ServeFile(w, r, filepath.Join(frontendDir, "index.html"))
	})
}
