package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/middleware"
	"github.com/noah-isme/escola-backoffice/internal/models"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Students    *StudentHandler
	Teachers    *TeacherHandler
	Classes     *ClassHandler
	Enrollments *EnrollmentHandler
	Contracts   *ContractHandler
	Charges     *ChargeHandler
	Jobs        *JobHandler
	Attendance  *AttendanceHandler
	Alerts      *AlertHandler
	Exams       *ExamHandler
	Dashboard   *DashboardHandler
	Reports     *ReportHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the API on the given group. Services enforce the
// fine-grained ownership rules; routes only gate by role.
func RegisterRoutes(api *gin.RouterGroup, tokens middleware.TokenValidator, h Handlers) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	anyone := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)
	staffOrSelf := middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), middleware.RoleSelf)

	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	secured.GET("/auth/me", h.Auth.Me)
	secured.PUT("/auth/password", h.Auth.ChangePassword)
	secured.POST("/users", admin, h.Users.Create)

	students := secured.Group("/students")
	students.GET("", staff, h.Students.List)
	students.POST("", admin, h.Students.Create)
	students.GET("/:id", staffOrSelf, h.Students.Get)
	students.PUT("/:id", admin, h.Students.Update)
	students.PATCH("/:id/status", admin, h.Students.ChangeStatus)
	students.POST("/:id/enrollments/sync", admin, h.Enrollments.SyncStudent)
	students.GET("/:id/attendance", staffOrSelf, h.Students.Attendance)
	students.GET("/:id/exams", staffOrSelf, h.Students.Exams)

	teachers := secured.Group("/teachers")
	teachers.GET("", staff, h.Teachers.List)
	teachers.POST("", admin, h.Teachers.Create)
	teachers.GET("/:id", staffOrSelf, h.Teachers.Get)

	classes := secured.Group("/classes")
	classes.GET("", staff, h.Classes.List)
	classes.POST("", admin, h.Classes.Create)
	classes.PUT("/:id", admin, h.Classes.Update)
	classes.GET("/:id/roster", staff, h.Classes.Roster)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", staff, h.Enrollments.List)
	enrollments.POST("", admin, h.Enrollments.Enroll)
	enrollments.PATCH("/:id/status", admin, h.Enrollments.UpdateStatus)

	contracts := secured.Group("/contracts")
	contracts.GET("", anyone, h.Contracts.List)
	contracts.POST("", admin, h.Contracts.Create)
	contracts.GET("/expiring", admin, h.Contracts.Expiring)
	contracts.GET("/:id", anyone, h.Contracts.Get)
	contracts.PUT("/:id", admin, h.Contracts.Update)
	contracts.POST("/:id/lock", admin, h.Contracts.Lock)
	contracts.POST("/:id/unlock", admin, h.Contracts.Unlock)
	contracts.POST("/:id/cancel", admin, h.Contracts.Cancel)

	charges := secured.Group("/charges")
	charges.GET("", anyone, h.Charges.List)
	charges.POST("", admin, h.Charges.Create)
	charges.POST("/material", admin, h.Charges.SellMaterial)
	charges.POST("/settle", admin, h.Charges.BulkSettle)
	charges.GET("/:id", anyone, h.Charges.Get)
	charges.POST("/:id/settle", admin, h.Charges.Settle)
	secured.POST("/payments", admin, h.Charges.ApplyPayment)

	jobs := secured.Group("/jobs", admin)
	jobs.POST("/charges", h.Jobs.GenerateCharges)
	jobs.POST("/absences", h.Jobs.DetectAbsences)
	jobs.POST("/overdue", h.Jobs.MarkOverdue)

	sessions := secured.Group("/sessions", staff)
	sessions.GET("", h.Attendance.List)
	sessions.POST("", h.Attendance.Record)
	sessions.GET("/:id", h.Attendance.Get)
	sessions.PUT("/:id", h.Attendance.Update)

	alerts := secured.Group("/alerts", staff)
	alerts.GET("", h.Alerts.ListPending)
	alerts.POST("/:id/resolve", h.Alerts.Resolve)

	templates := secured.Group("/exam-templates", staff)
	templates.GET("", h.Exams.ListTemplates)
	templates.POST("", h.Exams.CreateTemplate)
	templates.GET("/:id", h.Exams.GetTemplate)
	templates.POST("/:id/clone", h.Exams.CloneTemplate)
	templates.PUT("/:id/questions/:questionId", h.Exams.UpdateQuestion)

	exams := secured.Group("/exams")
	exams.POST("", staff, h.Exams.Release)
	exams.GET("/:id", anyone, h.Exams.Get)
	exams.GET("/:id/sections/:index", anyone, h.Exams.OpenSection)
	exams.POST("/:id/sections/:index/answers", anyone, h.Exams.SubmitSection)
	exams.POST("/:id/grade", staff, h.Exams.Grade)

	secured.GET("/dashboard", admin, h.Dashboard.Admin)

	reports := secured.Group("/reports")
	reports.GET("/open-charges", admin, h.Reports.OpenCharges)
	reports.GET("/teacher-lessons", admin, h.Reports.TeacherLessons)
	reports.GET("/statement", anyone, h.Reports.Statement)

	secured.GET("/metrics/summary", admin, h.Metrics.Snapshot)
}
