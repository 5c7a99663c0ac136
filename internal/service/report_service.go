package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
	"github.com/noah-isme/escola-backoffice/pkg/export"
)

type reportRepository interface {
	StudentsWithOpenCharges(ctx context.Context) ([]models.OpenChargeStudent, error)
	TeacherWeeklyLessons(ctx context.Context, from, to time.Time) ([]models.TeacherWeekLessons, error)
}

type statementChargeReader interface {
	ListAll(ctx context.Context, filter models.ChargeFilter) ([]models.ChargeDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var statementHeaders = []string{"Referência", "Descrição", "Vencimento", "Valor", "Pago", "Situação", "Data pagamento"}

// ReportService builds operational reports and charge statements.
type ReportService struct {
	repo      reportRepository
	charges   statementChargeReader
	students  studentReader
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(repo reportRepository, charges statementChargeReader, students studentReader, csv csvRenderer, pdf pdfRenderer, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, charges: charges, students: students, csv: csv, pdf: pdf, validator: validate, logger: logger}
}

// OpenChargeStudents lists students with unpaid charges, largest balance first.
func (s *ReportService) OpenChargeStudents(ctx context.Context, actor models.Actor) ([]models.OpenChargeStudent, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	rows, err := s.repo.StudentsWithOpenCharges(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list open charges")
	}
	return rows, nil
}

// TeacherLessons counts sessions per teacher and ISO week of the month.
func (s *ReportService) TeacherLessons(ctx context.Context, actor models.Actor, month time.Time) (*dto.TeacherLessonsResponse, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	from, to := dates.MonthStart(month), dates.MonthEnd(month)
	weeks, err := s.repo.TeacherWeeklyLessons(ctx, from, to)
	if err != nil {
		return nil, internalError(err, "failed to count lessons")
	}
	return &dto.TeacherLessonsResponse{Month: from.Format("2006-01"), Weeks: weeks}, nil
}

// Statement renders a student's charges as CSV or PDF, with totals.
func (s *ReportService) Statement(ctx context.Context, actor models.Actor, req dto.StatementRequest) (*dto.ExportFile, error) {
	if !actor.Is(models.RoleAdmin) && !actor.IsStudent(req.StudentID) {
		return nil, requireRole(actor, models.RoleAdmin)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid statement request")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}

	filter := models.ChargeFilter{StudentID: req.StudentID}
	if req.From != "" {
		from, err := time.Parse("2006-01", req.From)
		if err != nil {
			return nil, validationError(err, "invalid from month")
		}
		filter.MonthFrom = &from
	}
	if req.To != "" {
		to, err := time.Parse("2006-01", req.To)
		if err != nil {
			return nil, validationError(err, "invalid to month")
		}
		filter.MonthTo = &to
	}
	charges, err := s.charges.ListAll(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to load charges")
	}

	data := statementDataset(charges)
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(student.FullName)), " ", "-")
	switch req.Format {
	case dto.ExportFormatPDF:
		body, err := s.pdf.Render(data, fmt.Sprintf("Extrato financeiro - %s", student.FullName))
		if err != nil {
			return nil, internalError(err, "failed to render statement")
		}
		return &dto.ExportFile{Filename: "extrato-" + slug + ".pdf", ContentType: "application/pdf", Data: body}, nil
	default:
		body, err := s.csv.Render(data)
		if err != nil {
			return nil, internalError(err, "failed to render statement")
		}
		return &dto.ExportFile{Filename: "extrato-" + slug + ".csv", ContentType: "text/csv", Data: body}, nil
	}
}

func statementDataset(charges []models.ChargeDetail) export.Dataset {
	data := export.Dataset{Headers: statementHeaders}
	amount, paid := decimal.Zero, decimal.Zero
	for _, ch := range charges {
		paidDate := ""
		if ch.PaidDate != nil {
			paidDate = ch.PaidDate.Format("02/01/2006")
		}
		data.Rows = append(data.Rows, map[string]string{
			"Referência":     dates.MonthLabel(ch.ReferenceMonth),
			"Descrição":      ch.Description,
			"Vencimento":     ch.DueDate.Format("02/01/2006"),
			"Valor":          ch.Amount.StringFixed(2),
			"Pago":           ch.AmountPaid.StringFixed(2),
			"Situação":       string(ch.Status),
			"Data pagamento": paidDate,
		})
		if ch.Status == models.ChargeStatusCancelled {
			continue
		}
		amount = amount.Add(ch.Amount)
		paid = paid.Add(ch.AmountPaid)
	}
	data.Totals = map[string]string{
		"Descrição": "Total",
		"Valor":     amount.StringFixed(2),
		"Pago":      paid.StringFixed(2),
	}
	return data
}
