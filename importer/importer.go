// Package importer turns CSV and OFX bank statements into stored
// transactions: parse, normalize, skip duplicates, categorize, persist.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"finamily/categorizer"
	"finamily/models"
)

// maxReportedErrors caps the row errors returned in a summary.
const maxReportedErrors = 50

// Store what an import needs from persistence. Every call is scoped to the
// importing user.
type Store interface {
	MemberActive(ctx context.Context, userID, memberID string) (bool, error)
	BankActive(ctx context.Context, userID, bankID string) (bool, error)
	ActiveRules(ctx context.Context, userID string) ([]categorizer.Rule, error)
	CategoryTypes(ctx context.Context, userID string) (map[string]string, error)
	ImportFingerprints(ctx context.Context, userID, memberID, bankID string) (map[string]struct{}, error)
	// InsertTransaction returns false when the fingerprint already exists.
	InsertTransaction(ctx context.Context, tx *models.Transaction) (bool, error)
}

// CompletedEvent emitted after every import that reached persistence.
type CompletedEvent struct {
	UserID          string    `json:"user_id"`
	MemberID        string    `json:"member_id"`
	BankID          string    `json:"bank_id"`
	Format          Format    `json:"format"`
	Imported        int       `json:"imported"`
	Duplicates      int       `json:"duplicates_skipped"`
	AutoCategorized int       `json:"auto_categorized"`
	FinishedAt      time.Time `json:"finished_at"`
}

// EventPublisher delivers import events to other services.
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, ev CompletedEvent) error
}

// Request one uploaded statement.
type Request struct {
	UserID   string
	MemberID string
	BankID   string
	Filename string
	Body     io.Reader
}

// Summary outcome of one import.
type Summary struct {
	Message           string     `json:"message"`
	Imported          int        `json:"imported"`
	DuplicatesSkipped int        `json:"duplicates_skipped"`
	InvalidRows       int        `json:"invalid_rows"`
	AutoCategorized   int        `json:"auto_categorized"`
	FailedRows        int        `json:"failed_rows"`
	Errors            []RowError `json:"errors"`
}

func (s *Summary) addError(e RowError) {
	s.InvalidRows++
	if len(s.Errors) < maxReportedErrors {
		s.Errors = append(s.Errors, e)
	}
}

func (s *Summary) buildMessage() {
	var b strings.Builder
	fmt.Fprintf(&b, "Importadas %d transações", s.Imported)
	if s.DuplicatesSkipped > 0 {
		fmt.Fprintf(&b, " (%d duplicatas ignoradas)", s.DuplicatesSkipped)
	}
	if s.AutoCategorized > 0 {
		fmt.Fprintf(&b, " (%d auto-categorizadas)", s.AutoCategorized)
	}
	if s.InvalidRows > 0 {
		fmt.Fprintf(&b, " (%d linhas inválidas)", s.InvalidRows)
	}
	if s.FailedRows > 0 {
		fmt.Fprintf(&b, " (%d falhas ao salvar)", s.FailedRows)
	}
	s.Message = b.String()
}

// Service runs imports.
type Service struct {
	store     Store
	parsers   *Registry
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates an import service. A nil logger uses slog.Default.
func NewService(store Store, parsers *Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		parsers: parsers,
		logger:  logger,
		now:     time.Now,
	}
}

// WithPublisher sets the import event publisher.
func (s *Service) WithPublisher(p EventPublisher) *Service {
	s.publisher = p
	return s
}

// Import processes one statement. Rows are handled sequentially in file
// order; a row that fails to persist does not undo earlier rows.
func (s *Service) Import(ctx context.Context, req Request) (*Summary, error) {
	format, err := DetectFormat(req.Filename)
	if err != nil {
		return nil, err
	}
	parser := s.parsers.Get(format)
	if parser == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err := s.checkReferences(ctx, req); err != nil {
		return nil, err
	}

	parsed, err := parser.Parse(req.Body)
	if err != nil {
		return nil, err
	}

	ruleList, err := s.store.ActiveRules(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	rules := categorizer.NewRuleSet(ruleList)
	categoryTypes, err := s.store.CategoryTypes(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	seen, err := s.store.ImportFingerprints(ctx, req.UserID, req.MemberID, req.BankID)
	if err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	if seen == nil {
		seen = make(map[string]struct{})
	}

	summary := &Summary{Errors: []RowError{}}
	for _, e := range parsed.Errors {
		summary.addError(e)
	}

	for _, draft := range parsed.Drafts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := Normalize(draft)
		if err != nil {
			summary.addError(RowError{Line: draft.Line, Reason: err.Error()})
			continue
		}

		fp := Fingerprint(row, req.MemberID, req.BankID)
		if _, dup := seen[fp]; dup {
			summary.DuplicatesSkipped++
			continue
		}

		tx := &models.Transaction{
			UserID:            req.UserID,
			Date:              row.Date,
			Description:       row.Description,
			Amount:            row.Amount,
			Type:              row.Type,
			CategoryID:        categorizer.Resolve(rules, categoryTypes, row.Description, row.Type),
			MemberID:          req.MemberID,
			BankID:            req.BankID,
			ImportFingerprint: fp,
		}

		inserted, err := s.store.InsertTransaction(ctx, tx)
		if err != nil {
			summary.FailedRows++
			s.logger.Error("persist imported row failed",
				"user_id", req.UserID, "line", row.Line, "error", err)
			continue
		}
		seen[fp] = struct{}{}
		if !inserted {
			summary.DuplicatesSkipped++
			continue
		}

		summary.Imported++
		if tx.CategoryID != nil {
			summary.AutoCategorized++
		}
	}

	summary.buildMessage()
	s.logger.Info("statement imported",
		"user_id", req.UserID,
		"format", format,
		"imported", summary.Imported,
		"duplicates", summary.DuplicatesSkipped,
		"invalid", summary.InvalidRows,
		"failed", summary.FailedRows)

	s.publish(ctx, req, format, summary)
	return summary, nil
}

func (s *Service) checkReferences(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.MemberID) == "" || strings.TrimSpace(req.BankID) == "" {
		return fmt.Errorf("%w: membro e banco são obrigatórios", models.ErrUnknownReference)
	}
	ok, err := s.store.MemberActive(ctx, req.UserID, req.MemberID)
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: membro %s", models.ErrUnknownReference, req.MemberID)
	}
	ok, err = s.store.BankActive(ctx, req.UserID, req.BankID)
	if err != nil {
		return fmt.Errorf("load bank: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: banco %s", models.ErrUnknownReference, req.BankID)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, req Request, format Format, summary *Summary) {
	if s.publisher == nil {
		return
	}
	ev := CompletedEvent{
		UserID:          req.UserID,
		MemberID:        req.MemberID,
		BankID:          req.BankID,
		Format:          format,
		Imported:        summary.Imported,
		Duplicates:      summary.DuplicatesSkipped,
		AutoCategorized: summary.AutoCategorized,
		FinishedAt:      s.now().UTC(),
	}
	if err := s.publisher.PublishImportCompleted(ctx, ev); err != nil {
		s.logger.Warn("publish import event failed", "user_id", req.UserID, "error", err)
	}
}
