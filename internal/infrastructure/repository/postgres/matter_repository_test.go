package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

func newRepoWithMock(t *testing.T, ttl time.Duration) (*MatterRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewMatterRepository(db, ttl)
	repo.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return repo, mock, func() { _ = db.Close() }
}

func sampleMatter() *domain.Matter {
	return &domain.Matter{
		ClientID:             "client-1",
		MatterID:             "matter-1",
		Forum:                "federal_court",
		CompilationProfileID: "fc_jr_application_record",
		Results: []domain.IntakeResult{
			{FileID: "f1", OriginalFilename: "notice.pdf", Classification: domain.DocNoticeOfApplication, TotalPages: 2},
		},
		SourceFiles: []domain.SourceFile{
			{FileID: "f1", Filename: "notice.pdf", ContentType: "application/pdf", Payload: []byte("%PDF-1.4")},
			{FileID: "f2", Filename: "scan.png", Payload: []byte{0x89, 'P'}},
		},
		CreatedAt: time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestPutReplacesRecordInOneTransaction(t *testing.T) {
	repo, mock, done := newRepoWithMock(t, 72*time.Hour)
	defer done()

	m := sampleMatter()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO matters").
		WithArgs("client-1", "matter-1", "federal_court", "fc_jr_application_record", sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sql.NullTime{Time: time.Date(2026, 4, 4, 12, 0, 0, 0, time.UTC), Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM matter_files").
		WithArgs("client-1", "matter-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO matter_files").
		WithArgs("client-1", "matter-1", "f1", 0, "notice.pdf", "application/pdf", []byte("%PDF-1.4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO matter_files").
		WithArgs("client-1", "matter-1", "f2", 1, "scan.png", "", []byte{0x89, 'P'}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Put(context.Background(), m); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPutRollsBackOnFileInsertFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t, 0)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO matters").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM matter_files").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO matter_files").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Put(context.Background(), sampleMatter())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t, 0)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT record").
		WithArgs("client-1", "missing", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Get(context.Background(), domain.MatterKey{ClientID: "client-1", MatterID: "missing"})
	if !domain.IsKind(err, domain.ErrMatterNotFound) {
		t.Fatalf("expected ErrMatterNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetLoadsRecordAndFiles(t *testing.T) {
	repo, mock, done := newRepoWithMock(t, 0)
	defer done()

	m := sampleMatter()
	record := *m
	record.SourceFiles = nil
	raw, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT record").
		WithArgs("client-1", "matter-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow(raw))
	mock.ExpectQuery("SELECT file_id, filename, content_type, payload").
		WithArgs("client-1", "matter-1").
		WillReturnRows(sqlmock.NewRows([]string{"file_id", "filename", "content_type", "payload"}).
			AddRow("f1", "notice.pdf", "application/pdf", []byte("%PDF-1.4")).
			AddRow("f2", "scan.png", "", []byte{0x89, 'P'}))
	mock.ExpectCommit()

	got, err := repo.Get(context.Background(), domain.MatterKey{ClientID: "client-1", MatterID: "matter-1"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Forum != "federal_court" || len(got.Results) != 1 || got.Results[0].TotalPages != 2 {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(got.SourceFiles) != 2 || string(got.SourceFiles[0].Payload) != "%PDF-1.4" {
		t.Fatalf("unexpected source files %+v", got.SourceFiles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	repo, mock, done := newRepoWithMock(t, time.Hour)
	defer done()

	mock.ExpectExec("DELETE FROM matters WHERE expires_at").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 purged rows, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
