package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/repository"
	"github.com/svnapro/campuscore-api/pkg/config"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

type subjectResolverStub struct {
	ids map[string]*string
	err error
}

func (s *subjectResolverStub) SubjectIDByName(ctx context.Context, collegeID *string, name string) (*string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ids[name], nil
}

type attendanceStoreStub struct {
	records map[string]*models.AttendanceRecord

	// conflictInserts forces ErrDuplicateKey on that many inserts. When
	// conflictWriter is set the "concurrent winner's" row materialises in the
	// store at conflict time, mimicking another transaction's committed write.
	conflictInserts int
	conflictWriter  *models.AttendanceRecord

	commitErr  error
	committed  int
	rolledBack int
	inserts    int
	updates    int
}

func newAttendanceStoreStub() *attendanceStoreStub {
	return &attendanceStoreStub{records: map[string]*models.AttendanceRecord{}}
}

func (s *attendanceStoreStub) Begin(ctx context.Context) (AttendanceTx, error) {
	return &attendanceTxStub{store: s}, nil
}

func (s *attendanceStoreStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	rows := make([]models.AttendanceRecord, 0, len(s.records))
	for _, rec := range s.records {
		rows = append(rows, *rec)
	}
	return rows, len(rows), nil
}

func (s *attendanceStoreStub) Delete(ctx context.Context, id string) error {
	for key, rec := range s.records {
		if rec.ID == id {
			delete(s.records, key)
			return nil
		}
	}
	return nil
}

type attendanceTxStub struct {
	store *attendanceStoreStub
}

func (t *attendanceTxStub) FindByKey(ctx context.Context, key models.AttendanceKey) (*models.AttendanceRecord, error) {
	if rec, ok := t.store.records[key.String()]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, nil
}

func (t *attendanceTxStub) FindWidened(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	for _, rec := range t.store.records {
		if rec.StudentID == studentID && rec.Date.Equal(date) {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (t *attendanceTxStub) Insert(ctx context.Context, record *models.AttendanceRecord) error {
	t.store.inserts++
	if t.store.conflictInserts > 0 {
		t.store.conflictInserts--
		if t.store.conflictWriter != nil {
			winner := *t.store.conflictWriter
			t.store.records[winner.Key().String()] = &winner
			t.store.conflictWriter = nil
		}
		return repository.ErrDuplicateKey
	}
	if record.ID == "" {
		record.ID = "rec-" + record.Key().String()
	}
	record.ApprovalStatus = models.ApprovalPending
	copied := *record
	t.store.records[record.Key().String()] = &copied
	return nil
}

func (t *attendanceTxStub) Update(ctx context.Context, record *models.AttendanceRecord) error {
	t.store.updates++
	record.ApprovalStatus = models.ApprovalPending
	record.ApprovedBy = nil
	record.ApprovalNotes = nil
	record.ApprovalDate = nil
	copied := *record
	t.store.records[record.Key().String()] = &copied
	return nil
}

func (t *attendanceTxStub) Commit() error {
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	t.store.committed++
	return nil
}

func (t *attendanceTxStub) Rollback() error {
	t.store.rolledBack++
	return nil
}

func newAttendanceService(store AttendanceStore) *AttendanceService {
	return NewAttendanceService(store, nil, nil, zap.NewNop(), config.AttendanceConfig{MaxBatchSize: 100})
}

func facultyActor() models.ActorContext {
	college := "college-5"
	dept := "dept-1"
	return models.ActorContext{
		UserID:       "faculty-1",
		Role:         models.RoleFaculty,
		CollegeID:    &college,
		DepartmentID: &dept,
	}
}

func markInput(studentID, date, status string, period *int) models.AttendanceInput {
	subject := "subject-3"
	return models.AttendanceInput{
		StudentID: studentID,
		Date:      date,
		SubjectID: &subject,
		Period:    period,
		Status:    status,
	}
}

func TestUpsertBatchInsertsNewRecord(t *testing.T) {
	store := newAttendanceStoreStub()
	svc := newAttendanceService(store)
	period := 1

	today := time.Now().UTC().Format("2006-01-02")
	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		markInput("student-7", today, "present", &period),
	})
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.Empty(t, result.Failed)
	assert.Equal(t, models.AttendanceStatusPresent, result.Succeeded[0].Status)
	assert.Equal(t, models.ApprovalPending, result.Succeeded[0].ApprovalStatus)
	assert.Equal(t, "faculty-1", result.Succeeded[0].MarkedBy)
	assert.Equal(t, 1, store.committed)
	assert.Len(t, store.records, 1)
}

func TestUpsertBatchIsIdempotent(t *testing.T) {
	store := newAttendanceStoreStub()
	svc := newAttendanceService(store)
	period := 1
	today := time.Now().UTC().Format("2006-01-02")
	input := markInput("student-7", today, "present", &period)

	_, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{input})
	require.NoError(t, err)

	// Second identical submission converges to one record with the second
	// call's status: an update, not a duplicate.
	input.Status = "absent"
	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{input})
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.Len(t, store.records, 1)
	assert.Equal(t, models.AttendanceStatusAbsent, result.Succeeded[0].Status)
	assert.Equal(t, 1, store.inserts)
	assert.Equal(t, 1, store.updates)
}

func TestUpsertBatchDuplicateKeyWithinBatch(t *testing.T) {
	store := newAttendanceStoreStub()
	svc := newAttendanceService(store)
	period := 1
	today := time.Now().UTC().Format("2006-01-02")

	// Two rows for the same natural key in one batch: the second finds the
	// first's row inside the shared transaction and updates it.
	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		markInput("student-7", today, "present", &period),
		markInput("student-7", today, "late", &period),
	})
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 2)
	assert.Len(t, store.records, 1)
	for _, rec := range store.records {
		assert.Equal(t, models.AttendanceStatusLate, rec.Status)
	}
}

func TestUpsertBatchDistinctPeriodsAreDistinctKeys(t *testing.T) {
	store := newAttendanceStoreStub()
	svc := newAttendanceService(store)
	p1, p2 := 1, 2
	today := time.Now().UTC().Format("2006-01-02")

	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		markInput("student-7", today, "present", &p1),
		markInput("student-7", today, "present", &p2),
		markInput("student-7", today, "present", nil), // whole-day record is its own key
	})
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 3)
	assert.Len(t, store.records, 3)
}

func TestUpsertBatchRecoversFromInsertConflict(t *testing.T) {
	store := newAttendanceStoreStub()
	period := 1
	today := time.Now().UTC()
	subject := "subject-3"
	store.conflictInserts = 1
	store.conflictWriter = &models.AttendanceRecord{
		ID:             "rec-concurrent",
		StudentID:      "student-7",
		Date:           mustParseDate(t, today.Format("2006-01-02")),
		SubjectID:      &subject,
		Period:         &period,
		Status:         models.AttendanceStatusAbsent,
		MarkedBy:       "faculty-2",
		ApprovalStatus: models.ApprovalApproved,
	}
	svc := newAttendanceService(store)

	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		markInput("student-7", today.Format("2006-01-02"), "present", &period),
	})
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.Empty(t, result.Failed)

	// The conflict was recovered into an update of the concurrent winner's
	// row: same id, our status, approval reset to pending.
	assert.Len(t, store.records, 1)
	assert.Equal(t, "rec-concurrent", result.Succeeded[0].ID)
	assert.Equal(t, models.AttendanceStatusPresent, result.Succeeded[0].Status)
	assert.Equal(t, models.ApprovalPending, result.Succeeded[0].ApprovalStatus)
	assert.Equal(t, "faculty-1", result.Succeeded[0].MarkedBy)
}

func TestUpsertBatchWidenedFallback(t *testing.T) {
	store := newAttendanceStoreStub()
	period := 1
	otherPeriod := 4
	today := time.Now().UTC()
	subject := "subject-9"

	// A row exists for the student and date but under different subject and
	// period qualifiers; the conflict retry misses it and the widened lookup
	// is the last resort that converges.
	existing := &models.AttendanceRecord{
		ID:        "rec-widened",
		StudentID: "student-7",
		Date:      mustParseDate(t, today.Format("2006-01-02")),
		SubjectID: &subject,
		Period:    &otherPeriod,
		Status:    models.AttendanceStatusAbsent,
	}
	store.records[existing.Key().String()] = existing
	store.conflictInserts = 1
	svc := newAttendanceService(store)

	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		markInput("student-7", today.Format("2006-01-02"), "excused", &period),
	})
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.Equal(t, "rec-widened", result.Succeeded[0].ID)
	assert.Equal(t, models.AttendanceStatusExcused, result.Succeeded[0].Status)
}

func TestUpsertBatchSoftFailureWhenNothingConverges(t *testing.T) {
	store := newAttendanceStoreStub()
	store.conflictInserts = 1
	svc := newAttendanceService(store)
	period := 1
	today := time.Now().UTC().Format("2006-01-02")

	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		markInput("student-7", today, "present", &period),
		markInput("student-8", today, "present", &period),
	})
	require.NoError(t, err)
	// The conflicted row is a soft failure; the other row still lands and
	// the batch still commits.
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed[0].Reason, "no record converged")
	assert.Len(t, result.Succeeded, 1)
	assert.Equal(t, 1, store.committed)
}

func TestUpsertBatchPastDateStaffOnly(t *testing.T) {
	store := newAttendanceStoreStub()
	period := 1
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	subject := "subject-3"
	existing := &models.AttendanceRecord{
		ID:        "rec-old",
		StudentID: "student-7",
		Date:      mustParseDate(t, yesterday.Format("2006-01-02")),
		SubjectID: &subject,
		Period:    &period,
		Status:    models.AttendanceStatusPresent,
	}
	store.records[existing.Key().String()] = existing
	svc := newAttendanceService(store)

	student := models.ActorContext{UserID: "student-7", Role: models.RoleStudent}
	result, err := svc.UpsertBatch(context.Background(), student, []models.AttendanceInput{
		markInput("student-7", yesterday.Format("2006-01-02"), "absent", &period),
	})
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed[0].Reason, "staff")
	assert.Empty(t, result.Succeeded)

	// Staff may edit historical dates.
	result, err = svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		markInput("student-7", yesterday.Format("2006-01-02"), "absent", &period),
	})
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 1)
}

func TestUpsertBatchSubjectResolution(t *testing.T) {
	store := newAttendanceStoreStub()
	subjectID := "subject-42"
	resolver := &subjectResolverStub{ids: map[string]*string{"Physics": &subjectID}}
	svc := NewAttendanceService(store, resolver, nil, zap.NewNop(), config.AttendanceConfig{MaxBatchSize: 100})

	name := "Physics"
	today := time.Now().UTC().Format("2006-01-02")
	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		{StudentID: "student-7", Date: today, SubjectName: &name, Status: "present"},
	})
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	require.NotNil(t, result.Succeeded[0].SubjectID)
	assert.Equal(t, "subject-42", *result.Succeeded[0].SubjectID)
}

func TestUpsertBatchSubjectLookupFailureKeysByName(t *testing.T) {
	store := newAttendanceStoreStub()
	core, logs := observer.New(zap.WarnLevel)
	resolver := &subjectResolverStub{err: assert.AnError}
	svc := NewAttendanceService(store, resolver, nil, zap.New(core), config.AttendanceConfig{MaxBatchSize: 100})

	name := "Physics"
	today := time.Now().UTC().Format("2006-01-02")
	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		{StudentID: "student-7", Date: today, SubjectName: &name, Status: "present"},
	})
	require.NoError(t, err)

	// The row still lands under the name-based key and the degraded lookup
	// leaves a warning behind.
	require.Len(t, result.Succeeded, 1)
	assert.Nil(t, result.Succeeded[0].SubjectID)
	require.NotNil(t, result.Succeeded[0].SubjectName)
	assert.Equal(t, "Physics", *result.Succeeded[0].SubjectName)
	assert.Equal(t, 1, logs.FilterMessage("subject name resolution failed, keying by name").Len())
}

func TestUpsertBatchValidationFailuresDoNotAbort(t *testing.T) {
	store := newAttendanceStoreStub()
	svc := newAttendanceService(store)
	period := 1
	today := time.Now().UTC().Format("2006-01-02")

	bad := markInput("student-7", "01-03-2024", "present", &period)
	badStatus := markInput("student-8", today, "vanished", &period)
	good := markInput("student-9", today, "present", &period)

	result, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{bad, badStatus, good})
	require.NoError(t, err)
	assert.Len(t, result.Failed, 2)
	require.Len(t, result.Succeeded, 1)
	assert.Equal(t, "student-9", result.Succeeded[0].StudentID)
}

func TestUpsertBatchCommitFailureIsBatchLevel(t *testing.T) {
	store := newAttendanceStoreStub()
	store.commitErr = assert.AnError
	svc := newAttendanceService(store)
	period := 1
	today := time.Now().UTC().Format("2006-01-02")

	_, err := svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		markInput("student-7", today, "present", &period),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrBatchFailed.Code, appErr.Code)
	assert.Equal(t, 1, store.rolledBack)
}

func TestUpsertBatchSizeLimits(t *testing.T) {
	store := newAttendanceStoreStub()
	svc := NewAttendanceService(store, nil, nil, zap.NewNop(), config.AttendanceConfig{MaxBatchSize: 1})
	period := 1
	today := time.Now().UTC().Format("2006-01-02")

	_, err := svc.UpsertBatch(context.Background(), facultyActor(), nil)
	require.Error(t, err)

	_, err = svc.UpsertBatch(context.Background(), facultyActor(), []models.AttendanceInput{
		markInput("student-7", today, "present", &period),
		markInput("student-8", today, "present", &period),
	})
	require.Error(t, err)
}

func mustParseDate(t *testing.T, value string) time.Time {
	t.Helper()
	date, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return date
}
