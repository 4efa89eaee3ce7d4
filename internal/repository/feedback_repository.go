package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/godilite/feedback-server/internal/repository/models"
)

const facultyLookupChunk = 500

type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository wraps db for driver; driver selects the placeholder
// style queries are rebound to.
func NewFeedbackRepository(db *sql.DB, driver string) *FeedbackRepository {
	return &FeedbackRepository{db: sqlx.NewDb(db, driver)}
}

const recordColumns = `
	r.id, r.student_id, r.department, r.class_name, r.division, r.feedback_round,
	r.submitted_at, r.theory_json, r.practical_json, r.library_json, r.facilities_json,
	s.id, s.gr_no, s.username, s.name, s.department, s.class_name, s.division, s.practical_batch`

// FindRecords returns every record matching the filter with students and
// faculties resolved in two batched queries.
func (s *FeedbackRepository) FindRecords(ctx context.Context, f models.RecordFilter) ([]models.RatingRecord, error) {
	var (
		conds []string
		args  []any
	)
	if f.Department != "" {
		conds = append(conds, "r.department = ?")
		args = append(args, f.Department)
	}
	if f.Class != "" {
		conds = append(conds, "r.class_name = ?")
		args = append(args, f.Class)
	}
	if f.Division != "" {
		conds = append(conds, "r.division = ?")
		args = append(args, f.Division)
	}
	if f.Round != "" {
		conds = append(conds, "r.feedback_round = ?")
		args = append(args, f.Round)
	}
	if !f.From.IsZero() {
		conds = append(conds, "r.submitted_at >= ?")
		args = append(args, f.From.UnixMilli())
	}
	if !f.To.IsZero() {
		conds = append(conds, "r.submitted_at <= ?")
		args = append(args, f.To.UnixMilli())
	}

	query := "SELECT" + recordColumns + `
		FROM feedback_records AS r
		LEFT JOIN students AS s ON s.id = r.student_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY r.submitted_at, r.id"

	records, err := s.queryRecords(ctx, "FindRecords", query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.resolveFaculties(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindRecordsByFaculty returns records whose theory or practical entries
// reference facultyID. An empty round matches every round.
func (s *FeedbackRepository) FindRecordsByFaculty(ctx context.Context, facultyID, round string) ([]models.RatingRecord, error) {
	needle := "%" + likeEscaper.Replace(`"facultyId":`+string(mustJSON(facultyID))) + "%"
	query := "SELECT" + recordColumns + `
		FROM feedback_records AS r
		LEFT JOIN students AS s ON s.id = r.student_id
		WHERE (r.theory_json LIKE ? ESCAPE '\' OR r.practical_json LIKE ? ESCAPE '\')`
	args := []any{needle, needle}
	if round != "" {
		query += " AND r.feedback_round = ?"
		args = append(args, round)
	}
	query += " ORDER BY r.submitted_at, r.id"

	records, err := s.queryRecords(ctx, "FindRecordsByFaculty", query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.resolveFaculties(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// likeEscaper makes a needle match literally under LIKE ... ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *FeedbackRepository) queryRecords(ctx context.Context, op, query string, args ...any) ([]models.RatingRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", op, err)
	}
	defer rows.Close()

	var results []models.RatingRecord
	for rows.Next() {
		var (
			r           models.RatingRecord
			submittedAt int64
			sections    [4]string
			student     [8]sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.StudentID, &r.Department, &r.Class, &r.Division, &r.Round,
			&submittedAt, &sections[0], &sections[1], &sections[2], &sections[3],
			&student[0], &student[1], &student[2], &student[3],
			&student[4], &student[5], &student[6], &student[7],
		); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", op, err)
		}
		r.SubmittedAt = time.UnixMilli(submittedAt).UTC()

		if err := decodeSections(&r, sections); err != nil {
			return nil, fmt.Errorf("decode %s record %s: %w", op, r.ID, err)
		}

		if student[0].Valid {
			r.Student = &models.StudentRef{
				ID:             student[0].String,
				GRNo:           student[1].String,
				Username:       student[2].String,
				Name:           student[3].String,
				Department:     student[4].String,
				Class:          student[5].String,
				Division:       student[6].String,
				PracticalBatch: student[7].String,
			}
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", op, err)
	}
	return results, nil
}

// decodeSections unpacks the theory, practical, library and facilities
// JSON columns in that order.
func decodeSections(r *models.RatingRecord, sections [4]string) error {
	targets := []struct {
		name string
		dest any
	}{
		{"theory", &r.Theory},
		{"practical", &r.Practical},
		{"library", &r.Library},
		{"facilities", &r.Facilities},
	}
	for i, t := range targets {
		if err := json.Unmarshal([]byte(sections[i]), t.dest); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}
	return nil
}

func (s *FeedbackRepository) resolveFaculties(ctx context.Context, records []models.RatingRecord) error {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range records {
		for _, entries := range [][]models.FeedbackEntry{r.Theory, r.Practical} {
			for _, e := range entries {
				if _, ok := seen[e.FacultyID]; ok || e.FacultyID == "" {
					continue
				}
				seen[e.FacultyID] = struct{}{}
				ids = append(ids, e.FacultyID)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	faculties, err := s.GetFaculties(ctx, ids)
	if err != nil {
		return err
	}

	for i := range records {
		attach(records[i].Theory, faculties)
		attach(records[i].Practical, faculties)
	}
	return nil
}

func attach(entries []models.FeedbackEntry, faculties map[string]models.FacultyRef) {
	for i := range entries {
		if f, ok := faculties[entries[i].FacultyID]; ok {
			entries[i].Faculty = &f
		}
	}
}

const facultyColumns = `id, name, subject_name, department, class_name, division, is_practical, is_elective, practical_batches`

type facultyRow struct {
	ID               string `db:"id"`
	Name             string `db:"name"`
	SubjectName      string `db:"subject_name"`
	Department       string `db:"department"`
	Class            string `db:"class_name"`
	Division         string `db:"division"`
	IsPractical      int    `db:"is_practical"`
	IsElective       int    `db:"is_elective"`
	PracticalBatches string `db:"practical_batches"`
}

func (r facultyRow) toModel() (models.FacultyRef, error) {
	f := models.FacultyRef{
		ID:                 r.ID,
		Name:               r.Name,
		SubjectName:        r.SubjectName,
		Department:         r.Department,
		Class:              r.Class,
		Division:           r.Division,
		IsPracticalFaculty: r.IsPractical != 0,
		IsElective:         r.IsElective != 0,
	}
	if r.PracticalBatches != "" {
		if err := json.Unmarshal([]byte(r.PracticalBatches), &f.PracticalBatches); err != nil {
			return models.FacultyRef{}, fmt.Errorf("decode practical batches of %s: %w", r.ID, err)
		}
	}
	return f, nil
}

// GetFaculties loads the given faculty ids in chunks; missing ids are absent
// from the result.
func (s *FeedbackRepository) GetFaculties(ctx context.Context, ids []string) (map[string]models.FacultyRef, error) {
	out := make(map[string]models.FacultyRef, len(ids))
	for start := 0; start < len(ids); start += facultyLookupChunk {
		end := min(start+facultyLookupChunk, len(ids))

		query, args, err := sqlx.In("SELECT "+facultyColumns+" FROM faculties WHERE id IN (?)", ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("build GetFaculties: %w", err)
		}

		var rows []facultyRow
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("query GetFaculties: %w", err)
		}
		for _, row := range rows {
			f, err := row.toModel()
			if err != nil {
				return nil, fmt.Errorf("scan GetFaculties row: %w", err)
			}
			out[f.ID] = f
		}
	}
	return out, nil
}

func (s *FeedbackRepository) GetFaculty(ctx context.Context, id string) (models.FacultyRef, error) {
	var row facultyRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT "+facultyColumns+" FROM faculties WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FacultyRef{}, models.ErrRecordNotFound
		}
		return models.FacultyRef{}, fmt.Errorf("query GetFaculty: %w", err)
	}
	return row.toModel()
}

type studentRow struct {
	ID             string `db:"id"`
	GRNo           string `db:"gr_no"`
	Username       string `db:"username"`
	Name           string `db:"name"`
	Department     string `db:"department"`
	Class          string `db:"class_name"`
	Division       string `db:"division"`
	PracticalBatch string `db:"practical_batch"`
}

func (s *FeedbackRepository) GetStudent(ctx context.Context, id string) (models.StudentRef, error) {
	const query = `
		SELECT id, gr_no, username, name, department, class_name, division, practical_batch
		FROM students WHERE id = ?`

	var row studentRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.StudentRef{}, models.ErrRecordNotFound
		}
		return models.StudentRef{}, fmt.Errorf("query GetStudent: %w", err)
	}
	return models.StudentRef(row), nil
}

// SaveFaculty inserts or replaces a faculty snapshot.
func (s *FeedbackRepository) SaveFaculty(ctx context.Context, f models.FacultyRef) error {
	const query = `
		INSERT INTO faculties (id, name, subject_name, department, class_name, division, is_practical, is_elective, practical_batches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			subject_name = excluded.subject_name,
			department = excluded.department,
			class_name = excluded.class_name,
			division = excluded.division,
			is_practical = excluded.is_practical,
			is_elective = excluded.is_elective,
			practical_batches = excluded.practical_batches`

	batches := f.PracticalBatches
	if batches == nil {
		batches = []string{}
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		f.ID, f.Name, f.SubjectName, f.Department, f.Class, f.Division,
		boolToInt(f.IsPracticalFaculty), boolToInt(f.IsElective), string(mustJSON(batches)))
	if err != nil {
		return fmt.Errorf("exec SaveFaculty: %w", err)
	}
	return nil
}

// SaveStudent inserts or replaces a student snapshot.
func (s *FeedbackRepository) SaveStudent(ctx context.Context, st models.StudentRef) error {
	const query = `
		INSERT INTO students (id, gr_no, username, name, department, class_name, division, practical_batch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			gr_no = excluded.gr_no,
			username = excluded.username,
			name = excluded.name,
			department = excluded.department,
			class_name = excluded.class_name,
			division = excluded.division,
			practical_batch = excluded.practical_batch`

	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		st.ID, st.GRNo, st.Username, st.Name, st.Department, st.Class, st.Division, st.PracticalBatch)
	if err != nil {
		return fmt.Errorf("exec SaveStudent: %w", err)
	}
	return nil
}

// InsertRecord stores rec unless the student already has a record for the
// same round. The unique constraint makes the check atomic; false means the
// insert was skipped as a duplicate.
func (s *FeedbackRepository) InsertRecord(ctx context.Context, rec models.RatingRecord) (bool, error) {
	const query = `
		INSERT INTO feedback_records (
			id, student_id, department, class_name, division, feedback_round,
			submitted_at, theory_json, practical_json, library_json, facilities_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, feedback_round) DO NOTHING`

	theory, practical := rec.Theory, rec.Practical
	if theory == nil {
		theory = []models.FeedbackEntry{}
	}
	if practical == nil {
		practical = []models.FeedbackEntry{}
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		rec.ID, rec.StudentID, rec.Department, rec.Class, rec.Division, rec.Round,
		rec.SubmittedAt.UnixMilli(),
		string(mustJSON(theory)), string(mustJSON(practical)),
		string(mustJSON(rec.Library)), string(mustJSON(rec.Facilities)))
	if err != nil {
		return false, fmt.Errorf("exec InsertRecord: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected InsertRecord: %w", err)
	}
	return n == 1, nil
}

// DeleteRecords removes a student's records for round, or for every round
// when round is empty. clearLegacy also resets the per-student
// feedback_given flags.
func (s *FeedbackRepository) DeleteRecords(ctx context.Context, studentID, round string, clearLegacy bool) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin DeleteRecords: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := "DELETE FROM feedback_records WHERE student_id = ?"
	args := []any{studentID}
	if round != "" {
		query += " AND feedback_round = ?"
		args = append(args, round)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("exec DeleteRecords: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected DeleteRecords: %w", err)
	}

	if clearLegacy {
		const reset = `UPDATE students SET feedback_given_theory = 0, feedback_given_practical = 0 WHERE id = ?`
		if _, err := tx.ExecContext(ctx, tx.Rebind(reset), studentID); err != nil {
			return 0, fmt.Errorf("exec reset legacy flags: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit DeleteRecords: %w", err)
	}
	return n, nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal %T: %v", v, err))
	}
	return b
}
