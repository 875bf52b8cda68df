package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/attrition/internal/domain/model"
)

const (
	tableName = "predictions"

	// timestampLayout matches the text timestamps already present in
	// existing history databases.
	timestampLayout = "2006-01-02 15:04:05"

	// maxRecentPrealloc caps the result capacity reserved up front by Recent.
	maxRecentPrealloc = 256
)

// recordColumns are the non-id columns of the predictions table, in the order
// values are bound and scanned.
var recordColumns = []string{
	"timestamp",
	"customer_age",
	"gender",
	"dependent_count",
	"education_level",
	"marital_status",
	"income_category",
	"card_category",
	"months_on_book",
	"total_relationship_count",
	"months_inactive_12_mon",
	"contacts_count_12_mon",
	"credit_limit",
	"total_revolving_bal",
	"avg_open_to_buy",
	"total_amt_chng_q4_q1",
	"total_trans_amt",
	"total_trans_ct",
	"total_ct_chng_q4_q1",
	"avg_utilization_ratio",
	"prediction",
	"confidence",
}

const createTableSQLite = `CREATE TABLE IF NOT EXISTS predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT,
	customer_age INTEGER,
	gender TEXT,
	dependent_count INTEGER,
	education_level TEXT,
	marital_status TEXT,
	income_category TEXT,
	card_category TEXT,
	months_on_book INTEGER,
	total_relationship_count INTEGER,
	months_inactive_12_mon INTEGER,
	contacts_count_12_mon INTEGER,
	credit_limit REAL,
	total_revolving_bal INTEGER,
	avg_open_to_buy REAL,
	total_amt_chng_q4_q1 REAL,
	total_trans_amt INTEGER,
	total_trans_ct INTEGER,
	total_ct_chng_q4_q1 REAL,
	avg_utilization_ratio REAL,
	prediction TEXT,
	confidence REAL
)`

const createTablePostgres = `CREATE TABLE IF NOT EXISTS predictions (
	id BIGINT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	customer_age INTEGER NOT NULL,
	gender TEXT NOT NULL,
	dependent_count INTEGER NOT NULL,
	education_level TEXT NOT NULL,
	marital_status TEXT NOT NULL,
	income_category TEXT NOT NULL,
	card_category TEXT NOT NULL,
	months_on_book INTEGER NOT NULL,
	total_relationship_count INTEGER NOT NULL,
	months_inactive_12_mon INTEGER NOT NULL,
	contacts_count_12_mon INTEGER NOT NULL,
	credit_limit DOUBLE PRECISION NOT NULL,
	total_revolving_bal DOUBLE PRECISION NOT NULL,
	avg_open_to_buy DOUBLE PRECISION NOT NULL,
	total_amt_chng_q4_q1 DOUBLE PRECISION NOT NULL,
	total_trans_amt DOUBLE PRECISION NOT NULL,
	total_trans_ct INTEGER NOT NULL,
	total_ct_chng_q4_q1 DOUBLE PRECISION NOT NULL,
	avg_utilization_ratio DOUBLE PRECISION NOT NULL,
	prediction TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL
)`

// placeholderFunc renders the bind marker for the n-th (1-based) parameter.
type placeholderFunc func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// insertSQL builds the INSERT statement. withID prepends an explicit id column.
func insertSQL(ph placeholderFunc, withID bool) string {
	cols := recordColumns
	if withID {
		cols = append([]string{"id"}, recordColumns...)
	}
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = ph(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// selectRecentSQL selects newest-first with the limit bound to the given marker.
func selectRecentSQL(limitMark string) string {
	return fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id DESC LIMIT %s",
		strings.Join(recordColumns, ", "), tableName, limitMark)
}

const countSQL = "SELECT COUNT(*) FROM " + tableName

// recordArgs flattens a request and result into recordColumns order.
func recordArgs(at time.Time, req model.ScoringRequest, res model.Result) []any {
	return []any{
		at.UTC().Format(timestampLayout),
		req.CustomerAge,
		req.Gender,
		req.DependentCount,
		req.EducationLevel,
		req.MaritalStatus,
		req.IncomeCategory,
		req.CardCategory,
		req.MonthsOnBook,
		req.TotalRelationshipCount,
		req.MonthsInactive12Mon,
		req.ContactsCount12Mon,
		req.CreditLimit,
		req.TotalRevolvingBal,
		req.AvgOpenToBuy,
		req.TotalAmtChngQ4Q1,
		req.TotalTransAmt,
		req.TotalTransCt,
		req.TotalCtChngQ4Q1,
		req.AvgUtilizationRatio,
		res.Label.Stored(),
		res.Confidence,
	}
}

// rowScanner is satisfied by *sql.Rows, *sql.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.AuditRecord, error) {
	var (
		rec       model.AuditRecord
		ts        string
		predicted string
		r         = &rec.Request
	)
	err := row.Scan(
		&rec.ID,
		&ts,
		&r.CustomerAge,
		&r.Gender,
		&r.DependentCount,
		&r.EducationLevel,
		&r.MaritalStatus,
		&r.IncomeCategory,
		&r.CardCategory,
		&r.MonthsOnBook,
		&r.TotalRelationshipCount,
		&r.MonthsInactive12Mon,
		&r.ContactsCount12Mon,
		&r.CreditLimit,
		&r.TotalRevolvingBal,
		&r.AvgOpenToBuy,
		&r.TotalAmtChngQ4Q1,
		&r.TotalTransAmt,
		&r.TotalTransCt,
		&r.TotalCtChngQ4Q1,
		&r.AvgUtilizationRatio,
		&predicted,
		&rec.Result.Confidence,
	)
	if err != nil {
		return model.AuditRecord{}, err
	}

	created, err := time.ParseInLocation(timestampLayout, ts, time.UTC)
	if err != nil {
		return model.AuditRecord{}, fmt.Errorf("record %d: parse timestamp %q: %w", rec.ID, ts, err)
	}
	rec.CreatedAt = created

	label, err := model.ParseStoredLabel(predicted)
	if err != nil {
		return model.AuditRecord{}, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	rec.Result.Label = label
	return rec, nil
}
