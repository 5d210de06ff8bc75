package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/creditx-oss/creditx/internal/domain"
)

// Required CSV columns. Extra columns are ignored.
var (
	submissionColumns = []string{
		"submission_id",
		"broker",
		"sector",
		"exposure_limit",
		"debtor_days",
		"financials_attached",
		"years_trading",
		"broker_hit_rate",
		"requested_cov_pct",
		"has_judgements",
	}

	policyColumns = []string{
		"policy_id",
		"broker",
		"sector",
		"current_premium",
		"limit",
		"utilization_pct",
		"claims_last_24m_cnt",
		"claims_ratio_24m",
		"days_to_expiry",
		"requested_change_pct",
	}
)

// ParseBool accepts the relaxed boolean spellings used in uploads.
// Unknown values parse as false.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true
	default:
		return false
	}
}

// header maps column name to field index, verifying required columns.
func header(r *csv.Reader, required []string, fileType string) (map[string]int, error) {
	row, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s CSV is empty or missing a header row", fileType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV header: %w", fileType, err)
	}

	idx := make(map[string]int, len(row))
	for i, name := range row {
		idx[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required columns in %s CSV: %s",
			fileType, strings.Join(missing, ", "))
	}

	return idx, nil
}

func field(row []string, idx map[string]int, name string) (string, error) {
	i := idx[name]
	if i >= len(row) || strings.TrimSpace(row[i]) == "" {
		return "", fmt.Errorf("missing required field: %s", name)
	}
	return strings.TrimSpace(row[i]), nil
}

func floatField(row []string, idx map[string]int, name string) (float64, error) {
	raw, err := field(row, idx, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %q is not a number", name, raw)
	}
	return v, nil
}

func intField(row []string, idx map[string]int, name string) (int, error) {
	raw, err := field(row, idx, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("field %s: %q is not an integer", name, raw)
	}
	return v, nil
}

// ParseSubmissionsCSV reads a submissions CSV and validates every row.
// Row numbers in errors are 1-based data rows, matching what a user
// sees in a spreadsheet below the header.
func ParseSubmissionsCSV(r io.Reader) ([]domain.SubmissionRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	idx, err := header(reader, submissionColumns, "submissions")
	if err != nil {
		return nil, err
	}

	var records []domain.SubmissionRecord
	for rowNum := 1; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", rowNum, err)
		}

		rec, err := submissionFromRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", rowNum, err)
		}
		if err := ValidateSubmission(rec); err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", rowNum, err)
		}
		records = append(records, *rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("submissions CSV has no data rows")
	}
	return records, nil
}

// ParsePoliciesCSV reads a policies CSV and validates every row.
func ParsePoliciesCSV(r io.Reader) ([]domain.PolicyRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	idx, err := header(reader, policyColumns, "policies")
	if err != nil {
		return nil, err
	}

	var records []domain.PolicyRecord
	for rowNum := 1; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", rowNum, err)
		}

		rec, err := policyFromRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", rowNum, err)
		}
		if err := ValidatePolicy(rec); err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", rowNum, err)
		}
		records = append(records, *rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("policies CSV has no data rows")
	}
	return records, nil
}

func submissionFromRow(row []string, idx map[string]int) (*domain.SubmissionRecord, error) {
	rec := &domain.SubmissionRecord{}
	var err error

	if rec.SubmissionID, err = field(row, idx, "submission_id"); err != nil {
		return nil, err
	}
	if rec.Broker, err = field(row, idx, "broker"); err != nil {
		return nil, err
	}
	sector, err := field(row, idx, "sector")
	if err != nil {
		return nil, err
	}
	rec.Sector = domain.Sector(sector)

	if rec.ExposureLimit, err = floatField(row, idx, "exposure_limit"); err != nil {
		return nil, err
	}
	if rec.DebtorDays, err = floatField(row, idx, "debtor_days"); err != nil {
		return nil, err
	}
	raw, err := field(row, idx, "financials_attached")
	if err != nil {
		return nil, err
	}
	rec.FinancialsAttached = ParseBool(raw)

	if rec.YearsTrading, err = floatField(row, idx, "years_trading"); err != nil {
		return nil, err
	}
	if rec.BrokerHitRate, err = floatField(row, idx, "broker_hit_rate"); err != nil {
		return nil, err
	}
	if rec.RequestedCovPct, err = floatField(row, idx, "requested_cov_pct"); err != nil {
		return nil, err
	}
	raw, err = field(row, idx, "has_judgements")
	if err != nil {
		return nil, err
	}
	rec.HasJudgements = ParseBool(raw)

	return rec, nil
}

func policyFromRow(row []string, idx map[string]int) (*domain.PolicyRecord, error) {
	rec := &domain.PolicyRecord{}
	var err error

	if rec.PolicyID, err = field(row, idx, "policy_id"); err != nil {
		return nil, err
	}
	if rec.Broker, err = field(row, idx, "broker"); err != nil {
		return nil, err
	}
	sector, err := field(row, idx, "sector")
	if err != nil {
		return nil, err
	}
	rec.Sector = domain.Sector(sector)

	if rec.CurrentPremium, err = floatField(row, idx, "current_premium"); err != nil {
		return nil, err
	}
	if rec.Limit, err = floatField(row, idx, "limit"); err != nil {
		return nil, err
	}
	if rec.UtilizationPct, err = floatField(row, idx, "utilization_pct"); err != nil {
		return nil, err
	}
	if rec.ClaimsLast24mCnt, err = intField(row, idx, "claims_last_24m_cnt"); err != nil {
		return nil, err
	}
	if rec.ClaimsRatio24m, err = floatField(row, idx, "claims_ratio_24m"); err != nil {
		return nil, err
	}
	if rec.DaysToExpiry, err = floatField(row, idx, "days_to_expiry"); err != nil {
		return nil, err
	}
	if rec.RequestedChangePct, err = floatField(row, idx, "requested_change_pct"); err != nil {
		return nil, err
	}

	return rec, nil
}
