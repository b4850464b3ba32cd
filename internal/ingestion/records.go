package ingestion

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/cover-letter-rag/internal/schemas"
	"github.com/jonathan/cover-letter-rag/internal/types"
	rootschemas "github.com/jonathan/cover-letter-rag/schemas"
)

// Candidate file names for each record family, tried in order.
var (
	ResumeFiles         = []string{"resumes.csv", "resumes_validated.csv", "resumes_validated (1).csv"}
	JobDescriptionFiles = []string{"job_descriptions.csv", "jd_validated.csv"}
	SkillMappingFiles   = []string{"skill_mappings.csv", "skill_role_master.csv"}
	CoverLetterFiles    = []string{"cover_letters.csv", "covers_validated.csv"}
)

// ErrMissingColumn is returned when a CSV file lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// LoadRecordsDir reads the corpus CSV files from dir.
// Résumé, job description, and skill mapping files are required; cover letters are optional.
func LoadRecordsDir(dir string) (types.RecordSet, error) {
	var set types.RecordSet

	resumes, err := readFamily(dir, ResumeFiles, true, []string{"role", "experience_type", "text"})
	if err != nil {
		return set, err
	}
	for _, row := range resumes {
		set.Resumes = append(set.Resumes, types.ResumeRecord{
			Role:           row["role"],
			ExperienceType: row["experience_type"],
			Text:           row["text"],
		})
	}

	jds, err := readFamily(dir, JobDescriptionFiles, true, []string{"role", "experience_type", "text"})
	if err != nil {
		return set, err
	}
	for _, row := range jds {
		set.JobDescriptions = append(set.JobDescriptions, types.JobDescriptionRecord{
			Role:           row["role"],
			ExperienceType: row["experience_type"],
			JobTitle:       row["job_title"],
			Skills:         row["skills"],
			Text:           row["text"],
		})
	}

	skills, err := readFamily(dir, SkillMappingFiles, true, []string{"role", "experience_type", "skills"})
	if err != nil {
		return set, err
	}
	for _, row := range skills {
		set.SkillMappings = append(set.SkillMappings, types.SkillMappingRecord{
			Role:           row["role"],
			ExperienceType: row["experience_type"],
			Skills:         row["skills"],
			Education:      row["education"],
		})
	}

	covers, err := readFamily(dir, CoverLetterFiles, false, []string{"role", "experience_type", "text"})
	if err != nil {
		return set, err
	}
	for _, row := range covers {
		set.CoverLetters = append(set.CoverLetters, types.CoverLetterRecord{
			Role:           row["role"],
			ExperienceType: row["experience_type"],
			Text:           row["text"],
		})
	}

	return set, nil
}

// LoadRecordsJSON reads a RecordSet from a JSON file after checking it against the records schema.
func LoadRecordsJSON(path string) (types.RecordSet, error) {
	var set types.RecordSet

	data, err := os.ReadFile(path)
	if err != nil {
		return set, fmt.Errorf("failed to read records file %s: %w", path, err)
	}

	validator, err := schemas.Embedded(rootschemas.RecordsFile)
	if err != nil {
		return set, err
	}
	if err := validator.Validate(data); err != nil {
		return set, fmt.Errorf("records file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &set); err != nil {
		return set, fmt.Errorf("failed to parse records file %s: %w", path, err)
	}
	return set, nil
}

// LoadRecords reads records from a directory of CSV files or from a single JSON file.
func LoadRecords(path string) (types.RecordSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.RecordSet{}, fmt.Errorf("records path %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadRecordsDir(path)
	}
	return LoadRecordsJSON(path)
}

func readFamily(dir string, candidates []string, required bool, columns []string) ([]map[string]string, error) {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		rows, err := readCSV(f, columns)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return rows, nil
	}
	if required {
		return nil, fmt.Errorf("no records file found in %s (tried %s)", dir, strings.Join(candidates, ", "))
	}
	return nil, nil
}

// readCSV parses a headed CSV into rows keyed by normalized column name.
func readCSV(r io.Reader, required []string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty CSV file")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		columns[i] = normalizeColumn(h)
		present[columns[i]] = true
	}
	for _, col := range required {
		if !present[col] {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]string, len(columns))
		for i, value := range record {
			if i < len(columns) {
				row[columns[i]] = strings.TrimSpace(value)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// normalizeColumn maps header variants such as "Job Title" onto "job_title".
func normalizeColumn(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}
