package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/abhisek/stepwise/internal/store"
)

// ImportConfig describes the layout of a question spreadsheet. Columns are
// spreadsheet letters; options are separated by OptionSeparator.
type ImportConfig struct {
	FilePath  string
	SheetName string // xlsx only
	Subject   string
	StartRow  int // 1-based; rows before it are headers

	TopicColumn      string
	TextColumn       string
	OptionsColumn    string
	CorrectColumn    string // 0-based option index
	DifficultyColumn string // defaults to 1 when blank
	HintColumn       string

	OptionSeparator string
}

// DefaultImportConfig returns the layout
// topic | question | options | correct | difficulty | hint.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SheetName:        "Sheet1",
		Subject:          DefaultSubject,
		StartRow:         2,
		TopicColumn:      "A",
		TextColumn:       "B",
		OptionsColumn:    "C",
		CorrectColumn:    "D",
		DifficultyColumn: "E",
		HintColumn:       "F",
		OptionSeparator:  "|",
	}
}

// ImportResult summarizes an import. Row failures are collected in Errors
// and do not abort the import.
type ImportResult struct {
	TotalProcessed int      `json:"totalProcessed"`
	TopicsCreated  int      `json:"topicsCreated"`
	Created        int      `json:"created"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors,omitempty"`
}

// Import loads questions from an .xlsx or .csv file. Unknown topics are
// created unlocked at the end of the subject's order; a question whose text
// already exists in its topic is skipped.
func (s *Service) Import(ctx context.Context, cfg ImportConfig) (*ImportResult, error) {
	rows, err := readRows(cfg)
	if err != nil {
		return nil, err
	}

	imp, err := s.newImporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	startRow := max(cfg.StartRow, 1)
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < startRow || blank(row) {
			continue
		}
		imp.result.TotalProcessed++
		if err := imp.row(ctx, row); err != nil {
			imp.result.Errors = append(imp.result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
		}
	}

	s.logger.Info("catalog imported",
		"file", cfg.FilePath,
		"processed", imp.result.TotalProcessed,
		"created", imp.result.Created,
		"skipped", imp.result.Skipped,
		"errors", len(imp.result.Errors))
	return imp.result, nil
}

func readRows(cfg ImportConfig) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(cfg.FilePath), ".csv") {
		return readCSV(cfg.FilePath)
	}
	return readExcel(cfg.FilePath, cfg.SheetName)
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
}

type importer struct {
	svc    *Service
	cfg    ImportConfig
	cols   columns
	result *ImportResult

	topics    map[string]int64          // lower-case name -> id
	existing  map[int64]map[string]bool // topic id -> question texts
	nextOrder int
}

type columns struct {
	topic, text, options, correct, difficulty, hint int
}

func (s *Service) newImporter(ctx context.Context, cfg ImportConfig) (*importer, error) {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.OptionSeparator == "" {
		cfg.OptionSeparator = "|"
	}

	var cols columns
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{cfg.TopicColumn, &cols.topic},
		{cfg.TextColumn, &cols.text},
		{cfg.OptionsColumn, &cols.options},
		{cfg.CorrectColumn, &cols.correct},
		{cfg.DifficultyColumn, &cols.difficulty},
		{cfg.HintColumn, &cols.hint},
	} {
		*c.dst = -1
		if c.name == "" {
			continue
		}
		n, err := excelize.ColumnNameToNumber(c.name)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.name, err)
		}
		*c.dst = n - 1
	}
	if cols.topic < 0 || cols.text < 0 || cols.options < 0 || cols.correct < 0 {
		return nil, errors.New("topic, question, options and correct columns are required")
	}

	topics, err := s.repo.Topics(ctx, cfg.Subject)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	imp := &importer{
		svc:      s,
		cfg:      cfg,
		cols:     cols,
		result:   &ImportResult{},
		topics:   make(map[string]int64, len(topics)),
		existing: make(map[int64]map[string]bool),
	}
	for _, t := range topics {
		imp.topics[strings.ToLower(t.Name)] = t.ID
		imp.nextOrder = max(imp.nextOrder, t.Order)
	}
	imp.nextOrder++
	return imp, nil
}

func (imp *importer) row(ctx context.Context, row []string) error {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	topicName := cell(imp.cols.topic)
	if topicName == "" {
		return errors.New("topic is empty")
	}

	var options store.Options
	for _, o := range strings.Split(cell(imp.cols.options), imp.cfg.OptionSeparator) {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}

	correct, err := strconv.Atoi(cell(imp.cols.correct))
	if err != nil {
		return fmt.Errorf("correct option %q: not a number", cell(imp.cols.correct))
	}
	difficulty := 1
	if d := cell(imp.cols.difficulty); d != "" {
		if difficulty, err = strconv.Atoi(d); err != nil {
			return fmt.Errorf("difficulty %q: not a number", d)
		}
	}

	q := store.Question{
		Text:          cell(imp.cols.text),
		Options:       options,
		CorrectOption: correct,
		Difficulty:    difficulty,
		Hint:          cell(imp.cols.hint),
	}
	if err := q.Validate(); err != nil {
		return err
	}

	topicID, err := imp.topic(ctx, topicName)
	if err != nil {
		return err
	}
	seen, err := imp.questionTexts(ctx, topicID)
	if err != nil {
		return err
	}
	if seen[strings.ToLower(q.Text)] {
		imp.result.Skipped++
		return nil
	}

	q.TopicID = topicID
	if err := imp.svc.repo.CreateQuestion(ctx, &q); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	seen[strings.ToLower(q.Text)] = true
	imp.result.Created++
	return nil
}

func (imp *importer) topic(ctx context.Context, name string) (int64, error) {
	if id, ok := imp.topics[strings.ToLower(name)]; ok {
		return id, nil
	}
	t := &store.Topic{Name: name, Subject: imp.cfg.Subject, Order: imp.nextOrder}
	if err := imp.svc.repo.CreateTopic(ctx, t); err != nil {
		return 0, fmt.Errorf("create topic %s: %w", name, err)
	}
	imp.nextOrder++
	imp.topics[strings.ToLower(name)] = t.ID
	imp.existing[t.ID] = make(map[string]bool)
	imp.result.TopicsCreated++
	return t.ID, nil
}

func (imp *importer) questionTexts(ctx context.Context, topicID int64) (map[string]bool, error) {
	if seen, ok := imp.existing[topicID]; ok {
		return seen, nil
	}
	qs, err := imp.svc.repo.QuestionsForTopic(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	seen := make(map[string]bool, len(qs))
	for _, q := range qs {
		seen[strings.ToLower(q.Text)] = true
	}
	imp.existing[topicID] = seen
	return seen, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
