// Package csvimport reads roadmap features from CSV files.
//
// Column names are matched case-insensitively and a few aliases are
// accepted (start/start_date, end/end_date, experiment/is_experiment).
// Only title, start and end are required. Rows without an id get a
// generated one.
package csvimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// dateFormats are tried in order.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"02/01/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

var aliases = map[string][]string{
	"id":             {"id"},
	"title":          {"title", "name"},
	"description":    {"description", "notes"},
	"start":          {"start_date", "start", "startdate"},
	"end":            {"end_date", "end", "enddate"},
	"stage":          {"stage"},
	"priority":       {"priority"},
	"team":           {"team"},
	"experiment":     {"is_experiment", "experiment"},
	"hypothesis":     {"hypothesis"},
	"primary_metric": {"primary_metric", "metric"},
	"canvas_x":       {"canvas_x", "x"},
	"canvas_y":       {"canvas_y", "y"},
}

var required = []string{"title", "start", "end"}

// ParseFile parses the CSV file at path.
func ParseFile(path string) ([]roadmap.Feature, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening CSV file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads features from r. The result is sorted by start date; rows
// with equal start dates keep their file order.
func Parse(r io.Reader) ([]roadmap.Feature, error) {
	const op = "csvimport.Parse"
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidInput, op, "error reading CSV header")
	}
	cols := mapColumns(header)
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, apperr.New(apperr.CodeValidationGap, op, "column %q not found in CSV. Available columns: %v", name, header)
		}
	}

	var features []roadmap.Feature
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInvalidInput, op, "error reading CSV")
		}
		f, err := parseRow(record, cols)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeOf(err), op, fmt.Sprintf("line %d", line))
		}
		features = append(features, f)
	}

	sort.SliceStable(features, func(i, j int) bool {
		return features[i].StartDate.Before(features[j].StartDate)
	})
	return features, nil
}

func mapColumns(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	cols := make(map[string]int)
	for field, names := range aliases {
		for _, name := range names {
			if i, ok := index[name]; ok {
				cols[field] = i
				break
			}
		}
	}
	return cols
}

func parseRow(record []string, cols map[string]int) (roadmap.Feature, error) {
	const op = "csvimport.row"
	get := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	f := roadmap.Feature{
		ID:          get("id"),
		Title:       get("title"),
		Description: get("description"),
		Team:        get("team"),
	}
	if f.ID == "" {
		f.ID = roadmap.NewID()
	}

	var err error
	if f.StartDate, err = parseDate(get("start")); err != nil {
		return roadmap.Feature{}, apperr.Wrap(err, apperr.CodeInvalidInput, op, "start date")
	}
	if f.EndDate, err = parseDate(get("end")); err != nil {
		return roadmap.Feature{}, apperr.Wrap(err, apperr.CodeInvalidInput, op, "end date")
	}

	if s := get("stage"); s != "" {
		if f.Stage, err = roadmap.ParseStage(s); err != nil {
			return roadmap.Feature{}, apperr.Wrap(err, apperr.CodeInvalidInput, op, "stage")
		}
	}
	if p := get("priority"); p != "" {
		if f.Priority, err = roadmap.ParsePriority(p); err != nil {
			return roadmap.Feature{}, apperr.Wrap(err, apperr.CodeInvalidInput, op, "priority")
		}
	}
	if e := get("experiment"); e != "" {
		if f.IsExperiment, err = parseBool(e); err != nil {
			return roadmap.Feature{}, apperr.Wrap(err, apperr.CodeInvalidInput, op, "is_experiment")
		}
	}
	if f.IsExperiment {
		if h, m := get("hypothesis"), get("primary_metric"); h != "" || m != "" {
			f.Experiment = &roadmap.ExperimentMeta{Hypothesis: h, PrimaryMetric: m}
		}
	}

	x, y := get("canvas_x"), get("canvas_y")
	if x != "" && y != "" {
		xv, errX := strconv.ParseFloat(x, 64)
		yv, errY := strconv.ParseFloat(y, 64)
		if err := errors.Join(errX, errY); err != nil {
			return roadmap.Feature{}, apperr.Wrap(err, apperr.CodeInvalidInput, op, "canvas position")
		}
		f.CanvasX, f.CanvasY = roadmap.Float(xv), roadmap.Float(yv)
	}

	f.Normalize()
	if err := f.Validate(); err != nil {
		return roadmap.Feature{}, err
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return roadmap.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q", s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// Writer is the subset of the store used by Import.
type Writer interface {
	CreateFeature(ctx context.Context, f roadmap.Feature) (roadmap.Feature, error)
	UpdateFeature(ctx context.Context, id string, p roadmap.FeaturePatch) (roadmap.Feature, error)
}

// Result counts what Import did.
type Result struct {
	Created int
	Updated int
}

// Import writes features to w. A feature whose id already exists is
// updated in place; its canvas position is only touched when the row
// carries one. Import stops at the first other error.
func Import(ctx context.Context, w Writer, features []roadmap.Feature, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "csvimport"))

	var res Result
	for _, f := range features {
		_, err := w.CreateFeature(ctx, f)
		switch {
		case err == nil:
			res.Created++
			continue
		case !apperr.HasCode(err, apperr.CodeConflict):
			return res, err
		}

		if _, err := w.UpdateFeature(ctx, f.ID, replacePatch(f)); err != nil {
			return res, err
		}
		res.Updated++
		logger.Debug("feature replaced", slog.String("id", f.ID))
	}
	logger.Info("import finished", slog.Int("created", res.Created), slog.Int("updated", res.Updated))
	return res, nil
}

func replacePatch(f roadmap.Feature) roadmap.FeaturePatch {
	p := roadmap.FeaturePatch{
		Title:        &f.Title,
		Description:  &f.Description,
		StartDate:    &f.StartDate,
		EndDate:      &f.EndDate,
		Stage:        &f.Stage,
		Priority:     &f.Priority,
		Team:         &f.Team,
		IsExperiment: &f.IsExperiment,
		Experiment:   f.Experiment,
	}
	if f.CanvasX != nil && f.CanvasY != nil {
		p.CanvasX, p.CanvasY = f.CanvasX, f.CanvasY
	}
	return p
}
