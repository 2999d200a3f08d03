// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"
)

// Export formats accepted by ExportList.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatTXT  = "txt"
)

// ExportList is a species list with its entries flattened for export.
type ExportList struct {
	ID      int64         `json:"id" yaml:"id"`
	Title   string        `json:"title" yaml:"title"`
	When    string        `json:"when" yaml:"when"`
	Where   string        `json:"where" yaml:"where"`
	Notes   string        `json:"notes,omitempty" yaml:"notes,omitempty"`
	Owner   string        `json:"owner" yaml:"owner"`
	Entries []ExportEntry `json:"entries" yaml:"entries"`
}

// ExportEntry holds one observation of a list with its name fields.
type ExportEntry struct {
	Position      int      `json:"position" yaml:"position"`
	ObservationID int64    `json:"observation_id" yaml:"observation_id"`
	Name          string   `json:"name" yaml:"name"`
	Author        string   `json:"author,omitempty" yaml:"author,omitempty"`
	Rank          string   `json:"rank" yaml:"rank"`
	Deprecated    bool     `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	When          string   `json:"when" yaml:"when"`
	Where         string   `json:"where" yaml:"where"`
	Notes         string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	Lat           *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Long          *float64 `json:"long,omitempty" yaml:"long,omitempty"`
	Alt           *int     `json:"alt,omitempty" yaml:"alt,omitempty"`
	Specimen      bool     `json:"specimen,omitempty" yaml:"specimen,omitempty"`
}

// ExportList writes a species list to w in the given format: yaml, json,
// csv (one row per entry) or txt (one display name per line).
func (s *Store) ExportList(ctx context.Context, listID int64, format string, w io.Writer) error {
	list, err := s.exportList(ctx, listID)
	if err != nil {
		return err
	}

	switch format {
	case FormatYAML, "":
		data, err := yaml.Marshal(list)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatJSON:
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatCSV:
		return writeCSV(list, w)
	case FormatTXT:
		entries, err := s.ListEntries(ctx, listID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, e.Name.DisplayName()); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q: use yaml, json, csv, or txt", format)
	}
}

func (s *Store) exportList(ctx context.Context, listID int64) (*ExportList, error) {
	list, err := s.ListByID(ctx, listID)
	if err != nil {
		return nil, err
	}
	owner, err := s.UserByID(ctx, list.UserID)
	if err != nil {
		return nil, err
	}
	entries, err := s.ListEntries(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	out := &ExportList{
		ID:      list.ID,
		Title:   list.Title,
		When:    formatDate(list.When),
		Where:   list.Where,
		Notes:   list.Notes,
		Owner:   owner.Login,
		Entries: make([]ExportEntry, len(entries)),
	}
	for i, e := range entries {
		out.Entries[i] = ExportEntry{
			Position:      e.Position,
			ObservationID: e.Observation.ID,
			Name:          e.Name.TextName,
			Author:        e.Name.Author,
			Rank:          string(e.Name.Rank),
			Deprecated:    e.Name.Deprecated,
			When:          formatDate(e.Observation.When),
			Where:         e.Observation.Where,
			Notes:         e.Observation.Notes,
			Lat:           e.Observation.Lat,
			Long:          e.Observation.Long,
			Alt:           e.Observation.Alt,
			Specimen:      e.Observation.Specimen,
		}
	}
	return out, nil
}

var csvHeader = []string{
	"position", "observation_id", "name", "author", "rank", "deprecated",
	"when", "where", "lat", "long", "alt", "specimen", "notes",
}

func writeCSV(list *ExportList, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, e := range list.Entries {
		record := []string{
			strconv.Itoa(e.Position),
			strconv.FormatInt(e.ObservationID, 10),
			e.Name,
			e.Author,
			e.Rank,
			strconv.FormatBool(e.Deprecated),
			e.When,
			e.Where,
			formatFloat(e.Lat),
			formatFloat(e.Long),
			formatInt(e.Alt),
			strconv.FormatBool(e.Specimen),
			e.Notes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func formatFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 4, 64)
}

func formatInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
