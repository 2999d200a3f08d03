// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lists

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/pdiddy/mycolist/internal/materialize"
	"github.com/pdiddy/mycolist/internal/names"
	"github.com/pdiddy/mycolist/internal/resolve"
)

// maxUpload bounds an uploaded list file.
const maxUpload = 4 << 20

// Upload decodes an uploaded list file into name lines. UTF-8 and UTF-16
// files with a byte order mark are accepted; blank lines are dropped.
func Upload(ctx context.Context, r io.Reader) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(io.LimitReader(decoded, maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("reading uploaded list: %w", err)
	}
	if len(data) > maxUpload {
		return nil, fmt.Errorf("uploaded list exceeds %d bytes", maxUpload)
	}
	return names.SplitLines(string(data)), nil
}

// SubmissionFile is the on-disk form of a submission. A rejected
// submission is saved with its pending prompts; the submitter fills in the
// choices section and resumes it.
type SubmissionFile struct {
	List       ListDetails                `yaml:"list"`
	Submission resolve.Submission         `yaml:"submission"`
	Member     materialize.Member         `yaml:"member,omitempty"`
	Overrides  map[int]materialize.Member `yaml:"overrides,omitempty"`
	Pending    []PendingLine              `yaml:"pending,omitempty"`
	Saved      time.Time                  `yaml:"saved"`
}

// ListDetails names the target list. ID is zero for a list still to be
// created.
type ListDetails struct {
	ID    int64      `yaml:"id,omitempty"`
	Title string     `yaml:"title,omitempty"`
	When  *time.Time `yaml:"when,omitempty"`
	Where string     `yaml:"where,omitempty"`
	Notes string     `yaml:"notes,omitempty"`
}

// PendingLine is one decision the submitter still owes.
type PendingLine struct {
	Line   int    `yaml:"line"`
	Key    string `yaml:"key"`
	Kind   string `yaml:"kind"`
	Prompt string `yaml:"prompt"`

	// Candidates lists the entry IDs that may be chosen.
	Candidates []int64 `yaml:"candidates,omitempty"`
}

// NewSubmissionFile records a rejected submission with its pending lines.
func NewSubmissionFile(list ListDetails, member materialize.Member, overrides map[int]materialize.Member, rejected *resolve.RejectedError) *SubmissionFile {
	sf := &SubmissionFile{
		List:       list,
		Submission: rejected.Submission,
		Member:     member,
		Overrides:  overrides,
		Saved:      time.Now().UTC(),
	}
	for _, l := range rejected.Pending {
		p := PendingLine{Line: l.Index + 1, Key: l.Key, Kind: pendingKind(l.Outcome), Prompt: l.Prompt()}
		switch o := l.Outcome.(type) {
		case resolve.Ambiguous:
			for _, c := range o.Candidates {
				p.Candidates = append(p.Candidates, c.ID)
			}
		case resolve.DeprecatedUnapproved:
			if o.Preferred != nil {
				p.Candidates = []int64{o.Preferred.ID}
			}
		}
		sf.Pending = append(sf.Pending, p)
	}
	return sf
}

// WriteSubmissionFile saves a submission to a YAML file.
func WriteSubmissionFile(path string, sf *SubmissionFile) error {
	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("marshaling submission file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSubmissionFile loads a previously saved submission file from disk.
func ReadSubmissionFile(path string) (*SubmissionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading submission file: %w", err)
	}
	var sf SubmissionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing submission file: %w", err)
	}
	if len(sf.Submission.Lines) == 0 && len(sf.Submission.ChecklistIDs) == 0 {
		return nil, errors.New("submission file has no lines")
	}
	return &sf, nil
}

// Resume resubmits a saved submission as the user who saved it: an edit
// when the file names a list, else a create.
func (s *Service) Resume(ctx context.Context, userID int64, sf *SubmissionFile) (*Report, error) {
	if sf.List.ID != 0 {
		return s.Edit(ctx, EditRequest{
			ListID:     sf.List.ID,
			UserID:     userID,
			Title:      sf.List.Title,
			When:       sf.List.When,
			Where:      sf.List.Where,
			Notes:      sf.List.Notes,
			Submission: sf.Submission,
			Member:     sf.Member,
			Overrides:  sf.Overrides,
		})
	}
	req := CreateRequest{
		UserID:     userID,
		Title:      sf.List.Title,
		Where:      sf.List.Where,
		Notes:      sf.List.Notes,
		Submission: sf.Submission,
		Member:     sf.Member,
		Overrides:  sf.Overrides,
	}
	if sf.List.When != nil {
		req.When = *sf.List.When
	}
	return s.Create(ctx, req)
}
