package branches

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/branchstat/pkg/revgraph"
)

// Details is the listing record of one branch.
type Details struct {
	Name            string            `json:"name"              yaml:"name"`
	LinesAdded      int64             `json:"lines_added"       yaml:"lines_added"`
	LinesRemoved    int64             `json:"lines_removed"     yaml:"lines_removed"`
	NumberOfFiles   int               `json:"number_of_files"   yaml:"number_of_files"`
	NumberOfCommits int               `json:"number_of_commits" yaml:"number_of_commits"`
	Authors         []revgraph.Author `json:"authors"           yaml:"authors"`
}

// Failure records why one requested name produced no Details.
type Failure struct {
	Name string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Name, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

type failureDoc struct {
	Name  string `json:"name"  yaml:"name"`
	Error string `json:"error" yaml:"error"`
}

// MarshalJSON encodes the failure with its message.
func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(failureDoc{Name: f.Name, Error: f.Err.Error()})
}

// UnmarshalJSON restores a failure decoded from a report. The cause keeps
// only its message.
func (f *Failure) UnmarshalJSON(data []byte) error {
	var doc failureDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	f.Name = doc.Name
	f.Err = errors.New(doc.Error)

	return nil
}

// MarshalYAML encodes the failure with its message.
func (f Failure) MarshalYAML() (any, error) {
	return failureDoc{Name: f.Name, Error: f.Err.Error()}, nil
}

// Report is the result of a listing request. Details and Failures are in no
// particular order; call SortByName for a stable presentation.
type Report struct {
	Details  []Details `json:"details"  yaml:"details"`
	Failures []Failure `json:"failures" yaml:"failures"`
}

// Err joins every failure into one error, nil when all names succeeded.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}

	errs := make([]error, len(r.Failures))
	for i, failure := range r.Failures {
		errs[i] = failure
	}

	return errors.Join(errs...)
}

// Find returns the details for a branch name.
func (r *Report) Find(name string) (Details, bool) {
	for _, details := range r.Details {
		if details.Name == name {
			return details, true
		}
	}

	return Details{}, false
}

// SortByName orders details and failures by branch name.
func (r *Report) SortByName() {
	SortByName(r.Details)
	sort.SliceStable(r.Failures, func(i, j int) bool { return r.Failures[i].Name < r.Failures[j].Name })
}

// SortByName orders details by branch name.
func SortByName(details []Details) {
	sort.SliceStable(details, func(i, j int) bool { return details[i].Name < details[j].Name })
}
