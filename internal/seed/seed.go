package seed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// namespace for ids derived from titles.
var namespace = uuid.MustParse("6f1c7a52-3f7e-4c1b-9a55-2b8d0f4e9c11")

// Entry is one reminder in a seed file.
type Entry struct {
	ID       string             `yaml:"id,omitempty"`
	Title    string             `yaml:"title"`
	Active   *bool              `yaml:"active,omitempty"`
	Schedule domain.RawSchedule `yaml:"schedule"`
}

type file struct {
	Reminders []Entry `yaml:"reminders"`
}

// LoadFile reads a YAML seed file:
//
//	reminders:
//	  - title: Drink water
//	    schedule:
//	      mode: interval
//	      times: ["08:00"]
//	      interval: {every: 2}
func LoadFile(path string) ([]Entry, error) {
	if path == "" {
		return nil, errors.New("seed path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes seed YAML. Entries without an id get a UUID derived from the
// title, so the same file yields the same ids on every load.
func Parse(data []byte) ([]Entry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	seen := make(map[string]int, len(f.Reminders))
	ids := make(map[string]bool, len(f.Reminders))
	out := make([]Entry, 0, len(f.Reminders))
	for i, e := range f.Reminders {
		e.Title = strings.TrimSpace(e.Title)
		if e.Title == "" {
			return nil, fmt.Errorf("reminder #%d: empty title", i+1)
		}
		if e.ID == "" {
			key := e.Title
			if n := seen[e.Title]; n > 0 {
				key = fmt.Sprintf("%s#%d", e.Title, n)
			}
			seen[e.Title]++
			e.ID = uuid.NewSHA1(namespace, []byte(key)).String()
		}
		if ids[e.ID] {
			return nil, fmt.Errorf("reminder %q: duplicate id %s", e.Title, e.ID)
		}
		ids[e.ID] = true
		out = append(out, e)
	}
	return out, nil
}

// IsActive defaults to true when the file does not say.
func (e Entry) IsActive() bool { return e.Active == nil || *e.Active }

// Reminder builds the in-memory reminder.
func (e Entry) Reminder(today domain.Date) *domain.Reminder {
	r := domain.NewReminder(e.ID, e.Title, e.Schedule, today)
	if !e.IsActive() {
		r.SetActive(false)
	}
	return r
}
