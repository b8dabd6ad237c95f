package task

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDraftValidate(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name      string
		draft     Draft
		wantField string // empty means valid
	}{
		{
			name:  "minimal valid draft",
			draft: Draft{Title: "buy milk"},
		},
		{
			name:  "full valid draft",
			draft: Draft{Title: "buy milk", Status: StatusInProgress, DueDate: &future},
		},
		{
			name:      "empty title",
			draft:     Draft{Title: ""},
			wantField: "title",
		},
		{
			name:      "title too long",
			draft:     Draft{Title: strings.Repeat("x", 201)},
			wantField: "title",
		},
		{
			name:  "title at limit",
			draft: Draft{Title: strings.Repeat("x", 200)},
		},
		{
			name:      "unknown status",
			draft:     Draft{Title: "ok", Status: "Blocked"},
			wantField: "status",
		},
		{
			name:      "due date in the past",
			draft:     Draft{Title: "ok", DueDate: &past},
			wantField: "due_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate(now)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("rejected field %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestDraftValidateDefaultsStatus(t *testing.T) {
	draft := Draft{Title: "defaults"}
	if err := draft.Validate(time.Now()); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if draft.Status != StatusToDo {
		t.Errorf("Status = %q, want %q", draft.Status, StatusToDo)
	}
}

func TestPatchValidateOnlySetFields(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// An empty patch is always valid; unset fields are not checked.
	empty := Patch{}
	if err := empty.Validate(now); err != nil {
		t.Fatalf("empty patch: Validate() = %v, want nil", err)
	}

	badTitle := ""
	p := Patch{Title: &badTitle}
	var verr *ValidationError
	if err := p.Validate(now); !errors.As(err, &verr) || verr.Field != "title" {
		t.Errorf("patch with empty title: Validate() = %v, want title validation error", err)
	}
}

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // RFC3339 in UTC; empty means expect error
		nilOK bool
	}{
		{name: "empty yields nil", input: "", nilOK: true},
		{name: "rfc3339 with zone", input: "2026-12-01T10:00:00+02:00", want: "2026-12-01T08:00:00Z"},
		{name: "naive datetime treated as UTC", input: "2026-12-01T10:00:00", want: "2026-12-01T10:00:00Z"},
		{name: "bare date", input: "2026-12-01", want: "2026-12-01T00:00:00Z"},
		{name: "garbage", input: "next tuesday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDueDate(tt.input)
			if tt.nilOK {
				if err != nil || got != nil {
					t.Fatalf("ParseDueDate(%q) = %v, %v, want nil, nil", tt.input, got, err)
				}
				return
			}
			if tt.want == "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("ParseDueDate(%q) = %v, want *ValidationError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDueDate(%q) error: %v", tt.input, err)
			}
			if got.Format(time.RFC3339) != tt.want {
				t.Errorf("ParseDueDate(%q) = %s, want %s", tt.input, got.Format(time.RFC3339), tt.want)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusToDo, StatusInProgress, StatusDone} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []Status{"", "todo", "DONE", "Blocked"} {
		if s.Valid() {
			t.Errorf("%q should not be valid", s)
		}
	}
}
