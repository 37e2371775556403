package export

import (
	"fmt"
	"time"
)

// ValidateDocument checks a backup document before conversion. It returns
// every problem found, not just the first, so a bad file can be fixed in
// one pass.
func ValidateDocument(doc *Document) []error {
	var errs []error

	if doc.Version != Version {
		errs = append(errs, fmt.Errorf("version: unsupported value %d (this build reads version %d)", doc.Version, Version))
	}
	if doc.Subject == "" {
		errs = append(errs, fmt.Errorf("subject is required"))
	}

	seen := make(map[string]bool)
	for i, ev := range doc.Events {
		prefix := fmt.Sprintf("events[%d]", i)

		if ev.ID != "" {
			if seen[ev.ID] {
				errs = append(errs, fmt.Errorf("%s.id: duplicate id %q", prefix, ev.ID))
			}
			seen[ev.ID] = true
		}

		if ev.Job == "" {
			errs = append(errs, fmt.Errorf("%s.job is required", prefix))
		}

		start, startErr := parseInstant(ev.Start)
		if ev.Start == "" {
			errs = append(errs, fmt.Errorf("%s.start is required", prefix))
		} else if startErr != nil {
			errs = append(errs, fmt.Errorf("%s.start: invalid timestamp %q (expected RFC3339)", prefix, ev.Start))
		}

		end, endErr := parseInstant(ev.End)
		if ev.End == "" {
			errs = append(errs, fmt.Errorf("%s.end is required", prefix))
		} else if endErr != nil {
			errs = append(errs, fmt.Errorf("%s.end: invalid timestamp %q (expected RFC3339)", prefix, ev.End))
		}

		if startErr == nil && endErr == nil && ev.Start != "" && ev.End != "" && !end.After(start) {
			errs = append(errs, fmt.Errorf("%s: end %q must be after start %q", prefix, ev.End, ev.Start))
		}
	}

	return errs
}

func parseInstant(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
