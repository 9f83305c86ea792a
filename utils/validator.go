package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"chaser/models"
)

var validate = validator.New()

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var errors []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errors = append(errors, field+" is required")
		case "min":
			errors = append(errors, field+" must be at least "+param)
		case "max":
			errors = append(errors, field+" must be at most "+param)
		case "email":
			errors = append(errors, field+" must be a valid email")
		default:
			errors = append(errors, field+" is invalid")
		}
	}

	return fmt.Errorf("%s", strings.Join(errors, ", "))
}

// ValidateSchedule enforces the schedule rules before anything reaches the
// chase engine: the engine itself assumes valid input and never re-checks.
func ValidateSchedule(steps []models.ChaseStep) error {
	if len(steps) > models.MaxScheduleSteps {
		return fmt.Errorf("schedule may not exceed %d steps", models.MaxScheduleSteps)
	}

	repeaters := 0
	type slot struct {
		trigger models.ChaseTrigger
		hour    int
		days    int
		date    string
	}
	seen := make(map[slot]bool, len(steps))

	for i, step := range steps {
		opts := step.Options
		if opts.Hour < 0 || opts.Hour > 23 {
			return fmt.Errorf("step %d: hour must be between 0 and 23", i+1)
		}
		if !opts.Email && !opts.SMS && !opts.Letter {
			return fmt.Errorf("step %d: at least one channel must be enabled", i+1)
		}

		switch step.Trigger {
		case models.TriggerOnIssue:
			// role is optional, nothing else to check
		case models.TriggerBeforeDue, models.TriggerAfterDue, models.TriggerAfterIssue:
			if opts.Days < 1 {
				return fmt.Errorf("step %d: %s requires days >= 1", i+1, step.Trigger)
			}
		case models.TriggerAbsolute:
			if opts.Date == nil {
				return fmt.Errorf("step %d: absolute requires a date", i+1)
			}
		case models.TriggerRepeater:
			repeaters++
			if repeaters > 1 {
				return fmt.Errorf("step %d: only one repeater step is allowed per schedule", i+1)
			}
			if opts.Days < 1 {
				return fmt.Errorf("step %d: repeater requires days >= 1", i+1)
			}
			if opts.Repeats < 1 {
				return fmt.Errorf("step %d: repeater requires repeats >= 1", i+1)
			}
		default:
			return fmt.Errorf("step %d: unknown trigger %q", i+1, step.Trigger)
		}

		// Two steps may only share a (trigger, hour) pair when their trigger
		// semantics make them distinct (different days or date).
		s := slot{trigger: step.Trigger, hour: opts.Hour, days: opts.Days}
		if opts.Date != nil {
			s.date = opts.Date.Format("2006-01-02")
		}
		if seen[s] {
			return fmt.Errorf("step %d: duplicate %s step at hour %d", i+1, step.Trigger, opts.Hour)
		}
		seen[s] = true
	}
	return nil
}
