package bot

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Veraticus/classbot/internal/model"
	"github.com/go-playground/validator/v10"
)

const remindPrefix = "remind="

var validate = validator.New(validator.WithRequiredStructEnabled())

type nameArgs struct {
	Name string `validate:"min=2"`
}

// Amounts are capped at ledger.MaxAmount.
type amountArgs struct {
	Amount int64 `validate:"gt=0,lte=1000000000000"`
}

type expenseArgs struct {
	Description string `validate:"min=3"`
	Amount      int64  `validate:"gt=0,lte=1000000000000"`
}

type idArgs struct {
	ID int64 `validate:"gt=0"`
}

type taskArgs struct {
	Title       string `validate:"min=3"`
	Deadline    string `validate:"required"`
	Description string
	Remind      string
}

// invalidField returns the name of the first struct field that failed
// validation, or "" when err is not a validation error.
func invalidField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field()
	}
	return ""
}

// parseAmount reads a whole-rupiah amount. Anything but digits with an
// optional sign is rejected.
func parseAmount(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseAmountArgs(s string) (amountArgs, bool) {
	n, ok := parseAmount(s)
	if !ok {
		return amountArgs{}, false
	}
	a := amountArgs{Amount: n}
	return a, validate.Struct(a) == nil
}

func parseIDArgs(s string) (idArgs, bool) {
	n, ok := parseAmount(s)
	if !ok {
		return idArgs{}, false
	}
	a := idArgs{ID: n}
	return a, validate.Struct(a) == nil
}

// ParseQuotedArguments joins double-quoted runs of space-split arguments.
// `"Makalah Pancasila" 2025-09-20` yields ["Makalah Pancasila",
// "2025-09-20"]. An unclosed quote takes the rest of the arguments.
func ParseQuotedArguments(args []string) []string {
	var (
		result  []string
		current string
		inQuote bool
	)
	for _, arg := range args {
		switch {
		case len(arg) > 1 && strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`):
			result = append(result, arg[1:len(arg)-1])
		case strings.HasPrefix(arg, `"`):
			inQuote = true
			current = arg[1:]
		case inQuote && strings.HasSuffix(arg, `"`):
			result = append(result, current+" "+arg[:len(arg)-1])
			current = ""
			inQuote = false
		case inQuote:
			current += " " + arg
		default:
			result = append(result, arg)
		}
	}
	if inQuote {
		result = append(result, current)
	}
	return result
}

// parseTaskArgs reads the arguments of "tugas tambah" in either the quoted
// form (`"judul" "YYYY-MM-DD" "deskripsi"`) or the bare form (`judul
// YYYY-MM-DD deskripsi...`). A `remind=x,y` token anywhere sets the
// reminder offsets. ok is false when the quoted form has fewer than two
// values.
func parseTaskArgs(args []string) (t taskArgs, ok bool) {
	quoted := false
	for _, a := range args {
		if strings.Contains(a, `"`) {
			quoted = true
			break
		}
	}

	if quoted {
		values := ParseQuotedArguments(args)
		if len(values) < 2 {
			return taskArgs{}, false
		}
		t.Title = values[0]
		t.Deadline = values[1]
		if len(values) > 2 && !strings.HasPrefix(values[2], remindPrefix) {
			t.Description = values[2]
		}
	} else {
		if len(args) < 2 {
			return taskArgs{}, false
		}
		t.Title = args[0]
		t.Deadline = args[1]
		rest := args[2:]
		for i, a := range rest {
			if strings.HasPrefix(a, remindPrefix) {
				t.Remind = strings.TrimPrefix(a, remindPrefix)
				rest = rest[:i]
				break
			}
		}
		t.Description = strings.Join(rest, " ")
	}

	if t.Remind == "" {
		for _, a := range args {
			if strings.HasPrefix(a, remindPrefix) {
				t.Remind = strings.TrimPrefix(a, remindPrefix)
				break
			}
		}
	}
	if t.Remind == "" {
		t.Remind = model.DefaultReminderDays
	}
	return t, true
}
