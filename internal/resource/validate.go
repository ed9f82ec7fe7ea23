package resource

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Severity levels for validation findings.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError is a configuration problem found before any provider call.
type ValidationError struct {
	Kind     Kind
	Name     string
	Field    string
	Message  string
	Severity string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	subject := strings.TrimSpace(string(ve.Kind) + " " + ve.Name)
	if subject == "" {
		subject = "config"
	}
	if ve.Field != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", ve.Severity, subject, ve.Field, ve.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, subject, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == SeverityError
}

// ValidationErrors collects findings across one or more specs.
type ValidationErrors []ValidationError

// Error joins all findings, one per line.
func (ve ValidationErrors) Error() string {
	msgs := make([]string, 0, len(ve))
	for _, e := range ve {
		msgs = append(msgs, e.Error())
	}
	return "validation failed:\n  " + strings.Join(msgs, "\n  ")
}

// Errors returns only error-severity findings.
func (ve ValidationErrors) Errors() ValidationErrors {
	var out ValidationErrors
	for _, e := range ve {
		if e.IsError() {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns only warning-severity findings.
func (ve ValidationErrors) Warnings() ValidationErrors {
	var out ValidationErrors
	for _, e := range ve {
		if !e.IsError() {
			out = append(out, e)
		}
	}
	return out
}

// Err returns the error-severity findings as an error, or nil if there are none.
func (ve ValidationErrors) Err() error {
	if errs := ve.Errors(); len(errs) > 0 {
		return errs
	}
	return nil
}

// IsValidationError reports whether err carries validation findings.
func IsValidationError(err error) bool {
	var list ValidationErrors
	var single ValidationError
	return errors.As(err, &list) || errors.As(err, &single)
}

// Compute Engine resource names: RFC1035 labels of at most 63 characters.
var nameRE = regexp.MustCompile(`^[a-z]([-a-z0-9]{0,61}[a-z0-9])?$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("gcename", func(fl validator.FieldLevel) bool {
		return nameRE.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("portrange", func(fl validator.FieldLevel) bool {
		return validPortRange(fl.Field().String())
	})
	return v
}

// validPortRange accepts "80" or "8000-8080" with ports in [1, 65535].
func validPortRange(s string) bool {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	from, err := strconv.Atoi(lo)
	if err != nil {
		return false
	}
	to, err := strconv.Atoi(hi)
	if err != nil {
		return false
	}
	return from >= 1 && to <= 65535 && from <= to
}

// ValidName reports whether name is a valid resource name.
func ValidName(name string) bool {
	return nameRE.MatchString(name)
}

// ApplyDefaults returns a copy of spec with descriptor defaults filled in for
// unset fields. Unknown kinds are returned unchanged.
func ApplyDefaults(spec Spec) Spec {
	desc, err := Lookup(spec.Kind())
	if err != nil {
		return spec
	}
	fields := spec.Fields()
	for _, f := range desc.Fields {
		if fields[f.Name] == "" && f.Default != "" {
			fields[f.Name] = f.Default
		}
	}
	return NewSpec(spec.Kind(), spec.Name(), fields)
}

// Validate checks spec against its descriptor and returns every finding.
// Reference fields left empty are not reported here; the plan fills them
// from earlier steps and reports unresolved ones.
func Validate(spec Spec) ValidationErrors {
	var errs ValidationErrors
	add := func(field, severity, format string, args ...any) {
		errs = append(errs, ValidationError{
			Kind:     spec.Kind(),
			Name:     spec.Name(),
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	desc, err := Lookup(spec.Kind())
	if err != nil {
		add("", SeverityError, "%v", err)
		return errs
	}

	if !ValidName(spec.Name()) {
		add("name", SeverityError, "invalid resource name %q: must match %s", spec.Name(), nameRE.String())
	}

	fields := spec.Fields()
	for name := range fields {
		if _, ok := desc.Field(name); !ok {
			add(name, SeverityError, "unknown field for %s", spec.Kind())
		}
	}

	failed := false
	for _, f := range desc.Fields {
		value := fields[f.Name]
		if value == "" {
			if f.Required && f.Ref == "" && f.Default == "" {
				add(f.Name, SeverityError, "field is required")
				failed = true
			}
			continue
		}
		if f.Ref != "" {
			// literal references point at resources outside the plan
			continue
		}
		if msg := checkField(f, value); msg != "" {
			add(f.Name, SeverityError, "%s", msg)
			failed = true
		}
	}

	if !failed && desc.check != nil {
		for _, p := range desc.check(fields) {
			add(p.field, SeverityError, "%s", p.message)
		}
	}

	if spec.Kind() == KindFirewallRule && fields["direction"] != "EGRESS" {
		for _, r := range SplitList(fields["source_ranges"]) {
			if r == "0.0.0.0/0" {
				add("source_ranges", SeverityWarning, "rule admits traffic from any address")
			}
		}
	}

	return errs
}

// checkField parses value according to the field type and applies its rule.
// It returns a human-readable message, or "" when the value is valid.
func checkField(f FieldDef, value string) string {
	var typed any
	switch f.Type {
	case TypeInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Sprintf("%q is not an integer", value)
		}
		typed = n
	case TypeBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Sprintf("%q is not a boolean", value)
		}
		typed = b
	case TypeList:
		typed = SplitList(value)
	default:
		typed = value
	}

	if f.Rule == "" {
		return ""
	}
	if err := validate.Var(typed, f.Rule); err != nil {
		return describeRuleError(value, err)
	}
	return ""
}

func describeRuleError(value string, err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "cidrv4":
		return fmt.Sprintf("%q is not a valid IPv4 CIDR block", fe.Value())
	case "portrange":
		return fmt.Sprintf("%q is not a port or port range within 1-65535", fe.Value())
	case "gcename":
		return fmt.Sprintf("%q is not a valid resource name", fe.Value())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", value, fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", value, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%q failed %q rule", value, fe.Tag())
	}
}
