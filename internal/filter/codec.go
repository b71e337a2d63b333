// Package filter converts listing filters to and from URL query parameters.
//
// Each entity kind accepts the fields of its filter class. Every field has a
// converter: status and transaction kinds are repeated parameters, boolean
// flags are the literal "true", dates are RFC 3339 strings and entity kinds
// must name a known kind. Everything else passes through as a raw string.
// Unknown, empty or malformed parameters decode to an unset field.
package filter

import (
	"net/url"
	"slices"
	"time"

	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// field is one row of the codec table.
type field struct {
	name   string
	class  model.FilterClass
	decode func(values []string, f *model.Filter)
	encode func(f model.Filter) []string
}

var fields = []field{
	listField("status", model.FilterClassTracked, func(f *model.Filter) *[]string { return &f.Status }),
	stringField("text", model.FilterClassTracked, func(f *model.Filter) *string { return &f.Text }),
	boolField("advancedSearch", model.FilterClassTracked, func(f *model.Filter) *bool { return &f.AdvancedSearch }),

	stringField("topicId", model.FilterClassLinkable, func(f *model.Filter) *string { return &f.TopicID }),
	boolField("recursive", model.FilterClassLinkable, func(f *model.Filter) *bool { return &f.Recursive }),
	kindField("fromEntityKind", model.FilterClassLinkable, func(f *model.Filter) *model.EntityKind { return &f.FromEntityKind }),
	stringField("fromEntityId", model.FilterClassLinkable, func(f *model.Filter) *string { return &f.FromEntityID }),
	kindField("toEntityKind", model.FilterClassLinkable, func(f *model.Filter) *model.EntityKind { return &f.ToEntityKind }),
	stringField("toEntityId", model.FilterClassLinkable, func(f *model.Filter) *string { return &f.ToEntityID }),

	stringField("parentId", model.FilterClassTopic, func(f *model.Filter) *string { return &f.ParentID }),

	kindField("entityKind", model.FilterClassLog, func(f *model.Filter) *model.EntityKind { return &f.EntityKind }),
	stringField("entityId", model.FilterClassLog, func(f *model.Filter) *string { return &f.EntityID }),
	stringField("userId", model.FilterClassLog, func(f *model.Filter) *string { return &f.UserID }),
	listField("transactionKinds", model.FilterClassLog, func(f *model.Filter) *[]string { return &f.TransactionKinds }),
	timeField("from", model.FilterClassLog, func(f *model.Filter) **time.Time { return &f.From }),
	timeField("to", model.FilterClassLog, func(f *model.Filter) **time.Time { return &f.To }),
}

// Decode builds the filter for a listing of the given kind from URL query
// parameters. It never fails: anything it cannot interpret is left unset.
func Decode(kind model.EntityKind, params url.Values) model.Filter {
	var f model.Filter
	class := kind.Class()
	for _, fd := range fields {
		if !class.Includes(fd.class) {
			continue
		}
		if values, ok := params[fd.name]; ok {
			fd.decode(values, &f)
		}
	}
	return f
}

// Encode renders the filter's fields meaningful to kind as URL query
// parameters. Unset fields produce no parameter.
func Encode(kind model.EntityKind, f model.Filter) url.Values {
	params := url.Values{}
	class := kind.Class()
	for _, fd := range fields {
		if !class.Includes(fd.class) {
			continue
		}
		if values := fd.encode(f); len(values) > 0 {
			params[fd.name] = values
		}
	}
	return params
}

// Fields returns the parameter names a listing of the given kind understands.
func Fields(kind model.EntityKind) []string {
	class := kind.Class()
	var names []string
	for _, fd := range fields {
		if class.Includes(fd.class) {
			names = append(names, fd.name)
		}
	}
	return names
}

// --- converters ---

func stringField(name string, class model.FilterClass, ptr func(*model.Filter) *string) field {
	return field{
		name:  name,
		class: class,
		decode: func(values []string, f *model.Filter) {
			if v := first(values); v != "" {
				*ptr(f) = v
			}
		},
		encode: func(f model.Filter) []string {
			if v := *ptr(&f); v != "" {
				return []string{v}
			}
			return nil
		},
	}
}

func boolField(name string, class model.FilterClass, ptr func(*model.Filter) *bool) field {
	return field{
		name:  name,
		class: class,
		decode: func(values []string, f *model.Filter) {
			if first(values) == "true" {
				*ptr(f) = true
			}
		},
		encode: func(f model.Filter) []string {
			if *ptr(&f) {
				return []string{"true"}
			}
			return nil
		},
	}
}

func listField(name string, class model.FilterClass, ptr func(*model.Filter) *[]string) field {
	return field{
		name:  name,
		class: class,
		decode: func(values []string, f *model.Filter) {
			var list []string
			for _, v := range values {
				if v != "" {
					list = append(list, v)
				}
			}
			if len(list) > 0 {
				*ptr(f) = list
			}
		},
		encode: func(f model.Filter) []string {
			var out []string
			for _, v := range *ptr(&f) {
				if v != "" {
					out = append(out, v)
				}
			}
			return out
		},
	}
}

func kindField(name string, class model.FilterClass, ptr func(*model.Filter) *model.EntityKind) field {
	return field{
		name:  name,
		class: class,
		decode: func(values []string, f *model.Filter) {
			if k := model.EntityKind(first(values)); k.Valid() {
				*ptr(f) = k
			}
		},
		encode: func(f model.Filter) []string {
			if k := *ptr(&f); k.Valid() {
				return []string{string(k)}
			}
			return nil
		},
	}
}

func timeField(name string, class model.FilterClass, ptr func(*model.Filter) **time.Time) field {
	return field{
		name:  name,
		class: class,
		decode: func(values []string, f *model.Filter) {
			t, err := time.Parse(time.RFC3339Nano, first(values))
			if err == nil {
				*ptr(f) = &t
			}
		},
		encode: func(f model.Filter) []string {
			if t := *ptr(&f); t != nil {
				return []string{t.Format(time.RFC3339Nano)}
			}
			return nil
		},
	}
}

// first returns the first value, or "" when there is none.
func first(values []string) string {
	if i := slices.IndexFunc(values, func(v string) bool { return v != "" }); i >= 0 {
		return values[i]
	}
	return ""
}
