// Package forms validates submitted payloads for the site (form tags) and the API (json tags).
package forms

import (
	"fmt"
	"mime/multipart"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/utils"
)

// Source is the surface a payload came from.
type Source int

const (
	SourceSite Source = iota
	SourceAPI
)

func (s Source) String() string {
	if s == SourceAPI {
		return "api"
	}
	return "site"
}

// Pick returns site or api depending on src.
func Pick(src Source, site, api Validator) Validator {
	if src == SourceAPI {
		return api
	}
	return site
}

// Validator is a struct that can be filled from a payload and checked.
// Site forms embed Form, API serializers embed Serializer.
type Validator interface {
	tagName() string
}

// Cleaner runs checks that struct tags cannot express.
// It returns the name of the first invalid field, or "".
type Cleaner interface {
	Clean() string
}

// Form binds site payloads by `form` tags.
type Form struct{}

func (Form) tagName() string { return "form" }

// Serializer binds API payloads by `json` tags. Text values and files share one namespace.
type Serializer struct{}

func (Serializer) tagName() string { return "json" }

// Result is the outcome of Run.
type Result struct {
	Valid   bool
	Field   string
	Cleaned utils.FormData
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"form", "json"} {
				if name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]; name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
		_ = validate.RegisterValidation("notnumeric", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			for _, r := range s {
				if !unicode.IsDigit(r) {
					return true
				}
			}
			return s == ""
		})
		_ = validate.RegisterValidation("section", func(fl validator.FieldLevel) bool {
			_, ok := models.SectionName(fl.Field().String())
			return ok
		})
	})
	return validate
}

// Var validates a single value against a tag expression.
func Var(value interface{}, tag string) bool {
	return instance().Var(value, tag) == nil
}

// Run binds data into v, applies struct rules and then v's Clean hook.
func Run(v Validator, data utils.FormData) Result {
	if field, err := bind(v, data); err != nil {
		return Result{Field: field}
	}

	if err := instance().Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return Result{Field: verrs[0].Field()}
		}
		return Result{Field: "non_field_errors"}
	}

	if c, ok := v.(Cleaner); ok {
		if field := c.Clean(); field != "" {
			return Result{Field: field}
		}
	}

	return Result{Valid: true, Cleaned: cleaned(v)}
}

var fileHeaderType = reflect.TypeOf((*multipart.FileHeader)(nil))

func fieldsOf(v Validator) (reflect.Value, []reflect.StructField) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("forms: %T must be a pointer to struct", v))
	}
	rv = rv.Elem()
	fields := make([]reflect.StructField, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Type().Field(i)
		if f.Anonymous || !f.IsExported() {
			continue
		}
		fields = append(fields, f)
	}
	return rv, fields
}

func nameOf(f reflect.StructField, tag string) string {
	name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

func bind(v Validator, data utils.FormData) (string, error) {
	rv, fields := fieldsOf(v)
	tag := v.tagName()

	for _, f := range fields {
		name := nameOf(f, tag)
		if name == "-" {
			continue
		}
		fv := rv.FieldByIndex(f.Index)

		if f.Type == fileHeaderType {
			if fh := data.File(name); fh != nil {
				fv.Set(reflect.ValueOf(fh))
			}
			continue
		}

		raw, ok := data.Values[name]
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)

		switch f.Type.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Bool:
			fv.SetBool(truthy(raw))
		case reflect.Int, reflect.Int64, reflect.Int32:
			if raw == "" {
				continue
			}
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return name, err
			}
			fv.SetInt(n)
		case reflect.Uint, reflect.Uint64, reflect.Uint32:
			if raw == "" {
				continue
			}
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return name, err
			}
			fv.SetUint(n)
		}
	}
	return "", nil
}

func cleaned(v Validator) utils.FormData {
	rv, fields := fieldsOf(v)
	tag := v.tagName()
	out := utils.NewFormData()

	for _, f := range fields {
		name := nameOf(f, tag)
		if name == "-" {
			continue
		}
		fv := rv.FieldByIndex(f.Index)
		if f.Type == fileHeaderType {
			if !fv.IsNil() {
				out.Files[name] = fv.Interface().(*multipart.FileHeader)
			}
			continue
		}
		out.Values[name] = fmt.Sprint(fv.Interface())
	}
	return out
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "on", "true", "yes", "y":
		return true
	}
	return false
}
