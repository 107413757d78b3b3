package utils

import (
	"mime/multipart"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

// FormData is the submitted payload of a request: text values and uploaded files.
type FormData struct {
	Values map[string]string
	Files  map[string]*multipart.FileHeader
}

func NewFormData() FormData {
	return FormData{
		Values: map[string]string{},
		Files:  map[string]*multipart.FileHeader{},
	}
}

// Has reports whether field was submitted with a non-empty value or a file.
func (d FormData) Has(field string) bool {
	if d.Files[field] != nil {
		return true
	}
	return strings.TrimSpace(d.Values[field]) != ""
}

func (d FormData) Value(field string) string {
	return d.Values[field]
}

func (d FormData) File(field string) *multipart.FileHeader {
	return d.Files[field]
}

// Only returns a copy restricted to the given fields.
func (d FormData) Only(fields ...string) FormData {
	out := NewFormData()
	for _, f := range fields {
		if v, ok := d.Values[f]; ok {
			out.Values[f] = v
		}
		if fh, ok := d.Files[f]; ok {
			out.Files[f] = fh
		}
	}
	return out
}

// ReadForm collects the request payload from a multipart form, a urlencoded
// form or a JSON object, depending on the content type.
func ReadForm(c *fiber.Ctx) (FormData, error) {
	data := NewFormData()
	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return data, fiber.NewError(fiber.StatusBadRequest, "Cannot parse multipart form")
		}
		for k, v := range form.Value {
			if len(v) > 0 {
				data.Values[k] = v[0]
			}
		}
		for k, v := range form.File {
			if len(v) > 0 {
				data.Files[k] = v[0]
			}
		}
	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		if len(c.Body()) == 0 {
			return data, nil
		}
		var raw map[string]interface{}
		if err := sonic.Unmarshal(c.Body(), &raw); err != nil {
			return data, fiber.NewError(fiber.StatusBadRequest, "Cannot parse JSON")
		}
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				data.Values[k] = val
			case nil:
			default:
				b, _ := sonic.Marshal(val)
				data.Values[k] = string(b)
			}
		}
	default:
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			data.Values[string(key)] = string(value)
		})
	}
	return data, nil
}
