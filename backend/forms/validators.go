package forms

import (
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/waflawe/Omenforcer/backend/utils"
)

// MaxUploadSize bounds attachments and avatars.
const MaxUploadSize = 5 << 20

var imageExts = []string{"jpg", "jpeg", "png", "gif", "webp"}

// ValidImage requires an image filename extension and sniffed image content.
// The client-supplied content type is ignored.
func ValidImage(fh *multipart.FileHeader) bool {
	if fh == nil || fh.Size == 0 || fh.Size > MaxUploadSize {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
	if !slices.Contains(imageExts, ext) {
		return false
	}
	_, err := utils.ImageExt(fh)
	return err == nil
}

// ValidTimezone accepts IANA zone names. "Local" is rejected since it depends on the host.
func ValidTimezone(name string) bool {
	if name == "" || name == "Local" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

type TopicForm struct {
	Form
	Title    string                `form:"title" validate:"required,min=8,max=100"`
	Question string                `form:"question" validate:"required,min=5,max=2048"`
	Section  string                `form:"section" validate:"omitempty,section"`
	Upload   *multipart.FileHeader `form:"upload"`
}

func (f *TopicForm) Clean() string {
	if f.Upload != nil && !ValidImage(f.Upload) {
		return "upload"
	}
	return ""
}

type TopicSerializer struct {
	Serializer
	Title    string                `json:"title" validate:"required,min=8,max=100"`
	Question string                `json:"question" validate:"required,min=5,max=2048"`
	Section  string                `json:"section" validate:"omitempty,section"`
	Upload   *multipart.FileHeader `json:"upload"`
}

func (s *TopicSerializer) Clean() string {
	if s.Upload != nil && !ValidImage(s.Upload) {
		return "upload"
	}
	return ""
}

type CommentForm struct {
	Form
	Comment string                `form:"comment" validate:"required,min=5,max=2048"`
	Upload  *multipart.FileHeader `form:"upload"`
}

func (f *CommentForm) Clean() string {
	if f.Upload != nil && !ValidImage(f.Upload) {
		return "upload"
	}
	return ""
}

type CommentSerializer struct {
	Serializer
	Comment string                `json:"comment" validate:"required,min=5,max=2048"`
	Upload  *multipart.FileHeader `json:"upload"`
}

func (s *CommentSerializer) Clean() string {
	if s.Upload != nil && !ValidImage(s.Upload) {
		return "upload"
	}
	return ""
}

type AvatarForm struct {
	Form
	Avatar *multipart.FileHeader `form:"avatar" validate:"required"`
}

func (f *AvatarForm) Clean() string {
	if !ValidImage(f.Avatar) {
		return "avatar"
	}
	return ""
}

type AvatarSerializer struct {
	Serializer
	Avatar *multipart.FileHeader `json:"avatar" validate:"required"`
}

func (s *AvatarSerializer) Clean() string {
	if !ValidImage(s.Avatar) {
		return "avatar"
	}
	return ""
}

type SignatureForm struct {
	Form
	Signature string `form:"signature" validate:"required,max=256"`
}

type SignatureSerializer struct {
	Serializer
	Signature string `json:"signature" validate:"required,max=256"`
}

type RegisterForm struct {
	Form
	Username  string `form:"username" validate:"required,min=5,max=25,notnumeric"`
	Password1 string `form:"password1" validate:"required,min=8,max=64"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

type RegisterSerializer struct {
	Serializer
	Username  string `json:"username" validate:"required,min=5,max=25,notnumeric"`
	Password1 string `json:"password" validate:"required,min=8,max=64"`
	Password2 string `json:"password2" validate:"required,eqfield=Password1"`
}

type AuthForm struct {
	Form
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type AuthSerializer struct {
	Serializer
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SearchForm carries the site search flags.
type SearchForm struct {
	Form
	Query      string `form:"search" validate:"max=256"`
	InTitle    bool   `form:"search_in_title"`
	InQuestion bool   `form:"search_in_question"`
	InUsername bool   `form:"search_in_username"`
}
