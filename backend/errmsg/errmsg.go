// Package errmsg holds the coded business errors of the forum and their
// localized messages.
package errmsg

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

type Domain string

const (
	Topics   Domain = "topics"
	Comments Domain = "comments"
	Ratings  Domain = "ratings"
	Settings Domain = "settings"
	Auth     Domain = "auth"
)

type Code int

const (
	TopicInvalidID       Code = 1
	TopicInvalidTitle    Code = 2
	TopicInvalidQuestion Code = 3
	TopicInvalidUpload   Code = 4
	TopicInvalidSection  Code = 5

	CommentInvalidComment Code = 1
	CommentInvalidUpload  Code = 2

	RatingSelfOrAnonymous Code = 1
	RatingUserNotFound    Code = 2
	RatingNotChanged      Code = 3
	RatingEmpty           Code = 4

	SettingInvalidAvatar    Code = 1
	SettingInvalidSignature Code = 2
	SettingInvalidTimezone  Code = 3

	AuthInvalidCredentials Code = 1
	AuthInvalidUsername    Code = 2
	AuthInvalidPassword    Code = 3
	AuthPasswordsMismatch  Code = 4
	AuthUsernameTaken      Code = 5
)

// Error is a business-rule violation reported to the client as a message, not a status.
type Error struct {
	Domain Domain
	Code   Code
	Field  string
}

func New(domain Domain, code Code) *Error {
	return &Error{Domain: domain, Code: code}
}

func (e *Error) Error() string {
	return e.Localize(defaultPrinter)
}

func (e *Error) key() string {
	return fmt.Sprintf("%s.%d", e.Domain, e.Code)
}

// Localize renders the message in the printer's language.
func (e *Error) Localize(p *message.Printer) string {
	key := e.key()
	return p.Sprintf(message.Key(key, catalogEntries[key][0]))
}

// Is reports whether err carries the given domain and code.
func Is(err error, domain Domain, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Domain == domain && e.Code == code
}

var fieldCodes = map[Domain]map[string]Code{
	Topics: {
		"id":       TopicInvalidID,
		"topic":    TopicInvalidID,
		"title":    TopicInvalidTitle,
		"question": TopicInvalidQuestion,
		"upload":   TopicInvalidUpload,
		"section":  TopicInvalidSection,
	},
	Comments: {
		"comment": CommentInvalidComment,
		"upload":  CommentInvalidUpload,
	},
	Settings: {
		"avatar":    SettingInvalidAvatar,
		"signature": SettingInvalidSignature,
		"timezone":  SettingInvalidTimezone,
	},
	Auth: {
		"username":  AuthInvalidUsername,
		"password":  AuthInvalidPassword,
		"password1": AuthInvalidPassword,
		"password2": AuthPasswordsMismatch,
	},
}

// FromField maps the first invalid form field to its domain error.
// Unknown fields fall back to the domain's first code.
func FromField(domain Domain, field string) *Error {
	code, ok := fieldCodes[domain][field]
	if !ok {
		code = 1
	}
	return &Error{Domain: domain, Code: code, Field: field}
}

var (
	supported = []language.Tag{language.English, language.Russian}
	matcher   = language.NewMatcher(supported)
	messages  = catalog.NewBuilder(catalog.Fallback(language.English))

	defaultPrinter *message.Printer
)

func init() {
	for key, texts := range catalogEntries {
		_ = messages.SetString(language.English, key, texts[0])
		_ = messages.SetString(language.Russian, key, texts[1])
	}
	defaultPrinter = message.NewPrinter(language.English, message.Catalog(messages))
}

// PrinterFor picks the best supported language for an Accept-Language header value.
func PrinterFor(acceptLanguage string) *message.Printer {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return defaultPrinter
	}
	_, idx, _ := matcher.Match(tags...)
	return message.NewPrinter(supported[idx], message.Catalog(messages))
}
