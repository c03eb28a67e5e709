// Package locale resolves a per-request language and runs user-facing
// messages through a translation hook. Translation is strictly best-effort:
// anything that fails comes back as the original text.
package locale

import (
	"context"

	"github.com/labstack/echo/v4"
)

const (
	// DefaultLanguage is used when neither the request nor the user
	// preference names one.
	DefaultLanguage = "en"

	langContextKey = "lang"
)

// Translator turns text into the target language. Implementations must
// return the input unchanged on any failure.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) string
}

// Passthrough performs no translation.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text, _ string) string {
	return text
}

var active Translator = Passthrough{}

// SetTranslator swaps the process-wide translation hook.
func SetTranslator(t Translator) {
	if t != nil {
		active = t
	}
}

// Middleware resolves the request language: explicit lang query parameter
// first, then the preference resolver (normally the user's stored choice),
// then the default.
func Middleware(preference func(c echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lang := c.QueryParam("lang")
			if lang == "" && preference != nil {
				lang = preference(c)
			}
			if lang == "" {
				lang = DefaultLanguage
			}
			c.Set(langContextKey, lang)
			return next(c)
		}
	}
}

// Language returns the language resolved for this request.
func Language(c echo.Context) string {
	if lang, ok := c.Get(langContextKey).(string); ok && lang != "" {
		return lang
	}
	return DefaultLanguage
}

// T translates a user-facing message into the request language.
func T(c echo.Context, text string) string {
	lang := Language(c)
	if lang == DefaultLanguage {
		return text
	}
	return active.Translate(c.Request().Context(), text, lang)
}
