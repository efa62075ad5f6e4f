package http

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	// textPolicy keeps harmless markup and strips scripts, handlers and style attributes.
	textPolicy = bluemonday.UGCPolicy()
	// plainPolicy strips all markup.
	plainPolicy = bluemonday.StrictPolicy()

	// bluemonday escapes quotes in text nodes too.
	quoteUnescaper = strings.NewReplacer("&#39;", "'", "&#34;", `"`)

	registerOnce sync.Once
	registerErr  error
)

// registerValidators adds the custom rules used by request structs to gin's
// validator engine.
func registerValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			registerErr = fmt.Errorf("register notblank: %w", err)
		}
	})
	return registerErr
}

// normalizeInput folds user text into NFC so length limits count what the
// reader sees.
func normalizeInput(s string) string {
	return norm.NFC.String(s)
}

// sanitizeText keeps safe markup. Quotes are restored only when no tag
// survived, so they can never land inside an attribute value.
func sanitizeText(s string) string {
	out := textPolicy.Sanitize(s)
	if !strings.Contains(out, "<") {
		out = quoteUnescaper.Replace(out)
	}
	return strings.TrimSpace(out)
}

func sanitizePlain(s string) string {
	return strings.TrimSpace(quoteUnescaper.Replace(plainPolicy.Sanitize(s)))
}
