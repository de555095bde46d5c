package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"
	"github.com/spf13/afero"
)

// Problem is one failed rule of an export configuration.
type Problem struct {
	Field   string
	Message string
}

// ValidationError reports every problem found in an export configuration.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "config: invalid export configuration"
	}
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Message)
	}
	return "config: invalid export configuration: " + strings.Join(msgs, "; ")
}

// Has reports whether a problem was recorded for the field.
func (e *ValidationError) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, p := range e.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}

// Validate checks required fields, the export time/daily flag pairing, and
// that the output folder exists as a directory on fsys.
func (e Export) Validate(fsys afero.Fs) error {
	validate, translator := newValidator()

	var problems []Problem
	if err := validate.Struct(e); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("config: validate: %w", err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, Problem{Field: fe.Field(), Message: fe.Translate(translator)})
		}
	}

	if e.DailyExport && !e.ExportTime.Valid {
		problems = append(problems, Problem{Field: "export_time", Message: "export_time is required when daily_export is enabled"})
	}
	if !e.DailyExport && e.ExportTime.Valid {
		problems = append(problems, Problem{Field: "export_time", Message: "export_time is only allowed when daily_export is enabled"})
	}

	if e.OutputFolder != "" {
		dir := nativePath(e.OutputFolder)
		isDir, err := afero.IsDir(fsys, dir)
		switch {
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("config: stat output folder %s: %w", dir, err)
		case !isDir:
			problems = append(problems, Problem{Field: "output_folder", Message: fmt.Sprintf("output_folder %s does not exist or is not a directory", e.OutputFolder)})
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()

	enLocale := en.New()
	enTranslator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(fmt.Errorf("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(validate, enTranslator); err != nil {
		panic(fmt.Errorf("translator was not registered: %w", err))
	}

	// Report fields by their config.yaml names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return validate, enTranslator
}
