package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-mergejoin/pkg/join"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Row shape limits
	MaxJoinColumns = join.MaxJoinColumns
	MaxRowWidth    = 64
	MaxBlockRows   = 1 << 20
)

func init() {
	validate = validator.New()
}

// Struct validates v against its `validate` struct tags.
func Struct(v any) error {
	if v == nil {
		return errors.New("value to validate cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateJoinShape checks that rows of the given widths can carry
// numJoinColumns leading join columns.
func ValidateJoinShape(numJoinColumns, leftWidth, rightWidth int) error {
	if numJoinColumns < 1 || numJoinColumns > MaxJoinColumns {
		return fmt.Errorf("JoinColumns: must be between 1 and %d, got %d", MaxJoinColumns, numJoinColumns)
	}
	if err := ValidateRowWidth("LeftWidth", leftWidth, numJoinColumns); err != nil {
		return err
	}
	return ValidateRowWidth("RightWidth", rightWidth, numJoinColumns)
}

// ValidateRowWidth checks one row width against the number of join columns.
func ValidateRowWidth(field string, width, numJoinColumns int) error {
	if width < numJoinColumns {
		return fmt.Errorf("%s: width %d cannot hold %d join columns", field, width, numJoinColumns)
	}
	if width > MaxRowWidth {
		return fmt.Errorf("%s: width %d exceeds maximum %d", field, width, MaxRowWidth)
	}
	return nil
}

// ValidateBlockRows validates the number of rows per stored block
func ValidateBlockRows(rows int) error {
	if rows < 1 {
		return fmt.Errorf("block rows must be at least 1, got %d", rows)
	}
	if rows > MaxBlockRows {
		return fmt.Errorf("block rows must not exceed %d, got %d", MaxBlockRows, rows)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, strings.ReplaceAll(param, " ", ", "))
		case "ltefield":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gtefield":
			return fmt.Errorf("%s: must be at least %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}
