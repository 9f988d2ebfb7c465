package sessions

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/meetup-qa/backend/internal/models"
)

// Custom validation tags used in request bodies.
const (
	TagSessionCode = "sessioncode"
	TagTimeVote    = "timevote"
)

// RegisterValidators adds the sessioncode and timevote tags to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation(TagSessionCode, validateSessionCode); err != nil {
		return err
	}
	return v.RegisterValidation(TagTimeVote, validateTimeVote)
}

// validateSessionCode accepts 4 to 16 letters or digits, in either case.
func validateSessionCode(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) < 4 || len(s) > 16 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// validateTimeVote accepts yes or no, ignoring case and surrounding spaces.
func validateTimeVote(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return strings.EqualFold(s, models.VoteYes) || strings.EqualFold(s, models.VoteNo)
}
