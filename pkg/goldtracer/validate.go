package goldtracer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrInvalidCorrection is returned, before any request is sent, when a
// manual correction carries a non-numeric or out-of-range probability or a
// malformed meeting date.
var ErrInvalidCorrection = errors.New("invalid fedwatch correction")

// sumTolerance is how far prob_pause + prob_cut_25 may stray from 100.
const sumTolerance = 0.1

var validate = validator.New()

// ParseProbability parses a percentage typed by an operator.
func ParseProbability(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidCorrection, s)
	}
	return d.InexactFloat64(), nil
}

func validateUpdate(u FedWatchUpdate) error {
	if err := validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrInvalidCorrection, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidCorrection, err)
	}
	if math.Abs(u.ProbPause+u.ProbCut25-100) > sumTolerance {
		return fmt.Errorf("%w: probabilities sum to %.1f, want 100", ErrInvalidCorrection, u.ProbPause+u.ProbCut25)
	}
	return nil
}
