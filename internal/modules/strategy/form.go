package strategy

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

var validate = validator.New()

func (t FieldType) rule() string {
	switch t {
	case FieldAmount, FieldPercentage:
		return "numeric"
	case FieldAddress:
		return "eth_addr"
	case FieldTimestamp:
		return "number|datetime=2006-01-02T15:04:05Z07:00"
	default:
		return "number"
	}
}

var tagMessages = map[string]string{
	"numeric":  "must be a number",
	"number":   "must be a whole number",
	"eth_addr": "must be a 0x-prefixed address",
	"datetime": "must be unix seconds or an RFC 3339 time",
}

func message(f Field, err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		tag := verrs[0].Tag()
		if strings.Contains(tag, "|") {
			tag = "datetime"
		}
		if m, ok := tagMessages[tag]; ok {
			return f.Label + " " + m
		}
		return fmt.Sprintf("%s failed %s check", f.Label, tag)
	}
	return f.Label + " is invalid"
}

func (f Field) parse(raw string) (interface{}, error) {
	switch f.Type {
	case FieldAmount:
		v, err := chain.ParseUnits(raw, f.Decimals)
		if err != nil {
			return nil, fmt.Errorf("%s allows at most %d decimals and must not be negative", f.Label, f.Decimals)
		}
		return v, nil
	case FieldPercentage:
		bps, err := chain.ParsePercent(raw)
		if err != nil || bps.Cmp(big.NewInt(10000)) > 0 {
			return nil, fmt.Errorf("%s must be between 0 and 100 with at most two decimals", f.Label)
		}
		return bps, nil
	case FieldAddress:
		return chain.ParseAddress(raw)
	case FieldTimestamp:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return big.NewInt(t.Unix()), nil
		}
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("%s must be unix seconds or an RFC 3339 time", f.Label)
		}
		return v, nil
	default:
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("%s must be a non-negative whole number", f.Label)
		}
		return v, nil
	}
}

// parseForm validates form against fields and returns the typed values.
// Every failing field is reported at once.
func parseForm(fields []Field, form map[string]string) (Input, error) {
	in := make(Input, len(fields))
	errs := make(map[string]string)

	for _, f := range fields {
		raw := strings.TrimSpace(form[f.Name])
		if raw == "" {
			if f.Required {
				errs[f.Name] = f.Label + " is required"
			}
			continue
		}
		if err := validate.Var(raw, f.Type.rule()); err != nil {
			errs[f.Name] = message(f, err)
			continue
		}
		v, err := f.parse(raw)
		if err != nil {
			errs[f.Name] = err.Error()
			continue
		}
		in[f.Name] = v
	}

	if len(errs) > 0 {
		return nil, apperr.Validation(errs)
	}
	return in, nil
}
