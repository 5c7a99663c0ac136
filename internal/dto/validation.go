package dto

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var brazilianStates = map[string]struct{}{
	"AC": {}, "AL": {}, "AP": {}, "AM": {}, "BA": {}, "CE": {}, "DF": {}, "ES": {}, "GO": {},
	"MA": {}, "MT": {}, "MS": {}, "MG": {}, "PA": {}, "PB": {}, "PR": {}, "PE": {}, "PI": {},
	"RJ": {}, "RN": {}, "RS": {}, "RO": {}, "RR": {}, "SC": {}, "SP": {}, "SE": {}, "TO": {},
}

// NewValidator returns a validator with the registry rules ("cpf", "uf") registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// RegisterValidations adds the registry rules to v.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return len(CPFDigits(fl.Field().String())) == 11
	})
	_ = v.RegisterValidation("uf", func(fl validator.FieldLevel) bool {
		return ValidState(fl.Field().String())
	})
}

// CPFDigits strips punctuation from a CPF. Any other character makes it invalid.
func CPFDigits(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-':
		default:
			return ""
		}
	}
	return b.String()
}

// FormatCPF renders 11 digits as 000.000.000-00. Other inputs are returned unchanged.
func FormatCPF(raw string) string {
	d := CPFDigits(raw)
	if len(d) != 11 {
		return raw
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// ValidState reports whether code is a Brazilian federative unit.
func ValidState(code string) bool {
	_, ok := brazilianStates[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}
