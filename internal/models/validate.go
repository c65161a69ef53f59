package models

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/pkg/utils"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// messages shown next to each form field, keyed by field then failing tag
var fieldMessages = map[string]map[string]string{
	"name":  {"required": "Nome é obrigatório"},
	"email": {"required": "E-mail é obrigatório", "loose_email": "E-mail inválido"},
	"phone": {"required": "Telefone é obrigatório", "phone_digits": "Telefone inválido"},
	"cpf":   {"required": "CPF é obrigatório", "cpf_digits": "CPF inválido"},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "loose_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "phone_digits", func(fl validator.FieldLevel) bool {
		n := len(utils.Digits(fl.Field().String()))
		return n >= 10 && n <= 11
	})
	mustRegister(v, "cpf_digits", func(fl validator.FieldLevel) bool {
		return len(utils.Digits(fl.Field().String())) == 11
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// Validate applies the checkout form rules. It returns nil or a
// apperrors.FieldErrors holding one message per failing field.
func (b BuyerInfo) Validate() error {
	trimmed := BuyerInfo{
		Name:  strings.TrimSpace(b.Name),
		Email: strings.TrimSpace(b.Email),
		Phone: strings.TrimSpace(b.Phone),
		CPF:   strings.TrimSpace(b.CPF),
	}
	err := validate.Struct(trimmed)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := apperrors.FieldErrors{}
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()][fe.Tag()]
		if !ok {
			msg = "inválido"
		}
		fields.Add(fe.Field(), msg)
	}
	return fields
}
