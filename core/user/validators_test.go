package user

import (
	"sort"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/optioeducation/optio/core"
)

func newTestValidator() *validator.Validate {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func failedTags(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(verrs))
	for _, ferr := range verrs {
		tags = append(tags, ferr.Tag())
	}
	return tags
}

func hasTag(err error, tag string) bool {
	for _, t := range failedTags(err) {
		if t == tag {
			return true
		}
	}
	return false
}

func TestPasswordPolicy(t *testing.T) {
	validate := newTestValidator()

	commonPasswords = []string{"password1!a", "qwerty"}
	sort.Strings(commonPasswords)
	defer func() { commonPasswords = commonPasswords[:0] }()

	newUser := func(pwd string) NewUser {
		return NewUser{
			Name:            "Jane Doe",
			Username:        "janedoe",
			Email:           "jane@test.test",
			Password:        pwd,
			PasswordConfirm: pwd,
		}
	}

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "aB1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "aB1! aB1!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "no complexity", pwd: "abcdefgh", wantTag: pwdComplexityTag},
		{name: "no special char", pwd: "Abcdefg1", wantTag: pwdComplexityTag},
		{name: "similar to username", pwd: "Janedoe1!", wantTag: pwdAttrSimTag},
		{name: "common password", pwd: "Password1!a", wantTag: pwdNoCommonTag},
		{name: "valid password", pwd: "g00d-N-Str0ng!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := newUser(tt.pwd)
			err := validate.Struct(&nu)
			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("Struct() error = %v, want nil", err)
				}
				return
			}
			if !hasTag(err, tt.wantTag) {
				t.Errorf("Struct() error = %v, want tag %q", err, tt.wantTag)
			}
		})
	}
}

func TestUsernameOrEmailRequired(t *testing.T) {
	validate := newTestValidator()

	nu := NewUser{
		Name:            "Jane Doe",
		Password:        "g00d-N-Str0ng!",
		PasswordConfirm: "g00d-N-Str0ng!",
	}
	if err := validate.Struct(&nu); !hasTag(err, usernameOrEmailTag) {
		t.Errorf("Struct() error = %v, want tag %q", err, usernameOrEmailTag)
	}

	nu.Username = "janedoe"
	if err := validate.Struct(&nu); err != nil {
		t.Errorf("Struct() error = %v, want nil", err)
	}
}

func TestAllRolesValidation(t *testing.T) {
	validate := newTestValidator()

	nu := NewUser{
		Name:            "Jane Doe",
		Username:        "janedoe",
		Password:        "g00d-N-Str0ng!",
		PasswordConfirm: "g00d-N-Str0ng!",
		Roles:           []string{"superhero:"},
	}
	if err := validate.Struct(&nu); !hasTag(err, allRolesTag) {
		t.Errorf("Struct() error = %v, want tag %q", err, allRolesTag)
	}

	nu.Roles = []string{RoleStudent, RoleTeacher}
	if err := validate.Struct(&nu); err != nil {
		t.Errorf("Struct() error = %v, want nil", err)
	}
}
