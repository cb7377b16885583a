package user

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/virtuallab/core"
)

func newValidate() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidate()

	valid := NewUser{NIM: "10222001", FullName: "Budi Santoso", Email: "Budi@Test.ID ", Password: "s3cure!pw"}

	tests := []struct {
		name     string
		nu       NewUser
		wantTags map[string]string // field -> tag
	}{
		{name: "valid", nu: valid},
		{name: "valid with confirmation", nu: func() NewUser { nu := valid; nu.PasswordConfirm = nu.Password; return nu }()},
		{
			name:     "all missing",
			nu:       NewUser{},
			wantTags: map[string]string{"nim": "required", "full_name": "required", "email": "required", "password": "required"},
		},
		{name: "bad email", nu: func() NewUser { nu := valid; nu.Email = "budi"; return nu }(), wantTags: map[string]string{"email": "email"}},
		{name: "short nim", nu: func() NewUser { nu := valid; nu.NIM = "12"; return nu }(), wantTags: map[string]string{"nim": "min"}},
		{name: "nim with symbols", nu: func() NewUser { nu := valid; nu.NIM = "102-22001"; return nu }(), wantTags: map[string]string{"nim": "alphanum"}},
		{name: "short password", nu: func() NewUser { nu := valid; nu.Password = "a1!"; return nu }(), wantTags: map[string]string{"password": pwdMinLenTag}},
		{name: "password with space", nu: func() NewUser { nu := valid; nu.Password = "s3cure pw"; return nu }(), wantTags: map[string]string{"password": pwdNoSpaceTag}},
		{name: "password like nim", nu: func() NewUser { nu := valid; nu.Password = "10222001x"; return nu }(), wantTags: map[string]string{"password": pwdAttrSimTag}},
		{
			name:     "confirmation mismatch",
			nu:       func() NewUser { nu := valid; nu.PasswordConfirm = "other!pw"; return nu }(),
			wantTags: map[string]string{"password_confirm": "eqfield"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.nu
			err := nu.Validate(validate)
			if tt.wantTags == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				if nu.Email != "budi@test.id" {
					t.Errorf("Validate() did not clean email: %q", nu.Email)
				}
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Validate() error = %v, want validator.ValidationErrors", err)
			}
			got := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				got[fe.Field()] = fe.Tag()
			}
			if len(got) != len(tt.wantTags) {
				t.Errorf("Validate() fields = %v, want %v", got, tt.wantTags)
			}
			for fld, tag := range tt.wantTags {
				if got[fld] != tag {
					t.Errorf("Validate() %s tag = %q, want %q", fld, got[fld], tag)
				}
			}
		})
	}
}
