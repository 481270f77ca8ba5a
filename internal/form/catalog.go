package form

import "github.com/noah-isme/crm-dashboard/internal/models"

// Name identifies one of the dashboard's forms.
type Name string

const (
	AccountCreate  Name = "account-create"
	AccountEdit    Name = "account-edit"
	Campaign       Name = "campaign"
	Profile        Name = "profile"
	ChangePassword Name = "change-password"
	LeadNote       Name = "lead-note"
)

var roleOptions = []string{string(models.RoleAdmin), string(models.RoleManager), string(models.RoleSales)}

func zero() *float64 {
	v := 0.0
	return &v
}

var catalog = map[Name]Schema{
	AccountCreate: {
		Name: string(AccountCreate),
		Fields: []FieldSpec{
			{Name: "fullname", Label: "Fullname", Kind: KindText, Required: true},
			{Name: "email", Label: "Email", Kind: KindEmail, Required: true},
			{Name: "phone", Label: "Phone", Kind: KindPhone, Required: true},
			{Name: "password", Label: "Password", Kind: KindPassword, Required: true, MinLen: 6},
			{Name: "role", Label: "Role", Kind: KindChoice, Required: true, Options: roleOptions},
			{Name: "address", Label: "Address", Kind: KindText},
		},
	},
	AccountEdit: {
		Name: string(AccountEdit),
		Fields: []FieldSpec{
			{Name: "fullname", Label: "Fullname", Kind: KindText, Required: true},
			{Name: "email", Label: "Email", Kind: KindEmail, Required: true},
			{Name: "phone", Label: "Phone", Kind: KindPhone, Required: true},
			{Name: "role", Label: "Role", Kind: KindChoice, Required: true, Options: roleOptions},
			{Name: "address", Label: "Address", Kind: KindText},
			{Name: "status", Label: "Status", Kind: KindChoice, Required: true,
				Options: []string{string(models.AccountActive), string(models.AccountInactive)}},
		},
	},
	Campaign: {
		Name: string(Campaign),
		Fields: []FieldSpec{
			{Name: "name", Label: "Campaign name", Kind: KindText, Required: true},
			{Name: "description", Label: "Description", Kind: KindText},
			{Name: "targetLead", Label: "Target lead", Kind: KindNumber, Required: true, Min: zero()},
			{Name: "periodStart", Label: "Start date", Kind: KindDate, Required: true},
			{Name: "periodEnd", Label: "End date", Kind: KindDate, Required: true},
			{Name: "invitedEmails", Label: "Invited emails", Kind: KindList, Elem: KindEmail},
		},
		Checks: []Check{
			DateNotBefore("periodEnd", "periodStart", "End date must not be before start date."),
		},
	},
	Profile: {
		Name: string(Profile),
		Fields: []FieldSpec{
			{Name: "fullname", Label: "Fullname", Kind: KindText, Required: true},
			{Name: "phone", Label: "Phone", Kind: KindPhone, Required: true},
			{Name: "address", Label: "Address", Kind: KindText},
		},
	},
	ChangePassword: {
		Name: string(ChangePassword),
		Fields: []FieldSpec{
			{Name: "currentPassword", Label: "Current password", Kind: KindText, Required: true},
			{Name: "newPassword", Label: "New password", Kind: KindPassword, Required: true, MinLen: 6},
			{Name: "confirmPassword", Label: "Password confirmation", Kind: KindText, Required: true},
		},
		Checks: []Check{
			MatchField("confirmPassword", "newPassword", "Password confirmation does not match."),
		},
	},
	LeadNote: {
		Name: string(LeadNote),
		Fields: []FieldSpec{
			{Name: "content", Label: "Note", Kind: KindText, Required: true},
		},
	},
}

// Lookup returns the schema of a named form.
func Lookup(name Name) (Schema, bool) {
	s, ok := catalog[name]
	return s, ok
}

// Names lists every known form.
func Names() []Name {
	return []Name{AccountCreate, AccountEdit, Campaign, Profile, ChangePassword, LeadNote}
}
