package forms

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/bloodlink/donorauth/session"
	"github.com/microcosm-cc/bluemonday"
)

var (
	emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)
	strict       = bluemonday.StrictPolicy()
)

// Problems maps a field name to a human-readable reason.
type Problems map[string]string

func (p Problems) add(field, msg string) {
	if _, ok := p[field]; !ok {
		p[field] = msg
	}
}

// Rules carries the configurable part of validation.
type Rules struct {
	MinPasswordLength int
	RequireAvatar     bool
	RequireLocation   bool
}

// Registration is the sign-up form after normalization.
type Registration struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	Avatar          string
	BloodGroup      string
	District        string
	Upazila         string
}

// Update carries optional profile changes; nil means unchanged.
type Update struct {
	Name       *string
	Avatar     *string
	BloodGroup *string
	District   *string
	Upazila    *string
}

// NormalizeEmail trims surrounding whitespace and lowercases.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// CleanName strips markup and surrounding whitespace from a display name.
func CleanName(name string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(name)))
}

// ValidateRegistration normalizes in and reports every problem found.
func ValidateRegistration(in Registration, rules Rules) (Registration, Problems) {
	problems := Problems{}
	out := in
	out.Email = NormalizeEmail(in.Email)
	out.Name = CleanName(in.Name)
	out.Avatar = strings.TrimSpace(in.Avatar)
	out.BloodGroup = strings.TrimSpace(in.BloodGroup)
	out.District = strings.TrimSpace(in.District)
	out.Upazila = strings.TrimSpace(in.Upazila)

	checkEmail(problems, out.Email)
	checkPassword(problems, in.Password, rules.MinPasswordLength)
	if in.Password != in.ConfirmPassword {
		problems.add("confirmPassword", "passwords do not match")
	}
	if out.Name == "" {
		problems.add("name", "name is required")
	}
	checkAvatar(problems, out.Avatar, rules.RequireAvatar)
	checkBloodGroup(problems, out.BloodGroup, true)
	if rules.RequireLocation {
		if out.District == "" {
			problems.add("district", "district is required")
		}
		if out.Upazila == "" {
			problems.add("upazila", "upazila is required")
		}
	}

	return out, problems
}

// ValidateLogin normalizes the email and checks that both fields are present.
func ValidateLogin(email, password string) (string, Problems) {
	problems := Problems{}
	email = NormalizeEmail(email)
	if email == "" {
		problems.add("email", "email is required")
	}
	if password == "" {
		problems.add("password", "password is required")
	}
	return email, problems
}

// ValidateUpdate normalizes the provided fields of in. A provided field may
// not be blanked.
func ValidateUpdate(in Update) (Update, Problems) {
	problems := Problems{}
	out := Update{}

	if in.Name != nil {
		v := CleanName(*in.Name)
		if v == "" {
			problems.add("name", "name cannot be empty")
		}
		out.Name = &v
	}
	if in.Avatar != nil {
		v := strings.TrimSpace(*in.Avatar)
		checkAvatar(problems, v, true)
		out.Avatar = &v
	}
	if in.BloodGroup != nil {
		v := strings.TrimSpace(*in.BloodGroup)
		checkBloodGroup(problems, v, true)
		out.BloodGroup = &v
	}
	if in.District != nil {
		v := strings.TrimSpace(*in.District)
		if v == "" {
			problems.add("district", "district cannot be empty")
		}
		out.District = &v
	}
	if in.Upazila != nil {
		v := strings.TrimSpace(*in.Upazila)
		if v == "" {
			problems.add("upazila", "upazila cannot be empty")
		}
		out.Upazila = &v
	}

	return out, problems
}

// Empty reports whether no field of u is set.
func (u Update) Empty() bool {
	return u.Name == nil && u.Avatar == nil && u.BloodGroup == nil && u.District == nil && u.Upazila == nil
}

func checkEmail(problems Problems, email string) {
	switch {
	case email == "":
		problems.add("email", "email is required")
	case !ValidEmail(email):
		problems.add("email", "email is malformed")
	}
}

func checkPassword(problems Problems, pw string, min int) {
	if min <= 0 {
		min = 6
	}
	switch {
	case pw == "":
		problems.add("password", "password is required")
	case len([]rune(pw)) < min:
		problems.add("password", "password is too short")
	}
}

func checkAvatar(problems Problems, avatar string, required bool) {
	if avatar == "" {
		if required {
			problems.add("avatar", "avatar is required")
		}
		return
	}
	u, err := url.Parse(avatar)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems.add("avatar", "avatar must be an http(s) URL")
	}
}

func checkBloodGroup(problems Problems, group string, required bool) {
	if group == "" {
		if required {
			problems.add("bloodGroup", "blood group is required")
		}
		return
	}
	if !session.ValidBloodGroup(group) {
		problems.add("bloodGroup", "unknown blood group")
	}
}
