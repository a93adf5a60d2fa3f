package devserver

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/panyam/mddclient/api"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
	minPasswordLength = 8
	maxPasswordLength = 255
	maxTitleLength    = 255
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const passwordRuleMessage = "Invalid password (at least 8 characters with 1 lowercase, 1 uppercase, 1 digit and 1 special character)"

// fieldErrors collects the first failure per field
type fieldErrors map[string]string

func (f fieldErrors) add(field, message string) {
	if _, ok := f[field]; !ok {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return validationError(f)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func checkEmail(f fieldErrors, email string) {
	if !emailRegex.MatchString(email) {
		f.add("email", "Invalid email format")
	}
}

func checkUsername(f fieldErrors, username string) {
	if blank(username) {
		f.add("username", "Username is required")
		return
	}
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		f.add("username", fmt.Sprintf("Username must be %d-%d characters", minUsernameLength, maxUsernameLength))
	}
}

// checkPassword requires a lowercase letter, an uppercase letter, a digit
// and a character that is none of those
func checkPassword(f fieldErrors, password string) {
	if n := utf8.RuneCountInString(password); n < minPasswordLength || n > maxPasswordLength {
		f.add("password", passwordRuleMessage)
		return
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		f.add("password", passwordRuleMessage)
	}
}

func validateRegister(req *api.RegisterRequest) error {
	f := fieldErrors{}
	if blank(req.Email) {
		f.add("email", "Email is required")
	} else {
		checkEmail(f, req.Email)
	}
	checkUsername(f, req.Username)
	if req.Password == "" {
		f.add("password", "Password is required")
	} else {
		checkPassword(f, req.Password)
	}
	return f.err()
}

func validateLogin(req *api.LoginRequest) error {
	f := fieldErrors{}
	if blank(req.Identifier) {
		f.add("identifier", "Identifier is required")
	}
	if blank(req.Password) {
		f.add("password", "Password is required")
	}
	return f.err()
}

func validateUpdateUser(req *api.UpdateUserRequest) error {
	f := fieldErrors{}
	if req.Email == nil && req.Username == nil && req.Password == nil {
		f.add("anyFieldProvided", "At least one field must be provided")
	}
	if req.Email != nil {
		checkEmail(f, *req.Email)
	}
	if req.Username != nil {
		checkUsername(f, *req.Username)
	}
	if req.Password != nil {
		checkPassword(f, *req.Password)
	}
	return f.err()
}

func validateCreatePost(req *api.CreatePostRequest) error {
	f := fieldErrors{}
	if req.SubjectID == 0 {
		f.add("subjectId", "Subject is required")
	}
	if blank(req.Title) {
		f.add("title", "Title is required")
	} else if utf8.RuneCountInString(req.Title) > maxTitleLength {
		f.add("title", fmt.Sprintf("Title must be at most %d characters", maxTitleLength))
	}
	if blank(req.Content) {
		f.add("content", "Content is required")
	}
	return f.err()
}

func validateComment(req *api.CreateCommentRequest) error {
	f := fieldErrors{}
	if blank(req.Content) {
		f.add("content", "Content is required")
	}
	return f.err()
}
