package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/albizan/shortify-backend/internal/apperror"
	"github.com/albizan/shortify-backend/internal/model"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

const (
	maxNameLength  = 100
	maxTitleLength = 200
	minPassword    = 6
	maxPassword    = 72
)

// =========================================================================
// REQUEST BODIES
// =========================================================================

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPassword, maxPassword)),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// emailRequest is the body of /auth/amnesia and /auth/resend-confirmation-mail.
type emailRequest struct {
	Email string `json:"email"`
}

func (r emailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type changePasswordRequest struct {
	Token     string `json:"token"`
	Password1 string `json:"password_1"`
	Password2 string `json:"password_2"`
}

func (r changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password1, validation.Required, validation.Length(minPassword, maxPassword)),
		validation.Field(&r.Password2, validation.Required, validation.Length(minPassword, maxPassword)),
	)
}

type addLinkRequest struct {
	Title    string `json:"title"`
	Original string `json:"original"`
	IsActive *bool  `json:"isActive"`
}

func (r addLinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, maxTitleLength)),
		validation.Field(&r.Original, validation.Required, validation.By(httpURL)),
		validation.Field(&r.IsActive, validation.NotNil),
	)
}

type patchLinkRequest struct {
	Title    *string `json:"title"`
	Original *string `json:"original"`
	IsActive *bool   `json:"isActive"`
}

func (r patchLinkRequest) Validate() error {
	if r.patch().Empty() {
		return apperror.BadRequest("at least one of title, original or isActive is required")
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, maxTitleLength)),
		validation.Field(&r.Original, validation.NilOrNotEmpty, validation.By(httpURL)),
	)
}

func (r patchLinkRequest) patch() model.LinkPatch {
	return model.LinkPatch{Title: r.Title, Original: r.Original, IsActive: r.IsActive}
}

// httpURL accepts absolute http and https URLs with a host.
func httpURL(value interface{}) error {
	value, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return errors.New("must be a string")
	}
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http or https URL")
	}
	return nil
}

// =========================================================================
// DECODING
// =========================================================================

// decodeJSON reads the body into dst and runs its validation rules. Every
// failure comes back as an apperror validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst validation.Validatable) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.BadRequest("request body is empty")
		case errors.As(err, &maxErr):
			return apperror.BadRequest("request body is too large")
		default:
			return apperror.BadRequest("invalid JSON body")
		}
	}

	return validationError(dst.Validate())
}

// validationError converts ozzo-validation output into an apperror.
func validationError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var errs validation.Errors
	if errors.As(err, &errs) && len(errs) > 0 {
		fields := make([]string, 0, len(errs))
		for f := range errs {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s: %s", f, errs[f].Error()))
		}
		return apperror.ValidationFailed(fields[0], strings.Join(parts, "; "))
	}

	return apperror.BadRequest(err.Error())
}

// queryInt reads an optional integer query parameter. Missing means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
