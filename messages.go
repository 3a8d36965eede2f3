package users

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is the region used to parse phone numbers that carry no
// country prefix.
var DefaultPhoneRegion = "CO"

// BirthDateLayout is the wire format for birth dates.
const BirthDateLayout = "2006-01-02"

// RegisterUserMessage is the self-registration payload. Role and status are
// not accepted here: registration always produces an active client.
type RegisterUserMessage struct {
	FullName        string `form:"full_name" json:"full_name"`
	IDType          string `form:"id_type" json:"id_type"`
	IDNumber        string `form:"id_number" json:"id_number"`
	BirthDate       string `form:"birth_date" json:"birth_date"`
	Phone           string `form:"phone" json:"phone"`
	Address         string `form:"address" json:"address"`
	ProfilePhotoURL string `form:"profile_photo_url" json:"profile_photo_url"`
	Email           string `form:"email_primary" json:"email_primary"`
	EmailSecondary  string `form:"email_secondary" json:"email_secondary"`
	Password        string `form:"password" json:"password"`
	UseHashid       bool   `form:"-" json:"-"`
}

func (m RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (m RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.FullName, validation.Required, validation.Length(1, 255)),
		validation.Field(&m.IDType, validation.Required, validation.By(validIDType)),
		validation.Field(&m.IDNumber, validation.Required, validation.Length(1, 50)),
		validation.Field(&m.BirthDate, validation.Required, validation.Date(BirthDateLayout)),
		validation.Field(&m.Phone, validation.Required, validation.By(validPhone)),
		validation.Field(&m.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&m.EmailSecondary, is.Email),
		validation.Field(&m.ProfilePhotoURL, is.URL),
		validation.Field(&m.Password, validation.Required, validation.Length(8, 100)),
	)
}

// CreateUserMessage is the admin creation payload: registration fields plus
// an explicit role and status.
type CreateUserMessage struct {
	RegisterUserMessage
	Role   string `form:"role" json:"role"`
	Status string `form:"status" json:"status"`
}

func (m CreateUserMessage) Type() string { return "user.create" }

// Validate will run validation rules
func (m CreateUserMessage) Validate() error {
	if err := m.RegisterUserMessage.Validate(); err != nil {
		return err
	}

	return validation.ValidateStruct(&m,
		validation.Field(&m.Role, validation.Required, validation.By(validRole)),
		validation.Field(&m.Status, validation.By(validStatus)),
	)
}

func (m RegisterUserMessage) birthDate() (*time.Time, error) {
	if m.BirthDate == "" {
		return nil, nil
	}
	t, err := time.Parse(BirthDateLayout, m.BirthDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func validIDType(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, ok := ParseIDType(s); !ok {
		return errors.New("must be a valid identification type")
	}
	return nil
}

func validRole(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, ok := ParseRole(s); !ok {
		return errors.New("must be a valid role")
	}
	return nil
}

func validStatus(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, ok := ParseStatus(s); !ok {
		return errors.New("must be a valid status")
	}
	return nil
}

func validPhone(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, DefaultPhoneRegion)
	if err != nil {
		return errors.New("must be a parsable phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number")
	}

	return nil
}
