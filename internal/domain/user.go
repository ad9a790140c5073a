package domain

import "time"

// Roles a user can hold. Mothers book care, matrons provide it.
const (
	RoleMother = "MOTHER"
	RoleMatron = "MATRON"
)

// ValidRole reports whether role is one of the known role names.
func ValidRole(role string) bool {
	return role == RoleMother || role == RoleMatron
}

// User is the identity anchor. A user is reachable through up to three
// identifier namespaces: username, phone (stored as countryCode+number), and
// WeChat openid. Each is globally unique when present. Phone and WeChat users
// have no password hash.
type User struct {
	UserID           string     `json:"id" dynamodbav:"user_id"`
	Username         *string    `json:"username,omitempty" dynamodbav:"username"`
	Phone            *string    `json:"phone,omitempty" dynamodbav:"phone"`
	WeChatOpenID     *string    `json:"-" dynamodbav:"wechat_openid"`
	WeChatUnionID    *string    `json:"-" dynamodbav:"wechat_unionid"`
	PasswordHash     string     `json:"-" dynamodbav:"password_hash"`
	Role             string     `json:"role" dynamodbav:"role"`
	Name             string     `json:"name" dynamodbav:"name"`
	AvatarURL        string     `json:"avatar_url,omitempty" dynamodbav:"avatar_url"`
	ProfileCompleted bool       `json:"profile_completed" dynamodbav:"profile_completed"`
	Enable           int        `json:"enable" dynamodbav:"enable"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt        time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=64"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Role     string  `json:"role" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Phone    *string `json:"phone"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type SendPhoneCodeRequest struct {
	CountryCode string `json:"country_code" validate:"required,ccode"`
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type VerifyPhoneCodeRequest struct {
	CountryCode string `json:"country_code" validate:"required,ccode"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	Role        string `json:"role" validate:"required"`
	Name        string `json:"name"`
}

type WeChatLoginRequest struct {
	Code string `json:"code" validate:"required"`
	Role string `json:"role" validate:"required"`
}

type CompleteProfileRequest struct {
	Name      string `json:"name" validate:"required"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

type LinkPhoneRequest struct {
	CountryCode string `json:"country_code" validate:"required,ccode"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}
