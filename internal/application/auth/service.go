package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carematch/carematch-api/internal/domain"
	"github.com/carematch/carematch-api/internal/infrastructure/sns"
	"github.com/carematch/carematch-api/internal/infrastructure/wechat"
)

// Result is the outcome of any successful login flow: a bearer token plus the
// resolved account.
type Result struct {
	Token string
	User  *domain.User
}

// Service coordinates the three login flows. Each flow ends in a token issue;
// none of them persists any session state.
type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*Result, error)
	LoginWithPassword(ctx context.Context, req domain.LoginRequest) (*Result, error)
	SendPhoneCode(ctx context.Context, req domain.SendPhoneCodeRequest) error
	VerifyPhoneAndLogin(ctx context.Context, req domain.VerifyPhoneCodeRequest) (*Result, error)
	LoginWithWeChat(ctx context.Context, req domain.WeChatLoginRequest) (*Result, error)
	Refresh(ctx context.Context, token string) (string, error)
}

type resolver interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	ResolveByPasswordCredential(ctx context.Context, identifier, password string) (*domain.User, error)
	ResolveOrCreateFromPhone(ctx context.Context, countryCode, phoneNumber, role, name string) (*domain.User, error)
	ResolveOrCreateFromWeChat(ctx context.Context, profile *wechat.Profile, role string) (*domain.User, error)
}

type codeStore interface {
	IsRateLimited(countryCode, phoneNumber string) bool
	Send(countryCode, phoneNumber string) string
	Verify(countryCode, phoneNumber, candidate string) bool
}

type tokenCodec interface {
	Sign(subject string) (string, error)
	Refresh(token string) (string, error)
}

type externalBroker interface {
	Authenticate(ctx context.Context, code string) (*wechat.Profile, error)
}

type service struct {
	resolver  resolver
	codes     codeStore
	tokens    tokenCodec
	broker    externalBroker
	smsSender sns.SMSSender
}

type ServiceDeps struct {
	Resolver  resolver
	CodeStore codeStore
	Tokens    tokenCodec
	Broker    externalBroker
	SMSSender sns.SMSSender // nil in development: codes are logged instead
}

func NewService(deps ServiceDeps) Service {
	return &service{
		resolver:  deps.Resolver,
		codes:     deps.CodeStore,
		tokens:    deps.Tokens,
		broker:    deps.Broker,
		smsSender: deps.SMSSender,
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*Result, error) {
	u, err := s.resolver.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	// Subject is the username the account registered with.
	token, err := s.tokens.Sign(req.Username)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, User: u}, nil
}

// LoginWithPassword resolves the credential and issues a token whose subject
// is the identifier the client actually presented, not the account's primary
// identifier, so subsequent subject resolution matches what the client holds.
func (s *service) LoginWithPassword(ctx context.Context, req domain.LoginRequest) (*Result, error) {
	u, err := s.resolver.ResolveByPasswordCredential(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Sign(req.Identifier)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, User: u}, nil
}

// SendPhoneCode enforces the rate limit, stores a fresh code, and delivers it.
// The rate-limit check happens before Send; the store itself never refuses a
// send.
func (s *service) SendPhoneCode(ctx context.Context, req domain.SendPhoneCodeRequest) error {
	if s.codes.IsRateLimited(req.CountryCode, req.PhoneNumber) {
		return fmt.Errorf("code already sent recently: %w", domain.ErrRateLimited)
	}
	code := s.codes.Send(req.CountryCode, req.PhoneNumber)
	if s.smsSender == nil {
		slog.Info("sms sender not configured, logging code",
			"phone", req.CountryCode+req.PhoneNumber, "code", code)
		return nil
	}
	if err := s.smsSender.SendSMS(ctx, req.CountryCode+req.PhoneNumber,
		"Your verification code: "+code); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}

func (s *service) VerifyPhoneAndLogin(ctx context.Context, req domain.VerifyPhoneCodeRequest) (*Result, error) {
	if !s.codes.Verify(req.CountryCode, req.PhoneNumber, req.Code) {
		return nil, fmt.Errorf("phone login rejected: %w", domain.ErrCodeInvalid)
	}
	u, err := s.resolver.ResolveOrCreateFromPhone(ctx, req.CountryCode, req.PhoneNumber, req.Role, req.Name)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Sign(*u.Phone)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, User: u}, nil
}

func (s *service) LoginWithWeChat(ctx context.Context, req domain.WeChatLoginRequest) (*Result, error) {
	profile, err := s.broker.Authenticate(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	u, err := s.resolver.ResolveOrCreateFromWeChat(ctx, profile, req.Role)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Sign(profile.OpenID)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, User: u}, nil
}

func (s *service) Refresh(_ context.Context, token string) (string, error) {
	return s.tokens.Refresh(token)
}
