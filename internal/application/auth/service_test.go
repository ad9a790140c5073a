package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/carematch/carematch-api/internal/domain"
	"github.com/carematch/carematch-api/internal/infrastructure/wechat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockResolver) ResolveByPasswordCredential(ctx context.Context, identifier, password string) (*domain.User, error) {
	args := m.Called(ctx, identifier, password)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockResolver) ResolveOrCreateFromPhone(ctx context.Context, countryCode, phoneNumber, role, name string) (*domain.User, error) {
	args := m.Called(ctx, countryCode, phoneNumber, role, name)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockResolver) ResolveOrCreateFromWeChat(ctx context.Context, profile *wechat.Profile, role string) (*domain.User, error) {
	args := m.Called(ctx, profile, role)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCodeStore struct{ mock.Mock }

func (m *mockCodeStore) IsRateLimited(countryCode, phoneNumber string) bool {
	return m.Called(countryCode, phoneNumber).Bool(0)
}
func (m *mockCodeStore) Send(countryCode, phoneNumber string) string {
	return m.Called(countryCode, phoneNumber).String(0)
}
func (m *mockCodeStore) Verify(countryCode, phoneNumber, candidate string) bool {
	return m.Called(countryCode, phoneNumber, candidate).Bool(0)
}

type mockTokenCodec struct{ mock.Mock }

func (m *mockTokenCodec) Sign(subject string) (string, error) {
	args := m.Called(subject)
	return args.String(0), args.Error(1)
}
func (m *mockTokenCodec) Refresh(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type mockBroker struct{ mock.Mock }

func (m *mockBroker) Authenticate(ctx context.Context, code string) (*wechat.Profile, error) {
	args := m.Called(ctx, code)
	if p, _ := args.Get(0).(*wechat.Profile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, phone, message string) error {
	return m.Called(ctx, phone, message).Error(0)
}

type mocks struct {
	resolver *mockResolver
	codes    *mockCodeStore
	tokens   *mockTokenCodec
	broker   *mockBroker
	sms      *mockSMSSender
}

func newTestService(t *testing.T, withSMS bool) (Service, *mocks) {
	t.Helper()
	m := &mocks{
		resolver: &mockResolver{},
		codes:    &mockCodeStore{},
		tokens:   &mockTokenCodec{},
		broker:   &mockBroker{},
		sms:      &mockSMSSender{},
	}
	deps := ServiceDeps{
		Resolver:  m.resolver,
		CodeStore: m.codes,
		Tokens:    m.tokens,
		Broker:    m.broker,
	}
	if withSMS {
		deps.SMSSender = m.sms
	}
	return NewService(deps), m
}

func testUser(phone string) *domain.User {
	u := &domain.User{UserID: "u-1", Role: domain.RoleMother, Name: "Jane", Enable: 1}
	if phone != "" {
		u.Phone = &phone
	}
	return u
}

// --- Register ---

func TestRegister_SignsUsernameAsSubject(t *testing.T) {
	svc, m := newTestService(t, false)
	ctx := context.Background()
	req := domain.RegisterRequest{Username: "jane", Password: "password1", Role: domain.RoleMother, Name: "Jane"}

	m.resolver.On("Register", ctx, req).Return(testUser(""), nil)
	m.tokens.On("Sign", "jane").Return("tok-1", nil)

	res, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, "u-1", res.User.UserID)
	m.resolver.AssertExpectations(t)
	m.tokens.AssertExpectations(t)
}

func TestRegister_ConflictPropagates(t *testing.T) {
	svc, m := newTestService(t, false)
	ctx := context.Background()
	req := domain.RegisterRequest{Username: "jane", Password: "password1", Role: domain.RoleMother, Name: "Jane"}

	m.resolver.On("Register", ctx, req).Return(nil, domain.ErrConflict)

	_, err := svc.Register(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	m.tokens.AssertNotCalled(t, "Sign", mock.Anything)
}

// --- LoginWithPassword ---

func TestLoginWithPassword_SignsPresentedIdentifier(t *testing.T) {
	svc, m := newTestService(t, false)
	ctx := context.Background()

	// The account's primary identifier is the username, but the client logged
	// in with the phone; the token subject must echo the phone.
	m.resolver.On("ResolveByPasswordCredential", ctx, "+15551234567", "password1").
		Return(testUser("+15551234567"), nil)
	m.tokens.On("Sign", "+15551234567").Return("tok-pw", nil)

	res, err := svc.LoginWithPassword(ctx, domain.LoginRequest{Identifier: "+15551234567", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "tok-pw", res.Token)
	m.tokens.AssertExpectations(t)
}

func TestLoginWithPassword_BadCredential(t *testing.T) {
	svc, m := newTestService(t, false)
	ctx := context.Background()

	m.resolver.On("ResolveByPasswordCredential", ctx, "jane", "nope").
		Return(nil, domain.ErrInvalidCredentials)

	_, err := svc.LoginWithPassword(ctx, domain.LoginRequest{Identifier: "jane", Password: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
	m.tokens.AssertNotCalled(t, "Sign", mock.Anything)
}

// --- SendPhoneCode ---

func TestSendPhoneCode_DeliversViaSMS(t *testing.T) {
	svc, m := newTestService(t, true)
	ctx := context.Background()

	m.codes.On("IsRateLimited", "+1", "5551234567").Return(false)
	m.codes.On("Send", "+1", "5551234567").Return("123456")
	m.sms.On("SendSMS", ctx, "+15551234567", "Your verification code: 123456").Return(nil)

	err := svc.SendPhoneCode(ctx, domain.SendPhoneCodeRequest{CountryCode: "+1", PhoneNumber: "5551234567"})
	require.NoError(t, err)
	m.sms.AssertExpectations(t)
}

func TestSendPhoneCode_RateLimited(t *testing.T) {
	svc, m := newTestService(t, true)
	ctx := context.Background()

	m.codes.On("IsRateLimited", "+1", "5551234567").Return(true)

	err := svc.SendPhoneCode(ctx, domain.SendPhoneCodeRequest{CountryCode: "+1", PhoneNumber: "5551234567"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	m.codes.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	m.sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendPhoneCode_NoSenderLogsInstead(t *testing.T) {
	svc, m := newTestService(t, false)
	ctx := context.Background()

	m.codes.On("IsRateLimited", "+1", "5551234567").Return(false)
	m.codes.On("Send", "+1", "5551234567").Return("654321")

	err := svc.SendPhoneCode(ctx, domain.SendPhoneCodeRequest{CountryCode: "+1", PhoneNumber: "5551234567"})
	require.NoError(t, err)
}

func TestSendPhoneCode_SMSFailurePropagates(t *testing.T) {
	svc, m := newTestService(t, true)
	ctx := context.Background()

	m.codes.On("IsRateLimited", "+1", "5551234567").Return(false)
	m.codes.On("Send", "+1", "5551234567").Return("123456")
	m.sms.On("SendSMS", ctx, "+15551234567", mock.Anything).Return(errors.New("sns down"))

	err := svc.SendPhoneCode(ctx, domain.SendPhoneCodeRequest{CountryCode: "+1", PhoneNumber: "5551234567"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sns down")
}

// --- VerifyPhoneAndLogin ---

func TestVerifyPhoneAndLogin_SignsFullPhoneAsSubject(t *testing.T) {
	svc, m := newTestService(t, false)
	ctx := context.Background()

	m.codes.On("Verify", "+1", "5551234567", "123456").Return(true)
	m.resolver.On("ResolveOrCreateFromPhone", ctx, "+1", "5551234567", domain.RoleMatron, "Wang").
		Return(testUser("+15551234567"), nil)
	m.tokens.On("Sign", "+15551234567").Return("tok-phone", nil)

	res, err := svc.VerifyPhoneAndLogin(ctx, domain.VerifyPhoneCodeRequest{
		CountryCode: "+1", PhoneNumber: "5551234567", Code: "123456",
		Role: domain.RoleMatron, Name: "Wang",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-phone", res.Token)
	m.tokens.AssertExpectations(t)
}

func TestVerifyPhoneAndLogin_WrongCode(t *testing.T) {
	svc, m := newTestService(t, false)
	ctx := context.Background()

	m.codes.On("Verify", "+1", "5551234567", "000000").Return(false)

	_, err := svc.VerifyPhoneAndLogin(ctx, domain.VerifyPhoneCodeRequest{
		CountryCode: "+1", PhoneNumber: "5551234567", Code: "000000",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeInvalid))
	m.resolver.AssertNotCalled(t, "ResolveOrCreateFromPhone",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- LoginWithWeChat ---

func TestLoginWithWeChat_SignsOpenIDAsSubject(t *testing.T) {
	svc, m := newTestService(t, false)
	ctx := context.Background()
	profile := &wechat.Profile{OpenID: "open-1", Nickname: "Li"}

	m.broker.On("Authenticate", ctx, "wx-code").Return(profile, nil)
	m.resolver.On("ResolveOrCreateFromWeChat", ctx, profile, domain.RoleMother).
		Return(testUser(""), nil)
	m.tokens.On("Sign", "open-1").Return("tok-wx", nil)

	res, err := svc.LoginWithWeChat(ctx, domain.WeChatLoginRequest{Code: "wx-code", Role: domain.RoleMother})
	require.NoError(t, err)
	assert.Equal(t, "tok-wx", res.Token)
	m.tokens.AssertExpectations(t)
}

func TestLoginWithWeChat_BrokerFailure(t *testing.T) {
	svc, m := newTestService(t, false)
	ctx := context.Background()

	m.broker.On("Authenticate", ctx, "bad-code").Return(nil, domain.ErrExternalAuth)

	_, err := svc.LoginWithWeChat(ctx, domain.WeChatLoginRequest{Code: "bad-code"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExternalAuth))
	m.resolver.AssertNotCalled(t, "ResolveOrCreateFromWeChat", mock.Anything, mock.Anything, mock.Anything)
}

// --- Refresh ---

func TestRefresh_Delegates(t *testing.T) {
	svc, m := newTestService(t, false)

	m.tokens.On("Refresh", "old-tok").Return("new-tok", nil)

	out, err := svc.Refresh(context.Background(), "old-tok")
	require.NoError(t, err)
	assert.Equal(t, "new-tok", out)
}

func TestRefresh_InvalidToken(t *testing.T) {
	svc, m := newTestService(t, false)

	m.tokens.On("Refresh", "garbage").Return("", domain.ErrTokenInvalid)

	_, err := svc.Refresh(context.Background(), "garbage")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
}
