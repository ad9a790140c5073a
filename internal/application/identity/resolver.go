package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carematch/carematch-api/internal/domain"
	"github.com/carematch/carematch-api/internal/infrastructure/wechat"
	"github.com/carematch/carematch-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// userStore is the minimal user repository surface the resolver needs.
type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByWeChatOpenID(ctx context.Context, openID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// Resolver maps token subjects and login credentials to accounts, and owns
// first-seen account creation for the phone and WeChat channels.
type Resolver struct {
	store userStore

	// lookups is the ordered subject-resolution chain. A token subject is
	// drawn from one of three disjoint namespaces and nothing in the token
	// says which, so each lookup is tried lazily until one hits. Adding a
	// fourth channel means appending here.
	lookups []func(ctx context.Context, subject string) (*domain.User, error)

	// createMu serializes check-and-create so concurrent first logins for
	// the same phone or openid cannot mint duplicate accounts.
	createMu sync.Mutex
}

func NewResolver(store userStore) *Resolver {
	r := &Resolver{store: store}
	r.lookups = []func(ctx context.Context, subject string) (*domain.User, error){
		store.GetByUsername,
		store.GetByPhone,
		store.GetByWeChatOpenID,
	}
	return r
}

// ResolveBySubject finds the account a token subject refers to, trying
// username, then phone, then WeChat openid.
func (r *Resolver) ResolveBySubject(ctx context.Context, subject string) (*domain.User, error) {
	for _, lookup := range r.lookups {
		u, err := lookup(ctx, subject)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no account for subject: %w", domain.ErrNotFound)
}

// ResolveByPasswordCredential authenticates identifier+password. The
// identifier may be a username or a phone number. Accounts without a stored
// hash (phone- or WeChat-only) can never log in this way.
func (r *Resolver) ResolveByPasswordCredential(ctx context.Context, identifier, password string) (*domain.User, error) {
	u, err := r.store.GetByUsername(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) {
		u, err = r.store.GetByPhone(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("unknown identifier: %w", domain.ErrInvalidCredentials)
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, fmt.Errorf("account has no password: %w", domain.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("password mismatch: %w", domain.ErrInvalidCredentials)
	}
	return u, nil
}

// ResolveOrCreateFromPhone finds the account owning the phone identifier or
// creates one on first login. New accounts carry only the phone identifier,
// no credential, and profile_completed=false.
func (r *Resolver) ResolveOrCreateFromPhone(ctx context.Context, countryCode, phoneNumber, role, name string) (*domain.User, error) {
	phone := countryCode + phoneNumber

	r.createMu.Lock()
	defer r.createMu.Unlock()

	u, err := r.store.GetByPhone(ctx, phone)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if name == "" {
		name = "User" + id.Suffix(8)
	}
	now := time.Now().UTC()
	u = &domain.User{
		UserID:    id.New(),
		Phone:     &phone,
		Role:      normalizeRole(role),
		Name:      name,
		Enable:    1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Put(ctx, u); err != nil {
		return nil, err
	}
	slog.Info("created account from phone login", "user_id", u.UserID, "role", u.Role)
	return u, nil
}

// ResolveOrCreateFromWeChat finds the account owning the openid or creates one
// seeded from the fresh profile. On a hit the mutable display fields
// (nickname, avatar, unionid) are refreshed, since they legitimately change
// between logins.
func (r *Resolver) ResolveOrCreateFromWeChat(ctx context.Context, profile *wechat.Profile, role string) (*domain.User, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	u, err := r.store.GetByWeChatOpenID(ctx, profile.OpenID)
	if err == nil {
		return r.refreshFromWeChat(ctx, u, profile)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	openID := profile.OpenID
	now := time.Now().UTC()
	u = &domain.User{
		UserID:       id.New(),
		WeChatOpenID: &openID,
		Role:         normalizeRole(role),
		Name:         profile.Nickname,
		AvatarURL:    profile.AvatarURL,
		Enable:       1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if profile.UnionID != "" {
		unionID := profile.UnionID
		u.WeChatUnionID = &unionID
	}
	if err := r.store.Put(ctx, u); err != nil {
		return nil, err
	}
	slog.Info("created account from wechat login", "user_id", u.UserID, "role", u.Role)
	return u, nil
}

// Register creates a password account. Identifier uniqueness is enforced here,
// at creation time, not left to the storage layer.
func (r *Resolver) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	if _, err := r.store.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if req.Phone != nil {
		if _, err := r.store.GetByPhone(ctx, *req.Phone); err == nil {
			return nil, fmt.Errorf("phone already registered: %w", domain.ErrConflict)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	username := req.Username
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     &username,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         normalizeRole(req.Role),
		Name:         req.Name,
		Enable:       1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LinkPhone attaches a verified phone identifier to an existing account.
func (r *Resolver) LinkPhone(ctx context.Context, userID, countryCode, phoneNumber string) (*domain.User, error) {
	phone := countryCode + phoneNumber

	r.createMu.Lock()
	defer r.createMu.Unlock()

	if owner, err := r.store.GetByPhone(ctx, phone); err == nil {
		if owner.UserID == userID {
			return owner, nil
		}
		return nil, fmt.Errorf("phone owned by another account: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := r.store.Update(ctx, userID, map[string]interface{}{"phone": phone}); err != nil {
		return nil, err
	}
	return r.store.Get(ctx, userID)
}

func (r *Resolver) refreshFromWeChat(ctx context.Context, u *domain.User, profile *wechat.Profile) (*domain.User, error) {
	updates := map[string]interface{}{}
	if profile.Nickname != "" && profile.Nickname != u.Name {
		updates["name"] = profile.Nickname
		u.Name = profile.Nickname
	}
	if profile.AvatarURL != "" && profile.AvatarURL != u.AvatarURL {
		updates["avatar_url"] = profile.AvatarURL
		u.AvatarURL = profile.AvatarURL
	}
	if profile.UnionID != "" && (u.WeChatUnionID == nil || *u.WeChatUnionID != profile.UnionID) {
		updates["wechat_unionid"] = profile.UnionID
		unionID := profile.UnionID
		u.WeChatUnionID = &unionID
	}
	if len(updates) == 0 {
		return u, nil
	}
	if err := r.store.Update(ctx, u.UserID, updates); err != nil {
		return nil, err
	}
	return u, nil
}

// normalizeRole degrades an unrecognized role to MOTHER with a warning rather
// than failing the whole login.
func normalizeRole(role string) string {
	if domain.ValidRole(role) {
		return role
	}
	slog.Warn("unrecognized role, defaulting", "role", role, "default", domain.RoleMother)
	return domain.RoleMother
}
