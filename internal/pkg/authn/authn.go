package authn

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// Claims 访问令牌载荷。
//
// 令牌由外部认证服务签发，Subject 为投稿人 id。
type Claims struct {
	jwt.RegisteredClaims

	BirthDate string `json:"birth_date,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Verifier 校验 EdDSA 签名的访问令牌
type Verifier struct {
	pubKey ed25519.PublicKey
	issuer string
}

func (v *Verifier) Verify(token string) (domain.Submitter, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.pubKey, nil
	}, opts...)
	if err != nil {
		return domain.Submitter{}, fmt.Errorf("%w: %v", errs.ErrUnauthenticated, err)
	}
	return claims.toSubmitter()
}

// VerifyHeader 校验 "Bearer <token>" 形式的请求头
func (v *Verifier) VerifyHeader(header string) (domain.Submitter, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return domain.Submitter{}, errs.ErrUnauthenticated
	}
	return v.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
}

func (c *Claims) toSubmitter() (domain.Submitter, error) {
	if c.Subject == "" {
		return domain.Submitter{}, fmt.Errorf("%w: empty subject", errs.ErrUnauthenticated)
	}

	s := domain.Submitter{
		Id:   c.Subject,
		Role: domain.RoleSubmitter,
	}
	if c.Role == domain.RoleAdmin.String() {
		s.Role = domain.RoleAdmin
	}

	if c.BirthDate != "" {
		bd, err := domain.ParseBirthDate(c.BirthDate)
		if err != nil {
			return domain.Submitter{}, fmt.Errorf("%w: %v", errs.ErrUnauthenticated, err)
		}
		s.BirthDate = &bd
	}
	return s, nil
}

func NewVerifier(pubKey ed25519.PublicKey, issuer string) *Verifier {
	return &Verifier{
		pubKey: pubKey,
		issuer: issuer,
	}
}

// Signer 签发令牌，服务本身不签发令牌，供运维工具与测试使用
type Signer struct {
	priKey ed25519.PrivateKey
	issuer string
}

func (s *Signer) Sign(submitter domain.Submitter, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   submitter.Id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: submitter.Role.String(),
	}
	if submitter.BirthDate != nil {
		claims.BirthDate = submitter.BirthDate.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.priKey)
}

func NewSigner(priKey ed25519.PrivateKey, issuer string) *Signer {
	return &Signer{
		priKey: priKey,
		issuer: issuer,
	}
}

type submitterContextKey struct{}

func WithSubmitter(ctx context.Context, s domain.Submitter) context.Context {
	return context.WithValue(ctx, submitterContextKey{}, s)
}

// ExtractSubmitter 从 context 中获取投稿人
func ExtractSubmitter(ctx context.Context) (domain.Submitter, error) {
	s, ok := ctx.Value(submitterContextKey{}).(domain.Submitter)
	if !ok {
		return domain.Submitter{}, errs.ErrSubmitterNotFound
	}
	return s, nil
}
