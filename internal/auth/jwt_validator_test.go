package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func buildToken(t *testing.T, now time.Time, mutate func(*jwt.Builder)) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("storefront").
		Audience([]string{"backend-pay"}).
		Subject("shop-7").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(time.Minute))
	if mutate != nil {
		mutate(b)
	}
	tok, err := b.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	return tok
}

func TestTokenValidatorClaims(t *testing.T) {
	now := time.Now()
	validator := TokenValidator{
		Issuer:    "storefront",
		Audience:  "backend-pay",
		ClockSkew: time.Second,
		Algorithm: jwa.HS256,
	}

	cases := []struct {
		name    string
		token   jwt.Token
		alg     jwa.SignatureAlgorithm
		wantErr bool
	}{
		{
			name:  "valid token",
			token: buildToken(t, now, nil),
			alg:   jwa.HS256,
		},
		{
			name: "issuer mismatch",
			token: buildToken(t, now, func(b *jwt.Builder) {
				b.Issuer("somebody-else")
			}),
			alg:     jwa.HS256,
			wantErr: true,
		},
		{
			name: "audience mismatch",
			token: buildToken(t, now, func(b *jwt.Builder) {
				b.Audience([]string{"another-api"})
			}),
			alg:     jwa.HS256,
			wantErr: true,
		},
		{
			name: "expired",
			token: buildToken(t, now, func(b *jwt.Builder) {
				b.IssuedAt(now.Add(-2 * time.Hour))
				b.NotBefore(now.Add(-2 * time.Hour))
				b.Expiration(now.Add(-time.Minute))
			}),
			alg:     jwa.HS256,
			wantErr: true,
		},
		{
			name: "not yet valid",
			token: buildToken(t, now, func(b *jwt.Builder) {
				b.NotBefore(now.Add(5 * time.Minute))
				b.Expiration(now.Add(10 * time.Minute))
			}),
			alg:     jwa.HS256,
			wantErr: true,
		},
		{
			name:    "algorithm mismatch",
			token:   buildToken(t, now, nil),
			alg:     jwa.RS256,
			wantErr: true,
		},
		{
			name:    "missing algorithm",
			token:   buildToken(t, now, nil),
			alg:     "",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.token, tc.alg, now)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
}

func TestTokenValidatorSkewToleratesClockDrift(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, func(b *jwt.Builder) {
		b.NotBefore(now.Add(2 * time.Second))
	})

	strict := TokenValidator{Algorithm: jwa.HS256}
	if err := strict.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected not-before error without skew")
	}

	lenient := TokenValidator{Algorithm: jwa.HS256, ClockSkew: 5 * time.Second}
	if err := lenient.Validate(token, jwa.HS256, now); err != nil {
		t.Fatalf("validate with skew: %v", err)
	}
}
